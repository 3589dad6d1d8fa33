// Package render 瓦片渲染服务: 给定范围与像素大小, 返回图片字节.
package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"tilecache/tile"
)

var (
	// ErrTileNotFound 上游没有这张瓦片 (HTTP 404)
	ErrTileNotFound = errors.New("render: tile not found")
	// ErrUnsupportedSpan the renderer can only produce single tiles.
	ErrUnsupportedSpan = errors.New("render: multi-tile span not supported")
	// ErrUnknownKind 样式文件中未知的 kind
	ErrUnknownKind = errors.New("render: unknown renderer kind")
)

// Request 一次渲染: W x H 块瓦片, 左上角为 (Z, X, Y)
type Request struct {
	Z, X, Y uint32
	W, H    uint32
	// Box 墨卡托范围
	Box tile.Box
	// Width / Height 像素大小
	Width, Height int
	Format        tile.Format
}

// NewRequest builds the request for a w x h block whose top-left tile is c.
func NewRequest(c tile.Coord, w, h uint32, tileSize int, f tile.Format) Request {
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	return Request{
		Z: c.Z, X: c.X, Y: c.Y,
		W: w, H: h,
		Box:    tile.SpanBox(c.Z, c.X, c.Y, w, h),
		Width:  int(w) * tileSize,
		Height: int(h) * tileSize,
		Format: f,
	}
}

// Coord 左上角瓦片
func (r Request) Coord() tile.Coord {
	return tile.Coord{Z: r.Z, X: r.X, Y: r.Y}
}

// Single 是否只有一张瓦片
func (r Request) Single() bool {
	return r.W == 1 && r.H == 1
}

// Renderer renders one request. Instances may hold per-worker state and
// are not shared between goroutines.
type Renderer interface {
	Render(ctx context.Context, req Request) ([]byte, error)
}

// Factory 按样式创建渲染器实例; state shared by all instances (HTTP
// client, circuit breaker) lives here.
type Factory struct {
	style   *Style
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     logrus.FieldLogger
}

// NewFactory validates the style and prepares the shared state.
func NewFactory(style *Style, log logrus.FieldLogger) (*Factory, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := style.Validate(); err != nil {
		return nil, err
	}
	f := &Factory{style: style, log: log}
	if style.Kind == KindUpstream {
		f.client = &http.Client{Timeout: style.Timeout}
		f.breaker = newBreaker(style, log)
	}
	return f, nil
}

func newBreaker(style *Style, log logrus.FieldLogger) *gobreaker.CircuitBreaker[[]byte] {
	failures := style.Breaker.Failures
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     style.Breaker.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return failures > 0 && counts.ConsecutiveFailures >= failures
		},
		// a missing tile is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrTileNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	})
}

// Style 当前样式
func (f *Factory) Style() *Style {
	return f.style
}

// Format 样式输出格式
func (f *Factory) Format() tile.Format {
	return f.style.TileFormat()
}

// TileSize 瓦片像素大小
func (f *Factory) TileSize() int {
	return f.style.TileSize
}

// SupportsSpan reports whether one Render call can cover several tiles.
func (f *Factory) SupportsSpan() bool {
	switch f.style.Kind {
	case KindPattern:
		return true
	case KindUpstream:
		return f.style.Mode() == ModeBBox
	}
	return false
}

// New 创建一个渲染器实例
func (f *Factory) New() (Renderer, error) {
	switch f.style.Kind {
	case KindUpstream:
		return &Upstream{
			style:   f.style,
			client:  f.client,
			breaker: f.breaker,
			log:     f.log,
		}, nil
	case KindPattern:
		return NewPattern(f.style)
	}
	return nil, fmt.Errorf("%q: %w", f.style.Kind, ErrUnknownKind)
}
