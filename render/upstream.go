package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// Upstream 从上游 HTTP 服务获取图片: 瓦片代理 ({z}/{x}/{y}) 或 WMS 风格 ({bbox})
type Upstream struct {
	style   *Style
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     logrus.FieldLogger
}

// URL 获取请求地址
func (u *Upstream) URL(req Request) string {
	url := u.style.URL
	if u.style.Mode() == ModeBBox {
		bbox := strings.Join([]string{
			strconv.FormatFloat(req.Box.Left, 'f', -1, 64),
			strconv.FormatFloat(req.Box.Bottom, 'f', -1, 64),
			strconv.FormatFloat(req.Box.Right, 'f', -1, 64),
			strconv.FormatFloat(req.Box.Top, 'f', -1, 64),
		}, ",")
		url = strings.ReplaceAll(url, "{bbox}", bbox)
		url = strings.ReplaceAll(url, "{width}", strconv.Itoa(req.Width))
		url = strings.ReplaceAll(url, "{height}", strconv.Itoa(req.Height))
		url = strings.ReplaceAll(url, "{format}", req.Format.String())
		return url
	}
	url = strings.ReplaceAll(url, "{x}", strconv.FormatUint(uint64(req.X), 10))
	url = strings.ReplaceAll(url, "{y}", strconv.FormatUint(uint64(req.Y), 10))
	url = strings.ReplaceAll(url, "{z}", strconv.FormatUint(uint64(req.Z), 10))
	return url
}

// Render 获取瓦片
func (u *Upstream) Render(ctx context.Context, req Request) ([]byte, error) {
	if u.style.Mode() == ModeTile && !req.Single() {
		return nil, ErrUnsupportedSpan
	}
	url := u.URL(req)
	start := time.Now()
	body, err := u.breaker.Execute(func() ([]byte, error) {
		return u.fetch(ctx, url)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
		return nil, err
	}
	u.log.Debugf("tile(z:%d, x:%d, y:%d), %dms , %.2f kb, %s", req.Z, req.X, req.Y,
		time.Since(start).Milliseconds(), float32(len(body))/1024.0, url)
	return body, nil
}

func (u *Upstream) fetch(ctx context.Context, url string) ([]byte, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if u.style.UserAgent != "" {
		hreq.Header.Set("User-Agent", u.style.UserAgent)
	}
	resp, err := u.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("fetch %s: %w", url, ErrTileNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: status code %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("fetch %s: empty tile", url)
	}
	return body, nil
}
