// Package server 按需瓦片服务: 命中文件直接返回, 缺失时渲染、返回并落盘.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"tilecache/render"
	"tilecache/store"
	"tilecache/tile"
)

// Tile sources, the label of Metrics.TilesServed.
const (
	SourceCache  = "cache"
	SourceDisk   = "disk"
	SourceRender = "render"
)

// Handler 瓦片请求处理
type Handler struct {
	resolver *tile.Resolver
	factory  *render.Factory
	pool     chan render.Renderer
	writer   *store.Writer
	cache    *HotCache
	metrics  *Metrics
	log      logrus.FieldLogger

	// now is replaceable in tests.
	now func() time.Time
}

// Options 处理器依赖
type Options struct {
	Resolver *tile.Resolver
	Factory  *render.Factory
	Writer   *store.Writer
	// Pool renderer instances shared by requests, 0 = GOMAXPROCS
	Pool    int
	Cache   *HotCache
	Metrics *Metrics
	Log     logrus.FieldLogger
}

// NewHandler creates every renderer instance up front.
func NewHandler(opts Options) (*Handler, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	n := opts.Pool
	if n < 1 {
		n = runtime.GOMAXPROCS(0)
	}
	pool := make(chan render.Renderer, n)
	for i := 0; i < n; i++ {
		r, err := opts.Factory.New()
		if err != nil {
			return nil, fmt.Errorf("renderer %d: %w", i, err)
		}
		pool <- r
	}
	writer := opts.Writer
	if writer == nil {
		writer = store.NewWriter(log)
	}
	return &Handler{
		resolver: opts.Resolver,
		factory:  opts.Factory,
		pool:     pool,
		writer:   writer,
		cache:    opts.Cache,
		metrics:  opts.Metrics,
		log:      log,
		now:      time.Now,
	}, nil
}

// ETag "%08x-%x" of the modification time (unix seconds) and the size.
func ETag(modTime time.Time, size int64) string {
	return fmt.Sprintf("\"%08x-%x\"", uint32(modTime.Unix()), size)
}

// ServeHTTP serves GET/HEAD <prefix>/<z>/<x>/<y>.<png|jpg>.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c, f, path, ok := h.resolver.Rewrite(chi.URLParam(r, "*"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	if e, ok := h.cache.Get(path); ok {
		h.serve(w, r, f, e.Data, e.ModTime, SourceCache)
		return
	}

	fi, err := os.Stat(path)
	switch {
	case err == nil && fi.IsDir():
		// tile directories have no index
		http.NotFound(w, r)
	case err == nil:
		h.serveFile(w, r, f, path, fi)
	case errors.Is(err, fs.ErrNotExist):
		h.render(w, r, c, f, path)
	default:
		h.log.WithFields(logrus.Fields{"path": path, "error": err.Error()}).Warn("stat tile failed")
		http.Error(w, "access forbidden", http.StatusForbidden)
	}
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, f tile.Format, path string, fi os.FileInfo) {
	if notModified(r, fi.ModTime(), fi.Size()) {
		h.notModified(w)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		h.log.WithFields(logrus.Fields{"path": path, "error": err.Error()}).Warn("read tile failed")
		http.Error(w, "access forbidden", http.StatusForbidden)
		return
	}
	h.cache.Set(path, &Entry{Data: data, ModTime: fi.ModTime()})
	h.serve(w, r, f, data, fi.ModTime(), SourceDisk)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, f tile.Format, data []byte, modTime time.Time, source string) {
	if notModified(r, modTime, int64(len(data))) {
		h.notModified(w)
		return
	}
	hdr := w.Header()
	hdr.Set("Content-Type", f.MIMEType())
	hdr.Set("Content-Length", strconv.Itoa(len(data)))
	hdr.Set("Last-Modified", modTime.UTC().Format(http.TimeFormat))
	hdr.Set("ETag", ETag(modTime, int64(len(data))))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(data)
	}
	if h.metrics != nil {
		h.metrics.TilesServed.WithLabelValues(source).Inc()
	}
}

func (h *Handler) notModified(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotModified)
	if h.metrics != nil {
		h.metrics.NotModified.Inc()
	}
}

// notModified: If-None-Match wins over If-Modified-Since.
func notModified(r *http.Request, modTime time.Time, size int64) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		return inm == ETag(modTime, size)
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		t, err := http.ParseTime(ims)
		return err == nil && !modTime.Truncate(time.Second).After(t)
	}
	return false
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, c tile.Coord, f tile.Format, path string) {
	data, err := h.renderTile(r.Context(), c, f)
	if err != nil {
		fields := logrus.Fields{"tile": c.String(), "error": err.Error()}
		if errors.Is(err, render.ErrTileNotFound) {
			h.log.WithFields(fields).Debug("tile not found upstream")
			h.renderError("not_found")
			http.NotFound(w, r)
			return
		}
		h.log.WithFields(fields).Error("render failed")
		h.renderError("error")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	now := h.now()
	h.serve(w, r, f, data, now, SourceRender)
	if fl, ok := w.(http.Flusher); ok {
		fl.Flush()
	}
	// best effort, the response is already out
	if !h.writer.Store(path, data) && h.metrics != nil {
		h.metrics.StoreFailures.Inc()
	}
	h.cache.Set(path, &Entry{Data: data, ModTime: now})
}

// renderTile borrows a renderer from the pool; it goes back even when Render panics.
func (h *Handler) renderTile(ctx context.Context, c tile.Coord, f tile.Format) ([]byte, error) {
	renderer, err := h.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { h.pool <- renderer }()

	start := time.Now()
	data, err := renderer.Render(ctx, render.NewRequest(c, 1, 1, h.factory.TileSize(), f))
	if h.metrics != nil {
		h.metrics.RenderDuration.Observe(time.Since(start).Seconds())
	}
	return data, err
}

func (h *Handler) renderError(reason string) {
	if h.metrics != nil {
		h.metrics.RenderErrors.WithLabelValues(reason).Inc()
	}
}

func (h *Handler) acquire(ctx context.Context) (render.Renderer, error) {
	select {
	case r := <-h.pool:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
