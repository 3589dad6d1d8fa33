package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"tilecache/render"
	"tilecache/tile"
)

type panicRenderer struct{}

func (panicRenderer) Render(context.Context, render.Request) ([]byte, error) {
	panic("renderer crashed")
}

func newPatternHandler(t *testing.T, pool int) *Handler {
	t.Helper()
	style := &render.Style{Kind: render.KindPattern, Format: "png", TileSize: 256}
	style.Pattern.Background = "#ffffff"
	style.Pattern.Grid = "#000000"
	factory, err := render.NewFactory(style, nil)
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	h, err := NewHandler(Options{
		Resolver: tile.NewResolver(t.TempDir()),
		Factory:  factory,
		Pool:     pool,
		Metrics:  NewMetrics(prometheus.NewRegistry()),
		Log:      logger,
	})
	require.NoError(t, err)
	return h
}

func TestRendererPanicKeepsPool(t *testing.T) {
	h := newPatternHandler(t, 1)
	<-h.pool
	h.pool <- panicRenderer{}
	router := NewRouter("/tiles", h, nil)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		req := httptest.NewRequest(http.MethodGet, "/tiles/3/1/2.png", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		cancel()
		require.Equalf(t, http.StatusInternalServerError, rec.Code, "request %d", i)
		require.Lenf(t, h.pool, 1, "request %d", i)
	}
}

func TestAcquireFailureEmptyBody(t *testing.T) {
	h := newPatternHandler(t, 1)
	// every renderer is busy
	busy := <-h.pool
	defer func() { h.pool <- busy }()
	router := NewRouter("/tiles", h, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/tiles/3/1/2.png", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Zero(t, rec.Body.Len())
	require.Empty(t, rec.Header().Get("Content-Type"))
}
