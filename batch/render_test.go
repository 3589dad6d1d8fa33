package batch_test

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tilecache/batch"
	"tilecache/render"
	"tilecache/store"
	"tilecache/tile"
)

func patternFactory(t *testing.T) *render.Factory {
	t.Helper()
	s := &render.Style{Kind: render.KindPattern, Format: "png", TileSize: 64}
	s.Pattern.Background = "#ffffff"
	s.Pattern.Grid = "#ff0000"
	f, err := render.NewFactory(s, nil)
	require.NoError(t, err)
	require.Same(t, s, f.Style())
	return f
}

func renderArea(t *testing.T, opts batch.RenderOptions) batch.Summary {
	t.Helper()
	run := batch.NewRun(batch.Options{Threads: 3})
	opts.Progress = batch.NewProgress(run, opts.Area.Count(), nil)
	s, err := batch.Render(context.Background(), run, opts)
	require.NoError(t, err)
	require.Equal(t, opts.Area.Count(), opts.Progress.Done())
	require.Equal(t, s.Rendered, run.Rendered())
	require.Equal(t, s.Failed, run.Failed())
	require.Equal(t, s.Skipped, run.Skipped())
	return s
}

func TestRenderMetatile(t *testing.T) {
	r := tile.NewResolver(t.TempDir())
	area, err := batch.NewArea(0, 3, batch.World)
	require.NoError(t, err)
	area.Metatile = 3

	opts := batch.RenderOptions{
		Resolver: r,
		Factory:  patternFactory(t),
		Writer:   store.NewWriter(nil),
		Area:     area,
	}
	s := renderArea(t, opts)
	require.Equal(t, area.Count(), s.Rendered)
	require.Zero(t, s.Failed)
	require.Zero(t, s.Skipped)

	for c := range area.Tiles() {
		data, err := os.ReadFile(r.Path(c, tile.PNG))
		require.NoErrorf(t, err, "tile %v", c)
		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		require.Equal(t, 64, img.Bounds().Dx())
	}

	// everything exists now
	opts.SkipExisting = true
	s = renderArea(t, opts)
	require.Zero(t, s.Rendered)
	require.Equal(t, area.Count(), s.Skipped)
}

func TestRenderSkipExistingPartial(t *testing.T) {
	r := tile.NewResolver(t.TempDir())
	area, err := batch.NewArea(1, 1, batch.World)
	require.NoError(t, err)
	area.Metatile = 2

	keep := tile.Coord{Z: 1, X: 1, Y: 0}
	require.NoError(t, store.NewWriter(nil).WriteFile(r.Path(keep, tile.PNG), []byte("keep")))

	s := renderArea(t, batch.RenderOptions{
		Resolver:     r,
		Factory:      patternFactory(t),
		Writer:       store.NewWriter(nil),
		Area:         area,
		SkipExisting: true,
	})
	require.Equal(t, int64(3), s.Rendered)
	require.Equal(t, int64(1), s.Skipped)

	data, err := os.ReadFile(r.Path(keep, tile.PNG))
	require.NoError(t, err)
	require.Equal(t, []byte("keep"), data)
}

func TestRenderResumeJournal(t *testing.T) {
	dir := t.TempDir()
	r := tile.NewResolver(filepath.Join(dir, "tiles"))
	journalPath := filepath.Join(dir, "resume", "osm.log")
	area, err := batch.NewArea(2, 2, batch.World)
	require.NoError(t, err)

	j, err := batch.OpenJournal(journalPath, nil)
	require.NoError(t, err)
	require.Zero(t, j.Len())
	opts := batch.RenderOptions{
		Resolver: r,
		Factory:  patternFactory(t),
		Writer:   store.NewWriter(nil),
		Area:     area,
		Journal:  j,
	}
	s := renderArea(t, opts)
	require.Equal(t, int64(16), s.Rendered)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	data, err := os.ReadFile(journalPath)
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 16)

	j, err = batch.OpenJournal(journalPath, nil)
	require.NoError(t, err)
	defer j.Close()
	require.Equal(t, 16, j.Len())
	require.True(t, j.Has(tile.Coord{Z: 2, X: 3, Y: 3}))

	opts.Journal = j
	s = renderArea(t, opts)
	require.Zero(t, s.Rendered)
	require.Equal(t, int64(16), s.Skipped)
}

func TestRenderFailureCounted(t *testing.T) {
	r := tile.NewResolver(t.TempDir())
	area, err := batch.NewArea(1, 1, batch.World)
	require.NoError(t, err)

	s := &render.Style{Kind: render.KindUpstream, URL: "http://127.0.0.1:0/{z}/{x}/{y}.png", Format: "png"}
	f, err := render.NewFactory(s, nil)
	require.NoError(t, err)

	sum := renderArea(t, batch.RenderOptions{
		Resolver: r,
		Factory:  f,
		Writer:   store.NewWriter(nil),
		Area:     area,
	})
	require.Equal(t, int64(4), sum.Failed)
	require.Zero(t, sum.Rendered)
}

func TestPlan(t *testing.T) {
	area, err := batch.NewArea(0, 2, batch.World)
	require.NoError(t, err)
	var out bytes.Buffer
	require.Equal(t, int64(21), batch.Plan(&out, area))
	require.Equal(t, "  # of tiles  :\n    Zoom  0: 1\n    Zoom  1: 4\n    Zoom  2: 16\n    Total  : 21\n", out.String())
}
