package batch

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"tilecache/render"
	"tilecache/store"
	"tilecache/tile"
)

// RenderOptions 批量渲染参数
type RenderOptions struct {
	Resolver *tile.Resolver
	Factory  *render.Factory
	Writer   *store.Writer
	Area     *Area
	// SkipExisting 已存在的瓦片不再渲染
	SkipExisting bool
	// Journal optional resume journal
	Journal *Journal
	// Progress optional; nil logs nothing
	Progress *Progress
}

// RenderJob 批量渲染任务
type RenderJob struct {
	run  *Run
	opts RenderOptions
	log  logrus.FieldLogger
}

// NewRenderJob 创建渲染任务
func NewRenderJob(run *Run, opts RenderOptions) *RenderJob {
	return &RenderJob{run: run, opts: opts, log: run.Log()}
}

// NewHandler gives every worker its own renderer instance and path buffer.
func (j *RenderJob) NewHandler(int) (Handler, error) {
	r, err := j.opts.Factory.New()
	if err != nil {
		return nil, err
	}
	return &renderWorker{
		job:      j,
		renderer: r,
		buf:      make([]byte, j.opts.Resolver.BufSize()),
	}, nil
}

func (j *RenderJob) progress(n int64) {
	if j.opts.Progress != nil {
		j.opts.Progress.Add(n)
	}
}

// skipDone drops items finished by an earlier run.
func (j *RenderJob) skipDone(c tile.Coord) {
	w, h := j.opts.Area.Span(c)
	n := int64(w) * int64(h)
	j.run.AddSkipped(n)
	j.progress(n)
}

type renderWorker struct {
	job      *RenderJob
	renderer render.Renderer
	buf      []byte
}

func (w *renderWorker) path(c tile.Coord, f tile.Format) string {
	n, err := w.job.opts.Resolver.PutPath(w.buf, c, f)
	if err != nil {
		return w.job.opts.Resolver.Path(c, f)
	}
	return string(w.buf[:n])
}

// Handle renders the block whose top-left tile is c.
func (w *renderWorker) Handle(ctx context.Context, c tile.Coord) {
	j := w.job
	f := j.opts.Factory.Format()
	width, height := j.opts.Area.Span(c)
	total := int64(width) * int64(height)
	defer j.progress(total)

	var exists map[tile.Coord]bool
	if j.opts.SkipExisting {
		exists = make(map[tile.Coord]bool)
		for dy := uint32(0); dy < height; dy++ {
			for dx := uint32(0); dx < width; dx++ {
				sub := tile.Coord{Z: c.Z, X: c.X + dx, Y: c.Y + dy}
				if store.Exists(w.path(sub, f)) {
					exists[sub] = true
				}
			}
		}
		if int64(len(exists)) == total {
			j.run.AddSkipped(total)
			w.mark(c)
			return
		}
	}

	req := render.NewRequest(c, width, height, j.opts.Factory.TileSize(), f)
	data, err := w.renderer.Render(ctx, req)
	if err != nil {
		j.log.WithFields(logrus.Fields{"tile": c.String(), "error": err.Error()}).Error("render failed")
		j.run.AddFailed(total)
		return
	}
	pieces, err := render.Slice(req, data, j.opts.Factory.TileSize())
	if err != nil {
		j.log.WithFields(logrus.Fields{"tile": c.String(), "error": err.Error()}).Error("slice failed")
		j.run.AddFailed(total)
		return
	}

	failed := false
	for _, p := range pieces {
		if exists[p.Coord] {
			j.run.AddSkipped(1)
			continue
		}
		if j.opts.Writer.Store(w.path(p.Coord, f), p.Data) {
			j.run.AddRendered(1)
		} else {
			j.run.AddFailed(1)
			failed = true
		}
	}
	if !failed {
		w.mark(c)
	}
}

func (w *renderWorker) mark(c tile.Coord) {
	if w.job.opts.Journal != nil {
		w.job.opts.Journal.Mark(c)
	}
}

// Close 释放渲染器
func (w *renderWorker) Close() error {
	if c, ok := w.renderer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Render enumerates the area, renders every block and waits for the pool.
func Render(ctx context.Context, run *Run, opts RenderOptions) (Summary, error) {
	job := NewRenderJob(run, opts)
	if err := run.Start(ctx, job.NewHandler); err != nil {
		return Summary{}, err
	}
	items := opts.Area.Items()
	if opts.Journal != nil {
		items = opts.Journal.Pending(items, job.skipDone)
	}
	_, err := run.Produce(ctx, items)
	s := run.Finish()
	if opts.Progress != nil {
		opts.Progress.Finish()
	}
	return s, err
}

// Plan writes the tile count of every zoom level and the total, the dry
// run output of the render tool.
func Plan(w io.Writer, a *Area) int64 {
	fmt.Fprintln(w, "  # of tiles  :")
	var total int64
	for z := a.MinZoom; z <= a.MaxZoom; z++ {
		n := a.CountZoom(z)
		fmt.Fprintf(w, "    Zoom %2d: %d\n", z, n)
		total += n
	}
	fmt.Fprintf(w, "    Total  : %d\n", total)
	return total
}
