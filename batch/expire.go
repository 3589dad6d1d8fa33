package batch

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"tilecache/store"
	"tilecache/tile"
)

// ExpireOptions 过期参数
type ExpireOptions struct {
	Resolver *tile.Resolver
	Format   tile.Format
	// DryRun 只打印将被删除的路径, 仍计入 removed
	DryRun bool
	// EchoBack 删除成功后向 Out 打印 z/x/y
	EchoBack bool
	Out      io.Writer
	Spinner  *Spinner
}

// Expirer 删除列表中的瓦片文件
type Expirer struct {
	run  *Run
	opts ExpireOptions
	out  *lockedWriter
	log  logrus.FieldLogger
}

// NewExpirer 创建过期任务
func NewExpirer(run *Run, opts ExpireOptions) *Expirer {
	if opts.Spinner == nil {
		opts.Spinner = NewSpinner(nil, "")
	}
	return &Expirer{
		run:  run,
		opts: opts,
		out:  newLockedWriter(opts.Out),
		log:  run.Log(),
	}
}

// NewHandler 每个 worker 一个独立的路径缓冲区
func (e *Expirer) NewHandler(int) (Handler, error) {
	buf := make([]byte, e.opts.Resolver.BufSize())
	return HandlerFunc(func(_ context.Context, c tile.Coord) {
		e.expire(buf, c)
	}), nil
}

func (e *Expirer) expire(buf []byte, c tile.Coord) {
	defer e.opts.Spinner.Add()

	n, err := e.opts.Resolver.PutPath(buf, c, e.opts.Format)
	if err != nil {
		e.run.AddSkipped(1)
		return
	}
	path := string(buf[:n])

	if !store.Exists(path) {
		e.run.AddSkipped(1)
		return
	}
	if e.opts.DryRun {
		fmt.Fprintf(e.out, "%s will be removed\n", path)
		e.run.AddRemoved(1)
		return
	}

	removed, err := store.Remove(path)
	switch {
	case err != nil:
		e.log.WithFields(logrus.Fields{"path": path, "error": err.Error()}).Warn("unlink failed")
		e.run.AddSkipped(1)
	case !removed:
		// lost a race with another expirer
		e.run.AddSkipped(1)
	default:
		e.run.AddRemoved(1)
		if e.opts.EchoBack {
			fmt.Fprintf(e.out, "%d/%d/%d\n", c.Z, c.X, c.Y)
		}
	}
}

// Expire 读取列表并删除, 直到列表读完且队列排空.
func Expire(ctx context.Context, run *Run, list *ListReader, opts ExpireOptions) (Summary, error) {
	e := NewExpirer(run, opts)
	if err := run.Start(ctx, e.NewHandler); err != nil {
		return Summary{}, err
	}
	_, perr := run.Produce(ctx, list.Coords())
	s := run.Finish()
	e.opts.Spinner.Finish()
	if perr != nil {
		return s, perr
	}
	if err := list.Err(); err != nil {
		return s, fmt.Errorf("read tile list: %w", err)
	}
	return s, nil
}
