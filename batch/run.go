package batch

import (
	"context"
	"fmt"
	"io"
	"iter"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"

	"tilecache/tile"
)

// Handler 处理单个队列元素. Each worker owns one Handler, never shared.
// A Handler that also implements io.Closer is closed when its worker exits.
type Handler interface {
	Handle(ctx context.Context, c tile.Coord)
}

// HandlerFunc 函数适配
type HandlerFunc func(ctx context.Context, c tile.Coord)

// Handle calls f(ctx, c).
func (f HandlerFunc) Handle(ctx context.Context, c tile.Coord) {
	f(ctx, c)
}

// NewHandler builds the handler for worker i.
type NewHandler func(worker int) (Handler, error)

// Options 批处理参数
type Options struct {
	Threads   int // 0 = runtime.NumCPU()
	QueueSize int // 0 = DefaultQueueSize
	Log       logrus.FieldLogger
}

// Run 一次批处理调用的上下文: 队列、计数器与工作池.
//
// The counters are independent atomics; a reader may observe one updated
// before another for the same tile.
type Run struct {
	ID      string
	Queue   *Queue
	Threads int
	Started time.Time

	removed  atomic.Int64
	skipped  atomic.Int64
	rendered atomic.Int64
	failed   atomic.Int64

	log     logrus.FieldLogger
	wg      sync.WaitGroup
	started atomic.Bool
}

// Summary 结束时的统计
type Summary struct {
	ID       string
	Removed  int64
	Skipped  int64
	Rendered int64
	Failed   int64
	Elapsed  time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("task %s: %d removed, %d rendered, %d skipped, %d failed in %.3fs",
		s.ID, s.Removed, s.Rendered, s.Skipped, s.Failed, s.Elapsed.Seconds())
}

// NewRun 创建批处理上下文
func NewRun(opts Options) *Run {
	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	id, err := shortid.Generate()
	if err != nil {
		id = fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return &Run{
		ID:      id,
		Queue:   NewQueue(opts.QueueSize),
		Threads: threads,
		log:     log.WithField("task", id),
	}
}

// Log 带 task 字段的日志
func (r *Run) Log() logrus.FieldLogger {
	return r.log
}

// Start builds every handler first and only then launches the workers, so a
// setup failure leaves no goroutine behind.
func (r *Run) Start(ctx context.Context, newHandler NewHandler) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("task %s already started", r.ID)
	}
	handlers := make([]Handler, 0, r.Threads)
	for i := 0; i < r.Threads; i++ {
		h, err := newHandler(i)
		if err != nil {
			closeAll(handlers)
			return fmt.Errorf("worker %d: %w", i, err)
		}
		handlers = append(handlers, h)
	}

	r.Started = time.Now()
	r.log.Infof("task %s starting with %d workers", r.ID, r.Threads)
	for _, h := range handlers {
		r.wg.Add(1)
		go r.work(ctx, h)
	}
	return nil
}

func (r *Run) work(ctx context.Context, h Handler) {
	defer r.wg.Done()
	if c, ok := h.(io.Closer); ok {
		defer c.Close()
	}
	for {
		id, ok := r.Queue.Pop()
		if !ok {
			return
		}
		h.Handle(ctx, id.Unpack())
	}
}

func closeAll(handlers []Handler) {
	for _, h := range handlers {
		if c, ok := h.(io.Closer); ok {
			c.Close()
		}
	}
}

// Produce pushes every coordinate of seq, blocking while the queue is full.
// It returns how many were pushed; on ctx cancellation it stops early.
func (r *Run) Produce(ctx context.Context, seq iter.Seq[tile.Coord]) (int64, error) {
	var n int64
	for c := range seq {
		if err := r.Queue.Push(ctx, tile.Pack(c)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Finish closes the queue, waits for the workers to drain it and reports.
func (r *Run) Finish() Summary {
	r.Queue.Close()
	r.wg.Wait()
	r.Queue.markComplete()

	s := r.Summary()
	r.log.WithFields(logrus.Fields{
		"removed":  s.Removed,
		"rendered": s.Rendered,
		"skipped":  s.Skipped,
		"failed":   s.Failed,
	}).Infof("task %s finished in %.3fs", r.ID, s.Elapsed.Seconds())
	return s
}

// Summary 当前计数快照
func (r *Run) Summary() Summary {
	var elapsed time.Duration
	if !r.Started.IsZero() {
		elapsed = time.Since(r.Started)
	}
	return Summary{
		ID:       r.ID,
		Removed:  r.removed.Load(),
		Skipped:  r.skipped.Load(),
		Rendered: r.rendered.Load(),
		Failed:   r.failed.Load(),
		Elapsed:  elapsed,
	}
}

// AddRemoved etc. bump the counters.
func (r *Run) AddRemoved(n int64) int64  { return r.removed.Add(n) }
func (r *Run) AddSkipped(n int64) int64  { return r.skipped.Add(n) }
func (r *Run) AddRendered(n int64) int64 { return r.rendered.Add(n) }
func (r *Run) AddFailed(n int64) int64   { return r.failed.Add(n) }

func (r *Run) Removed() int64  { return r.removed.Load() }
func (r *Run) Skipped() int64  { return r.skipped.Load() }
func (r *Run) Rendered() int64 { return r.rendered.Load() }
func (r *Run) Failed() int64   { return r.failed.Load() }
