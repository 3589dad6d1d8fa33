package batch

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// ProgressEvery 每处理多少张瓦片记录一次进度日志
const ProgressEvery = 100

// Progress 已知总数的进度: 定期日志 + 可选 pb 进度条.
// Done counts skipped tiles too.
type Progress struct {
	run   *Run
	total int64
	every int64
	done  atomic.Int64
	bar   *pb.ProgressBar
}

// NewProgress out == nil disables the bar and keeps the log lines.
func NewProgress(run *Run, total int64, out io.Writer) *Progress {
	p := &Progress{run: run, total: total, every: ProgressEvery}
	if out != nil && total > 0 {
		bar := pb.New64(total).Prefix("Tiles : ")
		bar.Output = out
		bar.ShowSpeed = true
		bar.SetRefreshRate(time.Second)
		bar.Start()
		p.bar = bar
	}
	return p
}

// Add records n finished tiles.
func (p *Progress) Add(n int64) {
	if n <= 0 {
		return
	}
	v := p.done.Add(n)
	if p.bar != nil {
		p.bar.Add64(n)
	}
	// log once per crossed multiple of every
	if v/p.every == (v-n)/p.every {
		return
	}
	var percent float64
	if p.total > 0 {
		percent = 100 * float64(v) / float64(p.total)
	}
	secs := time.Since(p.run.Started).Seconds()
	var rate float64
	if secs > 0 {
		rate = float64(v) / secs
	}
	p.run.Log().Infof("%d/%d (%.3f%%) done. (%d skipped) %.3fs %.3f tiles/s.",
		v, p.total, percent, p.run.Skipped(), secs, rate)
}

// Done 已完成数
func (p *Progress) Done() int64 {
	return p.done.Load()
}

// Finish 结束进度条
func (p *Progress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}

// Spinner 总数未知时的计数器 (读 stdin 的过期列表)
type Spinner struct {
	bar *progressbar.ProgressBar
}

// NewSpinner out == nil gives a no-op spinner.
func NewSpinner(out io.Writer, desc string) *Spinner {
	if out == nil {
		return &Spinner{}
	}
	return &Spinner{bar: progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowIts(),
		progressbar.OptionShowCount(),
	)}
}

// Add 计数加一
func (s *Spinner) Add() {
	if s.bar != nil {
		_ = s.bar.Add(1)
	}
}

// Finish 结束
func (s *Spinner) Finish() {
	if s.bar != nil {
		_ = s.bar.Finish()
	}
}

// lockedWriter 串行化多个 worker 的整行输出
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newLockedWriter(w io.Writer) *lockedWriter {
	if w == nil {
		w = io.Discard
	}
	return &lockedWriter{w: w}
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
