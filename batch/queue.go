// Package batch 批量瓦片处理: 有界队列 + 工作池, 用于过期删除与批量渲染.
package batch

import (
	"context"
	"sync"
	"sync/atomic"

	"tilecache/tile"
)

// DefaultQueueSize 队列默认容量
const DefaultQueueSize = 1024

// State 队列状态
type State int32

const (
	// Filling 生产者仍在推送
	Filling State = iota
	// Draining 生产结束, 工作者消费剩余任务
	Draining
	// Complete 队列已空且所有工作者已退出
	Complete
)

func (s State) String() string {
	switch s {
	case Filling:
		return "filling"
	case Draining:
		return "draining"
	case Complete:
		return "complete"
	}
	return "unknown"
}

// Queue 有界多生产者多消费者队列, 元素为 tile.PackedID.
//
// Push blocks while the queue is full, so nothing enumerated is ever
// dropped. Close sets the done flag: Pop keeps returning queued items and
// reports false only once the queue is both done and empty.
type Queue struct {
	ch       chan tile.PackedID
	done     atomic.Bool
	complete atomic.Bool
	once     sync.Once
}

// NewQueue size <= 0 means DefaultQueueSize.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan tile.PackedID, size)}
}

// Push 阻塞推送, ctx 取消时返回 ctx.Err(). Push after Close panics.
func (q *Queue) Push(ctx context.Context, id tile.PackedID) error {
	select {
	case q.ch <- id:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush 非阻塞推送, 队列满时返回 false
func (q *Queue) TryPush(id tile.PackedID) bool {
	select {
	case q.ch <- id:
		return true
	default:
		return false
	}
}

// Pop 阻塞取出; ok is false once the queue is done and drained.
func (q *Queue) Pop() (tile.PackedID, bool) {
	id, ok := <-q.ch
	return id, ok
}

// TryPop 非阻塞取出
func (q *Queue) TryPop() (tile.PackedID, bool) {
	select {
	case id, ok := <-q.ch:
		return id, ok
	default:
		return 0, false
	}
}

// Close marks the end of production. Safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.done.Store(true)
		close(q.ch)
	})
}

// Done 生产是否已结束
func (q *Queue) Done() bool {
	return q.done.Load()
}

// Len 队列中等待的任务数
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap 队列容量
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// State 当前状态
func (q *Queue) State() State {
	switch {
	case !q.done.Load():
		return Filling
	case q.complete.Load():
		return Complete
	default:
		return Draining
	}
}

func (q *Queue) markComplete() {
	q.complete.Store(true)
}
