package batch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tilecache/batch"
	"tilecache/tile"
)

func TestQueueStates(t *testing.T) {
	q := batch.NewQueue(0)
	require.Equal(t, batch.DefaultQueueSize, q.Cap())
	require.Equal(t, batch.Filling, q.State())
	require.False(t, q.Done())

	require.True(t, q.TryPush(tile.Pack(tile.Coord{Z: 1, X: 1, Y: 0})))
	q.Close()
	q.Close()
	require.True(t, q.Done())
	require.Equal(t, batch.Draining, q.State())

	id, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, tile.Coord{Z: 1, X: 1, Y: 0}, id.Unpack())

	_, ok = q.Pop()
	require.False(t, ok)
}

func TestQueueTryPushFull(t *testing.T) {
	q := batch.NewQueue(2)
	require.True(t, q.TryPush(1))
	require.True(t, q.TryPush(2))
	require.False(t, q.TryPush(3))
	require.Equal(t, 2, q.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.Push(ctx, 3), context.DeadlineExceeded)

	id, ok := q.TryPop()
	require.True(t, ok)
	require.Equal(t, tile.PackedID(1), id)
}

func TestRunBackpressureLosesNothing(t *testing.T) {
	run := batch.NewRun(batch.Options{Threads: 3, QueueSize: 4})

	var mu sync.Mutex
	seen := make(map[tile.Coord]int)
	release := make(chan struct{})
	err := run.Start(context.Background(), func(int) (batch.Handler, error) {
		return batch.HandlerFunc(func(_ context.Context, c tile.Coord) {
			<-release
			mu.Lock()
			seen[c]++
			mu.Unlock()
		}), nil
	})
	require.NoError(t, err)
	require.Equal(t, batch.Filling, run.Queue.State())

	area, err := batch.NewArea(0, 5, batch.World)
	require.NoError(t, err)

	type result struct {
		n   int64
		err error
	}
	produced := make(chan result)
	go func() {
		n, err := run.Produce(context.Background(), area.Tiles())
		produced <- result{n, err}
	}()

	// workers are parked, so the producer must be blocked on a full queue
	require.Eventually(t, func() bool {
		return run.Queue.Len() == run.Queue.Cap()
	}, time.Second, time.Millisecond)
	close(release)

	res := <-produced
	require.NoError(t, res.err)
	n := res.n
	s := run.Finish()
	require.Equal(t, batch.Complete, run.Queue.State())
	require.Equal(t, area.Count(), n)
	require.Equal(t, run.ID, s.ID)

	require.Len(t, seen, int(n))
	for c, k := range seen {
		require.Equalf(t, 1, k, "tile %v handled %d times", c, k)
	}
}
