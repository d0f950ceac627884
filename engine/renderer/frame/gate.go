package frame

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of frames between CPU submission and GPU completion.
// Its capacity must equal the depth of every uniform ring it protects.
type Gate struct {
	capacity    int
	sem         *semaphore.Weighted
	outstanding atomic.Int64
}

func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{
		capacity: capacity,
		sem:      semaphore.NewWeighted(int64(capacity)),
	}
}

// Acquire blocks until fewer than Capacity frames are outstanding. There is no
// timeout: a GPU that never completes stalls the caller for good.
func (g *Gate) Acquire() {
	_ = g.AcquireContext(context.Background())
}

// AcquireContext is Acquire bounded by ctx. On error nothing was acquired.
func (g *Gate) AcquireContext(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.outstanding.Add(1)
	return nil
}

// TryAcquire admits a frame only if capacity is available right now.
func (g *Gate) TryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.outstanding.Add(1)
	return true
}

// Release returns one unit. Releasing more than was acquired panics.
func (g *Gate) Release() {
	g.outstanding.Add(-1)
	g.sem.Release(1)
}

func (g *Gate) Capacity() int {
	return g.capacity
}

func (g *Gate) Outstanding() int {
	return int(g.outstanding.Load())
}

// Drain waits for every outstanding frame and keeps the gate closed.
func (g *Gate) Drain(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, int64(g.capacity)); err != nil {
		return err
	}
	g.outstanding.Add(int64(g.capacity))
	return nil
}
