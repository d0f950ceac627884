package frame

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/renderer/headless"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

type counter struct {
	value uint32
}

func (counter) Size() int { return 208 }

func (c counter) Encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst, c.value)
}

func TestGateBlocksPastCapacity(t *testing.T) {
	for n := 1; n <= 4; n++ {
		g := NewGate(n)
		for i := 0; i < n; i++ {
			require.True(t, g.TryAcquire(), "admission %d of %d", i+1, n)
		}
		assert.Equal(t, n, g.Outstanding())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		err := g.AcquireContext(ctx)
		cancel()
		assert.ErrorIs(t, err, context.DeadlineExceeded, "admission %d must block", n+1)
		assert.Equal(t, n, g.Outstanding())
	}
}

func TestGateReleaseUnblocksWaiter(t *testing.T) {
	g := NewGate(2)
	g.Acquire()
	g.Acquire()

	admitted := make(chan struct{})
	go func() {
		g.Acquire()
		close(admitted)
	}()

	select {
	case <-admitted:
		t.Fatal("third frame admitted before any release")
	case <-time.After(20 * time.Millisecond):
	}

	g.Release()
	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("release did not unblock the waiting frame")
	}
}

func TestGateOverReleasePanics(t *testing.T) {
	g := NewGate(1)
	assert.Panics(t, func() { g.Release() })
}

func TestGateDrain(t *testing.T) {
	g := NewGate(3)
	g.Acquire()
	go func() {
		time.Sleep(10 * time.Millisecond)
		g.Release()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, g.Drain(ctx))
	assert.False(t, g.TryAcquire())
}

func TestAlignedSize(t *testing.T) {
	assert.Equal(t, 256, AlignedSize(208, 0))
	assert.Equal(t, 256, AlignedSize(256, 64))
	assert.Equal(t, 512, AlignedSize(300, 256))
	assert.Equal(t, 4096, AlignedSize(4096, 256))
	assert.Equal(t, 1024, AlignedSize(208, 1024))
}

func TestRingOffsetsCycleAndAlign(t *testing.T) {
	dev := headless.NewDevice(headless.Options{Completion: headless.CompletionManual})
	defer dev.Release()

	const depth = 3
	ring, err := NewRing[counter](dev, "shared", depth, metadata.BufferUsageUniform)
	require.NoError(t, err)
	assert.Equal(t, 256*depth, ring.Buffer().Size())

	seen := map[int]bool{}
	for i := 0; i < depth; i++ {
		slot := ring.Next()
		assert.Equal(t, i, slot.Index)
		assert.Zero(t, slot.Offset%256)
		assert.False(t, seen[slot.Offset], "offsets within one cycle must not alias")
		seen[slot.Offset] = true
		require.NoError(t, slot.Write(counter{value: uint32(i + 1)}))
	}
	// wraps to slot 0
	assert.Equal(t, 0, ring.Next().Offset)

	buf := ring.Buffer().(*headless.Buffer)
	for i := 0; i < depth; i++ {
		assert.Equal(t, uint32(i+1), binary.LittleEndian.Uint32(buf.Bytes(i*256, 4)))
	}
}

func TestRingHonoursDeviceAlignment(t *testing.T) {
	dev := headless.NewDevice(headless.Options{MinUniformAlignment: 1024, Completion: headless.CompletionManual})
	defer dev.Release()

	ring, err := NewRing[counter](dev, "shared", 2, metadata.BufferUsageUniform)
	require.NoError(t, err)
	ring.Next()
	assert.Equal(t, 1024, ring.Next().Offset)
}

func TestRingRejectsZeroDepth(t *testing.T) {
	dev := headless.NewDevice(headless.Options{Completion: headless.CompletionManual})
	defer dev.Release()

	_, err := NewRing[counter](dev, "shared", 0, metadata.BufferUsageUniform)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestBundleReleasesOnce(t *testing.T) {
	b := NewBundle()
	calls := 0
	b.Retain(ReleaseFunc(func() { calls++ }))
	b.Retain(ReleaseFunc(func() { calls++ }))
	assert.Equal(t, 2, b.Len())

	b.Release()
	b.Release()
	assert.Equal(t, 2, calls)

	b.Retain(ReleaseFunc(func() { calls++ }))
	assert.Equal(t, 3, calls, "late retain is released immediately")
}
