package frame

import (
	"fmt"

	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

// MinUniformAlignment is the smallest slot alignment the ring accepts,
// devices may require more.
const MinUniformAlignment = 256

// Uniform is a value with a fixed GPU layout. Size must not depend on the
// receiver's contents, the ring sizes its slots from the zero value.
type Uniform interface {
	Size() int
	Encode(dst []byte)
}

func AlignedSize(size, alignment int) int {
	if alignment < MinUniformAlignment {
		alignment = MinUniformAlignment
	}
	return int(metadata.GetAligned(uint64(size), uint64(alignment)))
}

// Ring divides one buffer into depth equally sized aligned slots and cycles
// through them. It does not know whether the GPU still reads a slot, that is
// the Gate's job.
type Ring[T Uniform] struct {
	buffer      metadata.Buffer
	depth       int
	logicalSize int
	alignedSize int
	counter     uint64
	scratch     []byte
}

func NewRing[T Uniform](device metadata.Device, label string, depth int, usage metadata.BufferUsage) (*Ring[T], error) {
	if depth < 1 {
		return nil, fmt.Errorf("ring %s: depth %d: %w", label, depth, core.ErrInvalidConfig)
	}
	var zero T
	logical := zero.Size()
	aligned := AlignedSize(logical, device.MinUniformBufferOffsetAlignment())
	buf, err := device.NewBuffer(label, aligned*depth, usage)
	if err != nil {
		return nil, fmt.Errorf("ring %s: %w", label, err)
	}
	return &Ring[T]{
		buffer:      buf,
		depth:       depth,
		logicalSize: logical,
		alignedSize: aligned,
		scratch:     make([]byte, logical),
	}, nil
}

// Next hands out the slot for the coming frame and advances the cursor.
func (r *Ring[T]) Next() Slot[T] {
	index := int(r.counter % uint64(r.depth))
	r.counter++
	return Slot[T]{
		ring:   r,
		Index:  index,
		Offset: r.alignedSize * index,
	}
}

func (r *Ring[T]) Buffer() metadata.Buffer {
	return r.buffer
}

func (r *Ring[T]) Depth() int {
	return r.depth
}

func (r *Ring[T]) AlignedSize() int {
	return r.alignedSize
}

func (r *Ring[T]) Release() {
	r.buffer.Release()
}

// Slot is the write handle for one frame's region of the ring.
type Slot[T Uniform] struct {
	ring   *Ring[T]
	Index  int
	Offset int
}

func (s Slot[T]) Buffer() metadata.Buffer {
	return s.ring.buffer
}

// Write encodes v into the slot.
func (s Slot[T]) Write(v T) error {
	if v.Size() > s.ring.alignedSize {
		return fmt.Errorf("slot %d: %d bytes into %d: %w", s.Index, v.Size(), s.ring.alignedSize, core.ErrOutOfBounds)
	}
	dst := s.ring.scratch[:0]
	if cap(dst) < v.Size() {
		dst = make([]byte, v.Size())
		s.ring.scratch = dst
	}
	dst = dst[:v.Size()]
	v.Encode(dst)
	return s.ring.buffer.Write(s.Offset, dst)
}
