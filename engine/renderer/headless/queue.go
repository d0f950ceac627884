package headless

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/array/engine/containers"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

var (
	ErrAlreadyCommitted = errors.New("command buffer already committed")
	ErrQueueClosed      = errors.New("command queue closed")
)

// CommandQueue completes committed buffers strictly in commit order.
type CommandQueue struct {
	mode    CompletionMode
	latency time.Duration

	mu        sync.Mutex
	cond      *sync.Cond
	pending   *containers.RingQueue[*CommandBuffer]
	history   []*CommandBuffer
	committed int
	completed int
	closed    bool
	done      chan struct{}
}

const historyLimit = 256

func newCommandQueue(opts Options) *CommandQueue {
	q := &CommandQueue{
		mode:    opts.Completion,
		latency: opts.Latency,
		pending: containers.NewRingQueue[*CommandBuffer](opts.MaxPending),
		done:    make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	if q.mode == CompletionAuto {
		go q.worker()
	} else {
		close(q.done)
	}
	return q
}

func (q *CommandQueue) CommandBuffer(label string) (metadata.CommandBuffer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}
	return &CommandBuffer{queue: q, label: label}, nil
}

func (q *CommandQueue) commit(cb *CommandBuffer) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	// Commit never blocks on the GPU, back pressure is the caller's business.
	for q.pending.IsFull() {
		q.cond.Wait()
	}
	if err := q.pending.Enqueue(cb); err != nil {
		return err
	}
	q.committed++
	q.history = append(q.history, cb)
	if len(q.history) > historyLimit {
		q.history = q.history[len(q.history)-historyLimit:]
	}
	q.cond.Broadcast()
	return nil
}

func (q *CommandQueue) worker() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for q.pending.IsEmpty() && !q.closed {
			q.cond.Wait()
		}
		if q.pending.IsEmpty() && q.closed {
			q.mu.Unlock()
			return
		}
		cb, _ := q.pending.Peek()
		q.mu.Unlock()

		if q.latency > 0 {
			time.Sleep(q.latency)
		}
		q.completeFront(cb)
	}
}

// completeFront runs cb's handlers and then pops it, so waitIdle only returns
// once every handler has finished.
func (q *CommandQueue) completeFront(cb *CommandBuffer) {
	cb.complete()
	q.mu.Lock()
	_, _ = q.pending.Dequeue()
	q.completed++
	q.cond.Broadcast()
	q.mu.Unlock()
}

// CompleteNext completes the oldest committed buffer. It returns false when
// nothing is pending. Only valid in manual mode.
func (q *CommandQueue) CompleteNext() bool {
	if q.mode != CompletionManual {
		core.LogWarn("CompleteNext called on an automatically completing queue")
		return false
	}
	q.mu.Lock()
	cb, err := q.pending.Peek()
	q.mu.Unlock()
	if err != nil {
		return false
	}
	q.completeFront(cb)
	return true
}

func (q *CommandQueue) CompleteAll() int {
	n := 0
	for q.CompleteNext() {
		n++
	}
	return n
}

func (q *CommandQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

func (q *CommandQueue) Committed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.committed
}

func (q *CommandQueue) Completed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// History returns the most recently committed buffers, oldest first.
func (q *CommandQueue) History() []*CommandBuffer {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*CommandBuffer(nil), q.history...)
}

// Last returns the most recently committed buffer or nil.
func (q *CommandQueue) Last() *CommandBuffer {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.history) == 0 {
		return nil
	}
	return q.history[len(q.history)-1]
}

func (q *CommandQueue) waitIdle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.pending.IsEmpty() {
		q.cond.Wait()
	}
}

func (q *CommandQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}

type CommandBuffer struct {
	queue *CommandQueue
	label string

	mu        sync.Mutex
	handlers  []metadata.CompletedHandler
	commands  []Command
	presented metadata.Drawable
	committed bool
	completed bool
}

func (cb *CommandBuffer) Label() string {
	return cb.label
}

func (cb *CommandBuffer) AddCompletedHandler(h metadata.CompletedHandler) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.committed {
		core.LogWarn("completed handler added to committed command buffer %s", cb.label)
		return
	}
	cb.handlers = append(cb.handlers, h)
}

func (cb *CommandBuffer) RenderCommandEncoder(pass *metadata.RenderPassDescriptor) (metadata.RenderCommandEncoder, error) {
	if pass == nil || pass.Drawable == nil {
		return nil, fmt.Errorf("command buffer %s: %w", cb.label, core.ErrNoRenderPass)
	}
	cb.record(Command{Kind: CommandBeginPass})
	return &RenderCommandEncoder{cb: cb}, nil
}

func (cb *CommandBuffer) Present(d metadata.Drawable) {
	cb.mu.Lock()
	cb.presented = d
	cb.mu.Unlock()
	if hd, ok := d.(*Drawable); ok && hd.dest != nil {
		hd.dest.retire(hd)
	}
}

func (cb *CommandBuffer) Commit() error {
	cb.mu.Lock()
	if cb.committed {
		cb.mu.Unlock()
		return fmt.Errorf("%s: %w", cb.label, ErrAlreadyCommitted)
	}
	cb.committed = true
	cb.mu.Unlock()
	return cb.queue.commit(cb)
}

func (cb *CommandBuffer) complete() {
	cb.mu.Lock()
	handlers := cb.handlers
	cb.completed = true
	cb.mu.Unlock()
	for _, h := range handlers {
		h(cb)
	}
}

func (cb *CommandBuffer) record(c Command) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.commands = append(cb.commands, c)
}

// Commands returns a copy of the recorded commands.
func (cb *CommandBuffer) Commands() []Command {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return append([]Command(nil), cb.commands...)
}

// Draws returns only draw commands.
func (cb *CommandBuffer) Draws() []Command {
	var out []Command
	for _, c := range cb.Commands() {
		if c.Kind == CommandDraw || c.Kind == CommandDrawIndexed {
			out = append(out, c)
		}
	}
	return out
}

func (cb *CommandBuffer) Presented() metadata.Drawable {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.presented
}

func (cb *CommandBuffer) Completed() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.completed
}
