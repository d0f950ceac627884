package frame

import "sync"

// Releaser is anything a frame keeps alive until the GPU is done with it.
type Releaser interface {
	Release()
}

type ReleaseFunc func()

func (f ReleaseFunc) Release() { f() }

// Bundle collects the resources retained by one frame. Release runs each of
// them exactly once, however often it is called.
type Bundle struct {
	mu        sync.Mutex
	resources []Releaser
	once      sync.Once
	released  bool
}

func NewBundle() *Bundle {
	return &Bundle{}
}

// Retain adds r. Retaining after Release releases r immediately.
func (b *Bundle) Retain(r Releaser) {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		r.Release()
		return
	}
	b.resources = append(b.resources, r)
	b.mu.Unlock()
}

func (b *Bundle) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.resources)
}

func (b *Bundle) Release() {
	b.once.Do(func() {
		b.mu.Lock()
		resources := b.resources
		b.resources = nil
		b.released = true
		b.mu.Unlock()
		for _, r := range resources {
			r.Release()
		}
	})
}
