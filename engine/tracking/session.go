package tracking

import (
	"context"

	"github.com/spaghettifunk/array/engine/math"
)

type Session interface {
	// CurrentFrame returns the latest frame or nil before the first one.
	CurrentFrame() *Frame
	// AddAnchor registers a new anchor, it shows up in later frames.
	AddAnchor(transform math.Mat4) (Anchor, error)
	// Run produces frames until ctx is done or the session fails.
	Run(ctx context.Context) error
	Pause()
	Resume()
	SetDelegate(d SessionDelegate)
}

// SessionDelegate receives session state changes. Calls arrive on the session goroutine.
type SessionDelegate interface {
	SessionWasInterrupted(s Session)
	SessionInterruptionEnded(s Session)
	SessionDidFail(s Session, err error)
}
