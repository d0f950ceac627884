package tracking

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"
	"github.com/google/uuid"
	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/math"
)

type SimulatedConfig struct {
	// Rate is the number of frames per second.
	Rate            float64
	ImageResolution image.Point
	FieldOfView     float32
	OrbitRadius     float32
	OrbitHeight     float32
	// OrbitSpeed in radians per second.
	OrbitSpeed float32
	// Jitter is the amplitude of hand shake in radians.
	Jitter float32
	// LightIntensity is the mean ambient intensity, zero disables light estimation.
	LightIntensity float32
	LightDrift     float32
	Seed           uint64
	Background     image.Image
}

func DefaultSimulatedConfig() SimulatedConfig {
	return SimulatedConfig{
		Rate:            30,
		ImageResolution: image.Pt(640, 360),
		FieldOfView:     math.DegToRad(48),
		OrbitRadius:     0.6,
		OrbitHeight:     0.15,
		OrbitSpeed:      0.2,
		Jitter:          0.004,
		LightIntensity:  1000,
		LightDrift:      250,
		Seed:            1,
	}
}

// SimulatedSession stands in for a device tracking stack. The camera orbits
// the world origin with a little hand shake, and the captured image pans a
// background picture along with the camera.
type SimulatedSession struct {
	cfg SimulatedConfig
	rng *rand.Rand

	mu          sync.Mutex
	anchors     []Anchor
	elapsed     time.Duration
	interrupted bool
	failed      error
	delegate    SessionDelegate

	current atomic.Pointer[Frame]
	paused  atomic.Bool
}

func NewSimulatedSession(cfg SimulatedConfig) *SimulatedSession {
	if cfg.Rate <= 0 {
		cfg.Rate = 30
	}
	if cfg.ImageResolution.X <= 0 || cfg.ImageResolution.Y <= 0 {
		cfg.ImageResolution = image.Pt(640, 360)
	}
	if cfg.Background == nil {
		cfg.Background = DefaultBackground(image.Pt(cfg.ImageResolution.X*2, cfg.ImageResolution.Y))
	}
	return &SimulatedSession{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (s *SimulatedSession) SetDelegate(d SessionDelegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegate = d
}

func (s *SimulatedSession) CurrentFrame() *Frame {
	return s.current.Load()
}

func (s *SimulatedSession) AddAnchor(transform math.Mat4) (Anchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interrupted || s.failed != nil {
		return Anchor{}, core.ErrSessionNotActive
	}
	a := Anchor{ID: uuid.New(), Transform: transform}
	s.anchors = append(s.anchors, a)
	return a, nil
}

// Run ticks at the configured rate until ctx is done.
func (s *SimulatedSession) Run(ctx context.Context) error {
	period := time.Duration(float64(time.Second) / s.cfg.Rate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	core.LogInfo("simulated tracking session running at %.0f Hz", s.cfg.Rate)
	s.Step(0)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.paused.Load() {
				continue
			}
			if err := s.Step(period); err != nil {
				return err
			}
		}
	}
}

// Pause stops frame production. The last frame stays current.
func (s *SimulatedSession) Pause() {
	s.paused.Store(true)
}

func (s *SimulatedSession) Resume() {
	s.paused.Store(false)
}

// Interrupt simulates the camera becoming unavailable, the delegate is told.
func (s *SimulatedSession) Interrupt() {
	s.mu.Lock()
	if s.interrupted {
		s.mu.Unlock()
		return
	}
	s.interrupted = true
	d := s.delegate
	s.mu.Unlock()
	if d != nil {
		d.SessionWasInterrupted(s)
	}
}

func (s *SimulatedSession) EndInterruption() {
	s.mu.Lock()
	if !s.interrupted {
		s.mu.Unlock()
		return
	}
	s.interrupted = false
	d := s.delegate
	s.mu.Unlock()
	if d != nil {
		d.SessionInterruptionEnded(s)
	}
}

// Fail stops the session for good.
func (s *SimulatedSession) Fail(err error) {
	s.mu.Lock()
	s.failed = fmt.Errorf("%w: %w", core.ErrSessionFailed, err)
	d := s.delegate
	failed := s.failed
	s.mu.Unlock()
	if d != nil {
		d.SessionDidFail(s, failed)
	}
}

func (s *SimulatedSession) Interrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupted
}

// Step advances the simulation by dt and publishes a new frame. Interrupted
// sessions publish nothing.
func (s *SimulatedSession) Step(dt time.Duration) error {
	s.mu.Lock()
	if s.failed != nil {
		err := s.failed
		s.mu.Unlock()
		return err
	}
	if s.interrupted {
		s.mu.Unlock()
		return nil
	}
	s.elapsed += dt
	elapsed := s.elapsed
	anchors := append([]Anchor(nil), s.anchors...)
	camera := s.camera(elapsed)
	light := s.light(elapsed)
	s.mu.Unlock()

	yaw := float32(elapsed.Seconds()) * s.cfg.OrbitSpeed
	pan := image.Pt(int(yaw/(2*math.K_PI)*float32(s.cfg.Background.Bounds().Dx())), 0)

	s.current.Store(&Frame{
		Timestamp:     elapsed,
		Camera:        camera,
		Anchors:       anchors,
		LightEstimate: light,
		CapturedImage: ToYCbCr(s.cfg.Background, s.cfg.ImageResolution, pan),
	})
	return nil
}

func (s *SimulatedSession) camera(elapsed time.Duration) Camera {
	angle := float32(elapsed.Seconds()) * s.cfg.OrbitSpeed
	position := math.NewVec3(
		s.cfg.OrbitRadius*math32.Sin(angle),
		s.cfg.OrbitHeight,
		s.cfg.OrbitRadius*math32.Cos(angle),
	)
	transform := math.NewMat4LookAt(position, math.NewVec3Zero(), math.NewVec3Up())
	if s.cfg.Jitter > 0 {
		shake := math.NewQuatFromAxisAngle(math.NewVec3(1, 0, 0), s.jitter()).
			Mul(math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), s.jitter()))
		transform = transform.Mul(shake.ToMat4())
	}
	return Camera{
		Transform:       transform,
		ImageResolution: math.NewVec2(float32(s.cfg.ImageResolution.X), float32(s.cfg.ImageResolution.Y)),
		FieldOfView:     s.cfg.FieldOfView,
		TrackingState:   TrackingStateNormal,
	}
}

func (s *SimulatedSession) jitter() float32 {
	return (s.rng.Float32()*2 - 1) * s.cfg.Jitter
}

func (s *SimulatedSession) light(elapsed time.Duration) *LightEstimate {
	if s.cfg.LightIntensity <= 0 {
		return nil
	}
	return &LightEstimate{
		AmbientIntensity:        s.cfg.LightIntensity + s.cfg.LightDrift*math32.Sin(float32(elapsed.Seconds())*0.5),
		AmbientColorTemperature: 6500,
	}
}
