package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type EventCode uint16

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01
	// Data: *KeyEvent
	EVENT_CODE_KEY_PRESSED EventCode = 0x02
	// Data: *KeyEvent
	EVENT_CODE_KEY_RELEASED EventCode = 0x03
	// Data: *MouseEvent with Button, PosX, PosY
	EVENT_CODE_BUTTON_PRESSED EventCode = 0x04
	// Data: *MouseEvent with Button, PosX, PosY
	EVENT_CODE_BUTTON_RELEASED EventCode = 0x05
	// Data: *MouseEvent with PosX, PosY
	EVENT_CODE_MOUSE_MOVED EventCode = 0x06
	// Data: *MouseEvent with Scroll
	EVENT_CODE_MOUSE_WHEEL EventCode = 0x07
	// Resized/resolution changed from the OS. Data: *SystemEvent
	EVENT_CODE_RESIZED EventCode = 0x08

	// Display mode selection changed. Data: renderer.DisplayMode
	EVENT_CODE_DISPLAY_MODE_CHANGED EventCode = 0x10
	// Tracking session state. Data: error for failures, nil otherwise.
	EVENT_CODE_TRACKING_INTERRUPTED     EventCode = 0x11
	EVENT_CODE_TRACKING_INTERRUPT_ENDED EventCode = 0x12
	EVENT_CODE_TRACKING_FAILED          EventCode = 0x13
	// Config file changed on disk and was reloaded. Data: the new config.
	EVENT_CODE_CONFIG_RELOADED EventCode = 0x14
	// A watched shader binary changed. Data: the shader name as string.
	EVENT_CODE_SHADER_CHANGED EventCode = 0x15

	MAX_EVENT_CODE EventCode = 0xFF
)

type EventContext struct {
	Type EventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type MouseEvent struct {
	Button Button
	PosX   float32
	PosY   float32
	Scroll int8
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

// Events fired from any goroutine are queued and handed to listeners by
// EventDispatch on the frame loop goroutine, so listeners never race the renderer.
type eventSystemState struct {
	mu         sync.Mutex
	registered map[EventCode][]FnOnEvent
	queue      []EventContext
}

var onceEvent sync.Once
var eventState *eventSystemState

func EventSystemInitialize() bool {
	initialized := false
	onceEvent.Do(func() {
		eventState = &eventSystemState{
			registered: make(map[EventCode][]FnOnEvent),
		}
		initialized = true
	})
	return initialized
}

func EventSystemShutdown() error {
	if eventState == nil {
		return nil
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	eventState.registered = make(map[EventCode][]FnOnEvent)
	eventState.queue = nil
	return nil
}

/**
 * Register to listen for when events are sent with the provided code.
 * Listeners are invoked in registration order.
 */
func EventRegister(code EventCode, onEvent FnOnEvent) bool {
	if eventState == nil || onEvent == nil {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	eventState.registered[code] = append(eventState.registered[code], onEvent)
	return true
}

// EventUnregisterAll drops every listener for code.
func EventUnregisterAll(code EventCode) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	if len(eventState.registered[code]) == 0 {
		return false
	}
	delete(eventState.registered, code)
	return true
}

/**
 * Queues an event for the next EventDispatch. Safe from any goroutine.
 */
func EventFire(context EventContext) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	eventState.queue = append(eventState.queue, context)
	return true
}

/**
 * Delivers every queued event. If a listener returns true the event is
 * considered handled and is not passed on to any more listeners.
 * Returns the number of events delivered.
 */
func EventDispatch() int {
	if eventState == nil {
		return 0
	}
	eventState.mu.Lock()
	pending := eventState.queue
	eventState.queue = nil
	eventState.mu.Unlock()

	for _, ev := range pending {
		eventState.mu.Lock()
		listeners := append([]FnOnEvent(nil), eventState.registered[ev.Type]...)
		eventState.mu.Unlock()
		for _, fn := range listeners {
			if fn(ev) {
				break
			}
		}
	}
	return len(pending)
}
