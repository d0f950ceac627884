package core

import "sync"

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// Key code definitions, only the keys the application binds.
type KeyCode uint16

const (
	KEY_ESCAPE KeyCode = 0x1B
	KEY_SPACE  KeyCode = 0x20
	KEY_1      KeyCode = 0x31
	KEY_2      KeyCode = 0x32
	KEY_3      KeyCode = 0x33
	KEY_C      KeyCode = 0x43
	KEY_P      KeyCode = 0x50
	KEY_R      KeyCode = 0x52

	KEYS_MAX_KEYS KeyCode = 0xFF
)

type MouseState struct {
	X       float32
	Y       float32
	Buttons [BUTTON_MAX_BUTTONS]bool
}

type KeyboardState struct {
	Keys [KEYS_MAX_KEYS + 1]bool
}

// Input state structure that holds current and previous states for keyboard and mouse
type InputState struct {
	mu               sync.Mutex
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState
	MouseCurrent     MouseState
	MousePrevious    MouseState
}

var onceInput sync.Once
var inputState *InputState

func InputInitialize() error {
	onceInput.Do(func() {
		inputState = &InputState{}
		LogInfo("Input subsystem initialized.")
	})
	return nil
}

func InputShutdown() error {
	return nil
}

// InputUpdate copies current states to previous states, call once per frame.
func InputUpdate(deltaTime float64) error {
	if inputState == nil {
		return nil
	}
	inputState.mu.Lock()
	defer inputState.mu.Unlock()
	inputState.KeyboardPrevious = inputState.KeyboardCurrent
	inputState.MousePrevious = inputState.MouseCurrent
	return nil
}

func InputIsKeyDown(key KeyCode) bool {
	if inputState == nil {
		return false
	}
	inputState.mu.Lock()
	defer inputState.mu.Unlock()
	return inputState.KeyboardCurrent.Keys[key]
}

func InputWasKeyDown(key KeyCode) bool {
	if inputState == nil {
		return false
	}
	inputState.mu.Lock()
	defer inputState.mu.Unlock()
	return inputState.KeyboardPrevious.Keys[key]
}

func InputProcessKey(key KeyCode, pressed bool) error {
	if inputState == nil || key > KEYS_MAX_KEYS {
		return nil
	}
	inputState.mu.Lock()
	changed := inputState.KeyboardCurrent.Keys[key] != pressed
	inputState.KeyboardCurrent.Keys[key] = pressed
	inputState.mu.Unlock()

	// Only handle this if the state actually changed.
	if changed {
		code := EVENT_CODE_KEY_RELEASED
		if pressed {
			code = EVENT_CODE_KEY_PRESSED
		}
		EventFire(EventContext{
			Type: code,
			Data: &KeyEvent{KeyCode: key},
		})
	}
	return nil
}

func InputIsButtonDown(button Button) bool {
	if inputState == nil {
		return false
	}
	inputState.mu.Lock()
	defer inputState.mu.Unlock()
	return inputState.MouseCurrent.Buttons[button]
}

func InputGetMousePosition() (float32, float32) {
	if inputState == nil {
		return 0, 0
	}
	inputState.mu.Lock()
	defer inputState.mu.Unlock()
	return inputState.MouseCurrent.X, inputState.MouseCurrent.Y
}

func InputProcessButton(button Button, pressed bool) error {
	if inputState == nil || button >= BUTTON_MAX_BUTTONS {
		return nil
	}
	inputState.mu.Lock()
	changed := inputState.MouseCurrent.Buttons[button] != pressed
	inputState.MouseCurrent.Buttons[button] = pressed
	x, y := inputState.MouseCurrent.X, inputState.MouseCurrent.Y
	inputState.mu.Unlock()

	if changed {
		code := EVENT_CODE_BUTTON_RELEASED
		if pressed {
			code = EVENT_CODE_BUTTON_PRESSED
		}
		EventFire(EventContext{
			Type: code,
			Data: &MouseEvent{Button: button, PosX: x, PosY: y},
		})
	}
	return nil
}

func InputProcessMouseMove(x, y float32) error {
	if inputState == nil {
		return nil
	}
	inputState.mu.Lock()
	changed := inputState.MouseCurrent.X != x || inputState.MouseCurrent.Y != y
	inputState.MouseCurrent.X = x
	inputState.MouseCurrent.Y = y
	inputState.mu.Unlock()

	if changed {
		EventFire(EventContext{
			Type: EVENT_CODE_MOUSE_MOVED,
			Data: &MouseEvent{PosX: x, PosY: y},
		})
	}
	return nil
}

func InputProcessMouseWheel(zDelta int8) error {
	EventFire(EventContext{
		Type: EVENT_CODE_MOUSE_WHEEL,
		Data: &MouseEvent{Scroll: zDelta},
	})
	return nil
}
