package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEvents(t *testing.T) {
	t.Helper()
	EventSystemInitialize()
	require.NoError(t, InputInitialize())
	t.Cleanup(func() { _ = EventSystemShutdown() })
}

func TestEventsAreQueuedUntilDispatch(t *testing.T) {
	setupEvents(t)

	var got []EventCode
	EventRegister(EVENT_CODE_RESIZED, func(ctx EventContext) bool {
		got = append(got, ctx.Type)
		return false
	})

	assert.True(t, EventFire(EventContext{Type: EVENT_CODE_RESIZED}))
	assert.Empty(t, got)
	assert.Equal(t, 1, EventDispatch())
	assert.Equal(t, []EventCode{EVENT_CODE_RESIZED}, got)
	assert.Zero(t, EventDispatch())
}

func TestHandledEventStopsPropagation(t *testing.T) {
	setupEvents(t)

	calls := 0
	EventRegister(EVENT_CODE_APPLICATION_QUIT, func(EventContext) bool {
		calls++
		return true
	})
	EventRegister(EVENT_CODE_APPLICATION_QUIT, func(EventContext) bool {
		t.Fatal("second listener must not run")
		return false
	})
	EventFire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT})
	EventDispatch()
	assert.Equal(t, 1, calls)
}

func TestEventsFiredDuringDispatchWaitForTheNextOne(t *testing.T) {
	setupEvents(t)

	followed := 0
	EventRegister(EVENT_CODE_CONFIG_RELOADED, func(EventContext) bool {
		EventFire(EventContext{Type: EVENT_CODE_DISPLAY_MODE_CHANGED})
		return true
	})
	EventRegister(EVENT_CODE_DISPLAY_MODE_CHANGED, func(EventContext) bool {
		followed++
		return true
	})

	EventFire(EventContext{Type: EVENT_CODE_CONFIG_RELOADED})
	assert.Equal(t, 1, EventDispatch())
	assert.Zero(t, followed)
	assert.Equal(t, 1, EventDispatch())
	assert.Equal(t, 1, followed)
}

func TestEventFireFromManyGoroutines(t *testing.T) {
	setupEvents(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				EventFire(EventContext{Type: EVENT_CODE_MOUSE_MOVED})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, EventDispatch())
}

func TestShutdownClearsListenersAndQueue(t *testing.T) {
	setupEvents(t)

	EventRegister(EVENT_CODE_KEY_PRESSED, func(EventContext) bool {
		t.Fatal("listener survived shutdown")
		return true
	})
	EventFire(EventContext{Type: EVENT_CODE_KEY_PRESSED})
	require.NoError(t, EventSystemShutdown())
	assert.Zero(t, EventDispatch())

	assert.False(t, EventUnregisterAll(EVENT_CODE_KEY_PRESSED))
	assert.False(t, EventRegister(EVENT_CODE_KEY_PRESSED, nil))
}

func TestInputFiresOnStateChangeOnly(t *testing.T) {
	setupEvents(t)

	var keys []EventCode
	record := func(ctx EventContext) bool {
		keys = append(keys, ctx.Type)
		return false
	}
	EventRegister(EVENT_CODE_KEY_PRESSED, record)
	EventRegister(EVENT_CODE_KEY_RELEASED, record)

	require.NoError(t, InputProcessKey(KEY_P, true))
	require.NoError(t, InputProcessKey(KEY_P, true))
	assert.True(t, InputIsKeyDown(KEY_P))
	require.NoError(t, InputUpdate(0))
	assert.True(t, InputWasKeyDown(KEY_P))
	require.NoError(t, InputProcessKey(KEY_P, false))
	EventDispatch()

	assert.Equal(t, []EventCode{EVENT_CODE_KEY_PRESSED, EVENT_CODE_KEY_RELEASED}, keys)
	assert.False(t, InputIsKeyDown(KEY_P))
}

func TestButtonCarriesCursorPosition(t *testing.T) {
	setupEvents(t)

	var got *MouseEvent
	EventRegister(EVENT_CODE_BUTTON_PRESSED, func(ctx EventContext) bool {
		got = ctx.Data.(*MouseEvent)
		return true
	})
	require.NoError(t, InputProcessMouseMove(12, 34))
	require.NoError(t, InputProcessButton(BUTTON_LEFT, true))
	EventDispatch()
	require.NoError(t, InputProcessButton(BUTTON_LEFT, false))

	require.NotNil(t, got)
	assert.Equal(t, MouseEvent{Button: BUTTON_LEFT, PosX: 12, PosY: 34}, *got)
	x, y := InputGetMousePosition()
	assert.Equal(t, float32(12), x)
	assert.Equal(t, float32(34), y)
}

func TestMetricsAverages(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)
	assert.Zero(t, m.FPS())

	for i := 0; i < 100; i++ {
		m.Update(0.010)
	}
	fps, ms := m.Frame()
	assert.InDelta(t, 100, fps, 1)
	assert.InDelta(t, 10.0, ms, 1e-9)
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		" INFO ":  InfoLevel,
		"warning": WarnLevel,
		"warn":    WarnLevel,
		"error":   ErrorLevel,
		"fatal":   FatalLevel,
		"verbose": InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
	assert.Equal(t, "warn", WarnLevel.String())
}

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	assert.Zero(t, c.Elapsed())

	c.Start()
	c.Update()
	assert.GreaterOrEqual(t, c.Elapsed(), 0.0)
	c.Stop()
	before := c.Elapsed()
	c.Update()
	assert.Equal(t, before, c.Elapsed())
}
