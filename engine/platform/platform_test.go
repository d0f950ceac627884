package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/stretchr/testify/assert"
)

func TestTranslateKey(t *testing.T) {
	cases := map[glfw.Key]core.KeyCode{
		glfw.KeyEscape: core.KEY_ESCAPE,
		glfw.KeySpace:  core.KEY_SPACE,
		glfw.Key1:      core.KEY_1,
		glfw.Key2:      core.KEY_2,
		glfw.Key3:      core.KEY_3,
		glfw.KeyC:      core.KEY_C,
		glfw.KeyP:      core.KEY_P,
		glfw.KeyR:      core.KEY_R,
	}
	for key, want := range cases {
		got, ok := translateKey(key)
		assert.True(t, ok, "key %d", key)
		assert.Equal(t, want, got)
	}

	_, ok := translateKey(glfw.KeyF1)
	assert.False(t, ok)
}

func TestTranslateButton(t *testing.T) {
	b, ok := translateButton(glfw.MouseButtonLeft)
	assert.True(t, ok)
	assert.Equal(t, core.BUTTON_LEFT, b)

	_, ok = translateButton(glfw.MouseButton4)
	assert.False(t, ok)
}

func TestFramebufferSizeFiresResize(t *testing.T) {
	core.EventSystemInitialize()
	var got *core.SystemEvent
	core.EventRegister(core.EVENT_CODE_RESIZED, func(ctx core.EventContext) bool {
		got = ctx.Data.(*core.SystemEvent)
		return true
	})
	defer core.EventUnregisterAll(core.EVENT_CODE_RESIZED)

	framebufferSizeCallback(nil, 800, 600)
	core.EventDispatch()
	if assert.NotNil(t, got) {
		assert.Equal(t, uint32(800), got.WindowWidth)
		assert.Equal(t, uint32(600), got.WindowHeight)
	}
}
