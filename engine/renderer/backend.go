package renderer

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

type BackendType uint8

const (
	Vulkan BackendType = iota
	Headless
)

func (b BackendType) String() string {
	switch b {
	case Vulkan:
		return "vulkan"
	case Headless:
		return "headless"
	default:
		return fmt.Sprintf("BackendType(%d)", b)
	}
}

func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vulkan", "":
		return Vulkan, nil
	case "headless":
		return Headless, nil
	default:
		return 0, fmt.Errorf("renderer backend %q: %w", s, core.ErrInvalidConfig)
	}
}

// Backend is a GPU device together with the surface it presents to.
type Backend struct {
	Type        BackendType
	Device      metadata.Device
	Destination metadata.RenderDestination
}

// Release waits for the device and frees it.
func (b *Backend) Release() {
	if b.Device == nil {
		return
	}
	if err := b.Device.WaitIdle(); err != nil {
		core.LogWarn("%s backend: wait idle: %s", b.Type, err)
	}
	b.Device.Release()
}
