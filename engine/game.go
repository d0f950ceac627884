package engine

import "github.com/spaghettifunk/array/engine/config"

type Game struct {
	// ConfigPath is the TOML file read at boot, config.toml when empty.
	ConfigPath string
	// App is set by the engine before FnInitialize.
	App          *Application
	State        interface{}
	FnBoot       Boot
	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Boot may adjust the configuration before any subsystem starts.
type Boot func(cfg *config.Config) error
type Initialize func() error
type Update func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
