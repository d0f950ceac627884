package core

import (
	"errors"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrUnknown          = errors.New("unknown")

	// per-frame soft failures, the frame is skipped
	ErrNoCurrentFrame = errors.New("tracking session has no current frame")
	ErrNoRenderPass   = errors.New("no render pass target for the current drawable")
	ErrNoDrawable     = errors.New("no drawable available")

	// setup failures
	ErrPipelineCreation = errors.New("failed to create render pipeline")
	ErrShaderNotFound   = errors.New("shader not found")
	ErrAssetNotFound    = errors.New("asset not found")
	ErrMeshCreation     = errors.New("failed to build mesh")
	ErrDeviceNotFound   = errors.New("no suitable GPU device")

	ErrOutOfBounds      = errors.New("write out of buffer bounds")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrSessionFailed    = errors.New("tracking session failed")
	ErrSessionNotActive = errors.New("tracking session is not running")
	ErrClosed           = errors.New("renderer closed")
)
