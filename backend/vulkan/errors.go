package vulkan

import "errors"

// Package errors for the vulkan backend.
var (
	// ErrNoAdapter is returned when no Vulkan adapter is available.
	ErrNoAdapter = errors.New("vulkan: no GPU adapter available")

	// ErrProvider is returned when a provider does not expose HAL types.
	ErrProvider = errors.New("vulkan: provider does not expose HAL device and queue")

	// ErrFenceTimeout is returned when a submission does not complete in time.
	ErrFenceTimeout = errors.New("vulkan: fence wait timed out")
)
