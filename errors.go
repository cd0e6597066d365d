package rhi

import (
	"errors"
	"fmt"
)

// Reported errors. Callers may keep running after any of these.
var (
	// ErrZeroSize is returned when a buffer or allocation of zero bytes is requested.
	ErrZeroSize = errors.New("rhi: size must be greater than zero")

	// ErrInvalidExtent is returned when a texture dimension is zero.
	ErrInvalidExtent = errors.New("rhi: texture extent must be non-zero")

	// ErrInvalidHandle is returned when a handle does not name a live
	// resource of the expected kind on this device.
	ErrInvalidHandle = errors.New("rhi: invalid handle")

	// ErrCapacity is returned when a fixed-capacity table is full.
	ErrCapacity = errors.New("rhi: capacity exceeded")

	// ErrIndexOutOfRange is returned when a slot index is not below the current count.
	ErrIndexOutOfRange = errors.New("rhi: index out of range")

	// ErrNotExported is returned by ExportHandle for allocations that were
	// not created with exported=true (or were already freed).
	ErrNotExported = errors.New("rhi: allocation is not exported")

	// ErrUnknownShareable is returned by ImportHandle for a native handle
	// that no device in the Context has exported.
	ErrUnknownShareable = errors.New("rhi: unknown shareable handle")

	// ErrSizeMismatch is returned when an import size disagrees with the export.
	ErrSizeMismatch = errors.New("rhi: size mismatch")

	// ErrNotRegistered is returned when mapping a resource that was never registered.
	ErrNotRegistered = errors.New("rhi: resource not registered")

	// ErrUnsupported is returned for operations a backend cannot perform.
	ErrUnsupported = errors.New("rhi: operation not supported by backend")

	// ErrBackendNotAvailable is returned when a backend is registered but
	// its native device cannot be opened.
	ErrBackendNotAvailable = errors.New("rhi: backend not available")
)

// DriverError describes a failed native call. Driver errors are fatal:
// they are passed to Context.Fatal and never returned to callers.
type DriverError struct {
	Backend string
	Op      string
	Code    int
	Message string
}

// Driver error codes shared by the bundled backends.
const (
	CodeOutOfMemory   = 2
	CodeInvalidValue  = 1
	CodeInvalidHandle = 400
	CodeLaunchFailed  = 719
	CodeNotSupported  = 801
	CodeUnknown       = 999
)

// Error implements the error interface.
func (e *DriverError) Error() string {
	return fmt.Sprintf("rhi: %s: %s failed with code %d: %s", e.Backend, e.Op, e.Code, e.Message)
}
