package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleSwapchain reports that the swapchain no longer matches the
	// surface. The engine recovers from it by rebuilding; it is never
	// returned from DrawFrame.
	ErrStaleSwapchain = errors.New("swapchain is stale")

	ErrNoSurfaceFormats = errors.New("surface reports no formats")
	ErrNoPresentModes   = errors.New("surface reports no present modes")
	ErrDestroyed        = errors.New("frame engine destroyed")
)

// DeviceError is any unexpected failure from device, queue, swapchain or
// sync-object calls. It is fatal: the caller should tear down and exit.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error: %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func deviceErr(op string, err error) error {
	var de *DeviceError
	if errors.As(err, &de) {
		return err
	}
	return &DeviceError{Op: op, Err: err}
}
