package camera

import (
	"context"
	"image"
)

// Constraints describe the stream requested from a device.
type Constraints struct {
	Width      int
	Height     int
	FacingMode string // "user" for the front camera
}

// Device opens live video streams.
type Device interface {
	// Open starts a stream. Failures should be *DeviceError values.
	Open(ctx context.Context, c Constraints) (Stream, error)
	// Name identifies the device in logs and errors.
	Name() string
}

// Stream is a running video stream. Frame returns the most recent image;
// Stop ends the stream and releases the hardware.
type Stream interface {
	Frame() (image.Image, error)
	Stop() error
}
