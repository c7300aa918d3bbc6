package camera

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/selfie-finder/internal/constants"
)

// Errors returned by CaptureFrame. Both are retryable.
var (
	ErrSessionInactive = errors.New("capture session is not active")
	ErrEmptyFrame      = errors.New("camera produced no frame data")
)

// DeviceErrorKind classifies why a camera could not be acquired.
type DeviceErrorKind int

const (
	// Unavailable means there is no usable camera (missing, busy, or broken).
	Unavailable DeviceErrorKind = iota
	// PermissionDenied means the platform refused access to the camera.
	PermissionDenied
)

func (k DeviceErrorKind) String() string {
	if k == PermissionDenied {
		return "permission denied"
	}
	return "unavailable"
}

// DeviceError is returned when acquiring the camera fails.
type DeviceError struct {
	Kind   DeviceErrorKind
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("camera %s: %s", e.Device, e.Kind)
	}
	return fmt.Sprintf("camera %s: %s: %v", e.Device, e.Kind, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text shown to the person in front of the camera.
func (e *DeviceError) UserMessage() string {
	if e.Kind == PermissionDenied {
		return constants.MsgCameraDenied
	}
	return constants.MsgCameraMissing
}

// IsPermissionDenied reports whether err is a DeviceError of kind PermissionDenied.
func IsPermissionDenied(err error) bool {
	var de *DeviceError
	return errors.As(err, &de) && de.Kind == PermissionDenied
}

func unavailable(device string, err error) *DeviceError {
	return &DeviceError{Kind: Unavailable, Device: device, Err: err}
}
