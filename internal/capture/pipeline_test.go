package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/kozaktomas/selfie-finder/internal/camera"
)

type countingDevice struct {
	mu      sync.Mutex
	openErr error
	opens   int
	stops   int
}

func (d *countingDevice) Name() string { return "counting0" }

func (d *countingDevice) Open(_ context.Context, _ camera.Constraints) (camera.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.openErr != nil {
		return nil, d.openErr
	}
	return &countingStream{device: d}, nil
}

type countingStream struct {
	device *countingDevice
}

func (s *countingStream) Frame() (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 64, 48)), nil
}

func (s *countingStream) Stop() error {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.device.stops++
	return nil
}

func TestPipeline_Capture(t *testing.T) {
	device := &countingDevice{}
	ctrl := camera.NewController(device, camera.Constraints{Width: 640, Height: 480}, 90, nil)
	p := &Pipeline{Controller: ctrl, Strategy: &Burst{Frames: 2}}

	frames, err := p.Capture(context.Background(), nil)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if len(frames) != 2 {
		t.Errorf("expected 2 frames, got %d", len(frames))
	}
	if device.stops != 1 {
		t.Errorf("expected camera stopped exactly once, got %d", device.stops)
	}
	if ctrl.Current() != nil {
		t.Error("expected camera released after capture")
	}
}

func TestPipeline_AcquireFailure(t *testing.T) {
	device := &countingDevice{openErr: &camera.DeviceError{Kind: camera.PermissionDenied, Device: "counting0"}}
	ctrl := camera.NewController(device, camera.Constraints{Width: 640, Height: 480}, 90, nil)
	strategy := &recordingStrategy{}
	p := &Pipeline{Controller: ctrl, Strategy: strategy}

	_, err := p.Capture(context.Background(), nil)
	if !camera.IsPermissionDenied(err) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if strategy.called {
		t.Error("strategy must not run when acquisition fails")
	}
	if device.stops != 0 {
		t.Errorf("nothing to stop, got %d stops", device.stops)
	}
}

func TestPipeline_ReusesPreviewSession(t *testing.T) {
	device := &countingDevice{}
	ctrl := camera.NewController(device, camera.Constraints{Width: 640, Height: 480}, 90, nil)

	if _, err := ctrl.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	p := &Pipeline{Controller: ctrl, Strategy: &SingleShot{}}
	if _, err := p.Capture(context.Background(), nil); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if device.opens != 1 {
		t.Errorf("expected preview session reuse, got %d opens", device.opens)
	}
	if device.stops != 1 {
		t.Errorf("expected 1 stop, got %d", device.stops)
	}
}

type recordingStrategy struct {
	called bool
}

func (s *recordingStrategy) Total() int { return 1 }

func (s *recordingStrategy) Capture(_ context.Context, src FrameSource, session *camera.Session, _ ProgressFunc) ([]*camera.Frame, error) {
	s.called = true
	src.Release(session)
	return nil, errors.New("unused")
}
