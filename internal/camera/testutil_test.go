package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
)

// fakeDevice is an in-memory Device for controller tests
type fakeDevice struct {
	mu      sync.Mutex
	openErr error
	opens   int
	streams []*fakeStream
	frame   image.Image
}

func newFakeDevice() *fakeDevice {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for x := range 320 {
		for y := range 240 {
			img.Set(x, y, color.RGBA{R: 20, G: 120, B: 220, A: 255})
		}
	}
	return &fakeDevice{frame: img}
}

func (d *fakeDevice) Name() string { return "fake0" }

func (d *fakeDevice) Open(_ context.Context, _ Constraints) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := &fakeStream{frame: d.frame}
	d.streams = append(d.streams, s)
	return s, nil
}

type fakeStream struct {
	mu       sync.Mutex
	frame    image.Image
	frameErr error
	stops    int
}

func (s *fakeStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameErr != nil {
		return nil, s.frameErr
	}
	return s.frame, nil
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

var errBoom = errors.New("boom")
