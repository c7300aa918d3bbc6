package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"sync"

	"github.com/kozaktomas/selfie-finder/internal/imageutil"
)

// FileDevice serves a still image as if it were a live camera feed.
// Useful on headless machines and for demos.
type FileDevice struct {
	Path string
}

// Name returns the image path.
func (d *FileDevice) Name() string {
	return d.Path
}

// Open decodes the image once; every Frame call returns it.
func (d *FileDevice) Open(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(d.Path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, &DeviceError{Kind: PermissionDenied, Device: d.Path, Err: err}
		}
		return nil, unavailable(d.Path, err)
	}

	img, err := imageutil.Decode(data)
	if err != nil {
		return nil, unavailable(d.Path, fmt.Errorf("could not decode still image: %w", err))
	}
	return &stillStream{img: img}, nil
}

type stillStream struct {
	mu      sync.Mutex
	img     image.Image
	stopped bool
}

func (s *stillStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, errors.New("camera stream ended")
	}
	return s.img, nil
}

func (s *stillStream) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	return nil
}
