// Package camera owns the camera lifecycle: acquiring and releasing live video
// streams and turning the current video frame into a JPEG payload.
package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/selfie-finder/internal/constants"
	"github.com/kozaktomas/selfie-finder/internal/imageutil"
)

// Frame is an encoded still taken from a live stream. It is never modified after capture.
type Frame struct {
	Name        string
	ContentType string
	Data        []byte
	CapturedAt  time.Time
}

// Session is the handle to an acquired camera. Only the Controller touches its stream.
type Session struct {
	id     string
	device string

	mu     sync.Mutex
	stream Stream
	taken  int

	// claimed is guarded by Controller.mu. A claimed session belongs to one capture.
	claimed  bool
	released chan struct{}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Active reports whether the session still holds a running stream.
func (s *Session) Active() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// detach takes the stream away from the session. The second call returns nil.
func (s *Session) detach() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream := s.stream
	s.stream = nil
	if stream != nil {
		close(s.released)
	}
	return stream
}

// Controller mediates all access to one camera device.
type Controller struct {
	device      Device
	constraints Constraints
	quality     int
	logger      *slog.Logger

	mu      sync.Mutex
	current *Session
}

// NewController creates a controller for device. Frames are rasterized to the
// constraint size and encoded with the given JPEG quality.
func NewController(device Device, constraints Constraints, quality int, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if constraints.Width <= 0 || constraints.Height <= 0 {
		constraints.Width, constraints.Height = constants.FrameWidth, constants.FrameHeight
	}
	if quality <= 0 || quality > 100 {
		quality = constants.DefaultJPEGQuality
	}
	return &Controller{
		device:      device,
		constraints: constraints,
		quality:     quality,
		logger:      logger,
	}
}

// Acquire opens the camera and returns a new session. If a session is already active it
// is returned unchanged. On failure no session is created and the current one is kept.
func (c *Controller) Acquire(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Active() {
		return c.current, nil
	}
	return c.open(ctx)
}

// Claim hands the camera to a single capture. An unclaimed session, such as a running
// preview, is taken over. A session claimed by another capture is waited on until its
// owner releases it, then a new stream is opened.
func (c *Controller) Claim(ctx context.Context) (*Session, error) {
	for {
		c.mu.Lock()
		current := c.current
		if !current.Active() {
			session, err := c.open(ctx)
			if err == nil {
				session.claimed = true
			}
			c.mu.Unlock()
			return session, err
		}
		if !current.claimed {
			current.claimed = true
			c.mu.Unlock()
			c.logger.Debug("camera session claimed", "session", current.id)
			return current, nil
		}
		released := current.released
		c.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// open starts a new stream. c.mu must be held.
func (c *Controller) open(ctx context.Context) (*Session, error) {
	stream, err := c.device.Open(ctx, c.constraints)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var de *DeviceError
		if !errors.As(err, &de) {
			de = unavailable(c.device.Name(), err)
		}
		c.logger.Warn("camera acquisition failed", "device", c.device.Name(), "kind", de.Kind.String(), "error", de.Err)
		return nil, de
	}

	session := &Session{
		id:       uuid.NewString(),
		device:   c.device.Name(),
		stream:   stream,
		released: make(chan struct{}),
	}
	c.current = session
	c.logger.Debug("camera acquired", "device", session.device, "session", session.id,
		"width", c.constraints.Width, "height", c.constraints.Height)
	return session, nil
}

// Current returns the active session, or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current.Active() {
		return nil
	}
	return c.current
}

// Release stops the session's stream. It is safe to call repeatedly and with nil.
func (c *Controller) Release(session *Session) {
	if session == nil {
		return
	}

	stream := session.detach()

	c.mu.Lock()
	if c.current == session {
		c.current = nil
	}
	c.mu.Unlock()

	if stream == nil {
		return
	}
	if err := stream.Stop(); err != nil {
		c.logger.Warn("failed to stop camera stream", "session", session.id, "error", err)
	}
	c.logger.Debug("camera released", "device", session.device, "session", session.id)
}

// CaptureFrame rasterizes the current live frame and encodes it as JPEG.
// Errors are not fatal; the caller may try again while the session is active.
func (c *Controller) CaptureFrame(ctx context.Context, session *Session) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionInactive
	}

	session.mu.Lock()
	stream := session.stream
	if stream != nil {
		session.taken++
	}
	seq := session.taken
	session.mu.Unlock()

	if stream == nil {
		return nil, ErrSessionInactive
	}

	data, err := c.encode(stream)
	if err != nil {
		return nil, err
	}

	return &Frame{
		Name:        fmt.Sprintf("photo_%d.jpg", seq),
		ContentType: constants.FrameContentType,
		Data:        data,
		CapturedAt:  time.Now(),
	}, nil
}

// Preview encodes the current frame without counting it as a capture.
func (c *Controller) Preview(session *Session) ([]byte, error) {
	if session == nil {
		return nil, ErrSessionInactive
	}
	session.mu.Lock()
	stream := session.stream
	session.mu.Unlock()
	if stream == nil {
		return nil, ErrSessionInactive
	}
	return c.encode(stream)
}

func (c *Controller) encode(stream Stream) ([]byte, error) {
	img, err := stream.Frame()
	if err != nil {
		if errors.Is(err, ErrEmptyFrame) {
			return nil, err
		}
		return nil, fmt.Errorf("could not read frame: %w", err)
	}

	raster, err := imageutil.Rasterize(img, c.constraints.Width, c.constraints.Height)
	if err != nil {
		if errors.Is(err, imageutil.ErrEmptyImage) {
			return nil, ErrEmptyFrame
		}
		return nil, fmt.Errorf("could not rasterize frame: %w", err)
	}

	data, err := imageutil.EncodeJPEG(raster, c.quality)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	return data, nil
}
