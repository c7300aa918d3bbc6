// Package capture decides how many frames a search takes and at what cadence.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/selfie-finder/internal/camera"
	"github.com/kozaktomas/selfie-finder/internal/config"
)

// ErrNoFrames is returned when a capture ends without a single usable frame.
var ErrNoFrames = errors.New("no frames captured")

// FrameSource is the part of camera.Controller a strategy needs.
type FrameSource interface {
	CaptureFrame(ctx context.Context, session *camera.Session) (*camera.Frame, error)
	Release(session *camera.Session)
}

// ProgressFunc receives advisory current/total updates after each frame.
type ProgressFunc func(current, total int)

// Strategy captures frames from an acquired session and releases it afterwards.
type Strategy interface {
	// Capture returns at least one frame or an error. The session is released
	// exactly once before Capture returns, whatever the outcome.
	Capture(ctx context.Context, src FrameSource, session *camera.Session, progress ProgressFunc) ([]*camera.Frame, error)
	// Total is the number of frames the strategy tries to take.
	Total() int
}

// New returns the strategy selected by the capture configuration.
func New(cfg config.CaptureConfig, logger *slog.Logger) (Strategy, error) {
	switch cfg.Policy {
	case config.PolicySingle, "":
		return &SingleShot{Logger: logger}, nil
	case config.PolicyBurst:
		if cfg.BurstFrames < 1 {
			return nil, fmt.Errorf("burst needs at least one frame, got %d", cfg.BurstFrames)
		}
		return &Burst{Frames: cfg.BurstFrames, Delay: cfg.BurstDelay(), Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown capture policy %q", cfg.Policy)
	}
}

// SingleShot takes one frame and releases the camera.
type SingleShot struct {
	Logger *slog.Logger
}

// Total returns 1.
func (s *SingleShot) Total() int { return 1 }

// Capture takes one frame.
func (s *SingleShot) Capture(ctx context.Context, src FrameSource, session *camera.Session, progress ProgressFunc) ([]*camera.Frame, error) {
	b := Burst{Frames: 1, Logger: s.Logger}
	return b.Capture(ctx, src, session, progress)
}

// Burst takes Frames sequential frames separated by Delay.
type Burst struct {
	Frames int
	Delay  time.Duration
	Logger *slog.Logger
}

// Total returns the configured frame count.
func (b *Burst) Total() int {
	return max(b.Frames, 1)
}

// Capture takes up to Frames frames. The first failing frame ends the burst; frames
// taken before it are returned. Cancellation discards everything.
func (b *Burst) Capture(ctx context.Context, src FrameSource, session *camera.Session, progress ProgressFunc) ([]*camera.Frame, error) {
	defer src.Release(session)

	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	total := b.Total()
	frames := make([]*camera.Frame, 0, total)

	var lastErr error
	for i := 1; i <= total; i++ {
		if i > 1 && b.Delay > 0 {
			if err := sleep(ctx, b.Delay); err != nil {
				return nil, err
			}
		}

		frame, err := src.CaptureFrame(ctx, session)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("frame capture failed, ending burst", "frame", i, "total", total, "error", err)
			lastErr = err
			break
		}
		frames = append(frames, frame)
		if progress != nil {
			progress(i, total)
		}
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoFrames, lastErr)
	}
	logger.Debug("capture complete", "frames", len(frames), "total", total)
	return frames, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
