package capture

import (
	"context"

	"github.com/kozaktomas/selfie-finder/internal/camera"
)

// Pipeline acquires the camera and runs a strategy on it.
type Pipeline struct {
	Controller *camera.Controller
	Strategy   Strategy
}

// Total returns the number of frames one capture takes.
func (p *Pipeline) Total() int {
	return p.Strategy.Total()
}

// Capture claims the camera (taking over an open preview session), captures frames and
// releases the camera. While another capture owns the camera it waits for that capture
// to release it. An acquisition failure is returned as the *camera.DeviceError.
func (p *Pipeline) Capture(ctx context.Context, progress ProgressFunc) ([]*camera.Frame, error) {
	session, err := p.Controller.Claim(ctx)
	if err != nil {
		return nil, err
	}
	// Strategies release too; Release is idempotent.
	defer p.Controller.Release(session)

	return p.Strategy.Capture(ctx, p.Controller, session, progress)
}
