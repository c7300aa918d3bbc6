// Package coordinator drives one search at a time through capture, submission and display,
// and broadcasts every state change.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/selfie-finder/internal/camera"
	"github.com/kozaktomas/selfie-finder/internal/capture"
	"github.com/kozaktomas/selfie-finder/internal/constants"
	"github.com/kozaktomas/selfie-finder/internal/gallery"
)

// State is a coordinator state.
type State string

// States of one search cycle.
const (
	StateIdle       State = "idle"
	StateCapturing  State = "capturing"
	StateSubmitting State = "submitting"
	StateDisplaying State = "displaying"
	StateError      State = "error"
)

// Search sources.
const (
	SourceCamera = "camera"
	SourceUpload = "upload"
)

var (
	// ErrSuperseded is returned by a search whose result was discarded because a newer one started.
	ErrSuperseded = errors.New("search superseded by a newer one")
	// ErrCanceled is returned by a search aborted through Cancel.
	ErrCanceled = errors.New("search canceled")
)

// Progress reports capture progress of a burst.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// GalleryState is what the view renders.
type GalleryState struct {
	State     State                 `json:"state"`
	SearchID  string                `json:"search_id,omitempty"`
	Source    string                `json:"source,omitempty"`
	Matches   []gallery.MatchRecord `json:"matches"`
	Loading   bool                  `json:"loading"`
	Error     string                `json:"error,omitempty"`
	Progress  *Progress             `json:"progress,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func (s GalleryState) clone() GalleryState {
	s.Matches = slices.Clone(s.Matches)
	if s.Matches == nil {
		s.Matches = []gallery.MatchRecord{}
	}
	if s.Progress != nil {
		p := *s.Progress
		s.Progress = &p
	}
	return s
}

// Capturer produces the frames of one camera search.
type Capturer interface {
	Capture(ctx context.Context, progress capture.ProgressFunc) ([]*camera.Frame, error)
}

// Searcher submits frames to the matching service.
type Searcher interface {
	Search(ctx context.Context, files []gallery.File) gallery.SearchOutcome
}

// Coordinator owns the GalleryState. At most one search is in flight; starting a new one
// supersedes the previous and its late result is discarded.
type Coordinator struct {
	broadcaster

	searcher Searcher
	logger   *slog.Logger

	mu         sync.Mutex
	state      GalleryState
	generation uint64
	cancel     context.CancelCauseFunc
}

// New creates an idle coordinator.
func New(searcher Searcher, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		searcher: searcher,
		logger:   logger,
		state: GalleryState{
			State:     StateIdle,
			Matches:   []gallery.MatchRecord{},
			UpdatedAt: time.Now(),
		},
	}
}

// State returns a snapshot of the current state.
func (c *Coordinator) State() GalleryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// SearchWithCamera captures frames with capturer and submits them. Capture and
// service failures end in StateError and are not returned as errors; the error is
// non-nil only when the search was superseded or canceled.
func (c *Coordinator) SearchWithCamera(ctx context.Context, capturer Capturer) (GalleryState, error) {
	ctx, gen := c.begin(ctx, StateCapturing, SourceCamera)
	defer c.finish(gen)

	frames, err := capturer.Capture(ctx, func(current, total int) {
		c.update(gen, EventProgress, func(s *GalleryState) {
			s.Progress = &Progress{Current: current, Total: total}
		})
	})
	if ctx.Err() != nil {
		return c.abandon(ctx, gen)
	}
	if err != nil {
		msg := captureErrorMessage(err)
		c.logger.Warn("capture failed", "error", err)
		return c.finishWith(gen, func(s *GalleryState) {
			s.State = StateError
			s.Loading = false
			s.Error = msg
		})
	}

	if _, ok := c.update(gen, EventState, func(s *GalleryState) {
		s.State = StateSubmitting
		s.Loading = true
	}); !ok {
		return GalleryState{}, ErrSuperseded
	}

	return c.submit(ctx, gen, FilesFromFrames(frames))
}

// SearchWithFile submits an uploaded selfie, skipping capture.
func (c *Coordinator) SearchWithFile(ctx context.Context, file gallery.File) (GalleryState, error) {
	ctx, gen := c.begin(ctx, StateSubmitting, SourceUpload)
	defer c.finish(gen)

	if len(file.Data) == 0 {
		return c.finishWith(gen, func(s *GalleryState) {
			s.State = StateError
			s.Loading = false
			s.Error = constants.MsgSelectSelfie
		})
	}

	return c.submit(ctx, gen, []gallery.File{file})
}

// Cancel aborts the in-flight search, if any, and returns to idle.
// It reports whether a search was canceled.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		return false
	}
	c.cancel(ErrCanceled)
	c.cancel = nil
	c.generation++

	c.state.State = StateIdle
	c.state.Loading = false
	c.state.Progress = nil
	c.state.UpdatedAt = time.Now()
	c.publish(Event{Type: EventState, State: c.state.clone()})
	return true
}

func (c *Coordinator) submit(ctx context.Context, gen uint64, files []gallery.File) (GalleryState, error) {
	outcome := c.searcher.Search(ctx, files)
	if ctx.Err() != nil {
		return c.abandon(ctx, gen)
	}
	if se, ok := gallery.IsServiceError(outcome.Err); ok {
		c.logger.Warn("search service rejected the request", "status", se.StatusCode, "message", se.Message)
	} else if outcome.Err != nil {
		c.logger.Warn("search request failed", "error", outcome.Err)
	}

	return c.finishWith(gen, func(s *GalleryState) {
		s.Loading = false
		s.Progress = nil
		switch {
		case outcome.Failed():
			s.State = StateError
			s.Error = outcome.Error
		case len(outcome.Matches) == 0:
			s.State = StateError
			s.Error = constants.MsgNoMatches
		default:
			s.State = StateDisplaying
			s.Matches = outcome.Matches
		}
	})
}

// begin supersedes any in-flight search and resets the state for a new one.
func (c *Coordinator) begin(parent context.Context, initial State, source string) (context.Context, uint64) {
	ctx, cancel := context.WithCancelCause(parent)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel(ErrSuperseded)
		c.logger.Debug("search superseded", "search_id", c.state.SearchID)
	}
	c.cancel = cancel
	c.generation++

	c.state = GalleryState{
		State:     initial,
		SearchID:  uuid.New().String(),
		Source:    source,
		Matches:   []gallery.MatchRecord{},
		Loading:   initial == StateSubmitting,
		UpdatedAt: time.Now(),
	}
	c.logger.Debug("search started", "search_id", c.state.SearchID, "source", source)
	c.publish(Event{Type: EventState, State: c.state.clone()})
	return ctx, c.generation
}

// update applies fn when gen is still the current search.
func (c *Coordinator) update(gen uint64, eventType string, fn func(s *GalleryState)) (GalleryState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return GalleryState{}, false
	}
	fn(&c.state)
	c.state.UpdatedAt = time.Now()
	snapshot := c.state.clone()
	c.publish(Event{Type: eventType, State: snapshot})
	return snapshot, true
}

func (c *Coordinator) finishWith(gen uint64, fn func(s *GalleryState)) (GalleryState, error) {
	snapshot, ok := c.update(gen, EventState, fn)
	if !ok {
		return GalleryState{}, ErrSuperseded
	}
	c.logger.Info("search finished",
		"search_id", snapshot.SearchID,
		"state", snapshot.State,
		"matches", len(snapshot.Matches),
		"error", snapshot.Error)
	return snapshot, nil
}

// abandon handles a canceled search context. Supersession and Cancel already moved the
// state on; a canceled caller context returns the search to idle.
func (c *Coordinator) abandon(ctx context.Context, gen uint64) (GalleryState, error) {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrSuperseded) || errors.Is(cause, ErrCanceled) {
		return GalleryState{}, cause
	}

	c.update(gen, EventState, func(s *GalleryState) {
		s.State = StateIdle
		s.Loading = false
		s.Progress = nil
	})
	return GalleryState{}, cause
}

func (c *Coordinator) finish(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.generation && c.cancel != nil {
		c.cancel(nil)
		c.cancel = nil
	}
}

func captureErrorMessage(err error) string {
	var de *camera.DeviceError
	if errors.As(err, &de) {
		return de.UserMessage()
	}
	return constants.MsgCaptureFailed
}

// FilesFromFrames converts captured frames into upload files, in capture order.
func FilesFromFrames(frames []*camera.Frame) []gallery.File {
	files := make([]gallery.File, 0, len(frames))
	for _, f := range frames {
		files = append(files, gallery.File{Name: f.Name, ContentType: f.ContentType, Data: f.Data})
	}
	return files
}
