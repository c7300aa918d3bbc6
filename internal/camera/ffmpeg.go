package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	maxFrameSize    = 8 << 20
	stderrTailSize  = 4 << 10
	defaultWarmup   = 5 * time.Second
	defaultFFmpeg   = "ffmpeg"
	defaultInputFmt = "v4l2"
)

// FFmpegDevice streams a camera through an ffmpeg subprocess writing MJPEG to stdout.
// An advisory file lock keeps a second process from opening the same camera.
type FFmpegDevice struct {
	Path        string        // ffmpeg binary, defaults to "ffmpeg"
	InputFormat string        // v4l2, avfoundation, dshow
	Device      string        // /dev/video0, "0", "video=Integrated Camera"
	LockDir     string        // defaults to os.TempDir()
	Warmup      time.Duration // deadline for the first frame
	Logger      *slog.Logger
}

// Name returns the device path.
func (d *FFmpegDevice) Name() string {
	return d.Device
}

func (d *FFmpegDevice) lockPath() string {
	dir := d.LockDir
	if dir == "" {
		dir = os.TempDir()
	}
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_", "=", "_").Replace(d.Device)
	return filepath.Join(dir, "selfie-finder-camera"+name+".lock")
}

func (d *FFmpegDevice) args(c Constraints) []string {
	format := d.InputFormat
	if format == "" {
		format = defaultInputFmt
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-f", format}
	if format == "avfoundation" {
		// avfoundation refuses to open without an explicit frame rate.
		args = append(args, "-framerate", "30")
	}
	args = append(args,
		"-video_size", fmt.Sprintf("%dx%d", c.Width, c.Height),
		"-i", d.Device,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"-",
	)
	return args
}

// Open starts ffmpeg and waits until the first frame arrives.
func (d *FFmpegDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lock := flock.New(d.lockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, unavailable(d.Device, fmt.Errorf("could not lock camera: %w", err))
	}
	if !locked {
		return nil, unavailable(d.Device, errors.New("camera is in use by another process"))
	}

	path := d.Path
	if path == "" {
		path = defaultFFmpeg
	}

	// The stream outlives the request that acquired it, so it gets its own context.
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, path, d.args(c)...) //nolint:gosec // binary and device come from configuration
	stderr := &tailBuffer{limit: stderrTailSize}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		_ = lock.Unlock()
		return nil, unavailable(d.Device, fmt.Errorf("could not create stdout pipe: %w", err))
	}

	logger.Debug("starting ffmpeg", "path", path, "args", strings.Join(cmd.Args[1:], " "))
	if err := cmd.Start(); err != nil {
		cancel()
		_ = lock.Unlock()
		if errors.Is(err, exec.ErrNotFound) {
			return nil, unavailable(d.Device, fmt.Errorf("ffmpeg not found at %q", path))
		}
		return nil, unavailable(d.Device, fmt.Errorf("could not start ffmpeg: %w", err))
	}

	stream := &ffmpegStream{
		cmd:    cmd,
		cancel: cancel,
		lock:   lock,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	go stream.read(stdout)

	warmup := d.Warmup
	if warmup <= 0 {
		warmup = defaultWarmup
	}
	timer := time.NewTimer(warmup)
	defer timer.Stop()

	select {
	case <-stream.ready:
		return stream, nil
	case <-stream.done:
		_ = stream.Stop()
		return nil, classifyFFmpegFailure(d.Device, stream.waitErr, stderr.String())
	case <-timer.C:
		_ = stream.Stop()
		return nil, unavailable(d.Device, fmt.Errorf("no frame within %s: %s", warmup, strings.TrimSpace(stderr.String())))
	case <-ctx.Done():
		_ = stream.Stop()
		return nil, ctx.Err()
	}
}

// classifyFFmpegFailure maps an early ffmpeg exit to a DeviceError.
func classifyFFmpegFailure(device string, waitErr error, stderr string) *DeviceError {
	stderr = strings.TrimSpace(stderr)
	lower := strings.ToLower(stderr)

	kind := Unavailable
	if strings.Contains(lower, "permission denied") || strings.Contains(lower, "not authorized") ||
		strings.Contains(lower, "operation not permitted") {
		kind = PermissionDenied
	}

	err := errors.New("ffmpeg exited before the first frame")
	switch {
	case waitErr != nil && stderr != "":
		err = fmt.Errorf("ffmpeg exited: %v: %s", waitErr, stderr)
	case stderr != "":
		err = fmt.Errorf("ffmpeg exited: %s", stderr)
	case waitErr != nil:
		err = fmt.Errorf("ffmpeg exited: %w", waitErr)
	}
	return &DeviceError{Kind: kind, Device: device, Err: err}
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	lock   *flock.Flock

	mu     sync.Mutex
	latest []byte

	readyOnce sync.Once
	ready     chan struct{}
	done      chan struct{}
	waitErr   error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegStream) read(r io.Reader) {
	defer close(s.done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256<<10), maxFrameSize)
	scanner.Split(SplitJPEG)
	for scanner.Scan() {
		frame := bytes.Clone(scanner.Bytes())
		s.mu.Lock()
		s.latest = frame
		s.mu.Unlock()
		s.readyOnce.Do(func() { close(s.ready) })
	}

	// Drain so ffmpeg never blocks on a full pipe before Wait.
	_, _ = io.Copy(io.Discard, r)
	s.waitErr = s.cmd.Wait()
}

func (s *ffmpegStream) Frame() (image.Image, error) {
	select {
	case <-s.done:
		return nil, errors.New("camera stream ended")
	default:
	}

	s.mu.Lock()
	data := s.latest
	s.mu.Unlock()

	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not decode frame: %w", err)
	}
	return img, nil
}

func (s *ffmpegStream) Stop() error {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done
		if err := s.lock.Unlock(); err != nil {
			s.stopErr = fmt.Errorf("could not unlock camera: %w", err)
		}
	})
	return s.stopErr
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
