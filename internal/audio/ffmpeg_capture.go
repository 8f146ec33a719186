package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"studysync/internal/domain"
	"studysync/internal/ports"
)

// Phrases ffmpeg prints when the OS refuses microphone access.
var permissionMarkers = []string{
	"permission denied",
	"operation not permitted",
	"access denied",
	"not authorized",
}

// FFMPEGCapture acquires the microphone as a 16-bit PCM stream using ffmpeg.
type FFMPEGCapture struct {
	command  string
	settle   time.Duration
	stopWait time.Duration
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command, settle: 250 * time.Millisecond, stopWait: 1200 * time.Millisecond}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = withCaptureDefaults(cfg)

	if _, err := exec.LookPath(c.command); err != nil {
		return nil, fmt.Errorf("%w: %s not found", domain.ErrUnsupportedEnvironment, c.command)
	}

	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	stderr := &syncBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		return nil, classifyStartFailure(err, stderr.String())
	case <-time.After(c.settle):
	}

	return &ffmpegSession{
		stdout:   stdout,
		stderr:   stderr,
		process:  cmd.Process,
		waitErr:  waitErr,
		stopWait: c.stopWait,
	}, nil
}

func withCaptureDefaults(cfg ports.AudioConfig) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return cfg
}

func captureArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

// classifyStartFailure maps an early ffmpeg exit onto the capture errors the
// coordinator distinguishes.
func classifyStartFailure(err error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	if isPermissionFailure(detail) {
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, detail)
	}
	if err != nil {
		if detail == "" {
			return fmt.Errorf("ffmpeg exited before capture started: %w", err)
		}
		return fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, detail)
	}
	return errors.New("ffmpeg exited before capture started")
}

func isPermissionFailure(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, marker := range permissionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *syncBuffer

	process  *os.Process
	waitErr  <-chan error
	stopWait time.Duration

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop interrupts ffmpeg, escalating to kill, and releases the device. Safe to
// call more than once.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(s.stopWait):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}

		if s.stopErr != nil {
			if detail := strings.TrimSpace(s.stderr.String()); detail != "" {
				s.stopErr = fmt.Errorf("%w: %s", s.stopErr, detail)
			}
		}
	})

	return s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// syncBuffer is a bytes.Buffer safe for the exec copier and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
