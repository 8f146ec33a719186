package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"studysync/internal/domain"
	"studysync/internal/logx"
	"studysync/internal/ports"
	"studysync/internal/telemetry"
)

// ErrRestartLimit ends a session whose recognizer keeps failing without
// producing any finalized text.
var ErrRestartLimit = errors.New("speech recognition keeps failing, stopped listening")

// ErrMicrophoneLost ends a session whose microphone stream closed again
// right after being reacquired.
var ErrMicrophoneLost = errors.New("microphone stream ended, stopped listening")

// State is the capture lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateRestarting State = "restarting"
)

// intent is what the user asked for. Recognizer callbacks are reconciled
// against it, never the other way round.
type intent int

const (
	intentIdle intent = iota
	intentListening
)

// Config controls microphone acquisition and the restart guard.
type Config struct {
	Audio        ports.AudioConfig
	MaxRestarts  int
	RestartDelay time.Duration
}

// Status is a snapshot of the capture session.
type Status struct {
	State      State  `json:"state"`
	Listening  bool   `json:"listening"`
	Transcript string `json:"transcript"`
	Err        error  `json:"-"`
}

// Observer is notified outside of the capture lock.
type Observer interface {
	CaptureStateChanged(status Status)
	TranscriptUpdated(text string)
	CaptureFailed(err error)
}

// Option configures a Capture.
type Option func(*Capture)

func WithLogger(log pslog.Logger) Option {
	return func(c *Capture) { c.log = log }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Capture) { c.metrics = m }
}

func WithObserver(o Observer) Option {
	return func(c *Capture) { c.observer = o }
}

// Capture runs continuous recognition over a microphone stream, restarting
// the recognizer on transient failures while the user still wants to listen.
type Capture struct {
	recognizer ports.Recognizer
	mic        ports.AudioCapture
	cfg        Config
	log        pslog.Logger
	metrics    *telemetry.Metrics
	observer   Observer

	buffer TranscriptBuffer

	mu       sync.Mutex
	state    State
	intent   intent
	run      uint64
	media    ports.AudioSession
	ctx      context.Context
	restarts int
	reason   ports.RecognitionErrorCode
	err      error
	session  string
	// reacquired is set once the microphone has been reopened and cleared
	// by the next finalized text.
	reacquired bool
}

func New(recognizer ports.Recognizer, mic ports.AudioCapture, cfg Config, opts ...Option) *Capture {
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = 25
	}
	if cfg.RestartDelay < 0 {
		cfg.RestartDelay = 0
	}
	c := &Capture{recognizer: recognizer, mic: mic, cfg: cfg, state: StateIdle}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logx.OrDiscard(c.log)
	return c
}

// Start clears the transcript, acquires the microphone and begins
// recognition. Starting while already listening is a no-op.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.intent == intentListening {
		c.mu.Unlock()
		return nil
	}
	c.intent = intentListening
	c.run++
	token := c.run
	c.state = StateListening
	c.restarts = 0
	c.reason = ""
	c.reacquired = false
	c.err = nil
	c.ctx = context.WithoutCancel(ctx)
	c.session = uuid.NewString()
	log := logx.WithSession(c.log, c.session)
	c.buffer.Reset()
	c.mu.Unlock()

	c.notifyTranscript("")
	c.notifyState()

	media, err := c.mic.Start(c.ctx, c.cfg.Audio)
	if err != nil {
		c.fail(token, fmt.Errorf("failed to acquire microphone: %w", err))
		return c.lastErr()
	}

	c.mu.Lock()
	if c.run != token || c.intent != intentListening {
		c.mu.Unlock()
		_ = media.Stop()
		return nil
	}
	c.media = media
	c.mu.Unlock()

	if err := c.recognizer.Start(c.ctx, media, &runHandler{capture: c, token: token}); err != nil {
		c.fail(token, err)
		return c.lastErr()
	}
	if !c.stillCurrent(token) {
		_ = c.recognizer.Abort()
		return nil
	}
	log.Info("capture started")
	return nil
}

// stillCurrent reports whether token's run survived a concurrent Stop.
func (c *Capture) stillCurrent(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current(token) && c.intent == intentListening
}

// Stop ends the session immediately, discarding interim state, and releases
// the microphone. Calling it again is a no-op.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.intent == intentIdle && c.media == nil {
		c.mu.Unlock()
		return nil
	}
	c.intent = intentIdle
	c.run++
	c.state = StateIdle
	media := c.media
	c.media = nil
	log := logx.WithSession(c.log, c.session)
	c.mu.Unlock()

	_ = c.recognizer.Abort()
	err := releaseMedia(media)
	log.Info("capture stopped", "segments", c.buffer.Len())
	c.notifyState()
	return err
}

// Transcript returns the finalized text of the current or last session.
func (c *Capture) Transcript() string {
	return c.buffer.String()
}

// Listening reports the user's intent, true from Start until Stop or a
// terminal error.
func (c *Capture) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intent == intentListening
}

func (c *Capture) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:      c.state,
		Listening:  c.intent == intentListening,
		Transcript: c.buffer.String(),
		Err:        c.err,
	}
}

// Reset clears the transcript of an idle session.
func (c *Capture) Reset() {
	c.mu.Lock()
	idle := c.intent == intentIdle
	if idle {
		c.err = nil
	}
	c.mu.Unlock()
	if idle {
		c.buffer.Reset()
		c.notifyTranscript("")
	}
}

func (c *Capture) lastErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Capture) current(token uint64) bool {
	return c.run == token
}

func (c *Capture) onResult(token uint64, event ports.RecognitionEvent) {
	c.mu.Lock()
	if !c.current(token) {
		c.mu.Unlock()
		return
	}
	appended := false
	start := max(event.ResultIndex, 0)
	for i := start; i < len(event.Results); i++ {
		result := event.Results[i]
		if !result.IsFinal || len(result.Alternatives) == 0 {
			continue
		}
		if c.buffer.Append(result.Alternatives[0].Transcript) {
			appended = true
		}
	}
	if appended {
		c.restarts = 0
		c.reacquired = false
	}
	c.mu.Unlock()

	if appended {
		c.notifyTranscript(c.buffer.String())
	}
}

func (c *Capture) onError(token uint64, code ports.RecognitionErrorCode, detail string) {
	c.mu.Lock()
	if !c.current(token) {
		c.mu.Unlock()
		return
	}
	log := logx.WithSession(c.log, c.session)
	switch code {
	case ports.RecognitionAborted:
		c.mu.Unlock()
		return
	case ports.RecognitionNotAllowed:
		c.mu.Unlock()
		log.Warn("capture permission denied", "detail", detail)
		c.fail(token, domain.ErrPermissionDenied)
		return
	default:
		if c.intent == intentListening {
			c.reason = code
			c.state = StateRestarting
		}
		c.mu.Unlock()
		log.Debug("capture transient error", "code", string(code), "detail", detail)
	}
}

func (c *Capture) onEnd(token uint64) {
	c.mu.Lock()
	if !c.current(token) {
		c.mu.Unlock()
		return
	}
	if c.intent != intentListening {
		c.state = StateIdle
		media := c.media
		c.media = nil
		c.mu.Unlock()
		_ = releaseMedia(media)
		c.notifyState()
		return
	}
	c.state = StateRestarting
	c.mu.Unlock()

	c.notifyState()
	c.restart(token)
}

// restart starts a fresh recognizer run until one succeeds, the user stops,
// or the restart guard trips. Runs reuse the media stream unless it ended,
// in which case the microphone is reopened once.
func (c *Capture) restart(token uint64) {
	for {
		c.mu.Lock()
		if !c.current(token) || c.intent != intentListening {
			c.mu.Unlock()
			return
		}
		c.restarts++
		if c.restarts > c.cfg.MaxRestarts {
			c.mu.Unlock()
			c.fail(token, ErrRestartLimit)
			return
		}
		reason := c.reason
		c.reason = ""
		lost := reason == ports.RecognitionAudioCapture
		if lost && c.reacquired {
			c.mu.Unlock()
			c.fail(token, ErrMicrophoneLost)
			return
		}
		var stale ports.AudioSession
		if lost {
			stale = c.media
			c.media = nil
			c.reacquired = true
		}
		ctx := c.ctx
		log := logx.WithSession(c.log, c.session)
		c.mu.Unlock()

		var fresh ports.AudioSession
		if lost {
			_ = releaseMedia(stale)
			log.Warn("microphone stream ended, reacquiring")
			media, err := c.mic.Start(ctx, c.cfg.Audio)
			if err != nil {
				c.fail(token, fmt.Errorf("failed to reacquire microphone: %w", err))
				return
			}
			fresh = media
		}

		c.mu.Lock()
		if !c.current(token) || c.intent != intentListening {
			c.mu.Unlock()
			_ = releaseMedia(fresh)
			return
		}
		if fresh != nil {
			c.media = fresh
		}
		c.run++
		token = c.run
		media := c.media
		attempt := c.restarts
		c.mu.Unlock()

		label := string(reason)
		if label == "" {
			label = "ended"
		}
		c.metrics.CaptureRestart(label)
		log.Debug("capture restarting", "reason", label, "attempt", attempt)

		err := c.recognizer.Start(ctx, media, &runHandler{capture: c, token: token})
		if err == nil {
			c.mu.Lock()
			live := c.current(token) && c.intent == intentListening
			if live {
				c.state = StateListening
			}
			c.mu.Unlock()
			if !live {
				_ = c.recognizer.Abort()
				return
			}
			c.notifyState()
			return
		}

		log.Warn("capture restart failed", "err", err)
		c.mu.Lock()
		c.reason = ports.RecognitionNetwork
		c.mu.Unlock()
		if c.cfg.RestartDelay > 0 {
			time.Sleep(c.cfg.RestartDelay)
		}
	}
}

// fail ends the session terminally. Callbacks from token's run and later are
// ignored afterwards.
func (c *Capture) fail(token uint64, err error) {
	c.mu.Lock()
	if !c.current(token) {
		c.mu.Unlock()
		return
	}
	c.intent = intentIdle
	c.run++
	c.state = StateIdle
	c.err = err
	media := c.media
	c.media = nil
	log := logx.WithSession(c.log, c.session)
	c.mu.Unlock()

	_ = c.recognizer.Abort()
	_ = releaseMedia(media)
	log.Error("capture failed", "err", err)

	if c.observer != nil {
		c.observer.CaptureFailed(err)
	}
	c.notifyState()
}

func (c *Capture) notifyState() {
	if c.observer != nil {
		c.observer.CaptureStateChanged(c.Status())
	}
}

func (c *Capture) notifyTranscript(text string) {
	if c.observer != nil {
		c.observer.TranscriptUpdated(text)
	}
}

func releaseMedia(media ports.AudioSession) error {
	if media == nil {
		return nil
	}
	return media.Stop()
}

// runHandler binds recognizer callbacks to one run.
type runHandler struct {
	capture *Capture
	token   uint64
}

func (h *runHandler) OnResult(event ports.RecognitionEvent) { h.capture.onResult(h.token, event) }

func (h *runHandler) OnError(code ports.RecognitionErrorCode, detail string) {
	h.capture.onError(h.token, code, detail)
}

func (h *runHandler) OnEnd() { h.capture.onEnd(h.token) }

// UnsupportedRecognizer is used where no speech recognition backend exists.
type UnsupportedRecognizer struct{}

func (UnsupportedRecognizer) Start(context.Context, io.Reader, ports.RecognitionHandler) error {
	return domain.ErrUnsupportedEnvironment
}

func (UnsupportedRecognizer) Stop() error { return nil }

func (UnsupportedRecognizer) Abort() error { return nil }
