package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"studysync/internal/capture"
	"studysync/internal/domain"
	"studysync/internal/logx"
	"studysync/internal/ports"
)

var (
	ErrRequestInFlight    = errors.New("a request is already in flight")
	ErrCapturing          = errors.New("capture is active")
	ErrTranscriptTooShort = errors.New("transcript is too short")
	ErrNoMaterial         = errors.New("no study material attached")
	ErrNotReady           = errors.New("coordinator is not ready")
)

// Config bounds what the coordinator accepts.
type Config struct {
	// MinTranscript is the shortest transcript a grading request accepts.
	MinTranscript int
	MaxImages     int
	Mode          domain.Mode
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithLogger(log pslog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithTranscriptRules corrects captured transcripts before they are sent.
func WithTranscriptRules(rules ports.TextRules) Option {
	return func(c *Coordinator) { c.rules = rules }
}

// Coordinator ties capture, requests and speech together. At most one of
// capturing and processing is active at a time; speaking overlaps either.
type Coordinator struct {
	capture  Capturer
	speaker  Speaker
	requests Requester
	events   ports.EventSink
	rules    ports.TextRules
	cfg      Config
	log      pslog.Logger

	finalizer transcriptFinalizer
	bg        sync.WaitGroup

	// gate serializes claiming the capture slot against claiming the
	// request slot. Observer callbacks never take it.
	gate sync.Mutex

	mu         sync.Mutex
	mode       domain.Mode
	images     []domain.Image
	processing bool
	results    map[domain.InstructionKind]domain.Result
	lastErr    string
	// epoch advances on Reset; outcomes of older requests are dropped.
	epoch uint64
}

func NewCoordinator(capture Capturer, speaker Speaker, requests Requester, events ports.EventSink, cfg Config, opts ...Option) (*Coordinator, error) {
	if capture == nil || speaker == nil || requests == nil {
		return nil, ErrNotReady
	}
	if cfg.MinTranscript <= 0 {
		cfg.MinTranscript = 10
	}
	if events == nil {
		events = NopEvents{}
	}
	c := &Coordinator{
		capture:  capture,
		speaker:  speaker,
		requests: requests,
		events:   events,
		cfg:      cfg,
		mode:     domain.ParseMode(string(cfg.Mode)),
		results:  make(map[domain.InstructionKind]domain.Result),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logx.OrDiscard(c.log)
	c.finalizer = newTranscriptFinalizer(c.rules, c.log)
	return c, nil
}

// ToggleCapture starts listening when idle and stops when listening.
// Starting always silences the assistant first. In conversational mode
// stopping sends the transcript as a question in the background.
func (c *Coordinator) ToggleCapture(ctx context.Context) (domain.Status, error) {
	c.gate.Lock()
	defer c.gate.Unlock()

	if c.capture.Listening() {
		return c.stopCapture(ctx)
	}

	c.mu.Lock()
	processing := c.processing
	c.mu.Unlock()
	if processing {
		return c.Status(), ErrRequestInFlight
	}

	c.speaker.Stop()
	c.setError("")
	if err := c.capture.Start(ctx); err != nil {
		return c.Status(), err
	}
	c.log.Info("capture toggled on")
	status := c.Status()
	c.events.StateChanged(status)
	return status, nil
}

// stopCapture runs with c.gate held.
func (c *Coordinator) stopCapture(ctx context.Context) (domain.Status, error) {
	if err := c.capture.Stop(); err != nil {
		c.log.Warn("capture stop reported an error", "err", err)
	}
	c.log.Info("capture toggled off")

	c.mu.Lock()
	immediate := c.mode.ImmediateDispatch()
	c.mu.Unlock()

	if immediate {
		question := c.finalizer.Finalize(c.capture.Transcript())
		if question != "" {
			d := dispatch{kind: domain.KindFreeAsk, text: question, minText: 1}
			if err := c.claim(&d); err != nil {
				return c.Status(), err
			}
			c.bg.Add(1)
			go func() {
				defer c.bg.Done()
				_, _ = c.run(context.WithoutCancel(ctx), d)
			}()
		}
	}
	status := c.Status()
	c.events.StateChanged(status)
	return status, nil
}

// Submit sends the held transcript. In grading mode it is graded against
// the attached material; in conversational mode it is asked as a question.
func (c *Coordinator) Submit(ctx context.Context) (domain.Result, error) {
	c.gate.Lock()
	if c.capture.Listening() {
		if err := c.capture.Stop(); err != nil {
			c.log.Warn("capture stop reported an error", "err", err)
		}
	}
	transcript := c.finalizer.Finalize(c.capture.Transcript())

	c.mu.Lock()
	mode := c.mode
	c.mu.Unlock()
	d := dispatch{
		kind:       domain.KindGrade,
		text:       transcript,
		needImages: true,
		minText:    c.cfg.MinTranscript,
	}
	if mode.ImmediateDispatch() {
		d = dispatch{kind: domain.KindFreeAsk, text: strings.TrimSpace(transcript), minText: 1}
	}
	err := c.claim(&d)
	c.gate.Unlock()
	if err != nil {
		return domain.Result{}, err
	}
	return c.run(context.WithoutCancel(ctx), d)
}

// GenerateQuiz builds a quiz from the attached material.
func (c *Coordinator) GenerateQuiz(ctx context.Context) (domain.Result, error) {
	return c.perform(ctx, dispatch{kind: domain.KindQuiz, needImages: true})
}

// GenerateNotes summarizes the attached material, optionally around topic.
func (c *Coordinator) GenerateNotes(ctx context.Context, topic string) (domain.Result, error) {
	return c.perform(ctx, dispatch{kind: domain.KindNotesSummary, text: strings.TrimSpace(topic), needImages: true})
}

// Ask sends a free-form question with any attached material.
func (c *Coordinator) Ask(ctx context.Context, question string) (domain.Result, error) {
	return c.perform(ctx, dispatch{kind: domain.KindFreeAsk, text: strings.TrimSpace(question), minText: 1})
}

func (c *Coordinator) perform(ctx context.Context, d dispatch) (domain.Result, error) {
	if err := c.begin(&d); err != nil {
		return domain.Result{}, err
	}
	return c.run(context.WithoutCancel(ctx), d)
}

// begin claims the single request slot or explains why d cannot go out.
func (c *Coordinator) begin(d *dispatch) error {
	c.gate.Lock()
	defer c.gate.Unlock()
	return c.claim(d)
}

// claim is begin with c.gate already held.
func (c *Coordinator) claim(d *dispatch) error {
	if c.capture.Listening() {
		c.log.Debug("request refused, capture is active", "kind", d.kind)
		c.setError(capturingMessage)
		c.events.RequestFailed(domain.ErrorCodeInput, capturingMessage)
		return fmt.Errorf("%s: %w", d.kind, ErrCapturing)
	}

	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		c.log.Debug("request refused, another is in flight", "kind", d.kind)
		return ErrRequestInFlight
	}
	if err := d.check(len(c.images)); err != nil {
		message := d.guardMessage()
		c.lastErr = message
		c.mu.Unlock()
		c.events.RequestFailed(domain.ErrorCodeInput, message)
		return fmt.Errorf("%s: %w", d.kind, err)
	}
	c.processing = true
	c.lastErr = ""
	d.epoch = c.epoch
	c.mu.Unlock()

	c.events.StateChanged(c.Status())
	return nil
}

// run sends a claimed request and releases the slot. It is not cancellable
// once started.
func (c *Coordinator) run(ctx context.Context, d dispatch) (domain.Result, error) {
	c.mu.Lock()
	images := append([]domain.Image(nil), c.images...)
	c.mu.Unlock()

	log := logx.WithRequest(c.log, uuid.NewString(), string(d.kind))
	payload, err := domain.NewRequestPayload(d.kind, d.text, images, c.cfg.MaxImages)
	if err != nil {
		if c.finish(d, domain.Result{}, err) {
			c.events.RequestFailed(domain.ErrorCodeInput, err.Error())
		}
		c.events.StateChanged(c.Status())
		return domain.Result{}, err
	}

	log.Info("dispatching request", "images", payload.ImageCount())
	result, err := c.requests.Request(ctx, payload)
	if !c.finish(d, result, err) {
		log.Info("request outcome dropped after reset", "failed", err != nil)
		c.events.StateChanged(c.Status())
		return result, err
	}
	if err != nil {
		log.Warn("request failed", "err", err)
		c.events.RequestFailed(domain.ErrorCodeRequest, domain.UserMessage(err))
		c.events.StateChanged(c.Status())
		return domain.Result{}, err
	}

	log.Info("request completed", "fallback", result.Fallback)
	c.events.ResultReady(result)
	c.events.StateChanged(c.Status())
	if line := spokenLine(result); line != "" {
		c.speaker.Speak(line)
	}
	return result, nil
}

// finish releases the request slot and records the outcome. It reports false
// when a Reset happened since d was claimed.
func (c *Coordinator) finish(d dispatch, result domain.Result, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processing = false
	if d.epoch != c.epoch {
		return false
	}
	if err != nil {
		c.lastErr = domain.UserMessage(err)
		return true
	}
	c.results[d.kind] = result
	return true
}

// Wait blocks until background requests started by ToggleCapture finish.
func (c *Coordinator) Wait() {
	c.bg.Wait()
}

func (c *Coordinator) SetMode(mode domain.Mode) {
	c.mu.Lock()
	c.mode = domain.ParseMode(string(mode))
	c.mu.Unlock()
	c.events.StateChanged(c.Status())
}

// AttachImages appends study material. The total stays within MaxImages.
func (c *Coordinator) AttachImages(images ...domain.Image) error {
	c.mu.Lock()
	if c.cfg.MaxImages > 0 && len(c.images)+len(images) > c.cfg.MaxImages {
		c.mu.Unlock()
		return fmt.Errorf("too many images: %d (max %d)", len(c.images)+len(images), c.cfg.MaxImages)
	}
	for _, img := range images {
		if len(img.Data) == 0 {
			continue
		}
		c.images = append(c.images, img)
	}
	c.mu.Unlock()
	c.events.StateChanged(c.Status())
	return nil
}

func (c *Coordinator) ClearImages() {
	c.mu.Lock()
	c.images = nil
	c.mu.Unlock()
	c.events.StateChanged(c.Status())
}

func (c *Coordinator) StopSpeaking() {
	c.speaker.Stop()
}

// Result returns the latest successful result of kind.
func (c *Coordinator) Result(kind domain.InstructionKind) (domain.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, ok := c.results[kind]
	return result, ok
}

// Reset stops capture and speech and forgets material, results and errors.
// An in-flight request still completes.
func (c *Coordinator) Reset() {
	_ = c.capture.Stop()
	c.speaker.Stop()
	c.capture.Reset()

	c.mu.Lock()
	c.images = nil
	c.results = make(map[domain.InstructionKind]domain.Result)
	c.lastErr = ""
	c.epoch++
	c.mu.Unlock()
	c.events.StateChanged(c.Status())
}

func (c *Coordinator) Status() domain.Status {
	listening := c.capture.Listening()
	speaking := c.speaker.Speaking()
	transcript := c.capture.Transcript()

	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Status{
		State:      lifecycle(listening, c.processing, speaking),
		Mode:       c.mode,
		Listening:  listening,
		Processing: c.processing,
		Speaking:   speaking,
		Transcript: transcript,
		Images:     len(c.images),
		Error:      c.lastErr,
	}
}

func (c *Coordinator) setError(message string) {
	c.mu.Lock()
	c.lastErr = message
	c.mu.Unlock()
}

// CaptureStateChanged, TranscriptUpdated and CaptureFailed make the
// coordinator a capture.Observer.
func (c *Coordinator) CaptureStateChanged(capture.Status) {
	c.events.StateChanged(c.Status())
}

func (c *Coordinator) TranscriptUpdated(text string) {
	c.events.TranscriptUpdated(text)
}

func (c *Coordinator) CaptureFailed(err error) {
	message := domain.UserMessage(err)
	c.setError(message)
	c.events.RequestFailed(captureErrorCode(err), message)
}

// SpeakingChanged makes the coordinator a speech.Observer.
func (c *Coordinator) SpeakingChanged(speaking bool) {
	c.events.SpeakingChanged(speaking)
	c.events.StateChanged(c.Status())
}

func captureErrorCode(err error) domain.ErrorCode {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return domain.ErrorCodePermission
	case errors.Is(err, domain.ErrUnsupportedEnvironment):
		return domain.ErrorCodeUnsupported
	default:
		return domain.ErrorCodeCapture
	}
}
