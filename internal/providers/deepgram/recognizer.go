package deepgram

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"pkt.systems/pslog"

	"studysync/internal/logx"
	"studysync/internal/ports"
)

var (
	errAlreadyStarted = errors.New("recognizer already started")
	errMediaEnded     = errors.New("audio stream ended")
)

// Recognizer adapts a streaming transcription provider to the continuous
// recognizer contract: results are numbered per run and every run ends with
// exactly one OnEnd.
type Recognizer struct {
	provider  ports.TranscriptionProvider
	stream    ports.StreamingConfig
	chunkSize int
	log       pslog.Logger

	mu  sync.Mutex
	run *recognition
}

type recognition struct {
	session ports.StreamingSession
	cancel  context.CancelFunc
	aborted atomic.Bool
	stopped atomic.Bool

	mediaMu  sync.Mutex
	mediaErr error
}

func (r *recognition) setMediaErr(err error) {
	r.mediaMu.Lock()
	defer r.mediaMu.Unlock()
	if r.mediaErr == nil {
		r.mediaErr = err
	}
}

func (r *recognition) mediaError() error {
	r.mediaMu.Lock()
	defer r.mediaMu.Unlock()
	return r.mediaErr
}

// RecognizerOption configures a Recognizer.
type RecognizerOption func(*Recognizer)

// WithChunkSize sets how many media bytes are read per send.
func WithChunkSize(n int) RecognizerOption {
	return func(r *Recognizer) {
		if n >= 256 {
			r.chunkSize = n
		}
	}
}

// WithRecognizerLogger attaches a logger.
func WithRecognizerLogger(log pslog.Logger) RecognizerOption {
	return func(r *Recognizer) { r.log = log }
}

func NewRecognizer(provider ports.TranscriptionProvider, stream ports.StreamingConfig, opts ...RecognizerOption) *Recognizer {
	stream.InterimResults = true
	r := &Recognizer{provider: provider, stream: stream, chunkSize: 3200}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logx.OrDiscard(r.log)
	return r
}

func (r *Recognizer) Start(ctx context.Context, media io.Reader, handler ports.RecognitionHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run != nil {
		return errAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	session, err := r.provider.StartStreaming(runCtx, r.stream)
	if err != nil {
		cancel()
		return err
	}

	run := &recognition{session: session, cancel: cancel}
	r.run = run
	go r.pump(run, media)
	go r.consume(runCtx, run, handler)
	return nil
}

// Stop ends the run once already captured audio has been transcribed.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	run := r.run
	r.mu.Unlock()
	if run == nil {
		return nil
	}
	run.stopped.Store(true)
	return run.session.CloseSend()
}

// Abort ends the run immediately; pending results are discarded.
func (r *Recognizer) Abort() error {
	r.mu.Lock()
	run := r.run
	r.run = nil
	r.mu.Unlock()
	if run == nil {
		return nil
	}
	run.aborted.Store(true)
	run.cancel()
	return nil
}

func (r *Recognizer) pump(run *recognition, media io.Reader) {
	buf := make([]byte, r.chunkSize)
	for {
		n, err := media.Read(buf)
		if run.aborted.Load() {
			return
		}
		if n > 0 {
			if sendErr := run.session.SendAudio(buf[:n]); sendErr != nil {
				return
			}
		}
		if err != nil {
			// The media stream only ends on its own when the device is gone.
			if !run.stopped.Load() {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
					err = errMediaEnded
				}
				run.setMediaErr(err)
			}
			_ = run.session.CloseSend()
			return
		}
	}
}

func (r *Recognizer) consume(ctx context.Context, run *recognition, handler ports.RecognitionHandler) {
	var results []ports.RecognitionResult
	for event := range run.session.Events() {
		if run.aborted.Load() {
			continue
		}
		index := len(results)
		if index > 0 && !results[index-1].IsFinal {
			index--
			results = results[:index]
		}
		results = append(results, ports.RecognitionResult{
			Alternatives: []ports.Alternative{{Transcript: event.Text, Confidence: 1}},
			IsFinal:      event.Kind == ports.TranscriptKindFinal,
		})
		handler.OnResult(ports.RecognitionEvent{
			ResultIndex: index,
			Results:     append([]ports.RecognitionResult(nil), results...),
		})
	}

	streamErr := run.session.Wait()
	if ctx.Err() != nil && !run.aborted.Load() {
		run.aborted.Store(true)
	}

	r.mu.Lock()
	if r.run == run {
		r.run = nil
	}
	r.mu.Unlock()
	run.cancel()

	if code, detail, ok := classify(run, streamErr); ok {
		r.log.Debug("recognizer run failed", "code", string(code), "detail", detail)
		handler.OnError(code, detail)
	}
	handler.OnEnd()
}

func classify(run *recognition, streamErr error) (ports.RecognitionErrorCode, string, bool) {
	if run.aborted.Load() {
		return ports.RecognitionAborted, "", true
	}
	if err := run.mediaError(); err != nil {
		return ports.RecognitionAudioCapture, err.Error(), true
	}
	if streamErr == nil {
		return "", "", false
	}
	var providerErr *StreamError
	if errors.As(streamErr, &providerErr) && providerErr.Timeout() {
		return ports.RecognitionNoSpeech, providerErr.Message, true
	}
	return ports.RecognitionNetwork, streamErr.Error(), true
}
