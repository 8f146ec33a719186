package deepgram

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"studysync/internal/ports"
)

type fakeSession struct {
	events chan ports.TranscriptEvent
	done   chan struct{}

	closeSends chan struct{}

	mu        sync.Mutex
	sent      [][]byte
	closeOnce sync.Once
	err       error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		events:     make(chan ports.TranscriptEvent, 8),
		done:       make(chan struct{}),
		closeSends: make(chan struct{}, 4),
	}
}

func (s *fakeSession) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, append([]byte(nil), chunk...))
	return nil
}

func (s *fakeSession) CloseSend() error {
	s.closeSends <- struct{}{}
	return nil
}

func (s *fakeSession) waitCloseSend(t *testing.T) {
	t.Helper()
	select {
	case <-s.closeSends:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for CloseSend")
	}
}

func (s *fakeSession) Events() <-chan ports.TranscriptEvent { return s.events }

func (s *fakeSession) Wait() error {
	<-s.done
	return s.err
}

func (s *fakeSession) Close() error {
	s.finish(nil)
	return s.err
}

func (s *fakeSession) finish(err error) {
	s.closeOnce.Do(func() {
		s.err = err
		close(s.events)
		close(s.done)
	})
}

type fakeProvider struct {
	session *fakeSession
	err     error
}

func (p *fakeProvider) StartStreaming(ctx context.Context, _ ports.StreamingConfig) (ports.StreamingSession, error) {
	if p.err != nil {
		return nil, p.err
	}
	go func() {
		<-ctx.Done()
		p.session.finish(nil)
	}()
	return p.session, nil
}

type recordingHandler struct {
	mu      sync.Mutex
	results []ports.RecognitionEvent
	errors  []ports.RecognitionErrorCode
	ends    int
	ended   chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{ended: make(chan struct{}, 4)}
}

func (h *recordingHandler) OnResult(event ports.RecognitionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, event)
}

func (h *recordingHandler) OnError(code ports.RecognitionErrorCode, _ string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, code)
}

func (h *recordingHandler) OnEnd() {
	h.mu.Lock()
	h.ends++
	h.mu.Unlock()
	h.ended <- struct{}{}
}

func (h *recordingHandler) waitEnd(t *testing.T) {
	t.Helper()
	select {
	case <-h.ended:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for OnEnd")
	}
}

func TestRecognizerNumbersResults(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	rec := NewRecognizer(&fakeProvider{session: session}, ports.StreamingConfig{})
	handler := newRecordingHandler()

	media, writer := io.Pipe()
	defer writer.Close()
	if err := rec.Start(context.Background(), media, handler); err != nil {
		t.Fatalf("start: %v", err)
	}

	session.events <- ports.TranscriptEvent{Kind: ports.TranscriptKindPartial, Text: "cells"}
	session.events <- ports.TranscriptEvent{Kind: ports.TranscriptKindFinal, Text: "cells divide"}
	session.events <- ports.TranscriptEvent{Kind: ports.TranscriptKindFinal, Text: "by mitosis"}
	session.finish(nil)
	handler.waitEnd(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.results) != 3 {
		t.Fatalf("expected 3 result events, got %d", len(handler.results))
	}
	if handler.results[0].ResultIndex != 0 || handler.results[0].Results[0].IsFinal {
		t.Fatalf("expected partial at index 0, got %+v", handler.results[0])
	}
	if handler.results[1].ResultIndex != 0 || !handler.results[1].Results[0].IsFinal {
		t.Fatalf("expected final to replace partial, got %+v", handler.results[1])
	}
	last := handler.results[2]
	if last.ResultIndex != 1 || len(last.Results) != 2 || last.Results[1].Alternatives[0].Transcript != "by mitosis" {
		t.Fatalf("unexpected last event: %+v", last)
	}
	if len(handler.errors) != 0 || handler.ends != 1 {
		t.Fatalf("expected clean single end, errors=%v ends=%d", handler.errors, handler.ends)
	}
}

func TestRecognizerTimeoutIsNoSpeech(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	rec := NewRecognizer(&fakeProvider{session: session}, ports.StreamingConfig{})
	handler := newRecordingHandler()
	media, writer := io.Pipe()
	defer writer.Close()

	if err := rec.Start(context.Background(), media, handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.finish(&StreamError{Code: netTimeoutCode, Message: "timeout"})
	handler.waitEnd(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.errors) != 1 || handler.errors[0] != ports.RecognitionNoSpeech {
		t.Fatalf("expected no-speech, got %v", handler.errors)
	}
}

func TestRecognizerTransportFailureIsNetwork(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	rec := NewRecognizer(&fakeProvider{session: session}, ports.StreamingConfig{})
	handler := newRecordingHandler()
	media, writer := io.Pipe()
	defer writer.Close()

	if err := rec.Start(context.Background(), media, handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.finish(errors.New("failed to read provider event: connection reset"))
	handler.waitEnd(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.errors) != 1 || handler.errors[0] != ports.RecognitionNetwork {
		t.Fatalf("expected network error, got %v", handler.errors)
	}
}

func TestRecognizerMediaFailureIsAudioCapture(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	rec := NewRecognizer(&fakeProvider{session: session}, ports.StreamingConfig{})
	handler := newRecordingHandler()
	media, writer := io.Pipe()

	if err := rec.Start(context.Background(), media, handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := writer.Write([]byte(strings.Repeat("a", 512))); err != nil {
		t.Fatalf("write media: %v", err)
	}
	_ = writer.CloseWithError(errors.New("device unplugged"))

	deadline := time.Now().Add(2 * time.Second)
	for {
		session.mu.Lock()
		sent := len(session.sent)
		session.mu.Unlock()
		if sent > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	session.finish(nil)
	handler.waitEnd(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.errors) != 1 || handler.errors[0] != ports.RecognitionAudioCapture {
		t.Fatalf("expected audio-capture error, got %v", handler.errors)
	}
}

func TestRecognizerMediaEndIsAudioCapture(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	rec := NewRecognizer(&fakeProvider{session: session}, ports.StreamingConfig{})
	handler := newRecordingHandler()

	if err := rec.Start(context.Background(), strings.NewReader(strings.Repeat("a", 512)), handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.waitCloseSend(t)
	session.finish(nil)
	handler.waitEnd(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.errors) != 1 || handler.errors[0] != ports.RecognitionAudioCapture {
		t.Fatalf("a stream that ends by itself must report audio-capture, got %v", handler.errors)
	}
	if handler.ends != 1 {
		t.Fatalf("expected one end, got %d", handler.ends)
	}
}

func TestRecognizerMediaEndAfterStopIsClean(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	rec := NewRecognizer(&fakeProvider{session: session}, ports.StreamingConfig{})
	handler := newRecordingHandler()
	media, writer := io.Pipe()

	if err := rec.Start(context.Background(), media, handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	session.waitCloseSend(t)
	_ = writer.Close()
	session.waitCloseSend(t)
	session.finish(nil)
	handler.waitEnd(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.errors) != 0 || handler.ends != 1 {
		t.Fatalf("expected clean single end, errors=%v ends=%d", handler.errors, handler.ends)
	}
}

func TestRecognizerAbortEndsOnceWithAborted(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	rec := NewRecognizer(&fakeProvider{session: session}, ports.StreamingConfig{})
	handler := newRecordingHandler()
	media, writer := io.Pipe()
	defer writer.Close()

	if err := rec.Start(context.Background(), media, handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := rec.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}
	handler.waitEnd(t)
	if err := rec.Abort(); err != nil {
		t.Fatalf("second abort: %v", err)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.ends != 1 || len(handler.errors) != 1 || handler.errors[0] != ports.RecognitionAborted {
		t.Fatalf("expected one aborted end, errors=%v ends=%d", handler.errors, handler.ends)
	}
}

func TestRecognizerStartFailureHasNoEnd(t *testing.T) {
	t.Parallel()

	rec := NewRecognizer(&fakeProvider{err: errors.New("dial failed")}, ports.StreamingConfig{})
	handler := newRecordingHandler()
	if err := rec.Start(context.Background(), strings.NewReader(""), handler); err == nil {
		t.Fatalf("expected start error")
	}
	select {
	case <-handler.ended:
		t.Fatalf("failed start must not end")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestRecognizerRejectsConcurrentStart(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	rec := NewRecognizer(&fakeProvider{session: session}, ports.StreamingConfig{})
	media, writer := io.Pipe()
	defer writer.Close()

	handler := newRecordingHandler()
	if err := rec.Start(context.Background(), media, handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := rec.Start(context.Background(), media, newRecordingHandler()); !errors.Is(err, errAlreadyStarted) {
		t.Fatalf("expected already started, got %v", err)
	}
	session.finish(nil)
	handler.waitEnd(t)
}
