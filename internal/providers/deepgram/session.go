package deepgram

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"studysync/internal/ports"
)

var errSessionClosed = errors.New("deepgram session closed")

// liveSession pumps audio up and transcript events down one socket.
type liveSession struct {
	conn      *websocket.Conn
	keepAlive time.Duration

	events chan ports.TranscriptEvent
	outbox chan []byte

	// quit is closed by Close and readerDone by the reader. done closes
	// last, after events.
	quit       chan struct{}
	readerDone chan struct{}
	done       chan struct{}

	// outboxMu serializes closing outbox against in-flight sends.
	outboxMu     sync.RWMutex
	outboxClosed bool
	closeOutbox  sync.Once
	closeSession sync.Once

	errMu sync.Mutex
	err   error
}

func newLiveSession(conn *websocket.Conn, keepAlive time.Duration) *liveSession {
	s := &liveSession{
		conn:       conn,
		keepAlive:  keepAlive,
		events:     make(chan ports.TranscriptEvent, 64),
		outbox:     make(chan []byte, 32),
		quit:       make(chan struct{}),
		readerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}

	var loops sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		s.read()
	}()
	go func() {
		defer loops.Done()
		s.write()
	}()
	go func() {
		loops.Wait()
		close(s.events)
		_ = conn.Close()
		close(s.done)
	}()
	return s
}

func (s *liveSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.outboxMu.RLock()
	defer s.outboxMu.RUnlock()
	if s.outboxClosed {
		return errors.New("audio stream is already closed")
	}

	select {
	case s.outbox <- append([]byte(nil), chunk...):
		return nil
	case <-s.done:
		if err := s.failure(); err != nil {
			return err
		}
		return errSessionClosed
	}
}

// CloseSend asks Deepgram to flush and finish.
func (s *liveSession) CloseSend() error {
	s.closeOutbox.Do(func() {
		s.outboxMu.Lock()
		defer s.outboxMu.Unlock()
		s.outboxClosed = true
		close(s.outbox)
	})
	return nil
}

func (s *liveSession) Events() <-chan ports.TranscriptEvent {
	return s.events
}

func (s *liveSession) Wait() error {
	<-s.done
	return s.failure()
}

func (s *liveSession) Close() error {
	s.closeSession.Do(func() {
		close(s.quit)
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	return s.Wait()
}

func (s *liveSession) failure() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// fail records the first real failure. Orderly closes are not failures.
func (s *liveSession) fail(err error) {
	err = classifyClose(err)
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func classifyClose(err error) error {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return err
	}
	if strings.Contains(closeErr.Text, netTimeoutCode) {
		return &StreamError{Code: netTimeoutCode, Message: "no audio received before timeout"}
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return nil
	}
	return err
}

func (s *liveSession) write() {
	var keepAlive <-chan time.Time
	if s.keepAlive > 0 {
		ticker := time.NewTicker(s.keepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case chunk, open := <-s.outbox:
			if !open {
				s.send(websocket.TextMessage, controlFrame("CloseStream"), "close stream")
				return
			}
			if !s.send(websocket.BinaryMessage, chunk, "send audio") {
				return
			}
		case <-keepAlive:
			if !s.send(websocket.TextMessage, controlFrame("KeepAlive"), "send keepalive") {
				return
			}
		case <-s.readerDone:
			return
		}
	}
}

func (s *liveSession) send(messageType int, data []byte, what string) bool {
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		s.fail(fmt.Errorf("%s: %w", what, err))
		_ = s.conn.Close()
		return false
	}
	return true
}

func (s *liveSession) read() {
	defer close(s.readerDone)

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(fmt.Errorf("read deepgram frame: %w", err))
			return
		}

		var msg liveMessage
		if json.Unmarshal(frame, &msg) != nil {
			continue
		}
		if msg.isError() {
			s.fail(msg.streamError())
			return
		}
		if event, ok := msg.event(); ok {
			s.emit(event)
		}
	}
}

// emit blocks for final text until Close; partials are dropped when the
// consumer lags.
func (s *liveSession) emit(event ports.TranscriptEvent) {
	if event.Kind == ports.TranscriptKindFinal {
		select {
		case s.events <- event:
		case <-s.quit:
		}
		return
	}
	select {
	case s.events <- event:
	default:
	}
}
