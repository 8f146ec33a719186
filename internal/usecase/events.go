package usecase

import (
	"sync"

	"studysync/internal/capture"
	"studysync/internal/domain"
)

// NopEvents discards every event.
type NopEvents struct{}

func (NopEvents) StateChanged(domain.Status) {}
func (NopEvents) TranscriptUpdated(string) {}
func (NopEvents) ResultReady(domain.Result) {}
func (NopEvents) RequestFailed(domain.ErrorCode, string) {}
func (NopEvents) SpeakingChanged(bool) {}

// Relay forwards capture and speech notifications to a coordinator that is
// built after the components it observes. Notifications before Bind are
// dropped.
type Relay struct {
	mu     sync.RWMutex
	target *Coordinator
}

func (r *Relay) Bind(c *Coordinator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = c
}

func (r *Relay) coordinator() *Coordinator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.target
}

func (r *Relay) CaptureStateChanged(status capture.Status) {
	if c := r.coordinator(); c != nil {
		c.CaptureStateChanged(status)
	}
}

func (r *Relay) TranscriptUpdated(text string) {
	if c := r.coordinator(); c != nil {
		c.TranscriptUpdated(text)
	}
}

func (r *Relay) CaptureFailed(err error) {
	if c := r.coordinator(); c != nil {
		c.CaptureFailed(err)
	}
}

func (r *Relay) SpeakingChanged(speaking bool) {
	if c := r.coordinator(); c != nil {
		c.SpeakingChanged(speaking)
	}
}
