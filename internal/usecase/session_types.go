package usecase

import (
	"context"
	"strings"

	"studysync/internal/capture"
	"studysync/internal/domain"
)

// Capturer is the continuous speech capture the coordinator drives.
type Capturer interface {
	Start(ctx context.Context) error
	Stop() error
	Transcript() string
	Listening() bool
	Status() capture.Status
	Reset()
}

// Speaker is the tiered speech output.
type Speaker interface {
	Speak(text string)
	Stop()
	Speaking() bool
}

// Requester sends one generation request and waits for its outcome.
type Requester interface {
	Request(ctx context.Context, payload domain.RequestPayload) (domain.Result, error)
}

// dispatch describes one guarded request.
type dispatch struct {
	kind       domain.InstructionKind
	text       string
	needImages bool
	minText    int
	epoch      uint64
}

func (d dispatch) check(images int) error {
	if d.needImages && images == 0 {
		return ErrNoMaterial
	}
	if len(strings.TrimSpace(d.text)) < d.minText {
		return ErrTranscriptTooShort
	}
	return nil
}

const capturingMessage = "Stop listening first."

// guardMessage is what the user sees when d is refused before dispatch.
func (d dispatch) guardMessage() string {
	switch d.kind {
	case domain.KindGrade:
		return "I need images and some explanation first."
	case domain.KindFreeAsk:
		return "Ask me something first."
	default:
		return "Upload materials first."
	}
}

func lifecycle(listening, processing, speaking bool) domain.Lifecycle {
	switch {
	case listening:
		return domain.LifecycleListening
	case processing:
		return domain.LifecycleProcessing
	case speaking:
		return domain.LifecycleSpeaking
	default:
		return domain.LifecycleIdle
	}
}
