package ports

import (
	"context"
	"io"

	"studysync/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live microphone stream. Stop releases the device.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture acquires microphone streams.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// RecognitionErrorCode mirrors the native recognizer error vocabulary.
type RecognitionErrorCode string

const (
	RecognitionNoSpeech     RecognitionErrorCode = "no-speech"
	RecognitionAudioCapture RecognitionErrorCode = "audio-capture"
	RecognitionNetwork      RecognitionErrorCode = "network"
	RecognitionNotAllowed   RecognitionErrorCode = "not-allowed"
	RecognitionAborted      RecognitionErrorCode = "aborted"
)

// Alternative is one hypothesis for a recognition result.
type Alternative struct {
	Transcript string
	Confidence float64
}

// RecognitionResult groups alternatives for one segment of speech.
type RecognitionResult struct {
	Alternatives []Alternative
	IsFinal      bool
}

// RecognitionEvent reports the results list of the current run. Only entries
// at ResultIndex and later changed since the previous event.
type RecognitionEvent struct {
	ResultIndex int
	Results     []RecognitionResult
}

// RecognitionHandler receives recognizer callbacks. Every successful Start is
// followed by exactly one OnEnd, after any OnError.
type RecognitionHandler interface {
	OnResult(event RecognitionEvent)
	OnError(code RecognitionErrorCode, detail string)
	OnEnd()
}

// Recognizer is a continuous speech recognizer fed from a media stream.
type Recognizer interface {
	Start(ctx context.Context, media io.Reader, handler RecognitionHandler) error
	Stop() error
	Abort() error
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent is incremental transcription output from a provider.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// GenerateRequest is a single outbound call to the generation backend.
type GenerateRequest struct {
	Prompt string
	Images []domain.Image
}

// Generator is the generation backend. Explicit upstream errors are returned
// as *UpstreamError; any other error is a transport failure.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// RemoteSynthesizer turns text into an encoded audio payload.
type RemoteSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AudioPlayer plays an encoded payload and returns once playback ends.
// Cancelling ctx stops playback.
type AudioPlayer interface {
	Play(ctx context.Context, audio []byte) error
}

// Voice is a voice offered by the local synthesis engine.
type Voice struct {
	Name    string `json:"name"`
	Locale  string `json:"locale"`
	Default bool   `json:"default"`
}

// Prosody is the fixed delivery configuration for local synthesis.
type Prosody struct {
	Rate   float64
	Pitch  float64
	Volume float64
}

// LocalSynthesizer is the on-device synthesis engine. Speak blocks until the
// utterance ends or ctx is cancelled.
type LocalSynthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, text string, voice Voice, prosody Prosody) error
}

// TextRules rewrites text deterministically.
type TextRules interface {
	Apply(text string) (string, error)
}

// EventSink emits coordinator state and results to the UI.
type EventSink interface {
	StateChanged(status domain.Status)
	TranscriptUpdated(text string)
	ResultReady(result domain.Result)
	RequestFailed(code domain.ErrorCode, message string)
	SpeakingChanged(speaking bool)
}
