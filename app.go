package main

import (
	"context"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"pkt.systems/pslog"

	"studysync/internal/bootstrap"
	"studysync/internal/config"
	"studysync/internal/domain"
	"studysync/internal/usecase"
)

const (
	eventState      = "studysync:state"
	eventTranscript = "studysync:transcript"
	eventResult     = "studysync:result"
	eventError      = "studysync:error"
	eventSpeaking   = "studysync:speaking"
)

// App is the Wails application root.
type App struct {
	ctx context.Context
	log pslog.Logger

	coordinator *usecase.Coordinator
	cfg         config.Config
	bootErr     error
}

func NewApp(log pslog.Logger) *App {
	return &App{log: log}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, bootstrap.WithLogger(a.log))
	if err != nil {
		a.bootErr = err
		a.RequestFailed(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.coordinator = services.Coordinator
	a.StateChanged(a.coordinator.Status())
}

func (a *App) shutdown(context.Context) {
	if a.coordinator != nil {
		a.coordinator.Reset()
	}
}

// ToggleCapture starts or stops listening.
func (a *App) ToggleCapture() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	return a.coordinator.ToggleCapture(a.ctx)
}

// Submit grades the held explanation, or asks it in conversational mode.
func (a *App) Submit() (domain.Result, error) {
	if err := a.requireReady(); err != nil {
		return domain.Result{}, err
	}
	return a.coordinator.Submit(a.ctx)
}

func (a *App) GenerateQuiz() (domain.Result, error) {
	if err := a.requireReady(); err != nil {
		return domain.Result{}, err
	}
	return a.coordinator.GenerateQuiz(a.ctx)
}

func (a *App) GenerateNotes(topic string) (domain.Result, error) {
	if err := a.requireReady(); err != nil {
		return domain.Result{}, err
	}
	return a.coordinator.GenerateNotes(a.ctx, topic)
}

func (a *App) Ask(question string) (domain.Result, error) {
	if err := a.requireReady(); err != nil {
		return domain.Result{}, err
	}
	return a.coordinator.Ask(a.ctx, question)
}

// SetMode accepts "grading" or "conversational".
func (a *App) SetMode(mode string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.coordinator.SetMode(domain.ParseMode(mode))
	return nil
}

// AttachImages adds already downscaled images given as data URLs.
func (a *App) AttachImages(dataURLs []string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	images := make([]domain.Image, 0, len(dataURLs))
	for i, value := range dataURLs {
		img, err := domain.ImageFromDataURL(value)
		if err != nil {
			return fmt.Errorf("image %d: %w", i+1, err)
		}
		images = append(images, img)
	}
	return a.coordinator.AttachImages(images...)
}

func (a *App) ClearImages() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.coordinator.ClearImages()
	return nil
}

func (a *App) StopSpeaking() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.coordinator.StopSpeaking()
	return nil
}

func (a *App) Reset() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.coordinator.Reset()
	return nil
}

// GetResult returns the latest result of kind, if any.
func (a *App) GetResult(kind string) (*domain.Result, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	result, ok := a.coordinator.Result(domain.InstructionKind(kind))
	if !ok {
		return nil, nil
	}
	return &result, nil
}

// GetStatus returns the current coordinator status.
func (a *App) GetStatus() domain.Status {
	if a.coordinator == nil {
		status := domain.Status{State: domain.LifecycleIdle, Mode: domain.ModeGrading}
		if a.bootErr != nil {
			status.Error = a.bootErr.Error()
		}
		return status
	}
	return a.coordinator.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]any {
	if a.bootErr != nil {
		return map[string]any{"error": a.bootErr.Error()}
	}

	return map[string]any{
		"model":            a.cfg.Gemini.Model,
		"recognizer":       a.cfg.Deepgram.Model,
		"language":         a.cfg.Deepgram.Language,
		"voice":            a.cfg.TTS.VoiceName,
		"rulesFile":        a.cfg.Rules.Path,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"warnings":         a.cfg.Warnings(),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.coordinator == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// StateChanged emits lifecycle updates to the frontend.
func (a *App) StateChanged(status domain.Status) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventState, status)
}

// TranscriptUpdated emits the finalized transcript so far.
func (a *App) TranscriptUpdated(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTranscript, map[string]string{"text": text})
}

func (a *App) ResultReady(result domain.Result) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventResult, result)
}

// RequestFailed emits backend errors to the UI.
func (a *App) RequestFailed(code domain.ErrorCode, message string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"title":   errorTitle(code),
		"message": message,
	})
}

func (a *App) SpeakingChanged(speaking bool) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSpeaking, map[string]bool{"speaking": speaking})
}

func errorTitle(code domain.ErrorCode) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodePermission:
		return "Microphone blocked"
	case domain.ErrorCodeUnsupported:
		return "Speech unavailable"
	case domain.ErrorCodeCapture:
		return "Listening stopped"
	case domain.ErrorCodeRequest:
		return "Tutor request failed"
	case domain.ErrorCodeInput:
		return "Not ready yet"
	default:
		return "Something went wrong"
	}
}
