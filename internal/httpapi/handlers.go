package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"pkt.systems/pslog"

	"studysync/internal/domain"
	"studysync/internal/ports"
	"studysync/internal/providers/googletts"
)

// Requester sends one generation request.
type Requester interface {
	Request(ctx context.Context, payload domain.RequestPayload) (domain.Result, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Requests Requester
	// Synthesizer may be nil, in which case /api/tts reports a missing key.
	Synthesizer ports.RemoteSynthesizer
	// Metrics is served on /metrics when set.
	Metrics   http.Handler
	Log       pslog.Logger
	MaxImages int
}

type Handlers struct {
	deps Deps
}

func NewHandlers(deps Deps) Handlers {
	return Handlers{deps: deps}
}

func (h Handlers) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if h.deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.deps.Metrics))
	}
	e.POST("/api/analyze-explanation", h.analyzeExplanation)
	e.POST("/api/generate-quiz", h.generateQuiz)
	e.POST("/api/ask-tutor", h.askTutor)
	e.POST("/api/tts", h.tts)
	e.POST("/api/generate-infographic", h.generateInfographic)
}

type analyzeRequest struct {
	Transcript string   `json:"transcript"`
	Images     []string `json:"images"`
}

type quizRequest struct {
	Topic  string   `json:"topic"`
	Images []string `json:"images"`
}

type askRequest struct {
	Question string   `json:"question"`
	Images   []string `json:"images"`
}

type ttsRequest struct {
	Text string `json:"text"`
}

type infographicRequest struct {
	Topic   string   `json:"topic"`
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h Handlers) analyzeExplanation(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return badRequest(c, "Transcript is required")
	}
	result, err := h.request(c, domain.KindGrade, req.Transcript, req.Images)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result.Grade)
}

func (h Handlers) generateQuiz(c echo.Context) error {
	var req quizRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.Images) == 0 {
		return badRequest(c, "Upload study material first")
	}
	result, err := h.request(c, domain.KindQuiz, req.Topic, req.Images)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result.Quiz)
}

func (h Handlers) askTutor(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return badRequest(c, "Question is required")
	}
	result, err := h.request(c, domain.KindFreeAsk, req.Question, req.Images)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"response": result.Text})
}

func (h Handlers) generateInfographic(c echo.Context) error {
	var req infographicRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.Images) == 0 {
		return badRequest(c, "Upload study material first")
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = strings.TrimSpace(req.Content)
	}
	result, err := h.request(c, domain.KindNotesSummary, topic, req.Images)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result.Notes)
}

func (h Handlers) tts(c echo.Context) error {
	var req ttsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return badRequest(c, "Text is required")
	}
	if h.deps.Synthesizer == nil {
		return serverError(c, "API key not configured")
	}
	audio, err := h.deps.Synthesizer.Synthesize(c.Request().Context(), req.Text)
	if err != nil {
		h.deps.Log.Warn("tts failed", "err", err)
		if errors.Is(err, googletts.ErrNoAudio) {
			return serverError(c, "No audio content returned")
		}
		return serverError(c, domain.UserMessage(err))
	}
	return c.JSON(http.StatusOK, map[string]string{"audioContent": base64.StdEncoding.EncodeToString(audio)})
}

// request decodes images and sends the request. Input problems come back as
// *inputError.
func (h Handlers) request(c echo.Context, kind domain.InstructionKind, text string, encoded []string) (domain.Result, error) {
	images := make([]domain.Image, 0, len(encoded))
	for _, value := range encoded {
		img, err := domain.ImageFromDataURL(value)
		if err != nil {
			return domain.Result{}, &inputError{message: "Invalid image data"}
		}
		images = append(images, img)
	}
	payload, err := domain.NewRequestPayload(kind, strings.TrimSpace(text), images, h.deps.MaxImages)
	if err != nil {
		return domain.Result{}, &inputError{message: err.Error()}
	}

	// The request runs to completion even if the client goes away.
	result, err := h.deps.Requests.Request(context.WithoutCancel(c.Request().Context()), payload)
	if err != nil {
		h.deps.Log.Warn("tutor request failed", "kind", kind, "err", err)
		return domain.Result{}, err
	}
	return result, nil
}

type inputError struct {
	message string
}

func (e *inputError) Error() string { return e.message }

func writeError(c echo.Context, err error) error {
	var input *inputError
	if errors.As(err, &input) {
		return badRequest(c, input.message)
	}
	return serverError(c, domain.UserMessage(err))
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: message})
}

func serverError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: message})
}
