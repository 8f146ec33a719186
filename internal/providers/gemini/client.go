package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studysync/internal/ports"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash-preview-09-2025"
)

// Config controls the generateContent client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client implements ports.Generator against the Gemini REST API.
type Client struct {
	HTTPClient *http.Client
	cfg        Config
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}
}

type request struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type response struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Generate performs exactly one generateContent call. Images precede the
// prompt text in the single user turn.
func (c *Client) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", &ports.UpstreamError{Code: "UNAUTHENTICATED", Message: "API key not configured"}
	}

	parts := make([]part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, part{InlineData: &inlineData{MimeType: img.MIMEType, Data: img.Base64()}})
	}
	parts = append(parts, part{Text: req.Prompt})

	body, err := json.Marshal(request{Contents: []content{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	endpoint, err := c.endpoint()
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", redact(err, c.cfg.APIKey))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gemini response: %w", err)
	}

	var decoded response
	decodeErr := json.Unmarshal(payload, &decoded)
	if decodeErr == nil && decoded.Error != nil {
		return "", &ports.UpstreamError{
			Status:  firstNonZero(decoded.Error.Code, resp.StatusCode),
			Code:    decoded.Error.Status,
			Message: decoded.Error.Message,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ports.UpstreamError{Status: resp.StatusCode, Message: strings.TrimSpace(string(payload))}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", decodeErr)
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		message := "no candidates in response"
		if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
			message = "prompt blocked: " + decoded.PromptFeedback.BlockReason
		}
		return "", &ports.UpstreamError{Status: resp.StatusCode, Code: "EMPTY_RESPONSE", Message: message}
	}

	var text strings.Builder
	for _, p := range decoded.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}

func (c *Client) endpoint() (string, error) {
	base := strings.TrimRight(strings.TrimSpace(c.cfg.BaseURL), "/")
	parsed, err := url.Parse(fmt.Sprintf("%s/models/%s:generateContent", base, c.cfg.Model))
	if err != nil {
		return "", fmt.Errorf("invalid Gemini API base URL: %w", err)
	}
	query := parsed.Query()
	query.Set("key", c.cfg.APIKey)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// redact strips the API key from transport errors, which embed the URL.
func redact(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), key, "REDACTED"), cause: err}
}

type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.cause }

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
