package googletts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studysync/internal/ports"
)

const defaultBaseURL = "https://texttospeech.googleapis.com/v1"

// ErrNoAudio is returned when the service answers without audioContent.
var ErrNoAudio = errors.New("no audio content returned")

// Config selects the voice and encoding for remote synthesis.
type Config struct {
	APIKey       string
	BaseURL      string
	LanguageCode string
	VoiceName    string
	Gender       string
	Encoding     string
	SpeakingRate float64
	Pitch        float64
	Timeout      time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.LanguageCode == "" {
		c.LanguageCode = "en-US"
	}
	if c.VoiceName == "" {
		c.VoiceName = "en-US-Neural2-C"
	}
	if c.Gender == "" {
		c.Gender = "FEMALE"
	}
	if c.Encoding == "" {
		c.Encoding = "MP3"
	}
	if c.SpeakingRate <= 0 {
		c.SpeakingRate = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Client implements ports.RemoteSynthesizer using text:synthesize.
type Client struct {
	HTTPClient *http.Client
	cfg        Config
}

func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{HTTPClient: &http.Client{Timeout: cfg.Timeout}, cfg: cfg}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.cfg.APIKey) != ""
}

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceParams    `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceParams struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
	SSMLGender   string `json:"ssmlGender"`
}

type audioConfig struct {
	AudioEncoding string  `json:"audioEncoding"`
	Pitch         float64 `json:"pitch"`
	SpeakingRate  float64 `json:"speakingRate"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
	Error        *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Synthesize returns the decoded audio bytes for text.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !c.Configured() {
		return nil, &ports.UpstreamError{Code: "UNAUTHENTICATED", Message: "API key not configured"}
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is required")
	}

	body, err := json.Marshal(synthesizeRequest{
		Input: synthesisInput{Text: text},
		Voice: voiceParams{
			LanguageCode: c.cfg.LanguageCode,
			Name:         c.cfg.VoiceName,
			SSMLGender:   c.cfg.Gender,
		},
		AudioConfig: audioConfig{
			AudioEncoding: c.cfg.Encoding,
			Pitch:         c.cfg.Pitch,
			SpeakingRate:  c.cfg.SpeakingRate,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesize request: %w", err)
	}

	endpoint, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + "/text:synthesize")
	if err != nil {
		return nil, fmt.Errorf("invalid text-to-speech base URL: %w", err)
	}
	query := endpoint.Query()
	query.Set("key", c.cfg.APIKey)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.New("text-to-speech request failed: " + strings.ReplaceAll(err.Error(), c.cfg.APIKey, "REDACTED"))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesize response: %w", err)
	}

	var decoded synthesizeResponse
	decodeErr := json.Unmarshal(payload, &decoded)
	if decodeErr == nil && decoded.Error != nil {
		return nil, &ports.UpstreamError{Status: decoded.Error.Code, Code: decoded.Error.Status, Message: decoded.Error.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ports.UpstreamError{Status: resp.StatusCode, Message: strings.TrimSpace(string(payload))}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode synthesize response: %w", decodeErr)
	}
	if decoded.AudioContent == "" {
		return nil, ErrNoAudio
	}

	audio, err := base64.StdEncoding.DecodeString(decoded.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("invalid audioContent: %w", err)
	}
	return audio, nil
}
