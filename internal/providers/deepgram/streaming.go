package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"studysync/internal/ports"
)

const (
	defaultBaseURL = "https://api.deepgram.com/v1"

	// netTimeoutCode is the close reason Deepgram uses when no audio arrives in time.
	netTimeoutCode = "NET-0001"
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	// KeepAlive is the interval between KeepAlive frames.
	KeepAlive time.Duration
}

// StreamError is a failure reported by Deepgram itself, not by the transport.
type StreamError struct {
	Code    string
	Message string
}

func (e *StreamError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Timeout reports whether Deepgram gave up waiting for audio.
func (e *StreamError) Timeout() bool {
	return e.Code == netTimeoutCode
}

// Provider opens live transcription sockets.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewProvider(cfg Config) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 5 * time.Second
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer}
}

// Configured reports whether an API key is present.
func (p *Provider) Configured() bool {
	return strings.TrimSpace(p.cfg.APIKey) != ""
}

// StartStreaming dials /listen. The session is closed when ctx is done.
func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if !p.Configured() {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	target, err := listenURL(p.cfg, cfg)
	if err != nil {
		return nil, err
	}

	header := http.Header{"Authorization": []string{"Token " + p.cfg.APIKey}}
	conn, resp, err := p.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &StreamError{Code: "UNAUTHORIZED", Message: "deepgram rejected the API key"}
		}
		return nil, fmt.Errorf("dial deepgram: %w", err)
	}

	session := newLiveSession(conn, p.cfg.KeepAlive)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()
	return session, nil
}

// listenURL maps the REST base onto its websocket /listen endpoint.
func listenURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid deepgram base URL: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("invalid deepgram base URL %q: unsupported scheme", base)
	}
	u.Path = path.Join("/", u.Path, "listen")

	encoding := streamCfg.Encoding
	if encoding == "" {
		encoding = "linear16"
	}
	rate := streamCfg.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	channels := streamCfg.Channels
	if channels <= 0 {
		channels = 1
	}

	params := url.Values{}
	params.Set("model", providerCfg.Model)
	params.Set("encoding", encoding)
	params.Set("sample_rate", strconv.Itoa(rate))
	params.Set("channels", strconv.Itoa(channels))
	params.Set("interim_results", strconv.FormatBool(streamCfg.InterimResults))
	params.Set("smart_format", strconv.FormatBool(providerCfg.SmartFormat))
	params.Set("punctuate", "true")
	if providerCfg.Language != "" {
		params.Set("language", providerCfg.Language)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

type alternative struct {
	Transcript string `json:"transcript"`
}

type channelResult struct {
	Alternatives []alternative `json:"alternatives"`
}

// liveMessage is any JSON frame Deepgram sends on /listen. Results arrive
// under channel; some proxies wrap them under results.channels.
type liveMessage struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel channelResult `json:"channel"`
	Results struct {
		Channels []channelResult `json:"channels"`
	} `json:"results"`
}

func (m liveMessage) transcript() string {
	if text := m.Channel.first(); text != "" {
		return text
	}
	if len(m.Results.Channels) > 0 {
		return m.Results.Channels[0].first()
	}
	return ""
}

func (c channelResult) first() string {
	if len(c.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(c.Alternatives[0].Transcript)
}

func (m liveMessage) isError() bool {
	return strings.EqualFold(m.Type, "Error")
}

func (m liveMessage) streamError() *StreamError {
	message := strings.TrimSpace(m.Description)
	if message == "" {
		message = strings.TrimSpace(m.Message)
	}
	if message == "" {
		message = "deepgram returned an unknown error"
	}
	return &StreamError{Code: strings.TrimSpace(m.Variant), Message: message}
}

func (m liveMessage) event() (ports.TranscriptEvent, bool) {
	text := m.transcript()
	if text == "" {
		return ports.TranscriptEvent{}, false
	}
	kind := ports.TranscriptKindPartial
	if m.IsFinal || m.SpeechFinal {
		kind = ports.TranscriptKindFinal
	}
	return ports.TranscriptEvent{Kind: kind, Text: text, IsSpeechFinal: m.SpeechFinal}, true
}

// controlFrame encodes a {"type": ...} control message.
func controlFrame(kind string) []byte {
	frame, _ := json.Marshal(struct {
		Type string `json:"type"`
	}{Type: kind})
	return frame
}
