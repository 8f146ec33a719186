package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studysync/internal/domain"
	"studysync/internal/ports"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(srv *httptest.Server, key string) *Client {
	client := NewClient(Config{APIKey: key})
	client.HTTPClient = &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		req.URL.Scheme = "http"
		req.URL.Host = srv.Listener.Addr().String()
		return http.DefaultTransport.RoundTrip(req)
	})}
	return client
}

func TestGenerateSendsImagesThenPrompt(t *testing.T) {
	t.Parallel()

	var got request
	var path, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"score\":90,\"summary\":\"nice\"}"}]}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv, "test-key")
	text, err := client.Generate(context.Background(), ports.GenerateRequest{
		Prompt: "grade this",
		Images: []domain.Image{{MIMEType: "image/png", Data: []byte("png")}, {MIMEType: "image/jpeg", Data: []byte("jpg")}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != `{"score":90,"summary":"nice"}` {
		t.Fatalf("unexpected text: %q", text)
	}
	if path != "/v1beta/models/"+defaultModel+":generateContent" || key != "test-key" {
		t.Fatalf("unexpected endpoint path=%q key=%q", path, key)
	}
	if len(got.Contents) != 1 || len(got.Contents[0].Parts) != 3 {
		t.Fatalf("unexpected request shape: %+v", got)
	}
	parts := got.Contents[0].Parts
	if parts[0].InlineData == nil || parts[0].InlineData.MimeType != "image/png" || parts[0].InlineData.Data != "cG5n" {
		t.Fatalf("unexpected first image part: %+v", parts[0])
	}
	if parts[2].Text != "grade this" || parts[2].InlineData != nil {
		t.Fatalf("prompt must be the last part, got %+v", parts[2])
	}
}

func TestGenerateSurfacesUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"The model is overloaded. Please try again later.","status":"UNAVAILABLE"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, "k").Generate(context.Background(), ports.GenerateRequest{Prompt: "x"})
	var upstream *ports.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if upstream.Status != 503 || upstream.Code != "UNAVAILABLE" || !upstream.Overloaded() {
		t.Fatalf("unexpected upstream error: %+v", upstream)
	}
}

func TestGenerateNonJSONErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, "k").Generate(context.Background(), ports.GenerateRequest{Prompt: "x"})
	var upstream *ports.UpstreamError
	if !errors.As(err, &upstream) || upstream.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 upstream error, got %v", err)
	}
	if !strings.Contains(upstream.Message, "bad gateway") {
		t.Fatalf("expected body in message, got %q", upstream.Message)
	}
}

func TestGenerateEmptyCandidates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, "k").Generate(context.Background(), ports.GenerateRequest{Prompt: "x"})
	var upstream *ports.UpstreamError
	if !errors.As(err, &upstream) || upstream.Code != "EMPTY_RESPONSE" {
		t.Fatalf("expected empty response error, got %v", err)
	}
	if !strings.Contains(upstream.Message, "SAFETY") {
		t.Fatalf("expected block reason, got %q", upstream.Message)
	}
}

func TestGenerateWithoutKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{}).Generate(context.Background(), ports.GenerateRequest{Prompt: "x"})
	var upstream *ports.UpstreamError
	if !errors.As(err, &upstream) || upstream.Message != "API key not configured" {
		t.Fatalf("expected missing key error, got %v", err)
	}
	if upstream.Overloaded() {
		t.Fatalf("missing key must not be treated as overload")
	}
}

func TestRedactRemovesKey(t *testing.T) {
	t.Parallel()

	err := redact(errors.New(`Post "https://x/models/m?key=secret": dial tcp`), "secret")
	if strings.Contains(err.Error(), "secret") {
		t.Fatalf("key leaked: %v", err)
	}
}
