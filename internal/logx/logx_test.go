package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
)

func TestWithRequestAddsFields(t *testing.T) {
	capture := &logCapture{}
	log := WithRequest(newTestLogger(capture), "req-1", "grade")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["request"] != "req-1" {
		t.Fatalf("expected request field, got %+v", entry)
	}
	if entry["kind"] != "grade" {
		t.Fatalf("expected kind field, got %+v", entry)
	}
}

func TestWithRequestSkipsEmpty(t *testing.T) {
	capture := &logCapture{}
	log := WithRequest(newTestLogger(capture), "", "")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["request"]; ok {
		t.Fatalf("did not expect request field: %+v", entry)
	}
	if _, ok := entry["kind"]; ok {
		t.Fatalf("did not expect kind field: %+v", entry)
	}
}

func TestWithSessionAndTier(t *testing.T) {
	capture := &logCapture{}
	log := WithTier(WithSession(newTestLogger(capture), "s1"), "remote")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["session"] != "s1" || entry["tier"] != "remote" {
		t.Fatalf("expected session and tier fields, got %+v", entry)
	}
}

func TestCtxReturnsBoundLogger(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newTestLogger(capture))
	Ctx(ctx).Info("bound")

	if !bytes.Contains(capture.buf.Bytes(), []byte("bound")) {
		t.Fatalf("expected bound logger to receive entry, got %q", capture.buf.String())
	}
}

func TestOrDiscardNil(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatalf("expected discard logger")
	}
}

func newTestLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
