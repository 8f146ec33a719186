package logx

import (
	"context"
	"io"

	"pkt.systems/pslog"
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// Discard returns a logger that drops everything.
func Discard() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
}

// OrDiscard substitutes a discard logger for nil.
func OrDiscard(log pslog.Logger) pslog.Logger {
	if log == nil {
		return Discard()
	}
	return log
}

// WithRequest annotates the logger with request id and kind when present.
func WithRequest(log pslog.Logger, requestID string, kind string) pslog.Logger {
	log = OrDiscard(log)
	if requestID != "" {
		log = log.With("request", requestID)
	}
	if kind != "" {
		log = log.With("kind", kind)
	}
	return log
}

// WithSession annotates the logger with a capture session id when present.
func WithSession(log pslog.Logger, sessionID string) pslog.Logger {
	log = OrDiscard(log)
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// WithTier annotates the logger with a synthesis tier when present.
func WithTier(log pslog.Logger, tier string) pslog.Logger {
	log = OrDiscard(log)
	if tier != "" {
		log = log.With("tier", tier)
	}
	return log
}
