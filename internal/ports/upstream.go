package ports

import (
	"fmt"
	"net/http"
	"strings"
)

// UpstreamError is an explicit error reported by a remote backend.
type UpstreamError struct {
	Status  int
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Message != "" && e.Code != "":
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	case e.Message != "":
		return e.Message
	case e.Status != 0:
		return fmt.Sprintf("upstream returned status %d", e.Status)
	default:
		return "upstream error"
	}
}

// overloadPhrases are matched against messages that carry no explicit code.
var overloadPhrases = []string{"overloaded", "rate limit", "too many requests"}

// Overloaded reports whether the error signals overload or rate limiting.
// Status and Code decide first; the message is consulted only when neither
// classifies the error as a client mistake.
func (e *UpstreamError) Overloaded() bool {
	if e.Status == http.StatusTooManyRequests || e.Status == http.StatusServiceUnavailable {
		return true
	}
	switch strings.ToUpper(e.Code) {
	case "RESOURCE_EXHAUSTED", "UNAVAILABLE":
		return true
	case "":
	default:
		return false
	}
	if e.Status >= 400 && e.Status < 500 {
		return false
	}
	message := strings.ToLower(e.Message)
	for _, phrase := range overloadPhrases {
		if strings.Contains(message, phrase) {
			return true
		}
	}
	return false
}
