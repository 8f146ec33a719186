package capture

import (
	"strings"
	"sync"
)

// TranscriptBuffer accumulates finalized segments. Interim text never enters
// it.
type TranscriptBuffer struct {
	mu       sync.Mutex
	segments []string
}

// Append adds one finalized segment; blank segments are dropped.
func (b *TranscriptBuffer) Append(segment string) bool {
	text := strings.TrimSpace(segment)
	if text == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.segments = append(b.segments, text)
	return true
}

func (b *TranscriptBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.segments, " ")
}

// Len is the number of finalized segments.
func (b *TranscriptBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.segments)
}

func (b *TranscriptBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.segments = nil
}
