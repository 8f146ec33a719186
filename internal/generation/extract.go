package generation

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	errNoJSON         = errors.New("no JSON object or array in response")
	errUnbalancedJSON = errors.New("JSON in response is not terminated")
)

var fenceMarker = regexp.MustCompile("(?i)```(?:json)?")

// StripFences removes Markdown code-fence markers and trims the result.
func StripFences(raw string) string {
	return strings.TrimSpace(fenceMarker.ReplaceAllString(raw, ""))
}

// Extract returns the first balanced {...} or [...] span of raw that is valid
// JSON, tolerating prose and fences around it.
func Extract(raw string) (string, error) {
	text := StripFences(raw)

	var firstErr error
	for offset := 0; offset < len(text); {
		rel := strings.IndexAny(text[offset:], "{[")
		if rel < 0 {
			break
		}
		start := offset + rel
		end, err := balancedEnd(text, start)
		if err == nil {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
			err = errors.New("extracted span is not valid JSON")
		}
		if firstErr == nil {
			firstErr = err
		}
		offset = start + 1
	}

	if firstErr != nil {
		return "", firstErr
	}
	return "", errNoJSON
}

// balancedEnd finds the index closing the bracket at start, skipping
// brackets inside string literals.
func balancedEnd(text string, start int) (int, error) {
	stack := make([]byte, 0, 8)
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return 0, errors.New("mismatched bracket in response JSON")
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, nil
			}
		}
	}
	return 0, errUnbalancedJSON
}
