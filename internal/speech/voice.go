package speech

import (
	"strings"

	"studysync/internal/ports"
)

// Preferences steer local voice selection.
type Preferences struct {
	// Name is matched before any built-in preference.
	Name   string
	Locale string
}

var (
	premiumMarkers  = []string{"Natural", "Premium", "Neural", "Samantha"}
	familiarMarkers = []string{"Victoria", "Karen", "Moira", "Zira"}
)

// DefaultProsody is the fixed delivery used by the local tier.
func DefaultProsody() ports.Prosody {
	return ports.Prosody{Rate: 0.85, Pitch: 0.95, Volume: 1.0}
}

// SelectVoice picks the best voice by a fixed preference order. It reports
// false only when voices is empty.
func SelectVoice(voices []ports.Voice, prefs Preferences) (ports.Voice, bool) {
	if len(voices) == 0 {
		return ports.Voice{}, false
	}
	locale := prefs.Locale
	if locale == "" {
		locale = "en-US"
	}
	sameLocale := func(v ports.Voice) bool { return localeEqual(v.Locale, locale) }

	rules := []func(ports.Voice) bool{
		func(v ports.Voice) bool {
			return prefs.Name != "" && strings.Contains(strings.ToLower(v.Name), strings.ToLower(prefs.Name))
		},
		func(v ports.Voice) bool { return strings.Contains(v.Name, "Google US English") },
		func(v ports.Voice) bool { return strings.Contains(v.Name, "Google") },
		func(v ports.Voice) bool { return sameLocale(v) && containsAny(v.Name, premiumMarkers) },
		func(v ports.Voice) bool { return sameLocale(v) && containsAny(v.Name, familiarMarkers) },
		func(v ports.Voice) bool { return sameLocale(v) && v.Default },
		sameLocale,
	}
	for _, match := range rules {
		for _, v := range voices {
			if match(v) {
				return v, true
			}
		}
	}
	return voices[0], true
}

func containsAny(name string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func localeEqual(a, b string) bool {
	normalize := func(s string) string { return strings.ToLower(strings.ReplaceAll(s, "_", "-")) }
	return normalize(a) == normalize(b)
}
