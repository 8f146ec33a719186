package speech

import (
	"testing"

	"studysync/internal/ports"
)

func TestSelectVoice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		voices []ports.Voice
		prefs  Preferences
		want   string
	}{
		{
			name:   "configured name wins",
			voices: []ports.Voice{{Name: "Google US English", Locale: "en-US"}, {Name: "gmw/en-US", Locale: "en-US"}},
			prefs:  Preferences{Name: "gmw/en-us"},
			want:   "gmw/en-US",
		},
		{
			name:   "google us english",
			voices: []ports.Voice{{Name: "Samantha", Locale: "en-US"}, {Name: "Google UK English", Locale: "en-GB"}, {Name: "Google US English", Locale: "en-US"}},
			want:   "Google US English",
		},
		{
			name:   "any google",
			voices: []ports.Voice{{Name: "Samantha", Locale: "en-US"}, {Name: "Google Deutsch", Locale: "de-DE"}},
			want:   "Google Deutsch",
		},
		{
			name:   "premium same locale",
			voices: []ports.Voice{{Name: "Karen", Locale: "en-US"}, {Name: "Ava (Premium)", Locale: "en_US"}, {Name: "Neural Brit", Locale: "en-GB"}},
			want:   "Ava (Premium)",
		},
		{
			name:   "familiar names",
			voices: []ports.Voice{{Name: "Alex", Locale: "en-US", Default: true}, {Name: "Microsoft Zira", Locale: "en-US"}},
			want:   "Microsoft Zira",
		},
		{
			name:   "locale default",
			voices: []ports.Voice{{Name: "Thomas", Locale: "fr-FR", Default: true}, {Name: "Alex", Locale: "en-US"}, {Name: "Fred", Locale: "en-US", Default: true}},
			want:   "Fred",
		},
		{
			name:   "any same locale",
			voices: []ports.Voice{{Name: "Thomas", Locale: "fr-FR"}, {Name: "Alex", Locale: "en-US"}},
			want:   "Alex",
		},
		{
			name:   "first voice",
			voices: []ports.Voice{{Name: "Thomas", Locale: "fr-FR"}, {Name: "Anna", Locale: "de-DE"}},
			want:   "Thomas",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := SelectVoice(tc.voices, tc.prefs)
			if !ok || got.Name != tc.want {
				t.Fatalf("SelectVoice() = %+v (ok=%v), want %s", got, ok, tc.want)
			}
		})
	}
}

func TestSelectVoiceEmpty(t *testing.T) {
	t.Parallel()

	if _, ok := SelectVoice(nil, Preferences{}); ok {
		t.Fatalf("expected no voice for empty list")
	}
}
