package espeak

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"studysync/internal/domain"
	"studysync/internal/ports"
)

const (
	baseWordsPerMinute = 175
	basePitch          = 50
	baseAmplitude      = 100
)

// Synthesizer implements ports.LocalSynthesizer with espeak-ng.
type Synthesizer struct {
	command  string
	language string
}

func New(command, language string) *Synthesizer {
	if command == "" {
		command = "espeak-ng"
	}
	if language == "" {
		language = "en"
	}
	return &Synthesizer{command: command, language: language}
}

// Voices lists installed voices for the configured language.
func (s *Synthesizer) Voices(ctx context.Context) ([]ports.Voice, error) {
	if _, err := exec.LookPath(s.command); err != nil {
		return nil, fmt.Errorf("%w: %s not found", domain.ErrUnsupportedEnvironment, s.command)
	}
	out, err := exec.CommandContext(ctx, s.command, "--voices="+s.language).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list espeak voices: %w", err)
	}
	return parseVoices(out), nil
}

// Speak blocks until the utterance finishes. Cancelling ctx silences it.
func (s *Synthesizer) Speak(ctx context.Context, text string, voice ports.Voice, prosody ports.Prosody) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	args := []string{
		"-s", strconv.Itoa(scale(baseWordsPerMinute, prosody.Rate, 80, 450)),
		"-p", strconv.Itoa(scale(basePitch, prosody.Pitch, 0, 99)),
		"-a", strconv.Itoa(scale(baseAmplitude, prosody.Volume, 0, 200)),
	}
	if voice.Name != "" {
		args = append(args, "-v", voice.Name)
	}
	args = append(args, "--", text)

	cmd := exec.CommandContext(ctx, s.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 500 * time.Millisecond
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return fmt.Errorf("espeak failed: %w: %s", err, detail)
		}
		return fmt.Errorf("espeak failed: %w", err)
	}
	return nil
}

// scale maps a 1.0-relative prosody factor onto espeak's absolute range.
func scale(base int, factor float64, lo, hi int) int {
	if factor <= 0 {
		factor = 1
	}
	v := int(math.Round(float64(base) * factor))
	return max(lo, min(hi, v))
}

// parseVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US            (en 3)
func parseVoices(out []byte) []ports.Voice {
	var voices []ports.Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	first := true
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if first {
			first = false
			if len(fields) > 0 && fields[0] == "Pty" {
				continue
			}
		}
		if len(fields) < 5 {
			continue
		}
		voices = append(voices, ports.Voice{
			Name:   fields[4],
			Locale: normalizeLocale(fields[1]),
		})
	}
	if len(voices) > 0 {
		voices[0].Default = true
	}
	return voices
}

func normalizeLocale(tag string) string {
	lang, region, ok := strings.Cut(tag, "-")
	if !ok {
		return strings.ToLower(tag)
	}
	return strings.ToLower(lang) + "-" + strings.ToUpper(region)
}
