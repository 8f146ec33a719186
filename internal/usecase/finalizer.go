package usecase

import (
	"fmt"
	"strings"

	"pkt.systems/pslog"

	"studysync/internal/domain"
	"studysync/internal/ports"
)

type transcriptFinalizer struct {
	rules ports.TextRules
	log   pslog.Logger
}

func newTranscriptFinalizer(rules ports.TextRules, log pslog.Logger) transcriptFinalizer {
	return transcriptFinalizer{rules: rules, log: log}
}

// Finalize applies the correction rules to a captured transcript. A rules
// failure keeps the raw text.
func (f transcriptFinalizer) Finalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if f.rules == nil || raw == "" {
		return raw
	}
	corrected, err := f.rules.Apply(raw)
	if err != nil {
		f.log.Warn("transcript rules failed, using raw transcript", "err", err)
		return raw
	}
	return strings.TrimSpace(corrected)
}

// spokenLine is what the assistant says aloud for a result.
func spokenLine(result domain.Result) string {
	switch result.Kind {
	case domain.KindGrade:
		if result.Grade == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprintf("Here's the deal. You scored %d. %s", result.Grade.Score, result.Grade.Summary))
	case domain.KindFreeAsk:
		return result.Text
	case domain.KindQuiz:
		switch n := len(result.Quiz); n {
		case 0:
			return ""
		case 1:
			return "Your quiz is ready. One question. Let's go."
		default:
			return fmt.Sprintf("Your quiz is ready. %d questions. Let's go.", n)
		}
	case domain.KindNotesSummary:
		if result.Notes == nil {
			return ""
		}
		return result.Notes.Summary
	default:
		return ""
	}
}
