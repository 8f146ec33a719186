package generation

import (
	"strings"
	"testing"

	"studysync/internal/domain"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("compile schemas: %v", err)
	}
	return v
}

func TestParseResultGrade(t *testing.T) {
	t.Parallel()

	raw := "Listen pal:\n```json\n" + `{
		"score": 84.6,
		"summary": " You got the gist. ",
		"missed_topics": [{"topic": "Osmosis", "explanation": "Water moves across membranes."}],
		"detailed_feedback": "Tighten it up."
	}` + "\n```"

	result, err := newTestValidator(t).ParseResult(domain.KindGrade, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Grade == nil || result.Grade.Score != 85 {
		t.Fatalf("unexpected grade: %+v", result.Grade)
	}
	if result.Grade.Summary != "You got the gist." {
		t.Fatalf("expected trimmed summary, got %q", result.Grade.Summary)
	}
	if len(result.Grade.MissedTopics) != 1 || result.Grade.MissedTopics[0].Topic != "Osmosis" {
		t.Fatalf("unexpected missed topics: %+v", result.Grade.MissedTopics)
	}
}

func TestParseResultGradeSchemaViolation(t *testing.T) {
	t.Parallel()

	_, err := newTestValidator(t).ParseResult(domain.KindGrade, `{"score": 150, "summary": "x"}`)
	if err == nil || !strings.Contains(err.Error(), "grade") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestParseResultQuiz(t *testing.T) {
	t.Parallel()

	raw := `[
		{"question": "2+2?", "options": ["1","2","3","4"], "correctAnswer": 3, "explanation": "math"},
		{"question": "Sky?", "options": ["blue","red","green","pink"], "correctIndex": 0}
	]`
	result, err := newTestValidator(t).ParseResult(domain.KindQuiz, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Quiz) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(result.Quiz))
	}
	if result.Quiz[0].CorrectIndex != 3 || result.Quiz[1].CorrectIndex != 0 {
		t.Fatalf("unexpected correct indices: %+v", result.Quiz)
	}
}

func TestParseResultQuizRejectsBadIndex(t *testing.T) {
	t.Parallel()

	raw := `[{"question": "q", "options": ["a","b","c","d"], "correctAnswer": 4}]`
	if _, err := newTestValidator(t).ParseResult(domain.KindQuiz, raw); err == nil {
		t.Fatalf("expected out of range error")
	}

	three := `[{"question": "q", "options": ["a","b","c"], "correctAnswer": 0}]`
	if _, err := newTestValidator(t).ParseResult(domain.KindQuiz, three); err == nil {
		t.Fatalf("expected option count error")
	}
}

func TestParseResultNotes(t *testing.T) {
	t.Parallel()

	raw := `{
		"title": "Cells",
		"subtitle": "Basics",
		"concepts": [{"title": "Nucleus", "icon": "brain", "description": "Holds DNA", "color": "#FBBF24"}],
		"keyStats": [{"label": "Organelles", "value": 12}, {"label": "Type", "value": "eukaryote"}],
		"summary": "Cells are small."
	}`
	result, err := newTestValidator(t).ParseResult(domain.KindNotesSummary, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	notes := result.Notes
	if notes == nil || notes.Title != "Cells" {
		t.Fatalf("unexpected notes: %+v", notes)
	}
	if notes.Concepts[0].ColorTag != "#FBBF24" {
		t.Fatalf("expected color tag, got %+v", notes.Concepts[0])
	}
	if notes.KeyStats[0].Value != "12" || notes.KeyStats[1].Value != "eukaryote" {
		t.Fatalf("unexpected key stats: %+v", notes.KeyStats)
	}
}

func TestParseResultFreeAsk(t *testing.T) {
	t.Parallel()

	result, err := newTestValidator(t).ParseResult(domain.KindFreeAsk, "  Mitochondria is the powerhouse, no cap. {not json}  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "Mitochondria is the powerhouse, no cap. {not json}" {
		t.Fatalf("free text should be returned untouched, got %q", result.Text)
	}

	if _, err := newTestValidator(t).ParseResult(domain.KindFreeAsk, "   "); err == nil {
		t.Fatalf("expected empty answer error")
	}
}
