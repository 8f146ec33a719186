package domain

import (
	"errors"
	"fmt"
)

// MissedTopic is a concept the explanation did not cover.
type MissedTopic struct {
	Topic       string `json:"topic"`
	Explanation string `json:"explanation"`
}

// GradeResult scores a spoken explanation against the study material.
type GradeResult struct {
	Score            int           `json:"score"`
	Summary          string        `json:"summary"`
	MissedTopics     []MissedTopic `json:"missed_topics"`
	DetailedFeedback string        `json:"detailed_feedback"`
}

// QuizQuestion is one multiple choice question.
type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctAnswer"`
	Explanation  string   `json:"explanation"`
}

// QuizOptionCount is the number of options every question carries.
const QuizOptionCount = 4

// Validate enforces the option count and the correct answer range.
func (q QuizQuestion) Validate() error {
	if len(q.Options) != QuizOptionCount {
		return fmt.Errorf("question %q has %d options, want %d", q.Question, len(q.Options), QuizOptionCount)
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("question %q has correct answer %d outside [0,%d)", q.Question, q.CorrectIndex, len(q.Options))
	}
	return nil
}

// Concept is one card of a notes summary.
type Concept struct {
	Title       string `json:"title"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description"`
	ColorTag    string `json:"color"`
}

// KeyStat is a short label/value fact.
type KeyStat struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Icon  string `json:"icon,omitempty"`
}

// NotesSummary is the structured study-notes payload.
type NotesSummary struct {
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle"`
	ColorScheme []string  `json:"colorScheme,omitempty"`
	Concepts    []Concept `json:"concepts"`
	KeyStats    []KeyStat `json:"keyStats"`
	Summary     string    `json:"summary"`
}

// Result is a tagged union keyed by Kind. Exactly one payload field is set.
type Result struct {
	Kind     InstructionKind `json:"kind"`
	Grade    *GradeResult    `json:"grade,omitempty"`
	Quiz     []QuizQuestion  `json:"quiz,omitempty"`
	Text     string          `json:"text,omitempty"`
	Notes    *NotesSummary   `json:"notes,omitempty"`
	Fallback bool            `json:"fallback,omitempty"`
}

// Validate checks that the payload matches the kind and is well formed.
func (r Result) Validate() error {
	switch r.Kind {
	case KindGrade:
		if r.Grade == nil {
			return errors.New("grade result is empty")
		}
		if r.Grade.Score < 0 || r.Grade.Score > 100 {
			return fmt.Errorf("grade score %d outside [0,100]", r.Grade.Score)
		}
	case KindQuiz:
		if len(r.Quiz) == 0 {
			return errors.New("quiz result has no questions")
		}
		for _, q := range r.Quiz {
			if err := q.Validate(); err != nil {
				return err
			}
		}
	case KindFreeAsk:
		if r.Text == "" {
			return errors.New("answer is empty")
		}
	case KindNotesSummary:
		if r.Notes == nil {
			return errors.New("notes result is empty")
		}
	default:
		return fmt.Errorf("unknown result kind %q", r.Kind)
	}
	return nil
}
