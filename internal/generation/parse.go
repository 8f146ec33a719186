package generation

import (
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"studysync/internal/domain"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Validator checks extracted JSON against the per-kind schemas.
type Validator struct {
	schemas map[domain.InstructionKind]*gojsonschema.Schema
}

// NewValidator compiles the embedded schemas.
func NewValidator() (*Validator, error) {
	v := &Validator{schemas: map[domain.InstructionKind]*gojsonschema.Schema{}}
	for _, kind := range domain.Kinds() {
		if !kind.Structured() {
			continue
		}
		data, err := schemaFS.ReadFile("schemas/" + string(kind) + ".json")
		if err != nil {
			return nil, fmt.Errorf("missing schema for %q: %w", kind, err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("invalid schema for %q: %w", kind, err)
		}
		v.schemas[kind] = schema
	}
	return v, nil
}

// Validate returns nil when document satisfies the schema for kind.
func (v *Validator) Validate(kind domain.InstructionKind, document []byte) error {
	schema, ok := v.schemas[kind]
	if !ok {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		problems[i] = desc.String()
	}
	return fmt.Errorf("response does not match %s shape: %s", kind, strings.Join(problems, "; "))
}

type rawQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer *int     `json:"correctAnswer"`
	CorrectIndex  *int     `json:"correctIndex"`
	Explanation   string   `json:"explanation"`
}

type rawGrade struct {
	Score            float64              `json:"score"`
	Summary          string               `json:"summary"`
	MissedTopics     []domain.MissedTopic `json:"missed_topics"`
	DetailedFeedback string               `json:"detailed_feedback"`
}

type rawKeyStat struct {
	Label string          `json:"label"`
	Value json.RawMessage `json:"value"`
	Icon  string          `json:"icon"`
}

type rawNotes struct {
	Title       string           `json:"title"`
	Subtitle    string           `json:"subtitle"`
	ColorScheme []string         `json:"colorScheme"`
	Concepts    []domain.Concept `json:"concepts"`
	KeyStats    []rawKeyStat     `json:"keyStats"`
	Summary     string           `json:"summary"`
}

// ParseResult turns raw model output into a typed result. Any failure is
// reported as a parse error; callers classify it as malformed.
func (v *Validator) ParseResult(kind domain.InstructionKind, raw string) (domain.Result, error) {
	if !kind.Structured() {
		text := strings.TrimSpace(raw)
		result := domain.Result{Kind: kind, Text: text}
		return result, result.Validate()
	}

	span, err := Extract(raw)
	if err != nil {
		return domain.Result{}, err
	}
	if err := v.Validate(kind, []byte(span)); err != nil {
		return domain.Result{}, err
	}

	result := domain.Result{Kind: kind}
	switch kind {
	case domain.KindGrade:
		var grade rawGrade
		if err := json.Unmarshal([]byte(span), &grade); err != nil {
			return domain.Result{}, err
		}
		result.Grade = &domain.GradeResult{
			Score:            int(math.Round(grade.Score)),
			Summary:          strings.TrimSpace(grade.Summary),
			MissedTopics:     grade.MissedTopics,
			DetailedFeedback: strings.TrimSpace(grade.DetailedFeedback),
		}
	case domain.KindQuiz:
		var questions []rawQuestion
		if err := json.Unmarshal([]byte(span), &questions); err != nil {
			return domain.Result{}, err
		}
		result.Quiz = make([]domain.QuizQuestion, 0, len(questions))
		for _, q := range questions {
			correct := q.CorrectAnswer
			if correct == nil {
				correct = q.CorrectIndex
			}
			if correct == nil {
				return domain.Result{}, fmt.Errorf("question %q has no correct answer", q.Question)
			}
			result.Quiz = append(result.Quiz, domain.QuizQuestion{
				Question:     q.Question,
				Options:      q.Options,
				CorrectIndex: *correct,
				Explanation:  q.Explanation,
			})
		}
	case domain.KindNotesSummary:
		var notes rawNotes
		if err := json.Unmarshal([]byte(span), &notes); err != nil {
			return domain.Result{}, err
		}
		stats := make([]domain.KeyStat, 0, len(notes.KeyStats))
		for _, stat := range notes.KeyStats {
			stats = append(stats, domain.KeyStat{Label: stat.Label, Value: statValue(stat.Value), Icon: stat.Icon})
		}
		result.Notes = &domain.NotesSummary{
			Title:       notes.Title,
			Subtitle:    notes.Subtitle,
			ColorScheme: notes.ColorScheme,
			Concepts:    notes.Concepts,
			KeyStats:    stats,
			Summary:     notes.Summary,
		}
	}

	if err := result.Validate(); err != nil {
		return domain.Result{}, err
	}
	return result, nil
}

func statValue(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return strings.TrimSpace(string(raw))
}
