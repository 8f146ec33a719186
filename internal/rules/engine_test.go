package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.rules")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func TestEngineTranscriptCorrections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rules string
		limit int
		input string
		want  string
	}{
		{
			name:  "misheard term by regex",
			rules: "# split syllables\ns/\\bmight\\s*o\\s*chondria\\b/mitochondria/g\n",
			input: "the MIGHT O CHONDRIA makes ATP",
			want:  "the mitochondria makes ATP",
		},
		{
			name:  "literal with regex in one pass",
			rules: "deoxy ribo nucleic acid => DNA\ns/\\bribo\\s+zomes?\\b/ribosomes/g\n",
			input: "deoxy ribo nucleic acid is read by ribo zomes",
			want:  "DNA is read by ribosomes",
		},
		{
			name:  "chained rules settle",
			rules: "photosynthesis in plants => photosynthesis\nphoto since this => photosynthesis\n",
			limit: 5,
			input: "photo since this in plants",
			want:  "photosynthesis",
		},
		{
			name:  "literal source starting with s",
			rules: "sell membrane => cell membrane\n",
			input: "the sell membrane is selective",
			want:  "the cell membrane is selective",
		},
		{
			name:  "first match only without g",
			rules: "s/\\bmeiosis\\b/mitosis/\n",
			limit: 1,
			input: "meiosis then meiosis",
			want:  "mitosis then meiosis",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			limit := tc.limit
			if limit == 0 {
				limit = 30
			}
			engine, err := NewEngine(writeRules(t, tc.rules), limit)
			if err != nil {
				t.Fatalf("new engine: %v", err)
			}
			got, err := engine.Apply(tc.input)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseRulesRejectsMalformedLines(t *testing.T) {
	t.Parallel()

	for _, line := range []string{
		"mitochondria",
		"s/atp/ATP/x",
		"s/(unclosed/ATP/g",
	} {
		if _, err := parseRules(line, defaultRuleParsers()); err == nil {
			t.Fatalf("expected %q to be rejected", line)
		}
	}
}

func TestEngineAcceptsExtraParsers(t *testing.T) {
	t.Parallel()

	parsers := append([]RuleParser{acronymRuleParser{}}, defaultRuleParsers()...)
	set, err := LoadRuleSet(writeRules(t, "acronym:adenosine triphosphate=>ATP\n"), 5, parsers...)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	got, err := New([]*RuleSet{set}).Apply("cells store energy as adenosine triphosphate")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got != "cells store energy as ATP" {
		t.Fatalf("unexpected output: %q", got)
	}
}

// acronymRuleParser reads "acronym:<phrase>=><short>" lines.
type acronymRuleParser struct{}

func (acronymRuleParser) CanParse(line string) bool {
	return strings.HasPrefix(line, "acronym:")
}

func (acronymRuleParser) Parse(line string) (compiledRule, error) {
	phrase, short, ok := strings.Cut(strings.TrimPrefix(line, "acronym:"), "=>")
	if !ok {
		return nil, fmt.Errorf("invalid acronym rule")
	}
	return parseLiteralRule(phrase + " => " + short)
}

func TestRegexRuleCaseSensitiveFlagAndGroups(t *testing.T) {
	t.Parallel()

	rule, err := parseRegexRule(`s/(DNA)\s+(\w+)/$2 $1/c`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if output, changed := rule.Apply("dna strand"); changed {
		t.Fatalf("case-sensitive rule should not match lowercase, got %q", output)
	}
	output, _ := rule.Apply("DNA strand and DNA helix")
	if output != "strand DNA and DNA helix" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestParseDelimitedEscapedDelimiter(t *testing.T) {
	t.Parallel()

	rule, err := parseRegexRule(`s/and\/or/or/g`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if output, _ := rule.Apply("cats and/or dogs"); output != "cats or dogs" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestLiteralReplacementIsNotExpanded(t *testing.T) {
	t.Parallel()

	rule, err := parseLiteralRule("dollar sign => $1")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if output, _ := rule.Apply("a dollar sign"); output != "a $1" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestLoadRuleSetMissingFile(t *testing.T) {
	t.Parallel()

	set, err := LoadRuleSet(filepath.Join(t.TempDir(), "missing.rules"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Len() != 0 {
		t.Fatalf("expected empty set")
	}
	engine := New([]*RuleSet{set, nil})
	if output, _ := engine.Apply(" unchanged "); output != " unchanged " {
		t.Fatalf("empty engine must not alter text, got %q", output)
	}
}
