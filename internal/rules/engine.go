package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
)

//go:embed speech.rules
var speechRules string

type compiledRule interface {
	Apply(input string) (output string, changed bool)
}

// RuleParser parses one line into a compiled rule.
type RuleParser interface {
	CanParse(line string) bool
	Parse(line string) (compiledRule, error)
}

// RuleSet is an ordered group of rules applied until stable, at most Passes
// times.
type RuleSet struct {
	name   string
	rules  []compiledRule
	passes int
}

// ParseRuleSet compiles contents with the built-in parsers. passes <= 0
// defaults to 30.
func ParseRuleSet(name, contents string, passes int) (*RuleSet, error) {
	return ParseRuleSetWithParsers(name, contents, passes, defaultRuleParsers())
}

// ParseRuleSetWithParsers allows parser extension without engine changes.
func ParseRuleSetWithParsers(name, contents string, passes int, parsers []RuleParser) (*RuleSet, error) {
	if passes <= 0 {
		passes = 30
	}
	if len(parsers) == 0 {
		parsers = defaultRuleParsers()
	}
	rules, err := parseRules(contents, parsers)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s rules: %w", name, err)
	}
	return &RuleSet{name: name, rules: rules, passes: passes}, nil
}

// LoadRuleSet reads a rules file. A blank path or a missing file yields an
// empty set.
func LoadRuleSet(path string, passes int, parsers ...RuleParser) (*RuleSet, error) {
	if strings.TrimSpace(path) == "" {
		return &RuleSet{name: "empty", passes: 1}, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &RuleSet{name: path, passes: 1}, nil
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}
	return ParseRuleSetWithParsers(path, string(contents), passes, parsers)
}

// SpeechPauses returns the embedded pause-shaping rules. They run in a single
// pass so repeated punctuation is shortened exactly once.
func SpeechPauses() *RuleSet {
	set, err := ParseRuleSet("speech", speechRules, 1)
	if err != nil {
		panic(err)
	}
	return set
}

// Len reports how many rules the set holds.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

func (s *RuleSet) apply(text string) string {
	result := text
	for i := 0; i < s.passes; i++ {
		changed := false
		for _, rule := range s.rules {
			next, ruleChanged := rule.Apply(result)
			if ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return result
}

// Engine applies rule sets in order.
type Engine struct {
	sets []*RuleSet
	trim bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// TrimOutput trims surrounding whitespace from the final text.
func TrimOutput() EngineOption {
	return func(e *Engine) { e.trim = true }
}

// New builds an engine over the given sets; nil sets are skipped.
func New(sets []*RuleSet, opts ...EngineOption) *Engine {
	engine := &Engine{}
	for _, set := range sets {
		if set != nil && set.Len() > 0 {
			engine.sets = append(engine.sets, set)
		}
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// NewEngine loads transcript correction rules from a file.
func NewEngine(path string, loopLimit int) (*Engine, error) {
	set, err := LoadRuleSet(path, loopLimit)
	if err != nil {
		return nil, err
	}
	return New([]*RuleSet{set}), nil
}

// NewSpeechEngine shapes text for spoken delivery: user pronunciation rules
// from path (optional) and then the embedded pause rules, trimmed.
func NewSpeechEngine(path string, loopLimit int) (*Engine, error) {
	user, err := LoadRuleSet(path, loopLimit)
	if err != nil {
		return nil, err
	}
	return New([]*RuleSet{user, SpeechPauses()}, TrimOutput()), nil
}

// Apply transforms text deterministically.
func (e *Engine) Apply(text string) (string, error) {
	result := text
	for _, set := range e.sets {
		result = set.apply(result)
	}
	if e.trim {
		result = strings.TrimSpace(result)
	}
	return result, nil
}

func parseRules(contents string, parsers []RuleParser) ([]compiledRule, error) {
	lines := strings.Split(contents, "\n")
	rules := make([]compiledRule, 0, len(lines))

	for index, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parsed := false
		for _, parser := range parsers {
			if !parser.CanParse(line) {
				continue
			}
			rule, err := parser.Parse(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", index+1, err)
			}
			rules = append(rules, rule)
			parsed = true
			break
		}

		if !parsed {
			return nil, fmt.Errorf("line %d: unsupported rule format", index+1)
		}
	}

	return rules, nil
}

func defaultRuleParsers() []RuleParser {
	return []RuleParser{regexRuleParser{}, literalRuleParser{}}
}
