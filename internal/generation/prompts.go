package generation

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/valyala/fasttemplate"
	"gopkg.in/yaml.v3"

	"studysync/internal/domain"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

type promptFile struct {
	Version int                    `yaml:"version"`
	Prompts map[string]promptEntry `yaml:"prompts"`
}

type promptEntry struct {
	Structured bool   `yaml:"structured"`
	Template   string `yaml:"template"`
}

// PromptSet holds one compiled template per instruction kind.
type PromptSet struct {
	templates map[domain.InstructionKind]*fasttemplate.Template
}

// DefaultPrompts returns the embedded template set.
func DefaultPrompts() *PromptSet {
	set, err := ParsePrompts(defaultPromptsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts are invalid: %v", err))
	}
	return set
}

// LoadPrompts reads a template file. Kinds missing from the file keep the
// embedded defaults.
func LoadPrompts(path string) (*PromptSet, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPrompts(), nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultPrompts(), nil
		}
		return nil, fmt.Errorf("failed to read prompts file %q: %w", path, err)
	}
	override, err := parsePromptFile(contents)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompts file %q: %w", path, err)
	}

	set := DefaultPrompts()
	for kind, tpl := range override.templates {
		set.templates[kind] = tpl
	}
	return set, nil
}

// ParsePrompts parses a complete template set; every kind must be present.
func ParsePrompts(contents []byte) (*PromptSet, error) {
	set, err := parsePromptFile(contents)
	if err != nil {
		return nil, err
	}
	for _, kind := range domain.Kinds() {
		if _, ok := set.templates[kind]; !ok {
			return nil, fmt.Errorf("missing prompt for kind %q", kind)
		}
	}
	return set, nil
}

func parsePromptFile(contents []byte) (*PromptSet, error) {
	var file promptFile
	if err := yaml.Unmarshal(contents, &file); err != nil {
		return nil, err
	}

	set := &PromptSet{templates: make(map[domain.InstructionKind]*fasttemplate.Template, len(file.Prompts))}
	for name, entry := range file.Prompts {
		kind := domain.InstructionKind(name)
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown prompt kind %q", name)
		}
		if entry.Structured != kind.Structured() {
			return nil, fmt.Errorf("prompt %q: structured must be %t", name, kind.Structured())
		}
		if strings.TrimSpace(entry.Template) == "" {
			return nil, fmt.Errorf("prompt %q: template is empty", name)
		}
		tpl, err := fasttemplate.NewTemplate(entry.Template, "{{", "}}")
		if err != nil {
			return nil, fmt.Errorf("prompt %q: %w", name, err)
		}
		set.templates[kind] = tpl
	}
	return set, nil
}

// Render fills the template for kind. For quiz and notes requests the user
// text is an optional topic hint.
func (s *PromptSet) Render(kind domain.InstructionKind, text string) (string, error) {
	tpl, ok := s.templates[kind]
	if !ok {
		return "", fmt.Errorf("no prompt for kind %q", kind)
	}
	text = strings.ReplaceAll(strings.TrimSpace(text), `"`, `'`)
	topicLine := ""
	if text != "" {
		topicLine = fmt.Sprintf("Focus on this topic: %s.", text)
	}
	rendered := tpl.ExecuteString(map[string]interface{}{
		"text":  text,
		"topic": topicLine,
	})
	return strings.TrimSpace(rendered), nil
}
