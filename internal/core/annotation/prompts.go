package annotation

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

const (
	placeholderText        = "{{text}}"
	placeholderInstruction = "{{instruction}}"
)

// Templates holds the four annotation prompts.
type Templates struct {
	MaxChars           int    `yaml:"max_chars"`
	SummaryInstruction string `yaml:"summary_instruction"`
	Summary            string `yaml:"summary"`
	Classification     string `yaml:"classification"`
	Keywords           string `yaml:"keywords"`
	Sentiment          string `yaml:"sentiment"`
}

func DefaultTemplates() Templates {
	var t Templates
	if err := yaml.Unmarshal(defaultPromptsYAML, &t); err != nil {
		panic(fmt.Sprintf("embedded prompts.yaml: %v", err))
	}
	return t
}

// LoadTemplates overlays the YAML file at path on the embedded defaults.
// An empty path returns the defaults.
func LoadTemplates(path string) (Templates, error) {
	t := DefaultTemplates()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("read prompts file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Templates{}, fmt.Errorf("parse prompts file: %w", err)
	}
	if err := t.validate(); err != nil {
		return Templates{}, fmt.Errorf("prompts file %s: %w", path, err)
	}
	return t, nil
}

func (t Templates) validate() error {
	for name, tpl := range map[string]string{
		"summary":        t.Summary,
		"classification": t.Classification,
		"keywords":       t.Keywords,
		"sentiment":      t.Sentiment,
	} {
		if !strings.Contains(tpl, placeholderText) {
			return fmt.Errorf("template %q lacks %s placeholder", name, placeholderText)
		}
	}
	if !strings.Contains(t.Summary, placeholderInstruction) {
		return errors.New("summary template lacks {{instruction}} placeholder")
	}
	return nil
}

func (t Templates) summaryPrompt(text, customPrompt string) string {
	instruction := t.SummaryInstruction
	if custom := strings.TrimSpace(customPrompt); custom != "" {
		instruction = custom
	}
	prompt := strings.ReplaceAll(t.Summary, placeholderInstruction, instruction)
	return strings.ReplaceAll(prompt, placeholderText, t.snippet(text))
}

func (t Templates) classificationPrompt(text string) string {
	return strings.ReplaceAll(t.Classification, placeholderText, t.snippet(text))
}

func (t Templates) keywordsPrompt(text string) string {
	return strings.ReplaceAll(t.Keywords, placeholderText, t.snippet(text))
}

func (t Templates) sentimentPrompt(text string) string {
	return strings.ReplaceAll(t.Sentiment, placeholderText, t.snippet(text))
}

func (t Templates) snippet(text string) string {
	if t.MaxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= t.MaxChars {
		return text
	}
	return string(runes[:t.MaxChars])
}
