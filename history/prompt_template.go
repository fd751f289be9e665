package history

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/theimaginaryfoundation/browse-o-bot/history/provider"
	"gopkg.in/yaml.v3"
)

// PromptTemplate is a message list with placeholders in its first user message,
// plus an optional response schema. Files may be JSON or YAML.
type PromptTemplate struct {
	Name           string             `json:"name,omitempty" yaml:"name,omitempty"`
	Messages       []provider.Message `json:"messages" yaml:"messages"`
	ResponseSchema map[string]any     `json:"response_schema,omitempty" yaml:"response_schema,omitempty"`
	// Strict defaults to true. Set it to false for schemas that leave objects open or
	// accept alternative shapes.
	Strict *bool `json:"strict,omitempty" yaml:"strict,omitempty"`
}

// LoadPromptTemplate reads a template file. JSON is accepted since it is valid YAML.
func LoadPromptTemplate(path string) (PromptTemplate, error) {
	if path == "" {
		return PromptTemplate{}, fmt.Errorf("%w: LoadPromptTemplate: path is empty", ErrConfiguration)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return PromptTemplate{}, fmt.Errorf("%w: prompt file %s", ErrInputNotFound, path)
		}
		return PromptTemplate{}, fmt.Errorf("LoadPromptTemplate: read file: %w", err)
	}
	var t PromptTemplate
	if err := yaml.Unmarshal(b, &t); err != nil {
		return PromptTemplate{}, fmt.Errorf("%w: decode prompt file %s: %v", ErrConfiguration, path, err)
	}
	if t.Name == "" {
		t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return t, nil
}

// Validate checks the template has messages, a user message carrying every placeholder,
// and a response schema when one is required.
func (t PromptTemplate) Validate(requireSchema bool, placeholders ...string) error {
	if len(t.Messages) == 0 {
		return fmt.Errorf("%w: prompt %q has no messages", ErrConfiguration, t.Name)
	}
	idx := t.userIndex()
	if idx < 0 {
		return fmt.Errorf("%w: prompt %q: %v", ErrConfiguration, t.Name, ErrTemplate)
	}
	user := t.Messages[idx].Content
	var missing []string
	for _, p := range placeholders {
		if !strings.Contains(user, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: prompt %q user message is missing placeholders %s",
			ErrConfiguration, t.Name, strings.Join(missing, ", "))
	}
	if requireSchema && len(t.ResponseSchema) == 0 {
		return fmt.Errorf("%w: prompt %q has no response_schema", ErrConfiguration, t.Name)
	}
	return nil
}

// Render returns a copy of the messages with replacements applied to the first user message.
// Substitution is a single pass, so replacement text is never itself re-expanded.
func (t PromptTemplate) Render(replacements map[string]string) ([]provider.Message, error) {
	idx := t.userIndex()
	if idx < 0 {
		return nil, ErrTemplate
	}
	out := make([]provider.Message, len(t.Messages))
	copy(out, t.Messages)

	pairs := make([]string, 0, len(replacements)*2)
	for _, k := range slices.Sorted(maps.Keys(replacements)) {
		pairs = append(pairs, k, replacements[k])
	}
	out[idx].Content = strings.NewReplacer(pairs...).Replace(out[idx].Content)
	return out, nil
}

// Schema returns the template's response schema in gateway form, or nil.
func (t PromptTemplate) Schema(name string) *provider.Schema {
	if len(t.ResponseSchema) == 0 {
		return nil
	}
	return &provider.Schema{
		Name:       name,
		Definition: t.ResponseSchema,
		Strict:     t.Strict == nil || *t.Strict,
	}
}

func (t PromptTemplate) userIndex() int {
	for i, m := range t.Messages {
		if strings.EqualFold(strings.TrimSpace(m.Role), "user") {
			return i
		}
	}
	return -1
}
