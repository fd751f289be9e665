package provider

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

func TestToGeminiContents_SplitsSystem(t *testing.T) {
	t.Parallel()

	system, contents := toGeminiContents([]Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "page text"},
		{Role: "assistant", Content: "ok"},
		{Role: "user", Content: "again"},
	})
	if system == nil || len(system.Parts) != 1 || system.Parts[0].Text != "be brief" {
		t.Fatalf("system=%+v", system)
	}
	if len(contents) != 3 {
		t.Fatalf("contents=%d, want 3", len(contents))
	}
	wantRoles := []string{genai.RoleUser, genai.RoleModel, genai.RoleUser}
	for i, c := range contents {
		if c.Role != wantRoles[i] {
			t.Fatalf("contents[%d].Role=%q, want %q", i, c.Role, wantRoles[i])
		}
	}
}

func TestToGeminiContents_NoSystem(t *testing.T) {
	t.Parallel()

	system, contents := toGeminiContents([]Message{{Role: "user", Content: "x"}})
	if system != nil {
		t.Fatalf("system=%+v, want nil", system)
	}
	if len(contents) != 1 {
		t.Fatalf("contents=%d", len(contents))
	}
}

func TestNewGemini_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewGemini(context.Background(), GeminiConfig{Model: "m"}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("missing key: err=%v", err)
	}
	if _, err := NewGemini(context.Background(), GeminiConfig{APIKey: "k"}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("missing model: err=%v", err)
	}
}
