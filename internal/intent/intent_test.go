package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ilzarachman/chatbot-helpdesk/internal/conversation"
	"github.com/ilzarachman/chatbot-helpdesk/internal/model"
	"github.com/ilzarachman/chatbot-helpdesk/internal/prompt"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want Intent
		ok   bool
	}{
		{"academic_administration", AcademicAdministration, true},
		{"Resource_Service", ResourceService, true},
		{"  SUPPORT.\n", Support, true},
		{"\"other\"", Other, true},
		{"**support**", Support, true},
		{"academic administration", Other, false},
		{"I think this is about grades", Other, false},
		{"", Other, false},
	}

	for _, tt := range tests {
		got, ok := Parse(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Parse(%q) = (%s, %v), want (%s, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCatalogListsEveryIntent(t *testing.T) {
	catalog := Catalog()
	for _, i := range All() {
		if !strings.Contains(catalog, string(i)) {
			t.Errorf("catalog missing %s:\n%s", i, catalog)
		}
		if i.Description() == "" {
			t.Errorf("%s has no description", i)
		}
	}
}

type stubGenerator struct {
	calls    int
	output   string
	err      error
	messages []model.Message
}

func (s *stubGenerator) Generate(ctx context.Context, messages []model.Message) (string, error) {
	s.calls++
	s.messages = messages
	return s.output, s.err
}

func (s *stubGenerator) Stream(ctx context.Context, messages []model.Message, fn model.StreamFunc) error {
	return errors.New("not used")
}

func testRegistry(t *testing.T) *prompt.Registry {
	t.Helper()
	reg, err := prompt.NewEmbedded()
	if err != nil {
		t.Fatalf("loading prompts: %v", err)
	}
	return reg
}

func TestClassifyMatchesCompletion(t *testing.T) {
	gen := &stubGenerator{output: "Resource_Service\n"}
	c := NewClassifier(gen, testRegistry(t), nil)

	got := c.Classify(context.Background(), "how do I book a lab?", nil)
	if got != ResourceService {
		t.Errorf("Classify = %s, want %s", got, ResourceService)
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}
}

func TestClassifyInstructionEmbedsCatalog(t *testing.T) {
	gen := &stubGenerator{output: "support"}
	c := NewClassifier(gen, testRegistry(t), nil)

	c.Classify(context.Background(), "my portal login is broken", nil)

	if len(gen.messages) == 0 || gen.messages[0].Role != model.RoleSystem {
		t.Fatal("prompt does not start with a system instruction")
	}
	for _, i := range All() {
		if !strings.Contains(gen.messages[0].Text, string(i)) {
			t.Errorf("instruction missing %s", i)
		}
	}
}

func TestClassifyRendersHistoryAsTurns(t *testing.T) {
	gen := &stubGenerator{output: "academic_administration"}
	c := NewClassifier(gen, testRegistry(t), nil)

	history := []conversation.HistoryTurn{
		{User: "when is enrollment?", Assistant: "Enrollment opens next week."},
	}
	c.Classify(context.Background(), "and the fee?", history)

	// system, user turn, assistant turn, new user message
	if len(gen.messages) != 4 {
		t.Fatalf("prompt has %d messages, want 4", len(gen.messages))
	}
	if gen.messages[1].Role != model.RoleUser || gen.messages[1].Text != "when is enrollment?" {
		t.Errorf("history user turn misplaced: %+v", gen.messages[1])
	}
	if gen.messages[2].Role != model.RoleAssistant {
		t.Errorf("history assistant turn misplaced: %+v", gen.messages[2])
	}
	if last := gen.messages[3]; last.Role != model.RoleUser || last.Text != "and the fee?" {
		t.Errorf("new message misplaced: %+v", last)
	}
}

func TestClassifyFallsBackToOther(t *testing.T) {
	tests := []struct {
		name string
		gen  *stubGenerator
	}{
		{"backend error", &stubGenerator{err: errors.New("backend down")}},
		{"empty output", &stubGenerator{output: ""}},
		{"unrecognized output", &stubGenerator{output: "this message is about grades"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(tt.gen, testRegistry(t), nil)
			if got := c.Classify(context.Background(), "hello", nil); got != Other {
				t.Errorf("Classify = %s, want %s", got, Other)
			}
		})
	}
}
