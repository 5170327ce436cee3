package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/akarpova/embra/internal/knowledge"
	"github.com/akarpova/embra/internal/memory"
)

func TestAssembleEmptyInput(t *testing.T) {
	a := NewAssembler(DefaultTemplates())
	if got := a.Assemble(Input{}); got != "" {
		t.Fatalf("Assemble(empty) = %q, want empty string", got)
	}
}

func TestAssembleSingleSection(t *testing.T) {
	a := NewAssembler(DefaultTemplates())
	got := a.Assemble(Input{BaseContext: "  The user's name is Anya.  "})
	if got != "The user's name is Anya." {
		t.Fatalf("Assemble = %q, want trimmed base context only", got)
	}
}

func TestAssembleOrdering(t *testing.T) {
	now := time.Now()
	a := NewAssembler(DefaultTemplates())
	got := a.Assemble(Input{
		BaseContext:  "Base context.",
		EmpathyFocus: "Keep this close: her exam.",
		QuotedText:   "earlier message",
		Memories:     []memory.Entry{{Fact: "likes tea", CreatedAt: now.AddDate(0, 0, -3)}},
		Chunks:       []knowledge.Chunk{{Content: "chapter one"}},
		Now:          now,
	})

	order := []string{
		"Keep this close: her exam.",
		"earlier message",
		"Use the context below",
		"Base context.",
		"likes tea",
		"chapter one",
	}
	last := -1
	for _, s := range order {
		idx := strings.Index(got, s)
		if idx < 0 {
			t.Fatalf("assembled context missing %q:\n%s", s, got)
		}
		if idx < last {
			t.Fatalf("%q appears out of order:\n%s", s, got)
		}
		last = idx
	}
}

func TestAssembleInstructionsOnlyWithRetrieval(t *testing.T) {
	a := NewAssembler(DefaultTemplates())
	got := a.Assemble(Input{BaseContext: "Base."})
	if strings.Contains(got, "Use the context below") {
		t.Fatalf("instructions emitted without memories or chunks:\n%s", got)
	}
}

func TestAssembleBlankTemplateOmitsSection(t *testing.T) {
	tm := DefaultTemplates()
	tm.ContextInstructions = ""
	tm.MemoryTitle = ""
	a := NewAssembler(tm)
	got := a.Assemble(Input{
		Memories: []memory.Entry{{Fact: "likes tea", CreatedAt: time.Now().AddDate(0, 0, -3)}},
		Now:      time.Now(),
	})
	if strings.Contains(got, "Use the context below") {
		t.Errorf("blank instructions template still emitted:\n%s", got)
	}
	if !strings.Contains(got, "likes tea") {
		t.Errorf("memory digest missing:\n%s", got)
	}
}

func TestAssembleIdempotent(t *testing.T) {
	now := time.Now()
	a := NewAssembler(DefaultTemplates())
	in := Input{
		BaseContext: "Base.",
		Memories:    []memory.Entry{{Fact: "fact one", CreatedAt: now.AddDate(0, 0, -10)}},
		Now:         now,
	}
	if a.Assemble(in) != a.Assemble(in) {
		t.Fatal("Assemble is not idempotent for identical input")
	}
}
