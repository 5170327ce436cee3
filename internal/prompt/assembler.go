package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/akarpova/embra/internal/knowledge"
	"github.com/akarpova/embra/internal/memory"
)

// Input carries everything a single assembly needs. Zero-value fields
// simply contribute nothing.
type Input struct {
	BaseContext  string
	EmpathyFocus string
	QuotedText   string
	Memories     []memory.Entry
	Chunks       []knowledge.Chunk
	Now          time.Time
}

// Assembler composes the per-turn context block from its templates.
type Assembler struct {
	templates Templates
}

func NewAssembler(templates Templates) *Assembler {
	return &Assembler{templates: templates}
}

// Assemble concatenates the non-empty sections in fixed order: empathy
// focus, quote, usage instructions, base context, memory digest,
// document digest. Sections are trimmed and joined with blank lines.
// All-empty input yields "".
func (a *Assembler) Assemble(in Input) string {
	t := a.templates
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	var sections []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			sections = append(sections, s)
		}
	}

	add(in.EmpathyFocus)

	if strings.TrimSpace(in.QuotedText) != "" && strings.TrimSpace(t.QuoteTemplate) != "" {
		add(strings.Replace(t.QuoteTemplate, "%s", strings.TrimSpace(in.QuotedText), 1))
	}

	if (len(in.Memories) > 0 || len(in.Chunks) > 0) && strings.TrimSpace(t.ContextInstructions) != "" {
		add(t.ContextInstructions)
	}

	add(in.BaseContext)

	if len(in.Memories) > 0 {
		var b strings.Builder
		writeSection(&b, t.MemoryTitle)
		writeSection(&b, t.MemoryInstructions)
		b.WriteString(memory.RecencyDigest(in.Memories, now))
		add(b.String())
	}

	if len(in.Chunks) > 0 {
		var b strings.Builder
		writeSection(&b, t.DocumentTitle)
		writeSection(&b, t.DocumentInstructions)
		for i, c := range in.Chunks {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%d. %s", i+1, strings.TrimSpace(c.Content))
		}
		add(b.String())
	}

	return strings.Join(sections, "\n\n")
}

func writeSection(b *strings.Builder, tmpl string) {
	if s := strings.TrimSpace(tmpl); s != "" {
		b.WriteString(s)
		b.WriteString("\n")
	}
}
