package empathy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/akarpova/embra/internal/brain"
)

type stubBrain struct {
	reply string
	err   error
}

func (s *stubBrain) StreamResponse(ctx context.Context, req brain.Request, onDelta brain.DeltaHandler) (brain.Response, error) {
	return s.Complete(ctx, req)
}

func (s *stubBrain) Complete(ctx context.Context, req brain.Request) (brain.Response, error) {
	if s.err != nil {
		return brain.Response{}, s.err
	}
	return brain.Response{Text: s.reply}, nil
}

func TestParseFocusPointsWellFormed(t *testing.T) {
	raw := `{"focus_points": ["my sister's surgery", "the weather"], "is_strong_focus": [true, false]}`
	got := ParseFocusPoints(raw)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].Phrase != "my sister's surgery" || !got[0].Strong {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Strong {
		t.Errorf("got[1].Strong = true, want false")
	}
}

func TestParseFocusPointsToleratesProse(t *testing.T) {
	raw := "Sure! Here is the analysis you asked for:\n" +
		`{"focus_points": ["a new job"], "is_strong_focus": [true]}` +
		"\nLet me know if you need anything else."
	got := ParseFocusPoints(raw)
	if len(got) != 1 || got[0].Phrase != "a new job" {
		t.Fatalf("got = %+v, want one point", got)
	}
}

func TestParseFocusPointsMalformed(t *testing.T) {
	cases := []string{
		"",
		"no json here",
		`{"focus_points": ["x"]}`,
		`{"is_strong_focus": [true]}`,
		`{"focus_points": "not an array", "is_strong_focus": [true]}`,
		"{",
	}
	for _, raw := range cases {
		if got := ParseFocusPoints(raw); got != nil {
			t.Errorf("ParseFocusPoints(%q) = %+v, want nil", raw, got)
		}
	}
}

func TestParseFocusPointsMismatchedLengths(t *testing.T) {
	raw := `{"focus_points": ["a", "b", "c"], "is_strong_focus": [true, false]}`
	got := ParseFocusPoints(raw)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2 (zip to the shorter array)", len(got))
	}
}

func TestExtractFocusJoinsStrongPoints(t *testing.T) {
	stub := &stubBrain{reply: `{"focus_points": ["her exam", "lunch", "moving away"], "is_strong_focus": [true, false, true]}`}
	e := NewExtractor(stub, "Analyze: %s", "Keep this close to heart: %s")
	got := e.ExtractFocus(context.Background(), brain.RemoteTarget("openai", "gpt-4o"), "some text")
	want := "Keep this close to heart: her exam, moving away"
	if got != want {
		t.Fatalf("ExtractFocus = %q, want %q", got, want)
	}
}

func TestExtractFocusNoStrongPoints(t *testing.T) {
	stub := &stubBrain{reply: `{"focus_points": ["lunch"], "is_strong_focus": [false]}`}
	e := NewExtractor(stub, "Analyze: %s", "Keep: %s")
	if got := e.ExtractFocus(context.Background(), brain.RemoteTarget("openai", "gpt-4o"), "x"); got != "" {
		t.Fatalf("ExtractFocus = %q, want empty", got)
	}
}

func TestExtractFocusSwallowsProviderError(t *testing.T) {
	e := NewExtractor(&stubBrain{err: errors.New("provider down")}, "Analyze: %s", "Keep: %s")
	if got := e.ExtractFocus(context.Background(), brain.RemoteTarget("openai", "gpt-4o"), "x"); got != "" {
		t.Fatalf("ExtractFocus = %q, want empty on error", got)
	}
}

func TestExtractFocusUsesFixedTemperature(t *testing.T) {
	var captured brain.Request
	stub := &capturingBrain{reply: `{"focus_points": ["x"], "is_strong_focus": [true]}`, captured: &captured}
	e := NewExtractor(stub, "Analyze: %s", "Keep: %s")
	e.ExtractFocus(context.Background(), brain.RemoteTarget("openai", "gpt-4o"), "hello")
	if captured.Sampling.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", captured.Sampling.Temperature)
	}
	if !strings.Contains(captured.SystemPrompt, "focus point analyzer") {
		t.Errorf("SystemPrompt = %q, missing analyzer instruction", captured.SystemPrompt)
	}
}

type capturingBrain struct {
	reply    string
	captured *brain.Request
}

func (c *capturingBrain) StreamResponse(ctx context.Context, req brain.Request, onDelta brain.DeltaHandler) (brain.Response, error) {
	return c.Complete(ctx, req)
}

func (c *capturingBrain) Complete(ctx context.Context, req brain.Request) (brain.Response, error) {
	*c.captured = req
	return brain.Response{Text: c.reply}, nil
}
