// Package empathy extracts an emotionally salient focus phrase from a
// user message with an auxiliary model call. The stage is best-effort:
// any failure degrades to "no focus" and the turn proceeds.
package empathy

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/akarpova/embra/internal/brain"
)

const (
	// analysisTemperature is fixed regardless of the user's sampling
	// settings to keep the structured output parseable.
	analysisTemperature = 0.3

	systemInstruction = "You are a focus point analyzer. Return only valid JSON."
)

type Extractor struct {
	adapter brain.Adapter
	// analysisPrompt must contain %s for the raw user text.
	analysisPrompt string
	// focusTemplate must contain %s for the joined focus phrase.
	focusTemplate string
}

func NewExtractor(adapter brain.Adapter, analysisPrompt, focusTemplate string) *Extractor {
	return &Extractor{adapter: adapter, analysisPrompt: analysisPrompt, focusTemplate: focusTemplate}
}

// ExtractFocus runs the analysis call and returns the rendered focus
// section, or "" when nothing strong was found or anything failed.
func (e *Extractor) ExtractFocus(ctx context.Context, target brain.ModelTarget, userText string) string {
	prompt := strings.Replace(e.analysisPrompt, "%s", userText, 1)
	resp, err := e.adapter.Complete(ctx, brain.Request{
		Target:       target,
		SystemPrompt: systemInstruction,
		Messages:     []brain.ChatMessage{{Role: "user", Content: prompt}},
		Sampling:     brain.Sampling{Temperature: analysisTemperature},
	})
	if err != nil {
		log.Printf("empathy analysis failed, continuing without focus: %v", err)
		return ""
	}
	phrase := joinStrongFocus(ParseFocusPoints(resp.Text))
	if phrase == "" {
		return ""
	}
	return strings.Replace(e.focusTemplate, "%s", phrase, 1)
}

// FocusPoint pairs an extracted phrase with the model's strength flag.
type FocusPoint struct {
	Phrase string
	Strong bool
}

var (
	focusPointsRe = regexp.MustCompile(`"focus_points"\s*:\s*\[([^\]]*)\]`)
	strongFlagsRe = regexp.MustCompile(`"is_strong_focus"\s*:\s*\[([^\]]*)\]`)
	quotedRe      = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
	boolRe        = regexp.MustCompile(`true|false`)
)

// ParseFocusPoints pulls focus_points and is_strong_focus out of model
// output that is only approximately JSON. Arrays are zipped by index;
// anything unmatched yields nil. It never returns an error: malformed
// output is simply an empty result.
func ParseFocusPoints(raw string) []FocusPoint {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil
	}
	body := raw[start : end+1]

	pm := focusPointsRe.FindStringSubmatch(body)
	fm := strongFlagsRe.FindStringSubmatch(body)
	if pm == nil || fm == nil {
		return nil
	}
	var phrases []string
	for _, m := range quotedRe.FindAllStringSubmatch(pm[1], -1) {
		phrases = append(phrases, unescape(m[1]))
	}
	flags := boolRe.FindAllString(fm[1], -1)

	n := len(phrases)
	if len(flags) < n {
		n = len(flags)
	}
	out := make([]FocusPoint, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, FocusPoint{Phrase: phrases[i], Strong: flags[i] == "true"})
	}
	return out
}

func joinStrongFocus(points []FocusPoint) string {
	var strong []string
	for _, p := range points {
		phrase := strings.TrimSpace(p.Phrase)
		if p.Strong && phrase != "" {
			strong = append(strong, phrase)
		}
	}
	return strings.Join(strong, ", ")
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}
