// Package prompt holds the context templates and assembles the
// per-turn enrichment block sent alongside the system prompt.
package prompt

// Templates is the immutable set of text templates used per turn. A
// blank template disables its section in the assembled context.
type Templates struct {
	// System prompts by target kind.
	RemoteSystemPrompt string
	LocalSystemPrompt  string

	// ContextInstructions explains how the model should use retrieved
	// material. Emitted only when memories or chunks are present.
	ContextInstructions string

	// QuoteTemplate wraps a replied-to message, %s is the quoted text.
	QuoteTemplate string

	MemoryTitle        string
	MemoryInstructions string

	DocumentTitle        string
	DocumentInstructions string

	// EmpathyAnalysisPrompt and EmpathyFocusTemplate drive the focus
	// extraction stage, %s is the user text / focus phrase.
	EmpathyAnalysisPrompt string
	EmpathyFocusTemplate  string

	// ExtractionPrompt asks the model to distill one durable fact,
	// %s is the sentinel the model should reply when there is none.
	ExtractionPrompt string
	// ExtractionSentinel is the exact reply meaning nothing to keep.
	ExtractionSentinel string
}

func DefaultTemplates() Templates {
	return Templates{
		RemoteSystemPrompt: "You are a warm, attentive companion. Answer personally and " +
			"honestly, in the user's language, without disclaimers about being an AI.",
		LocalSystemPrompt: "You are a friendly assistant. Keep answers short and direct.",

		ContextInstructions: "Use the context below naturally. Never quote it verbatim " +
			"or mention that you were given it.",

		QuoteTemplate: "The user is replying to this earlier message:\n\"%s\"",

		MemoryTitle:        "What you remember about the user:",
		MemoryInstructions: "Weave these facts in only when they are relevant.",

		DocumentTitle:        "Excerpts from the user's documents:",
		DocumentInstructions: "Prefer these excerpts over your general knowledge when they conflict.",

		EmpathyAnalysisPrompt: "Analyze the following message and list the emotionally " +
			"significant focus points. Respond with JSON of the form " +
			`{"focus_points": ["..."], "is_strong_focus": [true]}` + ".\n\nMessage: %s",
		EmpathyFocusTemplate: "Keep this close to heart right now: %s.",

		ExtractionPrompt: "Condense the user's message into at most one durable fact about " +
			"them, stated in a single third-person sentence. If there is nothing worth " +
			"remembering, reply exactly: %s",
		ExtractionSentinel: "No key information",
	}
}
