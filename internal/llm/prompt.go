package llm

import (
	"fmt"
	"strings"
)

// systemPrompt frames the model as a subtitle translator and forbids
// echoing the context section or adding commentary.
const systemPrompt = "You are an expert subtitle translate tool with a deep understanding of both language and culture. " +
	"Based on contextual clues, you provide translations that capture not only the literal meaning but also the nuanced metaphors, " +
	"euphemisms, and cultural symbols embedded in the dialogue. " +
	"Your translations reflect the intended tone and cultural context, ensuring that every subtle reference and idiomatic expression " +
	"is accurately conveyed. " +
	"I will provide you with some context for better translations, but DO NOT output any of them.\n" +
	"Rules:\n" +
	"1. Output the translation only.\n" +
	"2. Do NOT output extra comments or explanations.\n" +
	"3. Preserve the JSON structure of the input exactly: reply with a JSON array of {\"index\", \"text\"} objects, one per input line."

// buildUserPrompt assembles the per-batch user message. The context
// section is omitted entirely when there is no carried-over context.
func buildUserPrompt(req TranslateRequest) string {
	source := req.SourceLang
	if source == "" {
		source = "Auto Detect"
	}
	target := req.TargetLang
	if target == "" {
		target = "Auto Detect"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Translate the complete content under the section 'Subtitle to translate' based on the section 'Subtitle context', if it exists.\n\n")
	fmt.Fprintf(&b, "Source language: %s\n", source)
	fmt.Fprintf(&b, "Target language: %s\n\n", target)
	if req.Context != "" {
		fmt.Fprintf(&b, "[Subtitle context](DO NOT OUTPUT!):\n{%s}\n\n", req.Context)
	}
	fmt.Fprintf(&b, "[Subtitle to translate]:\n%s", req.BatchText)
	return b.String()
}
