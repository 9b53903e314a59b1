package journal

import "fmt"

// systemPrompts holds the fixed per-style template referenced by spec.md
// §4.5 ("renders a prompt from a fixed template plus the DailyContext"),
// grounded on original_source/src/journal/prompts.py's get_system_prompt.
var systemPrompts = map[string]string{
	"dev-journal": "You are writing a first-person developer journal entry summarizing a day's " +
		"coding sessions. Write in a reflective, technical voice. Cover what was built, what broke, " +
		"what was learned. Do not invent details not present in the context. Target roughly %d words.",
	"tech-blog": "You are drafting a short technical blog post recapping a day's engineering work, " +
		"written for an external audience. Explain the problem and the approach taken, not just the " +
		"timeline. Target roughly %d words.",
	"team-update": "You are writing a concise team status update summarizing a day's work. Use short " +
		"paragraphs or bullet points. Focus on outcomes and blockers. Target roughly %d words.",
	"building-in-public": "You are writing a casual 'building in public' update for social-media-style " +
		"sharing, summarizing today's progress in an approachable voice. Target roughly %d words.",
}

const defaultStyle = "dev-journal"

// systemPromptFor returns the fixed system prompt for style, defaulting to
// dev-journal for an unrecognized or empty style.
func systemPromptFor(style string, targetWordCount int) string {
	tmpl, ok := systemPrompts[style]
	if !ok {
		tmpl = systemPrompts[defaultStyle]
	}
	return fmt.Sprintf(tmpl, targetWordCount)
}

const lengthCorrectionTemplate = "Your previous response was %d words; the target is %d words (%s). " +
	"Rewrite it to fit that length while preserving the same content and voice."

func lengthCorrectionPrompt(actualWords, targetWords int) string {
	direction := "too long, tighten it"
	if actualWords < targetWords {
		direction = "too short, expand it"
	}
	return fmt.Sprintf(lengthCorrectionTemplate, actualWords, targetWords, direction)
}

// extractionPrompt is the second-pass structured-memory-extraction prompt,
// grounded on original_source/src/journal/synthesizer.py: extract_memory.
func extractionPrompt(date, prose string) string {
	return fmt.Sprintf(`Extract structured memory from this journal entry dated %s.

Return ONLY valid JSON with this exact structure (no markdown fences, no commentary):
{
  "themes": ["3-5 high-level themes from today"],
  "key_insights": ["what was learned or discovered"],
  "decisions_made": ["what was decided"],
  "open_questions": ["unresolved things"],
  "threads": [
    {"name": "short-kebab-case-name", "summary": "current state of this ongoing thread"}
  ]
}

Threads are ongoing narratives that span multiple days. Only include threads if the entry
describes something clearly ongoing or recently resolved.

Journal entry:
%s`, date, prose)
}
