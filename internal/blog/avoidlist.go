package blog

import (
	"regexp"
	"sort"
	"strings"

	"github.com/aschepis/distill/internal/state"
)

// AvoidList is the union of key_points and examples_used from the last M
// posts, shown to the LLM as material to avoid repeating (spec.md §4.7).
type AvoidList struct {
	KeyPoints []string
	Examples  []string
}

// BuildAvoidList gathers the avoid-list from the last m posts in mem, per
// spec.md §4.7's default M=10.
func BuildAvoidList(mem state.BlogMemory, m int) AvoidList {
	var keyPoints, examples []string
	seenKP := make(map[string]bool)
	seenEx := make(map[string]bool)
	for _, post := range mem.LastNPosts(m) {
		for _, kp := range post.KeyPoints {
			if !seenKP[kp] {
				seenKP[kp] = true
				keyPoints = append(keyPoints, kp)
			}
		}
		for _, ex := range post.ExamplesUsed {
			if !seenEx[ex] {
				seenEx[ex] = true
				examples = append(examples, ex)
			}
		}
	}
	return AvoidList{KeyPoints: keyPoints, Examples: examples}
}

// RenderForPrompt renders the avoid-list as prompt text, grounded on
// blog_memory.py's render_for_prompt "DO NOT REUSE" section.
func (a AvoidList) RenderForPrompt() string {
	if len(a.KeyPoints) == 0 && len(a.Examples) == 0 {
		return ""
	}
	var sb strings.Builder
	if len(a.KeyPoints) > 0 {
		sb.WriteString("## Already covered\n")
		for _, kp := range a.KeyPoints {
			sb.WriteString("- " + kp + "\n")
		}
		sb.WriteString("\n")
	}
	if len(a.Examples) > 0 {
		sb.WriteString("## DO NOT REUSE these examples\n")
		sb.WriteString("The following specific examples, anecdotes, bugs, and statistics have already " +
			"been used in previous posts. Find DIFFERENT evidence. Never recycle these:\n\n")
		sorted := append([]string(nil), a.Examples...)
		sort.Strings(sorted)
		for _, ex := range sorted {
			sb.WriteString("- " + ex + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

var headingPattern = regexp.MustCompile(`(?m)^##\s+(.+)$`)
var quotedSnippetPattern = regexp.MustCompile(`"([^"]{10,120})"`)

// ExtractKeyPointsAndExamples mines a generated post's own key points
// (first sentence of each non-title heading section) and examples (short
// quoted snippets), per spec.md §4.7's extraction heuristic.
func ExtractKeyPointsAndExamples(prose string) (keyPoints, examples []string) {
	sections := splitSections(prose)
	for _, section := range sections {
		sentence := firstSentence(section)
		if sentence != "" {
			keyPoints = append(keyPoints, sentence)
		}
	}
	for _, m := range quotedSnippetPattern.FindAllStringSubmatch(prose, -1) {
		examples = append(examples, m[1])
	}
	return keyPoints, examples
}

// splitSections returns the body text following each "## " heading.
func splitSections(prose string) []string {
	indices := headingPattern.FindAllStringIndex(prose, -1)
	if len(indices) == 0 {
		return nil
	}
	var sections []string
	for i, idx := range indices {
		start := idx[1]
		end := len(prose)
		if i+1 < len(indices) {
			end = indices[i+1][0]
		}
		sections = append(sections, strings.TrimSpace(prose[start:end]))
	}
	return sections
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			return strings.TrimSpace(text[:i+1])
		}
	}
	if len(text) > 160 {
		return text[:160]
	}
	return text
}

// OverlapRatio returns the fraction of candidateKeyPoints that also appear
// (case-insensitively) in the avoid-list, per spec.md §4.7's threshold
// check against T (default 0.40).
func OverlapRatio(candidateKeyPoints []string, avoid AvoidList) float64 {
	if len(candidateKeyPoints) == 0 {
		return 0
	}
	avoidSet := make(map[string]bool, len(avoid.KeyPoints))
	for _, kp := range avoid.KeyPoints {
		avoidSet[strings.ToLower(strings.TrimSpace(kp))] = true
	}
	overlap := 0
	for _, kp := range candidateKeyPoints {
		if avoidSet[strings.ToLower(strings.TrimSpace(kp))] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(candidateKeyPoints))
}
