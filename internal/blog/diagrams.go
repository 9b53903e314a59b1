// Package blog implements the Blog Synthesizer (spec.md §4.7, C7):
// synthesize(context, blog_memory, editorial_notes, config) -> BlogPost,
// with non-repetition enforcement, slug derivation, and diagram insertion.
// Grounded on original_source/src/blog/{synthesizer,diagrams,formatter,
// blog_memory,state}.py.
package blog

import (
	"regexp"
	"strings"
)

// validDiagramTypes mirrors diagrams.py's VALID_DIAGRAM_TYPES.
var validDiagramTypes = []string{
	"graph", "flowchart", "sequencediagram", "classdiagram", "statediagram",
	"statediagram-v2", "erdiagram", "gantt", "pie", "timeline", "gitgraph", "mindmap",
}

var mermaidBlockPattern = regexp.MustCompile("(?s)```mermaid\\s*\\n(.*?)```")

// hasStructuralCues reports whether prose contains numbered steps or
// arrow-connected components, the heuristic spec.md §4.7 uses to decide
// whether a diagram belongs in the post.
func hasStructuralCues(prose string) bool {
	numberedStep := regexp.MustCompile(`(?m)^\s*\d+\.\s+\S`)
	arrow := regexp.MustCompile(`->|→|=>`)
	return numberedStep.MatchString(prose) || arrow.MatchString(prose)
}

// validateMermaid checks that block opens with a recognized diagram type
// keyword, per diagrams.py's validate_mermaid.
func validateMermaid(block string) bool {
	trimmed := strings.TrimSpace(block)
	if trimmed == "" {
		return false
	}
	firstLine := strings.ToLower(strings.TrimSpace(strings.SplitN(trimmed, "\n", 2)[0]))
	for _, t := range validDiagramTypes {
		if strings.HasPrefix(firstLine, t) {
			return true
		}
	}
	return strings.HasPrefix(firstLine, "state diagram")
}

// cleanDiagrams removes invalid Mermaid blocks from prose, keeping valid
// ones in place, per diagrams.py's clean_diagrams.
func cleanDiagrams(prose string) string {
	result := mermaidBlockPattern.ReplaceAllStringFunc(prose, func(block string) string {
		matches := mermaidBlockPattern.FindStringSubmatch(block)
		if len(matches) < 2 {
			return ""
		}
		if validateMermaid(matches[1]) {
			return block
		}
		return ""
	})
	collapseBlank := regexp.MustCompile(`\n{3,}`)
	return collapseBlank.ReplaceAllString(result, "\n\n")
}
