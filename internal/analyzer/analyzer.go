// Package analyzer implements the Session Analyzer component (spec.md
// §4.3, C3): a pure, deterministic pass that decorates parsed sessions with
// derived tool/outcome statistics, tags, and project attribution. It never
// mutates the raw body and never touches Memory.
package analyzer

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/aschepis/distill/internal/model"
)

// KnownProjectRoots is the configured set of recognized project root paths,
// used to attribute a session to a project by longest matching prefix.
type KnownProjectRoots []string

// Analysis is the derived output for one Session: everything Analyze adds
// on top of the immutable parsed fields.
type Analysis struct {
	DurationSeconds int64
	DurationUnknown bool
	ToolUsage       map[string]int
	Tags            []string
	Project         string
}

var (
	errorPattern = regexp.MustCompile(`(?i)\b(error|exception|traceback|panic:|fatal:)\b`)
	testRunnerPattern = regexp.MustCompile(`(?i)\b(go test|pytest|jest|npm test|rspec|cargo test|mvn test)\b`)
)

// Analyze computes the derived fields for a Session. Deterministic: the
// same session value always yields the same Analysis.
func Analyze(sess model.Session, roots KnownProjectRoots) Analysis {
	a := Analysis{
		ToolUsage: cloneCounts(sess.ToolUsage),
	}

	dur := sess.EndedAt.Sub(sess.StartedAt)
	if sess.StartedAt.IsZero() || sess.EndedAt.IsZero() || dur < 0 {
		a.DurationUnknown = true
		a.DurationSeconds = -1
	} else {
		a.DurationSeconds = int64(dur.Seconds())
	}

	a.Tags = deriveTags(sess)
	a.Project = deriveProject(sess, roots)
	return a
}

func cloneCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// deriveTags computes the union of "ai-session", the source tag, and
// content-derived tags (debugging/testing/feature/documentation), per
// spec.md §4.3.
func deriveTags(sess model.Session) []string {
	tags := []string{"ai-session", string(sess.Source)}

	var modifiedFiles []string
	var newFileWritten bool
	var onlyDocsTouched = true
	var sawErrorOutput bool
	var sawTestRunner bool

	for _, o := range sess.Outcomes {
		if o.Kind == "command_run" && (errorPattern.MatchString(o.Detail) ) {
			sawErrorOutput = true
		}
		if o.Kind == "command_run" && testRunnerPattern.MatchString(o.Detail) {
			sawTestRunner = true
		}
		if o.Kind == "file_modified" {
			modifiedFiles = append(modifiedFiles, o.Detail)
			if !isDocFile(o.Detail) {
				onlyDocsTouched = false
			}
			if strings.Contains(strings.ToLower(o.Detail), "new file") || strings.HasPrefix(o.Detail, "+") {
				newFileWritten = true
			}
		}
	}
	for _, sig := range sess.AgentSignals {
		if errorPattern.MatchString(sig.Message) {
			sawErrorOutput = true
		}
	}

	if sawErrorOutput {
		tags = append(tags, "debugging")
	}
	if sawTestRunner {
		tags = append(tags, "testing")
	}
	if newFileWritten {
		tags = append(tags, "feature")
	}
	if len(modifiedFiles) > 0 && onlyDocsTouched {
		tags = append(tags, "documentation")
	}

	return lo.Uniq(tags)
}

func isDocFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".md" || ext == ".txt" || ext == ".rst"
}

// deriveProject resolves the project a session belongs to, per spec.md
// §4.3's fallback chain: explicit field, longest matching known root,
// working-directory basename, else "(unassigned)".
func deriveProject(sess model.Session, roots KnownProjectRoots) string {
	if sess.Project != "" {
		return sess.Project
	}

	var modifiedFiles []string
	for _, o := range sess.Outcomes {
		if o.Kind == "file_modified" {
			modifiedFiles = append(modifiedFiles, o.Detail)
		}
	}

	if best := longestPrefixRoot(modifiedFiles, roots); best != "" {
		return best
	}

	if wd, ok := sess.SourceMetadata["working_directory"].(string); ok && wd != "" {
		return path.Base(strings.TrimRight(wd, "/"))
	}

	return "(unassigned)"
}

func longestPrefixRoot(files []string, roots KnownProjectRoots) string {
	var best string
	for _, root := range roots {
		matches := false
		for _, f := range files {
			if strings.HasPrefix(f, root) {
				matches = true
				break
			}
		}
		if matches && len(root) > len(best) {
			best = root
		}
	}
	if best == "" {
		return ""
	}
	return path.Base(strings.TrimRight(best, "/"))
}

// ToolUsageTotals sums call counts across a set of analyses, useful for
// per-day digests.
func ToolUsageTotals(analyses []Analysis) map[string]int {
	totals := make(map[string]int)
	for _, a := range analyses {
		for tool, count := range a.ToolUsage {
			totals[tool] += count
		}
	}
	return totals
}

// SortedTags returns tags sorted for deterministic display.
func SortedTags(tags []string) []string {
	out := append([]string(nil), tags...)
	sort.Strings(out)
	return out
}
