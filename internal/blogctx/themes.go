// Package blogctx implements the Blog Context Builder (spec.md §4.6, C6):
// weekly and thematic context construction over a run of JournalEntries and
// rolling memory, plus the reading-list context over stored intake items.
// Grounded on original_source/src/blog/{themes,reading_list}.py.
package blogctx

// ThemeDefinition is a catalog entry describing a blog-worthy recurring
// theme and how to detect evidence for it in journal prose, grounded on
// original_source/src/blog/themes.py's THEMES list.
type ThemeDefinition struct {
	Slug            string
	Title           string
	Description     string
	Keywords        []string
	ThreadPatterns  []string
	MinEvidenceDays int
}

// Themes is the fixed catalog of candidate blog themes. New themes are
// added here as recurring narrative patterns emerge in practice. A thread
// matching one of these gets the catalog's richer keywords/description;
// a thread that crosses the mention threshold without matching any entry
// still becomes a candidate via syntheticTheme in thematic.go — the catalog
// supplements thematic detection, it does not gate it.
var Themes = []ThemeDefinition{
	{
		Slug:            "healthy-friction-works",
		Title:           "How Healthy Friction Between Agents Catches Real Bugs",
		Description:     "Structured disagreement between review and implementation roles as a quality multiplier.",
		Keywords:        []string{"healthy friction", "caught", "revision", "coverage gap", "real bug"},
		ThreadPatterns:  []string{"healthy-friction", "qa-dev", "friction"},
		MinEvidenceDays: 3,
	},
	{
		Slug:            "pipeline-that-compounds",
		Title:           "Building a Content Pipeline That Compounds",
		Description:     "How a system that ingests sessions, reads, and notes produces richer output over time.",
		Keywords:        []string{"pipeline", "compound", "memory", "continuity", "narrative"},
		ThreadPatterns:  []string{"pipeline", "compound", "memory"},
		MinEvidenceDays: 3,
	},
	{
		Slug:            "mission-cycles-that-chain",
		Title:           "When Mission Cycles Start Chaining Autonomously",
		Description:     "The moment multi-agent workflows go from orchestrated to self-sustaining.",
		Keywords:        []string{"chaining", "autonomous", "mission cycle", "self-sustaining", "pipeline"},
		ThreadPatterns:  []string{"mission-cycle", "chaining", "autonomous"},
		MinEvidenceDays: 3,
	},
	{
		Slug:            "self-referential-loop",
		Title:           "The Self-Referential AI Tooling Loop",
		Description:     "Building tools where the AI watches itself work, then learns from what it sees.",
		Keywords:        []string{"self-referential", "meta-learning", "knowledge extraction", "self-improving"},
		ThreadPatterns:  []string{"self-referential", "self-improvement", "knowledge-extraction"},
		MinEvidenceDays: 3,
	},
	{
		Slug:            "coordination-overhead",
		Title:           "When Coordination Overhead Exceeds Task Value",
		Description:     "The costs of multi-agent coordination relative to task complexity.",
		Keywords:        []string{"ceremony", "overhead", "coordination", "granularity"},
		ThreadPatterns:  []string{"coordination", "ceremony", "overhead"},
		MinEvidenceDays: 3,
	},
	{
		Slug:            "quality-gates-that-work",
		Title:           "Quality Gates That Actually Work",
		Description:     "Which QA patterns catch real bugs versus create busywork.",
		Keywords:        []string{"QA", "revision", "caught", "quality gate"},
		ThreadPatterns:  []string{"qa", "quality", "review"},
		MinEvidenceDays: 3,
	},
	{
		Slug:            "infrastructure-vs-shipping",
		Title:           "Infrastructure Building vs Shipping Features",
		Description:     "The tension between building tooling and delivering user-visible results.",
		Keywords:        []string{"validation theater", "infrastructure", "shipping", "user-visible"},
		ThreadPatterns:  []string{"validation", "infrastructure", "shipping"},
		MinEvidenceDays: 3,
	},
	{
		Slug:            "branch-merge-failures",
		Title:           "Why Branch Merges Keep Failing",
		Description:     "Root causes of merge failures in multi-agent branch workflows.",
		Keywords:        []string{"merge", "branch", "direct-to-main", "worktree"},
		ThreadPatterns:  []string{"merge", "branch", "worktree"},
		MinEvidenceDays: 3,
	},
	{
		Slug:            "meta-work-recursion",
		Title:           "When Introspection Systems Become Obstacles",
		Description:     "How tools built to analyze work can themselves become the work.",
		Keywords:        []string{"meta-work", "recursion", "introspection", "analyzing"},
		ThreadPatterns:  []string{"meta-work", "recursion", "reflection"},
		MinEvidenceDays: 3,
	},
	{
		Slug:            "visibility-gap",
		Title:           "What Your Coordination System Can't See",
		Description:     "Blind spots in agent orchestration and repository state tracking.",
		Keywords:        []string{"visibility", "blind", "git status", "repository state"},
		ThreadPatterns:  []string{"visibility", "blind"},
		MinEvidenceDays: 3,
	},
}
