package blog

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/blogctx"
	"github.com/aschepis/distill/internal/llm"
	"github.com/aschepis/distill/internal/model"
	"github.com/aschepis/distill/internal/state"
)

// Config controls the Blog Synthesizer, mirroring internal/config.BlogConfig
// without importing it directly (keeps this package's dependency surface
// to exactly what it needs).
type Config struct {
	OutputDir        string
	TargetWordCount  int
	IncludeDiagrams  bool
	AvoidListSize    int     // M, default 10
	OverlapThreshold float64 // T, default 0.40
}

// Synthesizer implements spec.md §4.7's synthesize contract for all three
// BlogPost types.
type Synthesizer struct {
	cfg      Config
	worker   llm.Worker
	retryCfg llm.RetryConfig
	scratch  *state.ScratchWriter
	logger   zerolog.Logger
}

// New creates a blog Synthesizer.
func New(cfg Config, worker llm.Worker, retryCfg llm.RetryConfig, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		cfg: cfg, worker: worker, retryCfg: retryCfg,
		scratch: state.NewScratchWriter(cfg.OutputDir),
		logger:  logger.With().Str("component", "blog.synthesizer").Logger(),
	}
}

var titlePattern = regexp.MustCompile(`(?m)^#\s+(.+)$`)

func extractTitle(prose string, fallback string) string {
	if m := titlePattern.FindStringSubmatch(prose); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return fallback
}

// generate runs one avoid-list-aware generation with up to one overlap
// re-prompt, per spec.md §4.7's non-repetition enforcement.
func (s *Synthesizer) generate(ctx context.Context, systemPrompt, userPrompt string, avoid AvoidList) (prose string, keyPoints, examples []string, overLimit bool, err error) {
	fullUser := userPrompt
	if rendered := avoid.RenderForPrompt(); rendered != "" {
		fullUser = rendered + "\n" + userPrompt
	}
	prompt := s.worker.RenderPrompt(systemPrompt, fullUser)
	prose, err = llm.InvokeWithRetry(ctx, s.worker, prompt, s.retryCfg, s.logger)
	if err != nil {
		return "", nil, nil, false, err
	}
	prose = cleanDiagrams(prose)
	keyPoints, examples = ExtractKeyPointsAndExamples(prose)

	threshold := s.cfg.OverlapThreshold
	if threshold <= 0 {
		threshold = 0.40
	}
	ratio := OverlapRatio(keyPoints, avoid)
	if ratio <= threshold {
		return prose, keyPoints, examples, false, nil
	}

	var overlapping []string
	avoidSet := make(map[string]bool, len(avoid.KeyPoints))
	for _, kp := range avoid.KeyPoints {
		avoidSet[strings.ToLower(strings.TrimSpace(kp))] = true
	}
	for _, kp := range keyPoints {
		if avoidSet[strings.ToLower(strings.TrimSpace(kp))] {
			overlapping = append(overlapping, kp)
		}
	}

	retryUser := fullUser + "\n\n" + reGenerationPrompt(overlapping)
	retryPrompt := s.worker.RenderPrompt(systemPrompt, retryUser)
	retried, retryErr := llm.InvokeWithRetry(ctx, s.worker, retryPrompt, s.retryCfg, s.logger)
	if retryErr != nil {
		return prose, keyPoints, examples, true, nil
	}
	retried = cleanDiagrams(retried)
	retriedKP, retriedEx := ExtractKeyPointsAndExamples(retried)
	retriedRatio := OverlapRatio(retriedKP, avoid)
	return retried, retriedKP, retriedEx, retriedRatio > threshold, nil
}

// SynthesizeWeekly generates a "weekly" BlogPost from a WeeklyContext.
func (s *Synthesizer) SynthesizeWeekly(ctx context.Context, wctx blogctx.WeeklyContext, mem state.BlogMemory, existsSlug func(string) bool) (model.BlogPost, error) {
	avoidSize := s.cfg.AvoidListSize
	if avoidSize <= 0 {
		avoidSize = 10
	}
	avoid := BuildAvoidList(mem, avoidSize)

	userPrompt := renderWeeklyPrompt(wctx)
	systemPrompt := systemPromptForWeekly(s.cfg.TargetWordCount)

	prose, keyPoints, examples, overLimit, err := s.generate(ctx, systemPrompt, userPrompt, avoid)
	if err != nil {
		return model.BlogPost{}, fmt.Errorf("blog: synthesize weekly %s: %w", wctx.ISOWeek, err)
	}
	if !s.cfg.IncludeDiagrams {
		prose = stripMermaidBlocks(prose)
	}
	if overLimit {
		prose += "\n\n<!-- diagnostic: key-point overlap with prior posts exceeded threshold after retry -->\n"
	}

	slug := UniqueSlug(WeeklySlug(wctx.ISOWeek), existsSlug)
	title := extractTitle(prose, "Weekly Recap: "+wctx.ISOWeek)
	prose = stripChrome(prose)

	var sourceDates []string
	for _, e := range wctx.Entries {
		sourceDates = append(sourceDates, e.Date)
	}

	return model.BlogPost{
		Slug:         slug,
		PostType:     model.PostTypeWeekly,
		Date:         wctx.WeekStart,
		Title:        title,
		BodyMarkdown: prose,
		Themes:       wctx.Themes,
		Projects:     wctx.Projects,
		SourceDates:  sourceDates,
		KeyPoints:    keyPoints,
		ExamplesUsed: examples,
	}, nil
}

// SynthesizeThematic generates a "thematic" BlogPost from a candidate.
func (s *Synthesizer) SynthesizeThematic(ctx context.Context, candidate blogctx.ThematicCandidate, mem state.BlogMemory, existsSlug func(string) bool) (model.BlogPost, error) {
	avoidSize := s.cfg.AvoidListSize
	if avoidSize <= 0 {
		avoidSize = 10
	}
	avoid := BuildAvoidList(mem, avoidSize)

	userPrompt := renderThematicPrompt(candidate)
	systemPrompt := systemPromptForThematic(candidate.Theme.Title, s.cfg.TargetWordCount)

	prose, keyPoints, examples, overLimit, err := s.generate(ctx, systemPrompt, userPrompt, avoid)
	if err != nil {
		return model.BlogPost{}, fmt.Errorf("blog: synthesize thematic %s: %w", candidate.Theme.Slug, err)
	}
	if !s.cfg.IncludeDiagrams || !hasStructuralCues(prose) {
		prose = stripMermaidBlocks(prose)
	}
	if overLimit {
		prose += "\n\n<!-- diagnostic: key-point overlap with prior posts exceeded threshold after retry -->\n"
	}

	slug := UniqueSlug(ThematicSlug(candidate.Theme.Slug), existsSlug)
	title := extractTitle(prose, candidate.Theme.Title)
	prose = stripChrome(prose)

	var sourceDates []string
	for _, e := range candidate.Evidence {
		sourceDates = append(sourceDates, e.Date)
	}

	return model.BlogPost{
		Slug:         slug,
		PostType:     model.PostTypeThematic,
		Date:         time.Now().UTC().Format("2006-01-02"),
		Title:        title,
		BodyMarkdown: prose,
		Themes:       []string{candidate.Theme.Slug},
		SourceDates:  sourceDates,
		KeyPoints:    keyPoints,
		ExamplesUsed: examples,
	}, nil
}

// SynthesizeReadingList generates a "reading-list" BlogPost.
func (s *Synthesizer) SynthesizeReadingList(ctx context.Context, rctx blogctx.ReadingListContext, existsSlug func(string) bool) (model.BlogPost, error) {
	systemPrompt := systemPromptForReadingList(s.cfg.TargetWordCount)
	prompt := s.worker.RenderPrompt(systemPrompt, rctx.RenderPrompt())
	prose, err := llm.InvokeWithRetry(ctx, s.worker, prompt, s.retryCfg, s.logger)
	if err != nil {
		return model.BlogPost{}, fmt.Errorf("blog: synthesize reading list %s: %w", rctx.ISOWeek, err)
	}
	prose = stripChrome(stripMermaidBlocks(prose))

	slug := UniqueSlug("reading-list-"+rctx.ISOWeek, existsSlug)
	title := extractTitle(prose, "Reading List: "+rctx.ISOWeek)

	return model.BlogPost{
		Slug:         slug,
		PostType:     model.PostTypeReadingList,
		Date:         rctx.WeekStart,
		Title:        title,
		BodyMarkdown: prose,
		Themes:       rctx.Themes,
	}, nil
}

// RenderScratch renders frontmatter and a sources section for post and
// writes the result to a scratch location, implementing the write half of
// spec.md §4.8 rule 2's scratch-then-promote commit: the caller must record
// the post in BlogState/BlogMemory before calling PromoteScratch, so a
// crash between the two leaves a detectable orphan instead of a
// half-recorded post.
func (s *Synthesizer) RenderScratch(post model.BlogPost, wctx *blogctx.WeeklyContext, candidate *blogctx.ThematicCandidate, rctx *blogctx.ReadingListContext) (path, scratchKey string, err error) {
	var frontmatter string
	switch {
	case wctx != nil:
		frontmatter = buildWeeklyFrontmatter(*wctx, post.Themes)
	case candidate != nil:
		frontmatter = buildThematicFrontmatter(*candidate)
	case rctx != nil:
		frontmatter = buildReadingListFrontmatter(*rctx)
	}

	var sb strings.Builder
	sb.WriteString(frontmatter)
	sb.WriteString(post.BodyMarkdown)
	sb.WriteString("\n\n")
	sb.WriteString(sourcesSection(post.SourceDates))

	path = outputPath(s.cfg.OutputDir, post.PostType, post.Slug)
	scratchKey = state.NewScratchKey("blog-" + post.Slug)
	if err := s.scratch.WriteScratch(scratchKey, []byte(sb.String())); err != nil {
		return "", "", fmt.Errorf("blog: write scratch: %w", err)
	}
	return path, scratchKey, nil
}

// PromoteScratch completes the commit started by RenderScratch, moving the
// scratch content to its final path.
func (s *Synthesizer) PromoteScratch(scratchKey, path string) error {
	if err := s.scratch.PromoteScratch(scratchKey, path); err != nil {
		return fmt.Errorf("blog: promote post: %w", err)
	}
	return nil
}

// CleanOrphanScratch removes every scratch file left by a post whose
// RenderScratch ran but whose PromoteScratch never did (spec.md §4.8 rule
// 2) — call once at startup.
func (s *Synthesizer) CleanOrphanScratch() int {
	return s.scratch.CleanAllOrphans()
}

func renderWeeklyPrompt(ctx blogctx.WeeklyContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Week %s\n", ctx.ISOWeek)
	fmt.Fprintf(&sb, "(%s to %s)\n", ctx.WeekStart, ctx.WeekEnd)
	if len(ctx.Projects) > 0 {
		fmt.Fprintf(&sb, "Projects: %s\n", strings.Join(ctx.Projects, ", "))
	}
	sb.WriteString("\n# Daily Journal Entries\n\n")
	for _, e := range ctx.Entries {
		fmt.Fprintf(&sb, "## %s\n%s\n\n", e.Date, e.BodyMarkdown)
	}
	if len(ctx.RecurringTopics) > 0 {
		fmt.Fprintf(&sb, "Recurring topics this week: %s\n", strings.Join(ctx.RecurringTopics, ", "))
	}
	if len(ctx.Decisions) > 0 {
		fmt.Fprintf(&sb, "Decisions made this week: %s\n", strings.Join(ctx.Decisions, "; "))
	}
	if len(ctx.OpenQuestions) > 0 {
		fmt.Fprintf(&sb, "Open questions this week: %s\n", strings.Join(ctx.OpenQuestions, "; "))
	}
	return sb.String()
}

func renderThematicPrompt(candidate blogctx.ThematicCandidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Theme: %s\n", candidate.Theme.Title)
	fmt.Fprintf(&sb, "Description: %s\n", candidate.Theme.Description)
	fmt.Fprintf(&sb, "Evidence from %d journal entries\n\n", len(candidate.Evidence))
	if len(candidate.Entities) > 0 {
		sb.WriteString("## Relevant entities\n")
		for _, e := range candidate.Entities {
			fmt.Fprintf(&sb, "- %s (%s)\n", e.Name, e.EntityType)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("# Evidence from Journal Entries\n\n")
	for _, e := range candidate.Evidence {
		fmt.Fprintf(&sb, "## %s\n%s\n\n", e.Date, e.BodyMarkdown)
	}
	return sb.String()
}

func stripMermaidBlocks(prose string) string {
	return mermaidBlockPattern.ReplaceAllString(prose, "")
}

func stripChrome(prose string) string {
	lines := strings.Split(prose, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "# ") {
			return strings.TrimSpace(strings.Join(lines[i:], "\n"))
		}
	}
	return strings.TrimSpace(prose)
}
