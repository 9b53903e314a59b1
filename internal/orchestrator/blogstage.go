package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aschepis/distill/internal/blogctx"
	"github.com/aschepis/distill/internal/model"
	"github.com/aschepis/distill/internal/publish"
	"github.com/aschepis/distill/internal/state"
)

// runBlogStage builds each eligible blog-context (weekly, thematic,
// reading-list) from this run's freshly generated journal entries and the
// committed memory snapshot, synthesizes and writes any post not already
// recorded in BlogState, then fans it out to every configured publisher
// (spec.md §4.6/§4.7/§4.9). Blog synthesis begins only once every
// journal for the relevant window has already been committed (spec.md
// §5's ordering guarantee) — generatedEntries here is exactly that set.
func (o *Orchestrator) runBlogStage(ctx context.Context, generatedEntries []model.JournalEntry, mem model.UnifiedMemory, asOf time.Time, report *Report) error {
	blogState := o.stateStore.LoadState()
	blogMemory := o.stateStore.LoadMemory()

	// blogMu serializes every read/write of blogState and blogMemory once
	// the thematic candidates below start running as concurrent workers
	// (spec.md §5's single-writer rule applies to the State layer just as
	// it does to UnifiedMemory).
	var blogMu sync.Mutex
	existsSlug := func(slug string) bool {
		blogMu.Lock()
		defer blogMu.Unlock()
		return blogState.IsGenerated(slug, "")
	}

	if wctx, ok := blogctx.BuildWeeklyContext(generatedEntries, mem.Threads, asOf, o.cfg.Blog.MinJournalsForWeekly); ok {
		if blogState.IsGenerated(weeklySlugFor(wctx.ISOWeek), "") {
			report.BlogPostsSkipped++
		} else if err := o.generateAndDeliverWeekly(ctx, wctx, &blogState, &blogMemory, existsSlug, report); err != nil {
			o.logger.Error().Err(err).Str("week", wctx.ISOWeek).Msg("orchestrator: weekly blog post failed")
		}
	}

	alreadyPosted := make(map[string]bool)
	for _, p := range blogState.Posts {
		alreadyPosted[p.Slug] = true
	}
	candidates := blogctx.ThematicCandidates(mem.Threads, mem.Entities, generatedEntries, alreadyPosted, o.cfg.Blog.ThematicThreshold, asOf)

	// memSnapshot is the immutable per-task read view each thematic worker
	// synthesizes against (spec.md §5); mutations from commitAndPublish go
	// through blogMu against the one live blogState/blogMemory.
	memSnapshot := blogMemory
	runBounded(len(candidates), o.cfg.Concurrency.LLMWorkers, func(i int) {
		candidate := candidates[i]
		if err := o.generateAndDeliverThematic(ctx, candidate, memSnapshot, &blogMu, &blogState, &blogMemory, existsSlug, report); err != nil {
			o.logger.Error().Err(err).Str("theme", candidate.Theme.Slug).Msg("orchestrator: thematic blog post failed")
		}
	})

	if rctx, ok, err := blogctx.BuildReadingListContext(ctx, o.contentStore, mem, asOf, readingListMaxItems); err != nil {
		o.logger.Warn().Err(err).Msg("orchestrator: reading list context failed")
	} else if ok {
		if err := o.generateAndDeliverReadingList(ctx, rctx, &blogState, &blogMemory, existsSlug, report); err != nil {
			o.logger.Error().Err(err).Str("week", rctx.ISOWeek).Msg("orchestrator: reading list post failed")
		}
	}

	if err := o.stateStore.CommitState(blogState); err != nil {
		return fmt.Errorf("commit blog state: %w", err)
	}
	if err := o.stateStore.CommitMemory(blogMemory); err != nil {
		return fmt.Errorf("commit blog memory: %w", err)
	}
	return nil
}

const readingListMaxItems = 10

func weeklySlugFor(isoWeek string) string { return "weekly-" + isoWeek }

func (o *Orchestrator) generateAndDeliverWeekly(ctx context.Context, wctx blogctx.WeeklyContext, blogState *state.BlogState, blogMemory *state.BlogMemory, existsSlug func(string) bool, report *Report) error {
	slug := weeklySlugFor(wctx.ISOWeek)
	if blogState.IsGenerated(slug, "") {
		return nil
	}

	post, err := o.blogSynth.SynthesizeWeekly(ctx, wctx, *blogMemory, existsSlug)
	if err != nil {
		return err
	}
	return o.commitAndPublish(ctx, post, &wctx, nil, nil, blogState, blogMemory, report)
}

func (o *Orchestrator) generateAndDeliverThematic(ctx context.Context, candidate blogctx.ThematicCandidate, memSnapshot state.BlogMemory, mu *sync.Mutex, blogState *state.BlogState, blogMemory *state.BlogMemory, existsSlug func(string) bool, report *Report) error {
	post, err := o.blogSynth.SynthesizeThematic(ctx, candidate, memSnapshot, existsSlug)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	return o.commitAndPublish(ctx, post, nil, &candidate, nil, blogState, blogMemory, report)
}

func (o *Orchestrator) generateAndDeliverReadingList(ctx context.Context, rctx blogctx.ReadingListContext, blogState *state.BlogState, blogMemory *state.BlogMemory, existsSlug func(string) bool, report *Report) error {
	slug := "reading-list-" + rctx.ISOWeek
	if blogState.IsGenerated(slug, "") {
		return nil
	}
	post, err := o.blogSynth.SynthesizeReadingList(ctx, rctx, existsSlug)
	if err != nil {
		return err
	}
	return o.commitAndPublish(ctx, post, nil, nil, &rctx, blogState, blogMemory, report)
}

func (o *Orchestrator) commitAndPublish(ctx context.Context, post model.BlogPost, wctx *blogctx.WeeklyContext, candidate *blogctx.ThematicCandidate, rctx *blogctx.ReadingListContext, blogState *state.BlogState, blogMemory *state.BlogMemory, report *Report) error {
	path, scratchKey, err := o.blogSynth.RenderScratch(post, wctx, candidate, rctx)
	if err != nil {
		return fmt.Errorf("write post %s: %w", post.Slug, err)
	}

	blogState.MarkGenerated(state.PostRecord{
		Slug:        post.Slug,
		PostType:    string(post.PostType),
		GeneratedAt: time.Now().UTC(),
		SourceDates: post.SourceDates,
		FilePath:    path,
	})

	postDate, err := time.Parse("2006-01-02", post.Date)
	if err != nil {
		postDate = time.Now().UTC()
	}
	blogMemory.AddPost(state.PostSummary{
		Slug:          post.Slug,
		Title:         post.Title,
		PostType:      string(post.PostType),
		Date:          postDate,
		KeyPoints:     post.KeyPoints,
		ThemesCovered: post.Themes,
		ExamplesUsed:  post.ExamplesUsed,
	})

	if err := o.blogSynth.PromoteScratch(scratchKey, path); err != nil {
		return err
	}

	report.BlogPostsGenerated++

	receipts := publish.Fanout(ctx, post, o.publishers, o.logger)
	for _, r := range receipts {
		if r.Err != nil {
			report.PublisherFailures[r.Platform]++
			continue
		}
		report.PublisherDeliveries[r.Platform]++
		blogMemory.MarkPublished(post.Slug, r.Platform)
	}
	return nil
}
