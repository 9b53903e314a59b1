package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/analyzer"
	"github.com/aschepis/distill/internal/blog"
	"github.com/aschepis/distill/internal/config"
	"github.com/aschepis/distill/internal/contentstore"
	"github.com/aschepis/distill/internal/journal"
	"github.com/aschepis/distill/internal/llm"
	"github.com/aschepis/distill/internal/memory"
	"github.com/aschepis/distill/internal/model"
	"github.com/aschepis/distill/internal/normalize"
	"github.com/aschepis/distill/internal/notes"
	"github.com/aschepis/distill/internal/parsers/chatlog"
	"github.com/aschepis/distill/internal/parsers/feed"
	"github.com/aschepis/distill/internal/parsers/multiagent"
	"github.com/aschepis/distill/internal/parsers/rollout"
	"github.com/aschepis/distill/internal/publish"
	"github.com/aschepis/distill/internal/state"
)

// RunRequest names the inclusive date range (YYYY-MM-DD) one pipeline pass
// covers.
type RunRequest struct {
	StartDate string
	EndDate   string
	Force     bool
}

// Report is the structured end-of-run summary: total counts of sessions and
// content items ingested (not broken down per source), journals/blog posts
// generated or skipped, publisher deliveries and failures per platform, and
// pending dates.
type Report struct {
	DatesProcessed       []string
	SessionsIngested     int
	ContentItemsIngested int
	JournalsGenerated    int
	JournalsSkipped      int
	JournalsPending      []string
	BlogPostsGenerated   int
	BlogPostsSkipped     int
	PublisherDeliveries  map[string]int
	PublisherFailures    map[string]int
	PendingDates         []string
}

func newReport() Report {
	return Report{
		PublisherDeliveries: make(map[string]int),
		PublisherFailures:   make(map[string]int),
	}
}

// sessionParser is the shape common to the three session-source dialects
// (spec.md §4.1): discover candidate files under a root, parse one into a
// canonical Session.
type sessionParser interface {
	Discover(root string) ([]string, error)
	Parse(location string) (model.Session, error)
}

// Orchestrator is the single coordinator described in spec.md §2: for a
// requested date range it runs Parsers -> Normalizer -> (Analyzer <->
// Memory) -> Journal Synthesizer -> Blog Context Builder -> Blog
// Synthesizer -> Publishers in topological order, with the State layer
// short-circuiting already-committed work.
type Orchestrator struct {
	cfg          config.Config
	logger       zerolog.Logger
	sessionRoots []string
	timezone     *time.Location

	sessionParsers []sessionParser
	feedParser     *feed.RSSParser

	roots analyzer.KnownProjectRoots

	memoryStore    *memory.Store
	contentStore   *contentstore.Store
	seedStore      *notes.SeedStore
	editorialStore *notes.EditorialStore

	journalSynth *journal.Synthesizer
	blogSynth    *blog.Synthesizer
	stateStore   *state.Store
	publishers   []publish.Publisher
}

// New constructs an Orchestrator from layered config, wiring every
// component per SPEC_FULL.md's component-to-package map (§C).
func New(cfg config.Config, sessionRoots []string, logger zerolog.Logger) (*Orchestrator, error) {
	log := logger.With().Str("component", "orchestrator").Logger()

	outputDir := cfg.Output.Directory
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("orchestrator: create output dir: %w", err)
	}

	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.Timezone).Msg("orchestrator: unknown timezone, falling back to UTC")
		tz = time.UTC
	}

	worker, err := llm.New(llm.BackendConfig{
		Backend:        cfg.LLM.Backend,
		Model:          cfg.LLM.Model,
		SubprocessCmd:  cfg.LLM.SubprocessCmd,
		AnthropicKey:   cfg.LLM.AnthropicKey,
		OpenAIKey:      cfg.LLM.OpenAIKey,
		OllamaHost:     cfg.LLM.OllamaHost,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build llm worker: %w", err)
	}

	retryCfg := llm.RetryConfig{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: time.Duration(cfg.Retry.InitialBackoffSec * float64(time.Second)),
		Multiplier:      cfg.Retry.Multiplier,
	}

	dbPath := filepath.Join(outputDir, "content.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open content store: %w", err)
	}
	migrationsPath := filepath.Join("internal", "contentstore", "migrations")
	if err := contentstore.RunMigrations(db, migrationsPath, log); err != nil {
		log.Warn().Err(err).Msg("orchestrator: content store migrations skipped")
	}

	var parsers []sessionParser
	for _, source := range cfg.Sessions.Sources {
		switch source {
		case "chat-log":
			parsers = append(parsers, chatlog.New(log))
		case "rollout":
			parsers = append(parsers, rollout.New(log))
		case "multi-agent":
			parsers = append(parsers, multiagent.New(log))
		default:
			log.Warn().Str("source", source).Msg("orchestrator: unknown session source configured")
		}
	}

	var feedParser *feed.RSSParser
	if len(cfg.Intake.RSSFeeds) > 0 {
		feedParser = feed.NewRSSParser(cfg.Intake.RSSFeeds, cfg.Intake.MaxAgeDays, log)
	}

	journalSynth := journal.New(outputDir, worker, retryCfg, log)
	blogSynth := blog.New(blog.Config{
		OutputDir:        outputDir,
		TargetWordCount:  cfg.Blog.TargetWordCount,
		IncludeDiagrams:  cfg.Blog.IncludeDiagrams,
		AvoidListSize:    cfg.Blog.AvoidListSize,
		OverlapThreshold: cfg.Blog.OverlapThreshold,
	}, worker, retryCfg, log)

	// A crash between a prior run's scratch write and its state commit
	// leaves an orphan scratch file (spec.md §4.8 rule 2); clean those up
	// once, up front, rather than serving stale unpromoted output.
	if n := journalSynth.CleanOrphanScratch(); n > 0 {
		log.Warn().Int("count", n).Msg("orchestrator: removed orphaned journal scratch files from a previous crash")
	}
	if n := blogSynth.CleanOrphanScratch(); n > 0 {
		log.Warn().Int("count", n).Msg("orchestrator: removed orphaned blog scratch files from a previous crash")
	}

	return &Orchestrator{
		cfg:            cfg,
		logger:         log,
		sessionRoots:   sessionRoots,
		timezone:       tz,
		sessionParsers: parsers,
		feedParser:     feedParser,
		roots:          analyzer.KnownProjectRoots(projectRoots(cfg.Projects)),
		memoryStore:    memory.New(filepath.Join(outputDir, ".distill-memory"), outputDir, log),
		contentStore:   contentstore.New(db, nil, log),
		seedStore:      notes.NewSeedStore(filepath.Join(outputDir, ".distill-seeds"), log),
		editorialStore: notes.NewEditorialStore(filepath.Join(outputDir, ".distill-notes"), log),
		journalSynth:   journalSynth,
		blogSynth:      blogSynth,
		stateStore:     state.New(outputDir, log),
		publishers:     publish.BuildFromConfig(cfg.Blog.Platforms, outputDir, cfg),
	}, nil
}

func projectRoots(projects []config.ProjectDescriptor) []string {
	var roots []string
	for _, p := range projects {
		if p.URL != "" {
			roots = append(roots, p.URL)
		}
	}
	return roots
}

// Run executes one pipeline pass over [req.StartDate, req.EndDate],
// producing journals for each date, then rolling up any newly-eligible
// blog posts (weekly/thematic/reading-list) and fanning them out to
// configured publishers.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (Report, error) {
	report := newReport()

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return report, fmt.Errorf("orchestrator: parse start date %q: %w", req.StartDate, err)
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return report, fmt.Errorf("orchestrator: parse end date %q: %w", req.EndDate, err)
	}
	if end.Before(start) {
		return report, fmt.Errorf("orchestrator: end date %s before start date %s", req.EndDate, req.StartDate)
	}

	buckets, err := o.discoverAndNormalize(ctx)
	if err != nil {
		return report, fmt.Errorf("orchestrator: discovery: %w", err)
	}
	bucketByDate := make(map[string]normalize.Bucket, len(buckets))
	for _, b := range buckets {
		bucketByDate[b.Date] = b
		report.SessionsIngested += len(b.Sessions)
		report.ContentItemsIngested += len(b.Items)
	}

	mem, err := o.memoryStore.Load()
	if err != nil {
		return report, fmt.Errorf("orchestrator: load memory: %w", err)
	}
	// readSnapshot is what every date's DailyContext is built from — an
	// immutable point-in-time copy per spec.md §5's "concurrent synthesizers
	// read an immutable snapshot taken at the start of their task". Writes
	// (RecordDaily/UpdateThreads/Prune, mark_used) go through memMu against
	// the one live mem, spec.md §5's "single writer".
	readSnapshot := memory.Snapshot(mem)

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format("2006-01-02"))
	}

	type dateResult struct {
		entry *model.JournalEntry
		err   error
	}
	results := make([]dateResult, len(dates))
	var memMu sync.Mutex

	runBounded(len(dates), o.cfg.Concurrency.LLMWorkers, func(i int) {
		date := dates[i]
		entry, err := o.runJournalForDate(ctx, date, bucketByDate[date], readSnapshot, &mem, &memMu, req.Force)
		results[i] = dateResult{entry: entry, err: err}
	})

	var generatedEntries []model.JournalEntry
	for i, date := range dates {
		report.DatesProcessed = append(report.DatesProcessed, date)
		res := results[i]
		if res.err != nil {
			o.logger.Error().Err(res.err).Str("date", date).Msg("orchestrator: journal stage failed")
			report.PendingDates = append(report.PendingDates, date)
			continue
		}
		entry := res.entry
		if entry == nil {
			report.JournalsSkipped++
			continue
		}
		if entry.WordCount == 0 && entry.BodyMarkdown == "" {
			report.JournalsPending = append(report.JournalsPending, date)
			report.PendingDates = append(report.PendingDates, date)
			continue
		}
		report.JournalsGenerated++
		generatedEntries = append(generatedEntries, *entry)
	}

	if err := o.memoryStore.Commit(mem); err != nil {
		return report, fmt.Errorf("orchestrator: commit memory: %w", err)
	}

	if err := o.runBlogStage(ctx, generatedEntries, mem, end, &report); err != nil {
		o.logger.Error().Err(err).Msg("orchestrator: blog stage failed")
	}

	return report, nil
}

// sourceJob is one (root, parser) or feed-URL unit of discovery+parse work,
// run by discoverAndNormalize's worker pool.
type sourceJob struct {
	root   string
	parser sessionParser
	feed   string // set instead of root/parser for a feed job
}

// discoverAndNormalize runs every configured session parser over every
// configured root, and every configured feed URL, as parallel workers
// bounded by cfg.Concurrency.ParserWorkers (spec.md §5: "per-source parsing
// ... run as parallel workers bounded by a configured pool"), then feeds
// the results through the Normalizer and returns the deduplicated,
// date-bucketed output (spec.md §4.1/§4.2). Normalizer.Add is not
// concurrency-safe, so workers collect into a mutex-guarded slice and Add
// runs serially afterward.
func (o *Orchestrator) discoverAndNormalize(ctx context.Context) ([]normalize.Bucket, error) {
	n := normalize.New(o.timezone, o.logger)

	var jobs []sourceJob
	for _, root := range o.sessionRoots {
		for _, parser := range o.sessionParsers {
			jobs = append(jobs, sourceJob{root: root, parser: parser})
		}
	}
	if o.feedParser != nil {
		for _, feedURL := range o.feedParser.Discover() {
			jobs = append(jobs, sourceJob{feed: feedURL})
		}
	}

	// Each worker writes only its own slot, so the merge below replays jobs
	// in their original deterministic order regardless of completion order
	// — Normalizer.Add's last-write-wins merge depends on that order.
	perJob := make([][]normalize.Raw, len(jobs))

	runBounded(len(jobs), o.cfg.Concurrency.ParserWorkers, func(i int) {
		job := jobs[i]
		if job.feed != "" {
			items, err := o.feedParser.Parse(ctx, job.feed)
			if err != nil {
				o.logger.Warn().Err(err).Str("feed", job.feed).Msg("orchestrator: feed parse error")
				return
			}
			found := make([]normalize.Raw, 0, len(items))
			for _, item := range items {
				found = append(found, normalize.Raw{Item: item})
			}
			perJob[i] = found
			return
		}

		locations, err := job.parser.Discover(job.root)
		if err != nil {
			o.logger.Warn().Err(err).Str("root", job.root).Msg("orchestrator: source discovery failed")
			return
		}
		var found []normalize.Raw
		for _, loc := range locations {
			sess, err := job.parser.Parse(loc)
			if err != nil {
				o.logger.Warn().Err(err).Str("location", loc).Msg("orchestrator: parse error, record dropped")
				continue
			}
			found = append(found, normalize.Raw{Item: sess.ContentItem, Session: &sess})
		}
		perJob[i] = found
	})

	for _, found := range perJob {
		for _, raw := range found {
			n.Add(raw)
		}
	}

	buckets := n.Buckets()
	for _, b := range buckets {
		for _, item := range b.Items {
			if err := o.contentStore.Upsert(ctx, item, nil, b.Date); err != nil {
				o.logger.Warn().Err(err).Str("id", item.ID).Msg("orchestrator: content store upsert failed")
			}
		}
	}
	return buckets, nil
}

// runJournalForDate builds the DailyContext for date from readSnapshot and
// synthesizes its journal entry, then applies the extracted memory to the
// shared mem under memMu (spec.md §4.5). Called concurrently across dates
// by Run's worker pool, bounded by cfg.Concurrency.LLMWorkers — readSnapshot
// is the immutable per-task view spec.md §5 requires, and memMu serializes
// every write to the shared mem and to the notes/seeds stores, whose
// MarkUsed methods are unsynchronized read-modify-write. Returns (nil, nil)
// if there is nothing to synthesize (no sessions for that date).
func (o *Orchestrator) runJournalForDate(ctx context.Context, date string, bucket normalize.Bucket, readSnapshot model.UnifiedMemory, mem *model.UnifiedMemory, memMu *sync.Mutex, force bool) (*model.JournalEntry, error) {
	if len(bucket.Sessions) == 0 {
		return nil, nil
	}

	analyses := make(map[string]analyzer.Analysis, len(bucket.Sessions))
	var sessionIDs []string
	for _, sess := range bucket.Sessions {
		analyses[sess.ID] = analyzer.Analyze(sess, o.roots)
		sessionIDs = append(sessionIDs, sess.ID)
	}
	sort.Strings(sessionIDs)

	asOf, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, err
	}
	yesterdayEntities := entitiesMentionedOn(readSnapshot, asOf.AddDate(0, 0, -1).Format("2006-01-02"))

	memMu.Lock()
	editorialNotes, err := o.editorialStore.Load()
	if err != nil {
		o.logger.Warn().Err(err).Msg("orchestrator: editorial notes unavailable")
	}
	unusedSeeds, err := o.seedStore.Unused()
	if err != nil {
		o.logger.Warn().Err(err).Msg("orchestrator: seeds unavailable")
	}
	memMu.Unlock()

	dailyCtx := journal.BuildDailyContext(
		date, bucket.Sessions, analyses, readSnapshot, yesterdayEntities,
		editorialNotes, unusedSeeds, o.cfg.Projects, asOf,
	)

	result, err := o.journalSynth.Synthesize(ctx, dailyCtx, o.cfg.Journal.Style, o.cfg.Journal.TargetWordCount, sessionIDs, force)
	if err != nil {
		return nil, err
	}
	if result.Pending {
		return &model.JournalEntry{Date: date}, nil
	}

	memMu.Lock()
	defer memMu.Unlock()

	o.markNotesAndSeedsUsed(dailyCtx, editorialNotes, unusedSeeds, date)

	memory.RecordDaily(mem, date, sessionIDs, nil, result.Memory.Themes, result.Memory.KeyInsights, result.Memory.DecisionsMade, result.Memory.OpenQuestions)
	summaries := make(map[string]string, len(result.Memory.Threads))
	var threadNames []string
	for _, t := range result.Memory.Threads {
		summaries[t.Name] = t.Summary
		threadNames = append(threadNames, t.Name)
	}
	memory.UpdateThreads(mem, threadNames, date, summaries)
	memory.Prune(mem, o.cfg.Journal.MemoryWindowDays*4, asOf)

	return &result.Entry, nil
}

// markNotesAndSeedsUsed performs the mark_used compare-and-set (spec.md
// §5) on every editorial note and seed that actually made it into the
// generated journal's context, once that journal entry has committed
// successfully. Matched by text rather than carrying IDs through
// DailyContext, since BuildDailyContext's output is consumed by the LLM
// prompt as plain strings.
func (o *Orchestrator) markNotesAndSeedsUsed(dailyCtx journal.DailyContext, editorialNotes []model.EditorialNote, unusedSeeds []model.Seed, date string) {
	included := make(map[string]bool, len(dailyCtx.EditorialNotes))
	for _, text := range dailyCtx.EditorialNotes {
		included[text] = true
	}
	for _, n := range editorialNotes {
		if included[n.Text] {
			if err := o.editorialStore.MarkUsed(n.ID); err != nil {
				o.logger.Warn().Err(err).Str("note_id", n.ID).Msg("orchestrator: mark editorial note used failed")
			}
		}
	}

	includedSeeds := make(map[string]bool, len(dailyCtx.UnusedSeeds))
	for _, text := range dailyCtx.UnusedSeeds {
		includedSeeds[text] = true
	}
	for _, seed := range unusedSeeds {
		if includedSeeds[seed.Text] {
			if err := o.seedStore.MarkUsed(seed.ID, date); err != nil {
				o.logger.Warn().Err(err).Str("seed_id", seed.ID).Msg("orchestrator: mark seed used failed")
			}
		}
	}
}

func entitiesMentionedOn(mem model.UnifiedMemory, date string) []model.EntityRecord {
	var out []model.EntityRecord
	for _, e := range mem.Entities {
		if e.LastSeen == date {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
