package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/distillerr"
	"github.com/aschepis/distill/internal/llm"
	"github.com/aschepis/distill/internal/model"
	"github.com/aschepis/distill/internal/state"
)

// Synthesizer implements the Journal Synthesizer contract (spec.md §4.5):
// synthesize(date, style, sessions, memory, config) -> JournalEntry.
type Synthesizer struct {
	outputDir string
	worker    llm.Worker
	retryCfg  llm.RetryConfig
	cache     *cache
	scratch   *state.ScratchWriter
	logger    zerolog.Logger
}

// New creates a Synthesizer writing under outputDir/journal/.
func New(outputDir string, worker llm.Worker, retryCfg llm.RetryConfig, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		outputDir: outputDir,
		worker:    worker,
		retryCfg:  retryCfg,
		cache:     loadCache(outputDir),
		scratch:   state.NewScratchWriter(outputDir),
		logger:    logger.With().Str("component", "journal.synthesizer").Logger(),
	}
}

// ExtractedMemory is the second-pass structured output mined from generated
// prose, grounded on original_source's extract_memory.
type ExtractedMemory struct {
	Themes        []string
	KeyInsights   []string
	DecisionsMade []string
	OpenQuestions []string
	Threads       []ExtractedThread
}

// ExtractedThread is one ongoing-narrative thread pulled from prose.
type ExtractedThread struct {
	Name    string
	Summary string
}

// Result bundles the synthesized entry with the structured memory mined
// from it, so the orchestrator can feed both into the Memory Store.
type Result struct {
	Entry      model.JournalEntry
	Memory     ExtractedMemory
	Pending    bool // true if all attempts failed; Entry is the zero value
	FromCache  bool
}

// Synthesize implements spec.md §4.5 end to end: cache check, context
// already built by the caller (internal/journal.BuildDailyContext),
// generation with length enforcement and retry, frontmatter, atomic write.
func (s *Synthesizer) Synthesize(ctx context.Context, ctxData DailyContext, style string, targetWordCount int, sessionIDs []string, force bool) (Result, error) {
	if !force && s.cache.isCached(ctxData.Date, style, sessionIDs) {
		entry, err := s.readExisting(ctxData.Date, style)
		if err == nil {
			return Result{Entry: entry, FromCache: true}, nil
		}
		s.logger.Warn().Str("date", ctxData.Date).Err(err).Msg("cached entry missing on disk, regenerating")
	}
	if !force && s.cache.isPending(ctxData.Date, style) {
		return Result{Pending: true}, nil
	}

	systemPrompt := systemPromptFor(style, targetWordCount)
	userPrompt := ctxData.RenderText()
	prompt := s.worker.RenderPrompt(systemPrompt, userPrompt)

	prose, err := llm.InvokeWithRetry(ctx, s.worker, prompt, s.retryCfg, s.logger)
	if err != nil {
		s.logger.Error().Str("date", ctxData.Date).Err(err).Msg("journal synthesis exhausted retries")
		s.cache.markPending(ctxData.Date, style, sessionIDs)
		if saveErr := s.cache.save(); saveErr != nil {
			s.logger.Warn().Err(saveErr).Msg("failed to persist journal cache")
		}
		return Result{Pending: true}, fmt.Errorf("journal: %w", distillerr.NewRetryable("journal.synthesize", err, 0))
	}

	prose = stripChrome(prose)
	lengthDiagnostic := false
	if !withinTolerance(wordCount(prose), targetWordCount) {
		correction := lengthCorrectionPrompt(wordCount(prose), targetWordCount)
		retryPrompt := s.worker.RenderPrompt(systemPrompt, userPrompt+"\n\n"+correction)
		retried, retryErr := llm.InvokeWithRetry(ctx, s.worker, retryPrompt, s.retryCfg, s.logger)
		if retryErr == nil {
			retried = stripChrome(retried)
			if withinTolerance(wordCount(retried), targetWordCount) {
				prose = retried
			} else {
				prose = retried
				lengthDiagnostic = true
			}
		} else {
			lengthDiagnostic = true
		}
	}

	generatedAt := time.Now().UTC()
	entry := model.JournalEntry{
		Date:             ctxData.Date,
		Style:            style,
		WordCount:        wordCount(prose),
		Projects:         ctxData.ProjectsWorked,
		SessionsCount:    ctxData.TotalSessions,
		DurationMinutes:  ctxData.TotalDurationMins,
		Tags:             ctxData.Tags,
		BodyMarkdown:     prose,
		SourceSessionIDs: sessionIDs,
		GeneratedAt:      generatedAt,
	}

	rendered := renderEntry(ctxData, style, prose, generatedAt, lengthDiagnostic)
	scratchKey := state.NewScratchKey(fmt.Sprintf("journal-%s-%s", ctxData.Date, style))
	if err := s.scratch.WriteScratch(scratchKey, []byte(rendered)); err != nil {
		return Result{}, fmt.Errorf("journal: write scratch: %w", err)
	}

	s.cache.markGenerated(ctxData.Date, style, sessionIDs)
	if err := s.cache.save(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist journal cache")
	}

	if err := s.scratch.PromoteScratch(scratchKey, s.outputPath(ctxData.Date, style)); err != nil {
		return Result{}, fmt.Errorf("journal: promote entry: %w", err)
	}

	extracted := s.extractMemory(ctx, ctxData.Date, prose)

	return Result{Entry: entry, Memory: extracted}, nil
}

func (s *Synthesizer) outputPath(date, style string) string {
	return filepath.Join(s.outputDir, "journal", fmt.Sprintf("journal-%s-%s.md", date, style))
}

// CleanOrphanScratch removes every scratch file left by an entry whose
// scratch write ran but whose promote never did (spec.md §4.8 rule 2) —
// call once at startup.
func (s *Synthesizer) CleanOrphanScratch() int {
	return s.scratch.CleanAllOrphans()
}

func (s *Synthesizer) readExisting(date, style string) (model.JournalEntry, error) {
	data, err := os.ReadFile(s.outputPath(date, style)) //#nosec G304 -- path is built from internal date/style values
	if err != nil {
		return model.JournalEntry{}, err
	}
	body := stripFrontmatter(string(data))
	return model.JournalEntry{Date: date, Style: style, BodyMarkdown: body, WordCount: wordCount(body)}, nil
}

func stripFrontmatter(text string) string {
	if !strings.HasPrefix(text, "---\n") {
		return text
	}
	rest := text[4:]
	idx := strings.Index(rest, "\n---\n")
	if idx == -1 {
		return text
	}
	return strings.TrimLeft(rest[idx+5:], "\n")
}

// extractionResponse is the JSON shape the second-pass LLM call returns,
// per original_source/src/journal/synthesizer.py: extract_memory.
type extractionResponse struct {
	Themes        []string `json:"themes"`
	KeyInsights   []string `json:"key_insights"`
	DecisionsMade []string `json:"decisions_made"`
	OpenQuestions []string `json:"open_questions"`
	Threads       []struct {
		Name    string `json:"name"`
		Summary string `json:"summary"`
	} `json:"threads"`
}

// extractMemory makes a second LLM call to mine structured memory out of
// the generated prose. Failure here is soft: the journal entry has already
// been committed, so a mining failure only loses this day's memory update.
func (s *Synthesizer) extractMemory(ctx context.Context, date, prose string) ExtractedMemory {
	prompt := s.worker.RenderPrompt("", extractionPrompt(date, prose))
	raw, err := llm.InvokeWithRetry(ctx, s.worker, prompt, s.retryCfg, s.logger)
	if err != nil {
		s.logger.Warn().Str("date", date).Err(err).Msg("memory extraction failed, skipping")
		return ExtractedMemory{}
	}

	cleaned := stripCodeFence(raw)
	var resp extractionResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		s.logger.Warn().Str("date", date).Err(err).Msg("memory extraction returned invalid JSON, skipping")
		return ExtractedMemory{}
	}

	out := ExtractedMemory{
		Themes:        resp.Themes,
		KeyInsights:   resp.KeyInsights,
		DecisionsMade: resp.DecisionsMade,
		OpenQuestions: resp.OpenQuestions,
	}
	for _, t := range resp.Threads {
		out.Threads = append(out.Threads, ExtractedThread{Name: t.Name, Summary: t.Summary})
	}
	return out
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
