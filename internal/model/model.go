// Package model defines the canonical data types shared across the pipeline
// (spec.md §3): ContentItem, Session, JournalEntry, BlogPost, the memory
// graph types, and the small Seed/EditorialNote steering records.
package model

import "time"

// Source enumerates where a ContentItem originated.
type Source string

const (
	SourceClaudeSession  Source = "claude-session"
	SourceCodexSession   Source = "codex-session"
	SourceVermasSession  Source = "vermas-session"
	SourceRSS            Source = "rss"
	SourceBrowser        Source = "browser"
	SourceSubstack       Source = "substack"
	SourceGmail          Source = "gmail"
	SourceLinkedIn       Source = "linkedin"
	SourceTwitter        Source = "twitter"
	SourceReddit         Source = "reddit"
	SourceYouTube        Source = "youtube"
	SourceSeed           Source = "seed"
)

// ContentType enumerates the shape of a ContentItem's body.
type ContentType string

const (
	ContentTypeSession ContentType = "session"
	ContentTypeArticle ContentType = "article"
	ContentTypePost    ContentType = "post"
	ContentTypeEmail   ContentType = "email"
	ContentTypeVideo   ContentType = "video"
	ContentTypeNote    ContentType = "note"
)

// ContentItem is the canonical ingestion record (spec.md §3). Its id is a
// stable function of its source fields — see internal/normalize for
// derivation — and is unique across the entire store.
type ContentItem struct {
	ID          string
	Source      Source
	ContentType ContentType
	Title       string
	Body        string
	Excerpt     string
	URL         string
	Author      string
	SiteName    string
	PublishedAt time.Time
	IngestedAt  time.Time
	Tags        []string
	Topics      []string
	Project     string
	Metadata    map[string]any
}

// HasPublishedAt reports whether PublishedAt was set by the parser (as
// opposed to defaulting to the zero value).
func (c ContentItem) HasPublishedAt() bool {
	return !c.PublishedAt.IsZero()
}

// AgentSignal is one ordered event emitted during a session: a tool call, a
// file modification, a multi-agent status signal.
type AgentSignal struct {
	Timestamp time.Time
	AgentID   string
	Role      string
	Signal    string
	Message   string
}

// Outcome is one structured event recorded during a session (a file
// modified, a command run).
type Outcome struct {
	Timestamp time.Time
	Kind      string // "file_modified", "command_run", "signal_emitted"
	Detail    string
}

// Session specializes ContentItem for coding-assistant sessions.
type Session struct {
	ContentItem

	StartedAt       time.Time
	EndedAt         time.Time
	DurationSeconds int64 // derived = EndedAt - StartedAt; -1 means unknown
	ToolUsage       map[string]int
	Outcomes        []Outcome
	AgentSignals    []AgentSignal
	Learnings       []string

	// SourceMetadata carries dialect-specific fields preserved verbatim:
	// task description, cycle, quality rating (multi-agent dialect).
	SourceMetadata map[string]any
}

// DurationUnknown reports whether the session's duration could not be
// computed (derived duration would have been negative).
func (s Session) DurationUnknown() bool {
	return s.DurationSeconds < 0
}

// DurationMinutes returns the duration in whole minutes, or 0 if unknown.
func (s Session) DurationMinutes() int {
	if s.DurationUnknown() {
		return 0
	}
	return int(s.DurationSeconds / 60)
}

// JournalEntry is one generated daily narrative, keyed by (Date, Style).
type JournalEntry struct {
	Date             string // YYYY-MM-DD
	Style            string
	WordCount        int
	Projects         []string
	SessionsCount    int
	DurationMinutes  int
	Tags             []string
	BodyMarkdown     string
	SourceSessionIDs []string
	GeneratedAt      time.Time
}

// PostType enumerates the kinds of BlogPost the synthesizer produces.
type PostType string

const (
	PostTypeWeekly      PostType = "weekly"
	PostTypeThematic    PostType = "thematic"
	PostTypeReadingList PostType = "reading-list"
)

// BlogPost is one generated longer-form piece, keyed by (PostType, Slug).
type BlogPost struct {
	Slug                string
	PostType            PostType
	Date                string
	Title               string
	BodyMarkdown        string
	Themes              []string
	Projects            []string
	SourceDates         []string
	KeyPoints           []string
	ExamplesUsed        []string
	PlatformsPublished  []string
}

// ThreadStatus enumerates a MemoryThread's activity state.
type ThreadStatus string

const (
	ThreadActive  ThreadStatus = "active"
	ThreadDormant ThreadStatus = "dormant"
)

// MemoryThread is a recurring topic tracked across days.
type MemoryThread struct {
	Name         string
	Summary      string
	FirstSeen    string // YYYY-MM-DD
	LastSeen     string // YYYY-MM-DD
	MentionCount int
	Status       ThreadStatus
}

// EntityRecord tracks a named entity (person, tool, project) mentioned
// across journals.
type EntityRecord struct {
	Name         string
	EntityType   string
	FirstSeen    string
	LastSeen     string
	MentionCount int
	Contexts     []string // capped, most-recent-first
}

// PublishedRecord is an append-only log entry of a delivered BlogPost.
type PublishedRecord struct {
	Slug      string
	Title     string
	PostType  PostType
	Date      string
	Platforms []string
}

// DailyEntry is the per-date row inside UnifiedMemory.
type DailyEntry struct {
	Date          string
	SessionIDs    []string
	ReadIDs       []string
	Themes        []string
	Insights      []string
	Decisions     []string
	OpenQuestions []string
}

// UnifiedMemory is the durable rolling memory C4 persists (spec.md §3/§4.4).
type UnifiedMemory struct {
	DailyEntries []DailyEntry
	Threads      map[string]MemoryThread   // keyed by thread name
	Entities     map[string]EntityRecord   // keyed by "type:name.lower()"
	Published    []PublishedRecord
}

// NewUnifiedMemory returns an empty, ready-to-use UnifiedMemory.
func NewUnifiedMemory() UnifiedMemory {
	return UnifiedMemory{
		Threads:  make(map[string]MemoryThread),
		Entities: make(map[string]EntityRecord),
	}
}

// Seed is a short user-supplied idea fed into synthesis context.
type Seed struct {
	ID        string
	Text      string
	Tags      []string
	CreatedAt time.Time
	Used      bool
	UsedIn    string // slug or journal date, if Used
}

// EditorialNote is a user-authored steering instruction targeted at a week
// or theme (or global, if Target is empty).
type EditorialNote struct {
	ID        string
	Text      string
	Target    string // "", "week:<ISO-week>", or "theme:<slug>"
	CreatedAt time.Time
	Used      bool
}

// MatchesTarget reports whether this note applies to the given ISO week and
// theme slug.
func (n EditorialNote) MatchesTarget(isoWeek string, themeSlug string) bool {
	switch {
	case n.Target == "":
		return true
	case isoWeek != "" && n.Target == "week:"+isoWeek:
		return true
	case themeSlug != "" && n.Target == "theme:"+themeSlug:
		return true
	default:
		return false
	}
}
