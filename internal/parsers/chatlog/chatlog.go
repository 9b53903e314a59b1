// Package chatlog implements the chat-log session dialect (spec.md §4.1):
// a directory tree of newline-delimited JSON files, one line per message
// envelope, session boundary = file boundary, start/end times = first/last
// message timestamp. Grounded on the retrieval pack's NDJSON session reader
// (choplin-agentlog/internal/parser), adapted from a fixed event-kind
// switch to the Session/Outcome/AgentSignal canonical shape.
package chatlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/model"
)

// maxLineBytes bounds the scanner buffer so a single pathological line
// cannot exhaust memory; mirrors the pack's 8MB newScanner helper.
const maxLineBytes = 8 * 1024 * 1024

// envelope is one NDJSON line: a message with optional tool-call/result
// structure.
type envelope struct {
	Role      string          `json:"role"`
	Timestamp string          `json:"timestamp"`
	Content   string          `json:"content"`
	ToolCall  *toolCall       `json:"tool_call,omitempty"`
	ToolResult *toolResult    `json:"tool_result,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

type toolCall struct {
	Name  string         `json:"name"`
	Input map[string]any `json:"input,omitempty"`
}

type toolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Parser discovers and parses chat-log dialect session directories.
type Parser struct {
	logger zerolog.Logger
}

// New creates a chat-log Parser.
func New(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger.With().Str("component", "parsers.chatlog").Logger()}
}

// Discover walks root for *.jsonl / *.ndjson files, each a session.
func (p *Parser) Discover(root string) ([]string, error) {
	var locations []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entry: skip, but keep walking
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".jsonl" || ext == ".ndjson" {
			locations = append(locations, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chatlog: discover %s: %w", root, err)
	}
	return locations, nil
}

// Parse reads one session file and returns the Session it describes. A
// malformed line is skipped with a diagnostic; a malformed whole file
// (unreadable) is surfaced to the caller per spec.md §4.1's failure
// semantics.
func (p *Parser) Parse(location string) (model.Session, error) {
	//nolint:gosec // G304: location comes from Discover's own walk of a configured root
	f, err := os.Open(location)
	if err != nil {
		return model.Session{}, fmt.Errorf("chatlog: open %s: %w", location, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	sess := model.Session{
		ContentItem: model.ContentItem{
			Source:      model.SourceClaudeSession,
			ContentType: model.ContentTypeSession,
			Title:       strings.TrimSuffix(filepath.Base(location), filepath.Ext(location)),
			IngestedAt:  time.Now().UTC(),
		},
		ToolUsage:      make(map[string]int),
		SourceMetadata: make(map[string]any),
	}

	var bodyLines []string
	var firstTS, lastTS time.Time
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var env envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			p.logger.Warn().Str("file", location).Int("line", lineNo).Err(err).Msg("skipping malformed chat-log line")
			continue
		}

		ts, tsErr := parseTimestamp(env.Timestamp)
		if tsErr == nil {
			if firstTS.IsZero() || ts.Before(firstTS) {
				firstTS = ts
			}
			if lastTS.IsZero() || ts.After(lastTS) {
				lastTS = ts
			}
			sess.AgentSignals = append(sess.AgentSignals, model.AgentSignal{
				Timestamp: ts,
				Role:      env.Role,
				Signal:    "message",
				Message:   truncate(env.Content, 500),
			})
		}

		if env.Content != "" {
			bodyLines = append(bodyLines, fmt.Sprintf("%s: %s", env.Role, env.Content))
		}
		if env.ToolCall != nil {
			sess.ToolUsage[env.ToolCall.Name]++
			sess.Outcomes = append(sess.Outcomes, model.Outcome{
				Timestamp: ts,
				Kind:      outcomeKindForTool(env.ToolCall.Name),
				Detail:    toolDetail(env.ToolCall),
			})
		}
		if env.ToolResult != nil && env.ToolResult.IsError {
			sess.Outcomes = append(sess.Outcomes, model.Outcome{
				Timestamp: ts,
				Kind:      "command_run",
				Detail:    "error: " + truncate(env.ToolResult.Content, 300),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return model.Session{}, fmt.Errorf("chatlog: scan %s: %w", location, err)
	}

	sess.StartedAt = firstTS
	sess.EndedAt = lastTS
	sess.Body = strings.Join(bodyLines, "\n")
	return sess, nil
}

func outcomeKindForTool(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "write") || strings.Contains(lower, "edit"):
		return "file_modified"
	case strings.Contains(lower, "bash") || strings.Contains(lower, "exec") || strings.Contains(lower, "run"):
		return "command_run"
	default:
		return "signal_emitted"
	}
}

func toolDetail(tc *toolCall) string {
	if path, ok := tc.Input["file_path"].(string); ok {
		return path
	}
	if cmd, ok := tc.Input["command"].(string); ok {
		return cmd
	}
	return tc.Name
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
