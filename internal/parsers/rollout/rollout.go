// Package rollout implements the rollout session dialect (spec.md §4.1): a
// directory per session holding a manifest.json plus ordered, numerically
// named event files; session identity comes from the manifest's session_id,
// and from the directory name only when the manifest has none; timestamps
// come from the manifest. Grounded on the same NDJSON-event reading
// discipline as internal/parsers/chatlog, restructured for a manifest-led
// directory layout.
package rollout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/model"
)

// manifest describes a rollout session directory's metadata.
type manifest struct {
	SessionID string `json:"session_id"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at"`
	Project   string `json:"project,omitempty"`
}

// event is one ordered record inside a rollout event file.
type event struct {
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"` // "message", "tool_call", "file_change"
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Path      string         `json:"path,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Parser discovers and parses rollout dialect session directories.
type Parser struct {
	logger zerolog.Logger
}

// New creates a rollout Parser.
func New(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger.With().Str("component", "parsers.rollout").Logger()}
}

// Discover finds session directories: any directory directly under root
// containing a manifest.json.
func (p *Parser) Discover(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("rollout: discover %s: %w", root, err)
	}
	var locations []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, "manifest.json")); err == nil {
			locations = append(locations, dir)
		}
	}
	return locations, nil
}

// Parse reads one session directory's manifest and ordered event files.
func (p *Parser) Parse(location string) (model.Session, error) {
	//nolint:gosec // G304: location comes from Discover's own walk of a configured root
	manifestBytes, err := os.ReadFile(filepath.Join(location, "manifest.json"))
	if err != nil {
		return model.Session{}, fmt.Errorf("rollout: read manifest %s: %w", location, err)
	}
	var m manifest
	if err := json.Unmarshal(manifestBytes, &m); err != nil {
		return model.Session{}, fmt.Errorf("rollout: parse manifest %s: %w", location, err)
	}

	sessID := m.SessionID
	if sessID == "" {
		sessID = filepath.Base(location)
	}

	sess := model.Session{
		ContentItem: model.ContentItem{
			Source:      model.SourceCodexSession,
			ContentType: model.ContentTypeSession,
			Title:       sessID,
			Project:     m.Project,
			IngestedAt:  time.Now().UTC(),
		},
		ToolUsage:      make(map[string]int),
		SourceMetadata: make(map[string]any),
	}
	sess.StartedAt, _ = parseTimestamp(m.StartedAt)
	sess.EndedAt, _ = parseTimestamp(m.EndedAt)

	eventFiles, err := eventFilesSorted(location)
	if err != nil {
		return model.Session{}, fmt.Errorf("rollout: list event files %s: %w", location, err)
	}

	var bodyLines []string
	for _, ef := range eventFiles {
		//nolint:gosec // G304: ef comes from eventFilesSorted's own directory listing
		data, err := os.ReadFile(ef)
		if err != nil {
			p.logger.Warn().Str("file", ef).Err(err).Msg("skipping unreadable rollout event file")
			continue
		}
		var evs []event
		if err := json.Unmarshal(data, &evs); err != nil {
			p.logger.Warn().Str("file", ef).Err(err).Msg("skipping malformed rollout event file")
			continue
		}
		for _, e := range evs {
			ts, _ := parseTimestamp(e.Timestamp)
			switch e.Type {
			case "message":
				bodyLines = append(bodyLines, fmt.Sprintf("%s: %s", e.Role, e.Content))
				sess.AgentSignals = append(sess.AgentSignals, model.AgentSignal{Timestamp: ts, Role: e.Role, Signal: "message", Message: e.Content})
			case "tool_call":
				sess.ToolUsage[e.Tool]++
				sess.Outcomes = append(sess.Outcomes, model.Outcome{Timestamp: ts, Kind: "command_run", Detail: e.Tool})
			case "file_change":
				sess.Outcomes = append(sess.Outcomes, model.Outcome{Timestamp: ts, Kind: "file_modified", Detail: e.Path})
			}
		}
	}

	sess.Body = strings.Join(bodyLines, "\n")
	return sess, nil
}

func eventFilesSorted(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == "manifest.json" {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
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
