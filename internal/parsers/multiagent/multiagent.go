// Package multiagent implements the multi-agent session dialect (spec.md
// §4.1): a hierarchical state directory (mission -> cycle -> task) of
// structured-text signal records. Sessions are task executions; signals are
// first-class ordered events; task descriptions, learnings, and quality
// ratings are preserved verbatim. Grounded on original_source's vermas.py
// (`.vermas/state/mission-<id>-cycle-<n>-<task-name>/{signals/*.yaml,
// events.log}` layout) and the pack's YAML-annotation convention
// (jyang234-ai-engineering-framework's TaskAnnotation yaml tags).
package multiagent

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/aschepis/distill/internal/model"
)

// taskDirPattern matches "mission-<id>-cycle-<n>-<task-name>" directory
// names, the verbatim format vermas.py's state directories use.
var taskDirPattern = regexp.MustCompile(`^mission-(.+)-cycle-(\d+)-(.+)$`)

// signalRecord is one structured-text signal file under a task directory's
// signals/ subdirectory.
type signalRecord struct {
	Timestamp   string `yaml:"timestamp"`
	AgentID     string `yaml:"agent_id"`
	Role        string `yaml:"role"`
	Signal      string `yaml:"signal"` // "started", "blocked", "approved", "complete", ...
	Message     string `yaml:"message"`
	Quality     string `yaml:"quality,omitempty"`
	Learning    string `yaml:"learning,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Parser discovers and parses multi-agent dialect task directories.
type Parser struct {
	logger zerolog.Logger
}

// New creates a multi-agent Parser.
func New(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger.With().Str("component", "parsers.multiagent").Logger()}
}

// Discover finds task-execution directories matching the mission-cycle-task
// naming convention directly under root.
func (p *Parser) Discover(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("multiagent: discover %s: %w", root, err)
	}
	var locations []string
	for _, e := range entries {
		if e.IsDir() && taskDirPattern.MatchString(e.Name()) {
			locations = append(locations, filepath.Join(root, e.Name()))
		}
	}
	return locations, nil
}

// Parse reads one task-execution directory's signals and events.log into a
// Session, preserving task description, cycle, and quality verbatim in
// SourceMetadata.
func (p *Parser) Parse(location string) (model.Session, error) {
	base := filepath.Base(location)
	matches := taskDirPattern.FindStringSubmatch(base)
	var missionID, cycle, taskName string
	if matches != nil {
		missionID, cycle, taskName = matches[1], matches[2], matches[3]
	} else {
		taskName = base
	}

	sess := model.Session{
		ContentItem: model.ContentItem{
			Source:      model.SourceVermasSession,
			ContentType: model.ContentTypeSession,
			Title:       taskName,
			IngestedAt:  time.Now().UTC(),
		},
		ToolUsage: make(map[string]int),
		SourceMetadata: map[string]any{
			"mission_id": missionID,
			"cycle":      cycle,
			"task_name":  taskName,
		},
	}

	signalsDir := filepath.Join(location, "signals")
	files, err := signalFilesSorted(signalsDir)
	if err != nil {
		p.logger.Warn().Str("dir", signalsDir).Err(err).Msg("no readable signals directory")
		files = nil
	}

	var firstTS, lastTS time.Time
	var outcome string

	for _, f := range files {
		//nolint:gosec // G304: f comes from signalFilesSorted's own directory listing
		data, err := os.ReadFile(f)
		if err != nil {
			p.logger.Warn().Str("file", f).Err(err).Msg("skipping unreadable signal file")
			continue
		}
		var rec signalRecord
		if err := yaml.Unmarshal(data, &rec); err != nil {
			p.logger.Warn().Str("file", f).Err(err).Msg("skipping malformed signal file")
			continue
		}

		ts, tsErr := time.Parse(time.RFC3339, rec.Timestamp)
		if tsErr == nil {
			if firstTS.IsZero() || ts.Before(firstTS) {
				firstTS = ts
			}
			if lastTS.IsZero() || ts.After(lastTS) {
				lastTS = ts
			}
		}

		sess.AgentSignals = append(sess.AgentSignals, model.AgentSignal{
			Timestamp: ts,
			AgentID:   rec.AgentID,
			Role:      rec.Role,
			Signal:    rec.Signal,
			Message:   rec.Message,
		})

		if rec.Description != "" {
			sess.SourceMetadata["task_description"] = rec.Description
		}
		if rec.Quality != "" {
			sess.SourceMetadata["quality"] = rec.Quality
		}
		if rec.Learning != "" {
			sess.Learnings = append(sess.Learnings, rec.Learning)
		}
		if isOutcomeSignal(rec.Signal) {
			outcome = rec.Signal
		}
	}

	if eventsBody, err := readEventsLog(filepath.Join(location, "events.log")); err == nil {
		sess.Body = eventsBody
	}

	sess.StartedAt = firstTS
	sess.EndedAt = lastTS
	if outcome != "" {
		sess.SourceMetadata["outcome"] = outcome
	}
	return sess, nil
}

func isOutcomeSignal(signal string) bool {
	switch strings.ToLower(signal) {
	case "complete", "approved", "blocked", "done":
		return true
	default:
		return false
	}
}

func signalFilesSorted(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && (strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml")) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func readEventsLog(path string) (string, error) {
	//nolint:gosec // G304: path is a fixed filename under a Discover-derived directory
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteString("\n")
	}
	return sb.String(), scanner.Err()
}
