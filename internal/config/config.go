// Package config implements the layered configuration described in
// spec.md §6/§9: defaults < file < environment < request, using
// gopkg.in/yaml.v3 for the file layer and dario.cat/mergo for the merge,
// following the teacher's LoadServerConfig pattern. Unknown keys in the
// file layer are rejected rather than silently ignored.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ProjectDescriptor describes one project whose description is injected
// into every LLM prompt in which the project appears (spec.md §6).
type ProjectDescriptor struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	URL         string   `yaml:"url,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

// SessionsConfig controls source discovery for C1 parsers.
type SessionsConfig struct {
	Sources       []string `yaml:"sources,omitempty"`        // subset of {chat-log, rollout, multi-agent}
	IncludeGlobal bool     `yaml:"include_global,omitempty"`
	SinceDays     int      `yaml:"since_days,omitempty"`
}

// JournalConfig controls the Journal Synthesizer (C5).
type JournalConfig struct {
	Style             string `yaml:"style,omitempty"`
	TargetWordCount   int    `yaml:"target_word_count,omitempty"`
	MemoryWindowDays  int    `yaml:"memory_window_days,omitempty"`
	Model             string `yaml:"model,omitempty"`
}

// BlogConfig controls the Blog Context Builder / Synthesizer (C6/C7).
type BlogConfig struct {
	TargetWordCount      int      `yaml:"target_word_count,omitempty"`
	IncludeDiagrams      bool     `yaml:"include_diagrams,omitempty"`
	Platforms            []string `yaml:"platforms,omitempty"`
	Model                string   `yaml:"model,omitempty"`
	MinJournalsForWeekly int      `yaml:"min_journals_for_weekly,omitempty"`
	ThematicThreshold    int      `yaml:"thematic_threshold,omitempty"` // K in spec.md §4.6
	AvoidListSize        int      `yaml:"avoid_list_size,omitempty"`    // M in spec.md §4.7
	OverlapThreshold     float64  `yaml:"overlap_threshold,omitempty"`  // T in spec.md §4.7
}

// IntakeConfig controls external content ingestion (RSS/browser/substack).
type IntakeConfig struct {
	UseDefaults     bool     `yaml:"use_defaults,omitempty"`
	BrowserHistory  bool     `yaml:"browser_history,omitempty"`
	RSSFeeds        []string `yaml:"rss_feeds,omitempty"`
	SubstackBlogs   []string `yaml:"substack_blogs,omitempty"`
	TargetWordCount int      `yaml:"target_word_count,omitempty"`
	Model           string   `yaml:"model,omitempty"`
	Publishers      []string `yaml:"publishers,omitempty"`
	MaxAgeDays      int      `yaml:"max_age_days,omitempty"`
}

// PublisherCredentials is a generic URL+credential block shared by
// CMS-like and scheduler-like publisher configs (spec.md §6).
type PublisherCredentials struct {
	URL          string `yaml:"url,omitempty"`
	APIKey       string `yaml:"api_key,omitempty"`
	Enabled      bool   `yaml:"enabled,omitempty"`
}

// SchedulerConfig configures the external social-scheduling publisher
// dialect (spec.md §4.9's "scheduler dialect").
type SchedulerConfig struct {
	PublisherCredentials `yaml:",inline"`
	DefaultType          string `yaml:"default_type,omitempty"`
	ScheduleEnabled      bool   `yaml:"schedule_enabled,omitempty"`
	Timezone             string `yaml:"timezone,omitempty"`
}

// RetryConfig configures the retry band (spec.md §7 band 2).
type RetryConfig struct {
	MaxAttempts       int     `yaml:"max_attempts,omitempty"`
	InitialBackoffSec float64 `yaml:"initial_backoff_seconds,omitempty"`
	Multiplier        float64 `yaml:"multiplier,omitempty"`
	LLMTimeoutSeconds int     `yaml:"llm_timeout_seconds,omitempty"`
	PublisherTimeoutSeconds int `yaml:"publisher_timeout_seconds,omitempty"`
}

// ConcurrencyConfig configures the worker pools (spec.md §5).
type ConcurrencyConfig struct {
	ParserWorkers int `yaml:"parser_workers,omitempty"`
	LLMWorkers    int `yaml:"llm_workers,omitempty"`
}

// LLMConfig selects and configures the LLM Worker backend (spec.md §5's
// "LLM worker" external interface). Backend is one of "subprocess",
// "anthropic", "openai", "ollama".
type LLMConfig struct {
	Backend        string `yaml:"backend,omitempty"`
	Model          string `yaml:"model,omitempty"`
	SubprocessCmd  string `yaml:"subprocess_cmd,omitempty"`
	AnthropicKey   string `yaml:"anthropic_api_key,omitempty"`
	OpenAIKey      string `yaml:"openai_api_key,omitempty"`
	OllamaHost     string `yaml:"ollama_host,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// Config is the top-level layered configuration (spec.md §6).
type Config struct {
	Output struct {
		Directory string `yaml:"directory,omitempty"`
	} `yaml:"output,omitempty"`

	Sessions SessionsConfig `yaml:"sessions,omitempty"`
	Journal  JournalConfig  `yaml:"journal,omitempty"`
	Blog     BlogConfig     `yaml:"blog,omitempty"`
	Intake   IntakeConfig   `yaml:"intake,omitempty"`

	Projects []ProjectDescriptor `yaml:"projects,omitempty"`

	Publishers struct {
		CMS       PublisherCredentials `yaml:"cms,omitempty"`
		Scheduler SchedulerConfig      `yaml:"scheduler,omitempty"`
	} `yaml:"publishers,omitempty"`

	LLM         LLMConfig         `yaml:"llm,omitempty"`
	Retry       RetryConfig       `yaml:"retry,omitempty"`
	Concurrency ConcurrencyConfig `yaml:"concurrency,omitempty"`

	Timezone string `yaml:"timezone,omitempty"`
}

// DefaultConfigFilename is the file the layered loader looks for beside
// STAFF_CONFIG_PATH's distill analogue.
const DefaultConfigFilename = ".distill.yaml"

// GetConfigPath returns the configured file layer's path. Overridable via
// DISTILL_CONFIG_PATH, mirroring the teacher's STAFF_CONFIG_PATH convention.
func GetConfigPath() string {
	if envPath := os.Getenv("DISTILL_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./" + DefaultConfigFilename
	}
	return filepath.Join(homeDir, DefaultConfigFilename)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

func defaults() Config {
	var c Config
	c.Output.Directory = "./insights"
	c.Sessions = SessionsConfig{
		Sources:       []string{"chat-log", "rollout", "multi-agent"},
		IncludeGlobal: false,
		SinceDays:     2,
	}
	c.Journal = JournalConfig{
		Style:            "dev-journal",
		TargetWordCount:  600,
		MemoryWindowDays: 7,
	}
	c.Blog = BlogConfig{
		TargetWordCount:      1200,
		IncludeDiagrams:      true,
		Platforms:            []string{"vault"},
		MinJournalsForWeekly: 3,
		ThematicThreshold:    3,
		AvoidListSize:        10,
		OverlapThreshold:     0.40,
	}
	c.Intake = IntakeConfig{
		UseDefaults:     true,
		TargetWordCount: 800,
		Publishers:      []string{"vault"},
		MaxAgeDays:      2,
	}
	c.Publishers.Scheduler.DefaultType = "draft"
	c.Publishers.Scheduler.Timezone = "America/New_York"
	c.LLM = LLMConfig{
		Backend:        "subprocess",
		SubprocessCmd:  "claude",
		TimeoutSeconds: 120,
	}
	c.Retry = RetryConfig{
		MaxAttempts:             3,
		InitialBackoffSec:       2,
		Multiplier:              2,
		LLMTimeoutSeconds:       120,
		PublisherTimeoutSeconds: 30,
	}
	c.Concurrency = ConcurrencyConfig{
		ParserWorkers: 8,
		LLMWorkers:    2,
	}
	c.Timezone = "UTC"
	return c
}

// Load builds the layered configuration: defaults < file at path (if it
// exists) < environment overrides. request-layer overrides are the
// caller's responsibility (applied with ApplyRequest, since "request" has no
// single shape here).
func Load(path string) (*Config, error) {
	cfg := defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		data, err := os.ReadFile(expandedPath) //#nosec G304 -- caller-controlled config path
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", expandedPath, err)
		}

		var fileCfg Config
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&fileCfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", expandedPath, err)
		}

		if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge config file %q: %w", expandedPath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	return &cfg, nil
}

// ApplyRequest merges request-scoped overrides (e.g. CLI flags surfaced as
// a Config fragment) on top of cfg, per the defaults < file < environment <
// request ordering in spec.md §9.
func ApplyRequest(cfg *Config, request Config) error {
	if err := mergo.Merge(cfg, request, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge request overrides: %w", err)
	}
	return nil
}

// envPrefix is prepended to the dotted, upper-snake path of each yaml tag
// to form the environment variable name, e.g. DISTILL_JOURNAL_TARGET_WORD_COUNT.
const envPrefix = "DISTILL_"

// applyEnvOverrides walks cfg's struct tags and, for every leaf field with
// a matching DISTILL_<PATH> environment variable set, overrides the field.
// Generalizes the teacher's single-purpose LOG_LEVEL/STAFF_CONFIG_PATH env
// vars into a walker that covers every config field.
func applyEnvOverrides(cfg *Config) error {
	return walkEnvOverride(reflect.ValueOf(cfg).Elem(), envPrefix)
}

func walkEnvOverride(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("yaml")
		name := strings.Split(tag, ",")[0]
		if name == "" || name == "-" {
			name = field.Name
		}
		if name == "" {
			continue
		}
		envKey := prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		fv := v.Field(i)

		switch fv.Kind() {
		case reflect.Struct:
			if err := walkEnvOverride(fv, envKey+"_"); err != nil {
				return err
			}
			continue
		}

		raw, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}
		if err := setFromEnv(fv, raw); err != nil {
			return fmt.Errorf("env %s: %w", envKey, err)
		}
	}
	return nil
}

func setFromEnv(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Slice:
		if fv.Type().Elem().Kind() == reflect.String {
			fv.Set(reflect.ValueOf(strings.Split(raw, ",")))
		}
	}
	return nil
}

// Save persists cfg as YAML to path, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)
	if err := os.MkdirAll(filepath.Dir(expandedPath), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
