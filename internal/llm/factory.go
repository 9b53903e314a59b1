package llm

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/llm/anthropic"
	"github.com/aschepis/distill/internal/llm/ollama"
	"github.com/aschepis/distill/internal/llm/openai"
	"github.com/aschepis/distill/internal/llm/subprocess"
)

// BackendConfig is the subset of internal/config.LLMConfig the factory
// needs, kept separate to avoid an import cycle between llm and config.
type BackendConfig struct {
	Backend        string
	Model          string
	SubprocessCmd  string
	AnthropicKey   string
	OpenAIKey      string
	OllamaHost     string
	TimeoutSeconds int
}

// New resolves a Worker from cfg.Backend, mirroring the teacher's
// llm/registry.go provider-preference resolution but for a single
// configured backend rather than an ordered preference list.
func New(cfg BackendConfig, logger zerolog.Logger) (Worker, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Backend {
	case "", "subprocess":
		cmd := cfg.SubprocessCmd
		if cmd == "" {
			cmd = "claude"
		}
		args := []string{"-p"}
		if cfg.Model != "" {
			args = append(args, "--model", cfg.Model)
		}
		return subprocess.New(cmd, args, timeout), nil
	case "anthropic":
		return anthropic.New(cfg.AnthropicKey, cfg.Model, timeout, logger)
	case "openai":
		return openai.New(cfg.OpenAIKey, "", cfg.Model, timeout)
	case "ollama":
		return ollama.New(cfg.Model, timeout)
	default:
		return nil, fmt.Errorf("llm: unknown backend %q", cfg.Backend)
	}
}
