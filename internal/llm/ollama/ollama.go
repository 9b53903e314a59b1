// Package ollama backs the LLM Worker contract with a local Ollama
// instance, grounded on the teacher's memory/ollama.Summarizer (same
// api.GenerateRequest/GenerateResponse streaming-callback pattern, here
// collecting the full response instead of a summary).
package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/aschepis/distill/internal/distillerr"
)

// Worker invokes a local Ollama model per prompt.
type Worker struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// New creates an Ollama-backed Worker using ollama's host resolution
// (OLLAMA_HOST env var, defaulting to http://localhost:11434).
func New(model string, timeout time.Duration) (*Worker, error) {
	if model == "" {
		model = "llama3.2:3b"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("ollama: create client: %w", err)
	}
	return &Worker{client: client, model: model, timeout: timeout}, nil
}

// RenderPrompt joins system and user with a marker Invoke splits back into
// Ollama's separate System/Prompt fields.
func (w *Worker) RenderPrompt(system, user string) string {
	if system == "" {
		return user
	}
	return system + "\x00" + user
}

// Timeout returns the configured per-call timeout.
func (w *Worker) Timeout() time.Duration { return w.timeout }

// Invoke streams a non-streaming-mode generation and returns the
// accumulated response text.
func (w *Worker) Invoke(ctx context.Context, prompt string) (string, error) {
	system, user := splitPrompt(prompt)

	var sb strings.Builder
	stream := false
	req := &api.GenerateRequest{
		Model:  w.model,
		Prompt: user,
		System: system,
		Stream: &stream,
	}

	err := w.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", distillerr.NewRetryable("ollama.Invoke", distillerr.ErrLLMTimeout, 0)
		}
		return "", fmt.Errorf("%w: %s", distillerr.ErrLLMUnavailable, err)
	}
	return strings.TrimSpace(sb.String()), nil
}

func splitPrompt(prompt string) (system, user string) {
	if idx := strings.IndexByte(prompt, 0); idx >= 0 {
		return prompt[:idx], prompt[idx+1:]
	}
	return "", prompt
}
