// Package openai backs the LLM Worker contract with the OpenAI chat
// completions API via sashabaranov/go-openai, the provider the teacher's
// llm registry treats as a peer of Anthropic and Ollama.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/aschepis/distill/internal/distillerr"
)

// Worker invokes an OpenAI-compatible chat completion endpoint per prompt.
type Worker struct {
	client  *sdk.Client
	model   string
	timeout time.Duration
}

// New creates an OpenAI-backed Worker. baseURL may be empty to use the
// official API.
func New(apiKey, baseURL, model string, timeout time.Duration) (*Worker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if model == "" {
		model = sdk.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	cfg := sdk.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Worker{client: sdk.NewClientWithConfig(cfg), model: model, timeout: timeout}, nil
}

// RenderPrompt joins system and user with a marker Invoke splits back out
// into separate chat messages.
func (w *Worker) RenderPrompt(system, user string) string {
	if system == "" {
		return user
	}
	return system + "\x00" + user
}

// Timeout returns the configured per-call timeout.
func (w *Worker) Timeout() time.Duration { return w.timeout }

// Invoke sends prompt as a system+user chat completion request and returns
// the first choice's message content.
func (w *Worker) Invoke(ctx context.Context, prompt string) (string, error) {
	system, user := splitPrompt(prompt)

	messages := []sdk.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, sdk.ChatCompletionMessage{Role: sdk.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, sdk.ChatCompletionMessage{Role: sdk.ChatMessageRoleUser, Content: user})

	resp, err := w.client.CreateChatCompletion(ctx, sdk.ChatCompletionRequest{
		Model:    w.model,
		Messages: messages,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", distillerr.NewRetryable("openai.Invoke", distillerr.ErrLLMTimeout, 0)
		}
		return "", fmt.Errorf("%w: %s", distillerr.ErrLLMUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func splitPrompt(prompt string) (system, user string) {
	if idx := strings.IndexByte(prompt, 0); idx >= 0 {
		return prompt[:idx], prompt[idx+1:]
	}
	return "", prompt
}
