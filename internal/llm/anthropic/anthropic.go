// Package anthropic backs the LLM Worker contract with the Anthropic
// Messages API, grounded on the teacher's llm/anthropic client (single
// non-streaming call, prompt-cached system block, plain-text extraction
// from the response's content blocks).
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/distillerr"
)

// Worker invokes the Anthropic Messages API for each prompt.
type Worker struct {
	client    *sdk.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	logger    zerolog.Logger
}

// New creates an Anthropic-backed Worker.
func New(apiKey, model string, timeout time.Duration, logger zerolog.Logger) (*Worker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &Worker{
		client:    &client,
		model:     model,
		maxTokens: 4096,
		timeout:   timeout,
		logger:    logger.With().Str("component", "llm.anthropic").Logger(),
	}, nil
}

// RenderPrompt leaves system and user content separate; Invoke passes
// system as Anthropic's dedicated system block.
func (w *Worker) RenderPrompt(system, user string) string {
	if system == "" {
		return user
	}
	return system + "\x00" + user // split back out in Invoke
}

// Timeout returns the configured per-call timeout.
func (w *Worker) Timeout() time.Duration { return w.timeout }

// Invoke sends prompt as a single user message (with system prompt cached
// via CacheControl, mirroring the teacher's buildSystemBlocks) and returns
// the concatenated text of the response's content blocks.
func (w *Worker) Invoke(ctx context.Context, prompt string) (string, error) {
	system, user := splitPrompt(prompt)

	params := sdk.MessageNewParams{
		Model:     sdk.Model(w.model),
		MaxTokens: w.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{
			{Text: system, CacheControl: sdk.NewCacheControlEphemeralParam()},
		}
	}

	message, err := w.client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", distillerr.NewRetryable("anthropic.Invoke", distillerr.ErrLLMTimeout, 0)
		}
		return "", fmt.Errorf("%w: %s", distillerr.ErrLLMUnavailable, err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(sdk.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func splitPrompt(prompt string) (system, user string) {
	if idx := strings.IndexByte(prompt, 0); idx >= 0 {
		return prompt[:idx], prompt[idx+1:]
	}
	return "", prompt
}
