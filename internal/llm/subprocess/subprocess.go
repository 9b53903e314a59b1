// Package subprocess backs the LLM Worker contract with an external CLI
// process, grounded on original_source/src/journal/synthesizer.py's
// subprocess.run(["claude", "-p", ...]) invocation: the prompt goes to
// stdin, markdown comes back on stdout, non-zero exit or empty output is a
// retryable failure.
package subprocess

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/aschepis/distill/internal/distillerr"
)

// Worker invokes a configured command-line binary once per prompt.
type Worker struct {
	Command string
	Args    []string
	timeout time.Duration
}

// New creates a subprocess-backed Worker. cmd is the binary (e.g. "claude");
// extraArgs are appended before the prompt is piped on stdin (e.g.
// []string{"-p", "--model", "sonnet"}).
func New(cmd string, extraArgs []string, timeout time.Duration) *Worker {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Worker{Command: cmd, Args: extraArgs, timeout: timeout}
}

// RenderPrompt concatenates system and user content with a blank-line
// separator; the subprocess has no separate system-prompt channel.
func (w *Worker) RenderPrompt(system, user string) string {
	if system == "" {
		return user
	}
	return system + "\n\n" + user
}

// Timeout returns the configured per-invocation timeout.
func (w *Worker) Timeout() time.Duration { return w.timeout }

// Invoke runs the configured command with prompt on stdin and returns its
// trimmed stdout. A non-zero exit code, a context deadline, or a missing
// binary are all reported as retryable errors per spec.md §6.
func (w *Worker) Invoke(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, w.Command, w.Args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case ctx.Err() != nil:
		return "", distillerr.NewRetryable("subprocess.Invoke", distillerr.ErrLLMTimeout, 0)
	case err != nil:
		return "", distillerr.NewRetryable("subprocess.Invoke", fmt.Errorf("%w: %s: %s", distillerr.ErrLLMUnavailable, err, strings.TrimSpace(stderr.String())), 0)
	}

	return strings.TrimSpace(stdout.String()), nil
}
