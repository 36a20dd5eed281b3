package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/brigade/internal/api"
	"github.com/ShayCichocki/brigade/pkg/models"
)

// Completer is the part of api.Client the Claude executor needs.
type Completer interface {
	Complete(ctx context.Context, req api.CompletionRequest) (*api.Completion, error)
}

// Claude answers each instruction with one Claude completion under the
// role's system prompt.
type Claude struct {
	client    Completer
	system    string
	model     anthropic.Model
	maxTokens int64
}

// ClaudeOption configures a Claude executor.
type ClaudeOption func(*Claude)

// WithSystemPrompt sets the role's system prompt.
func WithSystemPrompt(p string) ClaudeOption {
	return func(c *Claude) { c.system = p }
}

// WithModel overrides the client's default model for this role.
func WithModel(m string) ClaudeOption {
	return func(c *Claude) { c.model = anthropic.Model(m) }
}

// WithMaxTokens caps each completion.
func WithMaxTokens(n int64) ClaudeOption {
	return func(c *Claude) { c.maxTokens = n }
}

// NewClaude creates a Claude executor.
func NewClaude(client Completer, opts ...ClaudeOption) *Claude {
	c := &Claude{client: client}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute sends the instruction and returns the response text.
func (c *Claude) Execute(ctx context.Context, req models.ExecRequest) (models.Outcome, error) {
	resp, err := c.client.Complete(ctx, api.CompletionRequest{
		System:    c.system,
		Prompt:    req.Instruction,
		Model:     c.model,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return models.Outcome{}, fmt.Errorf("claude %s: %w", req.Role, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return models.Outcome{}, fmt.Errorf("claude %s: empty response (stop reason %q)", req.Role, resp.StopReason)
	}
	return models.FinalOutcome(text), nil
}
