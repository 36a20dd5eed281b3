package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// CompletionRequest is a single-turn prompt.
type CompletionRequest struct {
	// System is the role's system prompt. Optional.
	System string
	// Prompt is sent as the only user message.
	Prompt string
	// Model overrides the client's default model.
	Model anthropic.Model
	// MaxTokens caps the response. Zero means DefaultMaxTokens.
	MaxTokens int64
}

// Completion is the text answer of a CompletionRequest.
type Completion struct {
	Text         string
	StopReason   string
	InputTokens  int64
	OutputTokens int64
}

// Complete sends one user message and concatenates the text blocks of the
// response. Token usage is added to the client's totals.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	model := c.model
	if req.Model != "" {
		model = c.resolveModel(req.Model)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	c.record(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var parts []string
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, text.Text)
		}
	}

	return &Completion{
		Text:         strings.Join(parts, "\n"),
		StopReason:   string(resp.StopReason),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
