// Package anthropic generates prompts with Claude.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jusunglee/mjpin/internal/llm"
)

type Model = anthropic.Model

const (
	ModelClaudeSonnet4_5 Model = anthropic.ModelClaudeSonnet4_5_20250929
	ModelClaudeHaiku4_5  Model = anthropic.ModelClaudeHaiku4_5_20251001
	ModelClaudeOpus4_5   Model = anthropic.ModelClaudeOpus4_5_20251101
)

// DefaultModel is fast and cheap; prompts are a couple of sentences.
var DefaultModel Model = ModelClaudeHaiku4_5

var errNoText = errors.New("anthropic reply has no text")

type Client struct {
	client anthropic.Client
	model  Model
}

// NewClient builds a client for model. opts are passed to the SDK after the
// API key, so tests can point it at a local server.
func NewClient(apiKey string, model Model, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (c *Client) params(ctx context.Context, system, prompt string) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:       Model(llm.ModelFromContext(ctx, string(c.model))),
		MaxTokens:   llm.DefaultMaxTokens,
		Temperature: anthropic.Float(llm.DefaultTemperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
}

func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, c.params(ctx, system, prompt))
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	return replyText(msg)
}

// replyText joins the text blocks of msg, dropping any code fence around it.
func replyText(msg *anthropic.Message) (string, error) {
	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok && strings.TrimSpace(tb.Text) != "" {
			parts = append(parts, tb.Text)
		}
	}
	if len(parts) == 0 {
		return "", errNoText
	}
	return llm.StripMarkdownCodeBlocks(strings.Join(parts, "\n")), nil
}
