package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/jusunglee/mjpin/internal/llm"
	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4o-mini"

type Client struct {
	client *openai.Client
	model  string
}

func NewClient(apiKey, model string) *Client {
	return NewClientWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewClientWithConfig allows pointing the client at a different base URL.
func NewClientWithConfig(config openai.ClientConfig, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// reasoningModel reports whether model rejects max_tokens and a custom
// temperature.
func reasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	model := llm.ModelFromContext(ctx, c.model)
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if reasoningModel(model) {
		req.MaxCompletionTokens = llm.DefaultMaxTokens
	} else {
		req.MaxTokens = llm.DefaultMaxTokens
		req.Temperature = llm.DefaultTemperature
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai API call failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from openai")
	}

	return llm.StripMarkdownCodeBlocks(resp.Choices[0].Message.Content), nil
}

// ListModels returns the IDs of every model the key can see.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing openai models: %w", err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
