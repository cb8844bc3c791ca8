// Package google generates prompts with Gemini and Gemma models.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jusunglee/mjpin/internal/llm"
	"google.golang.org/genai"
)

type Model string

const (
	ModelGemma3_27B     Model = "gemma-3-27b-it"
	ModelGemini2Flash   Model = "gemini-2.0-flash"
	ModelGemini2_5Flash Model = "gemini-2.5-flash"
	ModelGemini2_5Pro   Model = "gemini-2.5-pro"
)

var DefaultModel Model = ModelGemini2Flash

var errNoText = errors.New("google reply has no text")

type Client struct {
	client *genai.Client
	model  Model
}

func NewClient(ctx context.Context, apiKey string, model Model) (*Client, error) {
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

// request builds the model name, contents and config for one call. Gemma
// rejects system instructions, so its system prompt is folded into the user
// turn.
func request(model Model, system, prompt string) ([]*genai.Content, *genai.GenerateContentConfig) {
	temperature := float32(llm.DefaultTemperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: llm.DefaultMaxTokens,
	}

	text := prompt
	if strings.HasPrefix(string(model), "gemma-") {
		text = system + "\n\n" + prompt
	} else {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: text}}}}
	return contents, config
}

func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	model := Model(llm.ModelFromContext(ctx, string(c.model)))
	contents, config := request(model, system, prompt)

	result, err := c.client.Models.GenerateContent(ctx, string(model), contents, config)
	if err != nil {
		return "", fmt.Errorf("genai generate content: %w", err)
	}
	return replyText(result)
}

// replyText joins the text parts of the first candidate.
func replyText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", errNoText
	}
	var parts []string
	for _, p := range result.Candidates[0].Content.Parts {
		if p != nil && strings.TrimSpace(p.Text) != "" {
			parts = append(parts, p.Text)
		}
	}
	if len(parts) == 0 {
		return "", errNoText
	}
	return llm.StripMarkdownCodeBlocks(strings.Join(parts, "")), nil
}
