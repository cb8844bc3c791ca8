package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jusunglee/mjpin/internal/llm"
)

// MaxReplyLength is Discord's message length limit.
const MaxReplyLength = 2000

var ErrEmptyInput = errors.New("prompt input is empty")

type Generator struct {
	library *Library
	client  llm.Client
}

func NewGenerator(library *Library, client llm.Client) *Generator {
	return &Generator{library: library, client: client}
}

// Generate asks the LLM for a prompt built from input. model overrides the
// provider default when non-empty. The reply is truncated to fit one
// Discord message.
func (g *Generator) Generate(ctx context.Context, model, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmptyInput
	}

	out, err := g.client.Complete(llm.WithModel(ctx, model), g.library.SystemPrompt(), input)
	if err != nil {
		return "", fmt.Errorf("generating prompt: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", errors.New("generating prompt: empty reply")
	}
	return Truncate(out, MaxReplyLength), nil
}

// Truncate shortens s to at most limit runes, ending in "..." when cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
