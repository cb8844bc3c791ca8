package llm

import (
	"context"
	"strings"
	"time"

	"github.com/jusunglee/mjpin/internal/metrics"
)

// Generation limits shared by every provider. Prompts are short, so replies
// are kept short too.
const (
	DefaultMaxTokens   = 200
	DefaultTemperature = 0.8
)

type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type modelKey struct{}

// WithModel overrides the provider's configured model for calls made with
// the returned context. An empty model leaves the default in place.
func WithModel(ctx context.Context, model string) context.Context {
	if model == "" {
		return ctx
	}
	return context.WithValue(ctx, modelKey{}, model)
}

// ModelFromContext returns the override set by WithModel, or fallback.
func ModelFromContext(ctx context.Context, fallback string) string {
	if m, ok := ctx.Value(modelKey{}).(string); ok && m != "" {
		return m
	}
	return fallback
}

type instrumented struct {
	provider string
	next     Client
}

// Instrument records call latency for provider.
func Instrument(provider string, c Client) Client {
	return &instrumented{provider: provider, next: c}
}

func (i *instrumented) Complete(ctx context.Context, system, prompt string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.LLMCallDuration.WithLabelValues(i.provider).Observe(time.Since(start).Seconds())
	}()
	return i.next.Complete(ctx, system, prompt)
}

// StripMarkdownCodeBlocks removes ```...``` wrappers from LLM responses
func StripMarkdownCodeBlocks(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx != -1 {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx != -1 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
