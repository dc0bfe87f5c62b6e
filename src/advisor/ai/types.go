package ai

import "context"

// Message represents a single chat turn.
type Message struct {
	Role    string
	Content string
}

// Options controls model behavior; zero fields fall back to client defaults.
type Options struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Client is a provider-agnostic interface for the reasoning capability:
// prompt in, text out. The caller owns parsing of any structured output.
type Client interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
