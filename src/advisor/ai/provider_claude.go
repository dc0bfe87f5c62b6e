package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultClaudeEndpoint = "https://api.anthropic.com/v1/messages"

type claudeClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	defaults   Options
}

func newClaudeClient(cfg FactoryConfig) *claudeClient {
	return &claudeClient{
		apiKey:     cfg.APIKey,
		endpoint:   valueOrDefault(cfg.Endpoint, defaultClaudeEndpoint),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		defaults: Options{
			Model:        valueOrDefault(cfg.Model, "claude-3-haiku-20240307"),
			Temperature:  orFloat(cfg.Temperature, 0.2),
			MaxTokens:    orInt(cfg.MaxTokens, 1000),
			SystemPrompt: cfg.SystemPrompt,
		},
	}
}

func (c *claudeClient) merge(opts Options) Options {
	return Options{
		Model:        valueOrDefault(opts.Model, c.defaults.Model),
		Temperature:  orFloat(opts.Temperature, c.defaults.Temperature),
		MaxTokens:    orInt(opts.MaxTokens, c.defaults.MaxTokens),
		SystemPrompt: valueOrDefault(opts.SystemPrompt, c.defaults.SystemPrompt),
	}
}

func (c *claudeClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	merged := c.merge(opts)
	msgs := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		msgs = append(msgs, map[string]string{"role": role, "content": m.Content})
	}
	reqBody := map[string]interface{}{
		"model":       merged.Model,
		"messages":    msgs,
		"system":      merged.SystemPrompt,
		"max_tokens":  merged.MaxTokens,
		"temperature": merged.Temperature,
	}
	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("claude API error (%d): %s", resp.StatusCode, string(body))
	}
	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("no response from Claude")
	}
	return result.Content[0].Text, nil
}
