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

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

type openAIClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	defaults   Options
}

func newOpenAIClient(cfg FactoryConfig) *openAIClient {
	return &openAIClient{
		apiKey:     cfg.APIKey,
		endpoint:   valueOrDefault(cfg.Endpoint, defaultOpenAIEndpoint),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		defaults: Options{
			Model:        valueOrDefault(cfg.Model, "gpt-4o-mini"),
			Temperature:  orFloat(cfg.Temperature, 0.2),
			MaxTokens:    orInt(cfg.MaxTokens, 1000),
			SystemPrompt: cfg.SystemPrompt,
		},
	}
}

func (c *openAIClient) merge(opts Options) Options {
	return Options{
		Model:        valueOrDefault(opts.Model, c.defaults.Model),
		Temperature:  orFloat(opts.Temperature, c.defaults.Temperature),
		MaxTokens:    orInt(opts.MaxTokens, c.defaults.MaxTokens),
		SystemPrompt: valueOrDefault(opts.SystemPrompt, c.defaults.SystemPrompt),
	}
}

func (c *openAIClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	merged := c.merge(opts)
	msgs := make([]map[string]string, 0, len(messages)+1)
	if merged.SystemPrompt != "" {
		msgs = append(msgs, map[string]string{"role": "system", "content": merged.SystemPrompt})
	}
	for _, m := range messages {
		role := m.Role
		if role != "assistant" && role != "system" {
			role = "user"
		}
		msgs = append(msgs, map[string]string{"role": role, "content": m.Content})
	}
	reqBody := map[string]interface{}{
		"model":       merged.Model,
		"messages":    msgs,
		"temperature": merged.Temperature,
		"max_tokens":  merged.MaxTokens,
	}
	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
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
		return "", fmt.Errorf("openAI API error (%d): %s", resp.StatusCode, string(body))
	}
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return result.Choices[0].Message.Content, nil
}
