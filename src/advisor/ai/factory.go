package ai

// FactoryConfig holds what is needed to construct a client without leaking
// provider details.
type FactoryConfig struct {
	Provider string // "openai" or "claude"
	APIKey   string
	Endpoint string // override for tests / gateways; empty uses the provider default
	// Defaults
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// NewClient returns a provider-agnostic reasoning client.
func NewClient(cfg FactoryConfig) Client {
	switch cfg.Provider {
	case "openai":
		return newOpenAIClient(cfg)
	default:
		return newClaudeClient(cfg)
	}
}
