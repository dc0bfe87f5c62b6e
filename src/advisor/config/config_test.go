package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campus-stack/faculty-advisor/src/advisor/data"
	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

func TestSettingsOverrideEnvDefaults(t *testing.T) {
	data.ReplaceSettings([]types.Setting{
		{Name: "ai_model", Value: "claude-3-5-sonnet-20240620"},
		{Name: "ai_temperature", Value: "0.5"},
		{Name: "ai_max_tokens", Value: "2000"},
		{Name: "history_max", Value: "80"},
		{Name: "retrieval_url", Value: "http://retrieval.internal/search"},
	})
	t.Cleanup(func() { data.ReplaceSettings(nil) })

	cfg := Load()
	assert.Equal(t, "claude-3-5-sonnet-20240620", cfg.AIModel)
	assert.InDelta(t, 0.5, cfg.AITemp, 0.001)
	assert.Equal(t, 2000, cfg.AIMaxTokens)
	assert.Equal(t, 80, cfg.HistoryMax)
	assert.Equal(t, "http://retrieval.internal/search", cfg.RetrievalURL)
}

func TestEnvBeatsDefaultBelowSettings(t *testing.T) {
	data.ReplaceSettings(nil)
	t.Setenv("AI_MODEL", "env-model")
	t.Setenv("HISTORY_MAX", "25")

	cfg := Load()
	assert.Equal(t, "env-model", cfg.AIModel)
	assert.Equal(t, 25, cfg.HistoryMax)

	// A cached setting still wins over the env value.
	data.ReplaceSettings([]types.Setting{{Name: "ai_model", Value: "table-model"}})
	t.Cleanup(func() { data.ReplaceSettings(nil) })
	assert.Equal(t, "table-model", Load().AIModel)
}

func TestDefaultsWithoutSettingsOrEnv(t *testing.T) {
	data.ReplaceSettings(nil)
	cfg := Load()
	assert.Equal(t, "claude-3-haiku-20240307", cfg.AIModel)
	assert.Equal(t, 50, cfg.HistoryMax)
	assert.Empty(t, cfg.RetrievalURL)
}
