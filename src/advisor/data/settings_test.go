package data

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

func TestSettingsCache(t *testing.T) {
	ReplaceSettings([]types.Setting{
		{Name: "ai_model", Value: "claude-3-haiku-20240307"},
		{Name: "retrieval_url", Value: "http://retrieval:8000/search"},
	})
	t.Cleanup(func() { ReplaceSettings(nil) })

	assert.Equal(t, "claude-3-haiku-20240307", GetSetting("ai_model"))
	assert.Equal(t, "http://retrieval:8000/search", GetSetting("retrieval_url"))
	assert.Empty(t, GetSetting("missing"))

	// A reload replaces the cache wholesale; stale names disappear.
	ReplaceSettings([]types.Setting{{Name: "ai_model", Value: "gpt-4o-mini"}})
	assert.Equal(t, "gpt-4o-mini", GetSetting("ai_model"))
	assert.Empty(t, GetSetting("retrieval_url"))
}
