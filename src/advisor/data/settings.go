package data

import (
	"sync"

	"gorm.io/gorm"

	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

var (
	settingsMu    sync.RWMutex
	settingsCache map[string]string
)

// LoadSettings pulls the settings table into the in-memory cache. Values here
// override environment defaults for runtime-tunable config (AI model and
// sampling, retrieval endpoint, history bound) without a redeploy.
func LoadSettings(db *gorm.DB) error {
	var rows []types.Setting
	if err := db.Find(&rows).Error; err != nil {
		return err
	}
	ReplaceSettings(rows)
	return nil
}

// ReplaceSettings swaps the cache wholesale with the given rows.
func ReplaceSettings(rows []types.Setting) {
	next := make(map[string]string, len(rows))
	for _, s := range rows {
		next[s.Name] = s.Value
	}
	settingsMu.Lock()
	settingsCache = next
	settingsMu.Unlock()
}

// GetSetting returns the cached value for name, "" when absent.
func GetSetting(name string) string {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settingsCache[name]
}
