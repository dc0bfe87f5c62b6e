package data

import (
	"fmt"
	"unicode/utf8"

	"github.com/campus-stack/faculty-advisor/src/advisor/types"
	"gorm.io/gorm"
)

// MemoryStore persists long-term conversation summaries keyed by
// (user_id, conversation_id).
type MemoryStore struct {
	db *gorm.DB
}

func NewMemoryStore(db *gorm.DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// AppendSummary folds one exchange into the durable record, creating it on
// first use. The summary is a rolling tail, bounded so the row stays small.
func (m *MemoryStore) AppendSummary(userID, conversationID, agentType, line string) error {
	var rec types.MemoryRecord
	err := m.db.Where("user_id = ? AND conversation_id = ?", userID, conversationID).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		rec = types.MemoryRecord{
			UserID:         userID,
			ConversationID: conversationID,
			AgentType:      agentType,
			Summary:        line,
			Exchanges:      1,
		}
		return m.db.Create(&rec).Error
	}
	if err != nil {
		return fmt.Errorf("memory lookup: %w", err)
	}

	summary := tailTrim(rec.Summary+"\n"+line, maxSummary)
	return m.db.Model(&rec).Updates(map[string]any{
		"summary":    summary,
		"agent_type": agentType,
		"exchanges":  gorm.Expr("exchanges + 1"),
	}).Error
}

const maxSummary = 8192

// tailTrim keeps at most max trailing bytes, advancing to a rune boundary so
// the kept text never starts mid-rune.
func tailTrim(s string, max int) string {
	if len(s) <= max {
		return s
	}
	start := len(s) - max
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

// Summary returns the stored record, or nil if none exists yet.
func (m *MemoryStore) Summary(userID, conversationID string) (*types.MemoryRecord, error) {
	var rec types.MemoryRecord
	err := m.db.Where("user_id = ? AND conversation_id = ?", userID, conversationID).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
