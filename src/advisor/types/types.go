package types

import "time"

// Users known to the credential store.
type User struct {
	ID           uint64 `gorm:"primaryKey"`
	Email        string `gorm:"size:128;unique;not null"`
	PasswordHash string `gorm:"size:128;not null"`
	Role         string `gorm:"size:16;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null"`
	Value string `gorm:"size:256;not null"`
}

// MemoryRecord holds the durable conversation summary for one
// (user, conversation) pair. Written by the persist stage each time an
// exchange completes; survives session expiry for audit.
type MemoryRecord struct {
	ID             uint64 `gorm:"primaryKey"`
	UserID         string `gorm:"size:64;not null;uniqueIndex:idx_user_conv"`
	ConversationID string `gorm:"size:64;not null;uniqueIndex:idx_user_conv"`
	AgentType      string `gorm:"size:32"`
	Summary        string `gorm:"type:text"`
	Exchanges      uint32 `gorm:"default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
