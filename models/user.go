package models

import "time"

// User is keyed by lowercase wallet address; created lazily on first contact.
type User struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	WalletAddress string `gorm:"type:varchar(64);uniqueIndex;not null" json:"wallet_address"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	AvatarURL     string `gorm:"type:text" json:"avatar_url,omitempty"`

	Timestamps
}

// UserStats denormalizes ledger aggregates for leaderboard queries.
// XPAchievedAt moves only when TotalXP changes, so ties on total XP rank the
// user who reached that total first.
// Table name: user_stats
type UserStats struct {
	UserID          string    `gorm:"primaryKey;type:uuid" json:"user_id"`
	WalletAddress   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"wallet_address"`
	TotalXP         int64     `gorm:"not null;default:0;index" json:"total_xp"`
	CompletedQuests int64     `gorm:"not null;default:0" json:"completed_quests"`
	Level           int       `gorm:"not null;default:1" json:"level"`
	XPAchievedAt    time.Time `gorm:"not null" json:"xp_achieved_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName implements the GORM tabler interface.
func (UserStats) TableName() string { return "user_stats" }
