package models

import (
	"time"

	"gorm.io/gorm"
)

// QuestType distinguishes scheduled quests from ad hoc ones
type QuestType string

const (
	QuestTypeDaily  QuestType = "daily"
	QuestTypeWeekly QuestType = "weekly"
	QuestTypeCustom QuestType = "custom"
)

// QuestStatus mirrors the on-chain status enum
type QuestStatus string

const (
	QuestStatusInactive  QuestStatus = "inactive"
	QuestStatusActive    QuestStatus = "active"
	QuestStatusCompleted QuestStatus = "completed"
	QuestStatusCancelled QuestStatus = "cancelled"
)

// Quest mirrors an on-chain quest for listing/search. The chain is the single
// source of truth — this row is a cache and must never drive authorization.
// Table name: quests
type Quest struct {
	ID                   string      `gorm:"primaryKey;type:uuid" json:"id"`
	QuestIDOnChain       uint64      `gorm:"uniqueIndex;not null" json:"quest_id_on_chain"`
	AgentController      string      `gorm:"type:varchar(64)" json:"agent_controller,omitempty"`
	Title                string      `gorm:"not null" json:"title"`
	Description          string      `gorm:"type:text" json:"description,omitempty"`
	ProjectName          string      `json:"project_name,omitempty"`
	Category             string      `gorm:"type:varchar(16);index" json:"category"` // swap, liquidity, stake, lend
	ProtocolAddress      string      `gorm:"type:varchar(64);index" json:"protocol_address"`
	MetadataURI          string      `gorm:"type:text" json:"metadata_uri,omitempty"`
	ParametersHash       string      `gorm:"type:varchar(80)" json:"parameters_hash,omitempty"`
	RewardPerParticipant string      `gorm:"type:varchar(80)" json:"reward_per_participant,omitempty"`
	BadgeLevel           int         `json:"badge_level"`
	AssignedParticipant  string      `gorm:"type:varchar(64);index" json:"assigned_participant"`
	ExpiryTimestamp      int64       `json:"expiry_timestamp"` // unix seconds, 0 = no expiry
	Status               QuestStatus `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	QuestType            QuestType   `gorm:"type:varchar(16);not null;default:'custom';index" json:"quest_type"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
