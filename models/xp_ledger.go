package models

import "time"

// XPLedgerEntry is an append-only reward record per (user, quest). The unique
// index backstops the orchestrator's submission-state check so a reconciliation
// backfill can never double-insert.
// Table name: user_xp_ledger
type XPLedgerEntry struct {
	ID               string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID           string    `gorm:"type:uuid;not null;index" json:"user_id"`
	WalletAddress    string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_wallet_quest,priority:1" json:"wallet_address"`
	QuestIDOnChain   uint64    `gorm:"not null;uniqueIndex:ux_wallet_quest,priority:2" json:"quest_id_on_chain"`
	XPAmount         int64     `gorm:"not null" json:"xp_amount"`
	RewardAmount     string    `gorm:"type:varchar(80)" json:"reward_amount,omitempty"`
	BadgeTokenID     *int64    `json:"badge_token_id,omitempty"` // nil until the badge NFT is minted
	CompletionTxHash string    `gorm:"type:varchar(128);index" json:"completion_tx_hash,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName implements the GORM tabler interface.
func (XPLedgerEntry) TableName() string { return "user_xp_ledger" }
