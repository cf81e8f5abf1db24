package models

import "time"

// VerificationStatus of a proof submission. Transitions are pending→verified or
// pending→failed only; a failed hash is never corrected in place.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// Submission records a (quest, transaction hash) proof attempt. The composite
// unique index is the replay guard and the only concurrency primitive for the
// completion path — a losing concurrent insert sees the conflict and must treat
// the pair as already submitted.
// Table name: quest_submissions
type Submission struct {
	ID                 string             `gorm:"primaryKey;type:uuid" json:"id"`
	QuestIDOnChain     uint64             `gorm:"not null;uniqueIndex:ux_quest_tx,priority:1" json:"quest_id_on_chain"`
	ParticipantAddress string             `gorm:"type:varchar(64);not null;index" json:"participant_address"`
	TransactionHash    string             `gorm:"type:varchar(128);not null;uniqueIndex:ux_quest_tx,priority:2" json:"transaction_hash"` // stored lowercase
	VerifierPayload    string             `gorm:"type:jsonb" json:"verifier_payload,omitempty"`                                          // opaque snapshot of the indexer response
	VerificationStatus VerificationStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"verification_status"`
	EvidenceURI        string             `gorm:"type:text" json:"evidence_uri,omitempty"`
	CompletionTxHash   string             `gorm:"type:varchar(128);index" json:"completion_tx_hash,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName implements the GORM tabler interface.
func (Submission) TableName() string { return "quest_submissions" }
