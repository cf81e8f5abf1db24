package services

import (
	"fmt"
	"strings"

	"defi-quest-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmissionLedger is the durable replay guard for (quest, transaction hash)
// pairs. Hash comparisons are case-insensitive: hashes are normalized to
// lowercase before every read and write.
type SubmissionLedger struct {
	DB *gorm.DB
}

func NewSubmissionLedger(db *gorm.DB) *SubmissionLedger {
	return &SubmissionLedger{DB: db}
}

// HasSubmission reports whether the (questId, txHash) pair was already
// recorded, regardless of its verification outcome.
func (l *SubmissionLedger) HasSubmission(questID uint64, txHash string) (bool, error) {
	var count int64
	err := l.DB.Model(&models.Submission{}).
		Where("quest_id_on_chain = ? AND transaction_hash = ?", questID, strings.ToLower(txHash)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check submission: %w", err)
	}
	return count > 0, nil
}

// Record inserts a submission row. Concurrent inserts of the same pair are
// resolved by the storage-layer unique constraint: the losing insert affects
// zero rows and gets the existing row back with created=false. This is the
// atomic insert-or-detect-conflict the completion path relies on; there is no
// application-level check-then-insert here.
func (l *SubmissionLedger) Record(questID uint64, participant, txHash, payload string, status models.VerificationStatus) (*models.Submission, bool, error) {
	if payload == "" {
		payload = "null"
	}
	sub := models.Submission{
		ID:                 uuid.NewString(),
		QuestIDOnChain:     questID,
		ParticipantAddress: strings.ToLower(participant),
		TransactionHash:    strings.ToLower(txHash),
		VerifierPayload:    payload,
		VerificationStatus: status,
	}

	res := l.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "quest_id_on_chain"}, {Name: "transaction_hash"}},
		DoNothing: true,
	}).Create(&sub)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to record submission: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var existing models.Submission
		err := l.DB.Where("quest_id_on_chain = ? AND transaction_hash = ?", questID, sub.TransactionHash).
			First(&existing).Error
		if err != nil {
			return nil, false, fmt.Errorf("failed to load conflicting submission: %w", err)
		}
		return &existing, false, nil
	}
	return &sub, true, nil
}

// MarkCompleted stamps the completion transaction hash onto a pending or
// verified submission. Failed rows are immutable: a failed hash must be
// resubmitted under a new hash, never repaired in place.
func (l *SubmissionLedger) MarkCompleted(questID uint64, txHash, completionTxHash string) error {
	res := l.DB.Model(&models.Submission{}).
		Where("quest_id_on_chain = ? AND transaction_hash = ? AND verification_status IN ?",
			questID, strings.ToLower(txHash), []string{string(models.VerificationPending), string(models.VerificationVerified)}).
		Updates(map[string]interface{}{
			"verification_status": models.VerificationVerified,
			"completion_tx_hash":  completionTxHash,
			"evidence_uri":        EvidenceURI(questID, txHash),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark submission completed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// NeedingReconciliation returns verified rows whose bookkeeping is incomplete:
// no completion hash yet, or no matching reward ledger entry. Oldest first.
func (l *SubmissionLedger) NeedingReconciliation(limit int) ([]models.Submission, error) {
	var subs []models.Submission
	err := l.DB.Where("verification_status = ?", models.VerificationVerified).
		Where(`completion_tx_hash = '' OR NOT EXISTS (
			SELECT 1 FROM user_xp_ledger e
			WHERE e.wallet_address = quest_submissions.participant_address
			  AND e.quest_id_on_chain = quest_submissions.quest_id_on_chain)`).
		Order("created_at asc").
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions needing reconciliation: %w", err)
	}
	return subs, nil
}

// CompletedByParticipant returns verified submissions carrying a completion
// hash for the given wallet.
func (l *SubmissionLedger) CompletedByParticipant(participant string) ([]models.Submission, error) {
	var subs []models.Submission
	err := l.DB.Where("participant_address = ? AND verification_status = ? AND completion_tx_hash <> ''",
		strings.ToLower(participant), models.VerificationVerified).
		Order("created_at desc").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list completed submissions: %w", err)
	}
	return subs, nil
}
