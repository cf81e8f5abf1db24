package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"defi-quest-system/models"

	"github.com/ethereum/go-ethereum/common"
)

// ChainGateway is the slice of the quest contract the completion pipeline
// drives. The concrete QuestGateway satisfies it; tests substitute fakes.
type ChainGateway interface {
	ReadQuest(ctx context.Context, questID uint64) (*OnChainQuest, error)
	ReadParticipantProgress(ctx context.Context, questID uint64, participant common.Address) (*ParticipantProgress, error)
	SubmitCompletion(ctx context.Context, questID uint64, participant common.Address, evidenceURI string) (string, error)
}

// TransactionVerifier confirms a submitted hash against the indexing service.
type TransactionVerifier interface {
	Verify(ctx context.Context, txHashOrID, expectedFrom, expectedTo string) (*VerificationResult, error)
}

// SubmissionStore is the replay guard consumed by the orchestrator.
type SubmissionStore interface {
	HasSubmission(questID uint64, txHash string) (bool, error)
	Record(questID uint64, participant, txHash, payload string, status models.VerificationStatus) (*models.Submission, bool, error)
	MarkCompleted(questID uint64, txHash, completionTxHash string) error
}

// RewardStore records XP grants.
type RewardStore interface {
	RecordReward(walletAddress string, questID uint64, xpAmount int64, rewardAmount string, badgeTokenID *int64, completionTxHash string) (*models.XPLedgerEntry, error)
}

// QuestReader serves the cached quest row used for XP computation.
type QuestReader interface {
	GetByOnChainID(ctx context.Context, questID uint64) (*models.Quest, error)
}

// CompletionResult is the success payload of a proof submission.
type CompletionResult struct {
	QuestID          uint64              `json:"questId"`
	Participant      string              `json:"participant"`
	CompletionTxHash string              `json:"transactionHash"`
	XPAwarded        int64               `json:"xpAwarded"`
	Verification     *VerificationResult `json:"verification"`
}

// CompletionService coordinates proof verification and reward issuance: chain
// reads for eligibility, the external verifier, the submission ledger replay
// guard, the oracle-signed completion call and the reward ledger write. Each
// invocation runs the steps strictly in order; concurrent invocations share no
// state beyond the storage-layer unique constraint.
type CompletionService struct {
	Gateway     ChainGateway
	Verifier    TransactionVerifier
	Submissions SubmissionStore
	Rewards     RewardStore
	Quests      QuestReader
	Now         func() time.Time
}

func NewCompletionService(gateway ChainGateway, verifier TransactionVerifier, submissions SubmissionStore, rewards RewardStore, quests QuestReader) *CompletionService {
	return &CompletionService{
		Gateway:     gateway,
		Verifier:    verifier,
		Submissions: submissions,
		Rewards:     rewards,
		Quests:      quests,
		Now:         time.Now,
	}
}

// SubmitProof runs the completion pipeline for one (quest, hash) submission.
//
// Everything before the verifier call is side-effect free. A verification
// verdict writes a permanent submission row (failed rows burn the hash). Once
// the on-chain completion succeeds the outcome is success no matter what —
// bookkeeping failures after that point are logged and left to the
// reconciliation sweep, because the chain effect is irreversible and a failure
// response would be a lie.
func (s *CompletionService) SubmitProof(ctx context.Context, questID uint64, providedTxHash, claimedParticipant string) (*CompletionResult, error) {
	if questID == 0 {
		return nil, newProofError(ErrInvalidInput, "invalid quest id")
	}
	txHash := strings.ToLower(strings.TrimSpace(providedTxHash))
	if txHash == "" {
		return nil, newProofError(ErrInvalidInput, "transactionHash is required")
	}
	if claimedParticipant != "" && !common.IsHexAddress(claimedParticipant) {
		return nil, newProofError(ErrInvalidInput, "participant must be a hex address")
	}

	quest, err := s.Gateway.ReadQuest(ctx, questID)
	if err != nil {
		return nil, err
	}

	if quest.Status != QuestStateActive {
		switch quest.Status {
		case QuestStateCompleted:
			return nil, newProofError(ErrInvalidQuestState, "quest is already completed; only active quests accept proof")
		case QuestStateCancelled:
			return nil, newProofError(ErrInvalidQuestState, "quest was cancelled; only active quests accept proof")
		default:
			return nil, newProofError(ErrInvalidQuestState, fmt.Sprintf("quest status is %s; only active quests accept proof", StatusSlug(quest.Status)))
		}
	}

	if quest.Expiry != 0 && int64(quest.Expiry) < s.Now().Unix() {
		return nil, newProofError(ErrQuestExpired, "quest has expired")
	}

	participant := quest.AssignedParticipant
	if claimedParticipant != "" {
		participant = common.HexToAddress(claimedParticipant)
	}
	// common.Address comparison is canonical, so case differences in the
	// supplied hex never cause a spurious mismatch.
	if participant != quest.AssignedParticipant {
		return nil, newProofError(ErrParticipantMismatch, "participant address does not match quest assignment")
	}

	progress, err := s.Gateway.ReadParticipantProgress(ctx, questID, participant)
	if err != nil {
		return nil, err
	}
	if !progress.Accepted {
		return nil, newProofError(ErrNotAccepted, "quest has not been accepted by this participant")
	}
	if progress.Completed {
		return nil, newProofError(ErrAlreadyCompleted, "quest already marked as completed")
	}

	// Replay guard before the external call: a known hash never reaches the
	// verifier again.
	seen, err := s.Submissions.HasSubmission(questID, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check prior submissions: %w", err)
	}
	if seen {
		return nil, newProofError(ErrDuplicateSubmission, "this transaction hash has already been submitted for this quest")
	}

	verification, err := s.Verifier.Verify(ctx, txHash, strings.ToLower(participant.Hex()), strings.ToLower(quest.Protocol.Hex()))
	if err != nil {
		return nil, wrapProofError(ErrVerifierUnavailable, "transaction verifier is unavailable", err)
	}

	payload := string(verification.RawPayload)
	if !verification.Valid {
		// The failed row permanently consumes this (quest, hash) pair.
		if _, _, recErr := s.Submissions.Record(questID, participant.Hex(), txHash, payload, models.VerificationFailed); recErr != nil {
			log.Printf("[ORCH] failed to record failed submission for quest %d: %v", questID, recErr)
		}
		return nil, &ProofError{Kind: ErrVerificationFailed, Message: "transaction verification failed", Detail: verification.Error}
	}

	_, created, err := s.Submissions.Record(questID, participant.Hex(), txHash, payload, models.VerificationVerified)
	if err != nil {
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}
	if !created {
		// Lost an insert race for the same pair; the winner proceeds.
		return nil, newProofError(ErrDuplicateSubmission, "this transaction hash has already been submitted for this quest")
	}

	evidenceURI := EvidenceURI(questID, txHash)

	completionTxHash, err := s.Gateway.SubmitCompletion(ctx, questID, participant, evidenceURI)
	if err != nil {
		// The verified row stays; the reconciliation sweep retries completion.
		return nil, err
	}

	// Critical section: the chain effect is done. Everything below is
	// best-effort bookkeeping repaired by the reconciliation sweep.
	if err := s.Submissions.MarkCompleted(questID, txHash, completionTxHash); err != nil {
		log.Printf("[ORCH] quest %d completed on-chain (%s) but submission update failed: %v", questID, completionTxHash, err)
	}

	xpAwarded := s.recordReward(ctx, questID, participant, completionTxHash)

	return &CompletionResult{
		QuestID:          questID,
		Participant:      strings.ToLower(participant.Hex()),
		CompletionTxHash: completionTxHash,
		XPAwarded:        xpAwarded,
		Verification:     verification,
	}, nil
}

// recordReward returns the XP granted, or 0 when the write was deferred to the
// reconciliation sweep.
func (s *CompletionService) recordReward(ctx context.Context, questID uint64, participant common.Address, completionTxHash string) int64 {
	cached, err := s.Quests.GetByOnChainID(ctx, questID)
	if err != nil || cached == nil {
		log.Printf("[ORCH] quest %d completed (%s) but cache lookup failed, reward deferred to reconciliation: %v", questID, completionTxHash, err)
		return 0
	}

	xp := XPReward(cached.QuestType, cached.BadgeLevel, cached.RewardPerParticipant)
	if _, err := s.Rewards.RecordReward(participant.Hex(), questID, xp, cached.RewardPerParticipant, nil, completionTxHash); err != nil {
		log.Printf("[ORCH] quest %d completed (%s) but reward write failed, deferred to reconciliation: %v", questID, completionTxHash, err)
		return 0
	}
	return xp
}

// EvidenceURI derives the descriptive completion evidence reference from the
// quest id and a truncated proof hash. Not cryptographically binding.
func EvidenceURI(questID uint64, txHash string) string {
	truncated := txHash
	if len(truncated) > 10 {
		truncated = truncated[:10]
	}
	return fmt.Sprintf("ipfs://proof_%d_%s", questID, truncated)
}
