package workers

import (
	"context"
	"log"
	"time"

	"defi-quest-system/models"
	"defi-quest-system/services"

	"github.com/ethereum/go-ethereum/common"
)

const sweepBatchSize = 200

// completionHashRecovered marks a submission whose completion is confirmed
// on-chain but whose original transaction hash was lost (the completion call
// succeeded while the follow-up bookkeeping write failed). Stamping it takes
// the row out of the stuck set.
const completionHashRecovered = "recovered"

// ReconciliationWorker repairs the gap between irreversible on-chain
// completions and local bookkeeping. A quest can be completed on-chain while
// the submission update or the reward write failed, or a verified submission
// can be stuck because the completion call itself failed. The sweep re-reads
// chain state and backfills; every repair step is idempotent so overlapping
// sweeps and user retries are harmless.
type ReconciliationWorker struct {
	Gateway     services.ChainGateway
	Submissions *services.SubmissionLedger
	Rewards     *services.RewardLedger
	Quests      *services.QuestCache
}

func NewReconciliationWorker(gateway services.ChainGateway, submissions *services.SubmissionLedger, rewards *services.RewardLedger, quests *services.QuestCache) *ReconciliationWorker {
	return &ReconciliationWorker{
		Gateway:     gateway,
		Submissions: submissions,
		Rewards:     rewards,
		Quests:      quests,
	}
}

// PollReconciliation runs the sweep on a fixed interval until ctx is done.
func PollReconciliation(ctx context.Context, worker *ReconciliationWorker, interval time.Duration) {
	log.Println("Starting reward reconciliation sweep...")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reconciliation sweep stopped.")
			return
		case <-ticker.C:
			if err := worker.Sweep(ctx); err != nil {
				log.Printf("❌ [RECONCILE] sweep failed: %v", err)
			}
		}
	}
}

// Sweep scans verified submissions and repairs each one as far as chain state
// allows. Individual failures are logged and retried on the next pass.
func (w *ReconciliationWorker) Sweep(ctx context.Context) error {
	subs, err := w.Submissions.NeedingReconciliation(sweepBatchSize)
	if err != nil {
		return err
	}

	repaired := 0
	for _, sub := range subs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if w.reconcile(ctx, &sub) {
			repaired++
		}
	}
	if repaired > 0 {
		log.Printf("[RECONCILE] repaired %d submission(s)", repaired)
	}
	return nil
}

func (w *ReconciliationWorker) reconcile(ctx context.Context, sub *models.Submission) bool {
	participant := common.HexToAddress(sub.ParticipantAddress)

	if sub.CompletionTxHash == "" {
		progress, err := w.Gateway.ReadParticipantProgress(ctx, sub.QuestIDOnChain, participant)
		if err != nil {
			log.Printf("[RECONCILE] quest %d: progress read failed: %v", sub.QuestIDOnChain, err)
			return false
		}
		if !progress.Completed {
			// Verified but the completion call never landed; retry it. The
			// contract rejects double-completion, so a lost race here only
			// produces a simulation error on the next sweep.
			completionTx, err := w.Gateway.SubmitCompletion(ctx, sub.QuestIDOnChain, participant,
				services.EvidenceURI(sub.QuestIDOnChain, sub.TransactionHash))
			if err != nil {
				log.Printf("[RECONCILE] quest %d: completion retry failed: %v", sub.QuestIDOnChain, err)
				return false
			}
			sub.CompletionTxHash = completionTx
			log.Printf("[RECONCILE] quest %d: completion recorded (%s)", sub.QuestIDOnChain, completionTx)
		}
		// Completed on-chain either way. If the retry supplied no hash the
		// original completion transaction is unknown; stamp the recovered
		// marker so the row leaves the stuck set.
		if sub.CompletionTxHash == "" {
			sub.CompletionTxHash = completionHashRecovered
		}
		if err := w.Submissions.MarkCompleted(sub.QuestIDOnChain, sub.TransactionHash, sub.CompletionTxHash); err != nil {
			log.Printf("[RECONCILE] quest %d: submission update failed: %v", sub.QuestIDOnChain, err)
			return false
		}
	}

	return w.backfillReward(ctx, sub)
}

func (w *ReconciliationWorker) backfillReward(ctx context.Context, sub *models.Submission) bool {
	has, err := w.Rewards.HasReward(sub.ParticipantAddress, sub.QuestIDOnChain)
	if err != nil {
		log.Printf("[RECONCILE] quest %d: reward check failed: %v", sub.QuestIDOnChain, err)
		return false
	}
	if has {
		return false
	}

	quest, err := w.Quests.GetByOnChainID(ctx, sub.QuestIDOnChain)
	if err != nil || quest == nil {
		log.Printf("[RECONCILE] quest %d: cache lookup failed, reward backfill deferred: %v", sub.QuestIDOnChain, err)
		return false
	}

	xp := services.XPReward(quest.QuestType, quest.BadgeLevel, quest.RewardPerParticipant)
	if _, err := w.Rewards.RecordReward(sub.ParticipantAddress, sub.QuestIDOnChain, xp, quest.RewardPerParticipant, nil, sub.CompletionTxHash); err != nil {
		log.Printf("[RECONCILE] quest %d: reward backfill failed: %v", sub.QuestIDOnChain, err)
		return false
	}
	log.Printf("✅ [RECONCILE] quest %d: backfilled %d XP for %s", sub.QuestIDOnChain, xp, sub.ParticipantAddress)
	return true
}
