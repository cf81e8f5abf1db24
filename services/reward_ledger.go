package services

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"defi-quest-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LevelConfig: XP needed for *next* level (level 1 → 2 needs BaseXPPerLevel * 1^1.2)
const BaseXPPerLevel = 100

// xpForNextLevel returns XP required to reach level+1 from the current level
func xpForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	return int64(float64(BaseXPPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// levelForXP accumulates level-ups until the total no longer covers the next
// threshold.
func levelForXP(totalXP int64) int {
	level := 1
	for totalXP >= int64(BaseXPPerLevel)*int64(level)+xpForNextLevel(level) {
		level++
	}
	return level
}

// RewardTotals aggregates a user's ledger entries.
type RewardTotals struct {
	XP             int64   `json:"xp"`
	RewardTotal    float64 `json:"reward_total"`
	CompletedCount int64   `json:"completed_count"`
}

// RewardLedger is the append-only XP/reward audit trail plus the denormalized
// stats it feeds. It performs no business-rule computation: XP amounts arrive
// precomputed from the orchestrator's deterministic rule.
type RewardLedger struct {
	DB *gorm.DB
}

func NewRewardLedger(db *gorm.DB) *RewardLedger {
	return &RewardLedger{DB: db}
}

// RecordReward appends a ledger entry for (user, quest) and updates the
// denormalized stats in the same transaction. A duplicate (wallet, quest) pair
// hits the unique index and returns the existing entry without touching stats,
// so the reconciliation sweep can call this blindly.
func (l *RewardLedger) RecordReward(walletAddress string, questID uint64, xpAmount int64, rewardAmount string, badgeTokenID *int64, completionTxHash string) (*models.XPLedgerEntry, error) {
	wallet := strings.ToLower(walletAddress)

	user, err := getOrCreateUser(l.DB, wallet)
	if err != nil {
		return nil, err
	}

	entry := models.XPLedgerEntry{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		WalletAddress:    wallet,
		QuestIDOnChain:   questID,
		XPAmount:         xpAmount,
		RewardAmount:     rewardAmount,
		BadgeTokenID:     badgeTokenID,
		CompletionTxHash: completionTxHash,
	}

	err = l.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "wallet_address"}, {Name: "quest_id_on_chain"}},
			DoNothing: true,
		}).Create(&entry)
		if res.Error != nil {
			return fmt.Errorf("failed to record XP entry: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var existing models.XPLedgerEntry
			if err := tx.Where("wallet_address = ? AND quest_id_on_chain = ?", wallet, questID).
				First(&existing).Error; err != nil {
				return fmt.Errorf("failed to load existing XP entry: %w", err)
			}
			entry = existing
			return nil
		}

		// The increments are expressed in SQL so two concurrent rewards for
		// the same user never lose an update.
		now := time.Now().UTC()
		increments := map[string]interface{}{
			"total_xp":         gorm.Expr("total_xp + ?", xpAmount),
			"completed_quests": gorm.Expr("completed_quests + 1"),
			"xp_achieved_at":   now,
		}
		res = tx.Model(&models.UserStats{}).Where("user_id = ?", user.ID).Updates(increments)
		if res.Error != nil {
			return fmt.Errorf("failed to update user stats: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			stats := models.UserStats{
				UserID:          user.ID,
				WalletAddress:   wallet,
				TotalXP:         xpAmount,
				CompletedQuests: 1,
				Level:           levelForXP(xpAmount),
				XPAchievedAt:    now,
			}
			created := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoNothing: true,
			}).Create(&stats)
			if created.Error != nil {
				return fmt.Errorf("failed to create user stats: %w", created.Error)
			}
			if created.RowsAffected > 0 {
				return nil
			}
			// Lost the first-row race; apply the increment to the winner's row.
			if err := tx.Model(&models.UserStats{}).Where("user_id = ?", user.ID).Updates(increments).Error; err != nil {
				return fmt.Errorf("failed to update user stats: %w", err)
			}
		}

		// Level derives from the stored total, so last writer wins safely.
		var stats models.UserStats
		if err := tx.Where("user_id = ?", user.ID).First(&stats).Error; err != nil {
			return fmt.Errorf("failed to reload user stats: %w", err)
		}
		if level := levelForXP(stats.TotalXP); level != stats.Level {
			if err := tx.Model(&models.UserStats{}).Where("user_id = ?", user.ID).Update("level", level).Error; err != nil {
				return fmt.Errorf("failed to update user level: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// HasReward reports whether (wallet, quest) already holds a ledger entry.
func (l *RewardLedger) HasReward(walletAddress string, questID uint64) (bool, error) {
	var count int64
	err := l.DB.Model(&models.XPLedgerEntry{}).
		Where("wallet_address = ? AND quest_id_on_chain = ?", strings.ToLower(walletAddress), questID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check reward entry: %w", err)
	}
	return count > 0, nil
}

// TotalsFor aggregates XP, reward sum and completion count over the ledger.
func (l *RewardLedger) TotalsFor(walletAddress string) (*RewardTotals, error) {
	var entries []models.XPLedgerEntry
	err := l.DB.Where("wallet_address = ?", strings.ToLower(walletAddress)).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger entries: %w", err)
	}

	totals := &RewardTotals{}
	for _, e := range entries {
		totals.XP += e.XPAmount
		totals.CompletedCount++
		if e.RewardAmount != "" {
			if amount, err := strconv.ParseFloat(e.RewardAmount, 64); err == nil && amount > 0 {
				totals.RewardTotal += amount
			}
		}
	}
	return totals, nil
}

// EntriesFor returns a user's ledger entries, newest first.
func (l *RewardLedger) EntriesFor(walletAddress string) ([]models.XPLedgerEntry, error) {
	var entries []models.XPLedgerEntry
	err := l.DB.Where("wallet_address = ?", strings.ToLower(walletAddress)).
		Order("created_at desc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger entries: %w", err)
	}
	return entries, nil
}

// Leaderboard returns ranked users by total XP descending; ties go to whoever
// reached that total first.
func (l *RewardLedger) Leaderboard(limit int) ([]models.UserStats, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var stats []models.UserStats
	err := l.DB.Where("total_xp > 0").
		Order("total_xp desc").
		Order("xp_achieved_at asc").
		Limit(limit).
		Find(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return stats, nil
}

// StatsFor returns the denormalized stats row, or nil when the user has none.
func (l *RewardLedger) StatsFor(walletAddress string) (*models.UserStats, error) {
	var stats models.UserStats
	err := l.DB.Where("wallet_address = ?", strings.ToLower(walletAddress)).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user stats: %w", err)
	}
	return &stats, nil
}

// RankFor computes a user's leaderboard rank (1-based), or 0 when unranked.
func (l *RewardLedger) RankFor(stats *models.UserStats) (int64, error) {
	if stats == nil || stats.TotalXP <= 0 {
		return 0, nil
	}
	var ahead int64
	err := l.DB.Model(&models.UserStats{}).
		Where("total_xp > ? OR (total_xp = ? AND xp_achieved_at < ?)", stats.TotalXP, stats.TotalXP, stats.XPAchievedAt).
		Count(&ahead).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute rank: %w", err)
	}
	return ahead + 1, nil
}
