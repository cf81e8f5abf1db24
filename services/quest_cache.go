package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"defi-quest-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuestCache is the single read-through abstraction over the quests mirror
// table. Call sites that previously re-fetched quest-by-on-chain-id go through
// here; writes go through Upsert/SetStatus so the cache never drifts silently.
// The cache is for query convenience only — authorization decisions always
// re-read chain state.
type QuestCache struct {
	DB      *gorm.DB
	Gateway QuestChainReader
}

// QuestChainReader is the slice of the chain gateway the cache needs for
// fill-on-miss.
type QuestChainReader interface {
	ReadQuest(ctx context.Context, questID uint64) (*OnChainQuest, error)
}

func NewQuestCache(db *gorm.DB, gateway QuestChainReader) *QuestCache {
	return &QuestCache{DB: db, Gateway: gateway}
}

// GetByOnChainID returns the cached quest, filling from the chain on a miss.
// Returns nil (no error) when the quest exists nowhere.
func (c *QuestCache) GetByOnChainID(ctx context.Context, questID uint64) (*models.Quest, error) {
	var quest models.Quest
	err := c.DB.Where("quest_id_on_chain = ?", questID).First(&quest).Error
	if err == nil {
		return &quest, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to read quest cache: %w", err)
	}

	if c.Gateway == nil {
		return nil, nil
	}
	onChain, err := c.Gateway.ReadQuest(ctx, questID)
	if err != nil {
		if KindOf(err) == ErrQuestNotFound {
			return nil, nil
		}
		return nil, err
	}

	filled := QuestFromChain(questID, onChain)
	if err := c.Upsert(filled); err != nil {
		// Serving the chain copy beats failing the caller over a cache write.
		log.Printf("[QUEST_CACHE] failed to fill cache for quest %d: %v", questID, err)
	}
	return filled, nil
}

// Upsert writes a mirror row keyed by on-chain id.
func (c *QuestCache) Upsert(quest *models.Quest) error {
	if quest.ID == "" {
		quest.ID = uuid.NewString()
	}
	quest.AssignedParticipant = strings.ToLower(quest.AssignedParticipant)
	quest.ProtocolAddress = strings.ToLower(quest.ProtocolAddress)

	err := c.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "quest_id_on_chain"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "project_name", "category", "protocol_address",
			"metadata_uri", "parameters_hash", "reward_per_participant", "badge_level",
			"assigned_participant", "expiry_timestamp", "status", "quest_type", "updated_at",
		}),
	}).Create(quest).Error
	if err != nil {
		return fmt.Errorf("failed to upsert quest cache row: %w", err)
	}
	return nil
}

// SetStatus updates the cached status after an on-chain transition.
func (c *QuestCache) SetStatus(questID uint64, status models.QuestStatus) error {
	err := c.DB.Model(&models.Quest{}).
		Where("quest_id_on_chain = ?", questID).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("failed to update cached quest status: %w", err)
	}
	return nil
}

// ActiveQuests lists cached active quests, optionally filtered by assigned
// participant, newest first.
func (c *QuestCache) ActiveQuests(participant string, limit int) ([]models.Quest, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := c.DB.Where("status = ?", models.QuestStatusActive)
	if participant != "" {
		q = q.Where("assigned_participant = ?", strings.ToLower(participant))
	}
	var quests []models.Quest
	if err := q.Order("created_at desc").Limit(limit).Find(&quests).Error; err != nil {
		return nil, fmt.Errorf("failed to list active quests: %w", err)
	}
	return quests, nil
}

// ActiveQuestOfType returns the participant's active daily or weekly quest
// that has not expired, or nil.
func (c *QuestCache) ActiveQuestOfType(participant string, questType models.QuestType, now int64) (*models.Quest, error) {
	var quest models.Quest
	err := c.DB.Where("assigned_participant = ? AND quest_type = ? AND status = ?",
		strings.ToLower(participant), questType, models.QuestStatusActive).
		Where("expiry_timestamp = 0 OR expiry_timestamp > ?", now).
		Order("created_at desc").
		First(&quest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s quest: %w", questType, err)
	}
	return &quest, nil
}

// QuestsByOnChainIDs loads cached rows for a set of on-chain ids.
func (c *QuestCache) QuestsByOnChainIDs(ids []uint64) (map[uint64]models.Quest, error) {
	var quests []models.Quest
	if err := c.DB.Where("quest_id_on_chain IN ?", ids).Find(&quests).Error; err != nil {
		return nil, fmt.Errorf("failed to load quests by ids: %w", err)
	}
	byID := make(map[uint64]models.Quest, len(quests))
	for _, q := range quests {
		byID[q.QuestIDOnChain] = q
	}
	return byID, nil
}

// QuestFromChain builds a minimal cache row from on-chain state.
func QuestFromChain(questID uint64, quest *OnChainQuest) *models.Quest {
	badgeLevel := 0
	if quest.BadgeLevel != nil {
		badgeLevel = int(quest.BadgeLevel.Int64())
	}
	reward := ""
	if quest.RewardPerParticipant != nil {
		reward = quest.RewardPerParticipant.String()
	}
	return &models.Quest{
		ID:                   uuid.NewString(),
		QuestIDOnChain:       questID,
		AgentController:      strings.ToLower(quest.AgentController.Hex()),
		Title:                fmt.Sprintf("Quest #%d", questID),
		Category:             CategorySlug(quest.Category),
		ProtocolAddress:      strings.ToLower(quest.Protocol.Hex()),
		MetadataURI:          quest.MetadataURI,
		RewardPerParticipant: reward,
		BadgeLevel:           badgeLevel,
		AssignedParticipant:  strings.ToLower(quest.AssignedParticipant.Hex()),
		ExpiryTimestamp:      int64(quest.Expiry),
		Status:               StatusSlug(quest.Status),
		QuestType:            models.QuestTypeCustom,
	}
}
