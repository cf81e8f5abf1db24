package services

import (
	"context"
	"testing"
	"time"

	"defi-quest-system/models"

	"github.com/stretchr/testify/require"
)

type fakeChainReader struct {
	quest *OnChainQuest
	err   error
	reads int
}

func (r *fakeChainReader) ReadQuest(ctx context.Context, questID uint64) (*OnChainQuest, error) {
	r.reads++
	if r.err != nil {
		return nil, r.err
	}
	return r.quest, nil
}

func TestQuestCacheFillsOnMiss(t *testing.T) {
	reader := &fakeChainReader{quest: &OnChainQuest{
		Status:              QuestStateActive,
		Protocol:            testProtocol,
		AssignedParticipant: testParticipant,
		MetadataURI:         "ipfs://quests/x",
	}}
	cache := NewQuestCache(newTestDB(t), reader)

	quest, err := cache.GetByOnChainID(context.Background(), 11)
	require.NoError(t, err)
	require.NotNil(t, quest)
	require.Equal(t, uint64(11), quest.QuestIDOnChain)
	require.Equal(t, models.QuestStatusActive, quest.Status)
	require.Equal(t, 1, reader.reads)

	// Second read is served from the mirror table.
	_, err = cache.GetByOnChainID(context.Background(), 11)
	require.NoError(t, err)
	require.Equal(t, 1, reader.reads)
}

func TestQuestCacheMissEverywhere(t *testing.T) {
	reader := &fakeChainReader{err: newProofError(ErrQuestNotFound, "quest not found")}
	cache := NewQuestCache(newTestDB(t), reader)

	quest, err := cache.GetByOnChainID(context.Background(), 11)
	require.NoError(t, err)
	require.Nil(t, quest)
}

func TestQuestCacheUpsertUpdatesExistingRow(t *testing.T) {
	cache := NewQuestCache(newTestDB(t), nil)

	require.NoError(t, cache.Upsert(&models.Quest{
		QuestIDOnChain: 5, Title: "First", Status: models.QuestStatusActive, QuestType: models.QuestTypeDaily,
	}))
	require.NoError(t, cache.Upsert(&models.Quest{
		QuestIDOnChain: 5, Title: "Updated", Status: models.QuestStatusCompleted, QuestType: models.QuestTypeDaily,
	}))

	quest, err := cache.GetByOnChainID(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, "Updated", quest.Title)
	require.Equal(t, models.QuestStatusCompleted, quest.Status)

	var count int64
	require.NoError(t, cache.DB.Model(&models.Quest{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestActiveQuestOfTypeSkipsExpired(t *testing.T) {
	cache := NewQuestCache(newTestDB(t), nil)
	now := time.Now().Unix()

	require.NoError(t, cache.Upsert(&models.Quest{
		QuestIDOnChain: 1, Title: "Stale", Status: models.QuestStatusActive,
		QuestType: models.QuestTypeDaily, AssignedParticipant: testWallet,
		ExpiryTimestamp: now - 60,
	}))

	quest, err := cache.ActiveQuestOfType(testWallet, models.QuestTypeDaily, now)
	require.NoError(t, err)
	require.Nil(t, quest)

	require.NoError(t, cache.Upsert(&models.Quest{
		QuestIDOnChain: 2, Title: "Fresh", Status: models.QuestStatusActive,
		QuestType: models.QuestTypeDaily, AssignedParticipant: testWallet,
		ExpiryTimestamp: now + 3600,
	}))

	quest, err = cache.ActiveQuestOfType(testWallet, models.QuestTypeDaily, now)
	require.NoError(t, err)
	require.NotNil(t, quest)
	require.Equal(t, "Fresh", quest.Title)
}

func TestActiveQuestsFilteredByParticipant(t *testing.T) {
	cache := NewQuestCache(newTestDB(t), nil)

	require.NoError(t, cache.Upsert(&models.Quest{
		QuestIDOnChain: 1, Title: "Mine", Status: models.QuestStatusActive, AssignedParticipant: testWallet,
	}))
	require.NoError(t, cache.Upsert(&models.Quest{
		QuestIDOnChain: 2, Title: "Theirs", Status: models.QuestStatusActive, AssignedParticipant: otherWallet,
	}))
	require.NoError(t, cache.Upsert(&models.Quest{
		QuestIDOnChain: 3, Title: "Done", Status: models.QuestStatusCompleted, AssignedParticipant: testWallet,
	}))

	quests, err := cache.ActiveQuests(testWallet, 10)
	require.NoError(t, err)
	require.Len(t, quests, 1)
	require.Equal(t, "Mine", quests[0].Title)

	all, err := cache.ActiveQuests("", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
