// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"defi-quest-system/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// QuestScheduler issues templated daily and weekly quests to active users.
// Quest content generation is an external collaborator; the templates here
// stand in behind the same creation path.
type QuestScheduler struct {
	DB     *gorm.DB
	Quests *QuestService
	Cache  *QuestCache
}

func NewQuestScheduler(db *gorm.DB, quests *QuestService, cache *QuestCache) *QuestScheduler {
	return &QuestScheduler{DB: db, Quests: quests, Cache: cache}
}

// Start registers the cron jobs: daily quests at 00:00 UTC, weekly quests
// every Monday 00:00 UTC.
func (s *QuestScheduler) Start() {
	sched, _ := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	sched.Start()

	_, _ = sched.NewJob(
		gocron.CronJob("0 0 * * *", false),
		gocron.NewTask(func() { s.runSweep(models.QuestTypeDaily) }),
	)
	_, _ = sched.NewJob(
		gocron.CronJob("0 0 * * 1", false),
		gocron.NewTask(func() { s.runSweep(models.QuestTypeWeekly) }),
	)
}

func (s *QuestScheduler) runSweep(questType models.QuestType) {
	log.Printf("[Scheduler] Running %s quest generation...", questType)

	users, err := s.activeUsers()
	if err != nil {
		log.Printf("[Scheduler] Failed to load active users: %v", err)
		return
	}
	log.Printf("[Scheduler] Found %d active users", len(users))

	for _, user := range users {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := s.GenerateQuest(ctx, user.WalletAddress, questType); err != nil {
			log.Printf("[Scheduler] Failed to generate %s quest for %s: %v", questType, user.WalletAddress, err)
		}
		cancel()
	}
	log.Printf("[Scheduler] %s quest generation completed", questType)
}

// activeUsers are users that completed their profile.
func (s *QuestScheduler) activeUsers() ([]models.User, error) {
	var users []models.User
	err := s.DB.Where("name <> '' AND email <> ''").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active users: %w", err)
	}
	return users, nil
}

// GenerateQuest creates one scheduled quest for the user unless they already
// hold an unexpired active quest of that type.
func (s *QuestScheduler) GenerateQuest(ctx context.Context, walletAddress string, questType models.QuestType) error {
	existing, err := s.Cache.ActiveQuestOfType(walletAddress, questType, time.Now().Unix())
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	protocol := Protocols[rand.Intn(len(Protocols))]

	var (
		expiry       int64
		rewardAmount string
		badgeLevel   int
	)
	switch questType {
	case models.QuestTypeWeekly:
		expiry = time.Now().Add(7 * 24 * time.Hour).Unix()
		rewardAmount = "200"
		badgeLevel = 2
	default:
		expiry = time.Now().Add(24 * time.Hour).Unix()
		rewardAmount = "50"
		badgeLevel = 1
	}

	title := fmt.Sprintf("%s %s on %s", titleCase(string(questType)), protocol.Category, protocol.Name)
	description := fmt.Sprintf("Complete a %s action on %s before the quest expires to earn %s tokens and XP.",
		protocol.Category, protocol.Name, rewardAmount)

	result, err := s.Quests.CreateQuest(ctx, CreateQuestInput{
		Category:     protocol.Category,
		Protocol:     protocol.EVMAddress,
		Title:        title,
		Description:  description,
		ProjectName:  protocol.Name,
		MetadataURI:  fmt.Sprintf("ipfs://quests/%s", slug.Make(title)),
		RewardAmount: rewardAmount,
		BadgeLevel:   badgeLevel,
		Participant:  walletAddress,
		Expiry:       expiry,
		QuestType:    string(questType),
	})
	if err != nil {
		return err
	}

	log.Printf("[Scheduler] ✅ Generated %s quest %d for %s (%s)", questType, result.QuestID, walletAddress, protocol.Name)
	return nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
