// handlers/quest_routes.go
package handlers

import (
	"log"
	"strconv"
	"strings"

	"defi-quest-system/middleware"
	"defi-quest-system/models"
	"defi-quest-system/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

const defaultQuestListLimit = 50

func parseQuestID(c *fiber.Ctx) (uint64, bool) {
	questID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || questID == 0 {
		return 0, false
	}
	return questID, true
}

func SetupQuestRoutes(app *fiber.App, questService *services.QuestService, cache *services.QuestCache, rewards *services.RewardLedger) {
	// Static paths first so they never get swallowed by /quests/:id.
	app.Get("/quests/leaderboard", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 20)
		if limit < 1 || limit > 100 {
			limit = 20
		}

		stats, err := rewards.Leaderboard(limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Failed to load leaderboard",
			})
		}

		entries := make([]fiber.Map, 0, len(stats))
		for i, s := range stats {
			entries = append(entries, fiber.Map{
				"rank":            i + 1,
				"walletAddress":   s.WalletAddress,
				"totalXp":         s.TotalXP,
				"level":           s.Level,
				"completedQuests": s.CompletedQuests,
			})
		}
		return c.JSON(fiber.Map{"leaderboard": entries})
	})

	// Active quests from the mirror cache. With ?participant= the listing is
	// scoped to that wallet and annotated with on-chain progress.
	app.Get("/quests", func(c *fiber.Ctx) error {
		participant := strings.TrimSpace(c.Query("participant"))
		if participant != "" && !common.IsHexAddress(participant) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid participant address",
			})
		}

		quests, err := cache.ActiveQuests(participant, defaultQuestListLimit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Failed to load quests",
			})
		}

		items := make([]fiber.Map, 0, len(quests))
		for _, q := range quests {
			item := fiber.Map{"quest": q}
			if participant != "" {
				progress, err := questService.GetParticipantProgress(c.Context(), q.QuestIDOnChain, participant)
				if err == nil {
					item["progress"] = progress
				}
			}
			items = append(items, item)
		}
		return c.JSON(fiber.Map{"quests": items, "count": len(items)})
	})

	// Quest creation is reserved for the internal agent tooling.
	app.Post("/quests", middleware.ServiceAuthMiddleware(), func(c *fiber.Ctx) error {
		var input services.CreateQuestInput
		if err := c.BodyParser(&input); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid request body",
			})
		}

		result, err := questService.CreateQuest(c.Context(), input)
		if err != nil {
			return renderCompletionError(c, err)
		}

		log.Printf("✅ [QUEST] created quest %d (tx %s)", result.QuestID, result.TransactionHash)
		return c.Status(fiber.StatusCreated).JSON(result)
	})

	app.Get("/quests/:id/progress/:participant", func(c *fiber.Ctx) error {
		questID, ok := parseQuestID(c)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid quest ID"})
		}
		participant := c.Params("participant")
		if !common.IsHexAddress(participant) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid participant address"})
		}

		progress, err := questService.GetParticipantProgress(c.Context(), questID, participant)
		if err != nil {
			return renderCompletionError(c, err)
		}
		return c.JSON(fiber.Map{
			"questId":     strconv.FormatUint(questID, 10),
			"participant": strings.ToLower(participant),
			"progress":    progress,
		})
	})

	app.Get("/quests/:id", func(c *fiber.Ctx) error {
		questID, ok := parseQuestID(c)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid quest ID"})
		}

		view, err := questService.GetQuest(c.Context(), questID)
		if err != nil {
			return renderCompletionError(c, err)
		}
		return c.JSON(view)
	})
}

// questSummary renders the listing shape shared by the completed and rewards
// views, tolerating quests missing from the cache.
func questSummary(questID uint64, cached map[uint64]models.Quest) fiber.Map {
	q, ok := cached[questID]
	if !ok {
		return fiber.Map{"questId": strconv.FormatUint(questID, 10)}
	}
	return fiber.Map{
		"questId":     strconv.FormatUint(questID, 10),
		"title":       q.Title,
		"description": q.Description,
		"category":    q.Category,
		"questType":   string(q.QuestType),
		"badgeLevel":  q.BadgeLevel,
		"reward":      q.RewardPerParticipant,
	}
}
