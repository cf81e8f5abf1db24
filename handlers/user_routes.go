// handlers/user_routes.go
package handlers

import (
	"log"

	"defi-quest-system/middleware"
	"defi-quest-system/models"
	"defi-quest-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupUserRoutes registers the wallet-scoped views. Must be registered before
// SetupQuestRoutes so /quests/users/... is matched ahead of /quests/:id.
func SetupUserRoutes(app *fiber.App, users *services.UserService, rewards *services.RewardLedger, submissions *services.SubmissionLedger, cache *services.QuestCache, scheduler *services.QuestScheduler) {
	group := app.Group("/quests/users/:address", middleware.WalletAddressParam())

	group.Get("/stats", func(c *fiber.Ctx) error {
		wallet := c.Locals("wallet_address").(string)

		stats, err := rewards.StatsFor(wallet)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to load stats"})
		}
		if stats == nil {
			return c.JSON(fiber.Map{
				"walletAddress":   wallet,
				"totalXp":         0,
				"level":           1,
				"completedQuests": 0,
				"rank":            nil,
			})
		}

		rank, err := rewards.RankFor(stats)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to compute rank"})
		}
		return c.JSON(fiber.Map{
			"walletAddress":   stats.WalletAddress,
			"totalXp":         stats.TotalXP,
			"level":           stats.Level,
			"completedQuests": stats.CompletedQuests,
			"rank":            rank,
		})
	})

	group.Get("/completed", func(c *fiber.Ctx) error {
		wallet := c.Locals("wallet_address").(string)

		completed, err := submissions.CompletedByParticipant(wallet)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to load completed quests"})
		}

		ids := make([]uint64, 0, len(completed))
		for _, sub := range completed {
			ids = append(ids, sub.QuestIDOnChain)
		}
		cached, err := cache.QuestsByOnChainIDs(ids)
		if err != nil {
			log.Printf("[USERS] quest cache lookup failed for %s: %v", wallet, err)
			cached = map[uint64]models.Quest{}
		}

		items := make([]fiber.Map, 0, len(completed))
		for _, sub := range completed {
			item := questSummary(sub.QuestIDOnChain, cached)
			item["proofTransactionHash"] = sub.TransactionHash
			item["completionTxHash"] = sub.CompletionTxHash
			item["completedAt"] = sub.UpdatedAt
			items = append(items, item)
		}
		return c.JSON(fiber.Map{"completed": items, "count": len(items)})
	})

	group.Get("/rewards", func(c *fiber.Ctx) error {
		wallet := c.Locals("wallet_address").(string)

		entries, err := rewards.EntriesFor(wallet)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to load rewards"})
		}
		totals, err := rewards.TotalsFor(wallet)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to load reward totals"})
		}

		ids := make([]uint64, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.QuestIDOnChain)
		}
		cached, err := cache.QuestsByOnChainIDs(ids)
		if err != nil {
			log.Printf("[USERS] quest cache lookup failed for %s: %v", wallet, err)
			cached = map[uint64]models.Quest{}
		}

		items := make([]fiber.Map, 0, len(entries))
		for _, e := range entries {
			item := questSummary(e.QuestIDOnChain, cached)
			item["xpAmount"] = e.XPAmount
			item["rewardAmount"] = e.RewardAmount
			item["completionTxHash"] = e.CompletionTxHash
			item["earnedAt"] = e.CreatedAt
			if q, ok := cached[e.QuestIDOnChain]; ok {
				item["badgeImageUrl"] = models.BadgeImageURL(q.BadgeLevel)
			}
			items = append(items, item)
		}
		return c.JSON(fiber.Map{"rewards": items, "totals": totals})
	})

	group.Get("/quests", func(c *fiber.Ctx) error {
		wallet := c.Locals("wallet_address").(string)

		quests, err := cache.ActiveQuests(wallet, defaultQuestListLimit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to load quests"})
		}
		return c.JSON(fiber.Map{"quests": quests, "count": len(quests)})
	})

	group.Post("/profile", func(c *fiber.Ctx) error {
		wallet := c.Locals("wallet_address").(string)

		var req struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
		}

		user, err := users.SaveProfile(wallet, req.Name, req.Email)
		if err != nil {
			return renderCompletionError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Profile saved", "user": user})
	})

	group.Patch("/avatar", func(c *fiber.Ctx) error {
		wallet := c.Locals("wallet_address").(string)

		var req struct {
			AvatarURL string `json:"avatarUrl"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
		}

		user, err := users.UpdateAvatar(wallet, req.AvatarURL)
		if err != nil {
			return renderCompletionError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Avatar updated", "user": user})
	})

	// Manual trigger for the scheduled quest generators, guarded like quest
	// creation since it spends the agent controller's funds.
	group.Post("/generate-quests", middleware.ServiceAuthMiddleware(), func(c *fiber.Ctx) error {
		wallet := c.Locals("wallet_address").(string)

		generated := []string{}
		for _, questType := range []models.QuestType{models.QuestTypeDaily, models.QuestTypeWeekly} {
			if err := scheduler.GenerateQuest(c.Context(), wallet, questType); err != nil {
				log.Printf("❌ [USERS] %s quest generation failed for %s: %v", questType, wallet, err)
				continue
			}
			generated = append(generated, string(questType))
		}
		return c.JSON(fiber.Map{"message": "Quest generation complete", "generated": generated})
	})
}
