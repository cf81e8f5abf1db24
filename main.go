package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"defi-quest-system/handlers"
	"defi-quest-system/models"
	"defi-quest-system/services"
	"defi-quest-system/workers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // proof submissions are small JSON bodies
	})

	// CORS configuration — load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.UserStats{},
		&models.Quest{},
		&models.Submission{},
		&models.XPLedgerEntry{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Chain identities: the agent controller creates quests, the completion
	// oracle signs recordCompletion. Loaded once; read-only afterwards.
	agentController, err := services.NewSignerFromHex(mustEnv("AGENT_CONTROLLER_PRIVATE_KEY"))
	if err != nil {
		log.Fatal("invalid AGENT_CONTROLLER_PRIVATE_KEY:", err)
	}
	completionOracle, err := services.NewSignerFromHex(mustEnv("COMPLETION_ORACLE_PRIVATE_KEY"))
	if err != nil {
		log.Fatal("invalid COMPLETION_ORACLE_PRIVATE_KEY:", err)
	}

	chainID, err := strconv.ParseInt(mustEnv("CHAIN_ID"), 10, 64)
	if err != nil {
		log.Fatal("invalid CHAIN_ID:", err)
	}
	contractAddr := mustEnv("QUEST_MANAGER_ADDRESS")
	if !common.IsHexAddress(contractAddr) {
		log.Fatal("QUEST_MANAGER_ADDRESS is not a valid hex address")
	}

	// Optional override for the oracle identity expected by the contract; when
	// unset the gateway asks the contract itself before every completion.
	var expectedOracle common.Address
	if v := os.Getenv("COMPLETION_ORACLE"); v != "" {
		if !common.IsHexAddress(v) {
			log.Fatal("COMPLETION_ORACLE is not a valid hex address")
		}
		expectedOracle = common.HexToAddress(v)
	}

	gateway, err := services.NewQuestGateway(
		mustEnv("RPC_URL"),
		chainID,
		common.HexToAddress(contractAddr),
		agentController,
		completionOracle,
		expectedOracle,
	)
	if err != nil {
		log.Fatal("failed to initialize quest gateway:", err)
	}

	verifier := services.NewMirrorNodeVerifier(mustEnv("MIRROR_NODE_URL"))

	questCache := services.NewQuestCache(db, gateway)
	submissionLedger := services.NewSubmissionLedger(db)
	rewardLedger := services.NewRewardLedger(db)
	userService := services.NewUserService(db)
	questService := services.NewQuestService(gateway, questCache)
	completionService := services.NewCompletionService(gateway, verifier, submissionLedger, rewardLedger, questCache)
	scheduler := services.NewQuestScheduler(db, questService, questCache)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reconciliation := workers.NewReconciliationWorker(gateway, submissionLedger, rewardLedger, questCache)
	go workers.PollReconciliation(ctx, reconciliation, 5*time.Minute)

	scheduler.Start()

	// User routes must precede /quests/:id so /quests/users/... wins.
	handlers.SetupUserRoutes(app, userService, rewardLedger, submissionLedger, questCache, scheduler)
	handlers.SetupProofRoutes(app, completionService)
	handlers.SetupQuestRoutes(app, questService, questCache, rewardLedger)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"rpc":     os.Getenv("RPC_URL"),
			"chainId": chainID,
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Printf("✅ Agent controller: %s", agentController.Address.Hex())
	log.Printf("✅ Completion oracle: %s", completionOracle.Address.Hex())
	log.Println("✅ Reward reconciliation sweep running (every 5m)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("%s environment variable not set", key)
	}
	return v
}
