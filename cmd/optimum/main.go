package main

import (
	"log"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Feruzbek007777/Optimum/internal/config"
	"github.com/Feruzbek007777/Optimum/internal/database"
	"github.com/Feruzbek007777/Optimum/internal/handlers"
	"github.com/Feruzbek007777/Optimum/internal/logging"
	"github.com/Feruzbek007777/Optimum/internal/repository"
	"github.com/Feruzbek007777/Optimum/internal/service"
	"github.com/Feruzbek007777/Optimum/internal/verify"
)

func main() {
	// 1. Configuration and logging
	_ = godotenv.Load()
	cfg := config.Load()

	zlog, err := logging.New(cfg.Production())
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	// 2. External connections and schema
	db, rdb, err := database.Connect(cfg, zlog)
	if err != nil {
		zlog.Fatal("database connect failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}

	// 3. Question pools from disk
	questionRepo, err := repository.NewQuestionRepository(cfg.DataDir, zlog)
	if err != nil {
		zlog.Fatal("question pools failed to load", zap.Error(err))
	}

	// 4. Repos, services, verifier, handlers
	userRepo := repository.NewUserRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	leaderboardRepo := repository.NewLeaderboardRepository(rdb)
	guardRepo := repository.NewGuardRepository(rdb)

	ledger := service.NewPointsLedger(userRepo, leaderboardRepo, cfg.BonusAmount, cfg.BonusCooldown, zlog)
	referrals := service.NewReferralRegistry(referralRepo, userRepo, leaderboardRepo, cfg.ReferralBonus, zlog)
	quiz := service.NewQuizManager(questionRepo, ledger, service.ScoreRules{
		EasyCorrect:       cfg.EasyCorrect,
		EasyWrong:         cfg.EasyWrong,
		HardCorrect:       cfg.HardCorrect,
		HardWrong:         cfg.HardWrong,
		AdvisoryThreshold: cfg.AdvisoryThreshold,
	}, zlog)
	board := service.NewLeaderboardService(userRepo, leaderboardRepo, zlog)

	var verifyFn service.VerifyFunc
	if cfg.TelegramToken != "" {
		verifier, err := verify.NewChannelVerifier(cfg.TelegramToken, cfg.ChannelUsername, zlog)
		if err != nil {
			zlog.Fatal("channel verifier failed", zap.Error(err))
		}
		verifyFn = verifier.IsEligible
	} else {
		verifyFn = verify.Permissive(zlog)
	}

	engage := handlers.NewEngageHandlers(ledger, referrals, quiz, board, guardRepo, verifyFn, cfg.BonusClickGuard, zlog)

	// 5. Fiber app and middleware
	app := fiber.New(fiber.Config{
		AppName: cfg.AppName,
	})
	app.Use(logger.New())  // Logs every request to console
	app.Use(recover.New()) // Prevents the app from crashing on panics

	// Per-user rate limiting: extract userId from POST bodies, then limit
	// by user (or IP fallback).
	app.Use(handlers.BodyUserIDMiddleware)
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return handlers.RateLimitKeyByUser(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	// 6. Route definitions
	points := app.Group("/v1/points")
	points.Get("/:userId", engage.HandleGetPoints)
	points.Post("/adjust", engage.HandleAdjustPoints)

	app.Post("/v1/users/touch", engage.HandleTouchUser)
	app.Post("/v1/bonus/claim", engage.HandleClaimBonus)

	referralsGroup := app.Group("/v1/referrals")
	referralsGroup.Post("/arrived", engage.HandleReferralArrived)
	referralsGroup.Post("/verify", engage.HandleVerifyReferral)
	referralsGroup.Get("/:userId/stats", engage.HandleReferralStats)

	quizGroup := app.Group("/v1/quiz")
	quizGroup.Post("/start", engage.HandleStartQuiz)
	quizGroup.Post("/answer", engage.HandleSubmitAnswer)
	quizGroup.Post("/exit", engage.HandleExitQuiz)

	app.Get("/v1/leaderboard", engage.HandleLeaderboard)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// 7. Start the server
	zlog.Info("starting server", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}
