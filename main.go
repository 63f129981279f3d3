package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"job-board-growth/config"
	"job-board-growth/handlers"
	"job-board-growth/middleware"
	"job-board-growth/models"
	"job-board-growth/services"
	"job-board-growth/utils"
	"job-board-growth/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// object storage is optional: catalog override and leaderboard snapshots
	var store *utils.R2Store
	if cfg.R2.Enabled() {
		store, err = utils.NewR2Store(ctx, cfg.R2)
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
	} else {
		log.Println("⚠️  R2 not configured, leaderboard snapshots disabled")
	}

	var catalogSource services.ObjectReader
	var snapshots services.ObjectWriter
	if store != nil {
		catalogSource = store
		snapshots = store
	}
	catalog, err := services.LoadCatalog(ctx, catalogSource, cfg.CatalogObjectKey, cfg.CatalogPath)
	if err != nil {
		log.Fatal("failed to load catalog:", err)
	}

	opts := services.EngineOptions{PublicBaseURL: cfg.PublicBaseURL}
	referrals, err := services.NewReferralEngine(ctx, db, catalog, opts)
	if err != nil {
		log.Fatal("failed to start referral engine:", err)
	}
	viral, err := services.NewViralGrowthEngine(ctx, db, catalog, opts)
	if err != nil {
		log.Fatal("failed to start viral growth engine:", err)
	}

	if _, err := services.StartGrowthScheduler(ctx, referrals, viral, snapshots, services.SchedulerConfig{
		ExpirySweep:         cfg.ExpirySweepInterval,
		CatalogRefresh:      cfg.CatalogRefreshInterval,
		LeaderboardSnapshot: cfg.LeaderboardSnapshotInterval,
		SnapshotKey:         cfg.LeaderboardSnapshotKey,
	}); err != nil {
		log.Fatal("failed to start scheduler:", err)
	}

	if cfg.SyncEnabled() {
		syncWorker := workers.NewUserSyncWorker(db, cfg.SyncServiceURL, "/api/v1/public/profiles", cfg.SyncServiceToken)
		syncWorker.Start(ctx)

		jobWorker := workers.NewJobSyncWorker(db, cfg.SyncServiceURL, "/api/v1/public/jobs", cfg.SyncServiceToken)
		jobWorker.Start(ctx)

		milestones := workers.NewMilestoneSyncClient(db, cfg.SyncServiceURL, cfg.SyncServiceToken, referrals, viral)
		go workers.PollMilestones(ctx, milestones, 30*time.Second)
	} else {
		log.Println("⚠️  SYNC_SERVICE_URL/SYNC_SERVICE_TOKEN not set, profile, job and milestone sync disabled")
	}

	app := fiber.New()

	// 🔐 Only Gateway requests allowed; /metrics is scraped in-cluster
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, "/metrics"))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	handlers.SetupReferralRoutes(app, referrals)
	handlers.SetupViralRoutes(app, viral, services.NewNotificationStream(db))

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Growth service running on http://localhost:%s", cfg.Port)
	log.Printf("✅ CORS configured for origins: %s", cfg.AllowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
