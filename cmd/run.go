// Package cmd wires the application together.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"predictionarena/cache"
	"predictionarena/config"
	"predictionarena/database"
	"predictionarena/events"
	"predictionarena/oracle"
	"predictionarena/repository"
	"predictionarena/scheduler"
	"predictionarena/server"
	"predictionarena/service"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the arena service, blocking until ctx is
// cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("ARENA_CONFIG"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	configureLogging(cfg.LogLevel)

	log.Info("Starting arena...")

	db, err := database.NewConnection(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	var (
		valueCache       service.ObservedValueCache
		leaderboardCache service.LeaderboardCache
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.New(ctx, cache.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()

		valueCache = cache.NewValueCache(redisClient, cfg.Engine.ValueCacheTTL)
		leaderboardCache = cache.NewLeaderboardCache(redisClient, cfg.Engine.LeaderboardTTL)
		log.Info("Redis caches enabled")
	} else {
		log.Info("Redis not configured, caches disabled")
	}

	payoutParams := service.DefaultPayoutParams().WithFee(cfg.Engine.FeeBps)
	pointsParams := service.PointsParams{
		BasePoints:      cfg.Engine.BasePoints,
		VolumePointsBps: cfg.Engine.VolumePointsBps,
		StreakBonus:     cfg.Engine.StreakBonus,
	}

	var decider service.OutcomeDecider = service.DeterministicDecider{}
	if cfg.Engine.DemoMode {
		decider = service.NewSimulatedDecider(nil)
		log.Info("Demo mode: simulated outcomes enabled")
	}

	ledgerService := service.NewLedgerService(uowFactory, cfg.Engine.StartingBalance)
	marketService := service.NewMarketService(uowFactory, cfg.Engine.TrustedSources, cfg.Engine.BannedSources, valueCache)
	wagerService := service.NewWagerService(uowFactory, ledgerService, service.WagerParams{
		MinWager: cfg.Engine.MinWager,
		MaxWager: cfg.Engine.MaxWager,
		Payout:   payoutParams,
	})
	resolutionService := service.NewResolutionService(uowFactory, decider, payoutParams, pointsParams)
	statsService := service.NewStatsService(uowFactory, leaderboardCache, eventBus)

	resolutionWorker := scheduler.NewResolutionWorker(resolutionService, cfg.Engine.ResolveInterval)
	stopResolution := resolutionWorker.Start(ctx)
	defer stopResolution()

	if cfg.Engine.DemoMode {
		simulator := oracle.NewSimulator(marketService, cfg.Engine.SimulateInterval, 0.02, nil)
		stopSimulator := simulator.Start(ctx)
		defer stopSimulator()
	}

	httpServer := server.New(server.Config{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		AdminKey:    cfg.Server.AdminKey,
	}, ledgerService, marketService, wagerService, resolutionService, statsService)

	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("http server error: %w", err)
	}

	// Give in-flight settlements a moment to finish before the pool closes.
	time.Sleep(500 * time.Millisecond)
	log.Info("Shutdown completed")
	return nil
}

func configureLogging(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}
