package main

import (
	"context"
	"log"
	"strings"
	"sync"

	"sla-engine/internal/api"
	"sla-engine/internal/config"
	"sla-engine/internal/db"
	"sla-engine/internal/kafka"
	"sla-engine/internal/logging"
	"sla-engine/internal/notify"
	"sla-engine/internal/sla"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	// Connect the optional archive database
	var slaOpts []sla.Option
	var notifyOpts []notify.EngineOption
	if cfg.DB.DSN != "" {
		dbConn, err := db.New(cfg.DB.DSN)
		if err != nil {
			logger.Errorf("Failed to connect to database: %v", err)
			log.Fatalf("Database connection failed: %v", err)
		}
		defer dbConn.Close()
		if err := dbConn.EnsureSchema(context.Background()); err != nil {
			logger.Errorf("Failed to ensure archive schema: %v", err)
			log.Fatalf("Archive schema failed: %v", err)
		}
		archiver := db.NewArchiver(dbConn, logger)
		slaOpts = append(slaOpts, sla.WithArchiver(archiver))
		notifyOpts = append(notifyOpts, notify.WithArchiver(archiver))
	}

	// Wire the live delivery feed into the notification engine
	hub := api.NewDeliveryHub(logger)
	notifyOpts = append(notifyOpts,
		notify.WithDeliveryListener(hub.Publish),
		notify.WithDueSoonWindow(cfg.Engine.DueSoonWindowDays),
	)

	// Initialize engines
	engine := notify.NewEngine(logger, notifyOpts...)
	slaOpts = append(slaOpts,
		sla.WithRecentBreachLimit(cfg.Engine.RecentBreachLimit),
	)
	slaSvc := sla.New(logger, engine, slaOpts...)

	// Start the snapshot ingest consumer if configured
	var wg sync.WaitGroup
	if cfg.Kafka.Broker != "" {
		consumer := kafka.NewConsumer(strings.Split(cfg.Kafka.Broker, ","), cfg.Kafka.Topic, cfg.Kafka.GroupID, slaSvc, engine, logger)
		defer consumer.Close()
		consumer.Start(&wg)
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)
	}

	// Start API server
	handler := api.NewHandler(slaSvc, engine, hub, logger, cfg)
	router := api.NewRouter(handler, logger, cfg)
	logger.Infof("Starting API server on %s", cfg.API.Port)
	if err := router.Run(cfg.API.Port); err != nil {
		logger.Errorf("API server failed: %v", err)
	}
	wg.Wait()
}
