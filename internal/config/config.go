package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string
	}
	API struct {
		Port     string
		BasePath string
	}
	Logging struct {
		Dir   string
		Level string
	}
	Engine struct {
		RecentBreachLimit int
		DeliveryPageSize  int
		DueSoonWindowDays int
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Kafka ingest settings; empty broker disables the consumer
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Archive database DSN; empty disables the archive
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Logging settings
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Engine settings
	if n, err := strconv.Atoi(os.Getenv("RECENT_BREACH_LIMIT")); err == nil {
		cfg.Engine.RecentBreachLimit = n
	}
	if n, err := strconv.Atoi(os.Getenv("DELIVERY_PAGE_SIZE")); err == nil {
		cfg.Engine.DeliveryPageSize = n
	}
	if n, err := strconv.Atoi(os.Getenv("DUE_SOON_WINDOW_DAYS")); err == nil {
		cfg.Engine.DueSoonWindowDays = n
	}

	// Validate partial Kafka settings
	if cfg.Kafka.Broker != "" && cfg.Kafka.Topic == "" {
		return Config{}, fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKER is set")
	}

	// Apply defaults
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "sla-engine"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Engine.RecentBreachLimit == 0 {
		cfg.Engine.RecentBreachLimit = 20
	}
	if cfg.Engine.DeliveryPageSize == 0 {
		cfg.Engine.DeliveryPageSize = 50
	}
	if cfg.Engine.DueSoonWindowDays == 0 {
		cfg.Engine.DueSoonWindowDays = 3
	}

	return cfg, nil
}
