package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	SyncInterval       time.Duration
	SyncPageSize       int
	AccountSyncTimeout time.Duration
	SweepConcurrency   int

	CoordinatorWaitTimeout time.Duration

	ChatRelayClientID     string
	ChatRelayClientSecret string

	GoogleProjectID     string
	GooglePubSubTopic   string
	GoogleCredentials   string
	FirebaseCredentials string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=unibox password=unibox dbname=unibox port=5432 sslmode=disable"),
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		SyncInterval:       getDurationEnv("SYNC_INTERVAL", 5*time.Minute),
		SyncPageSize:       getIntEnv("SYNC_PAGE_SIZE", 100),
		AccountSyncTimeout: getDurationEnv("ACCOUNT_SYNC_TIMEOUT", 60*time.Second),
		SweepConcurrency:   getIntEnv("SWEEP_CONCURRENCY", 4),

		CoordinatorWaitTimeout: getDurationEnv("COORDINATOR_WAIT_TIMEOUT", 5*time.Second),

		ChatRelayClientID:     getEnv("CHATRELAY_CLIENT_ID", ""),
		ChatRelayClientSecret: getEnv("CHATRELAY_CLIENT_SECRET", ""),

		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:   getEnv("GOOGLE_PUBSUB_TOPIC", "provider-push-events"),
		GoogleCredentials:   getEnv("GOOGLE_CREDENTIALS", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
