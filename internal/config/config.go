package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port   string
	Env    string
	BotURL string // public base URL Mattermost calls back into

	StoreBackend string // "mongo" or "memory"
	MongoURI     string
	MongoDB      string
	DirectoryDB  string // Postgres URL of the employee directory; empty uses DIRECTORY_SEED

	MattermostURL  string
	NotifyBotToken string

	DefaultLocale      string
	AllowAdminOverride bool

	SweepInterval        time.Duration
	OutboxWorkers        int
	OutboxQueueSize      int
	StoreRetryMaxElapsed time.Duration
	HubBuffer            int

	OtelEnabled bool
	OtelStdout  bool

	DirectorySeed string // "id:role:chef,..." for the static directory
}

func Load() *Config {
	return &Config{
		Port:   getEnv("PORT", "3000"),
		Env:    getEnv("ENV", "development"),
		BotURL: strings.TrimRight(getEnv("BOT_URL", "http://hr-workflow:3000"), "/"),

		StoreBackend: getEnv("STORE_BACKEND", "mongo"),
		MongoURI:     getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("MONGODB_DATABASE", "hr"),
		DirectoryDB:  getEnv("DIRECTORY_DATABASE_URL", ""),

		MattermostURL:  strings.TrimRight(getEnv("MATTERMOST_URL", "http://localhost:8065"), "/"),
		NotifyBotToken: getEnv("NOTIFY_BOT_TOKEN", ""),

		DefaultLocale:      getEnv("DEFAULT_LOCALE", "fr"),
		AllowAdminOverride: getBool("ALLOW_ADMIN_OVERRIDE", true),

		SweepInterval:        getDuration("SWEEP_INTERVAL", time.Minute),
		OutboxWorkers:        getInt("OUTBOX_WORKERS", 4),
		OutboxQueueSize:      getInt("OUTBOX_QUEUE_SIZE", 256),
		StoreRetryMaxElapsed: getDuration("STORE_RETRY_MAX_ELAPSED", 5*time.Second),
		HubBuffer:            getInt("HUB_BUFFER", 16),

		OtelEnabled: getBool("OTEL_ENABLED", false),
		OtelStdout:  getBool("OTEL_STDOUT", false),

		DirectorySeed: getEnv("DIRECTORY_SEED", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN [config] %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN [config] %s=%q is not a boolean, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN [config] %s=%q is not a duration, using %s", key, v, fallback)
		return fallback
	}
	return d
}
