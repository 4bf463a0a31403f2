// Package config reads environment-driven settings consumed by the core
// subsystems. Optional subsystems (the review worker) are switched on by
// explicit flags here rather than probed for at runtime.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the runtime configuration for the server and worker.
type Config struct {
	Port string

	// Review worker
	WorkerEnabled   bool
	WorkerPollEvery time.Duration
	MaxJobAttempts  int
	ReviewTimeout   time.Duration

	// Review generator (OpenAI-compatible endpoint)
	OpenAIBaseURL string
	OpenAIKey     string
	OpenAIModel   string

	// Leaderboard
	LeaderboardCacheTTL time.Duration

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	JWTSecret string
}

// Load reads configuration from the environment, applying defaults that
// match the behavior of a bare deployment.
func Load() *Config {
	return &Config{
		Port: getEnvOrDefault("PORT", "8080"),

		WorkerEnabled:   os.Getenv("ENABLE_AI_WORKER") == "true",
		WorkerPollEvery: time.Duration(getEnvInt("AI_WORKER_POLL_MS", 4000)) * time.Millisecond,
		MaxJobAttempts:  getEnvInt("AI_JOB_MAX_ATTEMPTS", 3),
		ReviewTimeout:   time.Duration(getEnvInt("AI_REVIEW_TIMEOUT_MS", 60000)) * time.Millisecond,

		OpenAIBaseURL: getEnvOrDefault("OPENAI_API_BASE", "https://api.openai.com/v1"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),

		LeaderboardCacheTTL: time.Duration(getEnvInt("TAG_RANK_CACHE_TTL_SECONDS", 30)) * time.Second,

		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret: os.Getenv("JWT_SECRET"),
	}
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
