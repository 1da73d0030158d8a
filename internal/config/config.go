package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	OutputDir string

	FeedBaseURL      string
	FeedAPIToken     string
	FeedRateLimitRPS int
	FeedTimeoutMs    int
	FeedPageSize     int

	FeedTargetIDStatic  string
	FeedTargetIDDynamic string

	FetchDelayMs int

	SameDayWindowMin     int
	AdjacentDayWindowMin int
	PayoutTolerance      float64
	PayoutPenaltyScale   float64
	PayoutMatchBoost     float64

	SchedulerIntervalSec  int
	SchedulerLookbackDays int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "callrecon.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		FeedBaseURL:      getEnv("FEED_API_BASE_URL", "https://api.tracking.example/v2"),
		FeedAPIToken:     getEnv("FEED_API_TOKEN", ""),
		FeedRateLimitRPS: getEnvInt("FEED_RATE_LIMIT_RPS", 2),
		FeedTimeoutMs:    getEnvInt("FEED_TIMEOUT_MS", 30000),
		FeedPageSize:     getEnvInt("FEED_PAGE_SIZE", 100),

		FeedTargetIDStatic:  getEnv("FEED_TARGET_ID_STATIC", ""),
		FeedTargetIDDynamic: getEnv("FEED_TARGET_ID_DYNAMIC", ""),

		FetchDelayMs: getEnvInt("FETCH_DELAY_MS", 1500),

		SameDayWindowMin:     getEnvInt("MATCH_SAME_DAY_WINDOW_MIN", 120),
		AdjacentDayWindowMin: getEnvInt("MATCH_ADJACENT_DAY_WINDOW_MIN", 1440),
		PayoutTolerance:      getEnvFloat("MATCH_PAYOUT_TOLERANCE", 0.01),
		PayoutPenaltyScale:   getEnvFloat("MATCH_PAYOUT_PENALTY_SCALE", 10),
		PayoutMatchBoost:     getEnvFloat("MATCH_PAYOUT_BOOST", 0.1),

		SchedulerIntervalSec:  getEnvInt("SCHEDULER_INTERVAL_SEC", 3600),
		SchedulerLookbackDays: getEnvInt("SCHEDULER_LOOKBACK_DAYS", 3),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// FeedTargetID returns the tracking-platform target id configured for a
// category, or "" when none is set.
func (c Config) FeedTargetID(category string) string {
	switch category {
	case "static":
		return c.FeedTargetIDStatic
	case "dynamic":
		return c.FeedTargetIDDynamic
	default:
		return ""
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
