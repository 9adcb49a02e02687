package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Runtime holds process settings read from the environment.
type Runtime struct {
	Port            string
	DatabaseURL     string
	RedisURL        string
	BundlePath      string
	TurnSchedule    string        // cron spec; empty disables the scheduler
	TurnBudget      time.Duration // wall-clock budget for one turn
	TurnParallelism int
	SemesterSeed    uint64
	ArchiveBucket   string
	ArchivePrefix   string
	CacheTTL        time.Duration
	EventsChannel   string
	AllowedOrigins  []string // CORS and WebSocket origins
}

// LoadRuntime reads Runtime from the environment, after loading a .env file
// from the working directory if one exists.
func LoadRuntime() Runtime {
	_ = godotenv.Load()

	return Runtime{
		Port:            envDefault("PORT", "8080"),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:        strings.TrimSpace(os.Getenv("REDIS_URL")),
		BundlePath:      strings.TrimSpace(os.Getenv("BUNDLE_PATH")),
		TurnSchedule:    envDefault("TURN_SCHEDULE", "0 0 * * 1"), // Mondays 00:00
		TurnBudget:      envDurationDefault("TURN_BUDGET", 15*time.Minute),
		TurnParallelism: envIntDefault("TURN_PARALLELISM", 8),
		SemesterSeed:    envUintDefault("SEMESTER_SEED", 1),
		ArchiveBucket:   strings.TrimSpace(os.Getenv("ARCHIVE_BUCKET")),
		ArchivePrefix:   envDefault("ARCHIVE_PREFIX", "turns"),
		CacheTTL:        envDurationDefault("CACHE_TTL", 30*time.Second),
		EventsChannel:   envDefault("EVENTS_CHANNEL", "insurance:turn-events"),
		AllowedOrigins:  envListDefault("ALLOWED_ORIGINS", []string{"*"}),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envUintDefault(key string, fallback uint64) uint64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envListDefault(key string, fallback []string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
