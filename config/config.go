package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"job-board-growth/utils"

	"github.com/joho/godotenv"
)

// Config is the process configuration read from the environment
type Config struct {
	DatabaseURL    string
	Port           string
	ServiceToken   string
	AllowedOrigins string

	CatalogPath      string
	CatalogObjectKey string
	PublicBaseURL    string

	SyncServiceURL   string
	SyncServiceToken string

	R2 utils.R2Config

	ExpirySweepInterval         time.Duration
	CatalogRefreshInterval      time.Duration
	LeaderboardSnapshotInterval time.Duration
	LeaderboardSnapshotKey      string
}

// Load reads .env (when present) and the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		Port:             getEnv("PORT", "5300"),
		ServiceToken:     os.Getenv("GROWTH_SERVICE_TOKEN"),
		AllowedOrigins:   normalizeOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		CatalogPath:      os.Getenv("CATALOG_PATH"),
		CatalogObjectKey: os.Getenv("CATALOG_OBJECT_KEY"),
		PublicBaseURL:    getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		SyncServiceURL:   os.Getenv("SYNC_SERVICE_URL"),
		SyncServiceToken: os.Getenv("SYNC_SERVICE_TOKEN"),
		R2: utils.R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
		},
		ExpirySweepInterval:         getDuration("EXPIRY_SWEEP_INTERVAL", time.Hour),
		CatalogRefreshInterval:      getDuration("CATALOG_REFRESH_INTERVAL", 5*time.Minute),
		LeaderboardSnapshotInterval: getDuration("LEADERBOARD_SNAPSHOT_INTERVAL", 15*time.Minute),
		LeaderboardSnapshotKey:      getEnv("LEADERBOARD_SNAPSHOT_KEY", "growth/leaderboard.json"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable not set")
	}
	if cfg.ServiceToken == "" {
		return nil, errors.New("GROWTH_SERVICE_TOKEN environment variable not set")
	}
	return cfg, nil
}

// SyncEnabled reports whether the identity/milestone feeds are configured
func (c *Config) SyncEnabled() bool {
	return c.SyncServiceURL != "" && c.SyncServiceToken != ""
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("⚠️  Invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

// normalizeOrigins trims each comma-separated origin for fiber's CORS config
func normalizeOrigins(raw string) string {
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}
