package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load decodes the TOML file at path over DefaultConfig, then applies
// AUTOPILOT_* environment overrides (a .env file is honoured if present).
// A missing file is not an error: defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.General.LogLevel, "AUTOPILOT_LOG_LEVEL")

	setBool(&cfg.Engine.MarketScanning, "AUTOPILOT_MARKET_SCANNING")
	setBool(&cfg.Engine.CompetitorMonitoring, "AUTOPILOT_COMPETITOR_MONITORING")
	setBool(&cfg.Engine.OpportunityDetection, "AUTOPILOT_OPPORTUNITY_DETECTION")
	setBool(&cfg.Engine.AutoOptimization, "AUTOPILOT_AUTO_OPTIMIZATION")
	setInt(&cfg.Engine.MaxOpportunities, "AUTOPILOT_MAX_OPPORTUNITIES")
	setInt(&cfg.Engine.MaxTasks, "AUTOPILOT_MAX_TASKS")
	setStr(&cfg.Engine.ReportMode, "AUTOPILOT_REPORT_MODE")
	setInt(&cfg.Engine.Concurrency, "AUTOPILOT_CONCURRENCY")
	setInt(&cfg.Engine.HighPriorityThreshold, "AUTOPILOT_HIGH_PRIORITY_THRESHOLD")
	setInt(&cfg.Engine.UrgentPriority, "AUTOPILOT_URGENT_PRIORITY")

	setStr(&cfg.Schedule.Timezone, "AUTOPILOT_TIMEZONE")

	setStr(&cfg.Browser.Mode, "AUTOPILOT_BROWSER_MODE")
	setStr(&cfg.Browser.RemoteURL, "AUTOPILOT_BROWSER_REMOTE_URL")
	setDuration(&cfg.Browser.FetchTimeout, "AUTOPILOT_BROWSER_FETCH_TIMEOUT")

	setStr(&cfg.Scan.Source, "AUTOPILOT_SCAN_SOURCE")
	setStringSlice(&cfg.Scan.Markets, "AUTOPILOT_SCAN_MARKETS")
	setStringSlice(&cfg.Competitors.URLs, "AUTOPILOT_COMPETITOR_URLS")

	setStringSlice(&cfg.Store.Backends, "AUTOPILOT_STORE_BACKENDS")
	setStr(&cfg.Store.Dir, "AUTOPILOT_STORE_DIR")
	setStr(&cfg.Store.DBPath, "AUTOPILOT_DB_PATH")

	setStr(&cfg.Redis.Addr, "AUTOPILOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AUTOPILOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AUTOPILOT_REDIS_DB")

	setStr(&cfg.S3.Endpoint, "AUTOPILOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AUTOPILOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "AUTOPILOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AUTOPILOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AUTOPILOT_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "AUTOPILOT_S3_FORCE_PATH_STYLE")

	setBool(&cfg.Server.Enabled, "AUTOPILOT_SERVER_ENABLED")
	setStr(&cfg.Server.Addr, "AUTOPILOT_SERVER_ADDR")
}

// Each helper only touches dst when the variable is set and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
