package config

import (
	"errors"
	"fmt"
	"time"

	"autopilot/internal/domain"
	"autopilot/internal/market"
)

type Config struct {
	General     GeneralConfig    `toml:"general"`
	Engine      EngineConfig     `toml:"engine"`
	Schedule    ScheduleConfig   `toml:"schedule"`
	Browser     BrowserConfig    `toml:"browser"`
	Scan        ScanConfig       `toml:"scan"`
	Competitors CompetitorConfig `toml:"competitors"`
	Projects    []ProjectConfig  `toml:"projects"`
	Store       StoreConfig      `toml:"store"`
	Redis       RedisConfig      `toml:"redis"`
	S3          S3Config         `toml:"s3"`
	Server      ServerConfig     `toml:"server"`
}

type GeneralConfig struct {
	LogLevel string `toml:"log_level"`
}

type EngineConfig struct {
	domain.EngineConfig
	MaxOpportunities      int    `toml:"max_opportunities"`
	MaxTasks              int    `toml:"max_tasks"`
	ReportMode            string `toml:"report_mode"`
	HighPriorityThreshold int    `toml:"high_priority_threshold"`
	UrgentPriority        int    `toml:"urgent_priority"`
	HeapWarnMB            int    `toml:"heap_warn_mb"`
	Concurrency           int    `toml:"concurrency"`
}

type ScheduleConfig struct {
	Timezone            string   `toml:"timezone"`
	MarketScanHours     int      `toml:"market_scan_hours"`
	CompetitorHours     int      `toml:"competitor_hours"`
	DetectionHours      int      `toml:"detection_hours"`
	OptimizeAt          string   `toml:"optimize_at"`
	ReportAt            string   `toml:"report_at"`
	QuickScanInterval   Duration `toml:"quick_scan_interval"`
	HealthCheckInterval Duration `toml:"health_check_interval"`
}

type BrowserConfig struct {
	Mode         string   `toml:"mode"`
	RemoteURL    string   `toml:"remote_url"`
	NoSandbox    bool     `toml:"no_sandbox"`
	FetchTimeout Duration `toml:"fetch_timeout"`
	UserAgent    string   `toml:"user_agent"`
}

type ScanConfig struct {
	Source         string   `toml:"source"`
	Markets        []string `toml:"markets"`
	SearchURL      string   `toml:"search_url"`
	QuerySuffix    string   `toml:"query_suffix"`
	MaxTrends      int      `toml:"max_trends"`
	Keywords       []string `toml:"keywords"`
	RecencyMarkers []string `toml:"recency_markers"`
	CacheTTL       Duration `toml:"cache_ttl"`
}

type CompetitorConfig struct {
	URLs []string `toml:"urls"`
}

type ProjectConfig struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

type StoreConfig struct {
	Backends []string `toml:"backends"`
	Dir      string   `toml:"dir"`
	DBPath   string   `toml:"db_path"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Duration wraps time.Duration for TOML unmarshaling.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{LogLevel: "info"},
		Engine: EngineConfig{
			EngineConfig:          domain.DefaultEngineConfig(),
			ReportMode:            "cumulative",
			HighPriorityThreshold: 70,
			UrgentPriority:        75,
			HeapWarnMB:            500,
			Concurrency:           2,
		},
		Schedule: ScheduleConfig{
			Timezone:            "Local",
			MarketScanHours:     1,
			CompetitorHours:     2,
			DetectionHours:      4,
			OptimizeAt:          "03:00",
			ReportAt:            "08:00",
			QuickScanInterval:   Duration{15 * time.Minute},
			HealthCheckInterval: Duration{5 * time.Minute},
		},
		Browser: BrowserConfig{
			Mode:         "headless",
			NoSandbox:    true,
			FetchTimeout: Duration{30 * time.Second},
			UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		},
		Scan: ScanConfig{
			Source: "search",
			Markets: []string{
				"AI automation tools",
				"SaaS platforms",
				"Adult content platforms",
				"Luxury e-commerce",
				"Digital marketing tools",
			},
			SearchURL:      "https://www.google.com/search?q=%s",
			QuerySuffix:    "trending tools 2024",
			MaxTrends:      5,
			Keywords:       []string{"ai", "automation", "saas", "adult", "luxury"},
			RecencyMarkers: []string{"2024", "trending"},
			CacheTTL:       Duration{2 * time.Hour},
		},
		Competitors: CompetitorConfig{
			URLs: []string{
				"https://buildspace.so",
				"https://bubble.io",
				"https://webflow.com",
				"https://carrd.co",
			},
		},
		Projects: []ProjectConfig{
			{ID: "td-portal", Name: "TD Studios Portal", URL: "http://localhost:3000"},
			{ID: "luxury-platform", Name: "Luxury Platform", URL: "https://tdstudiosny.com"},
		},
		Store: StoreConfig{
			Backends: []string{"file"},
			Dir:      "./database",
			DBPath:   "./data/autopilot.db",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "autopilot",
		},
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "autopilot",
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    ":5001",
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("general.log_level: unknown level %q", c.General.LogLevel))
	}
	switch c.Engine.ReportMode {
	case "cumulative", "reset":
	default:
		errs = append(errs, fmt.Errorf("engine.report_mode: must be cumulative or reset, got %q", c.Engine.ReportMode))
	}
	if c.Engine.MaxOpportunities < 0 || c.Engine.MaxTasks < 0 {
		errs = append(errs, errors.New("engine: retention limits must not be negative"))
	}
	if c.Engine.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("engine.concurrency: must be at least 1, got %d", c.Engine.Concurrency))
	}

	for name, h := range map[string]int{
		"market_scan_hours": c.Schedule.MarketScanHours,
		"competitor_hours":  c.Schedule.CompetitorHours,
		"detection_hours":   c.Schedule.DetectionHours,
	} {
		if h < 1 || h > 24 {
			errs = append(errs, fmt.Errorf("schedule.%s: must be within 1..24, got %d", name, h))
		}
	}
	for name, v := range map[string]string{"optimize_at": c.Schedule.OptimizeAt, "report_at": c.Schedule.ReportAt} {
		if _, _, err := ParseClock(v); err != nil {
			errs = append(errs, fmt.Errorf("schedule.%s: %w", name, err))
		}
	}
	if c.Schedule.QuickScanInterval.Duration <= 0 || c.Schedule.HealthCheckInterval.Duration <= 0 {
		errs = append(errs, errors.New("schedule: intervals must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
	}

	switch c.Browser.Mode {
	case "headless", "http", "off":
	default:
		errs = append(errs, fmt.Errorf("browser.mode: unknown mode %q", c.Browser.Mode))
	}
	if c.Browser.FetchTimeout.Duration <= 0 {
		errs = append(errs, errors.New("browser.fetch_timeout: must be positive"))
	}

	switch c.Scan.Source {
	case "search", "manifold":
	default:
		errs = append(errs, fmt.Errorf("scan.source: unknown source %q", c.Scan.Source))
	}
	if c.Scan.MaxTrends < 1 || c.Scan.MaxTrends > 5 {
		errs = append(errs, fmt.Errorf("scan.max_trends: must be within 1..5, got %d", c.Scan.MaxTrends))
	}
	// A threshold above the best reachable score would silence quick scans
	// and the hot-market strategy.
	top := market.MaxScore(c.Scan.MaxTrends)
	if c.Engine.HighPriorityThreshold < 0 || c.Engine.HighPriorityThreshold > top {
		errs = append(errs, fmt.Errorf("engine.high_priority_threshold: must be within 0..%d for %d trends, got %d",
			top, c.Scan.MaxTrends, c.Engine.HighPriorityThreshold))
	}
	if c.Engine.UrgentPriority < c.Engine.HighPriorityThreshold || c.Engine.UrgentPriority > top {
		errs = append(errs, fmt.Errorf("engine.urgent_priority: must be within %d..%d, got %d",
			c.Engine.HighPriorityThreshold, top, c.Engine.UrgentPriority))
	}

	if len(c.Store.Backends) == 0 {
		errs = append(errs, errors.New("store.backends: at least one backend is required"))
	}
	for _, b := range c.Store.Backends {
		switch b {
		case "file", "sqlite", "redis":
		case "s3":
			if c.S3.Bucket == "" {
				errs = append(errs, errors.New("s3.bucket: required when the s3 backend is enabled"))
			}
		default:
			errs = append(errs, fmt.Errorf("store.backends: unknown backend %q", b))
		}
	}

	return errors.Join(errs...)
}

// Location resolves the schedule time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" || c.Schedule.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Schedule.Timezone)
}

// ParseClock parses an "HH:MM" wall-clock time.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing clock %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
