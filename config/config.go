package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Calendar CalendarConfig `yaml:"calendar"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	// SourceURLTemplate links the status page to the running commit, %s is the commit hash.
	SourceURLTemplate string `yaml:"source_url_template"`
}

// ScraperConfig holds the bulk scraper configuration.
type ScraperConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
	YearSpan        int           `yaml:"year_span"`
	BatchSize       int           `yaml:"batch_size"`
	RequestDelayMS  int           `yaml:"request_delay_ms"`
	BatchDelayMS    int           `yaml:"batch_delay_ms"`
	ProgressEvery   int           `yaml:"progress_every"`
}

// UpstreamConfig describes the OAuth2 protected calendar API.
type UpstreamConfig struct {
	BaseURL             string   `yaml:"base_url"`
	TokenURL            string   `yaml:"token_url"`
	ClientID            string   `yaml:"client_id"`
	ClientSecret        string   `yaml:"client_secret"`
	Scopes              []string `yaml:"scopes"`
	HTTPProxy           string   `yaml:"http_proxy"`
	TimeoutSeconds      int      `yaml:"timeout_seconds"`
	CalendarURLTemplate string   `yaml:"calendar_url_template"`
}

// CalendarConfig holds the staleness thresholds of the on-demand path.
type CalendarConfig struct {
	RefetchAfterSeconds  int `yaml:"refetch_after_seconds"`
	StaleFallbackSeconds int `yaml:"stale_fallback_seconds"`
	RefetchPastDays      int `yaml:"refetch_past_days"`
	RefetchFutureDays    int `yaml:"refetch_future_days"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// RefetchAfter is the age after which a room's last sync is considered stale.
func (c CalendarConfig) RefetchAfter() time.Duration {
	return time.Duration(c.RefetchAfterSeconds) * time.Second
}

// StaleFallback is the oldest sync the on-demand path may still serve from the store.
func (c CalendarConfig) StaleFallback() time.Duration {
	return time.Duration(c.StaleFallbackSeconds) * time.Second
}

// RequestDelay is the pause after every upstream call of the bulk scraper.
func (c ScraperConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMS) * time.Millisecond
}

// BatchDelay is the pause after every batch of rooms.
func (c ScraperConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMS) * time.Millisecond
}

// Load reads the configuration from the given path and applies environment overrides.
// A missing file is not an error; defaults and the environment are used instead.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Upstream.ClientID = getEnv("UPSTREAM_OAUTH_CLIENT_ID", cfg.Upstream.ClientID)
	cfg.Upstream.ClientSecret = getEnv("UPSTREAM_OAUTH_CLIENT_SECRET", cfg.Upstream.ClientSecret)
	cfg.Upstream.BaseURL = getEnv("UPSTREAM_BASE_URL", cfg.Upstream.BaseURL)
	cfg.Upstream.TokenURL = getEnv("UPSTREAM_TOKEN_URL", cfg.Upstream.TokenURL)
	cfg.Database.DSN = getEnv("DATABASE_DSN", cfg.Database.DSN)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	if port, err := strconv.Atoi(os.Getenv("BIND_PORT")); err == nil {
		cfg.Server.Port = port
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = postgresDSN()
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 3003
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}
	if cfg.Server.SourceURLTemplate == "" {
		cfg.Server.SourceURLTemplate = "https://github.com/TUM-Dev/navigatum/tree/%s/server"
	}

	if cfg.Scraper.IntervalSeconds <= 0 {
		cfg.Scraper.IntervalSeconds = 24 * 60 * 60
	}
	cfg.Scraper.Interval = time.Duration(cfg.Scraper.IntervalSeconds) * time.Second
	if cfg.Scraper.YearSpan <= 0 {
		cfg.Scraper.YearSpan = 4
	}
	if cfg.Scraper.BatchSize <= 0 {
		cfg.Scraper.BatchSize = 3
	}
	if cfg.Scraper.RequestDelayMS <= 0 {
		cfg.Scraper.RequestDelayMS = 50
	}
	if cfg.Scraper.BatchDelayMS <= 0 {
		cfg.Scraper.BatchDelayMS = 100
	}
	if cfg.Scraper.ProgressEvery <= 0 {
		cfg.Scraper.ProgressEvery = 30
	}

	if cfg.Upstream.TimeoutSeconds <= 0 {
		cfg.Upstream.TimeoutSeconds = 20
	}
	if len(cfg.Upstream.Scopes) == 0 {
		cfg.Upstream.Scopes = []string{"connectum-rooms.read"}
	}
	if cfg.Upstream.CalendarURLTemplate == "" {
		cfg.Upstream.CalendarURLTemplate = "https://campus.tum.de/tumonline/wbKalender.wbRessource?pResNr=%d"
	}

	if cfg.Calendar.RefetchAfterSeconds <= 0 {
		cfg.Calendar.RefetchAfterSeconds = 60 * 60
	}
	if cfg.Calendar.StaleFallbackSeconds <= 0 {
		cfg.Calendar.StaleFallbackSeconds = 36 * 60 * 60
	}
	if cfg.Calendar.RefetchPastDays <= 0 {
		cfg.Calendar.RefetchPastDays = 30
	}
	if cfg.Calendar.RefetchFutureDays <= 0 {
		cfg.Calendar.RefetchFutureDays = 90
	}

	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes <= 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// postgresDSN assembles a connection string from the POSTGRES_* variables.
func postgresDSN() string {
	user := getEnv("POSTGRES_USER", "postgres")
	password := getEnv("POSTGRES_PASSWORD", "password")
	host := getEnv("POSTGRES_URL", "localhost")
	name := getEnv("POSTGRES_DB", user)
	return fmt.Sprintf("postgres://%s:%s@%s/%s", user, password, host, name)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
