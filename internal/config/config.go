package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Cache drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	BCRP struct {
		BaseURL   string        `yaml:"base_url"`
		PBIURL    string        `yaml:"pbi_url"`
		Format    string        `yaml:"format"`
		Language  string        `yaml:"language"`
		Timeout   time.Duration `yaml:"timeout"`
		RateLimit float64       `yaml:"rate_limit"`
		RateBurst int           `yaml:"rate_burst"`
	} `yaml:"bcrp"`
	Fetch struct {
		MaxAttempts    int           `yaml:"max_attempts"`
		Backoff        time.Duration `yaml:"backoff"`
		AttemptTimeout time.Duration `yaml:"attempt_timeout"`
		RecentTimeout  time.Duration `yaml:"recent_timeout"`
		RecentLimit    int           `yaml:"recent_limit"`
		Concurrency    int           `yaml:"concurrency"`
	} `yaml:"fetch"`
	Cache struct {
		Driver      string `yaml:"driver"`
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresURL string `yaml:"postgres_url"`
		MinConns    int    `yaml:"min_conns"`
		MaxConns    int    `yaml:"max_conns"`
		Timezone    string `yaml:"timezone"`
	} `yaml:"cache"`
	Schedule struct {
		RefreshCron string   `yaml:"refresh_cron"`
		RecentCron  string   `yaml:"recent_cron"`
		Codes       []string `yaml:"codes"`
		WindowYears int      `yaml:"window_years"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Database struct {
		HistoryPath string `yaml:"history_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("BCRP_BASE_URL"); v != "" {
		cfg.BCRP.BaseURL = v
	}
	if v := os.Getenv("BCRP_PBI_URL"); v != "" {
		cfg.BCRP.PBIURL = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CACHE_DRIVER"); v != "" {
		cfg.Cache.Driver = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Cache.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Cache.PostgresURL = v
	}
	if v := os.Getenv("TIMEZONE"); v != "" {
		cfg.Cache.Timezone = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("CRON_REFRESH"); v != "" {
		cfg.Schedule.RefreshCron = v
	}
	if v := os.Getenv("CRON_RECENT"); v != "" {
		cfg.Schedule.RecentCron = v
	}
	if v := os.Getenv("INDICATOR_CODES"); v != "" {
		cfg.Schedule.Codes = splitCodes(v)
	}
	if v := os.Getenv("HISTORY_PATH"); v != "" {
		cfg.Database.HistoryPath = v
	}

	// Defaults
	if cfg.BCRP.BaseURL == "" {
		cfg.BCRP.BaseURL = "https://estadisticas.bcrp.gob.pe/estadisticas/series/api"
	}
	if cfg.BCRP.PBIURL == "" {
		cfg.BCRP.PBIURL = "https://estadisticas.bcrp.gob.pe/estadisticas/series/anuales/resultados"
	}
	if cfg.BCRP.Format == "" {
		cfg.BCRP.Format = "json"
	}
	if cfg.BCRP.Language == "" {
		cfg.BCRP.Language = "esp"
	}
	if cfg.BCRP.Timeout == 0 {
		cfg.BCRP.Timeout = 30 * time.Second
	}
	if cfg.BCRP.RateLimit == 0 {
		cfg.BCRP.RateLimit = 4
	}
	if cfg.BCRP.RateBurst == 0 {
		cfg.BCRP.RateBurst = 4
	}
	if cfg.Fetch.MaxAttempts == 0 {
		cfg.Fetch.MaxAttempts = 3
	}
	if cfg.Fetch.Backoff == 0 {
		cfg.Fetch.Backoff = time.Second
	}
	if cfg.Fetch.AttemptTimeout == 0 {
		cfg.Fetch.AttemptTimeout = 30 * time.Second
	}
	if cfg.Fetch.RecentTimeout == 0 {
		cfg.Fetch.RecentTimeout = 10 * time.Second
	}
	if cfg.Fetch.RecentLimit == 0 {
		cfg.Fetch.RecentLimit = 30
	}
	if cfg.Fetch.Concurrency == 0 {
		cfg.Fetch.Concurrency = 4
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = DriverSQLite
	}
	if cfg.Cache.SQLitePath == "" {
		cfg.Cache.SQLitePath = "data/bcrp_cache.db"
	}
	if cfg.Cache.MaxConns == 0 {
		cfg.Cache.MaxConns = 10
	}
	if cfg.Cache.MinConns == 0 {
		cfg.Cache.MinConns = 2
	}
	if cfg.Cache.Timezone == "" {
		cfg.Cache.Timezone = "America/Lima"
	}
	if cfg.Schedule.RefreshCron == "" {
		cfg.Schedule.RefreshCron = "0 0 7 * * *"
	}
	if cfg.Schedule.RecentCron == "" {
		cfg.Schedule.RecentCron = "0 30 18 * * 1-5"
	}
	if cfg.Schedule.WindowYears == 0 {
		cfg.Schedule.WindowYears = 5
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Database.HistoryPath == "" {
		cfg.Database.HistoryPath = "data/bcrp_history.db"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if c.BCRP.BaseURL == "" {
		return fmt.Errorf("bcrp.base_url is required")
	}
	if c.BCRP.Timeout <= 0 {
		return fmt.Errorf("bcrp.timeout must be positive")
	}
	if c.BCRP.RateLimit <= 0 {
		return fmt.Errorf("bcrp.rate_limit must be positive")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be positive")
	}
	if c.Fetch.Backoff <= 0 || c.Fetch.AttemptTimeout <= 0 || c.Fetch.RecentTimeout <= 0 {
		return fmt.Errorf("fetch timeouts and backoff must be positive")
	}
	switch c.Cache.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Cache.SQLitePath == "" {
			return fmt.Errorf("cache.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Cache.PostgresURL == "" {
			return fmt.Errorf("cache.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("cache.driver %q is not one of memory, sqlite, postgres", c.Cache.Driver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// Location resolves the timezone used for cache freshness.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Cache.Timezone)
	if err != nil {
		return nil, fmt.Errorf("cache.timezone %q: %w", c.Cache.Timezone, err)
	}
	return loc, nil
}

func splitCodes(s string) []string {
	var codes []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}
