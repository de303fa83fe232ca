// Package config loads the bot configuration.
// The TOML file in the data directory is read with viper; secrets can be
// overridden from the environment with envconfig (.env is honoured via godotenv).
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"freeloot.dev/lootscraper/internal/common"
)

//go:embed config.default.toml
var defaultConfig []byte

// FileName is the name of the configuration file inside the data directory.
const FileName = "config.toml"

// Config holds ALL settings of the application.
type Config struct {
	// Directory with config, logs, feeds and screenshots. Not part of the file.
	DataDir string `mapstructure:"-"`

	Common   CommonConfig   `mapstructure:"common"`
	Expert   ExpertConfig   `mapstructure:"expert"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Actions  ActionsConfig  `mapstructure:"actions"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	IGDB     IGDBConfig     `mapstructure:"igdb"`
	FTP      FTPConfig      `mapstructure:"ftp"`
	Feed     FeedConfig     `mapstructure:"feed"`

	// Parsed enum lists, filled by Validate.
	Sources     []common.Source        `mapstructure:"-"`
	OfferTypes  []common.OfferType     `mapstructure:"-"`
	Durations   []common.OfferDuration `mapstructure:"-"`
	InfoSources []common.InfoSource    `mapstructure:"-"`
}

type CommonConfig struct {
	DatabaseURL            string `mapstructure:"database_url"`
	FeedFilePrefix         string `mapstructure:"feed_file_prefix"`
	LogFile                string `mapstructure:"log_file"`
	LogLevel               string `mapstructure:"log_level"`
	WaitBetweenRunsSeconds int    `mapstructure:"wait_between_runs_seconds"` // 0 = single pass
}

type ExpertConfig struct {
	DBEcho                  bool    `mapstructure:"db_echo"`
	WebTimeoutSeconds       int     `mapstructure:"web_timeout_seconds"`
	DBMaxConns              int32   `mapstructure:"db_max_conns"`
	DBMinConns              int32   `mapstructure:"db_min_conns"`
	MetricsAddress          string  `mapstructure:"metrics_address"`
	BrowserHeadless         bool    `mapstructure:"browser_headless"`
	HumbleCheapThresholdEUR float64 `mapstructure:"humble_cheap_threshold_eur"`
}

type ScraperConfig struct {
	OfferSources   []string `mapstructure:"offer_sources"`
	OfferTypes     []string `mapstructure:"offer_types"`
	OfferDurations []string `mapstructure:"offer_durations"`
	InfoSources    []string `mapstructure:"info_sources"`
}

type ActionsConfig struct {
	ScrapeInfo   bool `mapstructure:"scrape_info"`
	GenerateFeed bool `mapstructure:"generate_feed"`
	UploadToFTP  bool `mapstructure:"upload_to_ftp"`
	TelegramBot  bool `mapstructure:"telegram_bot"`
}

type TelegramConfig struct {
	AccessToken          string        `mapstructure:"access_token"`
	DeveloperChatID      int64         `mapstructure:"developer_chat_id"`
	AdminUserID          int64         `mapstructure:"admin_user_id"`
	LogLevel             string        `mapstructure:"log_level"`
	RateLimitRequests    int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow      time.Duration `mapstructure:"rate_limit_window"`
	UpdateTimeoutSeconds int           `mapstructure:"update_timeout_seconds"`
	// How many updates are handled in parallel
	MaxInflight int `mapstructure:"max_inflight"`
}

type IGDBConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type FTPConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type FeedConfig struct {
	AuthorName   string `mapstructure:"author_name"`
	AuthorEmail  string `mapstructure:"author_email"`
	AuthorWeb    string `mapstructure:"author_web"`
	URLPrefix    string `mapstructure:"url_prefix"`
	URLAlternate string `mapstructure:"url_alternate"`
	IDPrefix     string `mapstructure:"id_prefix"`
}

// envOverrides are read with the LOOTSCRAPER_ prefix and win over the file.
type envOverrides struct {
	DatabaseURL         string `envconfig:"DATABASE_URL"`
	LogLevel            string `envconfig:"LOG_LEVEL"`
	TelegramAccessToken string `envconfig:"TELEGRAM_ACCESS_TOKEN"`
	DeveloperChatID     int64  `envconfig:"TELEGRAM_DEVELOPER_CHAT_ID"`
	AdminUserID         int64  `envconfig:"TELEGRAM_ADMIN_USER_ID"`
	IGDBClientID        string `envconfig:"IGDB_CLIENT_ID"`
	IGDBClientSecret    string `envconfig:"IGDB_CLIENT_SECRET"`
	FTPPassword         string `envconfig:"FTP_PASSWORD"`
}

// DataDir returns the data directory from LOOTSCRAPER_DATA_DIR (default ./data).
func DataDir() string {
	if d := os.Getenv("LOOTSCRAPER_DATA_DIR"); d != "" {
		return d
	}
	return "data"
}

// Load reads <dataDir>/config.toml, creating it from the packaged default
// on first start, and applies environment overrides.
func Load(dataDir string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	path := filepath.Join(dataDir, FileName)
	if err := ensureFile(path); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir

	var env envOverrides
	if err := envconfig.Process("LOOTSCRAPER", &env); err != nil {
		return nil, fmt.Errorf("read environment overrides: %w", err)
	}
	env.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes configuration from TOML bytes without touching the disk.
func Parse(data []byte) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the packaged default configuration.
func Default() *Config {
	cfg, err := Parse(defaultConfig)
	if err != nil {
		panic(fmt.Sprintf("packaged default config is invalid: %v", err))
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	// Defaults for keys that older config files do not carry yet
	v.SetDefault("expert.db_max_conns", 10)
	v.SetDefault("expert.db_min_conns", 1)
	v.SetDefault("expert.browser_headless", true)
	v.SetDefault("expert.humble_cheap_threshold_eur", 1.0)
	v.SetDefault("expert.web_timeout_seconds", 5)
	v.SetDefault("telegram.rate_limit_requests", 20)
	v.SetDefault("telegram.rate_limit_window", "1m")
	v.SetDefault("telegram.update_timeout_seconds", 60)
	v.SetDefault("telegram.max_inflight", 16)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func ensureFile(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config file: %w", err)
	}
	if err := os.WriteFile(path, defaultConfig, 0o600); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

func (e envOverrides) apply(cfg *Config) {
	if e.DatabaseURL != "" {
		cfg.Common.DatabaseURL = e.DatabaseURL
	}
	if e.LogLevel != "" {
		cfg.Common.LogLevel = e.LogLevel
	}
	if e.TelegramAccessToken != "" {
		cfg.Telegram.AccessToken = e.TelegramAccessToken
	}
	if e.DeveloperChatID != 0 {
		cfg.Telegram.DeveloperChatID = e.DeveloperChatID
	}
	if e.AdminUserID != 0 {
		cfg.Telegram.AdminUserID = e.AdminUserID
	}
	if e.IGDBClientID != "" {
		cfg.IGDB.ClientID = e.IGDBClientID
	}
	if e.IGDBClientSecret != "" {
		cfg.IGDB.ClientSecret = e.IGDBClientSecret
	}
	if e.FTPPassword != "" {
		cfg.FTP.Password = e.FTPPassword
	}
}

// Validate checks the values and parses the enum lists.
func (c *Config) Validate() error {
	if c.Common.WaitBetweenRunsSeconds < 0 {
		return fmt.Errorf("common.wait_between_runs_seconds must be >= 0")
	}
	if c.Expert.WebTimeoutSeconds <= 0 {
		return fmt.Errorf("expert.web_timeout_seconds must be > 0")
	}
	if c.Expert.DBMaxConns <= 0 || c.Expert.DBMinConns < 0 || c.Expert.DBMinConns > c.Expert.DBMaxConns {
		return fmt.Errorf("invalid expert.db_min_conns/db_max_conns")
	}
	if c.Actions.TelegramBot && c.Telegram.AccessToken == "" {
		return fmt.Errorf("actions.telegram_bot is enabled but telegram.access_token is empty")
	}
	if c.Actions.TelegramBot && c.Telegram.MaxInflight <= 0 {
		return fmt.Errorf("telegram.max_inflight must be > 0")
	}

	c.Sources = c.Sources[:0]
	for _, s := range c.Scraper.OfferSources {
		v, err := common.ParseSource(s)
		if err != nil {
			return fmt.Errorf("scraper.offer_sources: %w", err)
		}
		c.Sources = append(c.Sources, v)
	}
	c.OfferTypes = c.OfferTypes[:0]
	for _, s := range c.Scraper.OfferTypes {
		v, err := common.ParseOfferType(s)
		if err != nil {
			return fmt.Errorf("scraper.offer_types: %w", err)
		}
		c.OfferTypes = append(c.OfferTypes, v)
	}
	c.Durations = c.Durations[:0]
	for _, s := range c.Scraper.OfferDurations {
		v, err := common.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("scraper.offer_durations: %w", err)
		}
		c.Durations = append(c.Durations, v)
	}
	c.InfoSources = c.InfoSources[:0]
	for _, s := range c.Scraper.InfoSources {
		v, err := common.ParseInfoSource(s)
		if err != nil {
			return fmt.Errorf("scraper.info_sources: %w", err)
		}
		c.InfoSources = append(c.InfoSources, v)
	}
	return nil
}

// Enabled reports whether a scraper for (source, kind, duration) may run.
func (c *Config) Enabled(s common.Source, t common.OfferType, d common.OfferDuration) bool {
	return contains(c.Sources, s) && contains(c.OfferTypes, t) && contains(c.Durations, d)
}

// InfoSourceEnabled reports whether a metadata provider is switched on.
func (c *Config) InfoSourceEnabled(s common.InfoSource) bool {
	return contains(c.InfoSources, s)
}

// WebTimeout is the HTTP timeout for info providers.
func (c *Config) WebTimeout() time.Duration {
	return time.Duration(c.Expert.WebTimeoutSeconds) * time.Second
}

// WaitBetweenRuns is the pause between scraping passes.
func (c *Config) WaitBetweenRuns() time.Duration {
	return time.Duration(c.Common.WaitBetweenRunsSeconds) * time.Second
}

// DataPath resolves a file name relative to the data directory.
func (c *Config) DataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
