package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samvad-hq/samvad-feed-digest/internal/timestamp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files, environment variables and flags.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	FeedsFile      string `mapstructure:"feeds_file"`
	PublishersFile string `mapstructure:"publishers_file"`
	Schedule       string `mapstructure:"schedule"`

	WindowDays            int      `mapstructure:"window_days"`
	StripHTMLDescriptions bool     `mapstructure:"strip_html_descriptions"`
	TimezoneAbbreviations []string `mapstructure:"timezone_abbreviations"`
	ReportFilename        string   `mapstructure:"report_filename"`

	FetchTimeoutSeconds int64         `mapstructure:"fetch_timeout_seconds"`
	FetchTimeout        time.Duration `mapstructure:"-"`
	UserAgent           string        `mapstructure:"user_agent"`
	FallbackUserAgent   string        `mapstructure:"fallback_user_agent"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`

	Zones map[string]string `mapstructure:"-"`
}

// Flag names understood by LoadWithFlags, keyed by config key.
var flagKeys = map[string]string{
	"feeds_file":      "feeds",
	"publishers_file": "publishers",
	"window_days":     "window-days",
	"schedule":        "schedule",
	"log_level":       "log-level",
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags is Load with explicitly set command-line flags taking precedence.
func LoadWithFlags(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-feed-digest")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("feeds_file", "./configs/feeds.txt")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("schedule", "0 0 12 * * 1") // Monday noon
	v.SetDefault("window_days", 7)
	v.SetDefault("strip_html_descriptions", false)
	v.SetDefault("timezone_abbreviations", []string{})
	v.SetDefault("report_filename", "feed.csv")
	v.SetDefault("fetch_timeout_seconds", 20)
	v.SetDefault("user_agent", "Mozilla/5.0 (platform; rv:17.0) Gecko/20100101 Firefox/17.0")
	v.SetDefault("fallback_user_agent", "Mozilla/5.0")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/runs.db")
	v.SetDefault("storage_ttl_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	if fs != nil {
		for key, name := range flagKeys {
			if flag := fs.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) finalize() error {
	cfg.FeedsFile = strings.TrimSpace(cfg.FeedsFile)
	cfg.PublishersFile = strings.TrimSpace(cfg.PublishersFile)
	cfg.Schedule = strings.TrimSpace(cfg.Schedule)
	cfg.ReportFilename = strings.TrimSpace(cfg.ReportFilename)

	if cfg.FeedsFile == "" {
		return fmt.Errorf("feeds_file is required")
	}
	if cfg.WindowDays < 0 {
		return fmt.Errorf("invalid window_days (must be >= 0 days)")
	}
	if cfg.ReportFilename == "" {
		return fmt.Errorf("report_filename must not be empty")
	}

	if cfg.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid fetch_timeout_seconds (must be positive seconds)")
	}
	cfg.FetchTimeout = time.Duration(cfg.FetchTimeoutSeconds) * time.Second

	if strings.TrimSpace(cfg.UserAgent) == "" {
		return fmt.Errorf("user_agent must not be empty")
	}

	if cfg.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	zones, err := timestamp.ParseZoneTable(splitList(cfg.TimezoneAbbreviations))
	if err != nil {
		return fmt.Errorf("invalid timezone_abbreviations: %w", err)
	}
	cfg.Zones = zones

	return nil
}

// splitList flattens entries that still carry comma or space separators.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})...)
	}
	return out
}
