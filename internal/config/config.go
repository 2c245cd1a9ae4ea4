// Package config loads application configuration from config.yaml and
// ENRICH_* environment variables, and owns global logger setup.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Links     LinksConfig     `yaml:"links" mapstructure:"links"`
	Import    ImportConfig    `yaml:"import" mapstructure:"import"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the record store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// DirectoryConfig configures the external facility directory source.
type DirectoryConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the directory client timeout as a duration.
func (c DirectoryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// GeocodeConfig configures the geocoding client and the repair engine.
type GeocodeConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	BatchSize    int     `yaml:"batch_size" mapstructure:"batch_size"`
	BatchDelayMS int     `yaml:"batch_delay_ms" mapstructure:"batch_delay_ms"`
}

// SearchConfig configures the web search surface.
type SearchConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LinksConfig configures the link discovery engine.
type LinksConfig struct {
	CallDelayMS      int `yaml:"call_delay_ms" mapstructure:"call_delay_ms"`
	ProbeTimeoutSecs int `yaml:"probe_timeout_secs" mapstructure:"probe_timeout_secs"`
	FetchTimeoutSecs int `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	SlugMaxLen       int `yaml:"slug_max_len" mapstructure:"slug_max_len"`
}

// ImportConfig configures the import orchestrator.
type ImportConfig struct {
	BatchSize     int    `yaml:"batch_size" mapstructure:"batch_size"`
	Target        int    `yaml:"target" mapstructure:"target"`
	MinExisting   int    `yaml:"min_existing" mapstructure:"min_existing"`
	BatchDelayMS  int    `yaml:"batch_delay_ms" mapstructure:"batch_delay_ms"`
	ProgressEvery int    `yaml:"progress_every" mapstructure:"progress_every"`
	SeedState     string `yaml:"seed_state" mapstructure:"seed_state"`
	SeedType      string `yaml:"seed_type" mapstructure:"seed_type"`
}

// NotifyConfig configures the progress webhook.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "enrich.db")
	v.SetDefault("directory.base_url", "https://npiregistry.cms.hhs.gov/api")
	v.SetDefault("directory.timeout_secs", 15)
	v.SetDefault("geocode.base_url", "https://geocoding.geo.census.gov/geocoder")
	v.SetDefault("geocode.rate_per_sec", 2)
	v.SetDefault("geocode.batch_size", 25)
	v.SetDefault("geocode.batch_delay_ms", 1000)
	v.SetDefault("search.base_url", "https://html.duckduckgo.com/html")
	v.SetDefault("search.timeout_secs", 10)
	v.SetDefault("links.call_delay_ms", 2000)
	v.SetDefault("links.probe_timeout_secs", 8)
	v.SetDefault("links.fetch_timeout_secs", 15)
	v.SetDefault("links.slug_max_len", 30)
	v.SetDefault("import.batch_size", 50)
	v.SetDefault("import.target", 500)
	v.SetDefault("import.min_existing", 100)
	v.SetDefault("import.batch_delay_ms", 1500)
	v.SetDefault("import.progress_every", 25)
	v.SetDefault("import.seed_type", "hospital")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
