package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Sync      SyncConfig      `yaml:"sync" mapstructure:"sync"`
	Sources   []SourceConfig  `yaml:"sources" mapstructure:"sources"`
	YouTube   YouTubeConfig   `yaml:"youtube" mapstructure:"youtube"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Alert     AlertConfig     `yaml:"alert" mapstructure:"alert"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SyncConfig controls the stall sync orchestrator.
type SyncConfig struct {
	Mode           string  `yaml:"mode" mapstructure:"mode"`
	MaxChangeRatio float64 `yaml:"max_change_ratio" mapstructure:"max_change_ratio"`
	ForceApply     bool    `yaml:"force_apply" mapstructure:"force_apply"`
	AdminToken     string  `yaml:"admin_token" mapstructure:"admin_token"`
	Schedule       string  `yaml:"schedule" mapstructure:"schedule"`
	ArtifactDir    string  `yaml:"artifact_dir" mapstructure:"artifact_dir"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SourceConfig describes one spreadsheet tab holding a cuisine's stalls.
type SourceConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	SheetID      string `yaml:"sheet_id" mapstructure:"sheet_id"`
	GID          string `yaml:"gid" mapstructure:"gid"`
	Tab          string `yaml:"tab" mapstructure:"tab"`
	File         string `yaml:"file" mapstructure:"file"`
	Cuisine      string `yaml:"cuisine" mapstructure:"cuisine"`
	CuisineLabel string `yaml:"cuisine_label" mapstructure:"cuisine_label"`
	Country      string `yaml:"country" mapstructure:"country"`
}

// YouTubeConfig holds YouTube Data API settings.
type YouTubeConfig struct {
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	ChannelID string `yaml:"channel_id" mapstructure:"channel_id"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	MaxPages  int    `yaml:"max_pages" mapstructure:"max_pages"`
}

// GeocodeConfig configures the geocoding providers.
type GeocodeConfig struct {
	GoogleKey    string `yaml:"google_key" mapstructure:"google_key"`
	NominatimURL string `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	IntervalMs   int    `yaml:"interval_ms" mapstructure:"interval_ms"`
	CacheTTLSecs int    `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// AnthropicConfig holds Anthropic API settings for the optional LLM assist.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AlertConfig configures where run summaries are forwarded.
type AlertConfig struct {
	WebhookURL     string `yaml:"webhook_url" mapstructure:"webhook_url"`
	TelegramToken  string `yaml:"telegram_token" mapstructure:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id" mapstructure:"telegram_chat_id"`
	On             string `yaml:"on" mapstructure:"on"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("STALLSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "stallsync.db")
	v.SetDefault("sync.mode", "dry-run")
	v.SetDefault("sync.max_change_ratio", 0.3)
	v.SetDefault("sync.force_apply", false)
	v.SetDefault("sync.timeout_secs", 30)
	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("youtube.max_pages", 200)
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "stallsync/1.0")
	v.SetDefault("geocode.interval_ms", 1100)
	v.SetDefault("geocode.cache_ttl_secs", 600)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("alert.on", "failure")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Keys without a real default still need registering, or AutomaticEnv
	// never resolves them.
	for _, key := range []string{
		"sync.admin_token",
		"sync.schedule",
		"sync.artifact_dir",
		"youtube.api_key",
		"youtube.channel_id",
		"geocode.google_key",
		"anthropic.key",
		"alert.webhook_url",
		"alert.telegram_token",
		"alert.telegram_chat_id",
	} {
		v.SetDefault(key, "")
	}

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

// Validate checks the config for the given command mode ("sync", "serve",
// "backfill-videos", "backfill-geo").
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Sync.MaxChangeRatio <= 0 || c.Sync.MaxChangeRatio > 1 {
		errs = append(errs, "sync.max_change_ratio must be in (0, 1]")
	}
	if c.Sync.Mode != "" && c.Sync.Mode != "dry-run" && c.Sync.Mode != "apply" {
		errs = append(errs, fmt.Sprintf("sync.mode must be dry-run or apply, got %q", c.Sync.Mode))
	}

	switch mode {
	case "sync":
		errs = append(errs, c.validateSources()...)
	case "serve":
		errs = append(errs, c.validateSources()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "backfill-videos":
		if c.YouTube.APIKey == "" {
			errs = append(errs, "youtube.api_key is required")
		}
		if c.YouTube.ChannelID == "" {
			errs = append(errs, "youtube.channel_id is required")
		}
	case "backfill-geo":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateSources() []string {
	if len(c.Sources) == 0 {
		return []string{"at least one entry in sources is required"}
	}
	var errs []string
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Key == "" {
			errs = append(errs, fmt.Sprintf("sources[%d].key is required", i))
		} else if seen[s.Key] {
			errs = append(errs, fmt.Sprintf("sources[%d].key %q is duplicated", i, s.Key))
		}
		seen[s.Key] = true
		if s.Cuisine == "" {
			errs = append(errs, fmt.Sprintf("sources[%d].cuisine is required", i))
		}
		if s.SheetID == "" && s.File == "" {
			errs = append(errs, fmt.Sprintf("sources[%d] needs sheet_id or file", i))
		}
	}
	return errs
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
