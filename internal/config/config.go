package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"auction-advisor/internal/alertcfg"
	"auction-advisor/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Auction   AuctionConfig   `mapstructure:"auction"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// AuctionConfig describes the league rules and the candidate sources.
type AuctionConfig struct {
	Budget       int         `mapstructure:"budget"`
	Teams        int         `mapstructure:"teams"`
	Operator     string      `mapstructure:"operator"`
	Slots        SlotsConfig `mapstructure:"slots"`
	StrictBudget bool        `mapstructure:"strict_budget"`
	// Candidates lists CSV files merged in order; later files override.
	Candidates []string `mapstructure:"candidates"`
	Similarity float64  `mapstructure:"similarity"`
}

// SlotsConfig is the roster capacity per position.
type SlotsConfig struct {
	Goalkeepers int `mapstructure:"goalkeepers"`
	Defenders   int `mapstructure:"defenders"`
	Midfielders int `mapstructure:"midfielders"`
	Forwards    int `mapstructure:"forwards"`
}

// AlertsConfig selects the alert profile and its hand-tuned fields.
type AlertsConfig struct {
	PlayStyle string             `mapstructure:"play_style"`
	Overrides alertcfg.Overrides `mapstructure:",squash"`
}

// Profile builds the alert configuration described by the section.
func (a AlertsConfig) Profile() (alertcfg.Config, error) {
	style, err := alertcfg.ParsePlayStyle(a.PlayStyle)
	if err != nil {
		return alertcfg.Config{}, err
	}
	return alertcfg.Build(style, a.Overrides)
}

// SchedulerConfig governs the analysis cadence. A zero Interval follows the
// alert profile's frequency.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	Predictive   bool          `mapstructure:"predictive"`
}

// StorageConfig selects and configures the session store. An empty driver
// keeps the session in memory only.
type StorageConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SessionID       string        `mapstructure:"session_id"`
}

// AlertingConfig defines outbound alert routing.
type AlertingConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	MinLevel    string         `mapstructure:"min_level"`
	MinPriority int            `mapstructure:"min_priority"`
	Cooldown    time.Duration  `mapstructure:"cooldown"`
	Channels    []string       `mapstructure:"channels"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram bot used for alerts.
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	APIBase        string        `mapstructure:"api_base"`
	RatePerMinute  int           `mapstructure:"rate_per_minute"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	Dir           string `mapstructure:"dir"`
	MaxDataPoints int    `mapstructure:"max_data_points"`
}

// overrideKeys are the alerts.* keys that have no default and must be bound
// explicitly so environment variables reach them.
var overrideKeys = []string{
	"budget_critical", "budget_warning",
	"scarcity_critical", "scarcity_warning",
	"velocity_fast", "velocity_slow",
	"inflation_high", "inflation_low",
	"predictive", "sound", "frequency", "max_alerts_display",
	"auto_dismiss_info", "auto_dismiss_timeout",
	"weight_budget", "weight_scarcity", "weight_timing", "weight_competition", "weight_strategy",
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUCTIONADVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for _, key := range overrideKeys {
		if err := v.BindEnv("alerts." + key); err != nil {
			return nil, fmt.Errorf("bind alerts.%s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "auctionadvisor")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("auction.budget", 500)
	v.SetDefault("auction.teams", 10)
	v.SetDefault("auction.operator", "me")
	v.SetDefault("auction.slots.goalkeepers", 3)
	v.SetDefault("auction.slots.defenders", 8)
	v.SetDefault("auction.slots.midfielders", 8)
	v.SetDefault("auction.slots.forwards", 6)
	v.SetDefault("auction.strict_budget", false)
	v.SetDefault("auction.candidates", []string{})
	v.SetDefault("auction.similarity", 0.85)

	v.SetDefault("alerts.play_style", string(alertcfg.Balanced))

	v.SetDefault("scheduler.interval", "0s")
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.predictive", true)

	v.SetDefault("storage.driver", "")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.max_open_conns", 10)
	v.SetDefault("storage.max_idle_conns", 2)
	v.SetDefault("storage.conn_max_lifetime", "30m")
	v.SetDefault("storage.session_id", "")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.min_level", string(alertcfg.LevelCritical))
	v.SetDefault("alerting.min_priority", 8)
	v.SetDefault("alerting.cooldown", "2m")
	v.SetDefault("alerting.channels", []string{})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.rate_per_minute", 20)
	v.SetDefault("alerting.telegram.max_retries", 3)
	v.SetDefault("alerting.telegram.request_timeout", "10s")

	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.max_data_points", 1000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Auction.Budget <= 0 {
		return fmt.Errorf("auction.budget must be greater than zero")
	}
	if c.Auction.Teams <= 0 {
		return fmt.Errorf("auction.teams must be greater than zero")
	}
	s := c.Auction.Slots
	if s.Goalkeepers < 0 || s.Defenders < 0 || s.Midfielders < 0 || s.Forwards < 0 {
		return fmt.Errorf("auction.slots cannot be negative")
	}
	if c.Auction.Similarity < 0 || c.Auction.Similarity > 1 {
		return fmt.Errorf("auction.similarity must be within [0, 1]")
	}
	if _, err := c.Alerts.Profile(); err != nil {
		return fmt.Errorf("alerts: %w", err)
	}
	if c.Scheduler.Interval < 0 {
		return fmt.Errorf("scheduler.interval cannot be negative")
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "", "sqlite":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
