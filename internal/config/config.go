// Package config loads and validates the application configuration and holds
// the runtime-tunable selection settings.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML scalars like "30s" or "2m" via time.ParseDuration.
type Duration struct {
	value time.Duration
}

// UnmarshalYAML accepts Go duration strings and bare integers as seconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		d.value = 0
		return nil
	}
	text := strings.TrimSpace(node.Value)
	if text == "" {
		d.value = 0
		return nil
	}
	if parsed, err := time.ParseDuration(text); err == nil {
		d.value = parsed
		return nil
	}
	var seconds int
	if err := node.Decode(&seconds); err == nil {
		d.value = time.Duration(seconds) * time.Second
		return nil
	}
	return fmt.Errorf("invalid duration %q", text)
}

// Value returns the decoded duration.
func (d Duration) Value() time.Duration { return d.value }

// DurationOf wraps a time.Duration, primarily for defaults and tests.
func DurationOf(v time.Duration) Duration { return Duration{value: v} }

// ExchangeConfig locates the venue endpoints.
type ExchangeConfig struct {
	InfoURL     string   `yaml:"info_url"`
	StatsURL    string   `yaml:"stats_url"`
	HTTPTimeout Duration `yaml:"http_timeout"`
}

// TelegramConfig holds the bot credentials and target chat.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// SelectionConfig bounds which leaderboard traders are tracked. MinPnl and
// MinRoi are decimal strings; ROI is in percent.
type SelectionConfig struct {
	Timeframe string `yaml:"timeframe"`
	MinPnl    string `yaml:"min_pnl"`
	MinRoi    string `yaml:"min_roi"`
	Limit     int    `yaml:"limit"`
}

// SchedulerConfig bounds the poll cadence.
type SchedulerConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
	TraderDelay  Duration `yaml:"trader_delay"`
}

// NotifyConfig sizes the dispatch queue.
type NotifyConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// TelemetryConfig configures the optional OTLP metrics exporter.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

// AppConfig is the root configuration document.
type AppConfig struct {
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Selection SelectionConfig `yaml:"selection"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Notify    NotifyConfig    `yaml:"notify"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Debug     bool            `yaml:"debug"`
}

// Default returns the configuration used when a field is left unset.
func Default() AppConfig {
	return AppConfig{
		Exchange: ExchangeConfig{
			InfoURL:     "https://api.hyperliquid.xyz",
			StatsURL:    "https://stats-data.hyperliquid.xyz/Mainnet",
			HTTPTimeout: DurationOf(10 * time.Second),
		},
		Selection: SelectionConfig{
			Timeframe: "month",
			MinPnl:    "1000000",
			MinRoi:    "50",
			Limit:     10,
		},
		Scheduler: SchedulerConfig{
			PollInterval: DurationOf(30 * time.Second),
			TraderDelay:  DurationOf(500 * time.Millisecond),
		},
		Notify: NotifyConfig{QueueSize: 256},
		Telemetry: TelemetryConfig{
			ServiceName: "hyperwatch",
		},
	}
}

// Load reads and validates the YAML configuration at path. Environment
// variables HYPERWATCH_TELEGRAM_TOKEN and HYPERWATCH_CHAT_ID override the
// file so credentials can stay out of it.
func Load(path string) (AppConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) applyEnv() {
	if token := os.Getenv("HYPERWATCH_TELEGRAM_TOKEN"); token != "" {
		c.Telegram.Token = token
	}
	if chat := os.Getenv("HYPERWATCH_CHAT_ID"); chat != "" {
		var id int64
		if _, err := fmt.Sscan(chat, &id); err == nil {
			c.Telegram.ChatID = id
		}
	}
}

func (c *AppConfig) normalise() {
	defaults := Default()
	if strings.TrimSpace(c.Exchange.InfoURL) == "" {
		c.Exchange.InfoURL = defaults.Exchange.InfoURL
	}
	if strings.TrimSpace(c.Exchange.StatsURL) == "" {
		c.Exchange.StatsURL = defaults.Exchange.StatsURL
	}
	if c.Exchange.HTTPTimeout.Value() <= 0 {
		c.Exchange.HTTPTimeout = defaults.Exchange.HTTPTimeout
	}
	if strings.TrimSpace(c.Selection.Timeframe) == "" {
		c.Selection.Timeframe = defaults.Selection.Timeframe
	}
	if strings.TrimSpace(c.Selection.MinPnl) == "" {
		c.Selection.MinPnl = defaults.Selection.MinPnl
	}
	if strings.TrimSpace(c.Selection.MinRoi) == "" {
		c.Selection.MinRoi = defaults.Selection.MinRoi
	}
	if c.Selection.Limit <= 0 {
		c.Selection.Limit = defaults.Selection.Limit
	}
	if c.Scheduler.PollInterval.Value() <= 0 {
		c.Scheduler.PollInterval = defaults.Scheduler.PollInterval
	}
	if c.Scheduler.TraderDelay.Value() <= 0 {
		c.Scheduler.TraderDelay = defaults.Scheduler.TraderDelay
	}
	if c.Notify.QueueSize <= 0 {
		c.Notify.QueueSize = defaults.Notify.QueueSize
	}
	if strings.TrimSpace(c.Telemetry.ServiceName) == "" {
		c.Telemetry.ServiceName = defaults.Telemetry.ServiceName
	}
}

// Validate rejects configurations that cannot run.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("config: telegram token is required")
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("config: telegram chat_id is required")
	}
	return nil
}
