package config

import (
	"time"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Provider ProviderConfig `yaml:"provider"`
	Poller   PollerConfig   `yaml:"poller"`
	Storage  StorageConfig  `yaml:"storage"`
	Format   FormatConfig   `yaml:"format"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TelegramConfig holds bot credentials and transport timeouts.
type TelegramConfig struct {
	Token       string        `yaml:"token"        validate:"required"`
	Debug       bool          `yaml:"debug"`
	SendTimeout time.Duration `yaml:"send_timeout" validate:"gt=0"`
	PollTimeout time.Duration `yaml:"poll_timeout" validate:"gt=0"`
}

// ProviderConfig holds settings for the Blockchair API.
type ProviderConfig struct {
	BaseURL    string        `yaml:"base_url"    validate:"required,url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"     validate:"gt=0"`
	TxLimit    int           `yaml:"tx_limit"    validate:"gte=1,lte=100"`
	MaxBackoff time.Duration `yaml:"max_backoff" validate:"gte=0"`
}

// PollerConfig holds scheduling and detection settings.
type PollerConfig struct {
	Interval     time.Duration `yaml:"interval"      validate:"gt=0"`
	InitialDelay time.Duration `yaml:"initial_delay" validate:"gte=0"`
	Workers      int           `yaml:"workers"       validate:"gte=1"`
	Detection    string        `yaml:"detection"     validate:"oneof=head walk"`
	MaxPerCycle  int           `yaml:"max_per_cycle" validate:"gte=1"`
	IncomingOnly bool          `yaml:"incoming_only"`
	SendAttempts uint          `yaml:"send_attempts" validate:"gte=1"`
}

// StorageConfig selects and configures the state backend.
type StorageConfig struct {
	Driver      string `yaml:"driver"       validate:"oneof=file memory badger redis postgres"`
	Path        string `yaml:"path"         validate:"required_if=Driver file,required_if=Driver badger"`
	URL         string `yaml:"url"          validate:"required_if=Driver redis,required_if=Driver postgres"`
	Key         string `yaml:"key"`       // redis key
	MaxConns    int    `yaml:"max_conns"` // postgres pool size
	NotifiedCap int    `yaml:"notified_cap" validate:"gte=1"`
}

// FormatConfig controls how notifications are rendered.
type FormatConfig struct {
	ExplorerURL string `yaml:"explorer_url" validate:"required,contains=%s"`
	Timezone    string `yaml:"timezone"     validate:"timezone"`
	Ticker      string `yaml:"ticker"       validate:"required"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=1,lte=65535"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
