package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/dashnotifier/internal/core/domain"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse expands environment variables in data, unmarshals it and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (cfg *AppConfig) applyDefaults() {
	if cfg.Telegram.SendTimeout == 0 {
		cfg.Telegram.SendTimeout = 10 * time.Second
	}
	if cfg.Telegram.PollTimeout == 0 {
		cfg.Telegram.PollTimeout = 60 * time.Second
	}

	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.blockchair.com"
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = 10 * time.Second
	}
	if cfg.Provider.TxLimit == 0 {
		cfg.Provider.TxLimit = 10
	}
	if cfg.Provider.MaxBackoff == 0 {
		cfg.Provider.MaxBackoff = 5 * time.Minute
	}

	if cfg.Poller.Interval == 0 {
		cfg.Poller.Interval = 30 * time.Second
	}
	if cfg.Poller.Workers == 0 {
		cfg.Poller.Workers = 4
	}
	if cfg.Poller.Detection == "" {
		cfg.Poller.Detection = "head"
	}
	if cfg.Poller.MaxPerCycle == 0 {
		cfg.Poller.MaxPerCycle = 5
	}
	if cfg.Poller.SendAttempts == 0 {
		cfg.Poller.SendAttempts = 3
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "file"
	}
	if cfg.Storage.Path == "" && cfg.Storage.Driver == "file" {
		cfg.Storage.Path = "storage.json"
	}
	if cfg.Storage.Key == "" {
		cfg.Storage.Key = "dashnotifier:state"
	}
	if cfg.Storage.NotifiedCap == 0 {
		cfg.Storage.NotifiedCap = domain.DefaultNotifiedCap
	}

	if cfg.Format.ExplorerURL == "" {
		cfg.Format.ExplorerURL = "https://blockchair.com/dash/transaction/%s"
	}
	if cfg.Format.Timezone == "" {
		cfg.Format.Timezone = "UTC"
	}
	if cfg.Format.Ticker == "" {
		cfg.Format.Ticker = "DASH"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
