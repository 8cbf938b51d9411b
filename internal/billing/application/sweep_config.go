package application

import (
	"os"

	"gopkg.in/yaml.v3"
)

// SweepConfig defines the nightly penalty sweep schedule.
type SweepConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Cron       string `yaml:"cron"`
	WebhookURL string `yaml:"webhook_url"`
}

// LoadSweepConfig loads sweep config from yaml or env. Without a config file
// the sweep runs nightly at 01:00.
func LoadSweepConfig() (SweepConfig, error) {
	cfg := SweepConfig{
		Enabled:    true,
		Cron:       getenvDefault("PENALTY_SWEEP_CRON", "0 1 * * *"),
		WebhookURL: os.Getenv("PENALTY_SWEEP_WEBHOOK_URL"),
	}

	if path := os.Getenv("PENALTY_SWEEP_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Cron == "" {
		cfg.Cron = "0 1 * * *"
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
