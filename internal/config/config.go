package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr  string           `yaml:"listen_addr"`
	PolicyPath  string           `yaml:"policy_path"`
	WatchPolicy bool             `yaml:"watch_policy"`
	Log         LogConfig        `yaml:"log"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Engine      EngineConfig     `yaml:"engine"`
	DB          DBConfig         `yaml:"db"`
	Audit       AuditConfig      `yaml:"audit"`
	SigningKey  SigningKeyConfig `yaml:"signing_key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

type EngineConfig struct {
	// Unset means true.
	Verify *bool `yaml:"verify_alternatives"`
}

// VerifyAlternatives reports whether synthesized alternatives are re-evaluated.
func (e EngineConfig) VerifyAlternatives() bool {
	return e.Verify == nil || *e.Verify
}

type DBConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type AuditConfig struct {
	RetentionDays int    `yaml:"retention_days"`
	PruneSchedule string `yaml:"prune_schedule"`
}

type SigningKeyConfig struct {
	KeyID          string `yaml:"key_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

func Load(path string) (Config, error) {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.PolicyPath == "" {
		return fmt.Errorf("policy_path is required")
	}

	switch c.DB.Driver {
	case "", "memory":
	case "sqlite", "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required when db.driver is %s", c.DB.Driver)
		}
	default:
		return fmt.Errorf("db.driver must be memory, sqlite or postgres, got %q", c.DB.Driver)
	}

	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative")
	}
	if c.Audit.PruneSchedule != "" {
		if _, err := cron.ParseStandard(c.Audit.PruneSchedule); err != nil {
			return fmt.Errorf("audit.prune_schedule: %w", err)
		}
	}

	if c.SigningKey.PrivateKeyPath != "" && c.SigningKey.KeyID == "" {
		return fmt.Errorf("signing_key.key_id is required when signing_key.private_key_path is set")
	}
	return nil
}
