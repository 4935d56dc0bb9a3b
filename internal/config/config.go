// Package config loads and validates run configuration from flags,
// DELTASCAN_* environment variables, and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"deltascan/internal/model"

	"github.com/spf13/viper"
)

// Vault holds the secret reference used when no direct DSN is configured.
type Vault struct {
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
	Path    string `mapstructure:"path"`
	Key     string `mapstructure:"key"`
}

// Connection describes how to reach the scanned database: a direct DSN or
// a vault-resolved secret, never both.
type Connection struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Vault  Vault  `mapstructure:"vault"`
}

type Config struct {
	DeltaPath    string `mapstructure:"delta"`
	PolicyPath   string `mapstructure:"policy"`
	PatternsPath string `mapstructure:"patterns"`
	OutputPath   string `mapstructure:"out"`

	DefaultSchema string        `mapstructure:"default-schema"`
	SampleSize    int           `mapstructure:"sample-size"`
	QueryTimeout  time.Duration `mapstructure:"query-timeout"`
	ParseTimeout  time.Duration `mapstructure:"parse-timeout"`
	Workers       int           `mapstructure:"workers"`

	ForceContinue bool   `mapstructure:"force-continue"`
	ForceReason   string `mapstructure:"force-reason"`

	Connection Connection `mapstructure:"connection"`
}

var supportedDrivers = map[string]struct{}{
	"sqlserver": {}, "mssql": {},
	"postgres": {}, "postgresql": {}, "pgx": {},
	"mysql": {}, "mariadb": {},
	"duckdb": {},
}

// NewViper builds the configured viper instance with defaults and env
// binding. Callers bind their flag set on top.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("DELTASCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("default-schema", "dbo")
	v.SetDefault("sample-size", 1000)
	v.SetDefault("query-timeout", 30*time.Second)
	v.SetDefault("parse-timeout", 2*time.Second)
	v.SetDefault("workers", 1)

	v.SetConfigName("deltascan")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	return v
}

// Load unmarshals the effective configuration. A missing config file is
// fine; a malformed one is a configuration error.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, model.NewScanError(model.ErrCodeConfigInvalid, "reading config file", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, model.NewScanError(model.ErrCodeConfigInvalid, "unmarshaling configuration", err)
	}
	return &cfg, nil
}

// Validate fails fast on missing or contradictory settings, before any
// file or network I/O.
func (c *Config) Validate() error {
	fail := func(msg string) error {
		return model.NewScanError(model.ErrCodeConfigInvalid, msg, nil)
	}

	if c.DeltaPath == "" {
		return fail("delta script path is required")
	}
	if c.Connection.Driver == "" {
		return fail("database driver is required")
	}
	if _, ok := supportedDrivers[strings.ToLower(c.Connection.Driver)]; !ok {
		return fail(fmt.Sprintf("unsupported database driver %q", c.Connection.Driver))
	}

	hasDSN := c.Connection.DSN != ""
	hasVault := c.Connection.Vault.Address != "" || c.Connection.Vault.Path != ""
	switch {
	case hasDSN && hasVault:
		return fail("connection dsn and vault reference are mutually exclusive")
	case !hasDSN && !hasVault:
		return fail("either a connection dsn or a vault reference is required")
	case hasVault && (c.Connection.Vault.Address == "" || c.Connection.Vault.Path == "" || c.Connection.Vault.Key == ""):
		return fail("vault reference requires address, path, and key")
	}

	if c.SampleSize <= 0 {
		return fail("sample size must be positive")
	}
	if c.Workers <= 0 {
		return fail("workers must be positive")
	}
	if c.ForceContinue && strings.TrimSpace(c.ForceReason) == "" {
		return fail("force-continue requires a reason for the audit trail")
	}
	return nil
}
