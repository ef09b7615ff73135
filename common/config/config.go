package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all tool configuration
type Config struct {
	Service  ServiceConfig
	Database DatabaseConfig
}

// ServiceConfig holds tool-level settings
type ServiceConfig struct {
	Environment string
	LogLevel    string
	LogFormat   string

	// MacrosDir is the directory of shared SQL template macros, relative to
	// the project root.
	MacrosDir string
}

// DatabaseConfig holds ClickHouse connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	// StateTable is the audit-log table name.
	StateTable string
}

// Load reads config.yaml from the project root, with CHMIG_* environment
// variables taking precedence over file values.
func Load(projectRoot, environment string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(projectRoot)

	v.SetEnvPrefix("CHMIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 9000)
	v.SetDefault("database.state_table", "changelog_state")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("macros_dir", "macros")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config.yaml: env vars and defaults carry the load.
	}

	cfg := &Config{
		Service: ServiceConfig{
			Environment: environment,
			LogLevel:    v.GetString("log.level"),
			LogFormat:   v.GetString("log.format"),
			MacrosDir:   v.GetString("macros_dir"),
		},
		Database: DatabaseConfig{
			Host:       v.GetString("database.host"),
			Port:       v.GetInt("database.port"),
			Database:   v.GetString("database.database"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			StateTable: v.GetString("database.state_table"),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.StateTable == "" {
		return fmt.Errorf("state table name is required")
	}

	return nil
}

// DSN returns the ClickHouse connection string
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"clickhouse://%s:%s@%s:%d/%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// Variables merges variables/common.yaml with variables/<env>.yaml under the
// project root; the environment file wins on conflicting keys. Missing files
// contribute nothing.
func Variables(projectRoot, environment string) (map[string]any, error) {
	result := make(map[string]any)

	paths := []string{
		filepath.Join(projectRoot, "variables", "common.yaml"),
		filepath.Join(projectRoot, "variables", environment+".yaml"),
	}

	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read variables file %s: %w", path, err)
		}

		vars := make(map[string]any)
		if err := yaml.Unmarshal(raw, &vars); err != nil {
			return nil, fmt.Errorf("failed to parse variables file %s: %w", path, err)
		}

		for k, v := range vars {
			result[k] = v
		}
	}

	return result, nil
}
