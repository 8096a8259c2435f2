package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
)

// Config represents the ormmeta configuration
type Config struct {
	ModelFile string         `mapstructure:"model_file" yaml:"model_file"`
	NoColor   bool           `mapstructure:"no_color" yaml:"no_color,omitempty"`
	Verbose   bool           `mapstructure:"verbose" yaml:"verbose,omitempty"`
	Model     ModelConfig    `mapstructure:"model" yaml:"model"`
	Database  DatabaseConfig `mapstructure:"database" yaml:"database,omitempty"`
	Serve     ServeConfig    `mapstructure:"serve" yaml:"serve,omitempty"`
	Registry  RegistryConfig `mapstructure:"registry" yaml:"registry,omitempty"`
}

// ModelConfig holds the model-wide defaults applied before the model file
type ModelConfig struct {
	ChangeTracking string `mapstructure:"change_tracking" yaml:"change_tracking"`
	AccessMode     string `mapstructure:"access_mode" yaml:"access_mode"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url,omitempty"`
}

// ServeConfig configures the HTTP server of the serve command
type ServeConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr,omitempty"`
	// JWTSecret enables bearer token auth when set
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty"`
}

// RegistryConfig locates the Redis server models are published to
type RegistryConfig struct {
	URL  string `mapstructure:"url" yaml:"url,omitempty"`
	Name string `mapstructure:"name" yaml:"name,omitempty"`
}

// EnvPrefix prefixes the environment variables read by Load, e.g. ORMMETA_MODEL_FILE
const EnvPrefix = "ORMMETA"

// Load reads the configuration. An explicit path must exist; otherwise
// ormmeta.yml or ormmeta.yaml in the working directory is read when present.
// Environment variables override the file.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("model_file", "model.yml")
	v.SetDefault("no_color", false)
	v.SetDefault("verbose", false)
	v.SetDefault("model.change_tracking", metadata.Snapshot.String())
	v.SetDefault("model.access_mode", metadata.AccessModeDefault.String())
	v.SetDefault("database.url", "")
	v.SetDefault("serve.addr", "localhost:8080")
	v.SetDefault("serve.jwt_secret", "")
	v.SetDefault("registry.url", "")
	v.SetDefault("registry.name", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ormmeta")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Save validates c and writes it to path as YAML. An existing file is only
// replaced when overwrite is set.
func Save(path string, c *Config, overwrite bool) error {
	if err := validateConfig(c); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}

// ChangeTrackingStrategy returns the configured model default
func (c *Config) ChangeTrackingStrategy() metadata.ChangeTrackingStrategy {
	s, _ := metadata.ParseChangeTrackingStrategy(c.Model.ChangeTracking)
	return s
}

// PropertyAccessMode returns the configured model default
func (c *Config) PropertyAccessMode() metadata.PropertyAccessMode {
	m, _ := metadata.ParsePropertyAccessMode(c.Model.AccessMode)
	return m
}

// DatabaseURL returns DATABASE_URL when set, then the configured URL
func (c *Config) DatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return c.Database.URL
}

// ResolveModelFile returns the model file path relative to the config file
// directory when it is not absolute
func (c *Config) ResolveModelFile(configDir string) string {
	if c.ModelFile == "" || filepath.IsAbs(c.ModelFile) || configDir == "" {
		return c.ModelFile
	}
	return filepath.Join(configDir, c.ModelFile)
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if _, err := metadata.ParseChangeTrackingStrategy(cfg.Model.ChangeTracking); err != nil {
		return fmt.Errorf("model.change_tracking: %w", err)
	}
	if _, err := metadata.ParsePropertyAccessMode(cfg.Model.AccessMode); err != nil {
		return fmt.Errorf("model.access_mode: %w", err)
	}
	if cfg.ModelFile == "" {
		return fmt.Errorf("model_file must not be empty")
	}
	return nil
}
