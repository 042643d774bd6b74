// Package config loads server settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/erazemk/odpadki/internal/oracle"
)

// Media backends.
const (
	MediaSQLite = "sqlite"
	MediaS3     = "s3"
)

// Config holds all configuration for the server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	JWT      JWTConfig      `yaml:"jwt"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Media    MediaConfig    `yaml:"media"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	File string `yaml:"file"`
}

// JWTConfig holds the signing secret. When empty a secret is generated and
// kept in the database.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type OracleConfig struct {
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	VerifyTimeout time.Duration `yaml:"verify_timeout"`
}

type MediaConfig struct {
	Backend  string `yaml:"backend"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
	S3Prefix string `yaml:"s3_prefix"`
	// S3Endpoint points at an S3-compatible provider instead of AWS.
	S3Endpoint string `yaml:"s3_endpoint"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "odpadki.db"},
		Oracle: OracleConfig{
			Model:         oracle.DefaultModel,
			VerifyTimeout: 30 * time.Second,
		},
		Media: MediaConfig{Backend: MediaSQLite, S3Region: "us-east-1"},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides secrets from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("GEMINI_API_KEY"); v != "" {
		c.Oracle.APIKey = v
	}
	if v := getenv("ODPADKI_JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	switch c.Media.Backend {
	case MediaSQLite:
	case MediaS3:
		if c.Media.S3Bucket == "" {
			errs = append(errs, errors.New("media.s3_bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown media.backend %q", c.Media.Backend))
	}
	if c.Oracle.VerifyTimeout <= 0 {
		errs = append(errs, errors.New("oracle.verify_timeout must be positive"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	return errors.Join(errs...)
}
