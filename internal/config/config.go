// Package config loads and validates the backend configuration from YAML
// files and CARSIGEF_-prefixed environment variables.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration of the backend.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Dataset DatasetConfig `mapstructure:"dataset"`
	MGI     MGIConfig     `mapstructure:"mgi"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatasetConfig configures where the match dataset comes from and how it is
// kept fresh.
type DatasetConfig struct {
	// Path is the local CSV the engine loads from. If it does not exist the
	// archive and then the source URL are tried, in that order.
	Path        string `mapstructure:"path"`
	ArchivePath string `mapstructure:"archive_path"`
	// SourceURL supports http(s):// and s3://bucket/key schemes.
	SourceURL    string        `mapstructure:"source_url"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// Watch reloads the dataset when the CSV changes on disk.
	Watch bool     `mapstructure:"watch"`
	S3    S3Config `mapstructure:"s3"`
}

// S3Config carries credentials for s3:// dataset sources.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// MGIConfig configures the Postgres connection used by the municipality
// CAR-totals importer.
type MGIConfig struct {
	DSN            string        `mapstructure:"dsn"`
	MaxConns       int32         `mapstructure:"max_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// Validate checks invariants that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset.path must be set")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}
