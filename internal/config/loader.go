package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/zetta-ds/carsigef/pkg/errors"
)

const envPrefix = "CARSIGEF"

// Load reads configuration from the given file (optional) layered under
// CARSIGEF_-prefixed environment variables, applies defaults and validates
// the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeConfig, "read config file")
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// Config files are optional; env and defaults are enough.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeConfig, "read config file")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfig, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfig, "validate config")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("dataset.path", "data/resultado_match_jaccard.csv")
	v.SetDefault("dataset.archive_path", "")
	v.SetDefault("dataset.source_url", "")
	v.SetDefault("dataset.fetch_timeout", 5*time.Minute)
	v.SetDefault("dataset.watch", false)
	v.SetDefault("dataset.s3.endpoint", "")
	v.SetDefault("dataset.s3.access_key", "")
	v.SetDefault("dataset.s3.secret_key", "")
	v.SetDefault("dataset.s3.use_ssl", true)

	v.SetDefault("mgi.dsn", "")
	v.SetDefault("mgi.max_conns", 4)
	v.SetDefault("mgi.connect_timeout", 10*time.Second)
	v.SetDefault("mgi.query_timeout", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}
