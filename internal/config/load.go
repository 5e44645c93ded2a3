package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MAILSCHED"

// Options tune where Load looks for settings.
type Options struct {
	// ConfigFile is an explicit YAML file. When empty, config.yaml is looked
	// up in the working directory and its absence is not an error.
	ConfigFile string
	// EnvFile is a dotenv file loaded into the process environment before
	// variables are read. Missing files are ignored.
	EnvFile string
	// Overrides set keys (e.g. "server.log_level") above every other
	// source, for command-line flags.
	Overrides map[string]any
}

// LoadWithOptions reads defaults, then the config file, then the environment,
// and validates the result. Environment variables take precedence.
func LoadWithOptions(opts Options) (*Config, error) {
	cfg, err := ReadWithOptions(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadWithOptions is LoadWithOptions without validation, for commands such
// as migrate that only need part of the configuration.
func ReadWithOptions(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(opts.EnvFile); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v)
	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.Storage.Driver == "postgres" && c.Database.URL == "" {
		return errors.New("config validation failed: database.url is required with the postgres driver")
	}

	switch c.Delivery.Provider {
	case "mailgun":
		if c.Delivery.Mailgun.Domain == "" || c.Delivery.Mailgun.APIKey == "" {
			return errors.New("config validation failed: delivery.mailgun.domain and delivery.mailgun.api_key are required")
		}
	case "ses":
		if c.Delivery.SES.Region == "" {
			return errors.New("config validation failed: delivery.ses.region is required")
		}
	}

	if c.Scan.Cron != "" {
		if _, err := cron.ParseStandard(c.Scan.Cron); err != nil {
			return fmt.Errorf("config validation failed: scan.cron: %w", err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("delivery.provider", "mailgun")
	v.SetDefault("delivery.timeout", "10s")
	v.SetDefault("schedule.utc_offset", "-03:00")
	v.SetDefault("scan.cron", "")
	v.SetDefault("scan.timeout", "2m")
	v.SetDefault("notifier.workers", 2)
	v.SetDefault("notifier.queue_size", 100)
	v.SetDefault("telemetry.service_name", "scheduled-mail-api")
	v.SetDefault("telemetry.otlp_endpoint", "")
}

// bindEnvs registers keys without defaults so AutomaticEnv sees them during Unmarshal.
func bindEnvs(v *viper.Viper) {
	for _, key := range []string{
		"database.url",
		"delivery.from_address",
		"delivery.mailgun.domain",
		"delivery.mailgun.api_key",
		"delivery.mailgun.api_base",
		"delivery.ses.region",
		"delivery.ses.endpoint",
	} {
		_ = v.BindEnv(key)
	}
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
