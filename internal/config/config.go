package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage" validate:"required"`
	Delivery  DeliveryConfig  `mapstructure:"delivery" validate:"required"`
	Schedule  ScheduleConfig  `mapstructure:"schedule" validate:"required"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Notifier  NotifierConfig  `mapstructure:"notifier" validate:"required"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig contains PostgreSQL settings. Only required with the postgres driver.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// StorageConfig selects the task store implementation.
type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres memory"`
}

// DeliveryConfig contains email delivery settings.
type DeliveryConfig struct {
	Provider    string        `mapstructure:"provider" validate:"required,oneof=mailgun ses"`
	FromAddress string        `mapstructure:"from_address" validate:"required,email"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"required,gt=0"`
	Mailgun     MailgunConfig `mapstructure:"mailgun"`
	SES         SESConfig     `mapstructure:"ses"`
}

// MailgunConfig contains Mailgun API settings.
type MailgunConfig struct {
	Domain  string `mapstructure:"domain"`
	APIKey  string `mapstructure:"api_key"`
	APIBase string `mapstructure:"api_base" validate:"omitempty,url"`
}

// SESConfig contains Amazon SES settings. Credentials come from the default AWS chain.
type SESConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}

// ScheduleConfig controls how civil schedule times are interpreted.
type ScheduleConfig struct {
	UTCOffset string `mapstructure:"utc_offset" validate:"required"`
}

// ScanConfig controls the in-process due-task scan driver.
type ScanConfig struct {
	// Cron is a standard five-field cron expression. Empty disables the driver.
	Cron    string        `mapstructure:"cron"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// NotifierConfig sizes the follow-up notification worker pool.
type NotifierConfig struct {
	Workers   int `mapstructure:"workers" validate:"required,gt=0"`
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`
}

// TelemetryConfig contains tracing settings.
type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}
