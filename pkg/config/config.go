package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the PriceChekRider service.
type Config struct {
	AppEnv string `mapstructure:"app_env"`

	Server         ServerConfig         `mapstructure:"server"`
	Logger         LoggerConfig         `mapstructure:"logger"`
	Sentry         SentryConfig         `mapstructure:"sentry"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	AfricasTalking AfricasTalkingConfig `mapstructure:"africastalking"`
	Notifier       NotifierConfig       `mapstructure:"notifier"`
	Commerce       CommerceConfig       `mapstructure:"commerce"`
	SMS            SMSConfig            `mapstructure:"sms"`
	RateLimit      RateLimitConfig      `mapstructure:"ratelimit"`
	Idempotency    IdempotencyConfig    `mapstructure:"idempotency"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LoggerConfig configures the root slog logger.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Environment string  `mapstructure:"environment"`
}

// DatabaseConfig selects the SQL driver and its connection parameters.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name" validate:"required"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the driver specific data source name.
func (c DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.Name
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// AfricasTalkingConfig holds gateway credentials and sender identity.
type AfricasTalkingConfig struct {
	Username   string        `mapstructure:"username"`
	APIKey     string        `mapstructure:"api_key"`
	Env        string        `mapstructure:"env" validate:"oneof=sandbox production techtribe"`
	Shortcode  string        `mapstructure:"shortcode"`
	SenderID   string        `mapstructure:"sender_id"`
	SSLVerify  bool          `mapstructure:"ssl_verify"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" validate:"min=0,max=5"`
	BaseURL    string        `mapstructure:"base_url"`
}

// Sender returns the outbound sender identity, preferring the shortcode.
func (c AfricasTalkingConfig) Sender() string {
	if c.Shortcode != "" {
		return c.Shortcode
	}

	return c.SenderID
}

// NotifierConfig selects the notification driver.
type NotifierConfig struct {
	Driver             string `mapstructure:"driver" validate:"oneof=africastalking log"`
	DefaultCountryCode string `mapstructure:"default_country_code" validate:"required,numeric"`
}

// CommerceConfig carries the constants used when pricing and confirming orders.
type CommerceConfig struct {
	DeliveryFee     int64  `mapstructure:"delivery_fee" validate:"min=0"`
	Currency        string `mapstructure:"currency" validate:"required"`
	DeliveryETA     string `mapstructure:"delivery_eta"`
	RiderName       string `mapstructure:"rider_name"`
	RiderContact    string `mapstructure:"rider_contact"`
	TrackingBaseURL string `mapstructure:"tracking_base_url" validate:"required,url"`
	CancelWindow    string `mapstructure:"cancel_window"`
	CatalogFile     string `mapstructure:"catalog_file"`
	RecentOrders    int    `mapstructure:"recent_orders" validate:"min=1"`
}

// SMSConfig tunes the SMS conversation engine.
type SMSConfig struct {
	SerializePerPhone bool          `mapstructure:"serialize_per_phone"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
}

// RateLimitConfig defines per-phone limits shared by both channels.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	PerPhone  RateLimitRule `mapstructure:"per_phone"`
	Whitelist []string      `mapstructure:"whitelist"`
}

// RateLimitRule is a limit within a window such as "1m".
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// IdempotencyConfig controls deduplication of redelivered SMS callbacks.
type IdempotencyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}
