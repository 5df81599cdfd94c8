// Package config provides configuration loading and validation utilities.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// legacyEnv maps config keys to the environment names used by earlier deployments.
var legacyEnv = map[string]string{
	"africastalking.username":   "AT_USERNAME",
	"africastalking.api_key":    "AT_API_KEY",
	"africastalking.env":        "AT_ENV",
	"africastalking.shortcode":  "AT_SHORTCODE",
	"africastalking.sender_id":  "AT_SENDER_ID",
	"africastalking.ssl_verify": "AT_SSL_VERIFY",
	"database.host":             "DB_HOST",
	"database.port":             "DB_PORT",
	"database.user":             "DB_USER",
	"database.password":         "DB_PASSWORD",
	"database.name":             "DB_NAME",
	"sentry.dsn":                "SENTRY_DSN",
}

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	if err := loadEnvFiles(".env.local", ".env"); err != nil {
		return nil, nil, err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "./configs"
	}

	return LoadFile(env, fmt.Sprintf("%s/%s.yaml", strings.TrimRight(dir, "/"), env))
}

// loadEnvFiles loads each dotenv file in order. Earlier files win because
// godotenv never overrides a variable that is already set. Missing files are skipped.
func loadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}

	return nil
}

// LoadFile builds the configuration for env from path, which may not exist.
func LoadFile(env, path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return nil, nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
		v.SetConfigFile("")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env
	if cfg.Sentry.Environment == "" {
		cfg.Sentry.Environment = env
	}

	if err := Validate(&cfg); err != nil {
		return nil, nil, err
	}

	return &cfg, v, nil
}

// Validate checks struct constraints on cfg.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if cfg.Notifier.Driver == "africastalking" && (cfg.AfricasTalking.Username == "" || cfg.AfricasTalking.APIKey == "") {
		return errors.New("validate config: africastalking username and api_key are required for the africastalking notifier")
	}

	return nil
}

// Watch reloads the config file on change and hands the result to onChange.
// It is a no-op when no config file was read.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(*Config)) {
	if v == nil || v.ConfigFileUsed() == "" || onChange == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			log.Error("failed to reload config", slog.String("file", e.Name), slog.Any("error", err))
			return
		}

		log.Info("config file changed", slog.String("file", e.Name))
		onChange(&cfg)
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 14)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.sample_rate", 1.0)
	v.SetDefault("sentry.environment", "")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "pricechek")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.pool_timeout", 4*time.Second)
	v.SetDefault("redis.idle_timeout", 5*time.Minute)
	v.SetDefault("redis.max_retries", 3)

	v.SetDefault("africastalking.username", "sandbox")
	v.SetDefault("africastalking.api_key", "")
	v.SetDefault("africastalking.env", "sandbox")
	v.SetDefault("africastalking.shortcode", "")
	v.SetDefault("africastalking.sender_id", "")
	v.SetDefault("africastalking.ssl_verify", true)
	v.SetDefault("africastalking.timeout", 10*time.Second)
	v.SetDefault("africastalking.max_retries", 3)
	v.SetDefault("africastalking.base_url", "")

	v.SetDefault("notifier.driver", "africastalking")
	v.SetDefault("notifier.default_country_code", "254")

	v.SetDefault("commerce.delivery_fee", 150)
	v.SetDefault("commerce.currency", "KES")
	v.SetDefault("commerce.delivery_eta", "45 mins")
	v.SetDefault("commerce.rider_name", "John")
	v.SetDefault("commerce.rider_contact", "0722 XXX XXX")
	v.SetDefault("commerce.tracking_base_url", "https://pricechekrider.co.ke/track")
	v.SetDefault("commerce.cancel_window", "5 mins")
	v.SetDefault("commerce.catalog_file", "")
	v.SetDefault("commerce.recent_orders", 5)

	v.SetDefault("sms.serialize_per_phone", false)
	v.SetDefault("sms.lock_ttl", 5*time.Second)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.per_phone.limit", 30)
	v.SetDefault("ratelimit.per_phone.window", "1m")
	v.SetDefault("ratelimit.whitelist", []string{})

	v.SetDefault("idempotency.enabled", true)
	v.SetDefault("idempotency.ttl", 24*time.Hour)
}
