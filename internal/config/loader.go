package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load 加载配置
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom 从指定配置文件加载配置，path 为空时按默认路径查找
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/fabble-moderation")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVariables(v)

	// 读取配置文件（可选）
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("timezone", "Asia/Tokyo")
	v.SetDefault("auto_migrate", false)

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "fabble")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.connect_timeout", 5*time.Second)

	// Redis defaults
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Auth defaults
	v.SetDefault("auth.admin_token", "")
	v.SetDefault("auth.user_header", "X-User-ID")

	// reCAPTCHA defaults
	v.SetDefault("recaptcha.verify_url", "https://www.google.com/recaptcha/api/siteverify")
	v.SetDefault("recaptcha.timeout", 3*time.Second)
	v.SetDefault("recaptcha.token_field", "g-recaptcha-response-data")

	// Moderation defaults
	v.SetDefault("moderation.keyword_cache_ttl", time.Hour)
	v.SetDefault("moderation.readonly_cache_ttl", time.Minute)
	v.SetDefault("moderation.snippet_length", 100)
	v.SetDefault("moderation.default_score_threshold", "0.5")

	// Jobs defaults
	v.SetDefault("jobs.queue_key", "jobs:scheduled")
	v.SetDefault("jobs.poll_interval", time.Second)
	v.SetDefault("jobs.batch_size", 20)

	// NATS defaults
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject", "moderation.detection")

	// App defaults
	v.SetDefault("app.url", "/")
	v.SetDefault("app.locale", "en")
}

// bindEnvVariables 绑定环境变量
func bindEnvVariables(v *viper.Viper) {
	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("auto_migrate", "AUTO_MIGRATE")

	// Server
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.host", "SERVER_HOST")

	// Database
	_ = v.BindEnv("database.dsn", "DATABASE_URL")
	_ = v.BindEnv("database.host", "DATABASE_HOST")
	_ = v.BindEnv("database.port", "DATABASE_PORT")
	_ = v.BindEnv("database.user", "DATABASE_USER")
	_ = v.BindEnv("database.password", "DATABASE_PASSWORD")
	_ = v.BindEnv("database.dbname", "DATABASE_NAME")
	_ = v.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	// Redis
	_ = v.BindEnv("redis.enabled", "REDIS_ENABLED")
	_ = v.BindEnv("redis.url", "REDIS_URL")
	_ = v.BindEnv("redis.host", "REDIS_HOST")
	_ = v.BindEnv("redis.port", "REDIS_PORT")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")

	// Log
	_ = v.BindEnv("log.level", "LOG_LEVEL")
	_ = v.BindEnv("log.format", "LOG_FORMAT")

	// Auth
	_ = v.BindEnv("auth.admin_token", "ADMIN_TOKEN")

	// reCAPTCHA
	_ = v.BindEnv("recaptcha.site_key", "RECAPTCHA_SITE_KEY")
	_ = v.BindEnv("recaptcha.secret_key", "RECAPTCHA_SECRET_KEY")

	// NATS / Sentry
	_ = v.BindEnv("nats.enabled", "NATS_ENABLED")
	_ = v.BindEnv("nats.url", "NATS_URL")
	_ = v.BindEnv("sentry.dsn", "SENTRY_DSN")
	_ = v.BindEnv("sentry.environment", "SENTRY_ENVIRONMENT")

	_ = v.BindEnv("app.locale", "APP_LOCALE")
}
