package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Search   SearchConfig   `mapstructure:"search"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// RunRelay 在 api 进程内同时启动 outbox relay
	RunRelay bool `mapstructure:"run_relay"`
}

// DatabaseConfig 每个限界上下文一个逻辑库；未单独配置的上下文回落到 DSN
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, sqlite
	DSN             string        `mapstructure:"dsn"`
	UsersDSN        string        `mapstructure:"users_dsn"`
	TweetsDSN       string        `mapstructure:"tweets_dsn"`
	NotificationDSN string        `mapstructure:"notifications_dsn"`
	SearchDSN       string        `mapstructure:"search_dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type SearchConfig struct {
	DefaultPerPage int `mapstructure:"default_per_page"`
	MaxPerPage     int `mapstructure:"max_per_page"`
	DefaultLimit   int `mapstructure:"default_limit"`
	MaxLimit       int `mapstructure:"max_limit"`
	MaxTextLength  int `mapstructure:"max_text_length"`
}

type CacheConfig struct {
	ProfileTTL time.Duration `mapstructure:"profile_ttl"`
}

type OutboxConfig struct {
	Workers       int           `mapstructure:"workers"`
	ClaimLimit    int           `mapstructure:"claim_limit"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	Lease         time.Duration `mapstructure:"lease"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	PurgeSchedule string        `mapstructure:"purge_schedule"`
	Retention     time.Duration `mapstructure:"retention"`
	// Transport: local 进程内直接分发；nats 发布到 NATS 由 subscriber 消费
	Transport string `mapstructure:"transport"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	Token         string `mapstructure:"token"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	Queue         string `mapstructure:"queue"`
}

type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.run_relay", true)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=chirper port=5432 sslmode=disable")
	// 空默认值也要注册，否则 AutomaticEnv 在 Unmarshal 时看不到这些键
	v.SetDefault("database.users_dsn", "")
	v.SetDefault("database.tweets_dsn", "")
	v.SetDefault("database.notifications_dsn", "")
	v.SetDefault("database.search_dsn", "")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 7*24*time.Hour)

	v.SetDefault("search.default_per_page", 20)
	v.SetDefault("search.max_per_page", 100)
	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.max_limit", 50)
	v.SetDefault("search.max_text_length", 1000)

	v.SetDefault("cache.profile_ttl", 300*time.Second)

	v.SetDefault("outbox.workers", 2)
	v.SetDefault("outbox.claim_limit", 64)
	v.SetDefault("outbox.poll_interval", 200*time.Millisecond)
	v.SetDefault("outbox.lease", 30*time.Second)
	v.SetDefault("outbox.max_attempts", 10)
	v.SetDefault("outbox.rate_per_second", 500.0)
	v.SetDefault("outbox.burst", 50)
	v.SetDefault("outbox.purge_schedule", "@hourly")
	v.SetDefault("outbox.retention", 24*time.Hour)
	v.SetDefault("outbox.transport", "local")

	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.token", "")
	v.SetDefault("nats.subject_prefix", "chirper.events")
	v.SetDefault("nats.queue", "chirper-consumers")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "chirper")
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load 按 默认值 -> 配置文件 -> 环境变量 的顺序加载配置
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CHIRPER_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CHIRPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Database.applyFallbacks()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (d *DatabaseConfig) applyFallbacks() {
	for _, dsn := range []*string{&d.UsersDSN, &d.TweetsDSN, &d.NotificationDSN, &d.SearchDSN} {
		if *dsn == "" {
			*dsn = d.DSN
		}
	}
}

// Validate 校验会导致运行期错误的配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Search.MaxPerPage < 1 || c.Search.DefaultPerPage < 1 {
		return errors.New("search page sizes must be positive")
	}
	if c.Search.DefaultPerPage > c.Search.MaxPerPage {
		return errors.New("search.default_per_page exceeds search.max_per_page")
	}
	switch c.Outbox.Transport {
	case "local", "nats":
	default:
		return fmt.Errorf("unsupported outbox transport %q", c.Outbox.Transport)
	}
	return nil
}

// IsRelease 是否为生产模式（隐藏内部错误信息）
func (c *Config) IsRelease() bool { return c.Server.Mode == "release" }
