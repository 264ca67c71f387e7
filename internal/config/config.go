package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Responder  ResponderConfig  `mapstructure:"responder"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type BotConfig struct {
	Token          string        `mapstructure:"token"`
	UpdateTimeout  int           `mapstructure:"update_timeout"`
	UpdateLimit    int           `mapstructure:"update_limit"`
	RestartBackoff time.Duration `mapstructure:"restart_backoff"`
}

// ResponderConfig points at an OpenAI-compatible chat-completions endpoint
// used to answer messages that pass moderation.
type ResponderConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Type   string       `mapstructure:"type"`
	Key    string       `mapstructure:"key"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Memory MemoryConfig `mapstructure:"memory"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MemoryConfig struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type ModerationConfig struct {
	// DefaultSubscriptionEnd seeds lazily created group records.
	DefaultSubscriptionEnd string `mapstructure:"default_subscription_end"`
	// MemberTTL bounds how long a seen user handle stays resolvable.
	MemberTTL time.Duration `mapstructure:"member_ttl"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
	Directory       string `mapstructure:"directory"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment variable overrides for credentials
	viper.BindEnv("bot.token", "BOT_TOKEN")
	viper.BindEnv("responder.api_key", "RESPONDER_API_KEY")
	viper.BindEnv("responder.base_url", "RESPONDER_BASE_URL")
	viper.BindEnv("storage.redis.addr", "REDIS_ADDR")
	viper.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	viper.BindEnv("storage.redis.db", "REDIS_DB")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("bot.update_timeout", 30)
	viper.SetDefault("bot.update_limit", 100)
	viper.SetDefault("bot.restart_backoff", 10*time.Second)

	viper.SetDefault("responder.model", "gemini-1.5-flash")
	viper.SetDefault("responder.max_tokens", 1024)
	viper.SetDefault("responder.timeout", 30*time.Second)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.key", "groups")
	viper.SetDefault("storage.memory.default_expiration", 0)
	viper.SetDefault("storage.memory.cleanup_interval", 10*time.Minute)

	viper.SetDefault("moderation.default_subscription_end", "2025-12-31")
	viper.SetDefault("moderation.member_ttl", 14*24*time.Hour)

	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests_per_minute", 20)
	viper.SetDefault("rate_limit.burst", 5)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stdout")

	viper.SetDefault("monitoring.metrics.enabled", true)
	viper.SetDefault("monitoring.metrics.port", 8080)
	viper.SetDefault("monitoring.metrics.path", "/metrics")

	viper.SetDefault("i18n.default_language", "vi")
}

func validateConfig(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	if cfg.Responder.BaseURL == "" {
		return fmt.Errorf("responder base_url is required")
	}
	if cfg.Moderation.DefaultSubscriptionEnd == "" {
		return fmt.Errorf("moderation default_subscription_end is required")
	}
	return nil
}
