// Package config provides configuration management using viper.
// It supports loading from YAML files, a local .env file and environment
// variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RedPacket RedPacketConfig `mapstructure:"redpacket"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Game      GameConfig      `mapstructure:"game"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds listener configuration for the HTTP API and the
// real-time gateway.
type ServerConfig struct {
	APIAddr         string        `mapstructure:"api_addr"`
	WSAddr          string        `mapstructure:"ws_addr"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig selects how credentials are verified.
// Mode "jwt" verifies HS256 tokens locally, "remote" asks an introspection endpoint.
type AuthConfig struct {
	Mode          string        `mapstructure:"mode"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	IntrospectURL string        `mapstructure:"introspect_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the persistence backend ("memory" or "postgres").
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedPacketConfig holds red packet allocation and lifecycle settings.
// Amounts are in cents.
type RedPacketConfig struct {
	MinShareCents    int64         `mapstructure:"min_share_cents"`
	MaxDrawRatio     float64       `mapstructure:"max_draw_ratio"`
	MaxCount         int           `mapstructure:"max_count"`
	PointsMultiplier int64         `mapstructure:"points_multiplier"`
	TTL              time.Duration `mapstructure:"ttl"`
	DefaultMessage   string        `mapstructure:"default_message"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	ClaimTimeout     time.Duration `mapstructure:"claim_timeout"`
}

// ChatConfig holds chat namespace settings.
type ChatConfig struct {
	MaxTextRunes  int           `mapstructure:"max_text_runes"`
	MessagePoints int64         `mapstructure:"message_points"`
	TypingTimeout time.Duration `mapstructure:"typing_timeout"`
	SendBuffer    int           `mapstructure:"send_buffer"`
	MaxFrameBytes int64         `mapstructure:"max_frame_bytes"`
}

// GameConfig holds leaderboard and step-tracking settings.
type GameConfig struct {
	LeaderboardSize    int     `mapstructure:"leaderboard_size"`
	StepsMilestones    []int64 `mapstructure:"steps_milestones"`
	MilestonePoints    int64   `mapstructure:"milestone_points"`
	StepsRetentionDays int     `mapstructure:"steps_retention_days"`
}

// NotifyConfig holds optional outbound announcement settings.
type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig configures the Telegram announcer. An empty token disables it.
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Enabled reports whether Telegram announcements are configured.
func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != 0
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in configPath, the working directory and ./config.
// A .env file in the working directory is loaded first if present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. AUTH_JWT_SECRET, DATABASE_HOST, REDPACKET_MAX_COUNT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required when auth.mode is jwt")
		}
	case "remote":
		if c.Auth.IntrospectURL == "" {
			return errors.New("auth.introspect_url is required when auth.mode is remote")
		}
	default:
		return fmt.Errorf("unknown auth.mode %q", c.Auth.Mode)
	}

	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	if c.RedPacket.MaxDrawRatio <= 0 || c.RedPacket.MaxDrawRatio > 1 {
		return fmt.Errorf("redpacket.max_draw_ratio must be in (0, 1], got %v", c.RedPacket.MaxDrawRatio)
	}
	if c.RedPacket.MinShareCents < 1 {
		return fmt.Errorf("redpacket.min_share_cents must be at least 1, got %d", c.RedPacket.MinShareCents)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.api_addr", ":3000")
	v.SetDefault("server.ws_addr", ":3001")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("auth.mode", "jwt")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.introspect_url", "")
	v.SetDefault("auth.timeout", "3s")

	v.SetDefault("storage.driver", "memory")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "social")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "social")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redpacket.min_share_cents", 1)
	v.SetDefault("redpacket.max_draw_ratio", 0.8)
	v.SetDefault("redpacket.max_count", 100)
	v.SetDefault("redpacket.points_multiplier", 10)
	v.SetDefault("redpacket.ttl", "24h")
	v.SetDefault("redpacket.default_message", "Congratulations! Good luck!")
	v.SetDefault("redpacket.sweep_interval", "1m")
	v.SetDefault("redpacket.claim_timeout", "2s")

	v.SetDefault("chat.max_text_runes", 2000)
	v.SetDefault("chat.message_points", 1)
	v.SetDefault("chat.typing_timeout", "1s")
	v.SetDefault("chat.send_buffer", 256)
	v.SetDefault("chat.max_frame_bytes", 64*1024)

	v.SetDefault("game.leaderboard_size", 10)
	v.SetDefault("game.steps_milestones", []int64{1000, 5000, 10000, 20000})
	v.SetDefault("game.milestone_points", 50)
	v.SetDefault("game.steps_retention_days", 7)

	v.SetDefault("notify.telegram.token", "")
	v.SetDefault("notify.telegram.chat_id", 0)

	v.SetDefault("log.level", "info")
}
