package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "jwt", cfg.Auth.Mode)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, int64(1), cfg.RedPacket.MinShareCents)
	assert.InDelta(t, 0.8, cfg.RedPacket.MaxDrawRatio, 1e-9)
	assert.Equal(t, 100, cfg.RedPacket.MaxCount)
	assert.Equal(t, int64(10), cfg.RedPacket.PointsMultiplier)
	assert.Equal(t, 24*time.Hour, cfg.RedPacket.TTL)
	assert.Equal(t, "Congratulations! Good luck!", cfg.RedPacket.DefaultMessage)
	assert.Equal(t, 2*time.Second, cfg.RedPacket.ClaimTimeout)
	assert.Equal(t, time.Second, cfg.Chat.TypingTimeout)
	assert.Equal(t, 2000, cfg.Chat.MaxTextRunes)
	assert.Equal(t, 10, cfg.Game.LeaderboardSize)
	assert.Equal(t, []int64{1000, 5000, 10000, 20000}, cfg.Game.StepsMilestones)
	assert.False(t, cfg.Notify.Telegram.Enabled())
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := `
auth:
  mode: remote
  introspect_url: http://gate.local/introspect
storage:
  driver: postgres
database:
  host: db.local
  port: 6432
  user: app
  password: pw
  name: social
redpacket:
  max_count: 50
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("REDPACKET_MAX_COUNT", "20")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "remote", cfg.Auth.Mode)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 20, cfg.RedPacket.MaxCount)
	assert.Equal(t, "postgres://app:pw@db.local:6432/social?sslmode=disable", cfg.Database.DSN())
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Auth:      AuthConfig{Mode: "jwt", JWTSecret: "s"},
			Storage:   StorageConfig{Driver: "memory"},
			RedPacket: RedPacketConfig{MinShareCents: 1, MaxDrawRatio: 0.8},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, false},
		{"remote without url", func(c *Config) { c.Auth.Mode = "remote" }, false},
		{"unknown mode", func(c *Config) { c.Auth.Mode = "basic" }, false},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }, false},
		{"ratio out of range", func(c *Config) { c.RedPacket.MaxDrawRatio = 1.5 }, false},
		{"zero min share", func(c *Config) { c.RedPacket.MinShareCents = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
