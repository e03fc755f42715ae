package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-engine/internal/config"
)

func TestPoolConfigDefaults(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "app", Password: "secret", Name: "social",
		PoolSize: 20,
	}
	pc, err := PoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(20), pc.MaxConns)
	assert.Equal(t, int32(5), pc.MinConns)
	assert.Equal(t, 10*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, "social", pc.ConnConfig.Database)
}

func TestPoolConfigOverrides(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host: "db", Port: 6543, User: "app", Name: "social",
		PoolSize:        2,
		ConnectTimeout:  time.Second,
		MaxConnLifetime: time.Minute,
		MaxConnIdleTime: 10 * time.Second,
	}
	pc, err := PoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(1), pc.MinConns)
	assert.Equal(t, time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, uint16(6543), pc.ConnConfig.Port)
}
