// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "messages table",
		sql: `
			CREATE TABLE IF NOT EXISTS messages (
				id UUID PRIMARY KEY,
				room_id VARCHAR(255) NOT NULL,
				sender VARCHAR(255) NOT NULL,
				text TEXT NOT NULL,
				type VARCHAR(32) NOT NULL DEFAULT 'text',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_messages_room_time ON messages(room_id, created_at DESC);
		`,
	},
	{
		name: "shakes table",
		sql: `
			CREATE TABLE IF NOT EXISTS shakes (
				id UUID PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL,
				latitude DOUBLE PRECISION,
				longitude DOUBLE PRECISION,
				device_info TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_shakes_user_time ON shakes(user_id, created_at DESC);
		`,
	},
	{
		name: "red packet tables",
		sql: `
			CREATE TABLE IF NOT EXISTS red_packets (
				id UUID PRIMARY KEY,
				room_id VARCHAR(255) NOT NULL,
				sender VARCHAR(255) NOT NULL,
				total_amount BIGINT NOT NULL CHECK (total_amount > 0),
				share_count INT NOT NULL CHECK (share_count > 0),
				allocations BIGINT[] NOT NULL,
				claimed_count INT NOT NULL DEFAULT 0,
				message TEXT NOT NULL,
				status VARCHAR(16) NOT NULL DEFAULT 'active',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_red_packets_status ON red_packets(status, created_at);

			CREATE TABLE IF NOT EXISTS red_packet_claims (
				packet_id UUID NOT NULL REFERENCES red_packets(id) ON DELETE CASCADE,
				user_id VARCHAR(255) NOT NULL,
				amount BIGINT NOT NULL,
				claimed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (packet_id, user_id)
			);
		`,
	},
	{
		name: "daily steps table",
		sql: `
			CREATE TABLE IF NOT EXISTS daily_steps (
				user_id VARCHAR(255) NOT NULL,
				day DATE NOT NULL,
				count BIGINT NOT NULL DEFAULT 0,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (user_id, day)
			);
		`,
	},
}

// Migrate applies the database schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")
	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", i+1, m.name, err)
		}
		log.Info().Msgf("Migration %d: %s created", i+1, m.name)
	}
	return nil
}
