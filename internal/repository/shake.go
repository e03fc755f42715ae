package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"social-engine/internal/model"
)

// ShakeRepository handles shake event persistence.
type ShakeRepository struct {
	pool *pgxpool.Pool
}

// NewShakeRepository creates a new ShakeRepository instance.
func NewShakeRepository(pool *pgxpool.Pool) *ShakeRepository {
	return &ShakeRepository{pool: pool}
}

// SaveShake stores a shake event. The location columns are NULL when absent.
func (r *ShakeRepository) SaveShake(ctx context.Context, shake *model.Shake) error {
	const query = `
		INSERT INTO shakes (id, user_id, latitude, longitude, device_info, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var lat, lng *float64
	if shake.Location != nil {
		lat, lng = &shake.Location.Latitude, &shake.Location.Longitude
	}
	_, err := r.pool.Exec(ctx, query, shake.ID, shake.User, lat, lng, shake.DeviceInfo, shake.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save shake: %w", err)
	}
	return nil
}

// CountByUser returns how many shakes a user has recorded.
func (r *ShakeRepository) CountByUser(ctx context.Context, user string) (int64, error) {
	const query = `SELECT COUNT(*) FROM shakes WHERE user_id = $1`
	var n int64
	if err := r.pool.QueryRow(ctx, query, user).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count shakes: %w", err)
	}
	return n, nil
}
