package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StepsRepository handles daily step count persistence.
type StepsRepository struct {
	pool *pgxpool.Pool
}

// NewStepsRepository creates a new StepsRepository instance.
func NewStepsRepository(pool *pgxpool.Pool) *StepsRepository {
	return &StepsRepository{pool: pool}
}

// AddSteps adds delta to a user's step count for day (YYYY-MM-DD) and returns the new total.
func (r *StepsRepository) AddSteps(ctx context.Context, user, day string, delta int64) (int64, error) {
	const query = `
		INSERT INTO daily_steps (user_id, day, count, updated_at)
		VALUES ($1, $2::date, $3, NOW())
		ON CONFLICT (user_id, day)
		DO UPDATE SET count = daily_steps.count + $3, updated_at = NOW()
		RETURNING count
	`
	var total int64
	if err := r.pool.QueryRow(ctx, query, user, day, delta).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to add steps: %w", err)
	}
	return total, nil
}

// Steps returns a user's step count for day, or zero if none was recorded.
func (r *StepsRepository) Steps(ctx context.Context, user, day string) (int64, error) {
	const query = `SELECT COALESCE(SUM(count), 0) FROM daily_steps WHERE user_id = $1 AND day = $2::date`
	var total int64
	if err := r.pool.QueryRow(ctx, query, user, day).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to get steps: %w", err)
	}
	return total, nil
}
