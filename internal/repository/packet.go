package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-engine/internal/model"
)

// ErrPacketNotFound is returned when a red packet row does not exist.
var ErrPacketNotFound = errors.New("red packet not found")

// PacketRepository handles red packet persistence.
type PacketRepository struct {
	pool *pgxpool.Pool
}

// NewPacketRepository creates a new PacketRepository instance.
func NewPacketRepository(pool *pgxpool.Pool) *PacketRepository {
	return &PacketRepository{pool: pool}
}

// SavePacket stores a newly created red packet with its allocations.
func (r *PacketRepository) SavePacket(ctx context.Context, p *model.RedPacket) error {
	const query = `
		INSERT INTO red_packets (id, room_id, sender, total_amount, share_count, allocations, claimed_count, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Channel, p.Sender, p.TotalAmount, p.ShareCount,
		p.Allocations, p.ClaimedCount, p.Message, string(p.Status), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save red packet: %w", err)
	}
	return nil
}

// SaveClaim records a claim and advances the packet's claimed count in one transaction.
func (r *PacketRepository) SaveClaim(ctx context.Context, packetID string, claim model.Claim) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insertClaim = `
			INSERT INTO red_packet_claims (packet_id, user_id, amount, claimed_at)
			VALUES ($1, $2, $3, $4)
		`
		if _, err := tx.Exec(ctx, insertClaim, packetID, claim.User, claim.Amount, claim.ClaimedAt); err != nil {
			return err
		}

		const bump = `UPDATE red_packets SET claimed_count = claimed_count + 1 WHERE id = $1`
		tag, err := tx.Exec(ctx, bump, packetID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrPacketNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save claim: %w", err)
	}
	return nil
}

// UpdateStatus sets the lifecycle status of a packet.
func (r *PacketRepository) UpdateStatus(ctx context.Context, packetID string, status model.PacketStatus) error {
	const query = `UPDATE red_packets SET status = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, packetID, string(status))
	if err != nil {
		return fmt.Errorf("failed to update red packet status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPacketNotFound
	}
	return nil
}

// GetPacket loads a packet with its claims.
// Returns ErrPacketNotFound if the packet does not exist.
func (r *PacketRepository) GetPacket(ctx context.Context, packetID string) (*model.RedPacket, error) {
	const query = `
		SELECT id, room_id, sender, total_amount, share_count, allocations, claimed_count, message, status, created_at
		FROM red_packets
		WHERE id = $1
	`
	p, err := scanPacket(r.pool.QueryRow(ctx, query, packetID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPacketNotFound
		}
		return nil, fmt.Errorf("failed to get red packet: %w", err)
	}

	if err := r.loadClaims(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListActive loads every active packet with its claims, oldest first.
func (r *PacketRepository) ListActive(ctx context.Context) ([]*model.RedPacket, error) {
	const query = `
		SELECT id, room_id, sender, total_amount, share_count, allocations, claimed_count, message, status, created_at
		FROM red_packets
		WHERE status = 'active'
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active red packets: %w", err)
	}
	defer rows.Close()

	var packets []*model.RedPacket
	for rows.Next() {
		p, err := scanPacket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan red packet: %w", err)
		}
		packets = append(packets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating red packets: %w", err)
	}

	for _, p := range packets {
		if err := r.loadClaims(ctx, p); err != nil {
			return nil, err
		}
	}
	return packets, nil
}

func (r *PacketRepository) loadClaims(ctx context.Context, p *model.RedPacket) error {
	const query = `
		SELECT user_id, amount, claimed_at
		FROM red_packet_claims
		WHERE packet_id = $1
		ORDER BY claimed_at ASC
	`
	rows, err := r.pool.Query(ctx, query, p.ID)
	if err != nil {
		return fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Claim
		if err := rows.Scan(&c.User, &c.Amount, &c.ClaimedAt); err != nil {
			return fmt.Errorf("failed to scan claim: %w", err)
		}
		p.Claims = append(p.Claims, c)
	}
	return rows.Err()
}

func scanPacket(row pgx.Row) (*model.RedPacket, error) {
	var (
		p      model.RedPacket
		status string
	)
	err := row.Scan(
		&p.ID, &p.Channel, &p.Sender, &p.TotalAmount, &p.ShareCount,
		&p.Allocations, &p.ClaimedCount, &p.Message, &status, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = model.PacketStatus(status)
	return &p, nil
}
