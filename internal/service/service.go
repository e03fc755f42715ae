// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"social-engine/internal/fanout"
	"social-engine/internal/model"
)

// Common errors for service operations.
var (
	// ErrInvalidPayload is returned when an inbound request is malformed.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrDependency is returned when a collaborator (storage, ledger) fails.
	ErrDependency = errors.New("dependency failure")
)

// Ledger is the score store used for points and step leaderboards.
type Ledger interface {
	Increment(key, member string, delta int64) (int64, error)
	Score(key, member string) (int64, error)
	Rank(key, member string) (int, bool, error)
	TopN(key string, n int) ([]model.ScoreEntry, error)
	Keys() []string
	DeleteKey(key string) bool
}

// MessageStore persists chat messages.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *model.Message) error
	RecentMessages(ctx context.Context, roomID string, limit int) ([]*model.Message, error)
}

// ShakeStore persists shake events.
type ShakeStore interface {
	SaveShake(ctx context.Context, shake *model.Shake) error
	CountByUser(ctx context.Context, user string) (int64, error)
}

// PacketStore persists red packets and their claims.
type PacketStore interface {
	SavePacket(ctx context.Context, p *model.RedPacket) error
	SaveClaim(ctx context.Context, packetID string, claim model.Claim) error
	UpdateStatus(ctx context.Context, packetID string, status model.PacketStatus) error
	GetPacket(ctx context.Context, packetID string) (*model.RedPacket, error)
	ListActive(ctx context.Context) ([]*model.RedPacket, error)
}

// StepsStore persists daily step counts.
type StepsStore interface {
	AddSteps(ctx context.Context, user, day string, delta int64) (int64, error)
	Steps(ctx context.Context, user, day string) (int64, error)
}

// Broadcaster delivers events to the members of a room.
type Broadcaster interface {
	Broadcast(room, event string, payload any, exclude fanout.Peer) (int, error)
}

// Announcer is told about red packet lifecycle events outside the real-time channels.
type Announcer interface {
	PacketCreated(p model.RedPacket)
	PacketCompleted(p model.RedPacket)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

func dependency(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDependency, err)
}
