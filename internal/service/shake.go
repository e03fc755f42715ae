package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"social-engine/internal/fanout"
	"social-engine/internal/model"
)

// Shake events.
const (
	EventUserShake      = "user_shake"
	EventShakeConfirmed = "shake_confirmed"
)

// ShakeInput is an inbound shake.
type ShakeInput struct {
	Location   *model.Location `json:"location"`
	DeviceInfo string          `json:"deviceInfo"`
}

// ShakeEvent is broadcast to every other connection in the shake namespace.
type ShakeEvent struct {
	User      string          `json:"user"`
	Timestamp int64           `json:"timestamp"`
	Location  *model.Location `json:"location"`
}

// ShakeConfirmation is sent back to the shaker. Total counts every shake the
// user has recorded, this one included.
type ShakeConfirmation struct {
	Timestamp int64 `json:"timestamp"`
	Total     int64 `json:"total"`
}

// ShakeService records shakes and relays them to the namespace.
type ShakeService struct {
	router *fanout.Router
	shakes ShakeStore
	now    func() time.Time
}

// NewShakeService creates a new ShakeService instance.
func NewShakeService(router *fanout.Router, shakes ShakeStore) *ShakeService {
	return &ShakeService{router: router, shakes: shakes, now: time.Now}
}

// Shake persists a shake, tells everyone else in the namespace and confirms
// to the shaker.
func (s *ShakeService) Shake(ctx context.Context, peer fanout.Peer, in ShakeInput) (*model.Shake, error) {
	if loc := in.Location; loc != nil {
		if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
			return nil, invalid("location out of range")
		}
	}

	shake := &model.Shake{
		ID:         uuid.NewString(),
		User:       peer.Identity(),
		Location:   in.Location,
		DeviceInfo: strings.TrimSpace(in.DeviceInfo),
		CreatedAt:  s.now(),
	}
	if err := s.shakes.SaveShake(ctx, shake); err != nil {
		return nil, dependency("save shake", err)
	}

	ts := shake.CreatedAt.UnixMilli()
	event := ShakeEvent{User: shake.User, Timestamp: ts, Location: shake.Location}
	if _, err := s.router.BroadcastAll(EventUserShake, event, peer); err != nil {
		log.Error().Err(err).Str("user", shake.User).Msg("Failed to broadcast shake")
	}
	total, err := s.shakes.CountByUser(ctx, shake.User)
	if err != nil {
		log.Warn().Err(err).Str("user", shake.User).Msg("Failed to count shakes")
	}
	if err := s.router.EmitDirect(peer, EventShakeConfirmed, ShakeConfirmation{Timestamp: ts, Total: total}); err != nil {
		log.Warn().Err(err).Str("conn", peer.ID()).Msg("Failed to confirm shake")
	}
	return shake, nil
}
