package handler

import (
	"context"
	"encoding/json"

	"social-engine/internal/fanout"
	"social-engine/internal/service"
)

// Game namespace events.
const (
	EventBadgeEarned  = "badge_earned"
	EventPointsUpdate = "points_update"
)

type badgePayload struct {
	Badge string `json:"badge"`
}

// RegisterGame wires the game namespace events to svc.
func RegisterGame(ns *Namespace, svc *service.GameService) error {
	if err := ns.Handle(EventBadgeEarned, func(_ context.Context, peer fanout.Peer, data json.RawMessage) error {
		var p badgePayload
		if err := decode(data, &p); err != nil {
			return err
		}
		return svc.BadgeEarned(peer, p.Badge)
	}); err != nil {
		return err
	}

	return ns.Handle(EventPointsUpdate, func(_ context.Context, peer fanout.Peer, _ json.RawMessage) error {
		return svc.PointsUpdate(peer)
	})
}
