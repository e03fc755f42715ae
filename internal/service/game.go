package service

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"social-engine/internal/fanout"
)

// Game events.
const (
	EventBadgeEarned   = "user_badge_earned"
	EventPointsUpdated = "points_updated"
)

// BadgeEvent announces a badge to the whole game namespace.
type BadgeEvent struct {
	User      string `json:"user"`
	Badge     string `json:"badge"`
	Timestamp int64  `json:"timestamp"`
}

// PointsEvent carries a user's current points.
type PointsEvent struct {
	Points int64 `json:"points"`
}

// GameService relays badges and points in the game namespace.
type GameService struct {
	router  *fanout.Router
	ranking *RankingService
	now     func() time.Time
}

// NewGameService creates a new GameService instance.
func NewGameService(router *fanout.Router, ranking *RankingService) *GameService {
	return &GameService{router: router, ranking: ranking, now: time.Now}
}

// BadgeEarned announces peer's new badge to every connection, peer included.
func (s *GameService) BadgeEarned(peer fanout.Peer, badge string) error {
	badge = strings.TrimSpace(badge)
	if badge == "" {
		return invalid("badge is required")
	}
	event := BadgeEvent{User: peer.Identity(), Badge: badge, Timestamp: s.now().UnixMilli()}
	n, err := s.router.BroadcastAll(EventBadgeEarned, event, nil)
	if err != nil {
		return err
	}
	log.Debug().Str("user", event.User).Str("badge", badge).Int("recipients", n).Msg("Badge announced")
	return nil
}

// PointsUpdate sends peer its current points.
func (s *GameService) PointsUpdate(peer fanout.Peer) error {
	points, err := s.ranking.Points(peer.Identity())
	if err != nil {
		return err
	}
	return s.router.EmitDirect(peer, EventPointsUpdated, PointsEvent{Points: points})
}
