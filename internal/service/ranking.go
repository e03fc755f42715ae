package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"social-engine/internal/ledger"
	"social-engine/internal/model"
)

// ErrUnknownLeaderboard is returned for a leaderboard kind other than points or steps.
var ErrUnknownLeaderboard = errors.New("invalid leaderboard type")

// RankingConfig configures leaderboards and step milestones.
type RankingConfig struct {
	LeaderboardSize int
	Milestones      []int64
	MilestonePoints int64
	RetentionDays   int
	Timezone        *time.Location
}

// Stats summarises one user's standing. Ranks are 1-based and nil when the
// user has no entry on that board.
type Stats struct {
	Points     int64 `json:"points"`
	TodaySteps int64 `json:"todaySteps"`
	PointsRank *int  `json:"pointsRank"`
	StepsRank  *int  `json:"stepsRank"`
}

// StepsResult is the outcome of a step submission.
type StepsResult struct {
	Total      int64   `json:"totalSteps"`
	Milestones []int64 `json:"milestones"`
	Points     int64   `json:"pointsAwarded"`
}

// RankingService handles points, step counts and leaderboards.
type RankingService struct {
	ledger Ledger
	steps  StepsStore
	cfg    RankingConfig
	now    func() time.Time
}

// NewRankingService creates a new RankingService instance.
// steps may be nil, in which case step counts live only in the ledger.
func NewRankingService(l Ledger, steps StepsStore, cfg RankingConfig) *RankingService {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 10
	}
	return &RankingService{ledger: l, steps: steps, cfg: cfg, now: time.Now}
}

// Today returns the current date in the service timezone.
func (s *RankingService) Today() string {
	return s.now().In(s.cfg.Timezone).Format(model.DateLayout)
}

// Award adds points to member and returns the new total.
func (s *RankingService) Award(member string, points int64) (int64, error) {
	total, err := s.ledger.Increment(model.KeyPoints, member, points)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidKey) {
			return 0, invalid("member is required")
		}
		return 0, dependency("award points", err)
	}
	return total, nil
}

// Points returns member's current points.
func (s *RankingService) Points(member string) (int64, error) {
	points, err := s.ledger.Score(model.KeyPoints, member)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidKey) {
			return 0, invalid("member is required")
		}
		return 0, dependency("read points", err)
	}
	return points, nil
}

// Leaderboard returns the top entries of a board. For the steps board, date
// selects the day and defaults to today. limit is capped at the configured size.
func (s *RankingService) Leaderboard(kind, date string, limit int) ([]model.LeaderboardEntry, error) {
	key, err := s.boardKey(kind, date)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.cfg.LeaderboardSize {
		limit = s.cfg.LeaderboardSize
	}

	top, err := s.ledger.TopN(key, limit)
	if err != nil {
		return nil, dependency("read leaderboard", err)
	}
	entries := make([]model.LeaderboardEntry, len(top))
	for i, e := range top {
		entries[i] = model.LeaderboardEntry{User: e.Member, Score: e.Score, Rank: i + 1}
	}
	return entries, nil
}

func (s *RankingService) boardKey(kind, date string) (string, error) {
	switch kind {
	case model.BoardPoints:
		return model.KeyPoints, nil
	case model.BoardSteps:
		day, err := s.resolveDate(date)
		if err != nil {
			return "", err
		}
		return model.StepsKey(day), nil
	default:
		return "", ErrUnknownLeaderboard
	}
}

func (s *RankingService) resolveDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return s.Today(), nil
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return "", invalid("date must be YYYY-MM-DD")
	}
	return date, nil
}

// SubmitSteps adds count steps for user on date (default today). Each
// configured milestone crossed by this submission awards bonus points once.
// The step count is persisted before the ledger is touched.
func (s *RankingService) SubmitSteps(ctx context.Context, user string, count int64, date string) (StepsResult, error) {
	if strings.TrimSpace(user) == "" {
		return StepsResult{}, invalid("user is required")
	}
	if count <= 0 {
		return StepsResult{}, invalid("count must be positive")
	}
	day, err := s.resolveDate(date)
	if err != nil {
		return StepsResult{}, err
	}

	if s.steps != nil {
		if _, err := s.steps.AddSteps(ctx, user, day, count); err != nil {
			return StepsResult{}, dependency("save steps", err)
		}
	}

	total, err := s.ledger.Increment(model.StepsKey(day), user, count)
	if err != nil {
		return StepsResult{}, dependency("record steps", err)
	}

	res := StepsResult{Total: total, Milestones: []int64{}}
	before := total - count
	for _, m := range s.cfg.Milestones {
		if before < m && total >= m {
			res.Milestones = append(res.Milestones, m)
		}
	}
	if bonus := int64(len(res.Milestones)) * s.cfg.MilestonePoints; bonus > 0 {
		if _, err := s.Award(user, bonus); err != nil {
			log.Error().Err(err).Str("user", user).Int64("points", bonus).Msg("Failed to award milestone points")
		} else {
			res.Points = bonus
		}
	}
	return res, nil
}

// Stats returns user's points, today's steps and ranks on both boards.
// With a steps store, today's count is the persisted one, which survives
// restarts of the in-process ledger.
func (s *RankingService) Stats(ctx context.Context, user string) (Stats, error) {
	if strings.TrimSpace(user) == "" {
		return Stats{}, invalid("user is required")
	}
	stepsKey := model.StepsKey(s.Today())

	points, err := s.ledger.Score(model.KeyPoints, user)
	if err != nil {
		return Stats{}, dependency("read points", err)
	}
	steps, err := s.ledger.Score(stepsKey, user)
	if err != nil {
		return Stats{}, dependency("read steps", err)
	}
	if s.steps != nil {
		if steps, err = s.steps.Steps(ctx, user, s.Today()); err != nil {
			return Stats{}, dependency("read steps", err)
		}
	}

	stats := Stats{Points: points, TodaySteps: steps}
	if rank, ok, err := s.ledger.Rank(model.KeyPoints, user); err == nil && ok {
		r := rank + 1
		stats.PointsRank = &r
	}
	if rank, ok, err := s.ledger.Rank(stepsKey, user); err == nil && ok {
		r := rank + 1
		stats.StepsRank = &r
	}
	return stats, nil
}

// PruneSteps drops step boards older than the retention window and returns
// the removed keys. A non-positive retention keeps everything.
func (s *RankingService) PruneSteps() []string {
	if s.cfg.RetentionDays <= 0 {
		return nil
	}
	cutoff := s.now().In(s.cfg.Timezone).AddDate(0, 0, -s.cfg.RetentionDays).Format(model.DateLayout)

	var removed []string
	for _, key := range s.ledger.Keys() {
		day, ok := model.StepsKeyDate(key)
		if !ok || day >= cutoff {
			continue
		}
		if s.ledger.DeleteKey(key) {
			removed = append(removed, key)
		}
	}
	return removed
}
