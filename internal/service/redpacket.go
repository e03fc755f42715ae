package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"social-engine/internal/ledger"
	"social-engine/internal/model"
	"social-engine/internal/redpacket"
	"social-engine/internal/repository"
)

// EventRedPacket announces a new red packet to its room.
const EventRedPacket = "red_packet"

// RedPacketConfig configures packet lifecycle and claim rewards.
type RedPacketConfig struct {
	// PointsMultiplier converts a claimed amount into points: floor(amount * multiplier).
	PointsMultiplier int64
	TTL              time.Duration
	DefaultMessage   string
	RewardRetries    uint64
}

// CreatePacketInput describes a new red packet. TotalAmount is in cents.
type CreatePacketInput struct {
	Channel     string
	Sender      string
	TotalAmount int64
	Count       int
	Message     string
}

// ClaimOutcome describes a successful claim.
type ClaimOutcome struct {
	Amount       int64
	Points       int64
	ClaimedCount int
	ShareCount   int
	Message      string
	Completed    bool
}

// PacketAnnouncement is broadcast to the packet's room when it is created.
type PacketAnnouncement struct {
	ID          string  `json:"id"`
	RoomID      string  `json:"roomId"`
	Sender      string  `json:"sender"`
	TotalAmount float64 `json:"totalAmount"`
	Count       int     `json:"count"`
	Message     string  `json:"message"`
}

// RedPacketService creates red packets and handles claims.
type RedPacketService struct {
	allocator *redpacket.Allocator
	packets   *redpacket.Store
	store     PacketStore
	ledger    Ledger
	rooms     Broadcaster
	announcer Announcer
	cfg       RedPacketConfig
	now       func() time.Time
}

// NewRedPacketService creates a new RedPacketService instance.
func NewRedPacketService(
	allocator *redpacket.Allocator,
	packets *redpacket.Store,
	store PacketStore,
	l Ledger,
	cfg RedPacketConfig,
) *RedPacketService {
	if cfg.DefaultMessage == "" {
		cfg.DefaultMessage = "Congratulations! Good luck!"
	}
	if cfg.RewardRetries == 0 {
		cfg.RewardRetries = 3
	}
	return &RedPacketService{
		allocator: allocator,
		packets:   packets,
		store:     store,
		ledger:    l,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetBroadcaster sets where new packets are announced in real time.
func (s *RedPacketService) SetBroadcaster(b Broadcaster) {
	s.rooms = b
}

// SetAnnouncer sets the out-of-band lifecycle announcer.
func (s *RedPacketService) SetAnnouncer(a Announcer) {
	s.announcer = a
}

// Create partitions a new packet, persists it and registers it for claims.
// Nothing is registered if persistence fails.
func (s *RedPacketService) Create(ctx context.Context, in CreatePacketInput) (model.RedPacket, error) {
	channel := strings.TrimSpace(in.Channel)
	if channel == "" {
		return model.RedPacket{}, fmt.Errorf("%w: room id is required", redpacket.ErrInvalidParameters)
	}
	if strings.TrimSpace(in.Sender) == "" {
		return model.RedPacket{}, fmt.Errorf("%w: sender is required", redpacket.ErrInvalidParameters)
	}

	allocations, err := s.allocator.Partition(in.TotalAmount, in.Count)
	if err != nil {
		return model.RedPacket{}, err
	}

	message := strings.TrimSpace(in.Message)
	if message == "" {
		message = s.cfg.DefaultMessage
	}

	p := &model.RedPacket{
		ID:          uuid.NewString(),
		Channel:     channel,
		Sender:      in.Sender,
		TotalAmount: in.TotalAmount,
		ShareCount:  in.Count,
		Allocations: allocations,
		Message:     message,
		Status:      model.StatusActive,
		CreatedAt:   s.now(),
	}

	if err := s.store.SavePacket(ctx, p); err != nil {
		return model.RedPacket{}, dependency("save red packet", err)
	}

	snapshot := p.Clone()
	if err := s.packets.Put(p); err != nil {
		return model.RedPacket{}, err
	}

	log.Info().
		Str("packet", snapshot.ID).
		Str("room", snapshot.Channel).
		Str("sender", snapshot.Sender).
		Int64("total_cents", snapshot.TotalAmount).
		Int("count", snapshot.ShareCount).
		Msg("Red packet created")

	s.publishCreated(snapshot)
	return snapshot, nil
}

func (s *RedPacketService) publishCreated(p model.RedPacket) {
	if s.rooms != nil {
		announcement := PacketAnnouncement{
			ID:          p.ID,
			RoomID:      p.Channel,
			Sender:      p.Sender,
			TotalAmount: model.FromCents(p.TotalAmount),
			Count:       p.ShareCount,
			Message:     p.Message,
		}
		if _, err := s.rooms.Broadcast(p.Channel, EventRedPacket, announcement, nil); err != nil {
			log.Warn().Err(err).Str("packet", p.ID).Msg("Failed to announce red packet")
		}
	}
	if s.announcer != nil {
		s.announcer.PacketCreated(p)
	}
}

// Claim hands claimant the next share of packet id.
//
// The claim is decided atomically per packet. Persisting the claim and
// rewarding points happen afterwards; their failures are logged and never
// undo the claim.
func (s *RedPacketService) Claim(ctx context.Context, id, claimant string) (ClaimOutcome, error) {
	if strings.TrimSpace(claimant) == "" {
		return ClaimOutcome{}, fmt.Errorf("%w: claimant is required", redpacket.ErrInvalidParameters)
	}

	res, err := s.packets.Claim(ctx, id, claimant, s.now())
	if err != nil {
		return ClaimOutcome{}, err
	}

	// The claim is committed; follow-up work must not be cut short by the caller leaving.
	ctx = context.WithoutCancel(ctx)

	if err := s.store.SaveClaim(ctx, id, res.Claim); err != nil {
		log.Error().Err(err).Str("packet", id).Str("user", claimant).Msg("Failed to persist red packet claim")
	}
	if res.Completed {
		s.markStatus(ctx, id, model.StatusCompleted)
		if s.announcer != nil {
			if snap, err := s.packets.Get(id); err == nil {
				s.announcer.PacketCompleted(snap)
			}
		}
	}

	points := res.Claim.Amount * s.cfg.PointsMultiplier / 100
	if points > 0 {
		s.reward(ctx, claimant, points)
	}

	log.Info().
		Str("packet", id).
		Str("user", claimant).
		Int64("amount_cents", res.Claim.Amount).
		Int("claimed", res.ClaimedCount).
		Int("total", res.ShareCount).
		Msg("Red packet claimed")

	return ClaimOutcome{
		Amount:       res.Claim.Amount,
		Points:       points,
		ClaimedCount: res.ClaimedCount,
		ShareCount:   res.ShareCount,
		Message:      res.Message,
		Completed:    res.Completed,
	}, nil
}

func (s *RedPacketService) reward(ctx context.Context, member string, points int64) {
	op := func() error {
		_, err := s.ledger.Increment(model.KeyPoints, member, points)
		if errors.Is(err, ledger.ErrInvalidKey) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 5 * time.Second

	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.cfg.RewardRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		log.Error().Err(err).Str("user", member).Int64("points", points).Msg("Failed to reward red packet points")
	}
}

func (s *RedPacketService) markStatus(ctx context.Context, id string, status model.PacketStatus) {
	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		log.Error().Err(err).Str("packet", id).Str("status", string(status)).Msg("Failed to persist red packet status")
	}
}

// Get returns a snapshot of packet id. Packets that were no longer active at
// startup are not registered for claims and are read from storage instead.
func (s *RedPacketService) Get(ctx context.Context, id string) (model.RedPacket, error) {
	p, err := s.packets.Get(id)
	if !errors.Is(err, redpacket.ErrNotFound) {
		return p, err
	}

	stored, err := s.store.GetPacket(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPacketNotFound) {
			return model.RedPacket{}, redpacket.ErrNotFound
		}
		return model.RedPacket{}, dependency("get red packet", err)
	}
	return *stored, nil
}

// ExpireStale expires every active packet older than the configured TTL.
func (s *RedPacketService) ExpireStale(ctx context.Context) []string {
	if s.cfg.TTL <= 0 {
		return nil
	}
	ids := s.packets.ExpireOlderThan(s.now().Add(-s.cfg.TTL))
	for _, id := range ids {
		s.markStatus(ctx, id, model.StatusExpired)
	}
	if len(ids) > 0 {
		log.Info().Int("count", len(ids)).Msg("Expired stale red packets")
	}
	return ids
}

// Restore registers every active packet found in storage. It is meant to run
// once at startup, before any claim is served.
func (s *RedPacketService) Restore(ctx context.Context) (int, error) {
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return 0, dependency("list active red packets", err)
	}

	restored := 0
	for _, p := range active {
		if err := s.packets.Put(p); err != nil {
			if errors.Is(err, redpacket.ErrDuplicateID) {
				continue
			}
			return restored, err
		}
		restored++
	}
	return restored, nil
}
