package redpacket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"social-engine/internal/model"
	"social-engine/internal/pkg/lock"
)

// ClaimResult describes a committed claim.
type ClaimResult struct {
	Claim        model.Claim
	ClaimedCount int
	ShareCount   int
	Message      string
	Completed    bool
}

type packetEntry struct {
	packet    *model.RedPacket
	claimants map[string]struct{}
}

// Store holds live red packets. Every state change of a packet happens under
// that packet's own lock, so claims on different packets never contend.
type Store struct {
	mu           sync.RWMutex
	packets      map[string]*packetEntry
	locks        *lock.KeyLock
	claimTimeout time.Duration
}

// DefaultClaimTimeout bounds how long a claim waits for its packet's lock.
const DefaultClaimTimeout = 2 * time.Second

// NewStore creates an empty Store. A claim that cannot take its packet's
// lock within claimTimeout fails with ErrBusy.
func NewStore(claimTimeout time.Duration) *Store {
	if claimTimeout <= 0 {
		claimTimeout = DefaultClaimTimeout
	}
	return &Store{
		packets:      make(map[string]*packetEntry),
		locks:        lock.New(),
		claimTimeout: claimTimeout,
	}
}

// Put registers a new packet. The store takes ownership of p.
func (s *Store) Put(p *model.RedPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.packets[p.ID]; ok {
		return ErrDuplicateID
	}
	entry := &packetEntry{packet: p, claimants: make(map[string]struct{}, len(p.Claims))}
	for _, c := range p.Claims {
		entry.claimants[c.User] = struct{}{}
	}
	s.packets[p.ID] = entry
	return nil
}

func (s *Store) lookup(id string) (*packetEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.packets[id]
	return e, ok
}

// Claim hands the next unclaimed share of packet id to claimant.
//
// Checks run in a fixed order: the packet must exist, must not have expired,
// the claimant must not hold a share yet, and a share must remain. A packet
// found without remaining shares is marked completed. On success the share at
// position ClaimedCount is consumed and the packet completes once every share
// is gone.
//
// A claim whose ctx is done before it holds the packet lock has no effect and
// returns ctx.Err().
func (s *Store) Claim(ctx context.Context, id, claimant string, now time.Time) (ClaimResult, error) {
	entry, ok := s.lookup(id)
	if !ok {
		return ClaimResult{}, ErrNotFound
	}

	var res ClaimResult
	err := s.locks.WithLockContext(ctx, id, s.claimTimeout, func() error {
		p := entry.packet
		if p.Status == model.StatusExpired {
			return ErrNotActive
		}
		if _, dup := entry.claimants[claimant]; dup {
			return ErrAlreadyClaimed
		}
		if p.Status == model.StatusCompleted || p.ClaimedCount >= p.ShareCount {
			p.Status = model.StatusCompleted
			return ErrExhausted
		}

		claim := model.Claim{User: claimant, Amount: p.Allocations[p.ClaimedCount], ClaimedAt: now}
		p.Claims = append(p.Claims, claim)
		p.ClaimedCount++
		entry.claimants[claimant] = struct{}{}
		if p.ClaimedCount == p.ShareCount {
			p.Status = model.StatusCompleted
		}

		res = ClaimResult{
			Claim:        claim,
			ClaimedCount: p.ClaimedCount,
			ShareCount:   p.ShareCount,
			Message:      p.Message,
			Completed:    p.Status == model.StatusCompleted,
		}
		return nil
	})
	if errors.Is(err, lock.ErrLockTimeout) {
		return ClaimResult{}, fmt.Errorf("%w: %w", ErrBusy, err)
	}
	return res, err
}

// Get returns a consistent snapshot of packet id.
func (s *Store) Get(id string) (model.RedPacket, error) {
	entry, ok := s.lookup(id)
	if !ok {
		return model.RedPacket{}, ErrNotFound
	}

	var snap model.RedPacket
	_ = s.locks.WithLock(id, func() error {
		snap = entry.packet.Clone()
		return nil
	})
	return snap, nil
}

// ExpireOlderThan marks every active packet created before cutoff as expired
// and returns their ids in lexical order.
func (s *Store) ExpireOlderThan(cutoff time.Time) []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.packets))
	for id := range s.packets {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	var expired []string
	for _, id := range ids {
		entry, ok := s.lookup(id)
		if !ok {
			continue
		}
		_ = s.locks.WithLock(id, func() error {
			p := entry.packet
			if p.Status == model.StatusActive && p.CreatedAt.Before(cutoff) {
				p.Status = model.StatusExpired
				expired = append(expired, id)
			}
			return nil
		})
	}
	return expired
}

// Len returns the number of registered packets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.packets)
}
