// Package redpacket partitions red packets into random shares and serialises
// claims so that every share is handed out at most once.
package redpacket

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Allocator defaults.
const (
	DefaultMinShare     int64   = 1
	DefaultMaxDrawRatio float64 = 0.8
	DefaultMaxCount             = 100
)

// AllocatorConfig bounds how a packet may be split. Amounts are in cents.
type AllocatorConfig struct {
	MinShare     int64
	MaxDrawRatio float64
	MaxCount     int
}

// Allocator splits a total into randomly sized shares.
type Allocator struct {
	cfg AllocatorConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAllocator creates an Allocator. Zero config fields take the defaults.
// A nil rng is replaced by a time-seeded source; tests pass a fixed seed.
func NewAllocator(cfg AllocatorConfig, rng *rand.Rand) *Allocator {
	if cfg.MinShare <= 0 {
		cfg.MinShare = DefaultMinShare
	}
	if cfg.MaxDrawRatio <= 0 || cfg.MaxDrawRatio > 1 {
		cfg.MaxDrawRatio = DefaultMaxDrawRatio
	}
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = DefaultMaxCount
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Allocator{cfg: cfg, rng: rng}
}

// Validate checks that total cents can be split into count shares.
func (a *Allocator) Validate(total int64, count int) error {
	switch {
	case count < 1:
		return fmt.Errorf("%w: count must be at least 1, got %d", ErrInvalidParameters, count)
	case count > a.cfg.MaxCount:
		return fmt.Errorf("%w: count must be at most %d, got %d", ErrInvalidParameters, a.cfg.MaxCount, count)
	case total <= 0:
		return fmt.Errorf("%w: total amount must be positive", ErrInvalidParameters)
	case total < int64(count)*a.cfg.MinShare:
		return fmt.Errorf("%w: total %d cannot give %d shares of at least %d", ErrInvalidParameters, total, count, a.cfg.MinShare)
	}
	return nil
}

// Partition splits total cents into count shares.
//
// Each of the first count-1 shares is drawn uniformly between the minimum
// share and the smaller of what the remaining shares leave over and
// MaxDrawRatio of what is left. The last share takes the remainder. The
// result is shuffled so claim order carries no size bias.
func (a *Allocator) Partition(total int64, count int) ([]int64, error) {
	if err := a.Validate(total, count); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	minShare := a.cfg.MinShare
	shares := make([]int64, 0, count)
	remaining := total
	for i := 0; i < count-1; i++ {
		left := int64(count - i - 1)
		hi := remaining - left*minShare
		if capped := int64(float64(remaining) * a.cfg.MaxDrawRatio); capped < hi {
			hi = capped
		}
		if hi < minShare {
			hi = minShare
		}

		share := minShare + a.rng.Int63n(hi-minShare+1)
		shares = append(shares, share)
		remaining -= share
	}
	shares = append(shares, remaining)

	a.rng.Shuffle(len(shares), func(i, j int) {
		shares[i], shares[j] = shares[j], shares[i]
	})
	return shares, nil
}
