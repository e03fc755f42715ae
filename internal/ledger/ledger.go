// Package ledger implements keyed sorted sets of integer scores.
//
// Each key holds members ordered by score descending. Members with equal
// scores keep the order in which they first entered the key, so ranks are
// deterministic. Increments are atomic per key.
package ledger

import (
	"errors"
	"sort"
	"sync"

	"social-engine/internal/model"
)

// ErrInvalidKey is returned when a key or member is empty.
var ErrInvalidKey = errors.New("ledger key and member must not be empty")

// Ledger is a set of named sorted sets.
type Ledger struct {
	mu   sync.RWMutex
	sets map[string]*sortedSet
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{sets: make(map[string]*sortedSet)}
}

func (l *Ledger) lookup(key string) *sortedSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sets[key]
}

// Increment adds delta to member's score under key and returns the new score.
// An absent member starts at zero. delta may be negative.
//
// The registry lock is held while the set is updated, so an increment never
// lands in a set that DeleteKey has already dropped.
func (l *Ledger) Increment(key, member string, delta int64) (int64, error) {
	if key == "" || member == "" {
		return 0, ErrInvalidKey
	}

	l.mu.RLock()
	if s, ok := l.sets[key]; ok {
		score := s.incr(member, delta)
		l.mu.RUnlock()
		return score, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sets[key]
	if !ok {
		s = newSortedSet()
		l.sets[key] = s
	}
	return s.incr(member, delta), nil
}

// Score returns member's score under key, or zero if absent.
func (l *Ledger) Score(key, member string) (int64, error) {
	if key == "" || member == "" {
		return 0, ErrInvalidKey
	}
	s := l.lookup(key)
	if s == nil {
		return 0, nil
	}
	score, _ := s.score(member)
	return score, nil
}

// Rank returns member's 0-based position under key, highest score first.
// The boolean is false when the member has no entry.
func (l *Ledger) Rank(key, member string) (int, bool, error) {
	if key == "" || member == "" {
		return 0, false, ErrInvalidKey
	}
	s := l.lookup(key)
	if s == nil {
		return 0, false, nil
	}
	rank, ok := s.rank(member)
	return rank, ok, nil
}

// TopN returns up to n entries under key, highest score first.
func (l *Ledger) TopN(key string, n int) ([]model.ScoreEntry, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if n <= 0 {
		return []model.ScoreEntry{}, nil
	}
	s := l.lookup(key)
	if s == nil {
		return []model.ScoreEntry{}, nil
	}
	return s.top(n), nil
}

// Len returns the number of members under key.
func (l *Ledger) Len(key string) int {
	s := l.lookup(key)
	if s == nil {
		return 0
	}
	return s.len()
}

// Keys returns all keys in lexical order.
func (l *Ledger) Keys() []string {
	l.mu.RLock()
	keys := make([]string, 0, len(l.sets))
	for k := range l.sets {
		keys = append(keys, k)
	}
	l.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// DeleteKey drops key and all of its members. It reports whether key existed.
func (l *Ledger) DeleteKey(key string) bool {
	return l.remove(key) != nil
}

// remove drops key and returns its set, which no increment touches afterwards.
func (l *Ledger) remove(key string) *sortedSet {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sets[key]
	if !ok {
		return nil
	}
	delete(l.sets, key)
	return s
}
