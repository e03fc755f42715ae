package ledger

import (
	"sort"
	"sync"

	"social-engine/internal/model"
)

type entry struct {
	member string
	score  int64
	seq    uint64 // first-insertion order, breaks score ties
}

// ahead reports whether e ranks strictly before other.
func (e *entry) ahead(other *entry) bool {
	if e.score != other.score {
		return e.score > other.score
	}
	return e.seq < other.seq
}

// sortedSet keeps entries in rank order alongside a member index.
type sortedSet struct {
	mu      sync.RWMutex
	members map[string]*entry
	order   []*entry
	nextSeq uint64
}

func newSortedSet() *sortedSet {
	return &sortedSet{members: make(map[string]*entry)}
}

// position returns the index e occupies, or would occupy, in order.
func (s *sortedSet) position(e *entry) int {
	return sort.Search(len(s.order), func(i int) bool {
		return !s.order[i].ahead(e)
	})
}

func (s *sortedSet) insert(e *entry) {
	i := s.position(e)
	s.order = append(s.order, nil)
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = e
}

func (s *sortedSet) removeAt(i int) {
	copy(s.order[i:], s.order[i+1:])
	s.order[len(s.order)-1] = nil
	s.order = s.order[:len(s.order)-1]
}

func (s *sortedSet) incr(member string, delta int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.members[member]
	if !ok {
		s.nextSeq++
		e = &entry{member: member, score: delta, seq: s.nextSeq}
		s.members[member] = e
		s.insert(e)
		return e.score
	}
	if delta == 0 {
		return e.score
	}

	s.removeAt(s.position(e))
	e.score += delta
	s.insert(e)
	return e.score
}

func (s *sortedSet) score(member string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.members[member]
	if !ok {
		return 0, false
	}
	return e.score, true
}

func (s *sortedSet) rank(member string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.members[member]
	if !ok {
		return 0, false
	}
	return s.position(e), true
}

func (s *sortedSet) top(n int) []model.ScoreEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.order) {
		n = len(s.order)
	}
	out := make([]model.ScoreEntry, n)
	for i := 0; i < n; i++ {
		out[i] = model.ScoreEntry{Member: s.order[i].member, Score: s.order[i].score}
	}
	return out
}

func (s *sortedSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
