package repository

import (
	"context"
	"sort"
	"sync"

	"social-engine/internal/model"
)

// Memory is an in-process implementation of every repository, used when no
// database is configured and in tests. SetFailure makes every write fail,
// which exercises the dependency-failure paths of callers.
type Memory struct {
	mu       sync.RWMutex
	messages []model.Message
	shakes   []model.Shake
	packets  map[string]*model.RedPacket
	steps    map[stepsKey]int64
	failure  error
}

type stepsKey struct {
	user string
	day  string
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		packets: make(map[string]*model.RedPacket),
		steps:   make(map[stepsKey]int64),
	}
}

// SetFailure makes subsequent writes return err. Pass nil to recover.
func (m *Memory) SetFailure(err error) {
	m.mu.Lock()
	m.failure = err
	m.mu.Unlock()
}

// SaveMessage stores a chat message.
func (m *Memory) SaveMessage(ctx context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	cp := *msg
	cp.Triggers = nil
	m.messages = append(m.messages, cp)
	return nil
}

// RecentMessages returns up to limit messages of a room, newest first.
func (m *Memory) RecentMessages(ctx context.Context, roomID string, limit int) ([]*model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Message
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if m.messages[i].RoomID == roomID {
			msg := m.messages[i]
			out = append(out, &msg)
		}
	}
	return out, nil
}

// SaveShake stores a shake event.
func (m *Memory) SaveShake(ctx context.Context, shake *model.Shake) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	m.shakes = append(m.shakes, *shake)
	return nil
}

// CountByUser returns how many shakes a user has recorded.
func (m *Memory) CountByUser(ctx context.Context, user string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, s := range m.shakes {
		if s.User == user {
			n++
		}
	}
	return n, nil
}

// SavePacket stores a newly created red packet.
func (m *Memory) SavePacket(ctx context.Context, p *model.RedPacket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	cp := p.Clone()
	m.packets[p.ID] = &cp
	return nil
}

// SaveClaim records a claim against a stored packet.
func (m *Memory) SaveClaim(ctx context.Context, packetID string, claim model.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	p, ok := m.packets[packetID]
	if !ok {
		return ErrPacketNotFound
	}
	p.Claims = append(p.Claims, claim)
	p.ClaimedCount++
	return nil
}

// UpdateStatus sets the lifecycle status of a stored packet.
func (m *Memory) UpdateStatus(ctx context.Context, packetID string, status model.PacketStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	p, ok := m.packets[packetID]
	if !ok {
		return ErrPacketNotFound
	}
	p.Status = status
	return nil
}

// GetPacket returns a copy of a stored packet.
func (m *Memory) GetPacket(ctx context.Context, packetID string) (*model.RedPacket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.packets[packetID]
	if !ok {
		return nil, ErrPacketNotFound
	}
	cp := p.Clone()
	return &cp, nil
}

// ListActive returns copies of every active packet, oldest first.
func (m *Memory) ListActive(ctx context.Context) ([]*model.RedPacket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.RedPacket
	for _, p := range m.packets {
		if p.Status == model.StatusActive {
			cp := p.Clone()
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AddSteps adds delta to a user's step count for day and returns the new total.
func (m *Memory) AddSteps(ctx context.Context, user, day string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return 0, m.failure
	}
	k := stepsKey{user: user, day: day}
	m.steps[k] += delta
	return m.steps[k], nil
}

// Steps returns a user's step count for day.
func (m *Memory) Steps(ctx context.Context, user, day string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.steps[stepsKey{user: user, day: day}], nil
}
