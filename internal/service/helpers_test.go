package service

import (
	"sync"
	"sync/atomic"

	"social-engine/internal/ledger"
	"social-engine/internal/model"
)

// flakyLedger wraps a real ledger and fails the first `failures` increments.
type flakyLedger struct {
	*ledger.Ledger
	failures atomic.Int32
	calls    atomic.Int32
	err      error
}

func newFlakyLedger(failures int32, err error) *flakyLedger {
	f := &flakyLedger{Ledger: ledger.New(), err: err}
	f.failures.Store(failures)
	return f
}

func (f *flakyLedger) Increment(key, member string, delta int64) (int64, error) {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return 0, f.err
	}
	return f.Ledger.Increment(key, member, delta)
}

// recordingAnnouncer records lifecycle announcements.
type recordingAnnouncer struct {
	mu        sync.Mutex
	created   []model.RedPacket
	completed []model.RedPacket
}

func (a *recordingAnnouncer) PacketCreated(p model.RedPacket) {
	a.mu.Lock()
	a.created = append(a.created, p)
	a.mu.Unlock()
}

func (a *recordingAnnouncer) PacketCompleted(p model.RedPacket) {
	a.mu.Lock()
	a.completed = append(a.completed, p)
	a.mu.Unlock()
}
