// Package fanouttest provides an in-memory fanout.Peer for tests.
package fanouttest

import (
	"encoding/json"
	"sync"
)

// Frame is a decoded frame received by a Peer.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Peer records every frame it is given.
type Peer struct {
	id       string
	identity string

	mu     sync.Mutex
	frames []Frame
	closed bool
}

// NewPeer creates a Peer with the given connection id and identity.
func NewPeer(id, identity string) *Peer {
	return &Peer{id: id, identity: identity}
}

func (p *Peer) ID() string       { return p.id }
func (p *Peer) Identity() string { return p.identity }

// Enqueue records frame unless the peer was closed.
func (p *Peer) Enqueue(frame []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	var f Frame
	if err := json.Unmarshal(frame, &f); err != nil {
		return false
	}
	p.frames = append(p.frames, f)
	return true
}

// Close makes subsequent Enqueue calls fail.
func (p *Peer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Frames returns a copy of every recorded frame.
func (p *Peer) Frames() []Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Frame(nil), p.frames...)
}

// Events returns the event names of recorded frames, in order.
func (p *Peer) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.frames))
	for i, f := range p.frames {
		out[i] = f.Event
	}
	return out
}

// Find returns recorded frames with the given event name.
func (p *Peer) Find(event string) []Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Frame
	for _, f := range p.frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

// Reset drops recorded frames.
func (p *Peer) Reset() {
	p.mu.Lock()
	p.frames = nil
	p.mu.Unlock()
}
