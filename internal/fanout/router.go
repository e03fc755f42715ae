// Package fanout routes events to the connections of one namespace.
//
// A Router tracks which connections are attached and which rooms each has
// joined. Broadcasts snapshot the audience under the router lock, encode the
// frame once and enqueue it on every recipient after the lock is released.
// Ordering per recipient follows the order of Enqueue calls, since each
// connection drains a single queue.
package fanout

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Router errors.
var (
	ErrUnauthenticated = errors.New("connection has no verified identity")
	ErrNotAttached     = errors.New("connection is not attached")
	ErrInvalidRoom     = errors.New("room id is required")
	ErrPeerUnavailable = errors.New("connection cannot accept more frames")
)

// Peer is a connection that can receive frames.
type Peer interface {
	// ID identifies the connection. It is unique per connection.
	ID() string
	// Identity is the verified user behind the connection.
	Identity() string
	// Enqueue queues an encoded frame for delivery without blocking.
	// It returns false if the frame was not accepted.
	Enqueue(frame []byte) bool
}

// Frame is the wire envelope of every outbound event.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Encode marshals an event and its payload into a frame.
func Encode(event string, payload any) ([]byte, error) {
	b, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", event, err)
	}
	return b, nil
}

// Router is the membership registry of one namespace.
type Router struct {
	namespace string

	mu    sync.RWMutex
	peers map[Peer]map[string]struct{}
	rooms map[string]map[Peer]struct{}
}

// NewRouter creates an empty Router for namespace.
func NewRouter(namespace string) *Router {
	return &Router{
		namespace: namespace,
		peers:     make(map[Peer]map[string]struct{}),
		rooms:     make(map[string]map[Peer]struct{}),
	}
}

// Namespace returns the namespace name.
func (r *Router) Namespace() string {
	return r.namespace
}

// Attach admits a connection. Attaching twice is a no-op.
func (r *Router) Attach(p Peer) error {
	if p.Identity() == "" {
		return ErrUnauthenticated
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[p]; !ok {
		r.peers[p] = make(map[string]struct{})
	}
	return nil
}

// Detach removes a connection and its memberships. It returns the rooms the
// connection was in, sorted.
func (r *Router) Detach(p Peer) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.peers[p]
	if !ok {
		return nil
	}
	left := make([]string, 0, len(joined))
	for room := range joined {
		r.removeMember(room, p)
		left = append(left, room)
	}
	delete(r.peers, p)
	sort.Strings(left)
	return left
}

// Join adds a connection to room. Joining a room twice is a no-op and a
// connection may be in any number of rooms.
func (r *Router) Join(p Peer, room string) error {
	room = strings.TrimSpace(room)
	if room == "" {
		return ErrInvalidRoom
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.peers[p]
	if !ok {
		return ErrNotAttached
	}
	joined[room] = struct{}{}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[Peer]struct{})
		r.rooms[room] = members
	}
	members[p] = struct{}{}
	return nil
}

// Leave removes a connection from room and reports whether it was a member.
func (r *Router) Leave(p Peer, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.peers[p]
	if !ok {
		return false
	}
	if _, ok := joined[room]; !ok {
		return false
	}
	delete(joined, room)
	r.removeMember(room, p)
	return true
}

func (r *Router) removeMember(room string, p Peer) {
	members := r.rooms[room]
	delete(members, p)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Rooms returns the rooms a connection has joined, sorted.
func (r *Router) Rooms(p Peer) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.peers[p]
	out := make([]string, 0, len(joined))
	for room := range joined {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

// InRoom reports whether a connection is a member of room.
func (r *Router) InRoom(p Peer, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][p]
	return ok
}

// Members returns a snapshot of the connections in room.
func (r *Router) Members(room string) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make([]Peer, 0, len(members))
	for p := range members {
		out = append(out, p)
	}
	return out
}

// Connections returns the number of attached connections.
func (r *Router) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Broadcast sends an event to every member of room except exclude, which may
// be nil. It returns how many connections accepted the frame.
func (r *Router) Broadcast(room, event string, payload any, exclude Peer) (int, error) {
	frame, err := Encode(event, payload)
	if err != nil {
		return 0, err
	}
	return r.deliver(r.Members(room), frame, event, exclude), nil
}

// BroadcastAll sends an event to every attached connection except exclude.
func (r *Router) BroadcastAll(event string, payload any, exclude Peer) (int, error) {
	frame, err := Encode(event, payload)
	if err != nil {
		return 0, err
	}

	r.mu.RLock()
	audience := make([]Peer, 0, len(r.peers))
	for p := range r.peers {
		audience = append(audience, p)
	}
	r.mu.RUnlock()

	return r.deliver(audience, frame, event, exclude), nil
}

// EmitDirect sends an event to a single connection.
func (r *Router) EmitDirect(p Peer, event string, payload any) error {
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}
	if !p.Enqueue(frame) {
		return ErrPeerUnavailable
	}
	return nil
}

func (r *Router) deliver(audience []Peer, frame []byte, event string, exclude Peer) int {
	delivered := 0
	for _, p := range audience {
		if exclude != nil && p == exclude {
			continue
		}
		if !p.Enqueue(frame) {
			log.Warn().
				Str("namespace", r.namespace).
				Str("conn", p.ID()).
				Str("event", event).
				Msg("Dropped frame for slow or closed connection")
			continue
		}
		delivered++
	}
	return delivered
}
