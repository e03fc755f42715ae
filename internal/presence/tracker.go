// Package presence tracks which users are typing in which rooms.
//
// Entries live in a go-cache with a short expiration. Every way an entry can
// leave the cache (explicit clear, expiry, a message being sent) goes through
// the eviction callback, which announces user_stop_typing exactly once.
package presence

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"social-engine/internal/fanout"
)

// Typing events.
const (
	EventTyping     = "user_typing"
	EventStopTyping = "user_stop_typing"
)

// DefaultTimeout is how long a typing indicator survives without a refresh.
const DefaultTimeout = time.Second

// ErrInvalidRoom is returned when the room id is empty.
var ErrInvalidRoom = errors.New("room id is required")

// Broadcaster delivers room events, excluding one connection.
type Broadcaster interface {
	Broadcast(room, event string, payload any, exclude fanout.Peer) (int, error)
}

// Notice is the payload of typing events.
type Notice struct {
	User   string `json:"user"`
	RoomID string `json:"roomId"`
}

type typingEntry struct {
	room string
	peer fanout.Peer
}

// Tracker holds the typing set of every room.
type Tracker struct {
	router  Broadcaster
	timeout time.Duration

	// mu orders announcements so a start and a stop for the same key are
	// never delivered out of order. announced holds the keys whose last
	// announcement was a start.
	mu        sync.Mutex
	announced map[string]bool
	items     *cache.Cache
}

// NewTracker creates a Tracker whose entries expire after timeout.
func NewTracker(router Broadcaster, timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	janitor := timeout / 4
	if janitor < 10*time.Millisecond {
		janitor = 10 * time.Millisecond
	}

	t := &Tracker{
		router:    router,
		timeout:   timeout,
		announced: make(map[string]bool),
		items:     cache.New(timeout, janitor),
	}
	t.items.OnEvicted(t.evicted)
	return t
}

func typingKey(room, identity string) string {
	return room + "\x00" + identity
}

// SetTyping marks the peer's user as typing in room and refreshes its
// expiry. Other room members are told only when the user was not already typing.
func (t *Tracker) SetTyping(room string, peer fanout.Peer) error {
	room = strings.TrimSpace(room)
	if room == "" {
		return ErrInvalidRoom
	}
	key := typingKey(room, peer.Identity())

	t.mu.Lock()
	defer t.mu.Unlock()

	t.items.Set(key, typingEntry{room: room, peer: peer}, t.timeout)
	if t.announced[key] {
		return nil
	}
	t.announced[key] = true
	t.announce(EventTyping, room, peer)
	return nil
}

// ClearTyping removes the typing indicator of the peer's user in room.
// It reports whether an indicator was present. The stop notice comes from
// the eviction callback, which go-cache runs synchronously on Delete, so
// t.mu must not be held here.
func (t *Tracker) ClearTyping(room string, peer fanout.Peer) bool {
	key := typingKey(strings.TrimSpace(room), peer.Identity())
	if _, found := t.items.Get(key); !found {
		return false
	}
	t.items.Delete(key)
	return true
}

// ClearAll removes every indicator the peer's user holds in rooms.
func (t *Tracker) ClearAll(rooms []string, peer fanout.Peer) {
	for _, room := range rooms {
		t.ClearTyping(room, peer)
	}
}

// IsTyping reports whether identity is typing in room.
func (t *Tracker) IsTyping(room, identity string) bool {
	_, found := t.items.Get(typingKey(room, identity))
	return found
}

// Typing returns the users currently typing in room, sorted.
func (t *Tracker) Typing(room string) []string {
	prefix := room + "\x00"
	var out []string
	for key := range t.items.Items() {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out
}

func (t *Tracker) evicted(key string, value interface{}) {
	entry, ok := value.(typingEntry)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Re-set while this eviction was in flight: the user is still typing.
	if _, found := t.items.Get(key); found {
		return
	}
	if !t.announced[key] {
		return
	}
	delete(t.announced, key)
	t.announce(EventStopTyping, entry.room, entry.peer)
}

func (t *Tracker) announce(event, room string, peer fanout.Peer) {
	notice := Notice{User: peer.Identity(), RoomID: room}
	if _, err := t.router.Broadcast(room, event, notice, peer); err != nil {
		log.Warn().Err(err).Str("room", room).Str("event", event).Msg("Failed to announce typing state")
	}
}
