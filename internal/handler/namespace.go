// Package handler dispatches inbound real-time events to services.
//
// A Namespace owns one fanout.Router and a table of event handlers. The
// gateway attaches connections to a namespace and feeds it decoded frames;
// handler errors are reported back to the sender as error events.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"social-engine/internal/auth"
	"social-engine/internal/fanout"
	"social-engine/internal/redpacket"
	"social-engine/internal/service"
)

// EventError is sent to a connection whose event could not be handled.
const EventError = "error"

// Error codes carried by error events.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeForbidden       = "FORBIDDEN"
	CodeUnavailable     = "UNAVAILABLE"
	CodeInternal        = "INTERNAL"
)

// ErrorPayload is the data of an error event.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandlerFunc handles one inbound event from peer.
type HandlerFunc func(ctx context.Context, peer fanout.Peer, data json.RawMessage) error

// MiddlewareFunc wraps a HandlerFunc.
type MiddlewareFunc func(event string, next HandlerFunc) HandlerFunc

// Namespace routes inbound events of one real-time namespace.
type Namespace struct {
	router *fanout.Router

	mu           sync.RWMutex
	handlers     map[string]HandlerFunc
	middleware   []MiddlewareFunc
	onDisconnect []func(fanout.Peer)
}

// NewNamespace creates a Namespace around router.
func NewNamespace(router *fanout.Router) *Namespace {
	return &Namespace{
		router:   router,
		handlers: make(map[string]HandlerFunc),
	}
}

// Name returns the namespace name.
func (n *Namespace) Name() string {
	return n.router.Namespace()
}

// Router returns the namespace router.
func (n *Namespace) Router() *fanout.Router {
	return n.router
}

// Use appends middleware. The first middleware added runs outermost.
func (n *Namespace) Use(mw ...MiddlewareFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.middleware = append(n.middleware, mw...)
}

// Handle registers fn for event. A second registration replaces the first.
func (n *Namespace) Handle(event string, fn HandlerFunc) error {
	if event == "" {
		return fmt.Errorf("event name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("cannot register nil handler for %s", event)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[event] = fn
	return nil
}

// Events returns the registered event names, sorted.
func (n *Namespace) Events() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	events := make([]string, 0, len(n.handlers))
	for e := range n.handlers {
		events = append(events, e)
	}
	sort.Strings(events)
	return events
}

// OnDisconnect registers a hook that runs before a connection is detached.
func (n *Namespace) OnDisconnect(fn func(fanout.Peer)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onDisconnect = append(n.onDisconnect, fn)
}

// Connect attaches peer to the namespace.
func (n *Namespace) Connect(peer fanout.Peer) error {
	if err := n.router.Attach(peer); err != nil {
		return err
	}
	log.Info().
		Str("namespace", n.Name()).
		Str("conn", peer.ID()).
		Str("user", peer.Identity()).
		Msg("Connection attached")
	return nil
}

// Disconnect runs the disconnect hooks and detaches peer.
func (n *Namespace) Disconnect(peer fanout.Peer) {
	n.mu.RLock()
	hooks := append([]func(fanout.Peer){}, n.onDisconnect...)
	n.mu.RUnlock()

	for _, hook := range hooks {
		hook(peer)
	}
	rooms := n.router.Detach(peer)
	log.Info().
		Str("namespace", n.Name()).
		Str("conn", peer.ID()).
		Str("user", peer.Identity()).
		Strs("rooms", rooms).
		Msg("Connection detached")
}

// Dispatch runs the handler registered for event. Failures are reported to
// peer as an error event and returned.
func (n *Namespace) Dispatch(ctx context.Context, peer fanout.Peer, event string, data json.RawMessage) error {
	n.mu.RLock()
	fn, ok := n.handlers[event]
	middleware := n.middleware
	n.mu.RUnlock()

	if !ok {
		err := fmt.Errorf("%w: unknown event %q", service.ErrInvalidPayload, event)
		n.ReplyError(peer, event, err)
		return err
	}

	h := fn
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](event, h)
	}
	if err := h(ctx, peer, data); err != nil {
		n.ReplyError(peer, event, err)
		return err
	}
	return nil
}

// ReplyError sends peer an error event describing err.
func (n *Namespace) ReplyError(peer fanout.Peer, event string, err error) {
	code, message := classify(err)
	if code == CodeInternal || code == CodeUnavailable {
		log.Error().Err(err).
			Str("namespace", n.Name()).
			Str("conn", peer.ID()).
			Str("event", event).
			Msg("Event handler failed")
	}
	payload := ErrorPayload{Event: event, Code: code, Message: message}
	if sendErr := n.router.EmitDirect(peer, EventError, payload); sendErr != nil {
		log.Debug().Err(sendErr).Str("conn", peer.ID()).Msg("Could not deliver error event")
	}
}

func classify(err error) (string, string) {
	switch {
	case errors.Is(err, service.ErrInvalidPayload),
		errors.Is(err, redpacket.ErrInvalidParameters):
		return CodeInvalidArgument, err.Error()
	case errors.Is(err, fanout.ErrNotAttached),
		errors.Is(err, fanout.ErrUnauthenticated),
		errors.Is(err, auth.ErrUnauthenticated):
		return CodeForbidden, err.Error()
	case errors.Is(err, service.ErrDependency),
		errors.Is(err, redpacket.ErrBusy):
		return CodeUnavailable, "service temporarily unavailable"
	default:
		return CodeInternal, "internal error"
	}
}

// decode unmarshals an event payload, reporting malformed input as ErrInvalidPayload.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: payload is required", service.ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidPayload, err)
	}
	return nil
}
