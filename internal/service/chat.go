package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"social-engine/internal/fanout"
	"social-engine/internal/keyword"
	"social-engine/internal/model"
	"social-engine/internal/presence"
)

// Chat events.
const (
	EventMessage   = "message"
	EventAnimation = "animation"
)

// History limits.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// ChatConfig configures message validation and rewards.
type ChatConfig struct {
	MaxTextRunes  int
	MessagePoints int64
}

// SendMessageInput is an inbound chat message.
type SendMessageInput struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
	Type   string `json:"type"`
}

// AnimationEvent is broadcast after a message that triggered animations.
type AnimationEvent struct {
	RoomID     string   `json:"roomId"`
	Animations []string `json:"animations"`
	Sender     string   `json:"sender"`
}

// ChatService handles rooms, messages and typing indicators of the chat namespace.
type ChatService struct {
	router   *fanout.Router
	typing   *presence.Tracker
	messages MessageStore
	ranking  *RankingService
	cfg      ChatConfig
	now      func() time.Time
}

// NewChatService creates a new ChatService instance. ranking may be nil to
// disable message points.
func NewChatService(
	router *fanout.Router,
	typing *presence.Tracker,
	messages MessageStore,
	ranking *RankingService,
	cfg ChatConfig,
) *ChatService {
	if cfg.MaxTextRunes <= 0 {
		cfg.MaxTextRunes = 2000
	}
	return &ChatService{
		router:   router,
		typing:   typing,
		messages: messages,
		ranking:  ranking,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Join adds peer to room. Joining twice is harmless.
func (s *ChatService) Join(peer fanout.Peer, room string) error {
	if err := s.router.Join(peer, room); err != nil {
		if errors.Is(err, fanout.ErrInvalidRoom) {
			return invalid("room id is required")
		}
		return err
	}
	return nil
}

// Leave removes peer from room and clears its typing indicator there.
func (s *ChatService) Leave(peer fanout.Peer, room string) bool {
	s.typing.ClearTyping(room, peer)
	return s.router.Leave(peer, room)
}

// Send validates, persists and broadcasts a chat message to its room.
// Animations triggered by the text follow the message as a separate event.
func (s *ChatService) Send(ctx context.Context, peer fanout.Peer, in SendMessageInput) (*model.Message, error) {
	room := strings.TrimSpace(in.RoomID)
	if room == "" {
		return nil, invalid("room id is required")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, invalid("text is required")
	}
	if utf8.RuneCountInString(in.Text) > s.cfg.MaxTextRunes {
		return nil, invalid("text exceeds %d characters", s.cfg.MaxTextRunes)
	}
	msgType := in.Type
	if msgType == "" {
		msgType = model.MessageText
	}
	if !model.IsValidMessageType(msgType) {
		return nil, invalid("unknown message type %q", msgType)
	}

	msg := &model.Message{
		ID:        uuid.NewString(),
		RoomID:    room,
		Sender:    peer.Identity(),
		Text:      in.Text,
		Type:      msgType,
		CreatedAt: s.now(),
	}
	if err := s.messages.SaveMessage(ctx, msg); err != nil {
		return nil, dependency("save message", err)
	}

	if s.ranking != nil && s.cfg.MessagePoints > 0 {
		if _, err := s.ranking.Award(msg.Sender, s.cfg.MessagePoints); err != nil {
			log.Warn().Err(err).Str("user", msg.Sender).Msg("Failed to award message points")
		}
	}

	msg.Triggers = keyword.Detect(msg.Text)
	s.typing.ClearTyping(room, peer)

	if _, err := s.router.Broadcast(room, EventMessage, msg, nil); err != nil {
		log.Error().Err(err).Str("room", room).Msg("Failed to broadcast message")
	}
	if len(msg.Triggers) > 0 {
		anim := AnimationEvent{RoomID: room, Animations: msg.Triggers, Sender: msg.Sender}
		if _, err := s.router.Broadcast(room, EventAnimation, anim, nil); err != nil {
			log.Error().Err(err).Str("room", room).Msg("Failed to broadcast animation")
		}
	}
	return msg, nil
}

// Typing marks peer as typing in room.
func (s *ChatService) Typing(peer fanout.Peer, room string) error {
	if err := s.typing.SetTyping(room, peer); err != nil {
		return invalid("room id is required")
	}
	return nil
}

// StopTyping clears peer's typing indicator in room.
func (s *ChatService) StopTyping(peer fanout.Peer, room string) {
	s.typing.ClearTyping(room, peer)
}

// Disconnect clears every typing indicator peer holds. The router membership
// itself is dropped by the caller.
func (s *ChatService) Disconnect(peer fanout.Peer) {
	s.typing.ClearAll(s.router.Rooms(peer), peer)
}

// History returns up to limit recent messages of room, oldest first.
func (s *ChatService) History(ctx context.Context, room string, limit int) ([]*model.Message, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return nil, invalid("room id is required")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	recent, err := s.messages.RecentMessages(ctx, room, limit)
	if err != nil {
		return nil, dependency("read messages", err)
	}
	out := make([]*model.Message, len(recent))
	for i, msg := range recent {
		msg.Triggers = keyword.Detect(msg.Text)
		out[len(recent)-1-i] = msg
	}
	return out, nil
}
