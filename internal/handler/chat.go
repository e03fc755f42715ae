package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"social-engine/internal/fanout"
	"social-engine/internal/service"
)

// Chat namespace events.
const (
	EventJoinRoom   = "join_room"
	EventLeaveRoom  = "leave_room"
	EventTyping     = "typing"
	EventStopTyping = "stop_typing"
)

type roomPayload struct {
	RoomID string `json:"roomId"`
}

// roomOf accepts either a bare JSON string or an object with a roomId field.
func roomOf(data json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var room string
		if err := json.Unmarshal(trimmed, &room); err != nil {
			return "", fmt.Errorf("%w: %v", service.ErrInvalidPayload, err)
		}
		return room, nil
	}
	var p roomPayload
	if err := decode(trimmed, &p); err != nil {
		return "", err
	}
	return p.RoomID, nil
}

// RegisterChat wires the chat namespace events to svc.
func RegisterChat(ns *Namespace, svc *service.ChatService) error {
	handlers := map[string]HandlerFunc{
		EventJoinRoom: func(_ context.Context, peer fanout.Peer, data json.RawMessage) error {
			room, err := roomOf(data)
			if err != nil {
				return err
			}
			return svc.Join(peer, room)
		},
		EventLeaveRoom: func(_ context.Context, peer fanout.Peer, data json.RawMessage) error {
			room, err := roomOf(data)
			if err != nil {
				return err
			}
			svc.Leave(peer, room)
			return nil
		},
		service.EventMessage: func(ctx context.Context, peer fanout.Peer, data json.RawMessage) error {
			var in service.SendMessageInput
			if err := decode(data, &in); err != nil {
				return err
			}
			_, err := svc.Send(ctx, peer, in)
			return err
		},
		EventTyping: func(_ context.Context, peer fanout.Peer, data json.RawMessage) error {
			room, err := roomOf(data)
			if err != nil {
				return err
			}
			return svc.Typing(peer, room)
		},
		EventStopTyping: func(_ context.Context, peer fanout.Peer, data json.RawMessage) error {
			room, err := roomOf(data)
			if err != nil {
				return err
			}
			svc.StopTyping(peer, room)
			return nil
		},
	}
	for event, fn := range handlers {
		if err := ns.Handle(event, fn); err != nil {
			return err
		}
	}
	ns.OnDisconnect(svc.Disconnect)
	return nil
}
