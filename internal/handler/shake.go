package handler

import (
	"context"
	"encoding/json"

	"social-engine/internal/fanout"
	"social-engine/internal/service"
)

// EventShake is sent by a client whose device was shaken.
const EventShake = "shake"

// RegisterShake wires the shake namespace events to svc.
func RegisterShake(ns *Namespace, svc *service.ShakeService) error {
	return ns.Handle(EventShake, func(ctx context.Context, peer fanout.Peer, data json.RawMessage) error {
		var in service.ShakeInput
		if len(data) > 0 && string(data) != "null" {
			if err := decode(data, &in); err != nil {
				return err
			}
		}
		_, err := svc.Shake(ctx, peer, in)
		return err
	})
}
