package handler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"pgregory.net/rapid"

	"social-engine/internal/fanout"
	"social-engine/internal/fanout/fanouttest"
	"social-engine/internal/service"
)

// TestDispatchOutcomeProperty checks that, whatever the middleware stack and
// whatever the handler does, Dispatch fails exactly when the handler failed
// or panicked, and the sender then gets exactly one error event.
func TestDispatchOutcomeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		outcome := rapid.SampledFrom([]string{"ok", "invalid", "dependency", "panic"}).Draw(t, "outcome")
		layers := rapid.IntRange(0, 4).Draw(t, "layers")

		ns := NewNamespace(fanout.NewRouter("game"))
		peer := fanouttest.NewPeer("c1", "alice")
		if err := ns.Connect(peer); err != nil {
			t.Fatalf("connect: %v", err)
		}

		ns.Use(RecoveryMiddleware())
		for i := 0; i < layers; i++ {
			ns.Use(LoggingMiddleware("game"))
		}
		_ = ns.Handle("act", func(context.Context, fanout.Peer, json.RawMessage) error {
			switch outcome {
			case "invalid":
				return service.ErrInvalidPayload
			case "dependency":
				return errors.Join(service.ErrDependency, errors.New("down"))
			case "panic":
				panic("handler bug")
			}
			return nil
		})

		err := ns.Dispatch(context.Background(), peer, "act", nil)
		failed := outcome != "ok"
		if (err != nil) != failed {
			t.Fatalf("outcome %s: unexpected dispatch error %v", outcome, err)
		}

		errorFrames := len(peer.Find(EventError))
		if failed && errorFrames != 1 {
			t.Fatalf("outcome %s: expected one error event, got %d", outcome, errorFrames)
		}
		if !failed && errorFrames != 0 {
			t.Fatalf("outcome ok: expected no error event, got %d", errorFrames)
		}
	})
}
