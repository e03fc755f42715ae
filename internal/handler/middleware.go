package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"social-engine/internal/fanout"
)

// LoggingMiddleware logs every inbound event with its outcome and duration.
func LoggingMiddleware(namespace string) MiddlewareFunc {
	return func(event string, next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, peer fanout.Peer, data json.RawMessage) error {
			start := time.Now()
			err := next(ctx, peer, data)

			logEvent := log.Debug()
			if err != nil {
				logEvent = log.Info().Err(err)
			}
			logEvent.
				Str("namespace", namespace).
				Str("event", event).
				Str("conn", peer.ID()).
				Str("user", peer.Identity()).
				Dur("took", time.Since(start)).
				Msg("Handled event")
			return err
		}
	}
}

// RecoveryMiddleware turns a panicking handler into an error.
func RecoveryMiddleware() MiddlewareFunc {
	return func(event string, next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, peer fanout.Peer, data json.RawMessage) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("event", event).
						Str("conn", peer.ID()).
						Msg("Recovered from panic in handler")
					err = fmt.Errorf("panic in %s handler: %v", event, r)
				}
			}()
			return next(ctx, peer, data)
		}
	}
}
