package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"social-engine/internal/auth"
	"social-engine/internal/redpacket"
	"social-engine/internal/service"
)

const localUser = "user"

// authenticate resolves the bearer token to an identity through the session gate.
func (s *Server) authenticate(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodOptions {
		return c.Next()
	}
	token, ok := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "Access token required")
	}
	identity, err := s.deps.Verifier.Verify(c.UserContext(), token)
	if err != nil {
		return err
	}
	c.Locals(localUser, identity)
	return c.Next()
}

func currentUser(c *fiber.Ctx) string {
	user, _ := c.Locals(localUser).(string)
	return user
}

// requestLogger logs each request once its response status is known.
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		event := log.Debug()
		if status >= fiber.StatusInternalServerError {
			event = log.Warn()
		}
		event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("took", time.Since(start)).
			Str("user", currentUser(c)).
			Msg("HTTP request")
		return nil
	}
}

type apiError struct {
	status  int
	message string
	reason  string
}

func classify(err error) apiError {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return apiError{fe.Code, fe.Message, ""}
	case errors.Is(err, redpacket.ErrNotFound):
		return apiError{fiber.StatusNotFound, "Red packet not found", "not_found"}
	case errors.Is(err, redpacket.ErrNotActive):
		return apiError{fiber.StatusBadRequest, "Red packet is no longer active", "not_active"}
	case errors.Is(err, redpacket.ErrAlreadyClaimed):
		return apiError{fiber.StatusBadRequest, "Already claimed", "already_claimed"}
	case errors.Is(err, redpacket.ErrExhausted):
		return apiError{fiber.StatusBadRequest, "All packets claimed", "exhausted"}
	case errors.Is(err, redpacket.ErrBusy):
		return apiError{fiber.StatusServiceUnavailable, "Red packet is busy, try again", "busy"}
	case errors.Is(err, redpacket.ErrInvalidParameters):
		return apiError{fiber.StatusBadRequest, "Invalid parameters", "invalid_parameters"}
	case errors.Is(err, service.ErrUnknownLeaderboard):
		return apiError{fiber.StatusBadRequest, "Invalid leaderboard type", "invalid_type"}
	case errors.Is(err, service.ErrInvalidPayload):
		return apiError{fiber.StatusBadRequest, err.Error(), "invalid_payload"}
	case errors.Is(err, auth.ErrGateUnavailable):
		return apiError{fiber.StatusServiceUnavailable, "Authentication unavailable", "gate_unavailable"}
	case errors.Is(err, auth.ErrUnauthenticated):
		return apiError{fiber.StatusUnauthorized, "Invalid token", "unauthenticated"}
	case errors.Is(err, service.ErrDependency):
		return apiError{fiber.StatusInternalServerError, "Server error", "dependency"}
	default:
		return apiError{fiber.StatusInternalServerError, "Server error", "internal"}
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	e := classify(err)
	if e.status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	}
	body := fiber.Map{"error": e.message}
	if e.reason != "" {
		body["reason"] = e.reason
	}
	return c.Status(e.status).JSON(body)
}
