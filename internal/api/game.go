package api

import (
	"github.com/gofiber/fiber/v2"

	"social-engine/internal/service"
)

type stepsRequest struct {
	Count int64  `json:"count"`
	Date  string `json:"date"`
}

type stepsResponse struct {
	Success bool `json:"success"`
	service.StepsResult
}

func (s *Server) leaderboard(c *fiber.Ctx) error {
	entries, err := s.deps.Ranking.Leaderboard(c.Params("type"), c.Query("date"), c.QueryInt("limit"))
	if err != nil {
		return err
	}
	return c.JSON(entries)
}

func (s *Server) submitSteps(c *fiber.Ctx) error {
	var req stepsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid parameters")
	}

	res, err := s.deps.Ranking.SubmitSteps(c.UserContext(), currentUser(c), req.Count, req.Date)
	if err != nil {
		return err
	}
	return c.JSON(stepsResponse{Success: true, StepsResult: res})
}

func (s *Server) stats(c *fiber.Ctx) error {
	stats, err := s.deps.Ranking.Stats(c.UserContext(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
