package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"social-engine/internal/model"
	"social-engine/internal/service"
)

type createPacketRequest struct {
	RoomID      string  `json:"roomId"`
	TotalAmount float64 `json:"totalAmount"`
	Count       int     `json:"count"`
	Message     string  `json:"message"`
}

type createPacketResponse struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"roomId"`
	Sender      string    `json:"sender"`
	TotalAmount float64   `json:"totalAmount"`
	Count       int       `json:"count"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
}

type grabResponse struct {
	Amount       float64 `json:"amount"`
	Message      string  `json:"message"`
	Points       int64   `json:"points"`
	TotalClaimed int     `json:"totalClaimed"`
	TotalCount   int     `json:"totalCount"`
}

type claimView struct {
	User      string    `json:"user"`
	Amount    float64   `json:"amount"`
	ClaimedAt time.Time `json:"claimedAt"`
}

type packetView struct {
	ID            string      `json:"id"`
	RoomID        string      `json:"roomId"`
	Sender        string      `json:"sender"`
	TotalAmount   float64     `json:"totalAmount"`
	Count         int         `json:"count"`
	ClaimedCount  int         `json:"claimedCount"`
	ClaimedAmount float64     `json:"claimedAmount"`
	Message       string      `json:"message"`
	Claims        []claimView `json:"claims"`
	Status        string      `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
	// Allocations are only revealed once every share is claimed.
	Allocations []float64 `json:"allocations,omitempty"`
}

func (s *Server) createPacket(c *fiber.Ctx) error {
	var req createPacketRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid parameters")
	}

	p, err := s.deps.RedPackets.Create(c.UserContext(), service.CreatePacketInput{
		Channel:     req.RoomID,
		Sender:      currentUser(c),
		TotalAmount: model.ToCents(req.TotalAmount),
		Count:       req.Count,
		Message:     req.Message,
	})
	if err != nil {
		return err
	}

	return c.JSON(createPacketResponse{
		ID:          p.ID,
		RoomID:      p.Channel,
		Sender:      p.Sender,
		TotalAmount: model.FromCents(p.TotalAmount),
		Count:       p.ShareCount,
		Message:     p.Message,
		CreatedAt:   p.CreatedAt,
	})
}

func (s *Server) grabPacket(c *fiber.Ctx) error {
	out, err := s.deps.RedPackets.Claim(c.UserContext(), c.Params("id"), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(grabResponse{
		Amount:       model.FromCents(out.Amount),
		Message:      "Congratulations!",
		Points:       out.Points,
		TotalClaimed: out.ClaimedCount,
		TotalCount:   out.ShareCount,
	})
}

func (s *Server) getPacket(c *fiber.Ctx) error {
	p, err := s.deps.RedPackets.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	view := packetView{
		ID:            p.ID,
		RoomID:        p.Channel,
		Sender:        p.Sender,
		TotalAmount:   model.FromCents(p.TotalAmount),
		Count:         p.ShareCount,
		ClaimedCount:  p.ClaimedCount,
		ClaimedAmount: model.FromCents(p.ClaimedAmount()),
		Message:       p.Message,
		Claims:        make([]claimView, len(p.Claims)),
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
	}
	for i, cl := range p.Claims {
		view.Claims[i] = claimView{User: cl.User, Amount: model.FromCents(cl.Amount), ClaimedAt: cl.ClaimedAt}
	}
	if p.Status == model.StatusCompleted {
		view.Allocations = make([]float64, len(p.Allocations))
		for i, a := range p.Allocations {
			view.Allocations[i] = model.FromCents(a)
		}
	}
	return c.JSON(view)
}
