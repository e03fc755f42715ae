package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Room describes a chat room offered to clients.
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

var defaultRooms = []Room{
	{ID: "general", Name: "General", Description: "General chat for everyone"},
	{ID: "gaming", Name: "Gaming", Description: "Gaming discussions"},
	{ID: "random", Name: "Random", Description: "Random conversations"},
}

type createRoomRequest struct {
	Name string `json:"name"`
}

type createRoomResponse struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

func (s *Server) listRooms(c *fiber.Ctx) error {
	return c.JSON(defaultRooms)
}

// createRoom mints a room id. Rooms need no registration: they exist as
// soon as a connection joins one.
func (s *Server) createRoom(c *fiber.Ctx) error {
	var req createRoomRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid parameters")
		}
	}

	id, err := gonanoid.New()
	if err != nil {
		return err
	}
	roomID := "room_" + id
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Room " + roomID
	}
	return c.JSON(createRoomResponse{RoomID: roomID, Name: name})
}

func (s *Server) history(c *fiber.Ctx) error {
	msgs, err := s.deps.Chat.History(c.UserContext(), c.Params("roomId"), c.QueryInt("limit"))
	if err != nil {
		return err
	}
	return c.JSON(msgs)
}
