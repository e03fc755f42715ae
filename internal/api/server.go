// Package api serves the synchronous HTTP surface: red packets, leaderboards,
// step submissions and chat history.
package api

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"social-engine/internal/auth"
	"social-engine/internal/service"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds the collaborators of the HTTP API.
// Storage is optional; without it the health check only covers the process.
type Dependencies struct {
	Verifier     auth.Verifier
	RedPackets   *service.RedPacketService
	Ranking      *service.RankingService
	Chat         *service.ChatService
	Storage      HealthChecker
	AllowOrigins []string
}

// Server is the HTTP API server.
type Server struct {
	app       *fiber.App
	deps      Dependencies
	startTime time.Time
}

// New creates the HTTP API server and registers its routes.
func New(deps Dependencies) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	origins := "*"
	if len(deps.AllowOrigins) > 0 {
		origins = strings.Join(deps.AllowOrigins, ",")
	}
	app.Use(requestLogger())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	s := &Server{app: app, deps: deps, startTime: time.Now()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.healthCheck)

	api := s.app.Group("/api", s.authenticate)

	packets := api.Group("/redpacket")
	packets.Post("/", s.createPacket)
	packets.Post("/:id/grab", s.grabPacket)
	packets.Get("/:id", s.getPacket)

	game := api.Group("/game")
	game.Get("/leaderboard/:type", s.leaderboard)
	game.Post("/steps", s.submitSteps)
	game.Get("/stats", s.stats)

	chat := api.Group("/chat")
	chat.Get("/rooms", s.listRooms)
	chat.Post("/rooms", s.createRoom)
	chat.Get("/rooms/:roomId/history", s.history)
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves the API on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	log.Info().Str("addr", addr).Msg("HTTP API listening")
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// HealthResponse is the body of the health check.
type HealthResponse struct {
	Status    string `json:"status"`
	Storage   string `json:"storage,omitempty"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
}

func (s *Server) healthCheck(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.deps.Storage != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := s.deps.Storage.HealthCheck(ctx); err != nil {
			log.Warn().Err(err).Msg("Storage health check failed")
			resp.Status = "degraded"
			resp.Storage = "unavailable"
			return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
		}
		resp.Storage = "ok"
	}
	return c.JSON(resp)
}
