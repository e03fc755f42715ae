// Package main is the entry point of the social engagement server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"social-engine/internal/api"
	"social-engine/internal/auth"
	"social-engine/internal/config"
	"social-engine/internal/fanout"
	"social-engine/internal/gateway"
	"social-engine/internal/handler"
	"social-engine/internal/ledger"
	"social-engine/internal/notify"
	"social-engine/internal/pkg/db"
	"social-engine/internal/presence"
	"social-engine/internal/redpacket"
	"social-engine/internal/repository"
	"social-engine/internal/scheduler"
	"social-engine/internal/service"
)

// Namespaces served by the gateway.
const (
	namespaceChat  = "chat"
	namespaceShake = "shake"
	namespaceGame  = "game"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}
	log.Info().Str("storage", cfg.Storage.Driver).Str("auth", cfg.Auth.Mode).Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
	log.Info().Msg("Server stopped gracefully")
}

// storage bundles the persistence collaborators of the services.
type storage struct {
	messages service.MessageStore
	shakes   service.ShakeStore
	packets  service.PacketStore
	steps    service.StepsStore
	health   api.HealthChecker
	close    func()
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.Storage.Driver != "postgres" {
		mem := repository.NewMemory()
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		return &storage{messages: mem, shakes: mem, packets: mem, steps: mem, close: func() {}}, nil
	}

	pool, err := db.NewPool(ctx, &cfg.Database, 30*time.Second)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, pool.Pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	return &storage{
		messages: repository.NewMessageRepository(pool.Pool),
		shakes:   repository.NewShakeRepository(pool.Pool),
		packets:  repository.NewPacketRepository(pool.Pool),
		steps:    repository.NewStepsRepository(pool.Pool),
		health:   pool,
		close:    pool.Close,
	}, nil
}

func newVerifier(cfg *config.AuthConfig) auth.Verifier {
	if cfg.Mode == "remote" {
		return auth.NewRemoteVerifier(cfg.IntrospectURL, cfg.Timeout)
	}
	return auth.NewJWTVerifier(cfg.JWTSecret)
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	verifier := newVerifier(&cfg.Auth)
	scores := ledger.New()

	chatRouter := fanout.NewRouter(namespaceChat)
	shakeRouter := fanout.NewRouter(namespaceShake)
	gameRouter := fanout.NewRouter(namespaceGame)
	typing := presence.NewTracker(chatRouter, cfg.Chat.TypingTimeout)

	// Services
	ranking := service.NewRankingService(scores, store.steps, service.RankingConfig{
		LeaderboardSize: cfg.Game.LeaderboardSize,
		Milestones:      cfg.Game.StepsMilestones,
		MilestonePoints: cfg.Game.MilestonePoints,
		RetentionDays:   cfg.Game.StepsRetentionDays,
	})
	packets := service.NewRedPacketService(
		redpacket.NewAllocator(redpacket.AllocatorConfig{
			MinShare:     cfg.RedPacket.MinShareCents,
			MaxDrawRatio: cfg.RedPacket.MaxDrawRatio,
			MaxCount:     cfg.RedPacket.MaxCount,
		}, nil),
		redpacket.NewStore(cfg.RedPacket.ClaimTimeout),
		store.packets,
		scores,
		service.RedPacketConfig{
			PointsMultiplier: cfg.RedPacket.PointsMultiplier,
			TTL:              cfg.RedPacket.TTL,
			DefaultMessage:   cfg.RedPacket.DefaultMessage,
		},
	)
	packets.SetBroadcaster(chatRouter)

	var announcer *notify.Telegram
	if cfg.Notify.Telegram.Enabled() {
		announcer, err = notify.NewTelegram(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID)
		if err != nil {
			return err
		}
		packets.SetAnnouncer(announcer)
		log.Info().Int64("chat_id", cfg.Notify.Telegram.ChatID).Msg("Telegram announcements enabled")
	}

	restored, err := packets.Restore(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore red packets: %w", err)
	}
	log.Info().Int("packets", restored).Msg("Active red packets restored")

	chat := service.NewChatService(chatRouter, typing, store.messages, ranking, service.ChatConfig{
		MaxTextRunes:  cfg.Chat.MaxTextRunes,
		MessagePoints: cfg.Chat.MessagePoints,
	})
	shake := service.NewShakeService(shakeRouter, store.shakes)
	game := service.NewGameService(gameRouter, ranking)

	// Real-time namespaces
	chatNS, err := newNamespace(chatRouter, func(ns *handler.Namespace) error { return handler.RegisterChat(ns, chat) })
	if err != nil {
		return err
	}
	shakeNS, err := newNamespace(shakeRouter, func(ns *handler.Namespace) error { return handler.RegisterShake(ns, shake) })
	if err != nil {
		return err
	}
	gameNS, err := newNamespace(gameRouter, func(ns *handler.Namespace) error { return handler.RegisterGame(ns, game) })
	if err != nil {
		return err
	}

	ws := gateway.NewServer(verifier, gateway.Options{
		SendBuffer:    cfg.Chat.SendBuffer,
		MaxFrameBytes: cfg.Chat.MaxFrameBytes,
		AllowOrigins:  cfg.Server.AllowOrigins,
	}, chatNS, shakeNS, gameNS)
	wsServer := &http.Server{
		Addr:              cfg.Server.WSAddr,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpAPI := api.New(api.Dependencies{
		Verifier:     verifier,
		RedPackets:   packets,
		Ranking:      ranking,
		Chat:         chat,
		Storage:      store.health,
		AllowOrigins: cfg.Server.AllowOrigins,
	})

	jobs := scheduler.New(scheduler.Config{
		SweepInterval: cfg.RedPacket.SweepInterval,
		PruneAt:       "00:05",
	}, packets, ranking)
	if err := jobs.Start(); err != nil {
		return err
	}
	defer jobs.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpAPI.Listen(cfg.Server.APIAddr)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.WSAddr).Msg("WebSocket gateway listening")
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := httpAPI.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("api shutdown: %w", err))
		}
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("gateway shutdown: %w", err))
		}
		if err := ws.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("websocket close: %w", err))
		}
		if announcer != nil {
			announcer.Wait()
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func newNamespace(router *fanout.Router, register func(*handler.Namespace) error) (*handler.Namespace, error) {
	ns := handler.NewNamespace(router)
	ns.Use(handler.LoggingMiddleware(router.Namespace()), handler.RecoveryMiddleware())
	if err := register(ns); err != nil {
		return nil, fmt.Errorf("failed to register %s handlers: %w", router.Namespace(), err)
	}
	log.Info().Str("namespace", ns.Name()).Strs("events", ns.Events()).Msg("Namespace registered")
	return ns, nil
}
