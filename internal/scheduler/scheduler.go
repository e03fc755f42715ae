// Package scheduler runs the periodic maintenance jobs: red packet expiry and
// step leaderboard retention.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
)

// PacketSweeper expires red packets that outlived their TTL.
type PacketSweeper interface {
	ExpireStale(ctx context.Context) []string
}

// StepsPruner drops step leaderboards past their retention window.
type StepsPruner interface {
	PruneSteps() []string
}

// Config controls job timing.
type Config struct {
	// SweepInterval is how often stale packets are expired. Zero disables the job.
	SweepInterval time.Duration
	// PruneAt is the daily HH:MM at which old step boards are dropped. Empty disables the job.
	PruneAt  string
	Location *time.Location
}

// Scheduler owns the job runner.
type Scheduler struct {
	cron    *gocron.Scheduler
	cfg     Config
	packets PacketSweeper
	steps   StepsPruner
}

// New creates a scheduler. Either collaborator may be nil.
func New(cfg Config, packets PacketSweeper, steps StepsPruner) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := gocron.NewScheduler(cfg.Location)
	s.SetMaxConcurrentJobs(2, gocron.RescheduleMode)

	return &Scheduler{
		cron:    s,
		cfg:     cfg,
		packets: packets,
		steps:   steps,
	}
}

// Start registers the jobs and runs them in the background.
func (s *Scheduler) Start() error {
	if err := s.registerJobs(); err != nil {
		return err
	}
	log.Info().Int("jobs", len(s.cron.Jobs())).Msg("Scheduler started")
	s.cron.StartAsync()
	return nil
}

// Stop halts the scheduler. Running jobs finish first.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) registerJobs() error {
	if s.packets != nil && s.cfg.SweepInterval > 0 {
		if _, err := s.cron.Every(s.cfg.SweepInterval).Do(s.sweepPackets); err != nil {
			return fmt.Errorf("failed to schedule packet expiry: %w", err)
		}
		log.Info().Dur("interval", s.cfg.SweepInterval).Msg("Registered red packet expiry job")
	}

	if s.steps != nil && s.cfg.PruneAt != "" {
		if _, err := s.cron.Every(1).Day().At(s.cfg.PruneAt).Do(s.pruneSteps); err != nil {
			return fmt.Errorf("failed to schedule steps retention: %w", err)
		}
		log.Info().Str("at", s.cfg.PruneAt).Msg("Registered steps retention job")
	}
	return nil
}

func (s *Scheduler) sweepPackets() {
	expired := s.packets.ExpireStale(context.Background())
	if len(expired) > 0 {
		log.Info().Strs("packets", expired).Msg("Expiry sweep finished")
	}
}

func (s *Scheduler) pruneSteps() {
	removed := s.steps.PruneSteps()
	log.Info().Strs("keys", removed).Msg("Steps retention finished")
}
