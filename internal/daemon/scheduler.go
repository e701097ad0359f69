package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Scheduler wraps the gocron scheduler driving periodic sourcing runs.
type Scheduler struct {
	scheduler gocron.Scheduler
	runner    func()
	jobID     uuid.UUID
	scheduled bool
}

// NewScheduler creates an idle scheduler.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// SetRunner injects the function executed on every tick.
func (s *Scheduler) SetRunner(f func()) { s.runner = f }

// ScheduleRuns registers the periodic sourcing job. The first run fires
// immediately once the scheduler starts.
func (s *Scheduler) ScheduleRuns(interval time.Duration) error {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.execute),
		gocron.WithName("sourcing-run"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule sourcing job: %w", err)
	}
	s.jobID = job.ID()
	s.scheduled = true
	return nil
}

// Reschedule changes the run interval without firing an extra run.
func (s *Scheduler) Reschedule(interval time.Duration) error {
	if !s.scheduled {
		return s.ScheduleRuns(interval)
	}
	job, err := s.scheduler.Update(
		s.jobID,
		gocron.DurationJob(interval),
		gocron.NewTask(s.execute),
		gocron.WithName("sourcing-run"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("reschedule sourcing job: %w", err)
	}
	s.jobID = job.ID()
	return nil
}

func (s *Scheduler) execute() {
	if s.runner == nil {
		slog.Error("scheduler runner not set")
		return
	}
	s.runner()
}

// Start begins ticking.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for a running job to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	slog.Info("stopping scheduler")
	return s.scheduler.Shutdown()
}
