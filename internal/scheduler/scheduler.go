package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/agro-portal/internal/logger"
)

// Job is a task run every Interval. Immediate jobs also run once as soon as
// the scheduler starts; the others wait for their first tick.
type Job struct {
	Name      string
	Interval  time.Duration
	Immediate bool
	Run       func()
}

// Scheduler runs a fixed set of periodic jobs. It can be started again after
// Stop; every Start builds a fresh gocron scheduler.
type Scheduler struct {
	mu        sync.Mutex
	jobs      []Job
	scheduler *gocron.Scheduler
}

// New creates a Scheduler for jobs.
func New(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs}
}

// Running reports whether Start has been called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler != nil
}

// Start schedules every job and starts the underlying scheduler. Starting a
// running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return nil
	}
	if len(s.jobs) == 0 {
		logger.Info("scheduler: no jobs configured; nothing to schedule")
		return nil
	}

	gs := gocron.NewScheduler(time.UTC)
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			return errors.New("scheduler: job " + job.Name + " has no interval")
		}
		job := job
		gs.Every(job.Interval).SingletonMode()
		if !job.Immediate {
			gs.WaitForSchedule()
		}
		_, err := gs.Tag(job.Name).Do(func() {
			logger.Debug("scheduler: running %s", job.Name)
			job.Run()
		})
		if err != nil {
			gs.Clear()
			return err
		}
	}

	gs.StartAsync()
	s.scheduler = gs
	return nil
}

// Stop stops the scheduler and cancels any future runs. Runs already in
// progress are not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		s.scheduler.Stop()
		s.scheduler = nil
	}
}
