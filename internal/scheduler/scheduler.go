package scheduler

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
	"github.com/sub4sub/backend/internal/config"
	"github.com/sub4sub/backend/internal/services"
)

// Scheduler runs the periodic maintenance sweeps: the premium expiry reaper
// and the quality score recompute.
type Scheduler struct {
	cron    *cron.Cron
	expiry  *services.ExpiryService
	quality *services.QualityService
	cfg     *config.SchedulerConfig
}

func New(expiry *services.ExpiryService, quality *services.QualityService, cfg *config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		expiry:  expiry,
		quality: quality,
		cfg:     cfg,
	}
}

// Start registers the jobs and starts the cron loop. Job functions never
// panic the process; failures are logged and retried on the next tick.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.ExpirySchedule, s.runExpirySweep); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.QualitySchedule, s.runQualitySweep); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("[SCHEDULER] Started: expiry %q, quality %q", s.cfg.ExpirySchedule, s.cfg.QualitySchedule)
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[SCHEDULER] Stopped")
}

func (s *Scheduler) runExpirySweep() {
	result, err := s.expiry.Sweep(context.Background())
	if err != nil {
		log.Printf("[SCHEDULER] Expiry sweep failed: %v", err)
		return
	}
	log.Printf("[SCHEDULER] Expiry sweep: checked %d, downgraded %d", result.Checked, result.Downgraded)
}

func (s *Scheduler) runQualitySweep() {
	updated, err := s.quality.RecomputeAll(context.Background())
	if err != nil {
		log.Printf("[SCHEDULER] Quality sweep failed: %v", err)
		return
	}
	log.Printf("[SCHEDULER] Quality sweep: updated %d users", updated)
}
