package scheduler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
)

// ExpireFunc sweeps stale pending invitations and reports how many it
// flipped.
type ExpireFunc func(ctx context.Context) (int, error)

// Scheduler runs periodic maintenance jobs. Right now that is a single
// hourly sweep expiring overdue invitations.
type Scheduler struct {
	cron   *cron.Cron
	expire ExpireFunc
}

func New(expire ExpireFunc) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		expire: expire,
	}
}

// Start registers the cron entries and launches the scheduler. It runs one
// sweep immediately so a restart never leaves overdue invitations pending
// for up to an hour.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.runSweep); err != nil {
		return err
	}
	go s.runSweep()
	s.cron.Start()
	log.Info("scheduler started, invitation expiry sweep runs hourly")
	return nil
}

// Stop shuts the scheduler down and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("scheduler stopped")
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := s.expire(ctx)
	if err != nil {
		log.Errorf("invitation expiry sweep failed: %v", err)
		return
	}
	if count > 0 {
		log.Infof("invitation expiry sweep expired %d invitation(s)", count)
	}
}
