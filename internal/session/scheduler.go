package session

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler drives the hourly expired-session sweep (§4.9's background
// job) against a Manager.
//
// Grounded on trader-go/internal/scheduler/scheduler.go's cron.Cron
// wrapper from the aristath-sentinel pack repo (AddFunc/Start/Stop idiom),
// adapted from zerolog to zap to match the rest of this package.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	mgr    *Manager
}

// NewScheduler builds a Scheduler that calls mgr.CleanupExpiredSessions on
// the given cron spec (e.g. "@hourly").
func NewScheduler(logger *zap.Logger, mgr *Manager, spec string) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		logger: logger,
		mgr:    mgr,
	}
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running the sweep on its schedule, non-blocking.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for any in-flight sweep to finish, then stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) sweep() {
	if err := s.mgr.CleanupExpiredSessions(context.Background()); err != nil {
		s.logger.Error("expired-session sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("expired-session sweep completed")
}
