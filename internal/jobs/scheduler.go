package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const stopTimeout = 5 * time.Second

type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler periodically revalidates the client session.
type Scheduler struct {
	cron     *cron.Cron
	target   Refresher
	interval time.Duration
	log      zerolog.Logger
}

func NewScheduler(target Refresher, interval time.Duration, log zerolog.Logger) *Scheduler {
	logger := cronLogger{log: log}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return &Scheduler{
		cron:     c,
		target:   target,
		interval: interval,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.log.Debug().Msg("session refresh disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.refresh); err != nil {
		return fmt.Errorf("schedule session refresh: %w", err)
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		s.log.Warn().Dur("timeout", stopTimeout).Msg("session refresh still running at shutdown")
	}
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if err := s.target.Refresh(ctx); err != nil {
		s.log.Error().Err(err).Msg("session refresh failed")
	}
}

type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
