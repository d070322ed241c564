package authstore

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// StartRevalidation refreshes the session on a cron schedule (standard
// 5-field spec or a descriptor such as "@every 5m") until Close.
// A run is skipped while the previous one is still in flight.
func (s *Store) StartRevalidation(schedule string, timeout time.Duration) error {
	if schedule == "" {
		return nil
	}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger{s.logger}),
	))

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		st := s.Refresh(ctx)
		s.logger.Debug().
			Bool("authenticated", st.IsAuthenticated()).
			Msg("Session revalidated")
	})
	if err != nil {
		return fmt.Errorf("invalid revalidate schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.stopCron != nil {
		s.mu.Unlock()
		return fmt.Errorf("revalidation already running")
	}
	s.stopCron = func() {
		<-c.Stop().Done()
	}
	s.mu.Unlock()

	c.Start()

	s.logger.Info().Str("schedule", schedule).Msg("Session revalidation started")
	return nil
}

// cronLogger routes cron's internal logging to zerolog
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
