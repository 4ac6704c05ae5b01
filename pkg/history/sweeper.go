package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper prunes archives older than the retention window on a cron
// schedule.
type Sweeper struct {
	logger    *slog.Logger
	store     Store
	retention time.Duration
	cron      *cron.Cron
}

func NewSweeper(logger *slog.Logger, store Store, retention time.Duration) *Sweeper {
	return &Sweeper{
		logger:    logger,
		store:     store,
		retention: retention,
		cron:      cron.New(),
	}
}

// Start schedules the sweep. The schedule uses standard cron syntax,
// e.g. "@hourly".
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

func (s *Sweeper) Stop() {
	s.cron.Stop()
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)

	archives, err := s.store.List(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "History sweep failed to list archives", "error", err)

		return
	}

	removed := 0

	for _, archive := range archives {
		if archive.ArchivedAt.After(cutoff) {
			continue
		}

		if err := s.store.Delete(ctx, archive.ExecutionID); err != nil {
			s.logger.WarnContext(ctx, "History sweep failed to delete archive",
				"execution_id", archive.ExecutionID, "error", err)

			continue
		}

		removed++
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "History sweep removed expired archives", "count", removed)
	}
}
