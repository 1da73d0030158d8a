// Package scheduler re-runs the reconciliation sync over a trailing window
// on a fixed interval. Scheduling knobs live in config.Config; the sync
// service itself stays stateless between cycles.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"callrecon/internal"
	"callrecon/internal/calendar"
	"callrecon/internal/config"
	"callrecon/internal/recon"
	"callrecon/internal/storage"
)

type Service struct {
	db  *storage.DB
	cfg config.Config
	now func() time.Time
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg, now: time.Now}
}

// Run loops until the context is cancelled. Cycles execute strictly one at
// a time; a failed cycle is logged and the next one waits the full interval.
func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			fmt.Printf("scheduler cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.SchedulerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	window := s.trailingWindow()
	svc := recon.NewSyncService(s.db, s.cfg)
	summary, err := svc.RunSync(ctx, window, nil)
	if err != nil {
		return err
	}

	fmt.Printf("scheduler cycle done window=%s..%s fetched=%d matched=%d skipped=%d unmatched=%d failed=%d\n",
		window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"),
		summary.Fetched, summary.Matched, summary.SkippedEnriched, summary.Unmatched(), summary.FailedWrites)
	return nil
}

// trailingWindow ends on today's Eastern civil date and reaches back the
// configured number of days.
func (s *Service) trailingWindow() internal.SyncWindow {
	today, _ := time.Parse("2006-01-02", calendar.CivilDate(s.now()))
	lookback := s.cfg.SchedulerLookbackDays
	if lookback < 1 {
		lookback = 1
	}
	return internal.SyncWindow{Start: today.AddDate(0, 0, -(lookback - 1)), End: today}
}
