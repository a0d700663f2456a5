package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"libristack/internal/adapters/persistence/repositories"
	"libristack/internal/core/domain"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// tokenCleanupSchedule prunes expired refresh tokens alongside the scan
const tokenCleanupSchedule = "@daily"

// ScannerOptions configures the overdue scanner
type ScannerOptions struct {
	Schedule      string        // cron spec or descriptor, e.g. "@every 24h"
	Window        time.Duration // loans due before now+Window are reminded
	NotifyTimeout time.Duration // bound on each notification call
}

// ScanFailure records one reminder that could not be delivered
type ScanFailure struct {
	RecordID uint   `json:"record_id"`
	Email    string `json:"email"`
	Error    string `json:"error"`
}

// ScanReport summarises one scan
type ScanReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Matched   int           `json:"matched"`
	Notified  int           `json:"notified"`
	DueSoon   int           `json:"due_soon"`
	Overdue   int           `json:"overdue"`
	Failures  []ScanFailure `json:"failures"`
}

// OverdueScanner periodically reminds borrowers about loans that are due soon or overdue.
// It only reads the ledger.
type OverdueScanner struct {
	store    *repositories.Store
	notifier Notifier
	opts     ScannerOptions
	log      *zap.Logger
	now      func() time.Time

	cron     *cron.Cron
	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	scanning atomic.Bool
}

// NewOverdueScanner creates a new scanner
func NewOverdueScanner(store *repositories.Store, notifier Notifier, opts ScannerOptions, log *zap.Logger) *OverdueScanner {
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	return &OverdueScanner{
		store:    store,
		notifier: notifier,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (s *OverdueScanner) SetClock(now func() time.Time) {
	s.now = now
}

// Start schedules the scan. Scans run until Stop is called or ctx is done.
func (s *OverdueScanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	// each run gets its own scheduler so a restart never keeps stale jobs
	c := cron.New()
	if _, err := c.AddFunc(s.opts.Schedule, func() { s.runScheduled(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("invalid scan schedule '%s': %w", s.opts.Schedule, err)
	}
	if _, err := c.AddFunc(tokenCleanupSchedule, func() { s.cleanupTokens(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule token cleanup: %w", err)
	}

	c.Start()
	s.cron = c
	s.running = true
	s.cancel = cancel

	s.log.Info("overdue scanner started",
		zap.String("schedule", s.opts.Schedule),
		zap.Duration("window", s.opts.Window),
	)
	return nil
}

// Stop cancels in-flight work and waits for running jobs to finish
func (s *OverdueScanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	<-s.cron.Stop().Done()

	s.running = false
	s.cancel = nil
	s.cron = nil
	s.log.Info("overdue scanner stopped")
}

func (s *OverdueScanner) runScheduled(ctx context.Context) {
	report, err := s.ScanOnce(ctx)
	if errors.Is(err, ErrScanInProgress) {
		s.log.Warn("overdue scan skipped, previous run still in progress")
		return
	}
	if err != nil {
		s.log.Error("overdue scan failed", zap.Error(err))
		return
	}
	if report == nil {
		return
	}
	s.log.Info("overdue scan finished",
		zap.Int("matched", report.Matched),
		zap.Int("notified", report.Notified),
		zap.Int("failed", len(report.Failures)),
		zap.Duration("took", report.Duration),
	)
}

// ErrScanInProgress is returned when a scan is requested while another runs
var ErrScanInProgress = errors.New("overdue scan already in progress")

// ScanOnce runs a single scan. A failed notification is recorded in the
// report and the scan continues with the next record.
func (s *OverdueScanner) ScanOnce(ctx context.Context) (*ScanReport, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer s.scanning.Store(false)

	started := time.Now()
	now := s.now()
	report := &ScanReport{StartedAt: now, Failures: []ScanFailure{}}

	records, err := s.store.Borrows.ListDueBefore(ctx, now.Add(s.opts.Window))
	if err != nil {
		return nil, fmt.Errorf("list due loans: %w", err)
	}
	report.Matched = len(records)

	for _, rec := range records {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		reminder := domain.DueReminder{
			RecordID: rec.ID,
			DueDate:  rec.DueDate,
			Kind:     domain.ReminderDueSoon,
		}
		if rec.DueDate.Before(now) {
			reminder.Kind = domain.ReminderOverdue
		}
		if rec.User != nil {
			reminder.UserName = rec.User.FullName
			reminder.UserEmail = rec.User.Email
		}
		if rec.Book != nil {
			reminder.BookTitle = rec.Book.Title
		}

		if err := s.notify(ctx, reminder); err != nil {
			s.log.Warn("reminder not delivered",
				zap.Uint("record_id", rec.ID),
				zap.String("email", reminder.UserEmail),
				zap.Error(err),
			)
			report.Failures = append(report.Failures, ScanFailure{
				RecordID: rec.ID,
				Email:    reminder.UserEmail,
				Error:    err.Error(),
			})
			continue
		}

		report.Notified++
		if reminder.Kind == domain.ReminderOverdue {
			report.Overdue++
		} else {
			report.DueSoon++
		}
	}

	report.Duration = time.Since(started)
	return report, nil
}

func (s *OverdueScanner) notify(ctx context.Context, reminder domain.DueReminder) error {
	if reminder.UserEmail == "" {
		return errors.New("borrower has no email")
	}

	nctx, cancel := context.WithTimeout(ctx, s.opts.NotifyTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.notifier.SendDueReminder(nctx, reminder)
	}()

	select {
	case err := <-done:
		return err
	case <-nctx.Done():
		return fmt.Errorf("notification timed out: %w", nctx.Err())
	}
}

func (s *OverdueScanner) cleanupTokens(ctx context.Context) {
	n, err := s.store.RefreshTokens.DeleteExpired(ctx)
	if err != nil {
		s.log.Error("refresh token cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("expired refresh tokens removed", zap.Int64("count", n))
	}
}
