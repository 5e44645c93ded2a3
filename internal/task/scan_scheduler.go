package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scanner runs one due scan and reports how many tasks it dispatched.
type Scanner interface {
	RunDueScan(ctx context.Context) (int, error)
}

// ScanScheduler triggers due scans on a cron schedule. A tick that fires
// while the previous scan is still running is skipped.
type ScanScheduler struct {
	cron    *cron.Cron
	scanner Scanner
	spec    string
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScanScheduler parses spec (standard five-field syntax or a descriptor
// like "@every 1m") and prepares the schedule. timeout bounds each run.
func NewScanScheduler(scanner Scanner, spec string, timeout time.Duration, logger *slog.Logger) (*ScanScheduler, error) {
	if scanner == nil {
		return nil, errors.New("scanner cannot be nil")
	}

	logger = logger.With("component", "scan_scheduler")
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &ScanScheduler{
		cron:    c,
		scanner: scanner,
		spec:    spec,
		timeout: timeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	if _, err := c.AddFunc(spec, s.run); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid scan schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing scans in the background.
func (s *ScanScheduler) Start() {
	s.logger.Info("scan scheduler started", "schedule", s.spec)
	s.cron.Start()
}

// Stop prevents further ticks and waits for a running scan to finish.
// If ctx ends first the running scan is cancelled between tasks.
func (s *ScanScheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("scan scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done.Done()
		return ctx.Err()
	}
}

func (s *ScanScheduler) run() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	processed, err := s.scanner.RunDueScan(ctx)
	if err != nil {
		s.logger.Error("scheduled scan failed", "error", err)
		return
	}
	s.logger.Debug("scheduled scan finished",
		"processed", processed,
		"duration", time.Since(start))
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
