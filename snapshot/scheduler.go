/*
scheduler.go - Periodic snapshot publication

PURPOSE:
  Publishes a snapshot of the fleet on a fixed interval so downstream
  readers always have a recent consistent copy.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Publishes once immediately on Start
  - A failed publication is logged and retried on the next tick

USAGE:
  scheduler := snapshot.NewScheduler(svc, publisher, logger)
  scheduler.Interval = 15 * time.Minute
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - snapshot.go: Publish
  - api/server.go: POST /api/snapshot/publish (manual publication)
*/
package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Observer is told about every publication attempt.
type Observer interface {
	ObserveSnapshot(err error)
}

// Scheduler publishes snapshots periodically.
type Scheduler struct {
	Source    Source
	Publisher Publisher
	Interval  time.Duration
	Observer  Observer

	logger *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu       sync.Mutex
	lastLocation string
	lastErr      error
	lastRun      time.Time
}

// NewScheduler creates a scheduler with a one hour interval.
func NewScheduler(src Source, pub Publisher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Source:    src,
		Publisher: pub,
		Interval:  time.Hour,
		logger:    logger.With("component", "snapshot-scheduler"),
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.logger.Info("started", "interval", s.Interval)
}

// Stop stops the scheduler and waits for an in-flight publication.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.logger.Info("stopped")
}

func (s *Scheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow publishes one snapshot immediately.
func (s *Scheduler) RunNow(ctx context.Context) (string, error) {
	now := time.Now()
	loc, err := Publish(ctx, s.Source, s.Publisher, now)
	if s.Observer != nil {
		s.Observer.ObserveSnapshot(err)
	}

	s.lastMu.Lock()
	s.lastRun, s.lastLocation, s.lastErr = now, loc, err
	s.lastMu.Unlock()

	if err != nil {
		s.logger.ErrorContext(ctx, "publication failed", "error", err)
		return "", err
	}
	s.logger.InfoContext(ctx, "snapshot published", "location", loc)
	return loc, nil
}

// Last returns the outcome of the most recent publication.
func (s *Scheduler) Last() (at time.Time, location string, err error) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastRun, s.lastLocation, s.lastErr
}

// NextRunTime returns when the next scheduled publication will occur.
func (s *Scheduler) NextRunTime() time.Time {
	return time.Now().Add(s.Interval)
}
