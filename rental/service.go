/*
service.go - Consistency coordinator for cars, customers and rents

PURPOSE:
  Single entry point for every write. Each operation runs as one unit of
  work on the store: the guard and scheduler checks, the record writes and
  the derived-flag updates commit together or not at all.

INVARIANTS (after every committed operation):
  - No two rents of a car share a day
  - car.Available == false  iff a rent references the car
  - customer.Active == false iff no rent references the customer
  - License plates and driver's licenses are unique
  - A rent references a car and a customer that existed when it was made

CONCURRENCY:
  The checks run inside the same transaction as the write, after LockCar
  and LockCustomer, so a concurrent writer cannot slip between them and no
  flag is written back from a stale read. Locks are always taken car
  first. A Locker can additionally serialize the same keys across
  processes.

ERRORS:
  Argument checks fail before the store is touched (ErrInvalidArgument).
  Domain errors raised inside the transaction keep their category. Any
  other failure rolls back and is returned as *fleet.TransactionError.

SEE ALSO:
  - guard.go: Field and uniqueness checks
  - scheduler.go: Overlap checks
  - rents.go, cars.go, customers.go: The operations
  - workspace.go: Offline replay through this service
*/
package rental

import (
	"context"
	"log/slog"
	"time"

	"github.com/warp/fleet-rental/fleet"
)

// Recorder observes every service operation.
type Recorder interface {
	Observe(op string, d time.Duration, err error)
}

// Locker serializes operations that share a key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Service coordinates all reads and writes of the rental domain.
type Service struct {
	store     fleet.TxStore
	guard     *Guard
	scheduler Scheduler
	locker    Locker
	recorder  Recorder
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

// NewService creates a service writing to store.
func NewService(store fleet.TxStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		guard:  NewGuard(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() fleet.TxStore { return s.store }

// Snapshot reads cars, customers and rents in one transaction.
func (s *Service) Snapshot(ctx context.Context) (fleet.Snapshot, error) {
	var snap fleet.Snapshot
	err := s.run(ctx, "snapshot", func(tx fleet.Store) error {
		var err error
		if snap.Cars, err = tx.ListCars(ctx); err != nil {
			return err
		}
		if snap.Customers, err = tx.ListCustomers(ctx); err != nil {
			return err
		}
		snap.Rents, err = tx.ListRents(ctx)
		return err
	})
	return snap, err
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

// run executes fn in one transaction and classifies its failure.
func (s *Service) run(ctx context.Context, op string, fn func(tx fleet.Store) error) error {
	start := time.Now()
	err := s.store.WithTx(ctx, fn)
	if err != nil && !fleet.IsDomain(err) {
		err = &fleet.TransactionError{Op: op, Err: err}
	}
	s.observe(ctx, op, start, err)
	return err
}

// reject records an argument failure that never reached the store.
func (s *Service) reject(ctx context.Context, op string, err error) error {
	s.observe(ctx, op, time.Now(), err)
	return err
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	elapsed := time.Since(start)
	if s.recorder != nil {
		s.recorder.Observe(op, elapsed, err)
	}
	switch {
	case err == nil:
		s.logger.DebugContext(ctx, "rental operation", "op", op, "duration", elapsed)
	case fleet.IsClientError(err) || fleet.IsNotFound(err):
		s.logger.InfoContext(ctx, "rental operation rejected", "op", op, "category", fleet.Category(err), "error", err)
	default:
		s.logger.ErrorContext(ctx, "rental operation failed", "op", op, "error", err)
	}
}

func carKey(id fleet.CarID) string { return "car:" + string(id) }

func customerKey(id fleet.CustomerID) string { return "customer:" + string(id) }

// withLocks holds the Locker keys, in the order given, around fn. Callers
// pass the car key before the customer key.
func (s *Service) withLocks(ctx context.Context, keys []string, fn func() error) error {
	if s.locker == nil {
		return fn()
	}
	for _, key := range keys {
		unlock, err := s.locker.Lock(ctx, key)
		if err != nil {
			return &fleet.TransactionError{Op: "lock " + key, Err: err}
		}
		defer unlock()
	}
	return fn()
}

// lockParties takes the row locks of a rent's car and customer.
func lockParties(ctx context.Context, tx fleet.Store, carID fleet.CarID, customerID fleet.CustomerID) error {
	if err := tx.LockCar(ctx, carID); err != nil {
		return err
	}
	return tx.LockCustomer(ctx, customerID)
}

func required(kind fleet.Kind, field, value string) error {
	if value == "" {
		return &fleet.ValidationError{Kind: kind, Field: field, Reason: "is required"}
	}
	return nil
}
