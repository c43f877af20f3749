/*
workspace.go - Offline editing and replay against a rental backend

PURPOSE:
  A Workspace is the client side of the rental engine. Edits go into
  three trackers (cars, customers, rents) and stay local until Commit
  replays them through a Backend, which is either a Service in the same
  process or the HTTP client in package api.

REPLAY ORDER:
  Dependencies first, so a rent never reaches the server before its car
  and customer, and a car is never removed before its rents:

    1. cars added          4. customers updated    7. rents deleted (cancel)
    2. customers added     5. rents added          8. customers deleted
    3. cars updated        6. rents updated        9. cars deleted

  Each entry succeeds or fails on its own. A success is resolved (and a
  delete is dropped from the working list); a failure keeps its pending
  state and is reported. After the replay the workspace reloads from
  the backend, keeping the failed entries pending.

THREADING:
  A Workspace belongs to one goroutine. Commit and Refresh must not run
  while another goroutine edits the trackers.

SEE ALSO:
  - fleet/tracker.go: Pending-change tracking and merge policies
  - service.go: The authoritative side of the replay
*/
package rental

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/warp/fleet-rental/fleet"
)

// Backend is what a Workspace replays against.
type Backend interface {
	AddCar(ctx context.Context, car fleet.Car) (fleet.Car, error)
	UpdateCar(ctx context.Context, car fleet.Car) (fleet.Car, error)
	RemoveCar(ctx context.Context, id fleet.CarID) error

	AddCustomer(ctx context.Context, customer fleet.Customer) (fleet.Customer, error)
	UpdateCustomer(ctx context.Context, customer fleet.Customer) (fleet.Customer, error)
	RemoveCustomer(ctx context.Context, id fleet.CustomerID) error

	AddRent(ctx context.Context, rent fleet.Rent) (fleet.Rent, error)
	UpdateRent(ctx context.Context, rent fleet.Rent) (fleet.Rent, error)
	CancelRent(ctx context.Context, id fleet.RentID) error

	Snapshot(ctx context.Context) (fleet.Snapshot, error)
}

var _ Backend = (*Service)(nil)

// Op is a replayed change.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ReplayFailure is one entry the backend refused.
type ReplayFailure struct {
	Kind fleet.Kind
	ID   string
	Op   Op
	Err  error
}

func (f ReplayFailure) Error() string {
	return fmt.Sprintf("%s %s %s: %v", f.Op, f.Kind, f.ID, f.Err)
}

func (f ReplayFailure) Unwrap() error { return f.Err }

// CommitReport summarizes one Commit.
type CommitReport struct {
	Added      int
	Updated    int
	Removed    int
	Failures   []ReplayFailure
	RefreshErr error
}

// Err joins every failure so errors.Is still sees each category.
func (r CommitReport) Err() error {
	errs := make([]error, 0, len(r.Failures)+1)
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	if r.RefreshErr != nil {
		errs = append(errs, fmt.Errorf("refresh: %w", r.RefreshErr))
	}
	return errors.Join(errs...)
}

func (r CommitReport) String() string {
	return fmt.Sprintf("%d added, %d updated, %d removed, %d failed", r.Added, r.Updated, r.Removed, len(r.Failures))
}

// =============================================================================
// WORKSPACE
// =============================================================================

type Workspace struct {
	Cars      *fleet.Tracker[fleet.Car]
	Customers *fleet.Tracker[fleet.Customer]
	Rents     *fleet.Tracker[fleet.Rent]

	logger *slog.Logger
}

// NewWorkspace creates an empty workspace merging with policy.
func NewWorkspace(policy fleet.MergePolicy, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Workspace{
		Cars:      fleet.NewTracker(fleet.Car.Key),
		Customers: fleet.NewTracker(fleet.Customer.Key),
		Rents:     fleet.NewTracker(fleet.Rent.Key),
		logger:    logger,
	}
	w.Cars.SetMergePolicy(policy)
	w.Customers.SetMergePolicy(policy)
	w.Rents.SetMergePolicy(policy)
	return w
}

// AddCar tracks a new car, generating its ID so it keeps one identity
// through replay.
func (w *Workspace) AddCar(car fleet.Car) fleet.Car {
	if car.ID == "" {
		car.ID = fleet.NewCarID()
	}
	car.Available = true
	w.Cars.Add(car)
	return car
}

// AddCustomer tracks a new customer.
func (w *Workspace) AddCustomer(customer fleet.Customer) fleet.Customer {
	if customer.ID == "" {
		customer.ID = fleet.NewCustomerID()
	}
	customer.Active = false
	w.Customers.Add(customer)
	return customer
}

// AddRent tracks a new rent.
func (w *Workspace) AddRent(rent fleet.Rent) fleet.Rent {
	if rent.ID == "" {
		rent.ID = fleet.NewRentID()
	}
	w.Rents.Add(rent)
	return rent
}

// Pending returns the number of unreplayed changes.
func (w *Workspace) Pending() int {
	return w.Cars.Pending() + w.Customers.Pending() + w.Rents.Pending()
}

// Refresh merges a fresh backend snapshot into the three trackers using
// the workspace merge policy.
func (w *Workspace) Refresh(ctx context.Context, backend Backend) error {
	snap, err := backend.Snapshot(ctx)
	if err != nil {
		return err
	}
	w.Cars.Merge(snap.Cars)
	w.Customers.Merge(snap.Customers)
	w.Rents.Merge(snap.Rents)
	return nil
}

// reload is the refresh at the end of Commit. Entries whose replay failed
// stay pending whatever the merge policy.
func (w *Workspace) reload(ctx context.Context, backend Backend) error {
	snap, err := backend.Snapshot(ctx)
	if err != nil {
		return err
	}
	w.Cars.MergeWith(snap.Cars, fleet.MergeKeepPending)
	w.Customers.MergeWith(snap.Customers, fleet.MergeKeepPending)
	w.Rents.MergeWith(snap.Rents, fleet.MergeKeepPending)
	return nil
}

// Commit replays every pending change through backend and refreshes.
func (w *Workspace) Commit(ctx context.Context, backend Backend) CommitReport {
	var report CommitReport
	fail := func(kind fleet.Kind, id string, op Op, err error) {
		report.Failures = append(report.Failures, ReplayFailure{Kind: kind, ID: id, Op: op, Err: err})
	}

	for _, car := range w.Cars.Added() {
		if _, err := backend.AddCar(ctx, car); err != nil {
			fail(fleet.KindCar, car.Key(), OpAdd, err)
			continue
		}
		w.Cars.Resolve(car)
		report.Added++
	}
	for _, customer := range w.Customers.Added() {
		if _, err := backend.AddCustomer(ctx, customer); err != nil {
			fail(fleet.KindCustomer, customer.Key(), OpAdd, err)
			continue
		}
		w.Customers.Resolve(customer)
		report.Added++
	}
	for _, car := range w.Cars.Updated() {
		if _, err := backend.UpdateCar(ctx, car); err != nil {
			fail(fleet.KindCar, car.Key(), OpUpdate, err)
			continue
		}
		w.Cars.Resolve(car)
		report.Updated++
	}
	for _, customer := range w.Customers.Updated() {
		if _, err := backend.UpdateCustomer(ctx, customer); err != nil {
			fail(fleet.KindCustomer, customer.Key(), OpUpdate, err)
			continue
		}
		w.Customers.Resolve(customer)
		report.Updated++
	}
	for _, rent := range w.Rents.Added() {
		if _, err := backend.AddRent(ctx, rent); err != nil {
			fail(fleet.KindRent, rent.Key(), OpAdd, err)
			continue
		}
		w.Rents.Resolve(rent)
		report.Added++
	}
	for _, rent := range w.Rents.Updated() {
		if _, err := backend.UpdateRent(ctx, rent); err != nil {
			fail(fleet.KindRent, rent.Key(), OpUpdate, err)
			continue
		}
		w.Rents.Resolve(rent)
		report.Updated++
	}

	for _, rent := range w.Rents.Deleted() {
		if err := backend.CancelRent(ctx, rent.ID); err != nil {
			fail(fleet.KindRent, rent.Key(), OpDelete, err)
			continue
		}
		w.Rents.Remove(rent)
		report.Removed++
	}
	for _, customer := range w.Customers.Deleted() {
		if err := backend.RemoveCustomer(ctx, customer.ID); err != nil {
			fail(fleet.KindCustomer, customer.Key(), OpDelete, err)
			continue
		}
		w.Customers.Remove(customer)
		report.Removed++
	}
	for _, car := range w.Cars.Deleted() {
		if err := backend.RemoveCar(ctx, car.ID); err != nil {
			fail(fleet.KindCar, car.Key(), OpDelete, err)
			continue
		}
		w.Cars.Remove(car)
		report.Removed++
	}

	report.RefreshErr = w.reload(ctx, backend)

	w.logger.InfoContext(ctx, "workspace committed",
		"added", report.Added, "updated", report.Updated, "removed", report.Removed,
		"failed", len(report.Failures))
	for _, f := range report.Failures {
		w.logger.WarnContext(ctx, "replay failed", "kind", f.Kind, "id", f.ID, "op", f.Op,
			"category", fleet.Category(f.Err), "error", f.Err)
	}
	return report
}
