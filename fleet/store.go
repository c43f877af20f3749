/*
store.go - Persistence interface for cars, customers and rents

PURPOSE:
  Defines the interface between the rental logic and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:   Point lookups, scans, filtered scans, insert/update/delete
  TxStore: Store plus WithTx for atomic multi-record units of work

CONTRACT:
  - Get and Find methods return (nil, nil) when the record is absent
  - Update and Delete methods return a NotFoundError when the record is absent
  - Insert and Update methods return a DuplicateError when a unique column
    (id, license plate, driver's license) would collide
  - LockCar and LockCustomer take a row lock where the database supports
    it. A writer holds them, car first, before reading anything it writes
    back, so flags are never computed from a stale read. Stores that
    serialize whole transactions treat them as no-ops.

IMPLEMENTATIONS:
  - fleet/store/memory.go: In-memory for testing and local workspaces
  - store/sqlstore: database/sql with SQLite (cgo or pure Go) or PostgreSQL

EXAMPLE:
  err := store.WithTx(ctx, func(tx fleet.Store) error {
      if err := tx.InsertRent(ctx, rent); err != nil {
          return err
      }
      return tx.UpdateCar(ctx, car.WithAvailable(false))
  })

SEE ALSO:
  - rental/service.go: The only writer of derived flags
*/
package fleet

import "context"

// =============================================================================
// STORE - Interface for entity persistence
// =============================================================================

type Store interface {
	// Cars
	GetCar(ctx context.Context, id CarID) (*Car, error)
	ListCars(ctx context.Context) ([]Car, error)
	ListAvailableCars(ctx context.Context) ([]Car, error)
	FindCarByPlate(ctx context.Context, plate string) (*Car, error)
	InsertCar(ctx context.Context, car Car) error
	UpdateCar(ctx context.Context, car Car) error
	DeleteCar(ctx context.Context, id CarID) error

	// LockCar serializes writers touching the rents of one car until the
	// surrounding transaction ends.
	LockCar(ctx context.Context, id CarID) error

	// Customers
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	ListActiveCustomers(ctx context.Context) ([]Customer, error)
	FindCustomerByLicense(ctx context.Context, license string) (*Customer, error)
	InsertCustomer(ctx context.Context, customer Customer) error
	UpdateCustomer(ctx context.Context, customer Customer) error
	DeleteCustomer(ctx context.Context, id CustomerID) error

	// LockCustomer serializes writers of one customer's active flag until
	// the surrounding transaction ends. Take it after LockCar.
	LockCustomer(ctx context.Context, id CustomerID) error

	// Rents
	GetRent(ctx context.Context, id RentID) (*Rent, error)
	ListRents(ctx context.Context) ([]Rent, error)
	RentsByCar(ctx context.Context, id CarID) ([]Rent, error)
	RentsByCustomer(ctx context.Context, id CustomerID) ([]Rent, error)
	InsertRent(ctx context.Context, rent Rent) error
	UpdateRent(ctx context.Context, rent Rent) error
	DeleteRent(ctx context.Context, id RentID) error
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
