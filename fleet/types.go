/*
types.go - Core records of the rental engine

PURPOSE:
  Plain immutable value records for the three entity kinds. Stores own
  identity and persistence; values own data. Modifications return copies
  through the With* helpers.

KEY TYPES:
  Car:      Rentable unit. LicensePlate is unique among cars.
  Customer: Renter. DriversLicense is unique among customers.
  Rent:     Binds one car to one customer for a closed day interval.
  Snapshot: Consistent view of all three collections.

DERIVED FLAGS:
  Car.Available and Customer.Active are stored, but only the rental
  service writes them:
  - Car.Available == false  iff at least one rent references the car
  - Customer.Active == false iff no rent references the customer

SEE ALSO:
  - period.go: Rent date interval and overlap test
  - store.go: Persistence interface
  - tracker.go: Offline pending-change tracking keyed by these IDs
*/
package fleet

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CarID string
type CustomerID string
type RentID string

func NewCarID() CarID           { return CarID(uuid.New().String()) }
func NewCustomerID() CustomerID { return CustomerID(uuid.New().String()) }
func NewRentID() RentID         { return RentID(uuid.New().String()) }

// Kind names an entity collection.
type Kind string

const (
	KindCar      Kind = "car"
	KindCustomer Kind = "customer"
	KindRent     Kind = "rent"
)

// =============================================================================
// CAR
// =============================================================================

type Car struct {
	ID           CarID           `json:"id" yaml:"id"`
	Model        string          `json:"model" yaml:"model" validate:"notblank"`
	Color        string          `json:"color" yaml:"color" validate:"notblank"`
	LicensePlate string          `json:"license_plate" yaml:"license_plate" validate:"notblank"`
	Price        decimal.Decimal `json:"price" yaml:"price" validate:"gte=0"`
	Available    bool            `json:"available" yaml:"available"`
}

func (c Car) Key() string { return string(c.ID) }

func (c Car) WithAvailable(available bool) Car {
	c.Available = available
	return c
}

// =============================================================================
// CUSTOMER
// =============================================================================

type Customer struct {
	ID             CustomerID `json:"id" yaml:"id"`
	FirstName      string     `json:"first_name" yaml:"first_name" validate:"notblank"`
	LastName       string     `json:"last_name" yaml:"last_name" validate:"notblank"`
	Address        string     `json:"address" yaml:"address" validate:"notblank"`
	Phone          string     `json:"phone" yaml:"phone" validate:"notblank"`
	DriversLicense string     `json:"drivers_license" yaml:"drivers_license" validate:"notblank"`
	Active         bool       `json:"active" yaml:"active"`
}

func (c Customer) Key() string { return string(c.ID) }

func (c Customer) WithActive(active bool) Customer {
	c.Active = active
	return c
}

// =============================================================================
// RENT
// =============================================================================

type Rent struct {
	ID         RentID     `json:"id" yaml:"id"`
	RentDate   TimePoint  `json:"rent_date" yaml:"rent_date"`
	DueDate    TimePoint  `json:"due_date" yaml:"due_date"`
	CarID      CarID      `json:"car_id" yaml:"car_id" validate:"notblank"`
	CustomerID CustomerID `json:"customer_id" yaml:"customer_id" validate:"notblank"`
}

func (r Rent) Key() string { return string(r.ID) }

// Period returns the closed interval [RentDate, DueDate].
func (r Rent) Period() Period {
	return Period{Start: r.RentDate, End: r.DueDate}
}

func (r Rent) WithPeriod(p Period) Rent {
	r.RentDate = p.Start
	r.DueDate = p.End
	return r
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the authoritative content of a store read in one transaction.
type Snapshot struct {
	Cars      []Car      `json:"cars"`
	Customers []Customer `json:"customers"`
	Rents     []Rent     `json:"rents"`
}
