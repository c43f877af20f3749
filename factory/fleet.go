/*
Package factory provides YAML/JSON to Go fleet conversion.

PURPOSE:
  Converts seed documents into cars, customers and rents and loads them
  through the rental service, so every seeded record passes the same
  guard and scheduler checks as a live request. Demo scenarios and the
  -seed flag of the server use it.

SCHEMA (YAML; JSON is accepted as well):
  cars:
    - model: Corolla
      color: Red
      license_plate: ABC-123
      price: "45.00"
  customers:
    - first_name: Ada
      last_name: Lovelace
      address: 1 Analytical Way
      phone: 555-0100
      drivers_license: DL-1
  rents:
    - car: ABC-123        # license plate
      customer: DL-1      # driver's license
      rent_date: 2025-03-01
      due_date: 2025-03-05

  Rents name their car and customer by plate and license, so a seed
  does not need to know generated IDs. Explicit ids are kept.

USAGE:
  f := factory.NewFleetFactory()
  doc, err := f.Parse(data)
  report, err := f.Load(ctx, svc, doc)

SEE ALSO:
  - rental/service.go: Loader implementation
  - api/scenarios.go: Demo scenarios built from seed documents
*/
package factory

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-rental/fleet"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// SEED SCHEMA TYPES
// =============================================================================

// FleetDoc is the document form of a fleet.
type FleetDoc struct {
	Cars      []CarDoc      `yaml:"cars" json:"cars"`
	Customers []CustomerDoc `yaml:"customers" json:"customers"`
	Rents     []RentDoc     `yaml:"rents" json:"rents"`
}

// CarDoc is a seeded car. Price is a decimal string to avoid float rounding.
type CarDoc struct {
	ID           string `yaml:"id,omitempty" json:"id,omitempty"`
	Model        string `yaml:"model" json:"model"`
	Color        string `yaml:"color" json:"color"`
	LicensePlate string `yaml:"license_plate" json:"license_plate"`
	Price        string `yaml:"price" json:"price"`
}

// CustomerDoc is a seeded customer.
type CustomerDoc struct {
	ID             string `yaml:"id,omitempty" json:"id,omitempty"`
	FirstName      string `yaml:"first_name" json:"first_name"`
	LastName       string `yaml:"last_name" json:"last_name"`
	Address        string `yaml:"address" json:"address"`
	Phone          string `yaml:"phone" json:"phone"`
	DriversLicense string `yaml:"drivers_license" json:"drivers_license"`
}

// RentDoc is a seeded rent.
type RentDoc struct {
	ID       string `yaml:"id,omitempty" json:"id,omitempty"`
	Car      string `yaml:"car" json:"car"`           // license plate
	Customer string `yaml:"customer" json:"customer"` // driver's license
	RentDate string `yaml:"rent_date" json:"rent_date"`
	DueDate  string `yaml:"due_date" json:"due_date"`
}

// Loader is the subset of rental.Service a seed is loaded through.
type Loader interface {
	AddCar(ctx context.Context, car fleet.Car) (fleet.Car, error)
	AddCustomer(ctx context.Context, customer fleet.Customer) (fleet.Customer, error)
	AddRent(ctx context.Context, rent fleet.Rent) (fleet.Rent, error)
}

// LoadReport counts what a Load created.
type LoadReport struct {
	Cars      int `json:"cars"`
	Customers int `json:"customers"`
	Rents     int `json:"rents"`
}

// =============================================================================
// FLEET FACTORY
// =============================================================================

// FleetFactory converts seed documents to fleet records.
type FleetFactory struct{}

// NewFleetFactory creates a new fleet factory.
func NewFleetFactory() *FleetFactory {
	return &FleetFactory{}
}

// Parse decodes a YAML or JSON seed document.
func (f *FleetFactory) Parse(data []byte) (*FleetDoc, error) {
	var doc FleetDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse fleet document: %w", err)
	}
	return &doc, nil
}

// ParseFile reads and decodes a seed file.
func (f *FleetFactory) ParseFile(path string) (*FleetDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return f.Parse(data)
}

// Load adds every car, then every customer, then every rent through l.
// It stops at the first rejected record; records added before it stay.
func (f *FleetFactory) Load(ctx context.Context, l Loader, doc *FleetDoc) (LoadReport, error) {
	var report LoadReport
	cars := make(map[string]fleet.CarID, len(doc.Cars))
	customers := make(map[string]fleet.CustomerID, len(doc.Customers))

	for i, cd := range doc.Cars {
		car, err := f.Car(cd)
		if err != nil {
			return report, fmt.Errorf("cars[%d]: %w", i, err)
		}
		added, err := l.AddCar(ctx, car)
		if err != nil {
			return report, fmt.Errorf("cars[%d] %s: %w", i, cd.LicensePlate, err)
		}
		cars[added.LicensePlate] = added.ID
		report.Cars++
	}

	for i, cd := range doc.Customers {
		added, err := l.AddCustomer(ctx, f.Customer(cd))
		if err != nil {
			return report, fmt.Errorf("customers[%d] %s: %w", i, cd.DriversLicense, err)
		}
		customers[added.DriversLicense] = added.ID
		report.Customers++
	}

	for i, rd := range doc.Rents {
		rent, err := f.Rent(rd, cars, customers)
		if err != nil {
			return report, fmt.Errorf("rents[%d]: %w", i, err)
		}
		if _, err := l.AddRent(ctx, rent); err != nil {
			return report, fmt.Errorf("rents[%d] %s/%s: %w", i, rd.Car, rd.Customer, err)
		}
		report.Rents++
	}
	return report, nil
}

// Car converts a CarDoc.
func (f *FleetFactory) Car(cd CarDoc) (fleet.Car, error) {
	price := decimal.Zero
	if cd.Price != "" {
		var err error
		if price, err = decimal.NewFromString(cd.Price); err != nil {
			return fleet.Car{}, &fleet.ValidationError{Kind: fleet.KindCar, Field: "price", Reason: "is not a number"}
		}
	}
	return fleet.Car{
		ID:           fleet.CarID(cd.ID),
		Model:        cd.Model,
		Color:        cd.Color,
		LicensePlate: cd.LicensePlate,
		Price:        price,
		Available:    true,
	}, nil
}

// Customer converts a CustomerDoc.
func (f *FleetFactory) Customer(cd CustomerDoc) fleet.Customer {
	return fleet.Customer{
		ID:             fleet.CustomerID(cd.ID),
		FirstName:      cd.FirstName,
		LastName:       cd.LastName,
		Address:        cd.Address,
		Phone:          cd.Phone,
		DriversLicense: cd.DriversLicense,
	}
}

// Rent converts a RentDoc. References are resolved through the plate and
// license maps first and used as raw IDs otherwise.
func (f *FleetFactory) Rent(rd RentDoc, cars map[string]fleet.CarID, customers map[string]fleet.CustomerID) (fleet.Rent, error) {
	from, err := fleet.ParseTimePoint(rd.RentDate)
	if err != nil {
		return fleet.Rent{}, &fleet.ValidationError{Kind: fleet.KindRent, Field: "rent_date", Reason: "is not a date"}
	}
	to, err := fleet.ParseTimePoint(rd.DueDate)
	if err != nil {
		return fleet.Rent{}, &fleet.ValidationError{Kind: fleet.KindRent, Field: "due_date", Reason: "is not a date"}
	}

	carID, ok := cars[rd.Car]
	if !ok {
		carID = fleet.CarID(rd.Car)
	}
	customerID, ok := customers[rd.Customer]
	if !ok {
		customerID = fleet.CustomerID(rd.Customer)
	}
	return fleet.Rent{
		ID:         fleet.RentID(rd.ID),
		RentDate:   from,
		DueDate:    to,
		CarID:      carID,
		CustomerID: customerID,
	}, nil
}

// ToDoc converts a snapshot back into a seed document. Rents reference
// plates and licenses.
func (f *FleetFactory) ToDoc(snap fleet.Snapshot) FleetDoc {
	var doc FleetDoc
	plates := make(map[fleet.CarID]string, len(snap.Cars))
	licenses := make(map[fleet.CustomerID]string, len(snap.Customers))

	for _, c := range snap.Cars {
		plates[c.ID] = c.LicensePlate
		doc.Cars = append(doc.Cars, CarDoc{
			ID:           string(c.ID),
			Model:        c.Model,
			Color:        c.Color,
			LicensePlate: c.LicensePlate,
			Price:        c.Price.StringFixed(2),
		})
	}
	for _, c := range snap.Customers {
		licenses[c.ID] = c.DriversLicense
		doc.Customers = append(doc.Customers, CustomerDoc{
			ID:             string(c.ID),
			FirstName:      c.FirstName,
			LastName:       c.LastName,
			Address:        c.Address,
			Phone:          c.Phone,
			DriversLicense: c.DriversLicense,
		})
	}
	for _, r := range snap.Rents {
		doc.Rents = append(doc.Rents, RentDoc{
			ID:       string(r.ID),
			Car:      plates[r.CarID],
			Customer: licenses[r.CustomerID],
			RentDate: r.RentDate.String(),
			DueDate:  r.DueDate.String(),
		})
	}
	return doc
}

// Marshal encodes doc as YAML.
func (f *FleetFactory) Marshal(doc FleetDoc) ([]byte, error) {
	return yaml.Marshal(doc)
}
