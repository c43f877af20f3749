package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-rental/fleet"
	"github.com/warp/fleet-rental/fleet/store"
	"github.com/warp/fleet-rental/rental"
)

const seedYAML = `
cars:
  - model: Corolla
    color: Red
    license_plate: ABC-123
    price: "45.00"
  - model: Civic
    color: Blue
    license_plate: XYZ-789
    price: 52.5
customers:
  - first_name: Ada
    last_name: Lovelace
    address: 1 Analytical Way
    phone: 555-0100
    drivers_license: DL-1
rents:
  - car: ABC-123
    customer: DL-1
    rent_date: 2025-03-01
    due_date: 2025-03-05
`

func TestParse_YAML(t *testing.T) {
	f := NewFleetFactory()

	doc, err := f.Parse([]byte(seedYAML))
	require.NoError(t, err)

	require.Len(t, doc.Cars, 2)
	assert.Equal(t, "45.00", doc.Cars[0].Price)
	assert.Equal(t, "52.5", doc.Cars[1].Price)
	require.Len(t, doc.Rents, 1)
	assert.Equal(t, "2025-03-01", doc.Rents[0].RentDate)
}

func TestParse_JSON(t *testing.T) {
	f := NewFleetFactory()

	doc, err := f.Parse([]byte(`{"cars":[{"model":"Golf","color":"Grey","license_plate":"G-1","price":"30"}]}`))
	require.NoError(t, err)
	require.Len(t, doc.Cars, 1)
	assert.Equal(t, "G-1", doc.Cars[0].LicensePlate)
}

func TestLoad_ThroughService(t *testing.T) {
	ctx := context.Background()
	svc := rental.NewService(store.NewMemory())
	f := NewFleetFactory()

	doc, err := f.Parse([]byte(seedYAML))
	require.NoError(t, err)

	report, err := f.Load(ctx, svc, doc)
	require.NoError(t, err)
	assert.Equal(t, LoadReport{Cars: 2, Customers: 1, Rents: 1}, report)

	available, err := svc.ListAvailableCars(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "XYZ-789", available[0].LicensePlate)

	active, err := svc.ListActiveCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestLoad_StopsAtFirstRejection(t *testing.T) {
	ctx := context.Background()
	svc := rental.NewService(store.NewMemory())
	f := NewFleetFactory()

	doc := &FleetDoc{Cars: []CarDoc{
		{Model: "A", Color: "Red", LicensePlate: "DUP", Price: "10"},
		{Model: "B", Color: "Red", LicensePlate: "DUP", Price: "10"},
	}}

	report, err := f.Load(ctx, svc, doc)
	assert.True(t, fleet.IsConflict(err), "got %v", err)
	assert.Equal(t, 1, report.Cars)
}

func TestCar_BadPrice(t *testing.T) {
	_, err := NewFleetFactory().Car(CarDoc{Model: "A", Price: "cheap"})
	assert.ErrorIs(t, err, fleet.ErrInvalidArgument)
}

func TestToDoc_RoundTripsThroughLoad(t *testing.T) {
	ctx := context.Background()
	f := NewFleetFactory()

	// GIVEN: A seeded service
	src := rental.NewService(store.NewMemory())
	doc, err := f.Parse([]byte(seedYAML))
	require.NoError(t, err)
	_, err = f.Load(ctx, src, doc)
	require.NoError(t, err)

	// WHEN: Its snapshot is exported and loaded into a fresh service
	snap, err := src.Snapshot(ctx)
	require.NoError(t, err)
	out, err := f.Marshal(f.ToDoc(snap))
	require.NoError(t, err)

	reparsed, err := f.Parse(out)
	require.NoError(t, err)
	dst := rental.NewService(store.NewMemory())
	_, err = f.Load(ctx, dst, reparsed)
	require.NoError(t, err)

	// THEN: Both hold the same records
	copied, err := dst.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, copied.Cars, len(snap.Cars))
	for i, car := range snap.Cars {
		assert.Equal(t, car.ID, copied.Cars[i].ID)
		assert.Equal(t, car.LicensePlate, copied.Cars[i].LicensePlate)
		assert.Equal(t, car.Available, copied.Cars[i].Available)
		assert.True(t, car.Price.Equal(copied.Cars[i].Price), "price of %s", car.LicensePlate)
	}
	assert.ElementsMatch(t, snap.Customers, copied.Customers)
	assert.ElementsMatch(t, snap.Rents, copied.Rents)
}
