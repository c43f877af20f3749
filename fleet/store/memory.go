// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/fleet-rental/fleet"
)

var _ fleet.TxStore = (*Memory)(nil)

// =============================================================================
// TABLE - Insertion-ordered keyed rows
// =============================================================================

type table[T any] struct {
	rows  map[string]T
	order []string
}

func newTable[T any]() table[T] {
	return table[T]{rows: make(map[string]T)}
}

func (t *table[T]) get(k string) (T, bool) {
	v, ok := t.rows[k]
	return v, ok
}

func (t *table[T]) put(k string, v T) {
	if _, ok := t.rows[k]; !ok {
		t.order = append(t.order, k)
	}
	t.rows[k] = v
}

func (t *table[T]) remove(k string) bool {
	if _, ok := t.rows[k]; !ok {
		return false
	}
	delete(t.rows, k)
	for i, key := range t.order {
		if key == k {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *table[T]) list(keep func(T) bool) []T {
	out := make([]T, 0, len(t.order))
	for _, k := range t.order {
		v := t.rows[k]
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (t *table[T]) clone() table[T] {
	c := table[T]{rows: make(map[string]T, len(t.rows)), order: append([]string(nil), t.order...)}
	for k, v := range t.rows {
		c.rows[k] = v
	}
	return c
}

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps all records in maps guarded by one mutex. WithTx holds the
// mutex for the whole unit of work, so transactions are serializable.
type Memory struct {
	mu   sync.RWMutex
	data *memoryData
}

type memoryData struct {
	cars      table[fleet.Car]
	customers table[fleet.Customer]
	rents     table[fleet.Rent]
}

func NewMemory() *Memory {
	return &Memory{data: &memoryData{
		cars:      newTable[fleet.Car](),
		customers: newTable[fleet.Customer](),
		rents:     newTable[fleet.Rent](),
	}}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback when fn
// returns an error or panics.
func (m *Memory) WithTx(ctx context.Context, fn func(fleet.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.snapshot()
	committed := false
	defer func() {
		if !committed {
			m.data.restore(snapshot)
		}
	}()

	if err := fn(m.data); err != nil {
		return err
	}
	committed = true
	return nil
}

// Reset removes every record.
func (m *Memory) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.restore(memorySnapshot{
		cars:      newTable[fleet.Car](),
		customers: newTable[fleet.Customer](),
		rents:     newTable[fleet.Rent](),
	})
	return nil
}

type memorySnapshot struct {
	cars      table[fleet.Car]
	customers table[fleet.Customer]
	rents     table[fleet.Rent]
}

func (d *memoryData) snapshot() memorySnapshot {
	return memorySnapshot{cars: d.cars.clone(), customers: d.customers.clone(), rents: d.rents.clone()}
}

func (d *memoryData) restore(s memorySnapshot) {
	d.cars = s.cars
	d.customers = s.customers
	d.rents = s.rents
}

// =============================================================================
// LOCKED ACCESS - Every Store call outside WithTx takes the mutex
// =============================================================================

func (m *Memory) read(fn func(d *memoryData)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.data)
}

func (m *Memory) write(fn func(d *memoryData) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.data)
}

func (m *Memory) GetCar(ctx context.Context, id fleet.CarID) (car *fleet.Car, err error) {
	m.read(func(d *memoryData) { car, err = d.GetCar(ctx, id) })
	return
}

func (m *Memory) ListCars(ctx context.Context) (cars []fleet.Car, err error) {
	m.read(func(d *memoryData) { cars, err = d.ListCars(ctx) })
	return
}

func (m *Memory) ListAvailableCars(ctx context.Context) (cars []fleet.Car, err error) {
	m.read(func(d *memoryData) { cars, err = d.ListAvailableCars(ctx) })
	return
}

func (m *Memory) FindCarByPlate(ctx context.Context, plate string) (car *fleet.Car, err error) {
	m.read(func(d *memoryData) { car, err = d.FindCarByPlate(ctx, plate) })
	return
}

func (m *Memory) InsertCar(ctx context.Context, car fleet.Car) error {
	return m.write(func(d *memoryData) error { return d.InsertCar(ctx, car) })
}

func (m *Memory) UpdateCar(ctx context.Context, car fleet.Car) error {
	return m.write(func(d *memoryData) error { return d.UpdateCar(ctx, car) })
}

func (m *Memory) DeleteCar(ctx context.Context, id fleet.CarID) error {
	return m.write(func(d *memoryData) error { return d.DeleteCar(ctx, id) })
}

func (m *Memory) LockCar(context.Context, fleet.CarID) error { return nil }

func (m *Memory) LockCustomer(context.Context, fleet.CustomerID) error { return nil }

func (m *Memory) GetCustomer(ctx context.Context, id fleet.CustomerID) (c *fleet.Customer, err error) {
	m.read(func(d *memoryData) { c, err = d.GetCustomer(ctx, id) })
	return
}

func (m *Memory) ListCustomers(ctx context.Context) (cs []fleet.Customer, err error) {
	m.read(func(d *memoryData) { cs, err = d.ListCustomers(ctx) })
	return
}

func (m *Memory) ListActiveCustomers(ctx context.Context) (cs []fleet.Customer, err error) {
	m.read(func(d *memoryData) { cs, err = d.ListActiveCustomers(ctx) })
	return
}

func (m *Memory) FindCustomerByLicense(ctx context.Context, license string) (c *fleet.Customer, err error) {
	m.read(func(d *memoryData) { c, err = d.FindCustomerByLicense(ctx, license) })
	return
}

func (m *Memory) InsertCustomer(ctx context.Context, c fleet.Customer) error {
	return m.write(func(d *memoryData) error { return d.InsertCustomer(ctx, c) })
}

func (m *Memory) UpdateCustomer(ctx context.Context, c fleet.Customer) error {
	return m.write(func(d *memoryData) error { return d.UpdateCustomer(ctx, c) })
}

func (m *Memory) DeleteCustomer(ctx context.Context, id fleet.CustomerID) error {
	return m.write(func(d *memoryData) error { return d.DeleteCustomer(ctx, id) })
}

func (m *Memory) GetRent(ctx context.Context, id fleet.RentID) (r *fleet.Rent, err error) {
	m.read(func(d *memoryData) { r, err = d.GetRent(ctx, id) })
	return
}

func (m *Memory) ListRents(ctx context.Context) (rs []fleet.Rent, err error) {
	m.read(func(d *memoryData) { rs, err = d.ListRents(ctx) })
	return
}

func (m *Memory) RentsByCar(ctx context.Context, id fleet.CarID) (rs []fleet.Rent, err error) {
	m.read(func(d *memoryData) { rs, err = d.RentsByCar(ctx, id) })
	return
}

func (m *Memory) RentsByCustomer(ctx context.Context, id fleet.CustomerID) (rs []fleet.Rent, err error) {
	m.read(func(d *memoryData) { rs, err = d.RentsByCustomer(ctx, id) })
	return
}

func (m *Memory) InsertRent(ctx context.Context, r fleet.Rent) error {
	return m.write(func(d *memoryData) error { return d.InsertRent(ctx, r) })
}

func (m *Memory) UpdateRent(ctx context.Context, r fleet.Rent) error {
	return m.write(func(d *memoryData) error { return d.UpdateRent(ctx, r) })
}

func (m *Memory) DeleteRent(ctx context.Context, id fleet.RentID) error {
	return m.write(func(d *memoryData) error { return d.DeleteRent(ctx, id) })
}

// =============================================================================
// UNLOCKED ACCESS - memoryData is the transactional view handed to WithTx
// =============================================================================

func (d *memoryData) GetCar(_ context.Context, id fleet.CarID) (*fleet.Car, error) {
	if car, ok := d.cars.get(string(id)); ok {
		return &car, nil
	}
	return nil, nil
}

func (d *memoryData) ListCars(context.Context) ([]fleet.Car, error) {
	return d.cars.list(nil), nil
}

func (d *memoryData) ListAvailableCars(context.Context) ([]fleet.Car, error) {
	return d.cars.list(func(c fleet.Car) bool { return c.Available }), nil
}

func (d *memoryData) FindCarByPlate(_ context.Context, plate string) (*fleet.Car, error) {
	if found := d.cars.list(func(c fleet.Car) bool { return c.LicensePlate == plate }); len(found) > 0 {
		return &found[0], nil
	}
	return nil, nil
}

func (d *memoryData) InsertCar(_ context.Context, car fleet.Car) error {
	if _, ok := d.cars.get(string(car.ID)); ok {
		return &fleet.DuplicateError{Kind: fleet.KindCar, Field: "id", Value: string(car.ID), ExistingID: string(car.ID)}
	}
	if err := d.checkPlate(car); err != nil {
		return err
	}
	d.cars.put(string(car.ID), car)
	return nil
}

func (d *memoryData) UpdateCar(_ context.Context, car fleet.Car) error {
	if _, ok := d.cars.get(string(car.ID)); !ok {
		return &fleet.NotFoundError{Kind: fleet.KindCar, ID: string(car.ID)}
	}
	if err := d.checkPlate(car); err != nil {
		return err
	}
	d.cars.put(string(car.ID), car)
	return nil
}

func (d *memoryData) checkPlate(car fleet.Car) error {
	for _, other := range d.cars.list(nil) {
		if other.ID != car.ID && other.LicensePlate == car.LicensePlate {
			return &fleet.DuplicateError{Kind: fleet.KindCar, Field: "license_plate", Value: car.LicensePlate, ExistingID: string(other.ID)}
		}
	}
	return nil
}

func (d *memoryData) DeleteCar(_ context.Context, id fleet.CarID) error {
	if !d.cars.remove(string(id)) {
		return &fleet.NotFoundError{Kind: fleet.KindCar, ID: string(id)}
	}
	return nil
}

func (d *memoryData) LockCar(context.Context, fleet.CarID) error { return nil }

func (d *memoryData) LockCustomer(context.Context, fleet.CustomerID) error { return nil }

func (d *memoryData) GetCustomer(_ context.Context, id fleet.CustomerID) (*fleet.Customer, error) {
	if c, ok := d.customers.get(string(id)); ok {
		return &c, nil
	}
	return nil, nil
}

func (d *memoryData) ListCustomers(context.Context) ([]fleet.Customer, error) {
	return d.customers.list(nil), nil
}

func (d *memoryData) ListActiveCustomers(context.Context) ([]fleet.Customer, error) {
	return d.customers.list(func(c fleet.Customer) bool { return c.Active }), nil
}

func (d *memoryData) FindCustomerByLicense(_ context.Context, license string) (*fleet.Customer, error) {
	if found := d.customers.list(func(c fleet.Customer) bool { return c.DriversLicense == license }); len(found) > 0 {
		return &found[0], nil
	}
	return nil, nil
}

func (d *memoryData) InsertCustomer(_ context.Context, c fleet.Customer) error {
	if _, ok := d.customers.get(string(c.ID)); ok {
		return &fleet.DuplicateError{Kind: fleet.KindCustomer, Field: "id", Value: string(c.ID), ExistingID: string(c.ID)}
	}
	if err := d.checkLicense(c); err != nil {
		return err
	}
	d.customers.put(string(c.ID), c)
	return nil
}

func (d *memoryData) UpdateCustomer(_ context.Context, c fleet.Customer) error {
	if _, ok := d.customers.get(string(c.ID)); !ok {
		return &fleet.NotFoundError{Kind: fleet.KindCustomer, ID: string(c.ID)}
	}
	if err := d.checkLicense(c); err != nil {
		return err
	}
	d.customers.put(string(c.ID), c)
	return nil
}

func (d *memoryData) checkLicense(c fleet.Customer) error {
	for _, other := range d.customers.list(nil) {
		if other.ID != c.ID && other.DriversLicense == c.DriversLicense {
			return &fleet.DuplicateError{Kind: fleet.KindCustomer, Field: "drivers_license", Value: c.DriversLicense, ExistingID: string(other.ID)}
		}
	}
	return nil
}

func (d *memoryData) DeleteCustomer(_ context.Context, id fleet.CustomerID) error {
	if !d.customers.remove(string(id)) {
		return &fleet.NotFoundError{Kind: fleet.KindCustomer, ID: string(id)}
	}
	return nil
}

func (d *memoryData) GetRent(_ context.Context, id fleet.RentID) (*fleet.Rent, error) {
	if r, ok := d.rents.get(string(id)); ok {
		return &r, nil
	}
	return nil, nil
}

func (d *memoryData) ListRents(context.Context) ([]fleet.Rent, error) {
	return d.rents.list(nil), nil
}

func (d *memoryData) RentsByCar(_ context.Context, id fleet.CarID) ([]fleet.Rent, error) {
	return d.rents.list(func(r fleet.Rent) bool { return r.CarID == id }), nil
}

func (d *memoryData) RentsByCustomer(_ context.Context, id fleet.CustomerID) ([]fleet.Rent, error) {
	return d.rents.list(func(r fleet.Rent) bool { return r.CustomerID == id }), nil
}

func (d *memoryData) InsertRent(_ context.Context, r fleet.Rent) error {
	if _, ok := d.rents.get(string(r.ID)); ok {
		return &fleet.DuplicateError{Kind: fleet.KindRent, Field: "id", Value: string(r.ID), ExistingID: string(r.ID)}
	}
	d.rents.put(string(r.ID), r)
	return nil
}

func (d *memoryData) UpdateRent(_ context.Context, r fleet.Rent) error {
	if _, ok := d.rents.get(string(r.ID)); !ok {
		return &fleet.NotFoundError{Kind: fleet.KindRent, ID: string(r.ID)}
	}
	d.rents.put(string(r.ID), r)
	return nil
}

func (d *memoryData) DeleteRent(_ context.Context, id fleet.RentID) error {
	if !d.rents.remove(string(id)) {
		return &fleet.NotFoundError{Kind: fleet.KindRent, ID: string(id)}
	}
	return nil
}
