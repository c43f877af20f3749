package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-rental/fleet"
)

// =============================================================================
// CAR OPERATIONS
// =============================================================================

const carColumns = `id, model, color, license_plate, price, available`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCar(row rowScanner) (fleet.Car, error) {
	var (
		car   fleet.Car
		price string
	)
	if err := row.Scan(&car.ID, &car.Model, &car.Color, &car.LicensePlate, &price, &car.Available); err != nil {
		return fleet.Car{}, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return fleet.Car{}, fmt.Errorf("car %s: bad price %q: %w", car.ID, price, err)
	}
	car.Price = p
	return car, nil
}

func (c *conn) GetCar(ctx context.Context, id fleet.CarID) (*fleet.Car, error) {
	car, err := scanCar(c.queryRow(ctx, `SELECT `+carColumns+` FROM cars WHERE id = ?`, string(id)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &car, nil
}

func (c *conn) FindCarByPlate(ctx context.Context, plate string) (*fleet.Car, error) {
	car, err := scanCar(c.queryRow(ctx, `SELECT `+carColumns+` FROM cars WHERE license_plate = ?`, plate))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &car, nil
}

func (c *conn) ListCars(ctx context.Context) ([]fleet.Car, error) {
	return c.listCars(ctx, `SELECT `+carColumns+` FROM cars ORDER BY license_plate`)
}

func (c *conn) ListAvailableCars(ctx context.Context) ([]fleet.Car, error) {
	return c.listCars(ctx, `SELECT `+carColumns+` FROM cars WHERE available = ? ORDER BY license_plate`, true)
}

func (c *conn) listCars(ctx context.Context, query string, args ...any) ([]fleet.Car, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cars []fleet.Car
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, car)
	}
	return cars, rows.Err()
}

func (c *conn) InsertCar(ctx context.Context, car fleet.Car) error {
	_, err := c.exec(ctx, `
		INSERT INTO cars (id, model, color, license_plate, price, available)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(car.ID), car.Model, car.Color, car.LicensePlate, car.Price.String(), car.Available)
	return carWriteError(err, car)
}

func (c *conn) UpdateCar(ctx context.Context, car fleet.Car) error {
	res, err := c.exec(ctx, `
		UPDATE cars SET model = ?, color = ?, license_plate = ?, price = ?, available = ?
		WHERE id = ?
	`, car.Model, car.Color, car.LicensePlate, car.Price.String(), car.Available, string(car.ID))
	if err != nil {
		return carWriteError(err, car)
	}
	return mustAffect(res, fleet.KindCar, string(car.ID))
}

func (c *conn) DeleteCar(ctx context.Context, id fleet.CarID) error {
	res, err := c.exec(ctx, `DELETE FROM cars WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	return mustAffect(res, fleet.KindCar, string(id))
}

// LockCar takes a row lock on PostgreSQL. SQLite transactions are already
// serialized by Store.WithTx.
func (c *conn) LockCar(ctx context.Context, id fleet.CarID) error {
	if c.d.driver != DriverPostgres {
		return nil
	}
	var locked string
	err := c.queryRow(ctx, `SELECT id FROM cars WHERE id = ? FOR UPDATE`, string(id)).Scan(&locked)
	if err == sql.ErrNoRows {
		return nil
	}
	return err
}

func carWriteError(err error, car fleet.Car) error {
	column, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	dup := &fleet.DuplicateError{Kind: fleet.KindCar, Field: column, Value: string(car.ID)}
	if column == "license_plate" {
		dup.Value = car.LicensePlate
	}
	return dup
}
