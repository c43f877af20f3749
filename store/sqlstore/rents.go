package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/fleet-rental/fleet"
)

// =============================================================================
// RENT OPERATIONS
// =============================================================================

const rentColumns = `id, rent_date, due_date, car_id, customer_id`

func scanRent(row rowScanner) (fleet.Rent, error) {
	var (
		r        fleet.Rent
		from, to string
	)
	if err := row.Scan(&r.ID, &from, &to, &r.CarID, &r.CustomerID); err != nil {
		return fleet.Rent{}, err
	}
	var err error
	if r.RentDate, err = fleet.ParseTimePoint(from); err != nil {
		return fleet.Rent{}, fmt.Errorf("rent %s: bad rent_date: %w", r.ID, err)
	}
	if r.DueDate, err = fleet.ParseTimePoint(to); err != nil {
		return fleet.Rent{}, fmt.Errorf("rent %s: bad due_date: %w", r.ID, err)
	}
	return r, nil
}

func (c *conn) GetRent(ctx context.Context, id fleet.RentID) (*fleet.Rent, error) {
	r, err := scanRent(c.queryRow(ctx, `SELECT `+rentColumns+` FROM rents WHERE id = ?`, string(id)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *conn) ListRents(ctx context.Context) ([]fleet.Rent, error) {
	return c.listRents(ctx, `SELECT `+rentColumns+` FROM rents ORDER BY rent_date, id`)
}

func (c *conn) RentsByCar(ctx context.Context, id fleet.CarID) ([]fleet.Rent, error) {
	return c.listRents(ctx, `SELECT `+rentColumns+` FROM rents WHERE car_id = ? ORDER BY rent_date, id`, string(id))
}

func (c *conn) RentsByCustomer(ctx context.Context, id fleet.CustomerID) ([]fleet.Rent, error) {
	return c.listRents(ctx, `SELECT `+rentColumns+` FROM rents WHERE customer_id = ? ORDER BY rent_date, id`, string(id))
}

func (c *conn) listRents(ctx context.Context, query string, args ...any) ([]fleet.Rent, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rents []fleet.Rent
	for rows.Next() {
		r, err := scanRent(rows)
		if err != nil {
			return nil, err
		}
		rents = append(rents, r)
	}
	return rents, rows.Err()
}

func (c *conn) InsertRent(ctx context.Context, r fleet.Rent) error {
	_, err := c.exec(ctx, `
		INSERT INTO rents (id, rent_date, due_date, car_id, customer_id)
		VALUES (?, ?, ?, ?, ?)
	`, string(r.ID), r.RentDate.String(), r.DueDate.String(), string(r.CarID), string(r.CustomerID))
	if _, dup := uniqueViolation(err); dup {
		return &fleet.DuplicateError{Kind: fleet.KindRent, Field: "id", Value: string(r.ID), ExistingID: string(r.ID)}
	}
	return err
}

func (c *conn) UpdateRent(ctx context.Context, r fleet.Rent) error {
	res, err := c.exec(ctx, `
		UPDATE rents SET rent_date = ?, due_date = ?, car_id = ?, customer_id = ?
		WHERE id = ?
	`, r.RentDate.String(), r.DueDate.String(), string(r.CarID), string(r.CustomerID), string(r.ID))
	if err != nil {
		return err
	}
	return mustAffect(res, fleet.KindRent, string(r.ID))
}

func (c *conn) DeleteRent(ctx context.Context, id fleet.RentID) error {
	res, err := c.exec(ctx, `DELETE FROM rents WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	return mustAffect(res, fleet.KindRent, string(id))
}
