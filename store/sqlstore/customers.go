package sqlstore

import (
	"context"
	"database/sql"

	"github.com/warp/fleet-rental/fleet"
)

// =============================================================================
// CUSTOMER OPERATIONS
// =============================================================================

const customerColumns = `id, first_name, last_name, address, phone, drivers_license, active`

func scanCustomer(row rowScanner) (fleet.Customer, error) {
	var cu fleet.Customer
	err := row.Scan(&cu.ID, &cu.FirstName, &cu.LastName, &cu.Address, &cu.Phone, &cu.DriversLicense, &cu.Active)
	return cu, err
}

func (c *conn) GetCustomer(ctx context.Context, id fleet.CustomerID) (*fleet.Customer, error) {
	cu, err := scanCustomer(c.queryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, string(id)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cu, nil
}

func (c *conn) FindCustomerByLicense(ctx context.Context, license string) (*fleet.Customer, error) {
	cu, err := scanCustomer(c.queryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE drivers_license = ?`, license))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cu, nil
}

func (c *conn) ListCustomers(ctx context.Context) ([]fleet.Customer, error) {
	return c.listCustomers(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY last_name, first_name, id`)
}

func (c *conn) ListActiveCustomers(ctx context.Context) ([]fleet.Customer, error) {
	return c.listCustomers(ctx, `SELECT `+customerColumns+` FROM customers WHERE active = ? ORDER BY last_name, first_name, id`, true)
}

func (c *conn) listCustomers(ctx context.Context, query string, args ...any) ([]fleet.Customer, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []fleet.Customer
	for rows.Next() {
		cu, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, cu)
	}
	return customers, rows.Err()
}

func (c *conn) InsertCustomer(ctx context.Context, cu fleet.Customer) error {
	_, err := c.exec(ctx, `
		INSERT INTO customers (id, first_name, last_name, address, phone, drivers_license, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(cu.ID), cu.FirstName, cu.LastName, cu.Address, cu.Phone, cu.DriversLicense, cu.Active)
	return customerWriteError(err, cu)
}

func (c *conn) UpdateCustomer(ctx context.Context, cu fleet.Customer) error {
	res, err := c.exec(ctx, `
		UPDATE customers
		SET first_name = ?, last_name = ?, address = ?, phone = ?, drivers_license = ?, active = ?
		WHERE id = ?
	`, cu.FirstName, cu.LastName, cu.Address, cu.Phone, cu.DriversLicense, cu.Active, string(cu.ID))
	if err != nil {
		return customerWriteError(err, cu)
	}
	return mustAffect(res, fleet.KindCustomer, string(cu.ID))
}

func (c *conn) DeleteCustomer(ctx context.Context, id fleet.CustomerID) error {
	res, err := c.exec(ctx, `DELETE FROM customers WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	return mustAffect(res, fleet.KindCustomer, string(id))
}

// LockCustomer takes a row lock on PostgreSQL. SQLite transactions are
// already serialized by Store.WithTx.
func (c *conn) LockCustomer(ctx context.Context, id fleet.CustomerID) error {
	if c.d.driver != DriverPostgres {
		return nil
	}
	var locked string
	err := c.queryRow(ctx, `SELECT id FROM customers WHERE id = ? FOR UPDATE`, string(id)).Scan(&locked)
	if err == sql.ErrNoRows {
		return nil
	}
	return err
}

func customerWriteError(err error, cu fleet.Customer) error {
	column, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	dup := &fleet.DuplicateError{Kind: fleet.KindCustomer, Field: column, Value: string(cu.ID)}
	if column == "drivers_license" {
		dup.Value = cu.DriversLicense
	}
	return dup
}
