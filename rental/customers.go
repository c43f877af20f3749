package rental

import (
	"context"

	"github.com/warp/fleet-rental/fleet"
)

// =============================================================================
// CUSTOMER OPERATIONS
// =============================================================================

// AddCustomer stores a new customer, inactive until a rent refers to it.
func (s *Service) AddCustomer(ctx context.Context, customer fleet.Customer) (fleet.Customer, error) {
	if customer.ID == "" {
		customer.ID = fleet.NewCustomerID()
	}
	customer.Active = false

	err := s.run(ctx, "add_customer", func(tx fleet.Store) error {
		if err := s.guard.CheckCustomer(ctx, tx, customer); err != nil {
			return err
		}
		return tx.InsertCustomer(ctx, customer)
	})
	if err != nil {
		return fleet.Customer{}, err
	}
	s.logger.InfoContext(ctx, "customer added", "customer_id", customer.ID)
	return customer, nil
}

// FindCustomer returns the customer with id.
func (s *Service) FindCustomer(ctx context.Context, id fleet.CustomerID) (fleet.Customer, error) {
	if err := required(fleet.KindCustomer, "id", string(id)); err != nil {
		return fleet.Customer{}, s.reject(ctx, "find_customer", err)
	}
	var customer fleet.Customer
	err := s.run(ctx, "find_customer", func(tx fleet.Store) error {
		found, err := tx.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		if found == nil {
			return &fleet.NotFoundError{Kind: fleet.KindCustomer, ID: string(id)}
		}
		customer = *found
		return nil
	})
	return customer, err
}

// UpdateCustomer replaces the descriptive fields of a stored customer. The
// stored active flag is kept.
func (s *Service) UpdateCustomer(ctx context.Context, customer fleet.Customer) (fleet.Customer, error) {
	if err := required(fleet.KindCustomer, "id", string(customer.ID)); err != nil {
		return fleet.Customer{}, s.reject(ctx, "update_customer", err)
	}
	err := s.withLocks(ctx, []string{customerKey(customer.ID)}, func() error {
		return s.run(ctx, "update_customer", func(tx fleet.Store) error {
			if err := tx.LockCustomer(ctx, customer.ID); err != nil {
				return err
			}
			stored, err := tx.GetCustomer(ctx, customer.ID)
			if err != nil {
				return err
			}
			if stored == nil {
				return &fleet.NotFoundError{Kind: fleet.KindCustomer, ID: string(customer.ID)}
			}
			customer.Active = stored.Active
			if err := s.guard.CheckCustomer(ctx, tx, customer); err != nil {
				return err
			}
			return tx.UpdateCustomer(ctx, customer)
		})
	})
	if err != nil {
		return fleet.Customer{}, err
	}
	return customer, nil
}

// RemoveCustomer deletes a customer with no rents.
func (s *Service) RemoveCustomer(ctx context.Context, id fleet.CustomerID) error {
	if err := required(fleet.KindCustomer, "id", string(id)); err != nil {
		return s.reject(ctx, "remove_customer", err)
	}
	return s.withLocks(ctx, []string{customerKey(id)}, func() error {
		return s.run(ctx, "remove_customer", func(tx fleet.Store) error {
			if err := tx.LockCustomer(ctx, id); err != nil {
				return err
			}
			stored, err := tx.GetCustomer(ctx, id)
			if err != nil {
				return err
			}
			if stored == nil {
				return &fleet.NotFoundError{Kind: fleet.KindCustomer, ID: string(id)}
			}
			rents, err := tx.RentsByCustomer(ctx, id)
			if err != nil {
				return err
			}
			if stored.Active || len(rents) > 0 {
				return &fleet.ValidationError{Kind: fleet.KindCustomer, Field: "id", Reason: "is active and cannot be removed"}
			}
			return tx.DeleteCustomer(ctx, id)
		})
	})
}

// ListCustomers returns every customer.
func (s *Service) ListCustomers(ctx context.Context) ([]fleet.Customer, error) {
	var customers []fleet.Customer
	err := s.run(ctx, "list_customers", func(tx fleet.Store) error {
		var err error
		customers, err = tx.ListCustomers(ctx)
		return err
	})
	return customers, err
}

// ListActiveCustomers returns the customers holding at least one rent.
func (s *Service) ListActiveCustomers(ctx context.Context) ([]fleet.Customer, error) {
	var customers []fleet.Customer
	err := s.run(ctx, "list_active_customers", func(tx fleet.Store) error {
		var err error
		customers, err = tx.ListActiveCustomers(ctx)
		return err
	})
	return customers, err
}
