package rental

import (
	"context"
	"fmt"

	"github.com/warp/fleet-rental/fleet"
)

// =============================================================================
// RENT LIFECYCLE - none -> active -> returned (record deleted)
// =============================================================================

// RentOut rents an available car to a customer for [rentDate, dueDate].
// The rent insert and both flag updates commit together.
func (s *Service) RentOut(ctx context.Context, carID fleet.CarID, customerID fleet.CustomerID, rentDate, dueDate fleet.TimePoint) (fleet.Rent, error) {
	rent := fleet.Rent{
		ID:         fleet.NewRentID(),
		RentDate:   rentDate,
		DueDate:    dueDate,
		CarID:      carID,
		CustomerID: customerID,
	}
	if err := s.guard.CheckRent(rent); err != nil {
		return fleet.Rent{}, s.reject(ctx, "rent_out", err)
	}
	if err := s.createRent(ctx, "rent_out", rent, true); err != nil {
		return fleet.Rent{}, err
	}
	return rent, nil
}

// AddRent stores a pre-built rent, keeping its ID when one is set. Unlike
// RentOut it does not require the car to be available, so a rented car can
// take a later reservation that does not overlap.
func (s *Service) AddRent(ctx context.Context, rent fleet.Rent) (fleet.Rent, error) {
	if rent.ID == "" {
		rent.ID = fleet.NewRentID()
	}
	if err := s.guard.CheckRent(rent); err != nil {
		return fleet.Rent{}, s.reject(ctx, "add_rent", err)
	}
	if err := s.createRent(ctx, "add_rent", rent, false); err != nil {
		return fleet.Rent{}, err
	}
	return rent, nil
}

func (s *Service) createRent(ctx context.Context, op string, rent fleet.Rent, requireAvailable bool) error {
	err := s.withLocks(ctx, []string{carKey(rent.CarID), customerKey(rent.CustomerID)}, func() error {
		return s.run(ctx, op, func(tx fleet.Store) error {
			if err := lockParties(ctx, tx, rent.CarID, rent.CustomerID); err != nil {
				return err
			}
			car, customer, err := s.loadParties(ctx, tx, rent.CarID, rent.CustomerID)
			if err != nil {
				return err
			}
			if err := s.scheduler.Check(ctx, tx, rent.CarID, rent.Period(), ""); err != nil {
				return err
			}
			if requireAvailable && !car.Available {
				return &fleet.ValidationError{Kind: fleet.KindCar, Field: "car_id", Reason: "is not available"}
			}
			if err := tx.InsertRent(ctx, rent); err != nil {
				return err
			}
			if err := tx.UpdateCar(ctx, car.WithAvailable(false)); err != nil {
				return err
			}
			return tx.UpdateCustomer(ctx, customer.WithActive(true))
		})
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "car rented",
		"rent_id", rent.ID, "car_id", rent.CarID, "customer_id", rent.CustomerID, "period", rent.Period().String())
	return nil
}

// loadParties fetches the car and customer a rent refers to. A missing one
// is a caller error.
func (s *Service) loadParties(ctx context.Context, tx fleet.Store, carID fleet.CarID, customerID fleet.CustomerID) (fleet.Car, fleet.Customer, error) {
	car, err := tx.GetCar(ctx, carID)
	if err != nil {
		return fleet.Car{}, fleet.Customer{}, err
	}
	if car == nil {
		return fleet.Car{}, fleet.Customer{}, &fleet.ValidationError{Kind: fleet.KindRent, Field: "car_id", Reason: "does not exist"}
	}
	customer, err := tx.GetCustomer(ctx, customerID)
	if err != nil {
		return fleet.Car{}, fleet.Customer{}, err
	}
	if customer == nil {
		return fleet.Car{}, fleet.Customer{}, &fleet.ValidationError{Kind: fleet.KindRent, Field: "customer_id", Reason: "does not exist"}
	}
	return *car, *customer, nil
}

// UpdateRent moves a rent to new dates. Car and customer cannot change and
// the flags are left alone.
func (s *Service) UpdateRent(ctx context.Context, rent fleet.Rent) (fleet.Rent, error) {
	if err := required(fleet.KindRent, "id", string(rent.ID)); err != nil {
		return fleet.Rent{}, s.reject(ctx, "update_rent", err)
	}
	if err := s.guard.CheckRent(rent); err != nil {
		return fleet.Rent{}, s.reject(ctx, "update_rent", err)
	}
	err := s.withLocks(ctx, []string{carKey(rent.CarID)}, func() error {
		return s.run(ctx, "update_rent", func(tx fleet.Store) error {
			if err := tx.LockCar(ctx, rent.CarID); err != nil {
				return err
			}
			stored, err := tx.GetRent(ctx, rent.ID)
			if err != nil {
				return err
			}
			if stored == nil {
				return &fleet.NotFoundError{Kind: fleet.KindRent, ID: string(rent.ID)}
			}
			if stored.CarID != rent.CarID {
				return &fleet.ValidationError{Kind: fleet.KindRent, Field: "car_id", Reason: "cannot change"}
			}
			if stored.CustomerID != rent.CustomerID {
				return &fleet.ValidationError{Kind: fleet.KindRent, Field: "customer_id", Reason: "cannot change"}
			}
			if err := s.scheduler.Check(ctx, tx, rent.CarID, rent.Period(), rent.ID); err != nil {
				return err
			}
			return tx.UpdateRent(ctx, rent)
		})
	})
	if err != nil {
		return fleet.Rent{}, err
	}
	return rent, nil
}

// Return ends every rent of carID held by customerID. The car becomes
// available once no rent refers to it; the customer becomes inactive once
// it holds no other rent.
func (s *Service) Return(ctx context.Context, carID fleet.CarID, customerID fleet.CustomerID) error {
	if err := required(fleet.KindRent, "car_id", string(carID)); err != nil {
		return s.reject(ctx, "return", err)
	}
	if err := required(fleet.KindRent, "customer_id", string(customerID)); err != nil {
		return s.reject(ctx, "return", err)
	}
	var returned int
	err := s.withLocks(ctx, []string{carKey(carID), customerKey(customerID)}, func() error {
		return s.run(ctx, "return", func(tx fleet.Store) error {
			returned = 0
			if err := lockParties(ctx, tx, carID, customerID); err != nil {
				return err
			}
			car, customer, err := s.loadParties(ctx, tx, carID, customerID)
			if err != nil {
				return err
			}
			if !customer.Active {
				return &fleet.ValidationError{Kind: fleet.KindCustomer, Field: "customer_id", Reason: "has no active rents"}
			}

			rents, err := tx.RentsByCar(ctx, carID)
			if err != nil {
				return err
			}
			for _, r := range rents {
				if r.CustomerID != customerID {
					continue
				}
				if err := tx.DeleteRent(ctx, r.ID); err != nil {
					return err
				}
				returned++
			}
			if returned == 0 {
				return &fleet.NotFoundError{Kind: fleet.KindRent, ID: fmt.Sprintf("%s/%s", carID, customerID)}
			}

			left, err := tx.RentsByCar(ctx, carID)
			if err != nil {
				return err
			}
			if err := tx.UpdateCar(ctx, car.WithAvailable(len(left) == 0)); err != nil {
				return err
			}
			held, err := tx.RentsByCustomer(ctx, customerID)
			if err != nil {
				return err
			}
			return tx.UpdateCustomer(ctx, customer.WithActive(len(held) > 0))
		})
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "car returned", "car_id", carID, "customer_id", customerID, "rents", returned)
	return nil
}

// CancelRent deletes one rent by ID, leaving the pair's other rents alone.
// Flags are recomputed the same way Return does.
func (s *Service) CancelRent(ctx context.Context, id fleet.RentID) error {
	if err := required(fleet.KindRent, "id", string(id)); err != nil {
		return s.reject(ctx, "cancel_rent", err)
	}
	// The locks need the rent's car and customer, which never change once
	// the rent exists.
	rent, err := s.GetRent(ctx, id)
	if err != nil {
		return err
	}
	err = s.withLocks(ctx, []string{carKey(rent.CarID), customerKey(rent.CustomerID)}, func() error {
		return s.run(ctx, "cancel_rent", func(tx fleet.Store) error {
			if err := lockParties(ctx, tx, rent.CarID, rent.CustomerID); err != nil {
				return err
			}
			stored, err := tx.GetRent(ctx, id)
			if err != nil {
				return err
			}
			if stored == nil {
				return &fleet.NotFoundError{Kind: fleet.KindRent, ID: string(id)}
			}
			car, customer, err := s.loadParties(ctx, tx, stored.CarID, stored.CustomerID)
			if err != nil {
				return err
			}
			if err := tx.DeleteRent(ctx, id); err != nil {
				return err
			}
			left, err := tx.RentsByCar(ctx, car.ID)
			if err != nil {
				return err
			}
			if err := tx.UpdateCar(ctx, car.WithAvailable(len(left) == 0)); err != nil {
				return err
			}
			held, err := tx.RentsByCustomer(ctx, customer.ID)
			if err != nil {
				return err
			}
			return tx.UpdateCustomer(ctx, customer.WithActive(len(held) > 0))
		})
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "rent cancelled", "rent_id", id, "car_id", rent.CarID, "customer_id", rent.CustomerID)
	return nil
}

// =============================================================================
// PROJECTIONS
// =============================================================================

// FindRentForCar returns the single rent of a rented car. More than one
// rent is reported as an integrity violation; use ListRentsForCar to see
// reservations.
func (s *Service) FindRentForCar(ctx context.Context, carID fleet.CarID) (fleet.Rent, error) {
	if err := required(fleet.KindCar, "id", string(carID)); err != nil {
		return fleet.Rent{}, s.reject(ctx, "find_rent_for_car", err)
	}
	var rent fleet.Rent
	err := s.run(ctx, "find_rent_for_car", func(tx fleet.Store) error {
		var err error
		rent, err = s.singleRent(ctx, tx, carID)
		return err
	})
	return rent, err
}

// FindCustomerForCar returns the customer holding a rented car.
func (s *Service) FindCustomerForCar(ctx context.Context, carID fleet.CarID) (fleet.Customer, error) {
	if err := required(fleet.KindCar, "id", string(carID)); err != nil {
		return fleet.Customer{}, s.reject(ctx, "find_customer_for_car", err)
	}
	var customer fleet.Customer
	err := s.run(ctx, "find_customer_for_car", func(tx fleet.Store) error {
		rent, err := s.singleRent(ctx, tx, carID)
		if err != nil {
			return err
		}
		found, err := tx.GetCustomer(ctx, rent.CustomerID)
		if err != nil {
			return err
		}
		if found == nil {
			return &fleet.IntegrityError{Kind: fleet.KindRent, ID: string(rent.ID), Detail: "refers to missing customer " + string(rent.CustomerID)}
		}
		customer = *found
		return nil
	})
	return customer, err
}

func (s *Service) singleRent(ctx context.Context, tx fleet.Store, carID fleet.CarID) (fleet.Rent, error) {
	car, err := tx.GetCar(ctx, carID)
	if err != nil {
		return fleet.Rent{}, err
	}
	if car == nil {
		return fleet.Rent{}, &fleet.ValidationError{Kind: fleet.KindCar, Field: "id", Reason: "does not exist"}
	}
	if car.Available {
		return fleet.Rent{}, &fleet.ValidationError{Kind: fleet.KindCar, Field: "id", Reason: "is not rented"}
	}
	rents, err := tx.RentsByCar(ctx, carID)
	if err != nil {
		return fleet.Rent{}, err
	}
	switch len(rents) {
	case 1:
		return rents[0], nil
	case 0:
		return fleet.Rent{}, &fleet.IntegrityError{Kind: fleet.KindCar, ID: string(carID), Detail: "marked unavailable without a rent"}
	default:
		return fleet.Rent{}, &fleet.IntegrityError{Kind: fleet.KindCar, ID: string(carID), Detail: fmt.Sprintf("has %d rents, expected one", len(rents))}
	}
}

// ListCarsForCustomer returns the cars an active customer holds, in rent
// order, each car once.
func (s *Service) ListCarsForCustomer(ctx context.Context, customerID fleet.CustomerID) ([]fleet.Car, error) {
	if err := required(fleet.KindCustomer, "id", string(customerID)); err != nil {
		return nil, s.reject(ctx, "list_cars_for_customer", err)
	}
	var cars []fleet.Car
	err := s.run(ctx, "list_cars_for_customer", func(tx fleet.Store) error {
		customer, err := tx.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return &fleet.ValidationError{Kind: fleet.KindCustomer, Field: "id", Reason: "does not exist"}
		}
		if !customer.Active {
			return &fleet.ValidationError{Kind: fleet.KindCustomer, Field: "id", Reason: "has no active rents"}
		}
		rents, err := tx.RentsByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		seen := make(map[fleet.CarID]bool, len(rents))
		cars = make([]fleet.Car, 0, len(rents))
		for _, r := range rents {
			if seen[r.CarID] {
				continue
			}
			seen[r.CarID] = true
			car, err := tx.GetCar(ctx, r.CarID)
			if err != nil {
				return err
			}
			if car == nil {
				return &fleet.IntegrityError{Kind: fleet.KindRent, ID: string(r.ID), Detail: "refers to missing car " + string(r.CarID)}
			}
			cars = append(cars, *car)
		}
		return nil
	})
	return cars, err
}

// GetRent returns the rent with id.
func (s *Service) GetRent(ctx context.Context, id fleet.RentID) (fleet.Rent, error) {
	if err := required(fleet.KindRent, "id", string(id)); err != nil {
		return fleet.Rent{}, s.reject(ctx, "get_rent", err)
	}
	var rent fleet.Rent
	err := s.run(ctx, "get_rent", func(tx fleet.Store) error {
		found, err := tx.GetRent(ctx, id)
		if err != nil {
			return err
		}
		if found == nil {
			return &fleet.NotFoundError{Kind: fleet.KindRent, ID: string(id)}
		}
		rent = *found
		return nil
	})
	return rent, err
}

// ListRents returns every rent.
func (s *Service) ListRents(ctx context.Context) ([]fleet.Rent, error) {
	var rents []fleet.Rent
	err := s.run(ctx, "list_rents", func(tx fleet.Store) error {
		var err error
		rents, err = tx.ListRents(ctx)
		return err
	})
	return rents, err
}

// ListRentsForCar returns every rent of a car, current and future.
func (s *Service) ListRentsForCar(ctx context.Context, carID fleet.CarID) ([]fleet.Rent, error) {
	if err := required(fleet.KindCar, "id", string(carID)); err != nil {
		return nil, s.reject(ctx, "list_rents_for_car", err)
	}
	var rents []fleet.Rent
	err := s.run(ctx, "list_rents_for_car", func(tx fleet.Store) error {
		car, err := tx.GetCar(ctx, carID)
		if err != nil {
			return err
		}
		if car == nil {
			return &fleet.ValidationError{Kind: fleet.KindCar, Field: "id", Reason: "does not exist"}
		}
		rents, err = tx.RentsByCar(ctx, carID)
		return err
	})
	return rents, err
}
