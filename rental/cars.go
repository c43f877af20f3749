package rental

import (
	"context"

	"github.com/warp/fleet-rental/fleet"
)

// =============================================================================
// CAR OPERATIONS
// =============================================================================

// AddCar stores a new car. A missing ID is generated; a supplied one is
// kept so offline-created cars replay with their original identity. The car
// starts available regardless of the flag passed in.
func (s *Service) AddCar(ctx context.Context, car fleet.Car) (fleet.Car, error) {
	if car.ID == "" {
		car.ID = fleet.NewCarID()
	}
	car.Available = true

	err := s.run(ctx, "add_car", func(tx fleet.Store) error {
		if err := s.guard.CheckCar(ctx, tx, car); err != nil {
			return err
		}
		return tx.InsertCar(ctx, car)
	})
	if err != nil {
		return fleet.Car{}, err
	}
	s.logger.InfoContext(ctx, "car added", "car_id", car.ID, "plate", car.LicensePlate)
	return car, nil
}

// FindCar returns the car with id.
func (s *Service) FindCar(ctx context.Context, id fleet.CarID) (fleet.Car, error) {
	if err := required(fleet.KindCar, "id", string(id)); err != nil {
		return fleet.Car{}, s.reject(ctx, "find_car", err)
	}
	var car fleet.Car
	err := s.run(ctx, "find_car", func(tx fleet.Store) error {
		found, err := tx.GetCar(ctx, id)
		if err != nil {
			return err
		}
		if found == nil {
			return &fleet.NotFoundError{Kind: fleet.KindCar, ID: string(id)}
		}
		car = *found
		return nil
	})
	return car, err
}

// UpdateCar replaces the descriptive fields of a stored car. The stored
// availability flag is kept.
func (s *Service) UpdateCar(ctx context.Context, car fleet.Car) (fleet.Car, error) {
	if err := required(fleet.KindCar, "id", string(car.ID)); err != nil {
		return fleet.Car{}, s.reject(ctx, "update_car", err)
	}
	err := s.withLocks(ctx, []string{carKey(car.ID)}, func() error {
		return s.run(ctx, "update_car", func(tx fleet.Store) error {
			if err := tx.LockCar(ctx, car.ID); err != nil {
				return err
			}
			stored, err := tx.GetCar(ctx, car.ID)
			if err != nil {
				return err
			}
			if stored == nil {
				return &fleet.NotFoundError{Kind: fleet.KindCar, ID: string(car.ID)}
			}
			car.Available = stored.Available
			if err := s.guard.CheckCar(ctx, tx, car); err != nil {
				return err
			}
			return tx.UpdateCar(ctx, car)
		})
	})
	if err != nil {
		return fleet.Car{}, err
	}
	return car, nil
}

// RemoveCar deletes a car no rent refers to.
func (s *Service) RemoveCar(ctx context.Context, id fleet.CarID) error {
	if err := required(fleet.KindCar, "id", string(id)); err != nil {
		return s.reject(ctx, "remove_car", err)
	}
	return s.withLocks(ctx, []string{carKey(id)}, func() error {
		return s.run(ctx, "remove_car", func(tx fleet.Store) error {
			if err := tx.LockCar(ctx, id); err != nil {
				return err
			}
			stored, err := tx.GetCar(ctx, id)
			if err != nil {
				return err
			}
			if stored == nil {
				return &fleet.NotFoundError{Kind: fleet.KindCar, ID: string(id)}
			}
			rents, err := tx.RentsByCar(ctx, id)
			if err != nil {
				return err
			}
			if len(rents) > 0 {
				return &fleet.ValidationError{Kind: fleet.KindCar, Field: "id", Reason: "is rented and cannot be removed"}
			}
			return tx.DeleteCar(ctx, id)
		})
	})
}

// ListCars returns every car.
func (s *Service) ListCars(ctx context.Context) ([]fleet.Car, error) {
	var cars []fleet.Car
	err := s.run(ctx, "list_cars", func(tx fleet.Store) error {
		var err error
		cars, err = tx.ListCars(ctx)
		return err
	})
	return cars, err
}

// ListAvailableCars returns the cars no rent refers to.
func (s *Service) ListAvailableCars(ctx context.Context) ([]fleet.Car, error) {
	var cars []fleet.Car
	err := s.run(ctx, "list_available_cars", func(tx fleet.Store) error {
		var err error
		cars, err = tx.ListAvailableCars(ctx)
		return err
	})
	return cars, err
}
