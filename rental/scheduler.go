package rental

import (
	"context"

	"github.com/warp/fleet-rental/fleet"
)

// =============================================================================
// OVERLAP SCHEDULER - One rent per car per day
// =============================================================================

// Scheduler rejects rents whose closed date interval intersects another
// rent of the same car. There is no waitlist: a conflict is final.
type Scheduler struct{}

// FindConflict returns the first rent in existing that overlaps p, ignoring
// the rent with id exclude.
func (Scheduler) FindConflict(existing []fleet.Rent, p fleet.Period, exclude fleet.RentID) *fleet.Rent {
	for i := range existing {
		r := existing[i]
		if exclude != "" && r.ID == exclude {
			continue
		}
		if r.Period().Overlaps(p) {
			return &r
		}
	}
	return nil
}

// Check validates p and looks for an overlapping rent of carID in st.
// Callers lock the car first so nobody inserts between check and write.
func (s Scheduler) Check(ctx context.Context, st fleet.Store, carID fleet.CarID, p fleet.Period, exclude fleet.RentID) error {
	if err := p.Validate(); err != nil {
		return err
	}
	existing, err := st.RentsByCar(ctx, carID)
	if err != nil {
		return err
	}
	if conflict := s.FindConflict(existing, p, exclude); conflict != nil {
		return &fleet.OverlapError{
			CarID:        carID,
			Requested:    p,
			ExistingRent: conflict.ID,
			Existing:     conflict.Period(),
		}
	}
	return nil
}
