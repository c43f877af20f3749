package rental

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-rental/fleet"
	"github.com/warp/fleet-rental/fleet/store"
)

func period(fromMonth time.Month, fromDay int, toMonth time.Month, toDay int) fleet.Period {
	return fleet.Period{Start: fleet.NewTimePoint(2012, fromMonth, fromDay), End: fleet.NewTimePoint(2012, toMonth, toDay)}
}

func TestScheduler_FindConflict(t *testing.T) {
	existing := []fleet.Rent{
		fleet.Rent{ID: "r1", CarID: "c1"}.WithPeriod(period(time.March, 21, time.March, 31)),
		fleet.Rent{ID: "r2", CarID: "c1"}.WithPeriod(period(time.April, 10, time.April, 12)),
	}
	var s Scheduler

	// A boundary day is shared
	got := s.FindConflict(existing, period(time.March, 31, time.April, 2), "")
	require.NotNil(t, got)
	assert.Equal(t, fleet.RentID("r1"), got.ID)

	// Gap between the two rents
	assert.Nil(t, s.FindConflict(existing, period(time.April, 1, time.April, 9), ""))

	// A rent never conflicts with itself
	assert.Nil(t, s.FindConflict(existing, period(time.March, 20, time.March, 25), "r1"))
	assert.NotNil(t, s.FindConflict(existing, period(time.March, 20, time.April, 10), "r1"))
}

func TestScheduler_Check(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.InsertRent(ctx, fleet.Rent{ID: "r1", CarID: "c1", CustomerID: "k1"}.WithPeriod(period(time.March, 21, time.March, 31))))
	var s Scheduler

	err := s.Check(ctx, mem, "c1", period(time.March, 25, time.April, 2), "")
	var overlap *fleet.OverlapError
	require.ErrorAs(t, err, &overlap)
	assert.Equal(t, fleet.RentID("r1"), overlap.ExistingRent)
	assert.Equal(t, fleet.CarID("c1"), overlap.CarID)

	// Other cars are independent
	assert.NoError(t, s.Check(ctx, mem, "c2", period(time.March, 25, time.April, 2), ""))

	// Reversed periods are rejected before any lookup
	err = s.Check(ctx, mem, "c1", period(time.May, 2, time.May, 1), "")
	assert.ErrorIs(t, err, fleet.ErrInvalidPeriod)
}
