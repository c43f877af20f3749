package rental_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-rental/fleet"
	"github.com/warp/fleet-rental/fleet/store"
	"github.com/warp/fleet-rental/rental"
)

func newWorkspaceFixture(t *testing.T, policy fleet.MergePolicy) (*rental.Service, *rental.Workspace, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	return rental.NewService(store.NewMemory()), rental.NewWorkspace(policy, logger), &logs
}

func TestWorkspace_CommitReplaysInDependencyOrder(t *testing.T) {
	// GIVEN: A car, a customer and a rent created offline, rent first
	ctx := context.Background()
	svc, ws, logs := newWorkspaceFixture(t, fleet.MergeDiscardPending)
	car := newCar("0B6 6835")
	car.ID = fleet.NewCarID()
	customer := newCustomer("AK 373979")
	customer.ID = fleet.NewCustomerID()
	ws.AddRent(fleet.Rent{CarID: car.ID, CustomerID: customer.ID, RentDate: day(time.March, 21), DueDate: day(time.March, 31)})
	ws.AddCustomer(customer)
	ws.AddCar(car)

	// WHEN: The workspace commits
	report := ws.Commit(ctx, svc)

	// THEN: Cars and customers land before the rent, and the reload
	// brings back the flags the service computed
	require.NoError(t, report.Err())
	assert.Equal(t, 3, report.Added)
	assert.Equal(t, 0, ws.Pending())
	assert.Equal(t, "3 added, 0 updated, 0 removed, 0 failed", report.String())

	cars := ws.Cars.Items()
	require.Len(t, cars, 1)
	assert.False(t, cars[0].Available)
	customers := ws.Customers.Items()
	require.Len(t, customers, 1)
	assert.True(t, customers[0].Active)
	assert.Contains(t, logs.String(), "workspace committed")
}

func TestWorkspace_DeletesCancelThenRemove(t *testing.T) {
	// GIVEN: A server with a rented car, mirrored in a workspace
	ctx := context.Background()
	svc, ws, _ := newWorkspaceFixture(t, fleet.MergeDiscardPending)
	car, err := svc.AddCar(ctx, newCar("0B6 6835"))
	require.NoError(t, err)
	customer, err := svc.AddCustomer(ctx, newCustomer("AK 373979"))
	require.NoError(t, err)
	rent, err := svc.RentOut(ctx, car.ID, customer.ID, day(time.March, 21), day(time.March, 31))
	require.NoError(t, err)
	require.NoError(t, ws.Refresh(ctx, svc))

	// WHEN: The car, the customer and the rent are all deleted offline
	ws.Cars.MarkForDeletion(car)
	ws.Customers.MarkForDeletion(customer)
	ws.Rents.MarkForDeletion(rent)
	report := ws.Commit(ctx, svc)

	// THEN: The rent is cancelled first so both removals succeed
	require.NoError(t, report.Err())
	assert.Equal(t, 3, report.Removed)
	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Cars)
	assert.Empty(t, snap.Customers)
	assert.Empty(t, snap.Rents)
	assert.Empty(t, ws.Cars.Items())
}

func TestWorkspace_DeletedRentLeavesSiblingOnServer(t *testing.T) {
	// GIVEN: Two rents of the same car by the same customer, mirrored locally
	ctx := context.Background()
	svc, ws, _ := newWorkspaceFixture(t, fleet.MergeDiscardPending)
	car, err := svc.AddCar(ctx, newCar("0B6 6835"))
	require.NoError(t, err)
	customer, err := svc.AddCustomer(ctx, newCustomer("AK 373979"))
	require.NoError(t, err)
	first, err := svc.RentOut(ctx, car.ID, customer.ID, day(time.March, 21), day(time.March, 31))
	require.NoError(t, err)
	second, err := svc.AddRent(ctx, fleet.Rent{CarID: car.ID, CustomerID: customer.ID, RentDate: day(time.April, 10), DueDate: day(time.April, 15)})
	require.NoError(t, err)
	require.NoError(t, ws.Refresh(ctx, svc))

	// WHEN: Only the first rent is deleted offline and committed
	ws.Rents.MarkForDeletion(first)
	report := ws.Commit(ctx, svc)

	// THEN: Exactly that rent is gone, on the server and in the workspace
	require.NoError(t, report.Err())
	assert.Equal(t, 1, report.Removed)
	rents, err := svc.ListRents(ctx)
	require.NoError(t, err)
	require.Len(t, rents, 1)
	assert.Equal(t, second.ID, rents[0].ID)

	local := ws.Rents.Items()
	require.Len(t, local, 1)
	assert.Equal(t, second.ID, local[0].ID)

	stored, err := svc.FindCar(ctx, car.ID)
	require.NoError(t, err)
	assert.False(t, stored.Available)
}

func TestWorkspace_RefusedChangesStayPending(t *testing.T) {
	// GIVEN: The server already rents the car for 2012-03-21..2012-03-31
	ctx := context.Background()
	svc, ws, logs := newWorkspaceFixture(t, fleet.MergeDiscardPending)
	car, _ := svc.AddCar(ctx, newCar("0B6 6835"))
	a, _ := svc.AddCustomer(ctx, newCustomer("AK 373979"))
	b, _ := svc.AddCustomer(ctx, newCustomer("BM 120455"))
	_, err := svc.RentOut(ctx, car.ID, a.ID, day(time.March, 21), day(time.March, 31))
	require.NoError(t, err)
	require.NoError(t, ws.Refresh(ctx, svc))

	// WHEN: An offline overlapping rent and a renamed car are committed
	clash := ws.AddRent(fleet.Rent{CarID: car.ID, CustomerID: b.ID, RentDate: day(time.March, 30), DueDate: day(time.April, 2)})
	renamed := car
	renamed.Color = "Red"
	require.True(t, ws.Cars.Update(car, renamed))
	report := ws.Commit(ctx, svc)

	// THEN: The update goes through, the rent is refused and kept
	require.Len(t, report.Failures, 1)
	assert.Equal(t, fleet.KindRent, report.Failures[0].Kind)
	assert.Equal(t, rental.OpAdd, report.Failures[0].Op)
	assert.True(t, fleet.IsConflict(report.Err()))
	assert.Equal(t, 1, report.Updated)
	assert.True(t, ws.Rents.IsAdded(clash))
	assert.Len(t, ws.Rents.Items(), 2)
	assert.Contains(t, logs.String(), "replay failed")

	stored, _ := svc.FindCar(ctx, car.ID)
	assert.Equal(t, "Red", stored.Color)
}

func TestWorkspace_RefreshKeepsUnsyncedAdds(t *testing.T) {
	// GIVEN: A locally added car the server has never seen
	ctx := context.Background()
	svc, ws, _ := newWorkspaceFixture(t, fleet.MergeDiscardPending)
	_, err := svc.AddCar(ctx, newCar("KFZ 4411"))
	require.NoError(t, err)
	local := ws.AddCar(newCar("0B6 6835"))

	// WHEN: The workspace refreshes
	require.NoError(t, ws.Refresh(ctx, svc))

	// THEN: The local car is still listed and still pending
	assert.Len(t, ws.Cars.Items(), 2)
	assert.True(t, ws.Cars.IsAdded(local))
}

func TestWorkspace_RefreshPolicies(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name   string
		policy fleet.MergePolicy
		want   string
	}{
		{"discard pending", fleet.MergeDiscardPending, "Silver"},
		{"keep pending", fleet.MergeKeepPending, "Red"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			// GIVEN: A pending local update
			svc, ws, _ := newWorkspaceFixture(t, tc.policy)
			car, err := svc.AddCar(ctx, newCar("0B6 6835"))
			require.NoError(t, err)
			require.NoError(t, ws.Refresh(ctx, svc))
			red := car
			red.Color = "Red"
			ws.Cars.Update(car, red)

			// WHEN: Refreshing from the server
			require.NoError(t, ws.Refresh(ctx, svc))

			// THEN: The policy decides whose color is listed
			items := ws.Cars.Items()
			require.Len(t, items, 1)
			assert.Equal(t, tc.want, items[0].Color)
		})
	}
}
