/*
handlers_test.go - Tests for API handlers

Tests for:
- Car and customer CRUD over HTTP
- Rent out, overlap refusal and return with flag updates
- Error category to status mapping
- Snapshot publish with and without a runner
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-rental/fleet"
	"github.com/warp/fleet-rental/fleet/store"
	"github.com/warp/fleet-rental/rental"
)

func setupTestHandler(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	svc := rental.NewService(store.NewMemory())
	h := NewHandler(svc)
	return h, NewRouter(h, RouterConfig{})
}

func call(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func createCar(t *testing.T, router http.Handler, plate string) fleet.Car {
	t.Helper()
	rec := call(t, router, http.MethodPost, "/api/cars", map[string]any{
		"model": "Volvo V70", "color": "Silver", "license_plate": plate, "price": "200.0",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating car, got %d: %s", rec.Code, rec.Body.String())
	}
	return decodeBody[fleet.Car](t, rec)
}

func createCustomer(t *testing.T, router http.Handler, license string) fleet.Customer {
	t.Helper()
	rec := call(t, router, http.MethodPost, "/api/customers", map[string]any{
		"first_name": "Anna", "last_name": "Karlsson", "address": "Storgatan 1",
		"phone": "018-123456", "drivers_license": license,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating customer, got %d: %s", rec.Code, rec.Body.String())
	}
	return decodeBody[fleet.Customer](t, rec)
}

func TestCars_CreateGetList(t *testing.T) {
	// GIVEN: An empty fleet
	_, router := setupTestHandler(t)

	// WHEN: A car is created
	car := createCar(t, router, "0B6 6835")

	// THEN: It starts available and is listed everywhere
	assert.NotEmpty(t, car.ID)
	assert.True(t, car.Available)

	rec := call(t, router, http.MethodGet, "/api/cars/"+string(car.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0B6 6835", decodeBody[fleet.Car](t, rec).LicensePlate)

	rec = call(t, router, http.MethodGet, "/api/cars", nil)
	assert.Len(t, decodeBody[[]fleet.Car](t, rec), 1)

	rec = call(t, router, http.MethodGet, "/api/cars/available", nil)
	assert.Len(t, decodeBody[[]fleet.Car](t, rec), 1)
}

func TestCars_EmptyListIsArray(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := call(t, router, http.MethodGet, "/api/cars", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCars_DuplicatePlateIsConflict(t *testing.T) {
	// GIVEN: A car with plate 0B6 6835
	_, router := setupTestHandler(t)
	createCar(t, router, "0B6 6835")

	// WHEN: Another car claims the same plate
	rec := call(t, router, http.MethodPost, "/api/cars", map[string]any{
		"model": "Saab", "color": "Black", "license_plate": "0B6 6835", "price": "100",
	})

	// THEN: 409 with the conflict category
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeBody[ErrorResponse](t, rec).Category)
}

func TestCars_InvalidBody(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := call(t, router, http.MethodPost, "/api/cars", "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_argument", decodeBody[ErrorResponse](t, rec).Category)
}

func TestCars_UpdateAndDelete(t *testing.T) {
	// GIVEN: A stored car
	_, router := setupTestHandler(t)
	car := createCar(t, router, "0B6 6835")

	// WHEN: Its color is updated through the path ID
	rec := call(t, router, http.MethodPut, "/api/cars/"+string(car.ID), map[string]any{
		"model": car.Model, "color": "Red", "license_plate": car.LicensePlate, "price": "210",
	})

	// THEN: The update is stored
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Red", decodeBody[fleet.Car](t, rec).Color)

	// WHEN: It is deleted twice
	rec = call(t, router, http.MethodDelete, "/api/cars/"+string(car.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = call(t, router, http.MethodDelete, "/api/cars/"+string(car.ID), nil)

	// THEN: The second delete reports not found
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRentOut_SetsFlagsAndLookups(t *testing.T) {
	// GIVEN: A car and a customer
	_, router := setupTestHandler(t)
	car := createCar(t, router, "0B6 6835")
	customer := createCustomer(t, router, "AK 373979")

	// WHEN: The car is rented out
	rec := call(t, router, http.MethodPost, "/api/rentals", map[string]any{
		"car_id": car.ID, "customer_id": customer.ID,
		"rent_date": "2012-03-21", "due_date": "2012-03-31",
	})

	// THEN: The rent is created and both flags flip
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rent := decodeBody[fleet.Rent](t, rec)
	assert.Equal(t, "2012-03-21", rent.RentDate.String())

	assert.False(t, decodeBody[fleet.Car](t, call(t, router, http.MethodGet, "/api/cars/"+string(car.ID), nil)).Available)
	assert.True(t, decodeBody[fleet.Customer](t, call(t, router, http.MethodGet, "/api/customers/"+string(customer.ID), nil)).Active)

	rec = call(t, router, http.MethodGet, "/api/cars/"+string(car.ID)+"/customer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, customer.ID, decodeBody[fleet.Customer](t, rec).ID)

	rec = call(t, router, http.MethodGet, "/api/cars/"+string(car.ID)+"/rent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, rent.ID, decodeBody[fleet.Rent](t, rec).ID)

	rec = call(t, router, http.MethodGet, "/api/customers/"+string(customer.ID)+"/cars", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]fleet.Car](t, rec), 1)

	rec = call(t, router, http.MethodGet, "/api/cars/available", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
	rec = call(t, router, http.MethodGet, "/api/customers/active", nil)
	assert.Len(t, decodeBody[[]fleet.Customer](t, rec), 1)
}

func TestRentOut_OverlapIsConflict(t *testing.T) {
	// GIVEN: A car rented 2012-03-21..2012-03-31
	_, router := setupTestHandler(t)
	car := createCar(t, router, "0B6 6835")
	first := createCustomer(t, router, "AK 373979")
	second := createCustomer(t, router, "BM 120455")
	rec := call(t, router, http.MethodPost, "/api/rentals", RentOutRequest{
		CarID: car.ID, CustomerID: first.ID,
		RentDate: fleet.NewTimePoint(2012, 3, 21), DueDate: fleet.NewTimePoint(2012, 3, 31),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// WHEN: Another customer asks for overlapping days
	rec = call(t, router, http.MethodPost, "/api/rentals", RentOutRequest{
		CarID: car.ID, CustomerID: second.ID,
		RentDate: fleet.NewTimePoint(2012, 3, 25), DueDate: fleet.NewTimePoint(2012, 4, 2),
	})

	// THEN: 409 and the second customer stays inactive
	assert.Equal(t, http.StatusConflict, rec.Code)
	got := decodeBody[fleet.Customer](t, call(t, router, http.MethodGet, "/api/customers/"+string(second.ID), nil))
	assert.False(t, got.Active)
}

func TestAddRent_ReversedDatesIsBadRequest(t *testing.T) {
	_, router := setupTestHandler(t)
	car := createCar(t, router, "0B6 6835")
	customer := createCustomer(t, router, "AK 373979")

	rec := call(t, router, http.MethodPost, "/api/rents", map[string]any{
		"car_id": car.ID, "customer_id": customer.ID,
		"rent_date": "2012-03-31", "due_date": "2012-03-21",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = call(t, router, http.MethodGet, "/api/rents", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestReturn_FreesCarAndCustomer(t *testing.T) {
	// GIVEN: A rented car
	_, router := setupTestHandler(t)
	car := createCar(t, router, "0B6 6835")
	customer := createCustomer(t, router, "AK 373979")
	rec := call(t, router, http.MethodPost, "/api/rentals", map[string]any{
		"car_id": car.ID, "customer_id": customer.ID,
		"rent_date": "2012-03-21", "due_date": "2012-03-31",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// WHEN: It is returned
	rec = call(t, router, http.MethodPost, "/api/returns", ReturnRequest{CarID: car.ID, CustomerID: customer.ID})

	// THEN: No content, the rent is gone and both flags reset
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[fleet.Car](t, call(t, router, http.MethodGet, "/api/cars/"+string(car.ID), nil)).Available)
	assert.False(t, decodeBody[fleet.Customer](t, call(t, router, http.MethodGet, "/api/customers/"+string(customer.ID), nil)).Active)

	// A lookup on an available car is a caller error
	rec = call(t, router, http.MethodGet, "/api/cars/"+string(car.ID)+"/rent", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRent_CancelsOnlyThatRent(t *testing.T) {
	// GIVEN: Two rents of one car by the same customer
	_, router := setupTestHandler(t)
	car := createCar(t, router, "0B6 6835")
	customer := createCustomer(t, router, "AK 373979")
	first := decodeBody[fleet.Rent](t, call(t, router, http.MethodPost, "/api/rents", map[string]any{
		"car_id": car.ID, "customer_id": customer.ID, "rent_date": "2012-03-21", "due_date": "2012-03-31",
	}))
	second := decodeBody[fleet.Rent](t, call(t, router, http.MethodPost, "/api/rents", map[string]any{
		"car_id": car.ID, "customer_id": customer.ID, "rent_date": "2012-04-10", "due_date": "2012-04-15",
	}))

	// WHEN: The first is deleted
	rec := call(t, router, http.MethodDelete, "/api/rents/"+string(first.ID), nil)

	// THEN: No content, and the second rent still holds the car
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rents := decodeBody[[]fleet.Rent](t, call(t, router, http.MethodGet, "/api/rents", nil))
	require.Len(t, rents, 1)
	assert.Equal(t, second.ID, rents[0].ID)
	assert.False(t, decodeBody[fleet.Car](t, call(t, router, http.MethodGet, "/api/cars/"+string(car.ID), nil)).Available)

	// Deleting it again is a 404
	rec = call(t, router, http.MethodDelete, "/api/rents/"+string(first.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRent_MovesDates(t *testing.T) {
	// GIVEN: A rent and a later reservation on the same car
	_, router := setupTestHandler(t)
	car := createCar(t, router, "0B6 6835")
	a := createCustomer(t, router, "AK 373979")
	b := createCustomer(t, router, "BM 120455")
	first := decodeBody[fleet.Rent](t, call(t, router, http.MethodPost, "/api/rents", map[string]any{
		"car_id": car.ID, "customer_id": a.ID, "rent_date": "2012-03-21", "due_date": "2012-03-31",
	}))
	second := decodeBody[fleet.Rent](t, call(t, router, http.MethodPost, "/api/rents", map[string]any{
		"car_id": car.ID, "customer_id": b.ID, "rent_date": "2012-04-10", "due_date": "2012-04-12",
	}))

	// WHEN: The first rent is extended into the reservation
	rec := call(t, router, http.MethodPut, "/api/rents/"+string(first.ID), map[string]any{
		"car_id": car.ID, "customer_id": a.ID, "rent_date": "2012-03-21", "due_date": "2012-04-10",
	})

	// THEN: It conflicts; a shorter extension succeeds
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = call(t, router, http.MethodPut, "/api/rents/"+string(first.ID), map[string]any{
		"car_id": car.ID, "customer_id": a.ID, "rent_date": "2012-03-21", "due_date": "2012-04-09",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, router, http.MethodGet, "/api/cars/"+string(car.ID)+"/rents", nil)
	assert.Len(t, decodeBody[[]fleet.Rent](t, rec), 2)
	rec = call(t, router, http.MethodGet, "/api/rents/"+string(second.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &fleet.ValidationError{Field: "id", Reason: "is required"}, http.StatusBadRequest},
		{"duplicate", &fleet.DuplicateError{Kind: fleet.KindCar, Field: "license_plate"}, http.StatusConflict},
		{"not found", &fleet.NotFoundError{Kind: fleet.KindRent}, http.StatusNotFound},
		{"store failure", &fleet.TransactionError{Op: "rent_out", Err: errors.New("disk full")}, http.StatusServiceUnavailable},
		{"integrity", &fleet.IntegrityError{Kind: fleet.KindCar}, http.StatusInternalServerError},
		{"canceled", context.Canceled, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

type stubRunner struct {
	location string
	err      error
}

func (s stubRunner) RunNow(context.Context) (string, error) { return s.location, s.err }

func TestPublishSnapshot(t *testing.T) {
	h, router := setupTestHandler(t)

	rec := call(t, router, http.MethodPost, "/api/snapshot/publish", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.Snapshots = stubRunner{location: "s3://fleet/snapshots/fleet-x.json"}
	rec = call(t, router, http.MethodPost, "/api/snapshot/publish", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s3://fleet/snapshots/fleet-x.json", decodeBody[PublishDTO](t, rec).Location)

	h.Snapshots = stubRunner{err: errors.New("bucket gone")}
	rec = call(t, router, http.MethodPost, "/api/snapshot/publish", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetSnapshot_EmptyStore(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := call(t, router, http.MethodGet, "/api/snapshot", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cars":[],"customers":[],"rents":[]}`, rec.Body.String())
}

func TestRouter_MetricsAndHealth(t *testing.T) {
	svc := rental.NewService(store.NewMemory())
	router := NewRouter(NewHandler(svc), RouterConfig{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("fleet_operations_total 0\n"))
		}),
	})

	rec := call(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fleet_operations_total")

	rec = call(t, router, http.MethodGet, "/healthz", nil)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
