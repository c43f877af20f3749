/*
handlers.go - HTTP API handlers for the rental engine

PURPOSE:
  Exposes the rental service via REST API. Handles HTTP request/response
  and JSON serialization, and delegates every decision to rental.Service.

ENDPOINTS:
  Cars:
    GET    /api/cars                  List all cars
    POST   /api/cars                  Add car
    GET    /api/cars/available        List cars not rented
    GET    /api/cars/{id}             Get car
    PUT    /api/cars/{id}             Update car
    DELETE /api/cars/{id}             Remove car
    GET    /api/cars/{id}/rent        Rent of a rented car
    GET    /api/cars/{id}/customer    Customer holding a rented car
    GET    /api/cars/{id}/rents       Every rent of a car

  Customers:
    GET    /api/customers             List all customers
    POST   /api/customers             Add customer
    GET    /api/customers/active      List customers holding a rent
    GET    /api/customers/{id}        Get customer
    PUT    /api/customers/{id}        Update customer
    DELETE /api/customers/{id}        Remove customer
    GET    /api/customers/{id}/cars   Cars held by an active customer

  Rents:
    GET    /api/rents                 List rents
    POST   /api/rents                 Add a pre-built rent (reservation)
    GET    /api/rents/{id}            Get rent
    PUT    /api/rents/{id}            Move a rent to new dates
    DELETE /api/rents/{id}            Cancel one rent
    POST   /api/rentals               Rent out an available car
    POST   /api/returns               Return a car

  Snapshots:
    GET    /api/snapshot              Consistent copy of all records
    POST   /api/snapshot/publish      Publish a snapshot now

ERROR HANDLING:
  Errors are returned as JSON with the fleet error category:
  - 400: invalid_argument
  - 404: not_found
  - 409: conflict
  - 503: transaction_failed, safe to retry
  - 500: transaction_failed (integrity) and internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
  - client.go: Go client for these endpoints
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/fleet-rental/factory"
	"github.com/warp/fleet-rental/fleet"
	"github.com/warp/fleet-rental/logging"
	"github.com/warp/fleet-rental/rental"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// SnapshotRunner publishes a snapshot on demand.
type SnapshotRunner interface {
	RunNow(ctx context.Context) (string, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *rental.Service
	Factory   *factory.FleetFactory
	Snapshots SnapshotRunner // nil when publishing is disabled

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler around svc.
func NewHandler(svc *rental.Service) *Handler {
	return &Handler{
		Service: svc,
		Factory: factory.NewFleetFactory(),
	}
}

// =============================================================================
// CAR ENDPOINTS
// =============================================================================

// ListCars returns all cars.
func (h *Handler) ListCars(w http.ResponseWriter, r *http.Request) {
	cars, err := h.Service.ListCars(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(cars))
}

// ListAvailableCars returns cars no rent refers to.
func (h *Handler) ListAvailableCars(w http.ResponseWriter, r *http.Request) {
	cars, err := h.Service.ListAvailableCars(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(cars))
}

// CreateCar adds a car.
func (h *Handler) CreateCar(w http.ResponseWriter, r *http.Request) {
	var car fleet.Car
	if !decode(w, r, &car) {
		return
	}
	created, err := h.Service.AddCar(r.Context(), car)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetCar returns one car.
func (h *Handler) GetCar(w http.ResponseWriter, r *http.Request) {
	car, err := h.Service.FindCar(r.Context(), fleet.CarID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, car)
}

// UpdateCar replaces a car's fields. The path ID wins over the body.
func (h *Handler) UpdateCar(w http.ResponseWriter, r *http.Request) {
	var car fleet.Car
	if !decode(w, r, &car) {
		return
	}
	car.ID = fleet.CarID(chi.URLParam(r, "id"))
	updated, err := h.Service.UpdateCar(r.Context(), car)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteCar removes a car that has no rents.
func (h *Handler) DeleteCar(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.RemoveCar(r.Context(), fleet.CarID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCarRent returns the rent of a rented car.
func (h *Handler) GetCarRent(w http.ResponseWriter, r *http.Request) {
	rent, err := h.Service.FindRentForCar(r.Context(), fleet.CarID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rent)
}

// GetCarCustomer returns the customer holding a rented car.
func (h *Handler) GetCarCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := h.Service.FindCustomerForCar(r.Context(), fleet.CarID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

// ListCarRents returns every rent of a car.
func (h *Handler) ListCarRents(w http.ResponseWriter, r *http.Request) {
	rents, err := h.Service.ListRentsForCar(r.Context(), fleet.CarID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(rents))
}

// =============================================================================
// CUSTOMER ENDPOINTS
// =============================================================================

// ListCustomers returns all customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Service.ListCustomers(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(customers))
}

// ListActiveCustomers returns customers holding at least one rent.
func (h *Handler) ListActiveCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Service.ListActiveCustomers(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(customers))
}

// CreateCustomer adds a customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var customer fleet.Customer
	if !decode(w, r, &customer) {
		return
	}
	created, err := h.Service.AddCustomer(r.Context(), customer)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetCustomer returns one customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := h.Service.FindCustomer(r.Context(), fleet.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

// UpdateCustomer replaces a customer's fields.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var customer fleet.Customer
	if !decode(w, r, &customer) {
		return
	}
	customer.ID = fleet.CustomerID(chi.URLParam(r, "id"))
	updated, err := h.Service.UpdateCustomer(r.Context(), customer)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteCustomer removes an inactive customer.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.RemoveCustomer(r.Context(), fleet.CustomerID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCustomerCars returns the cars an active customer holds.
func (h *Handler) ListCustomerCars(w http.ResponseWriter, r *http.Request) {
	cars, err := h.Service.ListCarsForCustomer(r.Context(), fleet.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(cars))
}

// =============================================================================
// RENT ENDPOINTS
// =============================================================================

// ListRents returns all rents.
func (h *Handler) ListRents(w http.ResponseWriter, r *http.Request) {
	rents, err := h.Service.ListRents(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(rents))
}

// CreateRent stores a pre-built rent without requiring the car to be
// available.
func (h *Handler) CreateRent(w http.ResponseWriter, r *http.Request) {
	var rent fleet.Rent
	if !decode(w, r, &rent) {
		return
	}
	created, err := h.Service.AddRent(r.Context(), rent)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetRent returns one rent.
func (h *Handler) GetRent(w http.ResponseWriter, r *http.Request) {
	rent, err := h.Service.GetRent(r.Context(), fleet.RentID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rent)
}

// UpdateRent moves a rent to new dates.
func (h *Handler) UpdateRent(w http.ResponseWriter, r *http.Request) {
	var rent fleet.Rent
	if !decode(w, r, &rent) {
		return
	}
	rent.ID = fleet.RentID(chi.URLParam(r, "id"))
	updated, err := h.Service.UpdateRent(r.Context(), rent)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteRent cancels one rent and recomputes the flags.
func (h *Handler) DeleteRent(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.CancelRent(r.Context(), fleet.RentID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RentOut rents an available car to a customer.
func (h *Handler) RentOut(w http.ResponseWriter, r *http.Request) {
	var req RentOutRequest
	if !decode(w, r, &req) {
		return
	}
	rent, err := h.Service.RentOut(r.Context(), req.CarID, req.CustomerID, req.RentDate, req.DueDate)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rent)
}

// Return ends the rents of a car held by a customer.
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	var req ReturnRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Service.Return(r.Context(), req.CarID, req.CustomerID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SNAPSHOT ENDPOINTS
// =============================================================================

// GetSnapshot returns cars, customers and rents read in one transaction.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Snapshot(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	snap.Cars = orEmpty(snap.Cars)
	snap.Customers = orEmpty(snap.Customers)
	snap.Rents = orEmpty(snap.Rents)
	writeJSON(w, http.StatusOK, snap)
}

// PublishSnapshot publishes a snapshot immediately.
func (h *Handler) PublishSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.Snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "Snapshot publishing is disabled", nil)
		return
	}
	loc, err := h.Snapshots.RunNow(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("snapshot publish failed", "error", err)
		writeError(w, http.StatusBadGateway, "Failed to publish snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, PublishDTO{Location: loc, PublishedAt: time.Now().UTC()})
}

// Health reports that the process is serving.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error category to an HTTP status.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	category := fleet.Category(err)
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "category", category, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Category: string(category)})
}

func statusFor(err error) int {
	switch fleet.Category(err) {
	case fleet.CategoryInvalidArgument:
		return http.StatusBadRequest
	case fleet.CategoryConflict:
		return http.StatusConflict
	case fleet.CategoryNotFound:
		return http.StatusNotFound
	case fleet.CategoryTransactionFailed:
		if fleet.IsRetryable(err) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	default:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:    "Invalid request body",
			Category: string(fleet.CategoryInvalidArgument),
			Details:  err.Error(),
		})
		return false
	}
	return true
}

// orEmpty makes nil slices encode as [] rather than null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
