/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that reset the store, load a small fleet
  through the factory and then run a scripted sequence of operations
  against the rental service. Each step records the error category it
  expected and the one it got, so a scenario doubles as a smoke test of
  a running server.

AVAILABLE SCENARIOS:
  rent-out:            Rent an available car to a customer
  overlap-conflict:    A second rent-out over the same days is refused
  future-reservation:  A reservation right after an existing rent succeeds
  return:              Returning the car frees it and the customer
  reversed-dates:      A rent ending before it starts changes nothing
  fleet-demo:          Several cars and customers with mixed rents

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Load the base fleet via factory
 3. Run each step and compare its error category with the expected one
 4. Return the steps with a snapshot of the final state

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "overlap-conflict"}

NOTE:
  Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler context
  - factory/fleet.go: Seed documents
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/fleet-rental/fleet"
	"github.com/warp/fleet-rental/logging"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "rent-out",
		Name:        "Rent Out",
		Description: "Rent car 0B6 6835 to customer AK 373979 from 2012-03-21 to 2012-03-31",
	},
	{
		ID:          "overlap-conflict",
		Name:        "Overlap Conflict",
		Description: "A second customer asks for the same car from 2012-03-25 and is refused",
	},
	{
		ID:          "future-reservation",
		Name:        "Future Reservation",
		Description: "A reservation from 2012-04-01 to 2012-04-05 fits right after the first rent",
	},
	{
		ID:          "return",
		Name:        "Return",
		Description: "The car comes back and both the car and the customer are free again",
	},
	{
		ID:          "reversed-dates",
		Name:        "Reversed Dates",
		Description: "A rent whose due date is before its rent date is rejected without writes",
	},
	{
		ID:          "fleet-demo",
		Name:        "Fleet Demo",
		Description: "Three cars, four customers, rents and a reservation to browse",
	},
}

// Fixed IDs so scenario steps and tests can address records directly.
const (
	scenarioCar       fleet.CarID      = "car-0b6-6835"
	scenarioCustomer  fleet.CustomerID = "cust-ak-373979"
	scenarioCustomer2 fleet.CustomerID = "cust-bm-120455"
	scenarioCustomer3 fleet.CustomerID = "cust-cx-908812"
)

const baseFleetYAML = `
cars:
  - id: car-0b6-6835
    model: Volvo V70
    color: Silver
    license_plate: 0B6 6835
    price: "200.0"
customers:
  - id: cust-ak-373979
    first_name: Anna
    last_name: Karlsson
    address: Storgatan 1, Uppsala
    phone: "018-123456"
    drivers_license: AK 373979
  - id: cust-bm-120455
    first_name: Bo
    last_name: Magnusson
    address: Kungsgatan 12, Uppsala
    phone: "018-654321"
    drivers_license: BM 120455
  - id: cust-cx-908812
    first_name: Carl
    last_name: Xander
    address: Drottninggatan 3, Uppsala
    phone: "018-908812"
    drivers_license: CX 908812
`

const demoFleetYAML = `
cars:
  - id: car-0b6-6835
    model: Volvo V70
    color: Silver
    license_plate: 0B6 6835
    price: "200.0"
  - id: car-kfz-4411
    model: Saab 9-3
    color: Black
    license_plate: KFZ 4411
    price: "180.0"
  - id: car-mnp-0072
    model: Volkswagen Golf
    color: Blue
    license_plate: MNP 0072
    price: "150.0"
customers:
  - id: cust-ak-373979
    first_name: Anna
    last_name: Karlsson
    address: Storgatan 1, Uppsala
    phone: "018-123456"
    drivers_license: AK 373979
  - id: cust-bm-120455
    first_name: Bo
    last_name: Magnusson
    address: Kungsgatan 12, Uppsala
    phone: "018-654321"
    drivers_license: BM 120455
  - id: cust-cx-908812
    first_name: Carl
    last_name: Xander
    address: Drottninggatan 3, Uppsala
    phone: "018-908812"
    drivers_license: CX 908812
  - id: cust-dl-554210
    first_name: Dana
    last_name: Lind
    address: Svartbäcksgatan 8, Uppsala
    phone: "018-554210"
    drivers_license: DL 554210
rents:
  - car: 0B6 6835
    customer: AK 373979
    rent_date: 2012-03-21
    due_date: 2012-03-31
  - car: 0B6 6835
    customer: CX 908812
    rent_date: 2012-04-01
    due_date: 2012-04-05
  - car: KFZ 4411
    customer: BM 120455
    rent_date: 2012-03-10
    due_date: 2012-03-17
`

// step is one scripted operation and the error category it should end in.
type step struct {
	description string
	expected    fleet.ErrorCategory
	run         func(ctx context.Context, h *Handler) error
}

type scenario struct {
	seed  string
	steps []step
}

func day(month, d int) fleet.TimePoint {
	return fleet.NewTimePoint(2012, time.Month(month), d)
}

func rentOutStep() step {
	return step{
		description: "rent out 0B6 6835 to AK 373979 for 2012-03-21..2012-03-31",
		run: func(ctx context.Context, h *Handler) error {
			_, err := h.Service.RentOut(ctx, scenarioCar, scenarioCustomer, day(3, 21), day(3, 31))
			return err
		},
	}
}

func expectFlags(description string, carAvailable, customerActive bool) step {
	return step{
		description: description,
		run: func(ctx context.Context, h *Handler) error {
			car, err := h.Service.FindCar(ctx, scenarioCar)
			if err != nil {
				return err
			}
			customer, err := h.Service.FindCustomer(ctx, scenarioCustomer)
			if err != nil {
				return err
			}
			if car.Available != carAvailable || customer.Active != customerActive {
				return fmt.Errorf("car available=%t customer active=%t, want %t and %t",
					car.Available, customer.Active, carAvailable, customerActive)
			}
			return nil
		},
	}
}

func scenarioByID(id string) (scenario, bool) {
	switch id {
	case "rent-out":
		return scenario{seed: baseFleetYAML, steps: []step{
			rentOutStep(),
			expectFlags("car is unavailable and customer is active", false, true),
		}}, true

	case "overlap-conflict":
		return scenario{seed: baseFleetYAML, steps: []step{
			rentOutStep(),
			{
				description: "rent out 0B6 6835 to BM 120455 for 2012-03-25..2012-04-02",
				expected:    fleet.CategoryConflict,
				run: func(ctx context.Context, h *Handler) error {
					_, err := h.Service.RentOut(ctx, scenarioCar, scenarioCustomer2, day(3, 25), day(4, 2))
					return err
				},
			},
		}}, true

	case "future-reservation":
		return scenario{seed: baseFleetYAML, steps: []step{
			rentOutStep(),
			{
				description: "reserve 0B6 6835 for CX 908812 for 2012-04-01..2012-04-05",
				run: func(ctx context.Context, h *Handler) error {
					_, err := h.Service.AddRent(ctx, fleet.Rent{
						CarID:      scenarioCar,
						CustomerID: scenarioCustomer3,
						RentDate:   day(4, 1),
						DueDate:    day(4, 5),
					})
					return err
				},
			},
			{
				description: "car holds two rents",
				run: func(ctx context.Context, h *Handler) error {
					rents, err := h.Service.ListRentsForCar(ctx, scenarioCar)
					if err != nil {
						return err
					}
					if len(rents) != 2 {
						return fmt.Errorf("car has %d rents, want 2", len(rents))
					}
					return nil
				},
			},
		}}, true

	case "return":
		return scenario{seed: baseFleetYAML, steps: []step{
			rentOutStep(),
			{
				description: "return 0B6 6835 from AK 373979",
				run: func(ctx context.Context, h *Handler) error {
					return h.Service.Return(ctx, scenarioCar, scenarioCustomer)
				},
			},
			expectFlags("car is available and customer is inactive", true, false),
		}}, true

	case "reversed-dates":
		return scenario{seed: baseFleetYAML, steps: []step{
			{
				description: "add rent for 0B6 6835 from 2012-03-31 to 2012-03-21",
				expected:    fleet.CategoryInvalidArgument,
				run: func(ctx context.Context, h *Handler) error {
					_, err := h.Service.AddRent(ctx, fleet.Rent{
						CarID:      scenarioCar,
						CustomerID: scenarioCustomer,
						RentDate:   day(3, 31),
						DueDate:    day(3, 21),
					})
					return err
				},
			},
			expectFlags("nothing was written", true, false),
		}}, true

	case "fleet-demo":
		return scenario{seed: demoFleetYAML}, true
	}
	return scenario{}, false
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and runs a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	sc, ok := scenarioByID(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	run, err := h.runScenario(r.Context(), req.ScenarioID, sc)
	if err != nil {
		logging.FromContext(r.Context()).Error("scenario failed", "scenario", req.ScenarioID, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO RUNNER
// =============================================================================

type resetter interface {
	Reset(ctx context.Context) error
}

var errResetUnsupported = errors.New("store does not support reset")

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Service.Store().(resetter)
	if !ok {
		return errResetUnsupported
	}
	return rs.Reset(ctx)
}

// runScenario holds h.mu for the whole run so two loads never interleave.
func (h *Handler) runScenario(ctx context.Context, id string, sc scenario) (ScenarioRunDTO, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.reset(ctx); err != nil {
		return ScenarioRunDTO{}, err
	}
	h.currentScenario = ""

	doc, err := h.Factory.Parse([]byte(sc.seed))
	if err != nil {
		return ScenarioRunDTO{}, err
	}
	if _, err := h.Factory.Load(ctx, h.Service, doc); err != nil {
		return ScenarioRunDTO{}, fmt.Errorf("seed: %w", err)
	}

	run := ScenarioRunDTO{Scenario: id, Steps: []StepDTO{}, Passed: true}
	for _, st := range sc.steps {
		err := st.run(ctx, h)
		res := StepDTO{
			Description: st.description,
			Expected:    st.expected,
			Got:         fleet.Category(err),
		}
		if err != nil {
			res.Error = err.Error()
		}
		res.Passed = res.Got == st.expected
		run.Passed = run.Passed && res.Passed
		run.Steps = append(run.Steps, res)
	}

	snap, err := h.Service.Snapshot(ctx)
	if err != nil {
		return ScenarioRunDTO{}, err
	}
	snap.Cars = orEmpty(snap.Cars)
	snap.Customers = orEmpty(snap.Customers)
	snap.Rents = orEmpty(snap.Rents)
	run.State = snap

	h.currentScenario = id
	return run, nil
}
