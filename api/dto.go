/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication that are not plain
  fleet records. Cars, customers and rents travel as fleet.Car,
  fleet.Customer and fleet.Rent, whose JSON tags are the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Rentals:   RentOutRequest, ReturnRequest
  Snapshots: PublishDTO
  Scenarios: ScenarioDTO, LoadScenarioRequest, ScenarioRunDTO, StepDTO
  Errors:    ErrorResponse

VALIDATION:
  Validation is done by the rental service, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - client.go: Sends and decodes the same types
*/
package api

import (
	"time"

	"github.com/warp/fleet-rental/fleet"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RentOutRequest rents an available car.
type RentOutRequest struct {
	CarID      fleet.CarID      `json:"car_id"`
	CustomerID fleet.CustomerID `json:"customer_id"`
	RentDate   fleet.TimePoint  `json:"rent_date"`
	DueDate    fleet.TimePoint  `json:"due_date"`
}

// ReturnRequest ends the rents of a car held by a customer.
type ReturnRequest struct {
	CarID      fleet.CarID      `json:"car_id"`
	CustomerID fleet.CustomerID `json:"customer_id"`
}

// PublishDTO reports where a snapshot was published.
type PublishDTO struct {
	Location    string    `json:"location"`
	PublishedAt time.Time `json:"published_at"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// StepDTO is one operation a scenario performed.
type StepDTO struct {
	Description string              `json:"description"`
	Expected    fleet.ErrorCategory `json:"expected,omitempty"`
	Got         fleet.ErrorCategory `json:"got,omitempty"`
	Error       string              `json:"error,omitempty"`
	Passed      bool                `json:"passed"`
}

// ScenarioRunDTO is the outcome of loading a scenario.
type ScenarioRunDTO struct {
	Scenario string         `json:"scenario"`
	Steps    []StepDTO      `json:"steps"`
	Passed   bool           `json:"passed"`
	State    fleet.Snapshot `json:"state"`
}

// ErrorResponse is the standard error response. Category carries the
// fleet error category so clients can rebuild a typed error.
type ErrorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
	Details  any    `json:"details,omitempty"`
}
