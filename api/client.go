package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/warp/fleet-rental/fleet"
	"github.com/warp/fleet-rental/rental"
)

// Client talks to a rental server over HTTP. It implements rental.Backend,
// so a Workspace can commit against a remote server the same way it does
// against an in-process Service.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ rental.Backend = (*Client)(nil)

// NewClient creates a client for the server at baseURL, for example
// "http://localhost:8080". A nil httpClient gets a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// =============================================================================
// CARS
// =============================================================================

func (c *Client) AddCar(ctx context.Context, car fleet.Car) (fleet.Car, error) {
	var out fleet.Car
	err := c.do(ctx, http.MethodPost, "/api/cars", car, &out)
	return out, err
}

func (c *Client) UpdateCar(ctx context.Context, car fleet.Car) (fleet.Car, error) {
	var out fleet.Car
	err := c.do(ctx, http.MethodPut, "/api/cars/"+url.PathEscape(string(car.ID)), car, &out)
	return out, err
}

func (c *Client) RemoveCar(ctx context.Context, id fleet.CarID) error {
	return c.do(ctx, http.MethodDelete, "/api/cars/"+url.PathEscape(string(id)), nil, nil)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (c *Client) AddCustomer(ctx context.Context, customer fleet.Customer) (fleet.Customer, error) {
	var out fleet.Customer
	err := c.do(ctx, http.MethodPost, "/api/customers", customer, &out)
	return out, err
}

func (c *Client) UpdateCustomer(ctx context.Context, customer fleet.Customer) (fleet.Customer, error) {
	var out fleet.Customer
	err := c.do(ctx, http.MethodPut, "/api/customers/"+url.PathEscape(string(customer.ID)), customer, &out)
	return out, err
}

func (c *Client) RemoveCustomer(ctx context.Context, id fleet.CustomerID) error {
	return c.do(ctx, http.MethodDelete, "/api/customers/"+url.PathEscape(string(id)), nil, nil)
}

// =============================================================================
// RENTS
// =============================================================================

func (c *Client) AddRent(ctx context.Context, rent fleet.Rent) (fleet.Rent, error) {
	var out fleet.Rent
	err := c.do(ctx, http.MethodPost, "/api/rents", rent, &out)
	return out, err
}

func (c *Client) UpdateRent(ctx context.Context, rent fleet.Rent) (fleet.Rent, error) {
	var out fleet.Rent
	err := c.do(ctx, http.MethodPut, "/api/rents/"+url.PathEscape(string(rent.ID)), rent, &out)
	return out, err
}

func (c *Client) CancelRent(ctx context.Context, id fleet.RentID) error {
	return c.do(ctx, http.MethodDelete, "/api/rents/"+url.PathEscape(string(id)), nil, nil)
}

// RentOut rents an available car.
func (c *Client) RentOut(ctx context.Context, carID fleet.CarID, customerID fleet.CustomerID, rentDate, dueDate fleet.TimePoint) (fleet.Rent, error) {
	var out fleet.Rent
	req := RentOutRequest{CarID: carID, CustomerID: customerID, RentDate: rentDate, DueDate: dueDate}
	err := c.do(ctx, http.MethodPost, "/api/rentals", req, &out)
	return out, err
}

func (c *Client) Return(ctx context.Context, carID fleet.CarID, customerID fleet.CustomerID) error {
	return c.do(ctx, http.MethodPost, "/api/returns", ReturnRequest{CarID: carID, CustomerID: customerID}, nil)
}

func (c *Client) Snapshot(ctx context.Context) (fleet.Snapshot, error) {
	var out fleet.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/snapshot", nil, &out)
	return out, err
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do sends body as JSON and decodes a 2xx response into out. Error
// responses come back as errors of the category the server reported.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
		}
		return fleet.CategoryError(fleet.ErrorCategory(e.Category), e.Error)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
