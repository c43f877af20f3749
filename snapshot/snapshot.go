/*
Package snapshot exports the authoritative fleet state as JSON documents.

PURPOSE:
  A snapshot is the content of cars, customers and rents read in one
  transaction. Publishing one gives offline clients and auditors a
  consistent copy without touching the live store.

PUBLISHERS:
  FilePublisher: writes into a local directory (atomic rename)
  S3Publisher:   uploads to an S3-compatible bucket (AWS S3, MinIO)

USAGE:
  pub := snapshot.NewFilePublisher("./snapshots")
  loc, err := snapshot.Publish(ctx, svc, pub, time.Now())

SEE ALSO:
  - scheduler.go: Periodic publication
  - rental/service.go: Service.Snapshot, the usual Source
*/
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/fleet-rental/fleet"
)

// Source produces consistent snapshots.
type Source interface {
	Snapshot(ctx context.Context) (fleet.Snapshot, error)
}

// Publisher stores an encoded snapshot under name and returns where it went.
type Publisher interface {
	Publish(ctx context.Context, name string, body []byte) (string, error)
}

// Document is the published form of a snapshot.
type Document struct {
	TakenAt   time.Time        `json:"taken_at"`
	Counts    Counts           `json:"counts"`
	Cars      []fleet.Car      `json:"cars"`
	Customers []fleet.Customer `json:"customers"`
	Rents     []fleet.Rent     `json:"rents"`
}

type Counts struct {
	Cars            int `json:"cars"`
	AvailableCars   int `json:"available_cars"`
	Customers       int `json:"customers"`
	ActiveCustomers int `json:"active_customers"`
	Rents           int `json:"rents"`
}

// NewDocument wraps snap with its summary counts.
func NewDocument(snap fleet.Snapshot, takenAt time.Time) Document {
	doc := Document{
		TakenAt:   takenAt.UTC(),
		Cars:      snap.Cars,
		Customers: snap.Customers,
		Rents:     snap.Rents,
	}
	doc.Counts.Cars = len(snap.Cars)
	for _, c := range snap.Cars {
		if c.Available {
			doc.Counts.AvailableCars++
		}
	}
	doc.Counts.Customers = len(snap.Customers)
	for _, c := range snap.Customers {
		if c.Active {
			doc.Counts.ActiveCustomers++
		}
	}
	doc.Counts.Rents = len(snap.Rents)
	return doc
}

// Name returns the object name for a snapshot taken at t.
func Name(t time.Time) string {
	return "fleet-" + t.UTC().Format("20060102T150405.000Z") + ".json"
}

// Publish reads one snapshot from src and hands it to pub.
func Publish(ctx context.Context, src Source, pub Publisher, now time.Time) (string, error) {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("take snapshot: %w", err)
	}
	body, err := json.MarshalIndent(NewDocument(snap, now), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	loc, err := pub.Publish(ctx, Name(now), body)
	if err != nil {
		return "", fmt.Errorf("publish snapshot: %w", err)
	}
	return loc, nil
}
