package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-rental/fleet"
)

type staticSource struct {
	snap fleet.Snapshot
	err  error
}

func (s staticSource) Snapshot(context.Context) (fleet.Snapshot, error) { return s.snap, s.err }

func sampleSnapshot() fleet.Snapshot {
	return fleet.Snapshot{
		Cars: []fleet.Car{
			{ID: "car-1", LicensePlate: "A-1", Available: false},
			{ID: "car-2", LicensePlate: "A-2", Available: true},
		},
		Customers: []fleet.Customer{{ID: "cust-1", DriversLicense: "DL-1", Active: true}},
		Rents: []fleet.Rent{{
			ID:         "rent-1",
			CarID:      "car-1",
			CustomerID: "cust-1",
			RentDate:   fleet.NewTimePoint(2025, time.March, 1),
			DueDate:    fleet.NewTimePoint(2025, time.March, 3),
		}},
	}
}

func TestNewDocument_Counts(t *testing.T) {
	doc := NewDocument(sampleSnapshot(), time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC))

	assert.Equal(t, Counts{Cars: 2, AvailableCars: 1, Customers: 1, ActiveCustomers: 1, Rents: 1}, doc.Counts)
}

func TestName(t *testing.T) {
	name := Name(time.Date(2025, 3, 2, 12, 30, 5, 0, time.UTC))
	assert.Equal(t, "fleet-20250302T123005.000Z.json", name)
}

func TestFilePublisher_Publish(t *testing.T) {
	dir := t.TempDir()
	pub := NewFilePublisher(filepath.Join(dir, "snaps"))
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

	loc, err := Publish(context.Background(), staticSource{snap: sampleSnapshot()}, pub, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "snaps", Name(now)), loc)

	raw, err := os.ReadFile(loc)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, 2, doc.Counts.Cars)
	require.Len(t, doc.Rents, 1)
	assert.Equal(t, "2025-03-03", doc.Rents[0].DueDate.String())

	entries, err := os.ReadDir(filepath.Join(dir, "snaps"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestPublish_SourceError(t *testing.T) {
	pub := NewFilePublisher(t.TempDir())
	_, err := Publish(context.Background(), staticSource{err: errors.New("db down")}, pub, time.Now())
	assert.ErrorContains(t, err, "take snapshot")
}

type fakePutter struct {
	mu   sync.Mutex
	keys []string
	body string
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.keys = append(f.keys, *in.Bucket+"/"+*in.Key)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Publisher_Publish(t *testing.T) {
	fake := &fakePutter{}
	pub := &S3Publisher{client: fake, bucket: "fleet", prefix: "snapshots"}

	loc, err := pub.Publish(context.Background(), "fleet-x.json", []byte(`{"ok":true}`))
	require.NoError(t, err)

	assert.Equal(t, "s3://fleet/snapshots/fleet-x.json", loc)
	assert.Equal(t, []string{"fleet/snapshots/fleet-x.json"}, fake.keys)
	assert.Equal(t, `{"ok":true}`, fake.body)
}

type countingObserver struct {
	mu       sync.Mutex
	ok, fail int
}

func (o *countingObserver) ObserveSnapshot(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.fail++
	} else {
		o.ok++
	}
}

func TestScheduler_RunNow(t *testing.T) {
	obs := &countingObserver{}
	s := NewScheduler(staticSource{snap: sampleSnapshot()}, NewFilePublisher(t.TempDir()), nil)
	s.Observer = obs

	loc, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(loc, ".json"))

	_, last, lastErr := s.Last()
	assert.Equal(t, loc, last)
	assert.NoError(t, lastErr)
	assert.Equal(t, 1, obs.ok)
}

func TestScheduler_StartStop(t *testing.T) {
	obs := &countingObserver{}
	s := NewScheduler(staticSource{snap: sampleSnapshot()}, NewFilePublisher(t.TempDir()), nil)
	s.Observer = obs
	s.Interval = time.Hour

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()

	// Start publishes once before waiting for the first tick.
	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 1, obs.ok)
}
