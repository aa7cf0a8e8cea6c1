package sources

import (
	"context"
	"time"

	"github.com/parkpulse/parkpulse/internal/model"
)

// ParkInfo is one park as advertised by an upstream catalog.
type ParkInfo struct {
	ExternalID string
	Name       string
	Company    string
	Country    string
	Continent  string
	Timezone   string
	Latitude   float64
	Longitude  float64
}

// RideReading is one ride's state inside a park snapshot. Status is nil
// when the upstream reports no explicit status; WaitMinutes is nil when
// no wait time is posted.
type RideReading struct {
	ExternalID  string
	Name        string
	Land        string
	IsOpen      *bool
	Status      *model.RideStatus
	WaitMinutes *int
	LastUpdated *time.Time
}

// ParkReading is the raw state of one park fetched from an upstream,
// before entity resolution.
type ParkReading struct {
	ParkExternalID string
	FetchedAt      time.Time
	Rides          []RideReading

	// OpenHint is set when the upstream publishes the park's own
	// operating state alongside its rides; nil when it does not.
	OpenHint *bool
}

// Client is a live upstream data source.
type Client interface {
	// Name identifies the source in logs and quality records.
	Name() string

	// ListParks returns the source's park catalog.
	ListParks(ctx context.Context) ([]ParkInfo, error)

	// FetchPark returns the current state of one park.
	FetchPark(ctx context.Context, parkExternalID string) (*ParkReading, error)
}
