// Package queuepark implements the wait-time feed that groups parks by
// operating company and reports per-ride open flags and posted waits.
package queuepark

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/parkpulse/parkpulse/internal/sources"
)

const defaultBaseURL = "https://queue-times.com/en-US/api"

// Client fetches the company-grouped park catalog and per-park queue
// feeds.
type Client struct {
	baseURL   string
	transport *sources.Transport
}

// New creates a client. An empty baseURL selects the public endpoint.
func New(baseURL string, transport *sources.Transport) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{baseURL: baseURL, transport: transport}
}

func (c *Client) Name() string { return "queuepark" }

// companyDoc is the catalog wire format: companies each carrying their
// parks.
type companyDoc struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Parks []struct {
		ID        int64   `json:"id"`
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Continent string  `json:"continent"`
		Timezone  string  `json:"timezone"`
		Latitude  float64 `json:"latitude,string"`
		Longitude float64 `json:"longitude,string"`
	} `json:"parks"`
}

// ListParks flattens the company-grouped catalog into parks, carrying
// the company name onto each park.
func (c *Client) ListParks(ctx context.Context) ([]sources.ParkInfo, error) {
	var companies []companyDoc
	if err := c.transport.GetJSON(ctx, c.baseURL+"/parks.json", &companies); err != nil {
		return nil, fmt.Errorf("failed to list parks: %w", err)
	}

	var parks []sources.ParkInfo
	for _, company := range companies {
		for _, p := range company.Parks {
			parks = append(parks, sources.ParkInfo{
				ExternalID: strconv.FormatInt(p.ID, 10),
				Name:       p.Name,
				Company:    company.Name,
				Country:    p.Country,
				Continent:  p.Continent,
				Timezone:   p.Timezone,
				Latitude:   p.Latitude,
				Longitude:  p.Longitude,
			})
		}
	}

	return parks, nil
}

// queueDoc is the per-park feed: rides appear inside lands and sometimes
// in a top-level list for parks without land grouping.
type queueDoc struct {
	Lands []struct {
		Name  string    `json:"name"`
		Rides []rideDoc `json:"rides"`
	} `json:"lands"`
	Rides []rideDoc `json:"rides"`
}

type rideDoc struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	IsOpen      bool       `json:"is_open"`
	WaitTime    int        `json:"wait_time"`
	LastUpdated *time.Time `json:"last_updated"`
}

// FetchPark returns the park's current ride states. This source has no
// explicit status vocabulary, only the open flag and a posted wait.
func (c *Client) FetchPark(ctx context.Context, parkExternalID string) (*sources.ParkReading, error) {
	url := fmt.Sprintf("%s/parks/%s/queue_times.json", c.baseURL, parkExternalID)

	var doc queueDoc
	if err := c.transport.GetJSON(ctx, url, &doc); err != nil {
		return nil, fmt.Errorf("failed to fetch park %s: %w", parkExternalID, err)
	}

	reading := &sources.ParkReading{
		ParkExternalID: parkExternalID,
		FetchedAt:      time.Now().UTC(),
	}

	for _, land := range doc.Lands {
		for _, ride := range land.Rides {
			reading.Rides = append(reading.Rides, convertRide(ride, land.Name))
		}
	}
	for _, ride := range doc.Rides {
		reading.Rides = append(reading.Rides, convertRide(ride, ""))
	}

	return reading, nil
}

func convertRide(d rideDoc, land string) sources.RideReading {
	isOpen := d.IsOpen
	wait := d.WaitTime
	return sources.RideReading{
		ExternalID:  strconv.FormatInt(d.ID, 10),
		Name:        d.Name,
		Land:        land,
		IsOpen:      &isOpen,
		WaitMinutes: &wait,
		LastUpdated: d.LastUpdated,
	}
}
