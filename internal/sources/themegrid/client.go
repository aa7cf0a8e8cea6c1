// Package themegrid implements the entity-oriented feed keyed by UUIDs,
// with an explicit ride status vocabulary and a historical archive.
package themegrid

import (
	"context"
	"fmt"
	"time"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/sources"
)

const defaultBaseURL = "https://api.themeparks.wiki/v1"

// Client fetches destination catalogs and per-park live entity data.
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

func (c *Client) Name() string { return "themegrid" }

type destinationsDoc struct {
	Destinations []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Slug  string `json:"slug"`
		Parks []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"parks"`
	} `json:"destinations"`
}

type entityDoc struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
}

// ListParks flattens destinations into parks. The destination name
// stands in for the operating company; timezone and location come from a
// follow-up entity lookup per park.
func (c *Client) ListParks(ctx context.Context) ([]sources.ParkInfo, error) {
	var doc destinationsDoc
	if err := c.transport.GetJSON(ctx, c.baseURL+"/destinations", &doc); err != nil {
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}

	var parks []sources.ParkInfo
	for _, dest := range doc.Destinations {
		for _, p := range dest.Parks {
			info := sources.ParkInfo{
				ExternalID: p.ID,
				Name:       p.Name,
				Company:    dest.Name,
			}
			var entity entityDoc
			if err := c.transport.GetJSON(ctx, c.baseURL+"/entity/"+p.ID, &entity); err == nil {
				info.Timezone = entity.Timezone
				if entity.Location != nil {
					info.Latitude = entity.Location.Latitude
					info.Longitude = entity.Location.Longitude
				}
			}
			parks = append(parks, info)
		}
	}

	return parks, nil
}

type liveDoc struct {
	LiveData []liveEntity `json:"liveData"`
}

type liveEntity struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	EntityType  string     `json:"entityType"`
	Status      string     `json:"status"`
	LastUpdated *time.Time `json:"lastUpdated"`
	Queue       *struct {
		Standby *struct {
			WaitTime *int `json:"waitTime"`
		} `json:"STANDBY"`
	} `json:"queue"`
}

// FetchPark returns the park's attractions with their explicit statuses.
// Non-attraction entities (shows, restaurants) are skipped.
func (c *Client) FetchPark(ctx context.Context, parkExternalID string) (*sources.ParkReading, error) {
	url := fmt.Sprintf("%s/entity/%s/live", c.baseURL, parkExternalID)

	var doc liveDoc
	if err := c.transport.GetJSON(ctx, url, &doc); err != nil {
		return nil, fmt.Errorf("failed to fetch live data for %s: %w", parkExternalID, err)
	}

	reading := &sources.ParkReading{
		ParkExternalID: parkExternalID,
		FetchedAt:      time.Now().UTC(),
	}

	for _, entity := range doc.LiveData {
		if entity.EntityType == "PARK" {
			// The park publishes its own operating state.
			open := entity.Status == "OPERATING"
			reading.OpenHint = &open
			continue
		}
		if entity.EntityType != "ATTRACTION" {
			continue
		}
		rr := sources.RideReading{
			ExternalID:  entity.ID,
			Name:        entity.Name,
			LastUpdated: entity.LastUpdated,
		}
		if status, err := model.ParseRideStatus(entity.Status); err == nil {
			rr.Status = &status
			open := status == model.StatusOperating
			rr.IsOpen = &open
		}
		if entity.Queue != nil && entity.Queue.Standby != nil {
			rr.WaitMinutes = entity.Queue.Standby.WaitTime
		}
		reading.Rides = append(reading.Rides, rr)
	}

	return reading, nil
}
