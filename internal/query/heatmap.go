package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// Heatmap is a ride-by-bucket downtime matrix for one park. Matrix cells
// are downtime hours; a nil cell means no data for that bucket, never 0.
// The field names are a published contract.
type Heatmap struct {
	Success     bool            `json:"success"`
	Period      model.Period    `json:"period"`
	Granularity string          `json:"granularity"`
	Metric      string          `json:"metric"`
	MetricUnit  string          `json:"metric_unit"`
	Timezone    string          `json:"timezone"`
	Title       string          `json:"title"`
	Entities    []HeatmapEntity `json:"entities"`
	TimeLabels  []string        `json:"time_labels"`
	Matrix      [][]*float64    `json:"matrix"`
}

// HeatmapEntity is one matrix row's identity, ranked worst-first by total
// downtime over the period.
type HeatmapEntity struct {
	EntityID   int64   `json:"entity_id"`
	EntityName string  `json:"entity_name"`
	Rank       int     `json:"rank"`
	TotalValue float64 `json:"total_value"`
	Tier       int     `json:"tier"`
}

// ParkHeatmap builds the downtime heatmap for a park. LIVE is a single
// instant and cannot fill a matrix, so it is rejected.
func (s *Service) ParkHeatmap(ctx context.Context, parkID int64, period model.Period) (*Heatmap, error) {
	if period == model.PeriodLive {
		return nil, ErrLiveUnsupported
	}

	park, err := s.repo.Parks.GetByID(ctx, parkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get park: %w", err)
	}
	if park == nil {
		return nil, ErrNotFound
	}

	key := fmt.Sprintf("heatmap:%d:%s", parkID, period)
	return cached(s, key, func() (*Heatmap, error) {
		rides, err := s.repo.Rides.ListByPark(ctx, parkID)
		if err != nil {
			return nil, fmt.Errorf("failed to list rides: %w", err)
		}

		switch period {
		case model.PeriodToday, model.PeriodYesterday:
			return s.hourlyHeatmap(ctx, park, period, rides)
		default:
			return s.dailyHeatmap(ctx, park, period, rides)
		}
	})
}

func (s *Service) hourlyHeatmap(ctx context.Context, park *persistence.Park, period model.Period, rides []persistence.Ride) (*Heatmap, error) {
	day, err := chartDay(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	labels, hours := chartHours(day)

	stats, err := s.repo.Stats.ListRideHourly(ctx, hoursRange(hours))
	if err != nil {
		return nil, fmt.Errorf("failed to list ride hourly stats: %w", err)
	}

	type cellKey struct {
		rideID int64
		hour   time.Time
	}
	cells := make(map[cellKey]float64)
	for _, r := range stats {
		if r.ParkID == park.ID {
			cells[cellKey{r.RideID, r.HourStartUTC.UTC()}] = r.DowntimeHours
		}
	}

	hm := newHeatmap(park, period, "hourly")
	hm.TimeLabels = labels

	fillHeatmap(hm, rides, len(hours), func(rideID int64, col int) (float64, bool) {
		v, ok := cells[cellKey{rideID, hours[col]}]
		return v, ok
	})
	return hm, nil
}

func (s *Service) dailyHeatmap(ctx context.Context, park *persistence.Park, period model.Period, rides []persistence.Ride) (*Heatmap, error) {
	window, err := periodWindow(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	stats, err := s.repo.Stats.ListRideDaily(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list ride daily stats: %w", err)
	}

	type cellKey struct {
		rideID int64
		date   string
	}
	cells := make(map[cellKey]float64)
	for _, r := range stats {
		if r.ParkID == park.ID {
			cells[cellKey{r.RideID, r.StatDate.Format("2006-01-02")}] = float64(r.DowntimeMinutes) / 60
		}
	}

	hm := newHeatmap(park, period, "daily")
	labels, dates := chartDays(window)
	hm.TimeLabels = labels

	fillHeatmap(hm, rides, len(dates), func(rideID int64, col int) (float64, bool) {
		v, ok := cells[cellKey{rideID, dates[col]}]
		return v, ok
	})
	return hm, nil
}

func newHeatmap(park *persistence.Park, period model.Period, granularity string) *Heatmap {
	return &Heatmap{
		Success:     true,
		Period:      period,
		Granularity: granularity,
		Metric:      "downtime",
		MetricUnit:  "hours",
		Timezone:    park.Timezone,
		Title:       park.Name + " ride downtime",
	}
}

// fillHeatmap builds one matrix row per ride, ordered worst-first by total
// downtime, and assigns ranks. Missing cells stay nil.
func fillHeatmap(hm *Heatmap, rides []persistence.Ride, cols int, cell func(rideID int64, col int) (float64, bool)) {
	type rowAgg struct {
		ride  persistence.Ride
		cells []*float64
		total float64
	}

	rows := make([]rowAgg, 0, len(rides))
	for _, ride := range rides {
		row := rowAgg{ride: ride, cells: make([]*float64, cols)}
		for c := 0; c < cols; c++ {
			if v, ok := cell(ride.ID, c); ok {
				d := v
				row.cells[c] = &d
				row.total += v
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].total != rows[j].total {
			return rows[i].total > rows[j].total
		}
		return rows[i].ride.Name < rows[j].ride.Name
	})

	for i, row := range rows {
		hm.Entities = append(hm.Entities, HeatmapEntity{
			EntityID:   row.ride.ID,
			EntityName: row.ride.Name,
			Rank:       i + 1,
			TotalValue: row.total,
			Tier:       row.ride.Tier,
		})
		hm.Matrix = append(hm.Matrix, row.cells)
	}
}
