package query

import (
	"context"
	"fmt"
	"time"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

// Chart is a Chart.js-shaped payload. Data points are pointers: a bucket
// with no data is null in the JSON, never zero, so gaps render as gaps.
// Labels and the envelope fields are a published contract.
type Chart struct {
	Labels      []string  `json:"labels"`
	Datasets    []Dataset `json:"datasets"`
	ChartType   string    `json:"chart_type"`
	Granularity string    `json:"granularity"`
}

// Dataset is one Chart.js series, tagged with the entity it charts.
type Dataset struct {
	Label    string     `json:"label"`
	EntityID int64      `json:"entity_id"`
	ParkName string     `json:"park_name,omitempty"`
	Tier     *int       `json:"tier,omitempty"`
	Data     []*float64 `json:"data"`
}

// chartDay returns the Pacific day charted for TODAY or YESTERDAY.
func chartDay(period model.Period, now time.Time) (time.Time, error) {
	pacific := model.Pacific()
	local := now.In(pacific)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, pacific)

	switch period {
	case model.PeriodToday:
		return day, nil
	case model.PeriodYesterday:
		return day.AddDate(0, 0, -1), nil
	default:
		return time.Time{}, fmt.Errorf("period %s has no hourly window", period)
	}
}

// chartHours lays out the fixed hourly axis for one Pacific day: labels
// "6:00" through "23:00" and the matching UTC hour starts. Parks are
// shut before 6am, so the axis stays stable across requests.
func chartHours(day time.Time) ([]string, []time.Time) {
	labels := make([]string, 0, 18)
	hours := make([]time.Time, 0, 18)
	for h := 6; h <= 23; h++ {
		labels = append(labels, fmt.Sprintf("%d:00", h))
		hours = append(hours, time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, day.Location()).UTC())
	}
	return labels, hours
}

func hoursRange(hours []time.Time) persistence.TimeRange {
	return persistence.TimeRange{From: hours[0], To: hours[len(hours)-1].Add(time.Hour)}
}

// chartDays lays out the daily axis over a calendar window: labels like
// "Mar 04" and the matching stat-date keys.
func chartDays(window persistence.TimeRange) ([]string, []string) {
	var labels, keys []string
	for day := window.From.In(model.Pacific()); day.Before(window.To.In(model.Pacific())); day = day.AddDate(0, 0, 1) {
		labels = append(labels, day.Format("Jan 02"))
		keys = append(keys, day.Format("2006-01-02"))
	}
	return labels, keys
}

// ParkChart returns a park's shame-score and wait series for a period.
// TODAY and YESTERDAY chart hourly buckets; LAST_WEEK and LAST_MONTH
// chart daily buckets. LIVE has no time axis and is rejected.
func (s *Service) ParkChart(ctx context.Context, parkID int64, period model.Period) (*Chart, error) {
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

	key := fmt.Sprintf("chart:park:%d:%s", parkID, period)
	return cached(s, key, func() (*Chart, error) {
		switch period {
		case model.PeriodToday, model.PeriodYesterday:
			return s.parkHourlyChart(ctx, park, period)
		default:
			return s.parkDailyChart(ctx, park, period)
		}
	})
}

func (s *Service) parkHourlyChart(ctx context.Context, park *persistence.Park, period model.Period) (*Chart, error) {
	day, err := chartDay(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	labels, hours := chartHours(day)

	rows, err := s.repo.Stats.ListParkHourly(ctx, hoursRange(hours))
	if err != nil {
		return nil, fmt.Errorf("failed to list park hourly stats: %w", err)
	}

	byHour := make(map[time.Time]persistence.ParkHourlyStats)
	for _, r := range rows {
		if r.ParkID == park.ID {
			byHour[r.HourStartUTC.UTC()] = r
		}
	}

	chart := &Chart{
		Labels:      labels,
		ChartType:   "line",
		Granularity: "hourly",
		Datasets: []Dataset{
			{Label: "Shame score", EntityID: park.ID, ParkName: park.Name},
			{Label: "Avg wait (min)", EntityID: park.ID, ParkName: park.Name},
		},
	}
	for _, hour := range hours {
		if r, ok := byHour[hour]; ok {
			chart.Datasets[0].Data = append(chart.Datasets[0].Data, r.AvgShameScore)
			chart.Datasets[1].Data = append(chart.Datasets[1].Data, r.AvgWaitTime)
		} else {
			chart.Datasets[0].Data = append(chart.Datasets[0].Data, nil)
			chart.Datasets[1].Data = append(chart.Datasets[1].Data, nil)
		}
	}
	return chart, nil
}

func (s *Service) parkDailyChart(ctx context.Context, park *persistence.Park, period model.Period) (*Chart, error) {
	window, err := periodWindow(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	labels, keys := chartDays(window)

	rows, err := s.repo.Stats.ListParkDaily(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list park daily stats: %w", err)
	}

	byDate := make(map[string]persistence.ParkDailyStats)
	for _, r := range rows {
		if r.ParkID == park.ID {
			byDate[r.StatDate.Format("2006-01-02")] = r
		}
	}

	chart := &Chart{
		Labels:      labels,
		ChartType:   "line",
		Granularity: "daily",
		Datasets: []Dataset{
			{Label: "Shame score", EntityID: park.ID, ParkName: park.Name},
			{Label: "Downtime (hours)", EntityID: park.ID, ParkName: park.Name},
		},
	}
	for _, key := range keys {
		if r, ok := byDate[key]; ok {
			downtime := r.TotalDowntimeHours
			chart.Datasets[0].Data = append(chart.Datasets[0].Data, r.AvgShameScore)
			chart.Datasets[1].Data = append(chart.Datasets[1].Data, &downtime)
		} else {
			chart.Datasets[0].Data = append(chart.Datasets[0].Data, nil)
			chart.Datasets[1].Data = append(chart.Datasets[1].Data, nil)
		}
	}
	return chart, nil
}

// RideChart returns a ride's wait and downtime series for a period.
func (s *Service) RideChart(ctx context.Context, rideID int64, period model.Period) (*Chart, error) {
	if period == model.PeriodLive {
		return nil, ErrLiveUnsupported
	}

	ride, err := s.repo.Rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}
	if ride == nil {
		return nil, ErrNotFound
	}
	park, err := s.repo.Parks.GetByID(ctx, ride.ParkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get park: %w", err)
	}

	parkName := ""
	if park != nil {
		parkName = park.Name
	}

	key := fmt.Sprintf("chart:ride:%d:%s", rideID, period)
	return cached(s, key, func() (*Chart, error) {
		switch period {
		case model.PeriodToday, model.PeriodYesterday:
			return s.rideHourlyChart(ctx, ride, parkName, period)
		default:
			return s.rideDailyChart(ctx, ride, parkName, period)
		}
	})
}

func rideDatasets(ride *persistence.Ride, parkName string, labels [2]string) []Dataset {
	tier := ride.Tier
	return []Dataset{
		{Label: labels[0], EntityID: ride.ID, ParkName: parkName, Tier: &tier},
		{Label: labels[1], EntityID: ride.ID, ParkName: parkName, Tier: &tier},
	}
}

func (s *Service) rideHourlyChart(ctx context.Context, ride *persistence.Ride, parkName string, period model.Period) (*Chart, error) {
	day, err := chartDay(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	labels, hours := chartHours(day)

	rows, err := s.repo.Stats.ListRideHourly(ctx, hoursRange(hours))
	if err != nil {
		return nil, fmt.Errorf("failed to list ride hourly stats: %w", err)
	}

	byHour := make(map[time.Time]persistence.RideHourlyStats)
	for _, r := range rows {
		if r.RideID == ride.ID {
			byHour[r.HourStartUTC.UTC()] = r
		}
	}

	chart := &Chart{
		Labels:      labels,
		ChartType:   "line",
		Granularity: "hourly",
		Datasets:    rideDatasets(ride, parkName, [2]string{"Avg wait (min)", "Downtime (hours)"}),
	}
	for _, hour := range hours {
		if r, ok := byHour[hour]; ok {
			downtime := r.DowntimeHours
			chart.Datasets[0].Data = append(chart.Datasets[0].Data, r.AvgWaitTime)
			chart.Datasets[1].Data = append(chart.Datasets[1].Data, &downtime)
		} else {
			chart.Datasets[0].Data = append(chart.Datasets[0].Data, nil)
			chart.Datasets[1].Data = append(chart.Datasets[1].Data, nil)
		}
	}
	return chart, nil
}

func (s *Service) rideDailyChart(ctx context.Context, ride *persistence.Ride, parkName string, period model.Period) (*Chart, error) {
	window, err := periodWindow(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	labels, keys := chartDays(window)

	rows, err := s.repo.Stats.ListRideDaily(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list ride daily stats: %w", err)
	}

	byDate := make(map[string]persistence.RideDailyStats)
	for _, r := range rows {
		if r.RideID == ride.ID {
			byDate[r.StatDate.Format("2006-01-02")] = r
		}
	}

	chart := &Chart{
		Labels:      labels,
		ChartType:   "line",
		Granularity: "daily",
		Datasets:    rideDatasets(ride, parkName, [2]string{"Avg wait (min)", "Downtime (hours)"}),
	}
	for _, key := range keys {
		if r, ok := byDate[key]; ok {
			downtime := float64(r.DowntimeMinutes) / 60
			chart.Datasets[0].Data = append(chart.Datasets[0].Data, r.AvgWaitTime)
			chart.Datasets[1].Data = append(chart.Datasets[1].Data, &downtime)
		} else {
			chart.Datasets[0].Data = append(chart.Datasets[0].Data, nil)
			chart.Datasets[1].Data = append(chart.Datasets[1].Data, nil)
		}
	}
	return chart, nil
}
