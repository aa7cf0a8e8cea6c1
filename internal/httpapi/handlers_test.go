package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/query"
)

func TestParseListParams(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantOK     bool
		wantPeriod model.Period
		wantFilter model.ParkFilter
		wantLimit  int
	}{
		{
			name:       "defaults",
			url:        "/api/v1/parks/rankings",
			wantOK:     true,
			wantPeriod: model.PeriodLive,
			wantFilter: model.FilterAllParks,
		},
		{
			name:       "explicit values",
			url:        "/api/v1/parks/rankings?period=today&filter=disney-universal&limit=10",
			wantOK:     true,
			wantPeriod: model.PeriodToday,
			wantFilter: model.FilterDisneyUniversal,
			wantLimit:  10,
		},
		{name: "invalid period", url: "/x?period=last_year", wantOK: false},
		{name: "invalid filter", url: "/x?filter=six-flags", wantOK: false},
		{name: "non-numeric limit", url: "/x?limit=ten", wantOK: false},
		{name: "negative limit", url: "/x?limit=-5", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)

			period, filter, limit, ok := parseListParams(w, r)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Equal(t, http.StatusBadRequest, w.Code)

				var body map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Contains(t, body, "error")
				return
			}
			assert.Equal(t, tt.wantPeriod, period)
			assert.Equal(t, tt.wantFilter, filter)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestWriteQueryError(t *testing.T) {
	s := &Server{}

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"unknown entity", query.ErrNotFound, http.StatusNotFound},
		{"live period on a time-axis query", query.ErrLiveUnsupported, http.StatusBadRequest},
		{"wrapped not found", errors.Join(errors.New("ctx"), query.ErrNotFound), http.StatusNotFound},
		{"anything else", errors.New("db exploded"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.writeQueryError(w, tt.err, "chart")
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestHandleHealth(t *testing.T) {
	s := &Server{}
	w := httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleCreateImportRejectsBadBody(t *testing.T) {
	s := &Server{}

	for _, body := range []string{"", "{}", `{"destination_uuid": ""}`, "not json"} {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/imports", strings.NewReader(body))
		s.handleCreateImport(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}
}
