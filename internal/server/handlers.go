package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/lucasmontegu/driwet-sub001/internal/lib/geo"
	"github.com/lucasmontegu/driwet-sub001/internal/services"
	"github.com/lucasmontegu/driwet-sub001/internal/types"
)

// coordinatePayload is a lat/lng pair in request bodies.
type coordinatePayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// routeWeatherRequest is the POST /v1/route-weather body. Polyline is
// optional; without it the analysis samples the straight line between
// origin and destination.
type routeWeatherRequest struct {
	Origin        coordinatePayload `json:"origin"`
	Destination   coordinatePayload `json:"destination"`
	Polyline      string            `json:"polyline,omitempty"`
	IntervalKm    float64           `json:"interval_km,omitempty"`
	AlertRadiusKm float64           `json:"alert_radius_km,omitempty"`
}

func (s *Server) handleRouteWeather(w http.ResponseWriter, r *http.Request) {
	var req routeWeatherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, types.NewAppError(types.ErrCodeInvalidInput, "malformed request body", err))
		return
	}

	origin, err := geo.NewPoint(req.Origin.Lat, req.Origin.Lng)
	if err != nil {
		s.writeError(w, r, types.NewAppError(types.ErrCodeInvalidInput, "invalid origin coordinates", err))
		return
	}
	destination, err := geo.NewPoint(req.Destination.Lat, req.Destination.Lng)
	if err != nil {
		s.writeError(w, r, types.NewAppError(types.ErrCodeInvalidInput, "invalid destination coordinates", err))
		return
	}

	result, err := s.routes.AnalyzeRoute(r.Context(), services.RouteRequest{
		Origin:        origin,
		Destination:   destination,
		Polyline:      req.Polyline,
		IntervalKm:    req.IntervalKm,
		AlertRadiusKm: req.AlertRadiusKm,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSafePlaces(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lng, err := queryFloat(r, "lng")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	radiusKm := 0.0
	if raw := r.URL.Query().Get("radius_km"); raw != "" {
		radiusKm, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			s.writeError(w, r, types.NewAppError(types.ErrCodeInvalidInput, "radius_km must be a number", err))
			return
		}
	}

	typeFilter, err := parseTypeFilter(r.URL.Query().Get("types"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.places.FindNearby(r.Context(), lat, lng, radiusKm)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if typeFilter != nil {
		filtered := make([]types.SafePlace, 0, len(result.Places))
		for _, p := range result.Places {
			if typeFilter[p.Type] {
				filtered = append(filtered, p)
			}
		}
		result = &types.SafePlacesResult{
			Places:    filtered,
			Grouped:   types.GroupByType(filtered),
			Source:    result.Source,
			FetchedAt: result.FetchedAt,
		}
	}
	s.writeJSON(w, http.StatusOK, result)
}

// parseTypeFilter parses the comma-separated types query parameter into a
// set. Returns nil when the parameter is absent (no filtering).
func parseTypeFilter(raw string) (map[types.PlaceType]bool, error) {
	if raw == "" {
		return nil, nil
	}
	valid := map[types.PlaceType]bool{
		types.PlaceGasStation: true,
		types.PlaceRestArea:   true,
		types.PlaceTown:       true,
	}
	filter := make(map[types.PlaceType]bool)
	for _, part := range strings.Split(raw, ",") {
		t := types.PlaceType(strings.TrimSpace(part))
		if !valid[t] {
			return nil, types.NewAppError(types.ErrCodeInvalidInput,
				fmt.Sprintf("unknown place type %q", part), nil)
		}
		filter[t] = true
	}
	return filter, nil
}

// observationResponse wraps a single-point reading with its provenance.
type observationResponse struct {
	Observation types.WeatherObservation `json:"observation"`
	Source      string                   `json:"source"`
}

func (s *Server) handleObservation(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lng, err := queryFloat(r, "lng")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	obs, source, err := s.routes.Observation(r.Context(), lat, lng)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, observationResponse{Observation: obs, Source: source})
}

// healthResponse reports liveness and, when available, cache usage.
type healthResponse struct {
	Status string       `json:"status"`
	Cache  *cacheHealth `json:"cache,omitempty"`
}

type cacheHealth struct {
	TotalEntries int `json:"total_entries"`
	FreshEntries int `json:"fresh_entries"`
	StaleEntries int `json:"stale_entries"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.stats != nil {
		stats, err := s.stats.Stats(r.Context())
		if err == nil {
			resp.Cache = &cacheHealth{
				TotalEntries: stats.TotalEntries,
				FreshEntries: stats.FreshEntries,
				StaleEntries: stats.StaleEntries,
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// queryFloat parses a required float query parameter.
func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, types.NewAppError(types.ErrCodeInvalidInput, name+" query parameter is required", nil)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInvalidInput, name+" must be a number", err)
	}
	return v, nil
}
