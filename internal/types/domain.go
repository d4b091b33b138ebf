// Package types holds the value objects shared across the route weather
// core: observations, hazard alerts, route results, safe places, and the
// application error taxonomy. Everything here is a plain JSON-serializable
// value; once produced, instances are treated as read-only and any update
// creates a new object.
package types

import "time"

// RoadRisk is the ordinal driving-hazard level derived from weather
// conditions. The ordering low < moderate < high < extreme is total;
// reducers combine levels by taking the maximum priority, never an
// average, so severity cannot cancel out.
type RoadRisk string

const (
	RiskLow      RoadRisk = "low"
	RiskModerate RoadRisk = "moderate"
	RiskHigh     RoadRisk = "high"
	RiskExtreme  RoadRisk = "extreme"
)

// riskPriority assigns each level its position in the total order.
var riskPriority = map[RoadRisk]int{
	RiskLow:      0,
	RiskModerate: 1,
	RiskHigh:     2,
	RiskExtreme:  3,
}

// Priority returns the numeric position of the risk in the total order
// (0..3). Unknown values rank as low so a malformed level can never
// escalate an aggregate.
func (r RoadRisk) Priority() int {
	if p, ok := riskPriority[r]; ok {
		return p
	}
	return 0
}

// MaxRisk returns the more severe of two risk levels.
func MaxRisk(a, b RoadRisk) RoadRisk {
	if b.Priority() > a.Priority() {
		return b
	}
	return a
}

// AlertSeverity is the severity scale used by hazard alert feeds.
type AlertSeverity string

const (
	SeverityExtreme  AlertSeverity = "extreme"
	SeveritySevere   AlertSeverity = "severe"
	SeverityModerate AlertSeverity = "moderate"
	SeverityMinor    AlertSeverity = "minor"
)

// Risk maps an alert severity onto the RoadRisk ordinal scale so alerts
// and segment classifications reduce together. Unknown severities map to
// low rather than guessing upward.
func (s AlertSeverity) Risk() RoadRisk {
	switch s {
	case SeverityExtreme:
		return RiskExtreme
	case SeveritySevere:
		return RiskHigh
	case SeverityModerate:
		return RiskModerate
	case SeverityMinor:
		return RiskLow
	default:
		return RiskLow
	}
}

// PrecipType is the kind of precipitation reported by an observation.
type PrecipType string

const (
	PrecipNone PrecipType = "none"
	PrecipRain PrecipType = "rain"
	PrecipSnow PrecipType = "snow"
	PrecipHail PrecipType = "hail"
)

// Data source tiers, reported as provenance so callers can tell a cached
// answer from a live one and a synthetic fallback from both.
const (
	SourceCache     = "cache"
	SourceLive      = "live"
	SourceSynthetic = "synthetic"
)

// WeatherObservation is a point-in-time reading for a location. Optional
// fields are pointers: nil means the provider did not report the field,
// which the classifier treats as the most benign value rather than
// escalating on missing data.
type WeatherObservation struct {
	Latitude        float64    `json:"latitude"`
	Longitude       float64    `json:"longitude"`
	TemperatureC    float64    `json:"temperature_c"`
	HumidityPercent float64    `json:"humidity_percent"`
	WindSpeedMs     float64    `json:"wind_speed_ms"`
	WindGustMs      *float64   `json:"wind_gust_ms,omitempty"`
	VisibilityM     *float64   `json:"visibility_m,omitempty"`
	PrecipIntensity float64    `json:"precip_intensity_mmh"`
	PrecipType      PrecipType `json:"precip_type"`
	WeatherCode     int        `json:"weather_code"`
	UVIndex         *float64   `json:"uv_index,omitempty"`
	CloudCoverPct   *float64   `json:"cloud_cover_pct,omitempty"`
	RoadRisk        RoadRisk   `json:"road_risk"`
	Provider        string     `json:"provider"`
	FetchedAt       time.Time  `json:"fetched_at"`
}

// GeoJSONPolygon is the optional geometry attached to a hazard alert.
// Coordinates follow GeoJSON ordering: rings of [lng, lat] pairs.
type GeoJSONPolygon struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// HazardAlert is an active hazard advisory from the alerts feed.
// Alerts are deduplicated by ID when merged across sample points.
type HazardAlert struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Severity  AlertSeverity   `json:"severity"`
	Headline  string          `json:"headline"`
	Polygon   *GeoJSONPolygon `json:"polygon,omitempty"`
	StartsAt  time.Time       `json:"starts_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// RouteSegment is one sampled point along a route with its observation.
// Segments are ordered by cumulative distance from the route origin.
type RouteSegment struct {
	DistanceKm float64            `json:"distance_km"`
	Latitude   float64            `json:"latitude"`
	Longitude  float64            `json:"longitude"`
	Weather    WeatherObservation `json:"weather"`
	Source     string             `json:"source"`
}

// RouteWeatherResult is the aggregated answer for one route analysis.
// OverallRisk is always the maximum of every segment risk and every
// merged alert severity mapped onto the RoadRisk scale.
type RouteWeatherResult struct {
	OverallRisk           RoadRisk       `json:"overall_risk"`
	Segments              []RouteSegment `json:"segments"`
	Alerts                []HazardAlert  `json:"alerts"`
	Providers             []string       `json:"providers"`
	HasRouteGeometry      bool           `json:"has_route_geometry"`
	FetchedAt             time.Time      `json:"fetched_at"`
	SuggestedNextUpdateMs int64          `json:"suggested_next_update_ms"`
}

// PlaceType categorizes a shelter candidate.
type PlaceType string

const (
	PlaceGasStation PlaceType = "gas_station"
	PlaceRestArea   PlaceType = "rest_area"
	PlaceTown       PlaceType = "town"
)

// SafePlace is a shelter candidate near a query origin. DistanceKm is the
// great-circle distance from the origin, rounded to one decimal place.
type SafePlace struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       PlaceType `json:"type"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Address    string    `json:"address,omitempty"`
	DistanceKm float64   `json:"distance_km"`
}

// GroupedPlaces splits safe places by category for display.
type GroupedPlaces struct {
	GasStations []SafePlace `json:"gas_stations"`
	RestAreas   []SafePlace `json:"rest_areas"`
	Towns       []SafePlace `json:"towns"`
}

// SafePlacesResult is the resolver's answer: the flat distance-sorted
// list, the grouped view, and the provenance tier that produced it.
type SafePlacesResult struct {
	Places    []SafePlace   `json:"places"`
	Grouped   GroupedPlaces `json:"grouped"`
	Source    string        `json:"source"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// GroupByType builds the grouped view from a flat place list, preserving
// the input ordering within each category.
func GroupByType(places []SafePlace) GroupedPlaces {
	var g GroupedPlaces
	for _, p := range places {
		switch p.Type {
		case PlaceGasStation:
			g.GasStations = append(g.GasStations, p)
		case PlaceRestArea:
			g.RestAreas = append(g.RestAreas, p)
		case PlaceTown:
			g.Towns = append(g.Towns, p)
		}
	}
	return g
}
