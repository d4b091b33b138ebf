// Package route samples evaluation points along a driving route. Sampling
// is deterministic: the same inputs always produce the same points, so a
// repeated analysis against unchanged upstream data is reproducible.
package route

import (
	"errors"

	"github.com/lucasmontegu/driwet-sub001/internal/lib/geo"
)

// ErrNonPositiveInterval is returned when the sampling interval is zero or
// negative.
var ErrNonPositiveInterval = errors.New("sample interval must be positive")

// ErrEmptyPath is returned when a path has no points.
var ErrEmptyPath = errors.New("route path has no points")

// SamplePoint is one evaluation point with its cumulative distance from
// the route origin.
type SamplePoint struct {
	DistanceKm float64   `json:"distance_km"`
	Point      geo.Point `json:"point"`
}

// Samples is an ordered sequence of sample points. HasRouteGeometry
// distinguishes true path sampling from the straight-line degradation,
// whose risk estimate is materially less reliable.
type Samples struct {
	Points           []SamplePoint `json:"points"`
	HasRouteGeometry bool          `json:"has_route_geometry"`
}

// SamplePath walks cumulative distance along a polyline and emits a point
// each time it crosses a multiple of intervalKm. The origin and the final
// destination point are always included, even when the destination falls
// short of a full interval.
func SamplePath(points []geo.Point, intervalKm float64) (Samples, error) {
	if intervalKm <= 0 {
		return Samples{}, ErrNonPositiveInterval
	}
	if len(points) == 0 {
		return Samples{}, ErrEmptyPath
	}
	for _, p := range points {
		if !p.Valid() {
			return Samples{}, geo.ErrInvalidCoordinate
		}
	}

	samples := []SamplePoint{{DistanceKm: 0, Point: points[0]}}
	if len(points) == 1 {
		return Samples{Points: samples, HasRouteGeometry: true}, nil
	}

	cumulative := 0.0
	nextMark := intervalKm
	for i := 0; i < len(points)-1; i++ {
		segLen, err := geo.DistanceKm(points[i], points[i+1])
		if err != nil {
			return Samples{}, err
		}
		for segLen > 0 && cumulative+segLen >= nextMark {
			t := (nextMark - cumulative) / segLen
			samples = append(samples, SamplePoint{
				DistanceKm: nextMark,
				Point:      geo.Interpolate(points[i], points[i+1], t),
			})
			nextMark += intervalKm
		}
		cumulative += segLen
	}

	// Close with the destination unless a mark already landed on it.
	last := samples[len(samples)-1]
	if last.Point != points[len(points)-1] {
		samples = append(samples, SamplePoint{
			DistanceKm: cumulative,
			Point:      points[len(points)-1],
		})
	}

	return Samples{Points: samples, HasRouteGeometry: true}, nil
}

// SampleEncoded decodes a Google encoded polyline and samples it.
func SampleEncoded(encoded string, intervalKm float64) (Samples, error) {
	points, err := geo.DecodePolyline(encoded)
	if err != nil {
		return Samples{}, err
	}
	return SamplePath(points, intervalKm)
}

// SampleStraightLine is the degraded mode used when no route geometry is
// available: origin, midpoint, destination along the direct great circle.
// Results carry HasRouteGeometry=false so callers know the estimate does
// not follow the actual road.
func SampleStraightLine(origin, destination geo.Point) (Samples, error) {
	if !origin.Valid() || !destination.Valid() {
		return Samples{}, geo.ErrInvalidCoordinate
	}

	total, err := geo.DistanceKm(origin, destination)
	if err != nil {
		return Samples{}, err
	}

	points := []SamplePoint{
		{DistanceKm: 0, Point: origin},
		{DistanceKm: total / 2, Point: geo.Interpolate(origin, destination, 0.5)},
		{DistanceKm: total, Point: destination},
	}

	return Samples{Points: points, HasRouteGeometry: false}, nil
}
