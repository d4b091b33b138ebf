// Package geo provides the geographic primitives used by the sampler,
// cache, and resolvers: great-circle distance, interpolation, coordinate
// quantization, and polyline decoding.
package geo

import (
	"errors"
	"math"

	"github.com/twpayne/go-polyline"
)

// earthRadiusKm is the mean Earth radius used by the Haversine formula.
const earthRadiusKm = 6371.0

// Point is a geographic coordinate.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// ErrInvalidCoordinate is returned when a latitude or longitude is out of
// range.
var ErrInvalidCoordinate = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")

// Valid reports whether the point's coordinates are in range.
func (p Point) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// NewPoint builds a validated Point.
func NewPoint(latitude, longitude float64) (Point, error) {
	p := Point{Latitude: latitude, Longitude: longitude}
	if !p.Valid() {
		return Point{}, ErrInvalidCoordinate
	}
	return p, nil
}

// DistanceKm returns the great-circle distance between two points in
// kilometers using the Haversine formula.
func DistanceKm(p1, p2 Point) (float64, error) {
	if !p1.Valid() || !p2.Valid() {
		return 0, ErrInvalidCoordinate
	}
	if p1 == p2 {
		return 0, nil
	}

	lat1 := p1.Latitude * math.Pi / 180
	lon1 := p1.Longitude * math.Pi / 180
	lat2 := p2.Latitude * math.Pi / 180
	lon2 := p2.Longitude * math.Pi / 180

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c, nil
}

// Interpolate returns the point a fraction t of the way from start to end.
// t=0 returns start, t=1 returns end. Linear interpolation is adequate for
// the road-segment distances this service works with (tens of kilometers).
func Interpolate(start, end Point, t float64) Point {
	return Point{
		Latitude:  start.Latitude + t*(end.Latitude-start.Latitude),
		Longitude: start.Longitude + t*(end.Longitude-start.Longitude),
	}
}

// OffsetKm returns the point displaced from origin by the given north and
// east distances in kilometers. Uses the equirectangular approximation,
// which is accurate to well under 1% at the radii used for shelter
// placeholders.
func OffsetKm(origin Point, northKm, eastKm float64) Point {
	const kmPerDegLat = 111.32
	lat := origin.Latitude + northKm/kmPerDegLat
	kmPerDegLon := kmPerDegLat * math.Cos(origin.Latitude*math.Pi/180)
	lon := origin.Longitude
	if kmPerDegLon > 0 {
		lon += eastKm / kmPerDegLon
	}
	return Point{Latitude: lat, Longitude: lon}
}

// Quantize rounds the point's coordinates to the given number of decimal
// places. Queries landing in the same quantized cell share one cache
// entry: 2 decimals is roughly a 1.1 km cell, 1 decimal roughly 11 km.
func Quantize(p Point, decimals int) Point {
	scale := math.Pow(10, float64(decimals))
	return Point{
		Latitude:  math.Round(p.Latitude*scale) / scale,
		Longitude: math.Round(p.Longitude*scale) / scale,
	}
}

// RoundKm rounds a distance to one decimal place, the resolution reported
// for safe-place distances.
func RoundKm(km float64) float64 {
	return math.Round(km*10) / 10
}

// DecodePolyline decodes a Google encoded polyline into a point sequence.
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{Latitude: coord[0], Longitude: coord[1]}
		if !points[i].Valid() {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}
	return points, nil
}

// PathLengthKm returns the cumulative length of a point sequence.
func PathLengthKm(points []Point) (float64, error) {
	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		d, err := DistanceKm(points[i], points[i+1])
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}
