// Package weather is the client for the external weather provider. The
// provider returns loosely-typed JSON; this package is the strict
// parse-and-validate boundary that converts raw responses into domain
// types, so the rest of the core only ever sees validated values.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lucasmontegu/driwet-sub001/internal/types"
)

// ProviderName identifies this provider in result provenance.
const ProviderName = "openweathermap"

// HTTPDoer abstracts the HTTP transport for testability. The resilient
// httpx.Client satisfies it in production.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches observations and active hazard alerts.
type Client struct {
	apiKey   string
	baseURL  string
	doer     HTTPDoer
	validate *validator.Validate
}

// NewClient creates a weather client using the given transport.
func NewClient(apiKey, baseURL string, doer HTTPDoer) *Client {
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org"
	}
	return &Client{
		apiKey:   apiKey,
		baseURL:  baseURL,
		doer:     doer,
		validate: validator.New(),
	}
}

// GetObservation retrieves the current conditions at a coordinate. The
// returned observation has no RoadRisk yet; classification happens in the
// aggregator.
func (c *Client) GetObservation(ctx context.Context, lat, lng float64) (types.WeatherObservation, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.6f", lat))
	params.Set("lon", fmt.Sprintf("%.6f", lng))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")

	var raw currentResponse
	if err := c.getJSON(ctx, "/data/2.5/weather", params, &raw); err != nil {
		return types.WeatherObservation{}, err
	}
	if err := c.validate.Struct(raw); err != nil {
		return types.WeatherObservation{}, types.NewAppError(types.ErrCodeProviderUnavailable,
			"weather provider returned an invalid observation", err)
	}

	return raw.toObservation(), nil
}

// GetActiveAlerts retrieves hazard alerts active around a coordinate.
// The radius is advisory for this provider; alerts are point-scoped and
// merged by the aggregator across sample points.
func (c *Client) GetActiveAlerts(ctx context.Context, lat, lng, radiusKm float64) ([]types.HazardAlert, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.6f", lat))
	params.Set("lon", fmt.Sprintf("%.6f", lng))
	params.Set("appid", c.apiKey)
	params.Set("exclude", "minutely,hourly,daily")

	var raw oneCallResponse
	if err := c.getJSON(ctx, "/data/3.0/onecall", params, &raw); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(raw); err != nil {
		return nil, types.NewAppError(types.ErrCodeProviderUnavailable,
			"weather provider returned invalid alerts", err)
	}

	alerts := make([]types.HazardAlert, 0, len(raw.Alerts))
	for _, a := range raw.Alerts {
		alerts = append(alerts, a.toAlert())
	}
	return alerts, nil
}

// getJSON issues a GET and decodes the body, mapping transport and
// upstream errors to the provider_unavailable taxonomy.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dest any) error {
	requestURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "build weather request", err)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.NewAppError(types.ErrCodeProviderUnavailable,
			fmt.Sprintf("weather provider error %d: %s", resp.StatusCode, string(body)), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return types.NewAppError(types.ErrCodeProviderUnavailable, "decode weather response", err)
	}
	return nil
}

// currentResponse is the provider's current-conditions payload.
type currentResponse struct {
	Coord struct {
		Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
		Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
	} `json:"coord"`
	Weather []condition `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp" validate:"gte=-90,lte=60"`
		Humidity float64 `json:"humidity" validate:"gte=0,lte=100"`
	} `json:"main"`
	Wind struct {
		Speed float64  `json:"speed" validate:"gte=0"`
		Gust  *float64 `json:"gust,omitempty"`
	} `json:"wind"`
	Clouds *struct {
		All float64 `json:"all"`
	} `json:"clouds,omitempty"`
	Visibility *float64 `json:"visibility,omitempty"`
	Rain       *accumulation `json:"rain,omitempty"`
	Snow       *accumulation `json:"snow,omitempty"`
	UVI        *float64      `json:"uvi,omitempty"`
	Dt         int64         `json:"dt"`
}

// condition is one entry of the provider's condition list.
type condition struct {
	ID   int    `json:"id"`
	Main string `json:"main"`
}

// accumulation is the provider's one-hour precipitation volume.
type accumulation struct {
	OneHour float64 `json:"1h"`
}

func (r currentResponse) toObservation() types.WeatherObservation {
	obs := types.WeatherObservation{
		Latitude:        r.Coord.Lat,
		Longitude:       r.Coord.Lon,
		TemperatureC:    r.Main.Temp,
		HumidityPercent: r.Main.Humidity,
		WindSpeedMs:     r.Wind.Speed,
		WindGustMs:      r.Wind.Gust,
		VisibilityM:     r.Visibility,
		UVIndex:         r.UVI,
		PrecipType:      types.PrecipNone,
		Provider:        ProviderName,
		FetchedAt:       time.Now().UTC(),
	}
	if r.Clouds != nil {
		cover := r.Clouds.All
		obs.CloudCoverPct = &cover
	}
	if len(r.Weather) > 0 {
		obs.WeatherCode = r.Weather[0].ID
	}

	switch {
	case hasHail(r.Weather):
		obs.PrecipType = types.PrecipHail
		obs.PrecipIntensity = precipRate(r.Rain, r.Snow)
	case r.Snow != nil && r.Snow.OneHour > 0:
		obs.PrecipType = types.PrecipSnow
		obs.PrecipIntensity = r.Snow.OneHour
	case r.Rain != nil && r.Rain.OneHour > 0:
		obs.PrecipType = types.PrecipRain
		obs.PrecipIntensity = r.Rain.OneHour
	}
	return obs
}

// hasHail detects hail conditions from the provider's condition list.
func hasHail(conditions []condition) bool {
	for _, c := range conditions {
		if c.ID == 906 || strings.EqualFold(c.Main, "hail") {
			return true
		}
	}
	return false
}

func precipRate(rain, snow *accumulation) float64 {
	rate := 0.0
	if rain != nil {
		rate += rain.OneHour
	}
	if snow != nil {
		rate += snow.OneHour
	}
	return rate
}

// oneCallResponse carries the provider's active alerts.
type oneCallResponse struct {
	Alerts []rawAlert `json:"alerts,omitempty" validate:"dive"`
}

type rawAlert struct {
	ID          string                `json:"id"`
	SenderName  string                `json:"sender_name"`
	Event       string                `json:"event" validate:"required"`
	Severity    string                `json:"severity"`
	Start       int64                 `json:"start"`
	End         int64                 `json:"end"`
	Description string                `json:"description"`
	Tags        []string              `json:"tags"`
	Polygon     *types.GeoJSONPolygon `json:"polygon,omitempty"`
}

func (a rawAlert) toAlert() types.HazardAlert {
	id := a.ID
	if id == "" {
		// Stable fallback identity so the same alert seen from several
		// sample points deduplicates to one entry.
		id = fmt.Sprintf("%s_%s_%d", a.SenderName, a.Event, a.Start)
	}

	alertType := "weather"
	if len(a.Tags) > 0 {
		alertType = strings.ToLower(a.Tags[0])
	}

	return types.HazardAlert{
		ID:        id,
		Type:      alertType,
		Severity:  mapSeverity(a.Severity, a.Event),
		Headline:  a.Event,
		Polygon:   a.Polygon,
		StartsAt:  time.Unix(a.Start, 0).UTC(),
		ExpiresAt: time.Unix(a.End, 0).UTC(),
	}
}

// mapSeverity normalizes the provider severity, falling back to keywords
// in the event name. Unknown severities map to minor; missing data never
// escalates.
func mapSeverity(severity, event string) types.AlertSeverity {
	switch strings.ToLower(severity) {
	case "extreme":
		return types.SeverityExtreme
	case "severe":
		return types.SeveritySevere
	case "moderate":
		return types.SeverityModerate
	case "minor":
		return types.SeverityMinor
	}

	lower := strings.ToLower(event)
	switch {
	case strings.Contains(lower, "warning"):
		return types.SeveritySevere
	case strings.Contains(lower, "watch"):
		return types.SeverityModerate
	default:
		return types.SeverityMinor
	}
}
