package weather

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lucasmontegu/driwet-sub001/internal/types"
)

// MockHTTPDoer is a mock implementation of HTTPDoer.
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func mockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

const currentFixture = `{
	"coord": {"lat": 38.13, "lon": -120.46},
	"weather": [{"id": 600, "main": "Snow", "description": "light snow"}],
	"main": {"temp": -1.5, "humidity": 88},
	"wind": {"speed": 6.2, "gust": 11.4},
	"clouds": {"all": 90},
	"visibility": 2400,
	"snow": {"1h": 0.8},
	"dt": 1757000000
}`

func TestGetObservation(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		mockResponse(200, currentFixture), nil)

	client := NewClient("test-api-key", "https://api.example.test", mockHTTP)

	obs, err := client.GetObservation(context.Background(), 38.1327, -120.4606)
	require.NoError(t, err)

	assert.Equal(t, 38.13, obs.Latitude)
	assert.Equal(t, -120.46, obs.Longitude)
	assert.Equal(t, -1.5, obs.TemperatureC)
	assert.Equal(t, 88.0, obs.HumidityPercent)
	assert.Equal(t, 6.2, obs.WindSpeedMs)
	require.NotNil(t, obs.WindGustMs)
	assert.Equal(t, 11.4, *obs.WindGustMs)
	require.NotNil(t, obs.VisibilityM)
	assert.Equal(t, 2400.0, *obs.VisibilityM)
	assert.Equal(t, types.PrecipSnow, obs.PrecipType)
	assert.Equal(t, 0.8, obs.PrecipIntensity)
	assert.Equal(t, 600, obs.WeatherCode)
	assert.Equal(t, ProviderName, obs.Provider)
	assert.False(t, obs.FetchedAt.IsZero())
}

func TestGetObservation_MissingOptionalFields(t *testing.T) {
	fixture := `{
		"coord": {"lat": 38.13, "lon": -120.46},
		"weather": [{"id": 800, "main": "Clear"}],
		"main": {"temp": 22, "humidity": 30},
		"wind": {"speed": 2.1},
		"dt": 1757000000
	}`

	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		mockResponse(200, fixture), nil)

	client := NewClient("test-api-key", "https://api.example.test", mockHTTP)

	obs, err := client.GetObservation(context.Background(), 38.1327, -120.4606)
	require.NoError(t, err)

	assert.Nil(t, obs.WindGustMs)
	assert.Nil(t, obs.VisibilityM)
	assert.Nil(t, obs.CloudCoverPct)
	assert.Equal(t, types.PrecipNone, obs.PrecipType)
	assert.Zero(t, obs.PrecipIntensity)
}

func TestGetObservation_RejectsOutOfRangePayload(t *testing.T) {
	fixture := `{
		"coord": {"lat": 238.13, "lon": -520.46},
		"weather": [{"id": 800, "main": "Clear"}],
		"main": {"temp": 22, "humidity": 130},
		"wind": {"speed": 2.1},
		"dt": 1757000000
	}`

	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		mockResponse(200, fixture), nil)

	client := NewClient("test-api-key", "https://api.example.test", mockHTTP)

	_, err := client.GetObservation(context.Background(), 38.1327, -120.4606)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeProviderUnavailable))
}

func TestGetObservation_UpstreamError(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		mockResponse(503, `{"message":"down"}`), nil)

	client := NewClient("test-api-key", "https://api.example.test", mockHTTP)

	_, err := client.GetObservation(context.Background(), 38.1327, -120.4606)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeProviderUnavailable))
}

const alertsFixture = `{
	"lat": 38.13, "lon": -120.46,
	"alerts": [
		{
			"sender_name": "NWS Sacramento",
			"event": "Winter Storm Warning",
			"severity": "severe",
			"start": 1694880000,
			"end": 1694966400,
			"description": "Heavy snow expected above 4000 feet.",
			"tags": ["snow"]
		},
		{
			"sender_name": "NWS Sacramento",
			"event": "Wind Advisory",
			"start": 1694880000,
			"end": 1694966400,
			"description": "Gusts to 50 mph.",
			"tags": []
		}
	]
}`

func TestGetActiveAlerts(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		mockResponse(200, alertsFixture), nil)

	client := NewClient("test-api-key", "https://api.example.test", mockHTTP)

	alerts, err := client.GetActiveAlerts(context.Background(), 38.1327, -120.4606, 25)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	storm := alerts[0]
	assert.Equal(t, "Winter Storm Warning", storm.Headline)
	assert.Equal(t, types.SeveritySevere, storm.Severity)
	assert.Equal(t, "snow", storm.Type)
	assert.NotEmpty(t, storm.ID)
	assert.True(t, storm.ExpiresAt.After(storm.StartsAt))

	// Severity missing: inferred from the event name, never escalated
	// beyond what the name supports.
	wind := alerts[1]
	assert.Equal(t, types.SeverityMinor, wind.Severity)
}

func TestGetActiveAlerts_NoAlerts(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		mockResponse(200, `{"lat": 38.13, "lon": -120.46}`), nil)

	client := NewClient("test-api-key", "https://api.example.test", mockHTTP)

	alerts, err := client.GetActiveAlerts(context.Background(), 38.1327, -120.4606, 25)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}
