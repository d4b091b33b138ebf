package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lucasmontegu/driwet-sub001/internal/types"
)

func ptr(v float64) *float64 { return &v }

func nominal() types.WeatherObservation {
	return types.WeatherObservation{
		TemperatureC:    18,
		HumidityPercent: 40,
		WindSpeedMs:     3,
		WindGustMs:      ptr(5),
		VisibilityM:     ptr(10000),
		PrecipIntensity: 0,
		PrecipType:      types.PrecipNone,
		WeatherCode:     800,
	}
}

func TestClassify_NominalIsLow(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	assert.Equal(t, types.RiskLow, c.Classify(nominal()))
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	obs := nominal()
	obs.WindSpeedMs = 19
	obs.PrecipType = types.PrecipRain
	obs.PrecipIntensity = 2

	assert.Equal(t, c.Classify(obs), c.Classify(obs))
}

func TestClassify_HailIsAtLeastHigh(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	obs := nominal()
	obs.PrecipType = types.PrecipHail
	obs.PrecipIntensity = 5
	obs.VisibilityM = ptr(10000)

	got := c.Classify(obs)
	assert.GreaterOrEqual(t, got.Priority(), types.RiskHigh.Priority(),
		"hail at 5 mm/h must classify high or extreme, got %s", got)

	// Even a trace of hail is high.
	obs.PrecipIntensity = 0.2
	assert.Equal(t, types.RiskHigh, c.Classify(obs))
}

func TestClassify_MissingFieldsAreBenign(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	obs := nominal()
	obs.VisibilityM = nil
	obs.WindGustMs = nil

	assert.Equal(t, types.RiskLow, c.Classify(obs),
		"nil optional fields must never escalate risk")
}

func TestClassify_MaxOfSignalsNeverAverage(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	// High wind AND low visibility: result is the max of the two signals,
	// not some blend.
	obs := nominal()
	obs.WindSpeedMs = 18            // high
	obs.VisibilityM = ptr(150)      // extreme
	obs.PrecipType = types.PrecipNone

	assert.Equal(t, types.RiskExtreme, c.Classify(obs))
}

func TestClassify_MonotonicUnderAddedSignals(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	obs := nominal()
	obs.PrecipType = types.PrecipRain
	obs.PrecipIntensity = 5 // high
	base := c.Classify(obs)

	// Adding a more severe signal never decreases the result.
	obs.WindSpeedMs = 26 // extreme
	escalated := c.Classify(obs)
	assert.GreaterOrEqual(t, escalated.Priority(), base.Priority())
	assert.Equal(t, types.RiskExtreme, escalated)
}

func TestClassify_SignalBuckets(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	cases := []struct {
		name   string
		mutate func(*types.WeatherObservation)
		want   types.RoadRisk
	}{
		{"moderate wind", func(o *types.WeatherObservation) { o.WindSpeedMs = 12 }, types.RiskModerate},
		{"high wind", func(o *types.WeatherObservation) { o.WindSpeedMs = 18 }, types.RiskHigh},
		{"extreme wind", func(o *types.WeatherObservation) { o.WindSpeedMs = 30 }, types.RiskExtreme},
		{"gusts escalate", func(o *types.WeatherObservation) { o.WindGustMs = ptr(23.0) }, types.RiskHigh},
		{"reduced visibility", func(o *types.WeatherObservation) { o.VisibilityM = ptr(3000.0) }, types.RiskModerate},
		{"near-zero visibility", func(o *types.WeatherObservation) { o.VisibilityM = ptr(100.0) }, types.RiskExtreme},
		{"light rain", func(o *types.WeatherObservation) {
			o.PrecipType = types.PrecipRain
			o.PrecipIntensity = 1
		}, types.RiskModerate},
		{"heavy rain", func(o *types.WeatherObservation) {
			o.PrecipType = types.PrecipRain
			o.PrecipIntensity = 9
		}, types.RiskExtreme},
		{"any snow", func(o *types.WeatherObservation) {
			o.PrecipType = types.PrecipSnow
			o.PrecipIntensity = 0.3
		}, types.RiskModerate},
		{"heavy snow", func(o *types.WeatherObservation) {
			o.PrecipType = types.PrecipSnow
			o.PrecipIntensity = 2
		}, types.RiskHigh},
		{"thunderstorm code", func(o *types.WeatherObservation) { o.WeatherCode = 211 }, types.RiskHigh},
		{"freezing rain code", func(o *types.WeatherObservation) { o.WeatherCode = 511 }, types.RiskExtreme},
		{"tornado code", func(o *types.WeatherObservation) { o.WeatherCode = 781 }, types.RiskExtreme},
		{"fog code", func(o *types.WeatherObservation) { o.WeatherCode = 741 }, types.RiskModerate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs := nominal()
			tc.mutate(&obs)
			assert.Equal(t, tc.want, c.Classify(obs))
		})
	}
}

func TestClassify_IntensityWithTypeNoneIsLow(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	obs := nominal()
	obs.PrecipType = types.PrecipNone
	obs.PrecipIntensity = 9 // stray reading without a type

	assert.Equal(t, types.RiskLow, c.Classify(obs))
}

func TestMaxRiskOrdering(t *testing.T) {
	assert.Equal(t, types.RiskExtreme, types.MaxRisk(types.RiskLow, types.RiskExtreme))
	assert.Equal(t, types.RiskHigh, types.MaxRisk(types.RiskHigh, types.RiskModerate))
	assert.True(t, types.RiskLow.Priority() < types.RiskModerate.Priority())
	assert.True(t, types.RiskModerate.Priority() < types.RiskHigh.Priority())
	assert.True(t, types.RiskHigh.Priority() < types.RiskExtreme.Priority())
}
