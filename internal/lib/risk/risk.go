// Package risk classifies weather observations into the RoadRisk ordinal.
//
// The classifier is a deterministic, total function: every observation
// maps to exactly one level and independent hazard signals combine by
// maximum severity. Missing fields (nil pointers) contribute the most
// benign signal; absent data never escalates risk.
//
// The numeric cutoffs are tunable, not derived constants. DefaultThresholds
// is the single source of truth for the defaults and config can override
// any of them.
package risk

import (
	"github.com/lucasmontegu/driwet-sub001/internal/types"
)

// Thresholds holds the signal cutoffs separating the four risk levels.
// Wind and precipitation buckets are ascending (at or above a cutoff means
// at least that level); visibility buckets are descending (below a cutoff
// means at least that level).
type Thresholds struct {
	WindModerateMs float64 `koanf:"wind_moderate_ms"`
	WindHighMs     float64 `koanf:"wind_high_ms"`
	WindExtremeMs  float64 `koanf:"wind_extreme_ms"`

	GustModerateMs float64 `koanf:"gust_moderate_ms"`
	GustHighMs     float64 `koanf:"gust_high_ms"`
	GustExtremeMs  float64 `koanf:"gust_extreme_ms"`

	VisibilityModerateM float64 `koanf:"visibility_moderate_m"`
	VisibilityHighM     float64 `koanf:"visibility_high_m"`
	VisibilityExtremeM  float64 `koanf:"visibility_extreme_m"`

	RainModerateMmh float64 `koanf:"rain_moderate_mmh"`
	RainHighMmh     float64 `koanf:"rain_high_mmh"`
	RainExtremeMmh  float64 `koanf:"rain_extreme_mmh"`

	SnowModerateMmh float64 `koanf:"snow_moderate_mmh"`
	SnowHighMmh     float64 `koanf:"snow_high_mmh"`
	SnowExtremeMmh  float64 `koanf:"snow_extreme_mmh"`

	// HailExtremeMmh is the intensity at which hail escalates from high to
	// extreme. Hail of any nonzero intensity is at least high.
	HailExtremeMmh float64 `koanf:"hail_extreme_mmh"`
}

// DefaultThresholds returns the default cutoffs. Wind values are m/s,
// visibility meters, precipitation mm/h.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WindModerateMs: 10, WindHighMs: 17, WindExtremeMs: 25,
		GustModerateMs: 14, GustHighMs: 22, GustExtremeMs: 30,
		VisibilityModerateM: 5000, VisibilityHighM: 1000, VisibilityExtremeM: 200,
		RainModerateMmh: 0.5, RainHighMmh: 4, RainExtremeMmh: 8,
		SnowModerateMmh: 0.1, SnowHighMmh: 1, SnowExtremeMmh: 3,
		HailExtremeMmh: 4,
	}
}

// Classifier maps observations to RoadRisk levels using a fixed set of
// thresholds. Safe for concurrent use.
type Classifier struct {
	t Thresholds
}

// NewClassifier creates a Classifier with the given thresholds.
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{t: t}
}

// Classify returns the road risk for an observation: the maximum severity
// across the precipitation, wind, gust, visibility, and weather-code
// signals. Never an average, never a sum; one extreme signal makes the
// observation extreme no matter how benign the rest are.
func (c *Classifier) Classify(obs types.WeatherObservation) types.RoadRisk {
	result := c.precipRisk(obs.PrecipType, obs.PrecipIntensity)
	result = types.MaxRisk(result, ascending(obs.WindSpeedMs, c.t.WindModerateMs, c.t.WindHighMs, c.t.WindExtremeMs))

	if obs.WindGustMs != nil {
		result = types.MaxRisk(result, ascending(*obs.WindGustMs, c.t.GustModerateMs, c.t.GustHighMs, c.t.GustExtremeMs))
	}
	if obs.VisibilityM != nil {
		result = types.MaxRisk(result, descending(*obs.VisibilityM, c.t.VisibilityModerateM, c.t.VisibilityHighM, c.t.VisibilityExtremeM))
	}

	return types.MaxRisk(result, codeRisk(obs.WeatherCode))
}

// precipRisk classifies the precipitation signal by type and intensity.
func (c *Classifier) precipRisk(pt types.PrecipType, intensity float64) types.RoadRisk {
	switch pt {
	case types.PrecipRain:
		return ascending(intensity, c.t.RainModerateMmh, c.t.RainHighMmh, c.t.RainExtremeMmh)
	case types.PrecipSnow:
		return ascending(intensity, c.t.SnowModerateMmh, c.t.SnowHighMmh, c.t.SnowExtremeMmh)
	case types.PrecipHail:
		if intensity <= 0 {
			return types.RiskLow
		}
		if intensity >= c.t.HailExtremeMmh {
			return types.RiskExtreme
		}
		return types.RiskHigh
	default:
		// "none" or unknown: the type carries no hazard regardless of a
		// stray intensity reading.
		return types.RiskLow
	}
}

// ascending buckets a value where higher means worse.
func ascending(v, moderate, high, extreme float64) types.RoadRisk {
	switch {
	case v >= extreme:
		return types.RiskExtreme
	case v >= high:
		return types.RiskHigh
	case v >= moderate:
		return types.RiskModerate
	default:
		return types.RiskLow
	}
}

// descending buckets a value where lower means worse (visibility).
func descending(v, moderate, high, extreme float64) types.RoadRisk {
	switch {
	case v < extreme:
		return types.RiskExtreme
	case v < high:
		return types.RiskHigh
	case v < moderate:
		return types.RiskModerate
	default:
		return types.RiskLow
	}
}

// codeRisk maps provider condition codes (OpenWeatherMap numbering) to a
// baseline risk. Codes not listed contribute low; their hazards are
// already captured by the numeric signals.
func codeRisk(code int) types.RoadRisk {
	switch {
	case code == 781 || code == 771: // tornado, squall
		return types.RiskExtreme
	case code == 511: // freezing rain
		return types.RiskExtreme
	case code >= 200 && code < 300: // thunderstorm group
		return types.RiskHigh
	case code == 602 || code == 622: // heavy snow
		return types.RiskHigh
	case code >= 600 && code < 700: // other snow/sleet
		return types.RiskModerate
	case code == 741 || code == 701: // fog, mist
		return types.RiskModerate
	default:
		return types.RiskLow
	}
}
