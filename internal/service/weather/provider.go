package weather

import (
	"context"
	"errors"
)

// Provider failure kinds. Callers match them with errors.Is.
var (
	ErrNotFound           = errors.New("location not found")
	ErrTimeout            = errors.New("weather provider timeout")
	ErrServiceUnavailable = errors.New("weather service unavailable")
	ErrUnknown            = errors.New("unexpected weather provider error")

	// ErrMissingAPIKey is always reported together with ErrUnknown.
	ErrMissingAPIKey = errors.New("OPENWEATHER_API_KEY environment variable is not set")
)

// Units is the unit system requested from the provider.
type Units string

const (
	Metric   Units = "metric"
	Imperial Units = "imperial"
	Standard Units = "standard"
)

// Query identifies a location and the unit system to report in.
type Query struct {
	City        string
	CountryCode string
	Units       Units
}

// Provider abstracts a weather data source.
type Provider interface {
	CurrentWeather(ctx context.Context, q Query) (*CurrentConditions, error)
	Forecast(ctx context.Context, q Query) (*ForecastData, error)
}

// Kind returns a short label for err, used for metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrServiceUnavailable):
		return "unavailable"
	default:
		return "unknown"
	}
}

// CurrentConditions mirrors the fields read from the current weather payload.
type CurrentConditions struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []Condition `json:"weather"`
}

// Condition is a single textual weather description.
type Condition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

// ForecastData mirrors the fields read from the 5 day / 3 hour forecast payload.
type ForecastData struct {
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
	List []ForecastEntry `json:"list"`
}

// ForecastEntry is one 3-hour slot.
type ForecastEntry struct {
	DtTxt string `json:"dt_txt"`
	Main  struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []Condition `json:"weather"`
}
