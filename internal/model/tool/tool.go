package tool

// Parameter describes one argument accepted by a tool.
type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// Tool captures the weather capabilities exposed to clients.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

const (
	CurrentWeather  = "get_current_weather"
	WeatherForecast = "get_weather_forecast"
)

// Seed returns the two tools backed by the weather provider.
func Seed() []Tool {
	shared := []Parameter{
		{Name: "city", Type: "string", Description: "The city to get weather for", Required: true},
		{Name: "country_code", Type: "string", Description: "Optional two-letter country code (ISO 3166)"},
		{Name: "units", Type: "string", Description: "Units of measurement", Enum: []string{"standard", "metric", "imperial"}},
	}

	return []Tool{
		{
			Name:        CurrentWeather,
			Description: "Get current weather information for a city.",
			Parameters:  append([]Parameter(nil), shared...),
		},
		{
			Name:        WeatherForecast,
			Description: "Get a 5-day weather forecast for a city.",
			Parameters:  append([]Parameter(nil), shared...),
		},
	}
}
