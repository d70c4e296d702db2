package weather

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const forecastDays = 5

// FormatCurrent renders current conditions as plain text.
func FormatCurrent(data *CurrentConditions, units Units) string {
	temp, speed := unitSuffixes(units)

	var b strings.Builder
	fmt.Fprintf(&b, "Current weather in %s, %s:\n", data.Name, data.Sys.Country)
	fmt.Fprintf(&b, "Temperature: %s%s\n", num(data.Main.Temp), temp)
	fmt.Fprintf(&b, "Feels like: %s%s\n", num(data.Main.FeelsLike), temp)
	fmt.Fprintf(&b, "Humidity: %s%%\n", num(data.Main.Humidity))
	fmt.Fprintf(&b, "Wind speed: %s %s\n", num(data.Wind.Speed), speed)
	fmt.Fprintf(&b, "Conditions: %s\n", firstDescription(data.Weather))
	return b.String()
}

// FormatForecast renders up to five days, one block per calendar date in the
// order the provider listed them.
func FormatForecast(data *ForecastData, units Units) string {
	temp, _ := unitSuffixes(units)

	var b strings.Builder
	fmt.Fprintf(&b, "%d-day forecast for %s, %s:\n\n", forecastDays, data.City.Name, data.City.Country)

	for _, day := range groupByDate(data.List, forecastDays) {
		minTemp, maxTemp := day.entries[0].Main.Temp, day.entries[0].Main.Temp
		for _, e := range day.entries[1:] {
			if e.Main.Temp < minTemp {
				minTemp = e.Main.Temp
			}
			if e.Main.Temp > maxTemp {
				maxTemp = e.Main.Temp
			}
		}

		fmt.Fprintf(&b, "Date: %s\n", day.date)
		fmt.Fprintf(&b, "Temperature: %s%s to %s%s\n", num(minTemp), temp, num(maxTemp), temp)
		fmt.Fprintf(&b, "Conditions: %s\n\n", mostCommonCondition(day.entries))
	}
	return b.String()
}

// FailureMessage turns a provider error into the text shown to the user.
// forecast selects the wording for forecast lookups.
func FailureMessage(err error, city string, forecast bool) string {
	subject := "weather"
	if forecast {
		subject = "forecast"
	}

	switch {
	case errors.Is(err, ErrTimeout):
		return fmt.Sprintf("Error: Timeout while getting %s data for %s. Please try again later.", subject, city)
	case errors.Is(err, ErrNotFound):
		return fmt.Sprintf("Error: Could not find %s data for %s. Please check the city name and try again.", subject, city)
	case errors.Is(err, ErrServiceUnavailable):
		return fmt.Sprintf("Error: Could not retrieve %s data for %s. The weather service might be unavailable.", subject, city)
	default:
		return fmt.Sprintf("Error: An unexpected error occurred while getting %s data for %s.", subject, city)
	}
}

type dayGroup struct {
	date    string
	entries []ForecastEntry
}

func groupByDate(list []ForecastEntry, limit int) []dayGroup {
	groups := make([]dayGroup, 0, limit)
	index := make(map[string]int)

	for _, e := range list {
		date, _, _ := strings.Cut(e.DtTxt, " ")
		if i, ok := index[date]; ok {
			groups[i].entries = append(groups[i].entries, e)
			continue
		}
		if len(groups) == limit {
			continue
		}
		index[date] = len(groups)
		groups = append(groups, dayGroup{date: date, entries: []ForecastEntry{e}})
	}
	return groups
}

// mostCommonCondition picks the most frequent description; ties go to the one
// seen first.
func mostCommonCondition(entries []ForecastEntry) string {
	counts := make(map[string]int)
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		c := firstDescription(e.Weather)
		if _, ok := counts[c]; !ok {
			order = append(order, c)
		}
		counts[c]++
	}

	best := ""
	bestCount := 0
	for _, c := range order {
		if counts[c] > bestCount {
			best = c
			bestCount = counts[c]
		}
	}
	return best
}

func firstDescription(conditions []Condition) string {
	if len(conditions) == 0 {
		return "unknown"
	}
	return conditions[0].Description
}

func unitSuffixes(units Units) (temp, speed string) {
	switch units {
	case Imperial:
		return "°F", "mph"
	case Standard:
		return "K", "m/s"
	default:
		return "°C", "m/s"
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
