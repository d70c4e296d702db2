package query

import (
	"regexp"
	"strings"
)

// Intent 表示查询意图：当前天气或多日预报。
type Intent string

const (
	Current  Intent = "current"
	Forecast Intent = "forecast"
)

// DefaultCity is used when no location can be extracted from the text.
const DefaultCity = "London"

// Result 给出意图识别结果以及城市名称。
type Result struct {
	Intent Intent
	City   string
}

var forecastKeywords = []string{"forecast", "tomorrow", "next"}

// cityPatterns are tried in order; the first match wins.
var cityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)weather like in ([^?.,]+)`),
	regexp.MustCompile(`(?i)forecast for ([^?.,]+)`),
	regexp.MustCompile(`(?i)weather forecast for ([^?.,]+)`),
}

// Interpret classifies free text into an intent and a city. It never fails.
func Interpret(text string) Result {
	return Result{
		Intent: classify(text),
		City:   extractCity(text),
	}
}

func classify(text string) Intent {
	normalized := strings.ToLower(text)
	for _, word := range forecastKeywords {
		if strings.Contains(normalized, word) {
			return Forecast
		}
	}
	return Current
}

func extractCity(text string) string {
	for _, re := range cityPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if city := strings.TrimSpace(m[1]); city != "" {
			return city
		}
		break
	}
	return DefaultCity
}
