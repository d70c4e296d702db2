package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zhouzirui/mcp-weather/backend/internal/config"
	"github.com/zhouzirui/mcp-weather/backend/internal/metrics"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 5 * time.Second

// Client talks to the OpenWeather 2.5 REST API.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient builds an OpenWeather client from configuration.
func NewClient(cfg config.WeatherConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// CurrentWeather fetches current conditions for q.
func (c *Client) CurrentWeather(ctx context.Context, q Query) (*CurrentConditions, error) {
	var out CurrentConditions
	if err := c.get(ctx, "weather", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Forecast fetches the 5 day / 3 hour forecast for q.
func (c *Client) Forecast(ctx context.Context, q Query) (*ForecastData, error) {
	var out ForecastData
	if err := c.get(ctx, "forecast", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q Query, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ProviderLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ProviderFailures.WithLabelValues(Kind(err)).Inc()
		}
	}()

	if c.apiKey == "" {
		return fmt.Errorf("%w: %w", ErrUnknown, ErrMissingAPIKey)
	}

	location := q.City
	if q.CountryCode != "" {
		location = location + "," + q.CountryCode
	}
	units := q.Units
	if units == "" {
		units = Metric
	}

	params := url.Values{}
	params.Set("q", location)
	params.Set("appid", c.apiKey)
	params.Set("units", string(units))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrUnknown, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s %q", ErrTimeout, endpoint, q.City)
		}
		return fmt.Errorf("%w: %s %q: %w", ErrUnknown, endpoint, q.City, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %q", ErrNotFound, q.City)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: upstream status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: reading %s body", ErrTimeout, endpoint)
		}
		return fmt.Errorf("%w: read body: %w", ErrUnknown, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s payload: %w", ErrUnknown, endpoint, err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
