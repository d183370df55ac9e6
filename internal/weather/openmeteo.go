// Package weather fetches current outside conditions from Open-Meteo, which
// needs no API key.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/nightbreeze/internal/httputil"
	"github.com/lox/nightbreeze/internal/models"
)

const defaultBaseURL = "https://api.open-meteo.com"

// WMO weather interpretation codes, abbreviated to the conditions that
// matter for a night-time comfort decision.
var weatherCodes = map[int]string{
	0:  "clear sky",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "foggy",
	48: "foggy",
	51: "light drizzle",
	53: "drizzle",
	55: "heavy drizzle",
	61: "light rain",
	63: "rain",
	65: "heavy rain",
	80: "rain showers",
	95: "thunderstorm",
	96: "thunderstorm with hail",
}

// Describe maps a WMO weather code to a short human-readable condition.
func Describe(code int) string {
	if desc, ok := weatherCodes[code]; ok {
		return desc
	}
	return "unknown"
}

type Client struct {
	baseURL string
	lat     float64
	lon     float64
	client  *http.Client
}

func NewClient(lat, lon float64) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		lat:     lat,
		lon:     lon,
		client:  httputil.NewClient(),
	}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

type currentResponse struct {
	Reason  string `json:"reason"`
	Current *struct {
		Temperature         float64 `json:"temperature_2m"`
		RelativeHumidity    float64 `json:"relative_humidity_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		WeatherCode         int     `json:"weather_code"`
	} `json:"current"`
}

// Current fetches the current conditions for the configured coordinates.
func (c *Client) Current(ctx context.Context) (*models.WeatherReading, error) {
	url := fmt.Sprintf("%s/v1/forecast?latitude=%.4f&longitude=%.4f&current=temperature_2m,relative_humidity_2m,apparent_temperature,weather_code",
		c.baseURL, c.lat, c.lon)

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch weather: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch weather: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch weather: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 45 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	var data currentResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if data.Current == nil {
		if data.Reason != "" {
			return nil, fmt.Errorf("weather api: %s", data.Reason)
		}
		return nil, fmt.Errorf("weather api: no current conditions returned")
	}

	return &models.WeatherReading{
		Temperature:         data.Current.Temperature,
		ApparentTemperature: data.Current.ApparentTemperature,
		Humidity:            data.Current.RelativeHumidity,
		Description:         Describe(data.Current.WeatherCode),
		At:                  time.Now().UTC(),
	}, nil
}
