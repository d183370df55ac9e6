package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/forecast" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("latitude") != "-33.8688" || q.Get("longitude") != "151.2093" {
			t.Errorf("coordinates = %s,%s", q.Get("latitude"), q.Get("longitude"))
		}
		if !strings.Contains(q.Get("current"), "apparent_temperature") {
			t.Errorf("current fields = %s", q.Get("current"))
		}
		w.Write([]byte(`{"current": {"temperature_2m": 18.3, "relative_humidity_2m": 72, "apparent_temperature": 17.1, "weather_code": 2}}`))
	}))
	defer srv.Close()

	c := NewClient(-33.8688, 151.2093)
	c.SetBaseURL(srv.URL)

	reading, err := c.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if reading.Temperature != 18.3 {
		t.Errorf("temperature = %v", reading.Temperature)
	}
	if reading.ApparentTemperature != 17.1 {
		t.Errorf("apparent temperature = %v", reading.ApparentTemperature)
	}
	if reading.Humidity != 72 {
		t.Errorf("humidity = %v", reading.Humidity)
	}
	if reading.Description != "partly cloudy" {
		t.Errorf("description = %q", reading.Description)
	}
}

func TestCurrentAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": true, "reason": "Latitude must be in range"}`))
	}))
	defer srv.Close()

	c := NewClient(999, 0)
	c.SetBaseURL(srv.URL)

	if _, err := c.Current(context.Background()); err == nil {
		t.Fatal("want error on 400")
	}
}

func TestCurrentRetriesServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"current": {"temperature_2m": 20, "relative_humidity_2m": 50, "apparent_temperature": 20, "weather_code": 0}}`))
	}))
	defer srv.Close()

	c := NewClient(0, 0)
	c.SetBaseURL(srv.URL)

	reading, err := c.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if calls < 2 {
		t.Errorf("calls = %d, want retry after 502", calls)
	}
	if reading.Description != "clear sky" {
		t.Errorf("description = %q", reading.Description)
	}
}

func TestCurrentMissingData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(0, 0)
	c.SetBaseURL(srv.URL)

	if _, err := c.Current(context.Background()); err == nil {
		t.Fatal("want error when current conditions are missing")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "clear sky"},
		{63, "rain"},
		{95, "thunderstorm"},
		{42, "unknown"},
	}
	for _, tt := range tests {
		if got := Describe(tt.code); got != tt.want {
			t.Errorf("Describe(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
