package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("HERE_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "gemini", cfg.Providers.Route)
	assert.Equal(t, "here", cfg.Providers.Search)
	assert.Empty(t, cfg.Providers.GeminiKey)
	assert.Equal(t, "Bangalore, India", cfg.Region.Name)
	assert.InDelta(t, 12.9716, cfg.Region.Center.Lat, 1e-9)
	assert.Equal(t, "IND", cfg.Region.Country)
	assert.Equal(t, 30*time.Second, cfg.Quote.RefreshInterval)
	assert.Equal(t, 2, cfg.Search.MinLength)
	assert.Equal(t, 300*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, 5, cfg.Search.Limit)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RIDEFLOW_ROUTE_PROVIDER", "Google")
	t.Setenv("RIDEFLOW_QUOTE_REFRESH", "45s")
	t.Setenv("RIDEFLOW_SEARCH_MIN_LENGTH", "3")
	t.Setenv("RIDEFLOW_SEARCH_DEBOUNCE", "not-a-duration")
	t.Setenv("RIDEFLOW_PRICING_TZ", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "google", cfg.Providers.Route)
	assert.Equal(t, 45*time.Second, cfg.Quote.RefreshInterval)
	assert.Equal(t, 3, cfg.Search.MinLength)
	assert.Equal(t, 300*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, time.UTC, cfg.Pricing.Location)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"RIDEFLOW_ROUTE_PROVIDER":  "osrm",
		"RIDEFLOW_SEARCH_PROVIDER": "bing",
		"RIDEFLOW_REGION_CENTER":   "north",
		"RIDEFLOW_PRICING_TZ":      "Mars/Olympus",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
