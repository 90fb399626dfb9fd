package meteo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/nightcharge/nightcharge/internal/cache"
	"github.com/nightcharge/nightcharge/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const clearSkyBody = `{"hourly":{
	"time":["2025-03-11T00:00","2025-03-11T01:00"],
	"shortwave_radiation":[500,300],
	"cloud_cover":[10,20],
	"direct_normal_irradiance":[700,600],
	"diffuse_radiation":[100,120]}}`

const overcastBody = `{"hourly":{
	"time":["2025-03-11T00:00","2025-03-11T01:00"],
	"shortwave_radiation":[500,300],
	"cloud_cover":[90,95],
	"direct_normal_irradiance":[100,80],
	"diffuse_radiation":[60,70]}}`

func newServer(t *testing.T, body string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestForecastClearSky(t *testing.T) {
	server := newServer(t, clearSkyBody)
	client := NewClient(server.URL, 5.0, nil, zap.NewNop())

	forecast, err := client.Forecast(context.Background(), 52.5, 13.4, "Europe/Berlin")
	require.NoError(t, err)

	// (0.5 + 0.3) kWh/m2-ish proxy * 5 kW system, no derating
	assert.InDelta(t, 4.0, forecast.TotalKWh, 0.001)
	assert.InDelta(t, 15.0, forecast.AvgCloudCover, 0.001)
	assert.InDelta(t, 650.0, forecast.AvgDNI, 0.001)
	assert.InDelta(t, 110.0, forecast.AvgDiffuse, 0.001)
}

func TestForecastDeratesHeavyCloudCover(t *testing.T) {
	server := newServer(t, overcastBody)
	client := NewClient(server.URL, 5.0, nil, zap.NewNop())

	forecast, err := client.Forecast(context.Background(), 52.5, 13.4, "Europe/Berlin")
	require.NoError(t, err)

	// avg cloud cover 92.5 > 80: total derated by 0.7
	assert.InDelta(t, 4.0*0.7, forecast.TotalKWh, 0.001)
}

func TestForecastMissingHourlyIsDataFetchError(t *testing.T) {
	server := newServer(t, `{"error":true}`)
	client := NewClient(server.URL, 5.0, nil, zap.NewNop())

	_, err := client.Forecast(context.Background(), 52.5, 13.4, "Europe/Berlin")
	assert.ErrorIs(t, err, domain.ErrDataFetch)
}

func TestForecastServerErrorIsDataFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)
	client := NewClient(server.URL, 5.0, nil, zap.NewNop())

	_, err := client.Forecast(context.Background(), 52.5, 13.4, "Europe/Berlin")
	assert.ErrorIs(t, err, domain.ErrDataFetch)
}

func TestForecastServedFromCache(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(clearSkyBody))
	}))
	t.Cleanup(server.Close)

	forecastCache := cache.NewFile(filepath.Join(t.TempDir(), "solar.json"), time.Hour, zap.NewNop())
	client := NewClient(server.URL, 5.0, forecastCache, zap.NewNop())

	first, err := client.Forecast(context.Background(), 52.5, 13.4, "Europe/Berlin")
	require.NoError(t, err)
	second, err := client.Forecast(context.Background(), 52.5, 13.4, "Europe/Berlin")
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second forecast should come from cache")
	assert.Equal(t, first.TotalKWh, second.TotalKWh)
}
