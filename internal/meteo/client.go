// Package meteo fetches the hourly irradiance forecast from Open-Meteo and
// reduces it to a derated solar production estimate.
package meteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nightcharge/nightcharge/internal/cache"
	"github.com/nightcharge/nightcharge/internal/domain"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.open-meteo.com"

// cloudy skies scatter more than the irradiance numbers alone suggest
const (
	cloudCoverDeratingThreshold = 80.0
	cloudCoverDeratingFactor    = 0.7
)

type Client struct {
	baseURL      string
	systemSizeKW float64
	httpClient   *http.Client
	cache        *cache.File
	logger       *zap.Logger
}

// NewClient builds a forecast client. cache may be nil to disable caching.
func NewClient(baseURL string, systemSizeKW float64, forecastCache *cache.File, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:      baseURL,
		systemSizeKW: systemSizeKW,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		cache:        forecastCache,
		logger:       logger,
	}
}

type apiResponse struct {
	Hourly *domain.HourlySeries `json:"hourly"`
}

// Forecast returns the solar production forecast for the next day, serving
// from cache while a fresh entry exists.
func (c *Client) Forecast(ctx context.Context, latitude, longitude float64, timezone string) (*domain.SolarForecast, error) {
	if c.cache != nil {
		var cached domain.SolarForecast
		if c.cache.Load(&cached) {
			c.logger.Info("using cached solar forecast")
			return &cached, nil
		}
	}

	forecast, err := c.fetch(ctx, latitude, longitude, timezone)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Store(forecast); err != nil {
			c.logger.Warn("could not cache solar forecast", zap.Error(err))
		}
	}
	return forecast, nil
}

func (c *Client) fetch(ctx context.Context, latitude, longitude float64, timezone string) (*domain.SolarForecast, error) {
	endpoint := fmt.Sprintf(
		"%s/v1/forecast?latitude=%g&longitude=%g"+
			"&hourly=cloud_cover,shortwave_radiation,direct_normal_irradiance,diffuse_radiation"+
			"&timezone=%s&past_days=0&forecast_days=1",
		c.baseURL, latitude, longitude, url.QueryEscape(timezone))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: open-meteo: %v", domain.ErrDataFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: open-meteo status %d: %s", domain.ErrDataFetch, resp.StatusCode, body)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: open-meteo: %v", domain.ErrDataFetch, err)
	}
	if parsed.Hourly == nil {
		return nil, fmt.Errorf("%w: open-meteo: no hourly data in response", domain.ErrDataFetch)
	}

	return c.reduce(*parsed.Hourly), nil
}

// reduce turns the hourly series into a production total in kWh. When the
// average cloud cover exceeds the threshold the total is derated by a fixed
// factor, otherwise it is left undiminished.
func (c *Client) reduce(hourly domain.HourlySeries) *domain.SolarForecast {
	avgCloudCover := mean(hourly.CloudCover)

	derating := 1.0
	if avgCloudCover > cloudCoverDeratingThreshold {
		derating = cloudCoverDeratingFactor
	}

	var totalKWh float64
	for _, sw := range hourly.ShortwaveRadiation {
		totalKWh += sw / 1000.0 * c.systemSizeKW
	}
	totalKWh *= derating

	return &domain.SolarForecast{
		GeneratedAt:   time.Now(),
		TotalKWh:      totalKWh,
		AvgCloudCover: avgCloudCover,
		AvgDNI:        mean(hourly.DirectNormalIrradiance),
		AvgDiffuse:    mean(hourly.DiffuseRadiation),
		Hourly:        hourly,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
