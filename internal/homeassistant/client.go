// Package homeassistant is a thin client for the parts of the Home Assistant
// REST API this system consumes: sensor history, instance config and the sun
// almanac.
package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nightcharge/nightcharge/internal/config"
	"github.com/nightcharge/nightcharge/internal/domain"

	"go.uber.org/zap"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg config.HomeAssistantConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    cfg.URL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// InstanceConfig is the subset of /api/config this system needs to locate
// the PV installation for the irradiance forecast.
type InstanceConfig struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	TimeZone  string  `json:"time_zone"`
}

func (c *Client) GetConfig(ctx context.Context) (*InstanceConfig, error) {
	var cfg InstanceConfig
	if err := c.getJSON(ctx, "/api/config", &cfg); err != nil {
		return nil, fmt.Errorf("%w: home assistant config: %v", domain.ErrDataFetch, err)
	}
	return &cfg, nil
}

type historyEntry struct {
	EntityId    string `json:"entity_id"`
	State       string `json:"state"`
	LastUpdated string `json:"last_updated"`
	Attributes  struct {
		UnitOfMeasurement string `json:"unit_of_measurement"`
		DeviceClass       string `json:"device_class"`
	} `json:"attributes"`
}

// FetchHistory retrieves the raw state history for each entity over the time
// range. Per-entity failures are logged and skipped: a missing entity simply
// yields an empty series, it never aborts the whole aggregation.
func (c *Client) FetchHistory(ctx context.Context, entities []string, start, end time.Time) []domain.SensorReading {
	var readings []domain.SensorReading
	for _, entity := range entities {
		entityReadings, err := c.fetchEntityHistory(ctx, entity, start, end)
		if err != nil {
			c.logger.Error("error fetching history, skipping entity",
				zap.String("entity", entity), zap.Error(err))
			continue
		}
		readings = append(readings, entityReadings...)
	}
	return readings
}

func (c *Client) fetchEntityHistory(ctx context.Context, entity string, start, end time.Time) ([]domain.SensorReading, error) {
	path := fmt.Sprintf("/api/history/period/%s?filter_entity_id=%s&end_time=%s",
		url.PathEscape(start.Format(time.RFC3339)),
		url.QueryEscape(entity),
		url.QueryEscape(end.Format(time.RFC3339)))

	var lists [][]historyEntry
	if err := c.getJSON(ctx, path, &lists); err != nil {
		return nil, err
	}

	var readings []domain.SensorReading
	for _, list := range lists {
		for _, entry := range list {
			value, err := strconv.ParseFloat(entry.State, 64)
			if err != nil {
				// "unavailable", "unknown" and friends
				continue
			}
			ts, err := time.Parse(time.RFC3339, entry.LastUpdated)
			if err != nil {
				continue
			}
			readings = append(readings, domain.SensorReading{
				Entity:      entry.EntityId,
				Value:       value,
				Time:        ts,
				Unit:        entry.Attributes.UnitOfMeasurement,
				DeviceClass: entry.Attributes.DeviceClass,
			})
		}
	}
	return readings, nil
}

type sunState struct {
	State      string `json:"state"`
	Attributes struct {
		NextRising  string `json:"next_rising"`
		NextSetting string `json:"next_setting"`
	} `json:"attributes"`
}

// GetSunTimes fetches the next sunrise/sunset from the sun.sun entity. The
// result is used for display and telemetry only.
func (c *Client) GetSunTimes(ctx context.Context) (*domain.SunTimes, error) {
	var sun sunState
	if err := c.getJSON(ctx, "/api/states/sun.sun", &sun); err != nil {
		return nil, fmt.Errorf("%w: sun.sun state: %v", domain.ErrDataFetch, err)
	}
	times := &domain.SunTimes{State: sun.State}
	if t, err := time.Parse(time.RFC3339, sun.Attributes.NextRising); err == nil {
		times.NextRising = &t
	}
	if t, err := time.Parse(time.RFC3339, sun.Attributes.NextSetting); err == nil {
		times.NextSetting = &t
	}
	return times, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
