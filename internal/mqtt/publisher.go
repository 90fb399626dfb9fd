package mqtt

import (
	"fmt"
	"time"

	"github.com/nightcharge/nightcharge/internal/domain"

	"go.uber.org/zap"
)

// StatusReport is the full run outcome published to the status topic, plus
// the per-value topics Home Assistant sensors consume.
type StatusReport struct {
	Timestamp                  time.Time             `json:"timestamp"`
	SolarForecast              *domain.SolarForecast `json:"solar_forecast,omitempty"`
	PredictedPowerNeedKWh      float64               `json:"predicted_power_need_kwh"`
	TotalDeficitKWh            float64               `json:"total_deficit_kwh"`
	CurrentSOCPercent          float64               `json:"current_soc"`
	SunriseTime                *time.Time            `json:"sunrise_time,omitempty"`
	SunsetTime                 *time.Time            `json:"sunset_time,omitempty"`
	SunState                   string                `json:"sun_state,omitempty"`
	BatteryWillChargeOvernight bool                  `json:"battery_will_charge_overnight"`
	CurrentlyCharging          bool                  `json:"currently_charging"`
	RequiredChargeRate         int                   `json:"required_charge_rate"`
	ChargingWindow             ChargingWindow        `json:"charging_window"`
}

type ChargingWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// PublishReport publishes the structured status payload and the individual
// value topics. Every publish is best effort: failures are logged and the
// rest of the report still goes out.
func (c *Client) PublishReport(report StatusReport) {
	if err := c.Publish(c.StatusTopic(), report, 1, true); err != nil {
		c.logger.Error("failed to publish status report", zap.Error(err))
	}

	var solarKWh float64
	if report.SolarForecast != nil {
		solarKWh = report.SolarForecast.TotalKWh
	}
	values := map[string]string{
		"solar_forecast_kwh":            fmt.Sprintf("%.2f", solarKWh),
		"predicted_power_need_kwh":      fmt.Sprintf("%.2f", report.PredictedPowerNeedKWh),
		"current_soc_percent":           fmt.Sprintf("%.2f", report.CurrentSOCPercent),
		"total_deficit_kwh":             fmt.Sprintf("%.2f", report.TotalDeficitKWh),
		"required_charge_rate":          fmt.Sprintf("%d", report.RequiredChargeRate),
		"battery_will_charge_overnight": BoolPayload(report.BatteryWillChargeOvernight),
		"currently_charging":            BoolPayload(report.CurrentlyCharging),
	}
	for key, value := range values {
		if err := c.Publish(c.ValueTopic(key), value, 1, true); err != nil {
			c.logger.Error("failed to publish value", zap.String("topic", key), zap.Error(err))
		}
	}
}
