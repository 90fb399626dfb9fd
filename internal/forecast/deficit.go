package forecast

import (
	"fmt"

	"github.com/nightcharge/nightcharge/internal/config"
	"github.com/nightcharge/nightcharge/internal/domain"

	"go.uber.org/zap"
)

// Forecaster predicts next-day power need from history and turns it into a
// signed grid-energy deficit. A positive deficit means grid charging is
// required; zero or negative means solar plus existing charge suffice.
type Forecaster struct {
	battery config.BatteryConfig
	logger  *zap.Logger
}

func NewForecaster(battery config.BatteryConfig, logger *zap.Logger) *Forecaster {
	return &Forecaster{battery: battery, logger: logger}
}

// DeficitBreakdown is the single deficit computation, exposed with all of its
// intermediate terms so display and decision always agree.
type DeficitBreakdown struct {
	PredictedNeedKWh float64
	SolarKWh         float64
	CurrentSOCPct    float64
	CurrentSOCKWh    float64
	UsableSOCKWh     float64
	SunsetTargetKWh  float64
	SunsetDeficitKWh float64
	TotalDeficitKWh  float64
}

// PredictNextDayNeedKWh fits the day-of-week regression and predicts the
// power need for the day after the latest training row.
func (f *Forecaster) PredictNextDayNeedKWh(rows []domain.ForecastRow) (float64, error) {
	reg, err := FitPowerNeed(rows)
	if err != nil {
		return 0, err
	}
	latest := rows[0].Date
	for _, r := range rows[1:] {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}
	nextDay := latest.AddDate(0, 0, 1)
	needWh := reg.PredictWh(int(nextDay.Weekday()))

	f.logger.Debug("fitted power-need regression",
		zap.Float64("intercept_wh", reg.Intercept),
		zap.Float64("slope_wh", reg.Slope),
		zap.Int("rows", len(rows)),
		zap.Time("next_day", nextDay))

	return needWh / 1000.0, nil
}

// Deficit computes the grid-energy shortfall for the coming night:
//
//	deficit = need − (solar + usable SOC above minimum) + sunset top-up
//
// then divides by the battery charge efficiency, since every kWh stored
// requires more than one kWh from the grid.
func (f *Forecaster) Deficit(predictedNeedKWh, solarKWh, currentSOCPct float64) (*DeficitBreakdown, error) {
	efficiency := f.battery.ChargeEfficiency()
	if efficiency <= 0 {
		return nil, fmt.Errorf("%w: battery charge efficiency must be > 0", domain.ErrConfiguration)
	}

	capacity := f.battery.CapacityKWh

	currentSOCKWh := currentSOCPct / 100.0 * capacity
	usableSOCPct := max(currentSOCPct-f.battery.MinimumSOCPercent, 0)
	usableSOCKWh := usableSOCPct / 100.0 * capacity
	sunsetTargetKWh := f.battery.MinimumSOCBySunset / 100.0 * capacity
	sunsetDeficitKWh := max(sunsetTargetKWh-currentSOCKWh, 0)

	total := predictedNeedKWh - (solarKWh + usableSOCKWh) + sunsetDeficitKWh
	total /= efficiency

	return &DeficitBreakdown{
		PredictedNeedKWh: predictedNeedKWh,
		SolarKWh:         solarKWh,
		CurrentSOCPct:    currentSOCPct,
		CurrentSOCKWh:    currentSOCKWh,
		UsableSOCKWh:     usableSOCKWh,
		SunsetTargetKWh:  sunsetTargetKWh,
		SunsetDeficitKWh: sunsetDeficitKWh,
		TotalDeficitKWh:  total,
	}, nil
}
