// Package engine runs one complete decision cycle: aggregate history,
// forecast the overnight deficit, decide, actuate the inverter and report.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nightcharge/nightcharge/internal/cache"
	"github.com/nightcharge/nightcharge/internal/charge"
	"github.com/nightcharge/nightcharge/internal/config"
	"github.com/nightcharge/nightcharge/internal/domain"
	"github.com/nightcharge/nightcharge/internal/forecast"
	"github.com/nightcharge/nightcharge/internal/homeassistant"
	"github.com/nightcharge/nightcharge/internal/mqtt"
	"github.com/nightcharge/nightcharge/internal/telemetry"
	"github.com/nightcharge/nightcharge/pkg/fronius"

	"go.uber.org/zap"
)

// TelemetrySource is the upstream history/almanac API surface.
type TelemetrySource interface {
	GetConfig(ctx context.Context) (*homeassistant.InstanceConfig, error)
	FetchHistory(ctx context.Context, entities []string, start, end time.Time) []domain.SensorReading
	GetSunTimes(ctx context.Context) (*domain.SunTimes, error)
}

// SolarSource produces the solar production forecast.
type SolarSource interface {
	Forecast(ctx context.Context, latitude, longitude float64, timezone string) (*domain.SolarForecast, error)
}

// StateStore persists the charging state across runs and grants run-level
// mutual exclusion.
type StateStore interface {
	Load() bool
	Save(charging bool) error
	AcquireLock() (release func(), err error)
}

// StatusPublisher pushes the run outcome to the outbound telemetry channel.
type StatusPublisher interface {
	Connect() error
	Disconnect()
	PublishDiscovery()
	PublishReport(report mqtt.StatusReport)
}

type Deps struct {
	Telemetry TelemetrySource
	Solar     SolarSource
	Inverter  fronius.BatteryControl
	Store     StateStore
	// Publisher may be nil: the decision does not depend on reporting.
	Publisher StatusPublisher
	// HistoryCache may be nil to always fetch fresh history.
	HistoryCache *cache.File
	Logger       *zap.Logger
	Console      *slog.Logger
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

type Engine struct {
	cfg        *config.Config
	deps       Deps
	aggregator *telemetry.Aggregator
	forecaster *forecast.Forecaster
	controller *charge.Controller
	logger     *zap.Logger
	console    *slog.Logger
	now        func() time.Time
}

func New(cfg *config.Config, deps Deps) *Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	console := deps.Console
	if console == nil {
		console = slog.Default()
	}
	return &Engine{
		cfg:        cfg,
		deps:       deps,
		aggregator: telemetry.NewAggregator(deps.Logger),
		forecaster: forecast.NewForecaster(cfg.Battery, deps.Logger),
		controller: charge.NewController(deps.Inverter, deps.Logger),
		logger:     deps.Logger,
		console:    console,
		now:        now,
	}
}

// Run executes one decision-and-actuate cycle. On any unrecoverable error
// the run stops without mutating the durable charging state.
func (e *Engine) Run(ctx context.Context) error {
	release, err := e.deps.Store.AcquireLock()
	if err != nil {
		return fmt.Errorf("run lock: %w", err)
	}
	defer release()

	currentlyCharging := e.deps.Store.Load()
	e.logger.Info("loaded previous charging state", zap.Bool("currently_charging", currentlyCharging))

	instCfg, err := e.deps.Telemetry.GetConfig(ctx)
	if err != nil {
		return err
	}

	readings := e.fetchHistory(ctx)
	agg := e.aggregator.Aggregate(readings)
	rows := forecast.BuildRows(agg,
		e.cfg.HomeAssistant.BatteryChargeRateSensor,
		e.cfg.HomeAssistant.PowerUsageSensor,
		e.cfg.Battery.CapacityKWh)

	needKWh, err := e.forecaster.PredictNextDayNeedKWh(rows)
	if err != nil {
		return fmt.Errorf("forecast: %w", err)
	}

	solarForecast, err := e.deps.Solar.Forecast(ctx, instCfg.Latitude, instCfg.Longitude, instCfg.TimeZone)
	if err != nil {
		return err
	}

	currentSOC := 0.0
	if agg.LatestSOC != nil {
		currentSOC = *agg.LatestSOC
	} else {
		e.logger.Warn("no SOC reading found in history, assuming 0%")
	}

	breakdown, err := e.forecaster.Deficit(needKWh, solarForecast.TotalKWh, currentSOC)
	if err != nil {
		return err
	}

	// sunrise/sunset are display-only: a failure here never blocks the run
	sun, err := e.deps.Telemetry.GetSunTimes(ctx)
	if err != nil {
		e.logger.Warn("could not fetch sun almanac", zap.Error(err))
		sun = &domain.SunTimes{}
	}

	window, err := charge.NewWindow(e.cfg.ChargeWindow.Start, e.cfg.ChargeWindow.End)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	decision := charge.Decide(breakdown.TotalDeficitKWh, window, e.now())

	e.printSummary(breakdown, decision, sun)

	result, err := e.controller.Apply(decision, currentlyCharging)
	if err != nil {
		return err
	}
	if result.Changed {
		if err := e.deps.Store.Save(result.Charging); err != nil {
			return fmt.Errorf("persist charging state: %w", err)
		}
	}

	e.publish(breakdown, decision, result.Charging, solarForecast, sun)
	return nil
}

func (e *Engine) fetchHistory(ctx context.Context) []domain.SensorReading {
	var readings []domain.SensorReading
	if e.deps.HistoryCache != nil && e.deps.HistoryCache.Load(&readings) {
		e.logger.Info("using cached sensor history", zap.Int("readings", len(readings)))
		return readings
	}

	end := e.now()
	start := end.AddDate(0, 0, -e.cfg.HomeAssistant.HistoryDays)
	entities := []string{
		e.cfg.HomeAssistant.BatteryChargeRateSensor,
		e.cfg.HomeAssistant.BatterySOCSensor,
		e.cfg.HomeAssistant.PowerUsageSensor,
	}
	readings = e.deps.Telemetry.FetchHistory(ctx, entities, start, end)
	e.logger.Info("fetched sensor history", zap.Int("readings", len(readings)))

	if e.deps.HistoryCache != nil && len(readings) > 0 {
		if err := e.deps.HistoryCache.Store(readings); err != nil {
			e.logger.Warn("could not cache sensor history", zap.Error(err))
		}
	}
	return readings
}

func (e *Engine) printSummary(b *forecast.DeficitBreakdown, decision domain.ChargeDecision, sun *domain.SunTimes) {
	e.console.Info("forecast",
		"solar_kwh", fmt.Sprintf("%.2f", b.SolarKWh),
		"power_need_kwh", fmt.Sprintf("%.2f", b.PredictedNeedKWh),
		"current_soc", fmt.Sprintf("%.2f%% (%.2f kWh)", b.CurrentSOCPct, b.CurrentSOCKWh),
		"usable_soc_kwh", fmt.Sprintf("%.2f", b.UsableSOCKWh))
	if sun.NextSetting != nil {
		e.console.Info("next sunset", "at", sun.NextSetting.Format(time.RFC3339))
	}
	if b.SunsetDeficitKWh > 0 {
		e.console.Warn("battery below sunset target",
			"needed_kwh", fmt.Sprintf("%.2f", b.SunsetDeficitKWh))
	}
	if b.TotalDeficitKWh > 0 {
		e.console.Info("overnight charging required",
			"deficit_kwh", fmt.Sprintf("%.2f", b.TotalDeficitKWh),
			"rate_watts", decision.RateWatts,
			"window", fmt.Sprintf("%s to %s", decision.WindowStart, decision.WindowEnd))
		if !decision.ShouldCharge {
			e.console.Info("outside charging window, waiting for next occurrence")
		}
	} else {
		e.console.Info("solar production and current charge are sufficient, no overnight charging needed")
	}
}

func (e *Engine) publish(b *forecast.DeficitBreakdown, decision domain.ChargeDecision,
	charging bool, solarForecast *domain.SolarForecast, sun *domain.SunTimes) {
	if e.deps.Publisher == nil {
		return
	}
	if err := e.deps.Publisher.Connect(); err != nil {
		e.logger.Error("could not connect to MQTT broker, skipping report", zap.Error(err))
		return
	}
	defer e.deps.Publisher.Disconnect()

	if e.cfg.MQTT.HADiscoveryEnable {
		e.deps.Publisher.PublishDiscovery()
	}
	e.deps.Publisher.PublishReport(mqtt.StatusReport{
		Timestamp:                  e.now(),
		SolarForecast:              solarForecast,
		PredictedPowerNeedKWh:      b.PredictedNeedKWh,
		TotalDeficitKWh:            b.TotalDeficitKWh,
		CurrentSOCPercent:          b.CurrentSOCPct,
		SunriseTime:                sun.NextRising,
		SunsetTime:                 sun.NextSetting,
		SunState:                   sun.State,
		BatteryWillChargeOvernight: b.TotalDeficitKWh > 0,
		CurrentlyCharging:          charging,
		RequiredChargeRate:         decision.RateWatts,
		ChargingWindow:             mqtt.ChargingWindow{Start: decision.WindowStart, End: decision.WindowEnd},
	})
}
