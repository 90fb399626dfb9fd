package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level

	HomeAssistant HomeAssistantConfig `mapstructure:"home_assistant"`
	Battery       BatteryConfig       `mapstructure:"battery"`
	ChargeWindow  ChargeWindowConfig  `mapstructure:"charge_window"`
	Inverter      InverterConfig      `mapstructure:"inverter"`
	Cache         CacheConfig         `mapstructure:"cache"`
	MQTT          MQTTConfig          `mapstructure:"mqtt"`

	// DataDir holds the charging state record, the run lock and the fetch
	// caches.
	DataDir string `mapstructure:"data_dir"`
}

type HomeAssistantConfig struct {
	URL                     string `mapstructure:"url"`
	Token                   string `mapstructure:"token"`
	HistoryDays             int    `mapstructure:"history_days"`
	BatteryChargeRateSensor string `mapstructure:"battery_charge_rate_sensor"`
	BatterySOCSensor        string `mapstructure:"battery_soc_sensor"`
	PowerUsageSensor        string `mapstructure:"power_usage_sensor"`
}

type BatteryConfig struct {
	SystemSizeKW            float64 `mapstructure:"system_size_kw"`
	CapacityKWh             float64 `mapstructure:"capacity_kwh"`
	MinimumSOCPercent       float64 `mapstructure:"minimum_soc_percent"`
	MinimumSOCBySunset      float64 `mapstructure:"minimum_soc_by_sunset"`
	ChargeEfficiencyPercent float64 `mapstructure:"charge_efficiency_percent"`
	MaxChargeRateWatts      int     `mapstructure:"max_charge_rate_watts"`
}

// ChargeEfficiency returns the charge efficiency as a fraction in (0, 1].
func (b BatteryConfig) ChargeEfficiency() float64 {
	return b.ChargeEfficiencyPercent / 100.0
}

type ChargeWindowConfig struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

type InverterConfig struct {
	Host           string `mapstructure:"host"`
	Port           uint   `mapstructure:"port"`
	UnitId         uint   `mapstructure:"unit_id"`
	TimeoutSeconds uint   `mapstructure:"timeout_seconds"`
}

type CacheConfig struct {
	SolarForecastEnable     bool `mapstructure:"solar_forecast_enable"`
	SolarForecastTTLMinutes int  `mapstructure:"solar_forecast_ttl_minutes"`
	HistoryTTLHours         int  `mapstructure:"history_ttl_hours"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

// Validate checks bounds. It runs before any device interaction: a bad
// configuration must fail fast and never reach the inverter.
func (cfg *Config) Validate() error {
	if cfg.Battery.ChargeEfficiencyPercent <= 0 || cfg.Battery.ChargeEfficiencyPercent > 100 {
		return errors.New("config param battery.charge_efficiency_percent must be in (0, 100]")
	}
	if cfg.Battery.CapacityKWh <= 0 {
		return errors.New("config param battery.capacity_kwh must be > 0")
	}
	if cfg.Battery.SystemSizeKW <= 0 {
		return errors.New("config param battery.system_size_kw must be > 0")
	}
	if cfg.Battery.MaxChargeRateWatts <= 0 {
		return errors.New("config param battery.max_charge_rate_watts must be > 0")
	}
	if cfg.HomeAssistant.HistoryDays < 2 {
		return errors.New("config param home_assistant.history_days must be >= 2")
	}
	if _, err := ParseWallClock(cfg.ChargeWindow.Start); err != nil {
		return fmt.Errorf("config param charge_window.start: %w", err)
	}
	if _, err := ParseWallClock(cfg.ChargeWindow.End); err != nil {
		return fmt.Errorf("config param charge_window.end: %w", err)
	}
	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic
	if cfg.MQTT.HADiscoveryEnable {
		hadTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
		if err != nil {
			return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.HADiscoveryTopic = hadTopic
	}
	return nil
}

// ParseWallClock parses an "HH:MM" local wall-clock time.
func ParseWallClock(s string) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid wall-clock time %q: %w", s, err)
	}
	return t, nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
