package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nightcharge/nightcharge/internal/cache"
	"github.com/nightcharge/nightcharge/internal/config"
	"github.com/nightcharge/nightcharge/internal/engine"
	"github.com/nightcharge/nightcharge/internal/homeassistant"
	"github.com/nightcharge/nightcharge/internal/meteo"
	"github.com/nightcharge/nightcharge/internal/mqtt"
	"github.com/nightcharge/nightcharge/internal/statestore"
	"github.com/nightcharge/nightcharge/internal/util"
	"github.com/nightcharge/nightcharge/pkg/fronius"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	console := util.NewConsoleLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.New(cfg, buildDeps(cfg, logger, console))
	if err := eng.Run(ctx); err != nil {
		logger.Error("run failed", zap.Error(err))
		console.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func buildDeps(cfg *config.Config, logger *zap.Logger, console *slog.Logger) engine.Deps {
	var solarCache *cache.File
	if cfg.Cache.SolarForecastEnable {
		solarCache = cache.NewFile(
			filepath.Join(cfg.DataDir, "solar_forecast.json"),
			time.Duration(cfg.Cache.SolarForecastTTLMinutes)*time.Minute,
			util.ComponentLogger("cache", logger))
	}
	var historyCache *cache.File
	if cfg.Cache.HistoryTTLHours > 0 {
		historyCache = cache.NewFile(
			filepath.Join(cfg.DataDir, "sensor_history.json"),
			time.Duration(cfg.Cache.HistoryTTLHours)*time.Hour,
			util.ComponentLogger("cache", logger))
	}

	var publisher engine.StatusPublisher
	if cfg.MQTT.Host != "" {
		publisher = mqtt.NewClient(cfg.MQTT, util.ComponentLogger("mqtt", logger))
	}

	inverter := fronius.NewClient(cfg.Inverter.Host, cfg.Inverter.Port,
		uint8(cfg.Inverter.UnitId),
		time.Duration(cfg.Inverter.TimeoutSeconds)*time.Second,
		cfg.Battery.MaxChargeRateWatts,
		util.ComponentLogger("fronius", logger))

	return engine.Deps{
		Telemetry: homeassistant.NewClient(cfg.HomeAssistant, util.ComponentLogger("homeassistant", logger)),
		Solar: meteo.NewClient(meteo.DefaultBaseURL, cfg.Battery.SystemSizeKW,
			solarCache, util.ComponentLogger("meteo", logger)),
		Inverter:     inverter,
		Store:        statestore.New(cfg.DataDir, util.ComponentLogger("statestore", logger)),
		Publisher:    publisher,
		HistoryCache: historyCache,
		Logger:       logger,
		Console:      console,
	}
}

func initConfig() (*config.Config, error) {

	setConfigDefaults()

	viper.SetEnvPrefix("nightcharge")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("data_dir", "/data")
	viper.SetDefault("home_assistant.url", "http://homeassistant.local:8123")
	viper.SetDefault("home_assistant.history_days", 30)
	viper.SetDefault("home_assistant.battery_charge_rate_sensor", "sensor.byd_battery_box_premium_hv_battery_charge_rate")
	viper.SetDefault("home_assistant.battery_soc_sensor", "sensor.byd_battery_box_premium_hv_state_of_charge")
	viper.SetDefault("home_assistant.power_usage_sensor", "sensor.power_load_consumed")
	viper.SetDefault("battery.system_size_kw", 5.0)
	viper.SetDefault("battery.capacity_kwh", 10.0)
	viper.SetDefault("battery.minimum_soc_percent", 20.0)
	viper.SetDefault("battery.minimum_soc_by_sunset", 0.0)
	viper.SetDefault("battery.charge_efficiency_percent", 95.0)
	viper.SetDefault("battery.max_charge_rate_watts", 5000)
	viper.SetDefault("charge_window.start", "23:00")
	viper.SetDefault("charge_window.end", "06:00")
	viper.SetDefault("inverter.port", 502)
	viper.SetDefault("inverter.unit_id", 1)
	viper.SetDefault("inverter.timeout_seconds", 5)
	viper.SetDefault("cache.solar_forecast_enable", true)
	viper.SetDefault("cache.solar_forecast_ttl_minutes", 120)
	viper.SetDefault("cache.history_ttl_hours", 12)
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.base_topic", "nightcharge")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
}

func safePrintConfig(cfg config.Config) {
	cfg.HomeAssistant.Token = "*redacted*"
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
