package domain

import (
	"time"
)

// DateLayout is the canonical key format for per-day buckets.
const DateLayout = "2006-01-02"

type SensorKind int

const (
	SensorKindUnknown SensorKind = iota
	SensorKindPower
	SensorKindEnergy
	SensorKindSOC
)

func (k SensorKind) String() string {
	switch k {
	case SensorKindPower:
		return "power"
	case SensorKindEnergy:
		return "energy"
	case SensorKindSOC:
		return "soc"
	default:
		return "unknown"
	}
}

// SensorReading is a single timestamped sample from one entity.
// Readings are immutable once ingested.
type SensorReading struct {
	Entity      string
	Value       float64
	Time        time.Time
	Unit        string
	DeviceClass string
}

type SOCExtrema struct {
	Min float64
	Max float64
}

// DailyEnergy maps a DateLayout-formatted date to integrated energy in Wh.
type DailyEnergy map[string]float64

// AggregateResult is the output of the telemetry aggregator: per-entity daily
// energy totals, per-day SOC extrema, and the chronologically latest SOC value
// seen across the whole query range.
type AggregateResult struct {
	Energy    map[string]DailyEnergy
	SOC       map[string]SOCExtrema
	LatestSOC *float64
}

// ForecastRow is one joined training sample for the power-need regression.
// A row exists only for dates present in all three input series.
type ForecastRow struct {
	Date            time.Time
	BatteryChargeWh float64
	LoadConsumedWh  float64
	SOCMin          float64
	SOCMax          float64
	SOCDeltaKWh     float64
	PowerNeedWh     float64
	DayOfWeek       int
}

// SolarForecast is the derated production forecast for the coming horizon.
type SolarForecast struct {
	GeneratedAt   time.Time    `json:"generated_at"`
	TotalKWh      float64      `json:"total_solar_kwh"`
	AvgCloudCover float64      `json:"avg_cloud_cover"`
	AvgDNI        float64      `json:"avg_dni"`
	AvgDiffuse    float64      `json:"avg_diffuse"`
	Hourly        HourlySeries `json:"hourly"`
}

type HourlySeries struct {
	Time                    []string  `json:"time"`
	ShortwaveRadiation      []float64 `json:"shortwave_radiation"`
	CloudCover              []float64 `json:"cloud_cover"`
	DirectNormalIrradiance  []float64 `json:"direct_normal_irradiance"`
	DiffuseRadiation        []float64 `json:"diffuse_radiation"`
}

// SunTimes carries the next sunrise/sunset, used for display only.
type SunTimes struct {
	NextRising  *time.Time
	NextSetting *time.Time
	State       string
}

// ChargeDecision is the per-run decision artifact. It is recomputed on every
// run and never persisted.
type ChargeDecision struct {
	DeficitKWh   float64
	RateWatts    int
	ShouldCharge bool
	WindowStart  string
	WindowEnd    string
}

// ChargingState is the only durable record: whether we believe the inverter
// is currently forced into charge mode.
type ChargingState struct {
	CurrentlyCharging bool      `json:"currently_charging"`
	UpdatedAt         time.Time `json:"updated_at"`
}
