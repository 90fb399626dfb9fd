package telemetry

import (
	"strings"

	"github.com/nightcharge/nightcharge/internal/domain"
)

// Classify maps a reading's unit/device-class metadata to a SensorKind.
// Unrecognized combinations are SensorKindUnknown and are dropped by the
// aggregator. Bulk history queries routinely include irrelevant sensors, so
// an unknown kind is expected and not an error.
func Classify(unit string, deviceClass string) domain.SensorKind {
	switch {
	case strings.EqualFold(unit, "w") || deviceClass == "power":
		return domain.SensorKindPower
	case strings.EqualFold(unit, "wh") || deviceClass == "energy":
		return domain.SensorKindEnergy
	case unit == "%" || deviceClass == "battery":
		return domain.SensorKindSOC
	default:
		return domain.SensorKindUnknown
	}
}
