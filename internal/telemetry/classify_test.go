package telemetry

import (
	"testing"

	"github.com/nightcharge/nightcharge/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestClassifyKnownUnits(t *testing.T) {
	cases := []struct {
		unit        string
		deviceClass string
		expected    domain.SensorKind
	}{
		{"W", "", domain.SensorKindPower},
		{"w", "", domain.SensorKindPower},
		{"", "power", domain.SensorKindPower},
		{"Wh", "", domain.SensorKindEnergy},
		{"wh", "", domain.SensorKindEnergy},
		{"", "energy", domain.SensorKindEnergy},
		{"%", "", domain.SensorKindSOC},
		{"", "battery", domain.SensorKindSOC},
		{"%", "battery", domain.SensorKindSOC},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, Classify(c.unit, c.deviceClass),
			"unit=%q deviceClass=%q", c.unit, c.deviceClass)
	}
}

func TestClassifyUnknown(t *testing.T) {
	assert.Equal(t, domain.SensorKindUnknown, Classify("", ""))
	assert.Equal(t, domain.SensorKindUnknown, Classify("°C", "temperature"))
	assert.Equal(t, domain.SensorKindUnknown, Classify("lx", "illuminance"))
	assert.Equal(t, domain.SensorKindUnknown, Classify("V", "voltage"))
	assert.Equal(t, domain.SensorKindUnknown, Classify("kWh", ""))
}

func TestSensorKindString(t *testing.T) {
	assert.Equal(t, "power", domain.SensorKindPower.String())
	assert.Equal(t, "energy", domain.SensorKindEnergy.String())
	assert.Equal(t, "soc", domain.SensorKindSOC.String())
	assert.Equal(t, "unknown", domain.SensorKindUnknown.String())
}
