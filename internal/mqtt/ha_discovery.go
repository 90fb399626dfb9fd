package mqtt

import (
	"fmt"

	"github.com/carlmjohnson/versioninfo"
	"go.uber.org/zap"
)

const (
	deviceId = "nightcharge_battery_control"

	sensorTypeSensor = "sensor"
	sensorTypeBinary = "binary_sensor"
)

// Sensor describes one entity this system exposes through MQTT discovery.
type Sensor struct {
	Id                string
	SensorType        string
	Name              string
	UnitOfMeasurement string
	DeviceClass       string
	StateClass        string
	Icon              string
}

// DeviceSensors lists every published value, one per value topic.
func DeviceSensors() []Sensor {
	return []Sensor{
		{
			Id: "required_charge_rate", SensorType: sensorTypeSensor,
			Name: "Required Charge Rate", UnitOfMeasurement: "W",
			DeviceClass: "power", StateClass: "measurement", Icon: "mdi:battery-charging",
		},
		{
			Id: "current_soc_percent", SensorType: sensorTypeSensor,
			Name: "Battery SOC", UnitOfMeasurement: "%",
			DeviceClass: "battery", StateClass: "measurement", Icon: "mdi:battery",
		},
		{
			Id: "total_deficit_kwh", SensorType: sensorTypeSensor,
			Name: "Total Energy Deficit", UnitOfMeasurement: "kWh",
			DeviceClass: "energy", Icon: "mdi:battery-minus",
		},
		{
			Id: "solar_forecast_kwh", SensorType: sensorTypeSensor,
			Name: "Solar Forecast", UnitOfMeasurement: "kWh",
			DeviceClass: "energy", Icon: "mdi:solar-power",
		},
		{
			Id: "predicted_power_need_kwh", SensorType: sensorTypeSensor,
			Name: "Predicted Power Need", UnitOfMeasurement: "kWh",
			DeviceClass: "energy", Icon: "mdi:home-lightning-bolt",
		},
		{
			Id: "battery_will_charge_overnight", SensorType: sensorTypeBinary,
			Name: "Battery Will Charge Overnight", Icon: "mdi:weather-night",
		},
		{
			Id: "currently_charging", SensorType: sensorTypeBinary,
			Name: "Currently Charging", DeviceClass: "battery_charging",
		},
	}
}

type HADiscoveryConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	StateTopic        string            `json:"state_topic"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	Platform          string            `json:"platform"`
	PayloadOn         string            `json:"payload_on,omitempty"`
	PayloadOff        string            `json:"payload_off,omitempty"`
	Icon              string            `json:"icon,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
}

func discoveryDevice() HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{deviceId},
		Name:         "Battery Forecast Charger",
		Manufacturer: "nightcharge",
		Model:        "Overnight Deficit Forecaster",
		Version:      versioninfo.Short(),
	}
}

func (c *Client) discoveryTopic(sensor Sensor) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", c.cfg.HADiscoveryTopic, sensor.SensorType, deviceId, sensor.Id)
}

func (c *Client) sensorToDiscoveryMessage(sensor Sensor) HADiscoveryConfig {
	msg := HADiscoveryConfig{
		Device:            discoveryDevice(),
		StateTopic:        c.ValueTopic(sensor.Id),
		StateClass:        sensor.StateClass,
		DeviceClass:       sensor.DeviceClass,
		UnitOfMeasurement: sensor.UnitOfMeasurement,
		Name:              sensor.Name,
		UniqueId:          fmt.Sprintf("%s_%s", deviceId, sensor.Id),
		Icon:              sensor.Icon,
		Platform:          "mqtt",
	}
	if sensor.SensorType == sensorTypeBinary {
		msg.PayloadOn = PayloadOn
		msg.PayloadOff = PayloadOff
	}
	return msg
}

// PublishDiscovery announces every sensor to Home Assistant. Failures are
// logged per sensor and do not stop the remaining announcements.
func (c *Client) PublishDiscovery() {
	for _, sensor := range DeviceSensors() {
		if err := c.Publish(c.discoveryTopic(sensor), c.sensorToDiscoveryMessage(sensor), 1, true); err != nil {
			c.logger.Error("failed to publish discovery config",
				zap.String("sensor", sensor.Id), zap.Error(err))
		}
	}
}
