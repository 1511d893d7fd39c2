package influxdb

import (
	"math"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/meterdock/ediel-core/internal/timeseries"
)

// WriteReading records one interval reading for a meter channel. The
// write is batched and sent asynchronously. NaN values (masked or
// missing readings) are skipped: InfluxDB cannot store them, and the
// quality code travels as a tag on the points that do exist.
func (c *Client) WriteReading(device timeseries.DeviceKey, ts time.Time, value float64, quality string) {
	if !c.IsConnected() || math.IsNaN(value) {
		return
	}

	tags := map[string]string{
		"access_ean":  device.AccessEAN,
		"energy_type": device.EnergyType,
		"unit":        device.Unit,
	}
	if device.Serial != "" {
		tags["serial"] = device.Serial
	}
	if device.Direction != "" {
		tags["direction"] = device.Direction
	}
	if quality != "" {
		tags["quality"] = quality
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"interval_readings", tags,
		map[string]interface{}{"value": value}, ts))
}

// WriteRegisterReading records one register reading from a two-wire
// export, tagged with the meter's device name and unit.
func (c *Client) WriteRegisterReading(deviceName, unit string, ts time.Time, value float64) {
	if !c.IsConnected() || math.IsNaN(value) {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"register_readings",
		map[string]string{"device": deviceName, "unit": unit},
		map[string]interface{}{"value": value}, ts))
}

// WriteImportStats records the outcome of one processed export file,
// for monitoring ingestion throughput and failure rates.
func (c *Client) WriteImportStats(filename, family string, devices, readings int) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"imports",
		map[string]string{"family": family},
		map[string]interface{}{
			"filename": filename,
			"devices":  devices,
			"readings": readings,
		},
		time.Now()))
}
