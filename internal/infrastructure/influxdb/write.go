package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSample queues one scalar sample for the samples measurement,
// tagged by device and signal. Non-blocking; the point rides the next
// batch flush. Dropped silently when the client is not connected, so a
// down mirror never interrupts a recording.
func (c *Client) WriteSample(deviceID string, signal string, value float64, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"samples",
		map[string]string{
			"device_id": deviceID,
			"signal":    signal,
		},
		map[string]any{
			"value": value,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteBattery queues a battery level reading (0-100 percent) for the
// battery measurement.
func (c *Client) WriteBattery(deviceID string, level int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"battery",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]any{
			"level": level,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
