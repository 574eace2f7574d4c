package sink

import (
	"time"

	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/recording"
	"github.com/nerrad567/biostream-core/internal/sensor"
)

// SampleWriter is the time-series surface the Influx sink needs.
// Satisfied by *influxdb.Client.
type SampleWriter interface {
	WriteSample(deviceID string, signal string, value float64, timestamp time.Time)
	Flush()
	IsConnected() bool
}

// Influx writes scalar projections of sample batches to the time-series
// database. Payloads with no scalar form, log entries included, are
// skipped. Writes are batched by the client and flushed when the
// session stops.
type Influx struct {
	cfg    config.InfluxSinkConfig
	writer SampleWriter
}

// NewInflux creates the Influx sink over a connected client.
func NewInflux(cfg config.InfluxSinkConfig, writer SampleWriter) *Influx {
	return &Influx{cfg: cfg, writer: writer}
}

// Name identifies the sink in logs.
func (i *Influx) Name() string { return "influx" }

// Enabled reports whether the sink participates in sessions.
func (i *Influx) Enabled() bool { return i.cfg.Enabled }

// Initialized reports readiness based on the client connection.
func (i *Influx) Initialized() recording.InitState {
	if !i.cfg.Enabled {
		return recording.InitPending
	}
	if i.writer == nil || !i.writer.IsConnected() {
		return recording.InitFailed
	}
	return recording.InitSuccess
}

// SaveData writes the batch's scalar projection, if it has one.
// Multi-axis and waveform batches without a meaningful single value are
// dropped here; the file and database sinks keep the full payload.
func (i *Influx) SaveData(ts time.Time, deviceID, recordingName, category string, payload any) error {
	batch, ok := payload.(sensor.Batch)
	if !ok {
		return nil
	}
	value, ok := sensor.Scalar(batch)
	if !ok {
		return nil
	}
	i.writer.WriteSample(deviceID, string(batch.Signal()), value, ts)
	return nil
}

// StopSaving flushes buffered points so the session's data is durable.
func (i *Influx) StopSaving() error {
	i.writer.Flush()
	return nil
}

// Cleanup flushes any remaining buffered points.
func (i *Influx) Cleanup() error {
	i.writer.Flush()
	return nil
}
