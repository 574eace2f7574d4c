package sink

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/recording"
	"github.com/nerrad567/biostream-core/internal/sensor"
)

type writtenSample struct {
	deviceID string
	signal   string
	value    float64
	ts       time.Time
}

type fakeSampleWriter struct {
	mu        sync.Mutex
	samples   []writtenSample
	flushes   int
	connected bool
}

func (f *fakeSampleWriter) WriteSample(deviceID, signal string, value float64, ts time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, writtenSample{deviceID, signal, value, ts})
}

func (f *fakeSampleWriter) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func (f *fakeSampleWriter) IsConnected() bool { return f.connected }

func TestInfluxSinkInitialization(t *testing.T) {
	tests := []struct {
		name string
		sink *Influx
		want recording.InitState
	}{
		{"disabled", NewInflux(config.InfluxSinkConfig{Enabled: false}, &fakeSampleWriter{connected: true}), recording.InitPending},
		{"enabled connected", NewInflux(config.InfluxSinkConfig{Enabled: true}, &fakeSampleWriter{connected: true}), recording.InitSuccess},
		{"enabled disconnected", NewInflux(config.InfluxSinkConfig{Enabled: true}, &fakeSampleWriter{connected: false}), recording.InitFailed},
		{"enabled nil writer", NewInflux(config.InfluxSinkConfig{Enabled: true}, nil), recording.InitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sink.Initialized(); got != tt.want {
				t.Errorf("Initialized() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInfluxSinkWritesScalarProjection(t *testing.T) {
	w := &fakeSampleWriter{connected: true}
	i := NewInflux(config.InfluxSinkConfig{Enabled: true}, w)

	ts := time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC)
	batch := sensor.HRBatch{Samples: []sensor.HRSample{{BPM: 68}, {BPM: 72}}}

	if err := i.SaveData(ts, "polar-123", "morning-run", "HR", batch); err != nil {
		t.Fatalf("SaveData() error = %v", err)
	}

	if len(w.samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(w.samples))
	}
	got := w.samples[0]
	if got.deviceID != "polar-123" || got.signal != "HR" {
		t.Errorf("unexpected sample: %+v", got)
	}
	if got.value != 72 {
		t.Errorf("value = %v, want most recent BPM 72", got.value)
	}
	if !got.ts.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got.ts, ts)
	}
}

func TestInfluxSinkSkipsNonScalarPayloads(t *testing.T) {
	w := &fakeSampleWriter{connected: true}
	i := NewInflux(config.InfluxSinkConfig{Enabled: true}, w)

	ts := time.Now()

	// Log entries are plain maps, not sample batches.
	if err := i.SaveData(ts, "polar-123", "run", "LOG", map[string]string{"message": "hi"}); err != nil {
		t.Fatalf("SaveData() error = %v", err)
	}
	// An empty batch has no scalar projection.
	if err := i.SaveData(ts, "polar-123", "run", "HR", sensor.HRBatch{}); err != nil {
		t.Fatalf("SaveData() error = %v", err)
	}

	if len(w.samples) != 0 {
		t.Errorf("got %d samples, want 0", len(w.samples))
	}
}

func TestInfluxSinkFlushesOnStop(t *testing.T) {
	w := &fakeSampleWriter{connected: true}
	i := NewInflux(config.InfluxSinkConfig{Enabled: true}, w)

	if err := i.StopSaving(); err != nil {
		t.Fatalf("StopSaving() error = %v", err)
	}
	if err := i.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if w.flushes != 2 {
		t.Errorf("got %d flushes, want 2", w.flushes)
	}
}
