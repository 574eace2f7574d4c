package recording

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/biostream-core/internal/device"
	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/logbuf"
	"github.com/nerrad567/biostream-core/internal/sensor"
)

// savedPoint captures one SaveData call.
type savedPoint struct {
	ts        time.Time
	deviceID  string
	recording string
	category  string
	payload   any
}

// fakeSink records everything it is asked to persist.
type fakeSink struct {
	mu       sync.Mutex
	name     string
	enabled  bool
	init     InitState
	saved    []savedPoint
	stops    int
	sessions []string
}

func newFakeSink(name string) *fakeSink {
	return &fakeSink{name: name, enabled: true, init: InitSuccess}
}

func (f *fakeSink) Name() string           { return f.name }
func (f *fakeSink) Enabled() bool          { return f.enabled }
func (f *fakeSink) Initialized() InitState { return f.init }

func (f *fakeSink) SaveData(ts time.Time, deviceID, recordingName, category string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, savedPoint{ts, deviceID, recordingName, category, payload})
	return nil
}

func (f *fakeSink) StopSaving() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeSink) Cleanup() error { return nil }

func (f *fakeSink) StartSession(name string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, name)
	return nil
}

func (f *fakeSink) points() []savedPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]savedPoint(nil), f.saved...)
}

func (f *fakeSink) logCount(message string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, p := range f.saved {
		if p.category != sensor.CategoryLog {
			continue
		}
		if m, ok := p.payload.(map[string]string); ok && m["message"] == message {
			count++
		}
	}
	return count
}

// fakeStreams records supervisor calls.
type fakeStreams struct {
	mu      sync.Mutex
	started map[string]int
	dropped []string
	stopAll int
}

func newFakeStreams() *fakeStreams {
	return &fakeStreams{started: make(map[string]int)}
}

func (f *fakeStreams) StartDevice(_ context.Context, deviceID string, _ map[sensor.SignalType]sensor.SettingSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started[deviceID]++
}

func (f *fakeStreams) DropDevice(deviceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, deviceID)
}

func (f *fakeStreams) StopAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopAll++
}

func (f *fakeStreams) startCount(deviceID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started[deviceID]
}

// readyDevice walks a device to the ready state with HR capability.
func readyDevice(t *testing.T, reg *device.Registry, id string) {
	t.Helper()
	reg.MarkConnecting(id, "test-device")
	reg.MarkConnectedRaw(id, "test-device")
	if err := reg.BeginCapabilities(id); err != nil {
		t.Fatalf("BeginCapabilities(%s) error = %v", id, err)
	}
	if err := reg.BeginSettings(id); err != nil {
		t.Fatalf("BeginSettings(%s) error = %v", id, err)
	}
	caps := sensor.Capabilities{
		Signals: map[sensor.SignalType]sensor.SettingPair{sensor.SignalHR: {}},
	}
	if err := reg.SetReady(id, caps, sensor.Settings{}); err != nil {
		t.Fatalf("SetReady(%s) error = %v", id, err)
	}
}

func hrSelection(ids ...string) Selection {
	sel := make(Selection, len(ids))
	for _, id := range ids {
		sel[id] = map[sensor.SignalType]sensor.SettingSet{sensor.SignalHR: {}}
	}
	return sel
}

type sessionFixture struct {
	session *Session
	reg     *device.Registry
	streams *fakeStreams
	journal *logbuf.Buffer
	sink    *fakeSink
}

func newFixture(t *testing.T, sinks ...Sink) *sessionFixture {
	t.Helper()
	reg := device.NewRegistry()
	streams := newFakeStreams()
	journal := logbuf.New()
	t.Cleanup(journal.Close)

	var sink *fakeSink
	if len(sinks) == 0 {
		sink = newFakeSink("fake")
		sinks = []Sink{sink}
	} else if fs, ok := sinks[0].(*fakeSink); ok {
		sink = fs
	}

	cfg := config.RecorderConfig{StopOnDisconnect: true}
	return &sessionFixture{
		session: NewSession(reg, streams, journal, sinks, cfg),
		reg:     reg,
		streams: streams,
		journal: journal,
		sink:    sink,
	}
}

// sync waits until the journal dispatcher has presented all appends.
func (f *sessionFixture) sync() {
	<-f.journal.RequestFlush()
}

func TestStartPreconditions(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		f := newFixture(t)
		readyDevice(t, f.reg, "dev-1")
		err := f.session.Start(context.Background(), "", hrSelection("dev-1"))
		if !errors.Is(err, ErrEmptyName) {
			t.Errorf("error = %v, want ErrEmptyName", err)
		}
	})

	t.Run("already running", func(t *testing.T) {
		f := newFixture(t)
		readyDevice(t, f.reg, "dev-1")
		if err := f.session.Start(context.Background(), "first", hrSelection("dev-1")); err != nil {
			t.Fatalf("first Start() error = %v", err)
		}
		err := f.session.Start(context.Background(), "second", hrSelection("dev-1"))
		if !errors.Is(err, ErrAlreadyRunning) {
			t.Errorf("error = %v, want ErrAlreadyRunning", err)
		}
	})

	t.Run("no devices", func(t *testing.T) {
		f := newFixture(t)
		err := f.session.Start(context.Background(), "run", Selection{})
		if !errors.Is(err, ErrNoDevices) {
			t.Errorf("error = %v, want ErrNoDevices", err)
		}
	})

	t.Run("device not ready", func(t *testing.T) {
		f := newFixture(t)
		f.reg.MarkConnecting("dev-1", "test")
		err := f.session.Start(context.Background(), "run", hrSelection("dev-1"))
		if !errors.Is(err, ErrDeviceNotReady) {
			t.Errorf("error = %v, want ErrDeviceNotReady", err)
		}
	})

	t.Run("no sink enabled", func(t *testing.T) {
		sink := newFakeSink("fake")
		sink.enabled = false
		f := newFixture(t, sink)
		readyDevice(t, f.reg, "dev-1")
		err := f.session.Start(context.Background(), "run", hrSelection("dev-1"))
		if !errors.Is(err, ErrNoSinks) {
			t.Errorf("error = %v, want ErrNoSinks", err)
		}
	})

	t.Run("sink not initialized", func(t *testing.T) {
		sink := newFakeSink("fake")
		sink.init = InitPending
		f := newFixture(t, sink)
		readyDevice(t, f.reg, "dev-1")
		err := f.session.Start(context.Background(), "run", hrSelection("dev-1"))
		if !errors.Is(err, ErrSinkNotReady) {
			t.Errorf("error = %v, want ErrSinkNotReady", err)
		}
	})

	t.Run("failed start mutates nothing", func(t *testing.T) {
		f := newFixture(t)
		err := f.session.Start(context.Background(), "run", Selection{})
		if err == nil {
			t.Fatal("expected precondition failure")
		}
		if f.session.Running() {
			t.Error("Running() = true after failed start")
		}
		if f.streams.startCount("dev-1") != 0 {
			t.Error("streams started despite failed start")
		}
	})
}

func TestStartSeedsCacheAndOpensStreams(t *testing.T) {
	f := newFixture(t)
	readyDevice(t, f.reg, "dev-1")
	readyDevice(t, f.reg, "dev-2")

	if err := f.session.Start(context.Background(), "morning-run", hrSelection("dev-1", "dev-2")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !f.session.Running() {
		t.Fatal("Running() = false after Start()")
	}
	if f.session.Name() != "morning-run" {
		t.Errorf("Name() = %q, want morning-run", f.session.Name())
	}

	values := f.session.LastValues()
	for _, id := range []string{"dev-1", "dev-2"} {
		cache, ok := values[id]
		if !ok {
			t.Fatalf("last-value cache missing device %s", id)
		}
		if v, ok := cache[sensor.SignalHR]; !ok || v != nil {
			t.Errorf("cache[%s][HR] = %v, want seeded absent entry", id, v)
		}
		if f.streams.startCount(id) != 1 {
			t.Errorf("streams started for %s = %d, want 1", id, f.streams.startCount(id))
		}
	}

	f.sink.mu.Lock()
	sessions := append([]string(nil), f.sink.sessions...)
	f.sink.mu.Unlock()
	if len(sessions) != 1 || sessions[0] != "morning-run" {
		t.Errorf("sink sessions = %v, want [morning-run]", sessions)
	}
}

func TestIngestUpdatesCacheAndFansOut(t *testing.T) {
	second := newFakeSink("second")
	disabled := newFakeSink("disabled")
	disabled.enabled = false

	f := newFixture(t)
	f.session.sinks = append(f.session.sinks, second, disabled)
	readyDevice(t, f.reg, "dev-1")

	if err := f.session.Start(context.Background(), "run", hrSelection("dev-1")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	batch := sensor.HRBatch{Samples: []sensor.HRSample{{BPM: 72}}}
	f.session.Ingest("dev-1", batch)

	values := f.session.LastValues()
	if v := values["dev-1"][sensor.SignalHR]; v == nil || *v != 72 {
		t.Errorf("cache[dev-1][HR] = %v, want 72", v)
	}
	if _, ok := f.session.Timestamps()["dev-1"]; !ok {
		t.Error("no arrival timestamp recorded")
	}

	for _, sink := range []*fakeSink{f.sink, second} {
		var points []savedPoint
		for _, p := range sink.points() {
			if p.category == string(sensor.SignalHR) {
				points = append(points, p)
			}
		}
		if len(points) != 1 {
			t.Fatalf("sink %s HR points = %d, want 1", sink.name, len(points))
		}
		p := points[0]
		if p.deviceID != "dev-1" || p.recording != "run" {
			t.Errorf("sink %s point = %+v", sink.name, p)
		}
		if got, ok := p.payload.(sensor.HRBatch); !ok || got.Samples[0].BPM != 72 {
			t.Errorf("sink %s payload = %+v, want verbatim batch", sink.name, p.payload)
		}
	}

	if len(disabled.points()) != 0 {
		t.Error("disabled sink received data")
	}
}

func TestIngestIgnoredWhenNotRunning(t *testing.T) {
	f := newFixture(t)
	f.session.Ingest("dev-1", sensor.HRBatch{Samples: []sensor.HRSample{{BPM: 72}}})
	if len(f.sink.points()) != 0 {
		t.Error("ingest persisted data with no running session")
	}
}

func TestLogEntriesPersistedExactlyOnce(t *testing.T) {
	f := newFixture(t)
	readyDevice(t, f.reg, "dev-1")
	readyDevice(t, f.reg, "dev-2")

	if err := f.session.Start(context.Background(), "run", hrSelection("dev-1", "dev-2")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.journal.Infof("probe entry")
	f.sync()
	// A second flush with nothing new must not re-persist.
	f.sync()

	for _, id := range []string{"dev-1", "dev-2"} {
		count := 0
		for _, p := range f.sink.points() {
			if p.category == sensor.CategoryLog && p.deviceID == id {
				if m, ok := p.payload.(map[string]string); ok && m["message"] == "probe entry" {
					count++
				}
			}
		}
		if count != 1 {
			t.Errorf("probe entry persisted %d times for %s, want 1", count, id)
		}
	}
}

func TestStopFlushesLogsBeforeFinalize(t *testing.T) {
	f := newFixture(t)
	readyDevice(t, f.reg, "dev-1")

	if err := f.session.Start(context.Background(), "run", hrSelection("dev-1")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.journal.Infof("appended just before stop")

	if err := f.session.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if got := f.sink.logCount("appended just before stop"); got != 1 {
		t.Errorf("pre-stop entry persisted %d times, want 1", got)
	}

	f.sink.mu.Lock()
	stops := f.sink.stops
	f.sink.mu.Unlock()
	if stops != 1 {
		t.Errorf("StopSaving() calls = %d, want 1", stops)
	}

	f.streams.mu.Lock()
	stopAll := f.streams.stopAll
	f.streams.mu.Unlock()
	if stopAll != 1 {
		t.Errorf("StopAll() calls = %d, want 1", stopAll)
	}

	if f.session.Running() {
		t.Error("Running() = true after Stop()")
	}
	if len(f.session.Timestamps()) != 0 {
		t.Error("timestamps not cleared by Stop()")
	}

	// Last values survive for display.
	if _, ok := f.session.LastValues()["dev-1"]; !ok {
		t.Error("last-value cache cleared by Stop()")
	}
}

func TestStopWithoutRecording(t *testing.T) {
	f := newFixture(t)
	if err := f.session.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestPartialDisconnectKeepsSessionAlive(t *testing.T) {
	f := newFixture(t)
	readyDevice(t, f.reg, "dev-1")
	readyDevice(t, f.reg, "dev-2")

	if err := f.session.Start(context.Background(), "run", hrSelection("dev-1", "dev-2")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.reg.MarkDisconnected("dev-1")
	autoStopped := f.session.HandleDeviceDisconnected("dev-1")

	if autoStopped {
		t.Error("session auto-stopped on partial disconnect")
	}
	if !f.session.Running() {
		t.Error("Running() = false after partial disconnect")
	}
	f.streams.mu.Lock()
	dropped := append([]string(nil), f.streams.dropped...)
	f.streams.mu.Unlock()
	if len(dropped) != 1 || dropped[0] != "dev-1" {
		t.Errorf("dropped = %v, want [dev-1]", dropped)
	}
}

func TestFullDisconnectAutoStopsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	readyDevice(t, f.reg, "dev-1")

	if err := f.session.Start(context.Background(), "run", hrSelection("dev-1")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.reg.MarkDisconnected("dev-1")

	if !f.session.HandleDeviceDisconnected("dev-1") {
		t.Fatal("session did not auto-stop on full disconnect")
	}
	if f.session.Running() {
		t.Error("Running() = true after auto-stop")
	}

	// Replayed event must not stop twice.
	if f.session.HandleDeviceDisconnected("dev-1") {
		t.Error("second disconnect auto-stopped again")
	}

	f.sink.mu.Lock()
	stops := f.sink.stops
	f.sink.mu.Unlock()
	if stops != 1 {
		t.Errorf("StopSaving() calls = %d, want 1", stops)
	}
}

func TestAutoStopDisabledByPolicy(t *testing.T) {
	reg := device.NewRegistry()
	streams := newFakeStreams()
	journal := logbuf.New()
	t.Cleanup(journal.Close)
	sink := newFakeSink("fake")

	cfg := config.RecorderConfig{StopOnDisconnect: false}
	session := NewSession(reg, streams, journal, []Sink{sink}, cfg)

	readyDevice(t, reg, "dev-1")
	if err := session.Start(context.Background(), "run", hrSelection("dev-1")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	reg.MarkDisconnected("dev-1")
	if session.HandleDeviceDisconnected("dev-1") {
		t.Error("session auto-stopped with policy disabled")
	}
	if !session.Running() {
		t.Error("Running() = false with policy disabled")
	}
}

func TestReconnectRestoresStreams(t *testing.T) {
	f := newFixture(t)
	readyDevice(t, f.reg, "dev-1")
	readyDevice(t, f.reg, "dev-2")

	if err := f.session.Start(context.Background(), "run", hrSelection("dev-1", "dev-2")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.reg.MarkDisconnected("dev-1")
	f.session.HandleDeviceDisconnected("dev-1")

	// Reconnect and renegotiate.
	readyDevice(t, f.reg, "dev-1")
	f.session.HandleDeviceReady("dev-1")

	if got := f.streams.startCount("dev-1"); got != 2 {
		t.Errorf("StartDevice(dev-1) calls = %d, want 2 (initial + restore)", got)
	}
	if !f.session.Running() {
		t.Error("Running() = false after reconnect")
	}
}

func TestHandleDeviceReadyIgnoresUnselected(t *testing.T) {
	f := newFixture(t)
	readyDevice(t, f.reg, "dev-1")

	if err := f.session.Start(context.Background(), "run", hrSelection("dev-1")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	readyDevice(t, f.reg, "dev-9")
	f.session.HandleDeviceReady("dev-9")

	if got := f.streams.startCount("dev-9"); got != 0 {
		t.Errorf("StartDevice(dev-9) calls = %d, want 0", got)
	}
}
