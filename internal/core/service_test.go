package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/biostream-core/internal/device"
	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/logbuf"
	"github.com/nerrad567/biostream-core/internal/negotiate"
	"github.com/nerrad567/biostream-core/internal/recording"
	"github.com/nerrad567/biostream-core/internal/scan"
	"github.com/nerrad567/biostream-core/internal/sensor"
	"github.com/nerrad567/biostream-core/internal/stream"
)

// fakeTransport answers every query with a minimal heart-rate-capable
// device and exposes the event channel for tests to drive.
type fakeTransport struct {
	events chan sensor.Event

	mu           sync.Mutex
	connected    []string
	disconnected []string
	clockSets    []time.Time
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan sensor.Event, 16)}
}

func (f *fakeTransport) Scan(ctx context.Context) (<-chan sensor.Discovered, error) {
	ch := make(chan sensor.Discovered)
	close(ch)
	return ch, nil
}

func (f *fakeTransport) Connect(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = append(f.connected, id)
	return nil
}

func (f *fakeTransport) Disconnect(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, id)
	return nil
}

func (f *fakeTransport) Events() <-chan sensor.Event { return f.events }

func (f *fakeTransport) AvailableSignalTypes(ctx context.Context, id string) ([]sensor.SignalType, error) {
	return []sensor.SignalType{sensor.SignalHR}, nil
}

func (f *fakeTransport) SignalSettings(ctx context.Context, id string, sig sensor.SignalType) (sensor.SettingPair, error) {
	return sensor.SettingPair{}, nil
}

func (f *fakeTransport) Clock(ctx context.Context, id string) (time.Time, error) {
	return time.Time{}, nil
}

func (f *fakeTransport) SetClock(ctx context.Context, id string, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clockSets = append(f.clockSets, t)
	return nil
}

func (f *fakeTransport) StreamingMode(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (f *fakeTransport) SetStreamingMode(ctx context.Context, id string, enabled bool) error {
	return nil
}

func (f *fakeTransport) Subscribe(ctx context.Context, id string, sig sensor.SignalType, setting sensor.SettingSet) (<-chan sensor.Batch, <-chan error, error) {
	batches := make(chan sensor.Batch)
	errs := make(chan error)
	go func() {
		<-ctx.Done()
		close(batches)
	}()
	return batches, errs, nil
}

func (f *fakeTransport) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.disconnected)
}

type fixture struct {
	transport *fakeTransport
	service   *Service
	registry  *device.Registry
	journal   *logbuf.Buffer
	cancel    context.CancelFunc
	done      chan struct{}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.RecorderConfig{
		ReadinessWait:        20 * time.Millisecond,
		ReadinessPoll:        time.Millisecond,
		CapabilityAttempts:   2,
		CapabilityRetryDelay: time.Millisecond,
		StreamRetries:        3,
		ScanDuration:         50 * time.Millisecond,
		ScanInterval:         time.Hour,
		StopOnDisconnect:     true,
	}

	transport := newFakeTransport()
	registry := device.NewRegistry()
	journal := logbuf.New()
	negotiator := negotiate.New(transport, registry, journal, cfg)
	scanner := scan.New(transport, registry, journal, cfg)
	streams := stream.New(transport, journal, cfg)
	session := recording.NewSession(registry, streams, journal, nil, cfg)
	streams.SetIngestor(session)

	svc := New(transport, registry, negotiator, scanner, session, journal)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Run(ctx)
	}()

	f := &fixture{
		transport: transport,
		service:   svc,
		registry:  registry,
		journal:   journal,
		cancel:    cancel,
		done:      done,
	}
	t.Cleanup(func() {
		cancel()
		<-done
		journal.Close()
	})
	return f
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func (f *fixture) connectReadyDevice(t *testing.T, id string) {
	t.Helper()
	f.transport.events <- sensor.Event{Kind: sensor.EventConnecting, DeviceID: id, Name: "Polar"}
	f.transport.events <- sensor.Event{Kind: sensor.EventConnected, DeviceID: id, Name: "Polar"}
	f.transport.events <- sensor.Event{Kind: sensor.EventFeatureReady, DeviceID: id, Feature: sensor.FeatureDeviceInfo}
	waitFor(t, func() bool { return f.registry.IsReady(id) }, "device never became ready")
}

func TestConnectionLifecycleReachesReady(t *testing.T) {
	f := newFixture(t)
	f.connectReadyDevice(t, "polar-123")

	d, err := f.service.Device("polar-123")
	if err != nil {
		t.Fatalf("Device() error = %v", err)
	}
	if d.State != device.StateReady {
		t.Errorf("state = %v, want ready", d.State)
	}

	caps, err := f.service.GetCapabilities("polar-123")
	if err != nil {
		t.Fatalf("GetCapabilities() error = %v", err)
	}
	if _, ok := caps.Signals[sensor.SignalHR]; !ok {
		t.Error("negotiated capabilities missing HR")
	}
}

func TestBatteryAndFirmwareEvents(t *testing.T) {
	f := newFixture(t)
	f.connectReadyDevice(t, "polar-123")

	f.transport.events <- sensor.Event{Kind: sensor.EventBattery, DeviceID: "polar-123", Battery: 84}
	f.transport.events <- sensor.Event{
		Kind:        sensor.EventDeviceNotice,
		DeviceID:    "polar-123",
		NoticeKey:   sensor.NoticeFirmwareVersion,
		NoticeValue: "5.1.0",
	}

	waitFor(t, func() bool {
		d, err := f.registry.Get("polar-123")
		return err == nil && d.BatteryLevel != nil && *d.BatteryLevel == 84 && d.FirmwareVersion == "5.1.0"
	}, "battery/firmware never recorded")
}

func TestGetCapabilitiesBeforeNegotiation(t *testing.T) {
	f := newFixture(t)

	f.transport.events <- sensor.Event{Kind: sensor.EventConnecting, DeviceID: "polar-123"}
	waitFor(t, func() bool {
		_, err := f.registry.Get("polar-123")
		return err == nil
	}, "device never registered")

	if _, err := f.service.GetCapabilities("polar-123"); err == nil {
		t.Error("GetCapabilities() before negotiation should fail")
	}
	if _, err := f.service.GetSettings("polar-123"); err == nil {
		t.Error("GetSettings() before negotiation should fail")
	}
}

func TestDisconnectMarksExpected(t *testing.T) {
	f := newFixture(t)
	f.connectReadyDevice(t, "polar-123")

	if err := f.service.Disconnect("polar-123"); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if f.transport.disconnectCount() != 1 {
		t.Fatal("transport disconnect not issued")
	}

	f.transport.events <- sensor.Event{Kind: sensor.EventDisconnected, DeviceID: "polar-123"}
	waitFor(t, func() bool {
		d, _ := f.registry.Get("polar-123")
		return d.State == device.StateDisconnected
	}, "device never disconnected")

	// An expected disconnect is not journaled as an anomaly.
	for _, e := range f.journal.Entries() {
		if e.Kind == logbuf.KindError {
			t.Errorf("unexpected error entry: %s", e.Message)
		}
	}
}

func TestUnexpectedDisconnectIsJournaled(t *testing.T) {
	f := newFixture(t)
	f.connectReadyDevice(t, "polar-123")

	f.transport.events <- sensor.Event{Kind: sensor.EventDisconnected, DeviceID: "polar-123"}
	waitFor(t, func() bool {
		for _, e := range f.journal.Entries() {
			if e.Kind == logbuf.KindError {
				return true
			}
		}
		return false
	}, "anomaly never journaled")
}

func TestDisconnectAll(t *testing.T) {
	f := newFixture(t)
	f.connectReadyDevice(t, "polar-123")
	f.connectReadyDevice(t, "polar-456")

	f.service.DisconnectAll()
	if got := f.transport.disconnectCount(); got != 2 {
		t.Errorf("got %d transport disconnects, want 2", got)
	}
}

func TestRadioStateTracked(t *testing.T) {
	f := newFixture(t)

	if !f.service.RadioEnabled() {
		t.Fatal("radio should default to enabled")
	}
	f.transport.events <- sensor.Event{Kind: sensor.EventRadioState, RadioEnabled: false}
	waitFor(t, func() bool { return !f.service.RadioEnabled() }, "radio state never updated")
}

func TestSetClockJournals(t *testing.T) {
	f := newFixture(t)
	f.connectReadyDevice(t, "polar-123")

	if err := f.service.SetClock(context.Background(), "polar-123", time.Now()); err != nil {
		t.Fatalf("SetClock() error = %v", err)
	}
	if len(f.transport.clockSets) != 1 {
		t.Error("clock write not issued to transport")
	}
}

type capturedNotification struct {
	kind string
	id   string
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []capturedNotification
}

func (n *fakeNotifier) DeviceChanged(d device.Device) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, capturedNotification{"device", d.ID})
}

func (n *fakeNotifier) RecordingChanged(running bool, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, capturedNotification{"recording", name})
}

func (n *fakeNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.kind == kind {
			c++
		}
	}
	return c
}

func TestNotifierObservesLifecycle(t *testing.T) {
	f := newFixture(t)
	notifier := &fakeNotifier{}
	f.service.SetNotifier(notifier)

	f.connectReadyDevice(t, "polar-123")
	waitFor(t, func() bool { return notifier.count("device") >= 2 }, "device notifications never delivered")
}
