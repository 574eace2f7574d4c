package scan

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

// fakeTransport implements sensor.Transport for discovery tests. Each
// Scan call hands back a fresh channel; the test controls what flows
// through it. The channel is closed when the cycle context ends.
type fakeTransport struct {
	mu       sync.Mutex
	scanErr  error
	feeds    []chan sensor.Discovered
	contexts []context.Context
}

func (f *fakeTransport) Scan(ctx context.Context) (<-chan sensor.Discovered, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	ch := make(chan sensor.Discovered, 8)
	f.feeds = append(f.feeds, ch)
	f.contexts = append(f.contexts, ctx)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (f *fakeTransport) feed(i int) chan sensor.Discovered {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feeds[i]
}

func (f *fakeTransport) cycleCtx(i int) context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contexts[i]
}

func (f *fakeTransport) scanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.feeds)
}

func (f *fakeTransport) Connect(string) error        { return nil }
func (f *fakeTransport) Disconnect(string) error     { return nil }
func (f *fakeTransport) Events() <-chan sensor.Event { return nil }

func (f *fakeTransport) AvailableSignalTypes(context.Context, string) ([]sensor.SignalType, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTransport) SignalSettings(context.Context, string, sensor.SignalType) (sensor.SettingPair, error) {
	return sensor.SettingPair{}, errors.New("not implemented")
}

func (f *fakeTransport) Clock(context.Context, string) (time.Time, error) {
	return time.Time{}, errors.New("not implemented")
}

func (f *fakeTransport) SetClock(context.Context, string, time.Time) error { return nil }

func (f *fakeTransport) StreamingMode(context.Context, string) (bool, error) {
	return false, errors.New("not implemented")
}

func (f *fakeTransport) SetStreamingMode(context.Context, string, bool) error { return nil }

func (f *fakeTransport) Subscribe(context.Context, string, sensor.SignalType, sensor.SettingSet) (<-chan sensor.Batch, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

// captureLogger records warning messages for assertions.
type captureLogger struct {
	mu    sync.Mutex
	warns []string
}

func (c *captureLogger) Debug(string, ...any) {}
func (c *captureLogger) Info(string, ...any)  {}
func (c *captureLogger) Error(string, ...any) {}

func (c *captureLogger) Warn(msg string, _ ...any) {
	c.mu.Lock()
	c.warns = append(c.warns, msg)
	c.mu.Unlock()
}

func (c *captureLogger) warnCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.warns)
}

func testCfg() config.RecorderConfig {
	return config.RecorderConfig{
		ScanDuration: 100 * time.Millisecond,
		ScanInterval: 50 * time.Millisecond,
	}
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeTransport, *device.Registry) {
	t.Helper()
	transport := &fakeTransport{}
	reg := device.NewRegistry()
	journal := logbuf.New()
	t.Cleanup(journal.Close)
	return New(transport, reg, journal, testCfg()), transport, reg
}

func TestScanRecordsDiscoveredDevices(t *testing.T) {
	s, transport, reg := newTestScheduler(t)

	if err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !s.Refreshing() {
		t.Error("Refreshing() = false during cycle")
	}

	transport.feed(0) <- sensor.Discovered{ID: "dev-1", Name: "Sensor A", RSSI: -60}
	transport.feed(0) <- sensor.Discovered{ID: "dev-2", Name: "Sensor B", RSSI: -72}

	s.Wait()

	if s.Refreshing() {
		t.Error("Refreshing() = true after cycle completed")
	}

	for _, id := range []string{"dev-1", "dev-2"} {
		dev, err := reg.Get(id)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", id, err)
		}
		if dev.State != device.StateDiscovered {
			t.Errorf("state(%s) = %v, want discovered", id, dev.State)
		}
	}
}

func TestScanSupersedesInFlightCycle(t *testing.T) {
	s, transport, _ := newTestScheduler(t)

	if err := s.Scan(context.Background()); err != nil {
		t.Fatalf("first Scan() error = %v", err)
	}
	if err := s.Scan(context.Background()); err != nil {
		t.Fatalf("second Scan() error = %v", err)
	}

	// The first cycle's context must be cancelled by the supersession.
	select {
	case <-transport.cycleCtx(0).Done():
	case <-time.After(time.Second):
		t.Fatal("first cycle not cancelled by second Scan()")
	}

	// The second cycle is still the active one.
	if !s.Refreshing() {
		t.Error("Refreshing() = false while superseding cycle active")
	}

	s.StopPeriodic() // cancels the in-flight cycle
	s.Wait()
}

func TestScanErrorSurfacesAndClearsFlag(t *testing.T) {
	s, transport, _ := newTestScheduler(t)
	transport.scanErr = errors.New("radio off")

	if err := s.Scan(context.Background()); err == nil {
		t.Fatal("Scan() should surface transport error")
	}
	if s.Refreshing() {
		t.Error("Refreshing() = true after failed scan start")
	}
}

func TestStartPeriodicWhileActiveWarns(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	logger := &captureLogger{}
	s.SetLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.StartPeriodic(ctx)
	defer s.StopPeriodic()

	if !s.PeriodicActive() {
		t.Fatal("PeriodicActive() = false after StartPeriodic()")
	}

	s.StartPeriodic(ctx)
	if logger.warnCount() != 1 {
		t.Errorf("warnings = %d, want 1 for duplicate StartPeriodic()", logger.warnCount())
	}
}

func TestPeriodicRetriggersCycles(t *testing.T) {
	s, transport, _ := newTestScheduler(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.StartPeriodic(ctx)
	defer s.StopPeriodic()

	// Immediate cycle plus at least one timer-driven retrigger.
	deadline := time.After(2 * time.Second)
	for transport.scanCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("scan cycles = %d, want >= 2", transport.scanCount())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStopPeriodicCancelsTimerAndCycle(t *testing.T) {
	s, transport, _ := newTestScheduler(t)

	s.StartPeriodic(context.Background())

	// Wait for the immediate cycle to open.
	deadline := time.After(time.Second)
	for transport.scanCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("immediate cycle never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.StopPeriodic()
	s.Wait()

	if s.PeriodicActive() {
		t.Error("PeriodicActive() = true after StopPeriodic()")
	}
	if s.Refreshing() {
		t.Error("Refreshing() = true after StopPeriodic()")
	}

	// No further cycles after stopping.
	count := transport.scanCount()
	time.Sleep(120 * time.Millisecond)
	if transport.scanCount() != count {
		t.Errorf("cycles continued after StopPeriodic(): %d -> %d", count, transport.scanCount())
	}
}
