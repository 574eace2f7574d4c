package stream

import (
	"context"
	"sort"
	"sync"

	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/logbuf"
	"github.com/nerrad567/biostream-core/internal/sensor"
)

// Logger defines the logging interface used by the Supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Ingestor receives every batch a supervised stream delivers. The
// recording session implements this; the indirection breaks the
// construction cycle between the two.
type Ingestor interface {
	Ingest(deviceID string, batch sensor.Batch)
}

// handle represents one live (device, signal) subscription.
type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns the per-(device,signal) subscription table. At most one
// subscription exists per key; each runs in its own goroutine with a
// bounded resubscribe retry.
type Supervisor struct {
	transport sensor.Transport
	journal   *logbuf.Buffer
	cfg       config.RecorderConfig

	mu      sync.Mutex
	streams map[string]map[sensor.SignalType]*handle

	ingestor   Ingestor
	ingestorMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a Supervisor.
func New(transport sensor.Transport, journal *logbuf.Buffer, cfg config.RecorderConfig) *Supervisor {
	return &Supervisor{
		transport: transport,
		journal:   journal,
		cfg:       cfg,
		streams:   make(map[string]map[sensor.SignalType]*handle),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *Supervisor) log() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// SetIngestor wires the batch destination. Must be called before any
// stream is started.
func (s *Supervisor) SetIngestor(ing Ingestor) {
	s.ingestorMu.Lock()
	s.ingestor = ing
	s.ingestorMu.Unlock()
}

func (s *Supervisor) getIngestor() Ingestor {
	s.ingestorMu.RLock()
	defer s.ingestorMu.RUnlock()
	return s.ingestor
}

// StartDevice opens one subscription per selected signal for a device.
// Signals that already have a live subscription are left untouched, so
// calling StartDevice again after a reconnect cannot duplicate keys.
func (s *Supervisor) StartDevice(ctx context.Context, deviceID string, signals map[sensor.SignalType]sensor.SettingSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	perDevice := s.streams[deviceID]
	if perDevice == nil {
		perDevice = make(map[sensor.SignalType]*handle)
		s.streams[deviceID] = perDevice
	}

	for sig, setting := range signals {
		if _, live := perDevice[sig]; live {
			continue
		}
		streamCtx, cancel := context.WithCancel(ctx)
		h := &handle{cancel: cancel, done: make(chan struct{})}
		perDevice[sig] = h
		go s.run(streamCtx, deviceID, sig, setting.Clone(), h)
	}
}

// DropDevice disposes every subscription for a device and clears its
// entry in the table. Idempotent and safe to call from any goroutine.
func (s *Supervisor) DropDevice(deviceID string) {
	s.mu.Lock()
	perDevice := s.streams[deviceID]
	delete(s.streams, deviceID)
	s.mu.Unlock()

	for _, h := range perDevice {
		h.cancel()
	}
	for _, h := range perDevice {
		<-h.done
	}
}

// StopAll disposes every subscription for every device.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	all := s.streams
	s.streams = make(map[string]map[sensor.SignalType]*handle)
	s.mu.Unlock()

	for _, perDevice := range all {
		for _, h := range perDevice {
			h.cancel()
		}
	}
	for _, perDevice := range all {
		for _, h := range perDevice {
			<-h.done
		}
	}
}

// Active reports whether a live subscription exists for the key.
func (s *Supervisor) Active(deviceID string, sig sensor.SignalType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.streams[deviceID][sig]
	return ok
}

// ActiveSignals returns the signals with live subscriptions for a device,
// in stable order.
func (s *Supervisor) ActiveSignals(deviceID string) []sensor.SignalType {
	s.mu.Lock()
	defer s.mu.Unlock()
	signals := make([]sensor.SignalType, 0, len(s.streams[deviceID]))
	for sig := range s.streams[deviceID] {
		signals = append(signals, sig)
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i] < signals[j] })
	return signals
}

// run serves one (device, signal) subscription until cancellation,
// retry exhaustion, or unexpected upstream completion.
//
// The failure counter counts consecutive subscribe-or-transport errors;
// it resets once a batch is actually delivered. Reaching the configured
// bound abandons the stream with a terminal journal entry.
func (s *Supervisor) run(ctx context.Context, deviceID string, sig sensor.SignalType, setting sensor.SettingSet, h *handle) {
	defer close(h.done)
	defer s.remove(deviceID, sig, h)

	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		batches, errs, err := s.transport.Subscribe(ctx, deviceID, sig, setting)
		if err != nil {
			failures++
			s.journal.Errorf("Stream %s/%s failed to open (attempt %d/%d): %v",
				deviceID, sig, failures, s.cfg.StreamRetries, err)
			if failures >= s.cfg.StreamRetries {
				s.journal.Errorf("Stream %s/%s abandoned after %d attempts", deviceID, sig, failures)
				s.log().Error("stream abandoned", "device", deviceID, "signal", sig, "attempts", failures)
				return
			}
			continue
		}

		s.log().Debug("stream open", "device", deviceID, "signal", sig)

		again := s.consume(ctx, deviceID, sig, batches, errs, &failures)
		if !again {
			return
		}
		if failures >= s.cfg.StreamRetries {
			s.journal.Errorf("Stream %s/%s abandoned after %d attempts", deviceID, sig, failures)
			s.log().Error("stream abandoned", "device", deviceID, "signal", sig, "attempts", failures)
			return
		}
	}
}

// consume forwards batches until the stream ends. Returns true when the
// caller should resubscribe (transport error), false on cancellation or
// unexpected completion.
func (s *Supervisor) consume(ctx context.Context, deviceID string, sig sensor.SignalType, batches <-chan sensor.Batch, errs <-chan error, failures *int) (resubscribe bool) {
	for {
		select {
		case <-ctx.Done():
			return false

		case b, ok := <-batches:
			if !ok {
				// A live stream should never complete on its own.
				s.journal.Errorf("Stream %s/%s completed unexpectedly", deviceID, sig)
				s.log().Error("stream completed unexpectedly", "device", deviceID, "signal", sig)
				return false
			}
			*failures = 0
			if ing := s.getIngestor(); ing != nil {
				ing.Ingest(deviceID, b)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			*failures++
			s.journal.Errorf("Stream %s/%s error (attempt %d/%d): %v",
				deviceID, sig, *failures, s.cfg.StreamRetries, err)
			s.log().Warn("stream error, resubscribing",
				"device", deviceID, "signal", sig, "failures", *failures, "error", err)
			return true
		}
	}
}

// remove clears the table entry for a finished stream, unless the key has
// already been replaced by a newer handle.
func (s *Supervisor) remove(deviceID string, sig sensor.SignalType, h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streams[deviceID][sig] == h {
		delete(s.streams[deviceID], sig)
		if len(s.streams[deviceID]) == 0 {
			delete(s.streams, deviceID)
		}
	}
}
