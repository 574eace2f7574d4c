package recording

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/biostream-core/internal/device"
	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/logbuf"
	"github.com/nerrad567/biostream-core/internal/sensor"
)

// Logger defines the logging interface used by the Session.
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

// Selection maps each selected device to its chosen signals and the
// setting to subscribe each signal with.
type Selection map[string]map[sensor.SignalType]sensor.SettingSet

// Clone returns a deep copy.
func (sel Selection) Clone() Selection {
	cpy := make(Selection, len(sel))
	for id, signals := range sel {
		perDevice := make(map[sensor.SignalType]sensor.SettingSet, len(signals))
		for sig, setting := range signals {
			perDevice[sig] = setting.Clone()
		}
		cpy[id] = perDevice
	}
	return cpy
}

// StreamController is the slice of the stream supervisor the session
// drives.
type StreamController interface {
	StartDevice(ctx context.Context, deviceID string, signals map[sensor.SignalType]sensor.SettingSet)
	DropDevice(deviceID string)
	StopAll()
}

// Session coordinates one recording at a time: stream fan-in, last-value
// projection, sink fan-out, and journal persistence.
//
// All public methods are thread-safe. Ingest is called concurrently from
// every open stream goroutine; Handle* methods arrive from the core's
// event dispatcher.
type Session struct {
	registry *device.Registry
	streams  StreamController
	journal  *logbuf.Buffer
	sinks    []Sink
	cfg      config.RecorderConfig

	mu           sync.Mutex
	running      bool
	stopping     bool
	name         string
	selection    Selection
	startedAt    time.Time
	lastValues   map[string]map[sensor.SignalType]*float64
	timestamps   map[string]time.Time
	lastSavedLog int
	streamCtx    context.Context

	logger   Logger
	loggerMu sync.RWMutex
}

// NewSession creates a Session and registers it for journal change
// notifications so entries appended mid-recording are persisted promptly.
func NewSession(registry *device.Registry, streams StreamController, journal *logbuf.Buffer, sinks []Sink, cfg config.RecorderConfig) *Session {
	s := &Session{
		registry:   registry,
		streams:    streams,
		journal:    journal,
		sinks:      sinks,
		cfg:        cfg,
		lastValues: make(map[string]map[sensor.SignalType]*float64),
		timestamps: make(map[string]time.Time),
		logger:     noopLogger{},
	}
	journal.OnChange(s.persistNewLogs)
	return s
}

// SetLogger sets the logger for the session.
func (s *Session) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *Session) log() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// Start begins a recording. It fails fast, mutating nothing, if the name
// is empty, a recording is already in progress, no devices are selected,
// any selected device is not ready, no sink is enabled, or an enabled
// sink has not initialized successfully.
//
// On success it seeds the last-value cache with one absent entry per
// (device, selected signal), marks the session running, journals the
// device roster, and opens the streams. ctx bounds the lifetime of every
// stream this session opens, including reconnect restarts.
func (s *Session) Start(ctx context.Context, name string, selection Selection) error {
	if name == "" {
		return ErrEmptyName
	}

	s.mu.Lock()
	if s.running || s.stopping {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.mu.Unlock()

	if len(selection) == 0 {
		return ErrNoDevices
	}
	for id := range selection {
		if !s.registry.IsReady(id) {
			return fmt.Errorf("%w: %s", ErrDeviceNotReady, id)
		}
	}

	enabled := s.enabledSinks()
	if len(enabled) == 0 {
		return ErrNoSinks
	}
	for _, sink := range enabled {
		if sink.Initialized() != InitSuccess {
			return fmt.Errorf("%w: %s is %s", ErrSinkNotReady, sink.Name(), sink.Initialized())
		}
	}

	sel := selection.Clone()
	now := time.Now()

	s.mu.Lock()
	if s.running || s.stopping {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.name = name
	s.selection = sel
	s.startedAt = now
	s.streamCtx = ctx
	s.timestamps = make(map[string]time.Time)
	s.lastValues = make(map[string]map[sensor.SignalType]*float64, len(sel))
	for id, signals := range sel {
		cache := make(map[sensor.SignalType]*float64, len(signals))
		for sig := range signals {
			cache[sig] = nil
		}
		s.lastValues[id] = cache
	}
	// Entries appended from here on belong to this session.
	s.lastSavedLog = s.journal.Len()
	s.mu.Unlock()

	for _, sink := range enabled {
		if starter, ok := sink.(SessionStarter); ok {
			if err := starter.StartSession(name, now); err != nil {
				s.log().Error("sink session start failed", "sink", sink.Name(), "error", err)
			}
		}
	}

	s.journal.Successf("Recording '%s' started with %d device(s)", name, len(sel))
	s.journalDeviceInfo(sel)

	for id, signals := range sel {
		s.streams.StartDevice(ctx, id, signals)
	}

	s.log().Info("recording started", "name", name, "devices", len(sel))
	return nil
}

// journalDeviceInfo writes the per-device roster lines that open every
// session's persisted log.
func (s *Session) journalDeviceInfo(sel Selection) {
	for id := range sel {
		dev, err := s.registry.Get(id)
		if err != nil {
			continue
		}
		line := fmt.Sprintf("Device %s", id)
		if dev.FirmwareVersion != "" {
			line += fmt.Sprintf(", firmware %s", dev.FirmwareVersion)
		}
		if dev.BatteryLevel != nil {
			line += fmt.Sprintf(", battery %d%%", *dev.BatteryLevel)
		}
		if dev.Capabilities != nil {
			line += fmt.Sprintf(", signals %v", dev.Capabilities.Types())
		}
		s.journal.Infof("%s", line)
	}
}

// Ingest accepts one batch from a supervised stream: it stamps the
// device's arrival time, projects the batch into the last-value cache,
// and fans the unmodified batch out to every enabled sink.
func (s *Session) Ingest(deviceID string, batch sensor.Batch) {
	now := time.Now()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	name := s.name
	s.timestamps[deviceID] = now
	if scalar, ok := sensor.Scalar(batch); ok {
		cache := s.lastValues[deviceID]
		if cache == nil {
			cache = make(map[sensor.SignalType]*float64)
			s.lastValues[deviceID] = cache
		}
		v := scalar
		cache[batch.Signal()] = &v
	}
	s.mu.Unlock()

	category := string(batch.Signal())
	for _, sink := range s.enabledSinks() {
		if err := sink.SaveData(now, deviceID, name, category, batch); err != nil {
			s.log().Error("sink write failed",
				"sink", sink.Name(), "device", deviceID, "category", category, "error", err)
		}
	}
}

// persistNewLogs saves every journal entry past the high-water mark
// through the sink path, replicated per selected device under the LOG
// category. Runs on the journal's dispatcher goroutine; the mark and the
// writes share one critical section so no entry is persisted twice.
func (s *Session) persistNewLogs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistNewLogsLocked()
}

func (s *Session) persistNewLogsLocked() {
	if !s.running {
		return
	}

	entries := s.journal.Entries()
	if s.lastSavedLog >= len(entries) {
		return
	}
	fresh := entries[s.lastSavedLog:]
	s.lastSavedLog = len(entries)

	for _, entry := range fresh {
		payload := map[string]string{
			"type":    string(entry.Kind),
			"message": entry.Message,
		}
		for id := range s.selection {
			for _, sink := range s.enabledSinks() {
				if err := sink.SaveData(entry.Timestamp, id, s.name, sensor.CategoryLog, payload); err != nil {
					s.log().Error("log persistence failed", "sink", sink.Name(), "error", err)
				}
			}
		}
	}
}

// Stop ends the running recording.
//
// Order matters: the journal flush is requested and awaited first, so
// every entry appended before Stop is persisted (the flush channel closes
// only after the dispatcher has notified observers of all prior appends);
// any remainder is saved directly; then streams are disposed, sinks
// finalized, and the running state cleared. The last-value cache is kept
// for display.
func (s *Session) Stop() error {
	s.mu.Lock()
	if !s.running || s.stopping {
		s.mu.Unlock()
		s.journal.Errorf("No recording in progress")
		return ErrNotRunning
	}
	s.stopping = true
	name := s.name
	s.mu.Unlock()

	s.journal.Infof("Stopping recording '%s'", name)

	<-s.journal.RequestFlush()

	s.mu.Lock()
	s.persistNewLogsLocked()
	s.mu.Unlock()

	s.streams.StopAll()

	for _, sink := range s.enabledSinks() {
		if err := sink.StopSaving(); err != nil {
			s.log().Error("sink finalize failed", "sink", sink.Name(), "error", err)
		}
	}

	s.mu.Lock()
	s.running = false
	s.stopping = false
	s.name = ""
	s.startedAt = time.Time{}
	s.timestamps = make(map[string]time.Time)
	s.mu.Unlock()

	s.journal.Successf("Recording '%s' stopped", name)
	s.log().Info("recording stopped", "name", name)
	return nil
}

// HandleDeviceDisconnected reacts to a device disconnect: a selected
// device's streams are torn down; if no devices remain connected and the
// stop-on-disconnect policy is enabled, the whole session stops. Returns
// true when the session auto-stopped.
func (s *Session) HandleDeviceDisconnected(deviceID string) (autoStopped bool) {
	s.mu.Lock()
	running := s.running
	_, selected := s.selection[deviceID]
	s.mu.Unlock()

	if !running || !selected {
		return false
	}

	s.streams.DropDevice(deviceID)
	s.journal.Errorf("Device %s disconnected during recording", deviceID)

	if s.cfg.StopOnDisconnect && s.registry.ConnectedCount() == 0 {
		s.journal.Errorf("All devices disconnected - stopping recording")
		if err := s.Stop(); err == nil {
			return true
		}
	}
	return false
}

// HandleDeviceReady restarts a selected device's streams after it
// reconnects and renegotiates mid-recording.
func (s *Session) HandleDeviceReady(deviceID string) {
	s.mu.Lock()
	running := s.running
	signals, selected := s.selection[deviceID]
	ctx := s.streamCtx
	s.mu.Unlock()

	if !running || !selected {
		return
	}

	s.journal.Infof("Device %s reconnected, restoring streams", deviceID)
	s.streams.StartDevice(ctx, deviceID, signals)
}

// Running reports whether a recording is in progress.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Name returns the active recording's name, or empty.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// StartedAt returns the active recording's start time, or zero.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// LastValues returns a snapshot of the last-value cache: device to signal
// to most recent scalar (nil while absent). The cache survives Stop for
// display purposes.
func (s *Session) LastValues() map[string]map[sensor.SignalType]*float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[sensor.SignalType]*float64, len(s.lastValues))
	for id, cache := range s.lastValues {
		cpy := make(map[sensor.SignalType]*float64, len(cache))
		for sig, v := range cache {
			cpy[sig] = v
		}
		out[id] = cpy
	}
	return out
}

// Timestamps returns a snapshot of each device's last sample arrival time.
func (s *Session) Timestamps() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.timestamps))
	for id, ts := range s.timestamps {
		out[id] = ts
	}
	return out
}

// enabledSinks returns the sinks currently participating in sessions.
func (s *Session) enabledSinks() []Sink {
	enabled := make([]Sink, 0, len(s.sinks))
	for _, sink := range s.sinks {
		if sink.Enabled() {
			enabled = append(enabled, sink)
		}
	}
	return enabled
}
