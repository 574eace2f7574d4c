package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/sensor"
)

// eventBufferSize bounds the transport event channel. The dispatcher
// drains continuously; the buffer only absorbs bursts around connect.
const eventBufferSize = 64

// simFirmwareVersion is reported via a device notice after connect.
const simFirmwareVersion = "sim-1.0.0"

// Transport is a simulated sensor.Transport backed by the configured
// synthetic devices.
type Transport struct {
	cfg    config.SimConfig
	events chan sensor.Event
	// done is closed by Close and unblocks emitters waiting on a full
	// event buffer.
	done chan struct{}

	mu       sync.Mutex
	emitters sync.WaitGroup
	devices  map[string]*simDevice
	closed   bool
}

// simDevice is the per-device simulator state.
type simDevice struct {
	cfg       config.SimDeviceConfig
	signals   map[sensor.SignalType]struct{}
	connected bool
	// gone is closed on disconnect so open streams terminate.
	gone chan struct{}

	clockOffset   time.Duration
	streamingMode bool
}

// New creates the simulated transport from configuration.
//
// Returns an error when a configured device carries an unknown signal
// type, so misconfiguration fails at startup rather than at connect.
func New(cfg config.SimConfig) (*Transport, error) {
	t := &Transport{
		cfg:     cfg,
		events:  make(chan sensor.Event, eventBufferSize),
		done:    make(chan struct{}),
		devices: make(map[string]*simDevice),
	}

	for _, dc := range cfg.Devices {
		if dc.ID == "" {
			return nil, fmt.Errorf("sim: device without id")
		}
		signals := make(map[sensor.SignalType]struct{}, len(dc.Signals))
		for _, raw := range dc.Signals {
			sig, err := sensor.ParseSignalType(raw)
			if err != nil {
				return nil, fmt.Errorf("sim: device %s: %w", dc.ID, err)
			}
			signals[sig] = struct{}{}
		}
		t.devices[dc.ID] = &simDevice{cfg: dc, signals: signals}
	}
	return t, nil
}

// Events returns the transport notification channel.
func (t *Transport) Events() <-chan sensor.Event { return t.events }

// Close shuts the simulator down: all devices disconnect and the event
// channel is closed. The event channel is only closed after every
// in-flight emitter has finished, so emitters racing a shutdown never
// send on a closed channel.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.done)
	for _, d := range t.devices {
		if d.connected {
			d.connected = false
			close(d.gone)
		}
	}
	t.mu.Unlock()

	t.emitters.Wait()
	close(t.events)
}

// emit delivers one event unless the simulator is closed. Emitters
// register in the WaitGroup under the mutex, before Close can observe
// them gone; done unblocks any emitter parked on a full buffer. Caller
// must not hold t.mu.
func (t *Transport) emit(ev sensor.Event) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.emitters.Add(1)
	t.mu.Unlock()
	defer t.emitters.Done()

	select {
	case t.events <- ev:
	case <-t.done:
	}
}

// Scan delivers every configured device as discovered, then completes.
func (t *Transport) Scan(ctx context.Context) (<-chan sensor.Discovered, error) {
	t.mu.Lock()
	found := make([]sensor.Discovered, 0, len(t.devices))
	for _, d := range t.devices {
		found = append(found, sensor.Discovered{ID: d.cfg.ID, Name: d.cfg.Name, RSSI: -60})
	}
	t.mu.Unlock()

	ch := make(chan sensor.Discovered)
	go func() {
		defer close(ch)
		for _, disc := range found {
			select {
			case <-ctx.Done():
				return
			case ch <- disc:
			}
		}
	}()
	return ch, nil
}

// Connect starts the simulated connection sequence: connecting and
// connected events immediately, then staged feature readiness, battery
// and firmware notices after the configured feature delay.
func (t *Transport) Connect(id string) error {
	t.mu.Lock()
	d, ok := t.devices[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("sim: unknown device %s", id)
	}
	if d.connected {
		t.mu.Unlock()
		return fmt.Errorf("sim: device %s already connected", id)
	}
	d.connected = true
	d.gone = make(chan struct{})
	t.mu.Unlock()

	go t.runConnect(d)
	return nil
}

// runConnect emits the post-connect event sequence for one device.
func (t *Transport) runConnect(d *simDevice) {
	t.emit(sensor.Event{Kind: sensor.EventConnecting, DeviceID: d.cfg.ID, Name: d.cfg.Name})
	t.emit(sensor.Event{Kind: sensor.EventConnected, DeviceID: d.cfg.ID, Name: d.cfg.Name})

	if t.cfg.FeatureDelay > 0 {
		select {
		case <-d.gone:
			return
		case <-time.After(t.cfg.FeatureDelay):
		}
	}

	features := []sensor.Feature{
		sensor.FeatureDeviceInfo,
		sensor.FeatureOnlineStreaming,
		sensor.FeatureBattery,
		sensor.FeatureClockSetup,
		sensor.FeatureStreamingMode,
	}
	if _, ok := d.signals[sensor.SignalHR]; ok {
		features = append(features, sensor.FeatureHR)
	}
	for _, f := range features {
		t.emit(sensor.Event{Kind: sensor.EventFeatureReady, DeviceID: d.cfg.ID, Feature: f})
	}

	t.emit(sensor.Event{Kind: sensor.EventBattery, DeviceID: d.cfg.ID, Battery: d.cfg.Battery})
	t.emit(sensor.Event{
		Kind:        sensor.EventDeviceNotice,
		DeviceID:    d.cfg.ID,
		NoticeKey:   sensor.NoticeFirmwareVersion,
		NoticeValue: simFirmwareVersion,
	})
}

// Disconnect tears the simulated link down and emits the disconnected
// event. Open streams observe the teardown and complete.
func (t *Transport) Disconnect(id string) error {
	t.mu.Lock()
	d, ok := t.devices[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("sim: unknown device %s", id)
	}
	if !d.connected {
		t.mu.Unlock()
		return fmt.Errorf("sim: device %s not connected", id)
	}
	d.connected = false
	close(d.gone)
	t.mu.Unlock()

	t.emit(sensor.Event{Kind: sensor.EventDisconnected, DeviceID: id})
	return nil
}

// connectedDevice returns the device when it has an active simulated
// link.
func (t *Transport) connectedDevice(id string) (*simDevice, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.devices[id]
	if !ok {
		return nil, fmt.Errorf("sim: unknown device %s", id)
	}
	if !d.connected {
		return nil, fmt.Errorf("sim: device %s not connected", id)
	}
	return d, nil
}

// AvailableSignalTypes reports the configured signals for the device.
func (t *Transport) AvailableSignalTypes(_ context.Context, id string) ([]sensor.SignalType, error) {
	d, err := t.connectedDevice(id)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	signals := make([]sensor.SignalType, 0, len(d.signals))
	for sig := range d.signals {
		signals = append(signals, sig)
	}
	return signals, nil
}

// SignalSettings reports a canned (default, full) pair per signal,
// mirroring the shape real firmware reports.
func (t *Transport) SignalSettings(_ context.Context, id string, sig sensor.SignalType) (sensor.SettingPair, error) {
	d, err := t.connectedDevice(id)
	if err != nil {
		return sensor.SettingPair{}, err
	}
	if _, ok := d.signals[sig]; !ok {
		return sensor.SettingPair{}, fmt.Errorf("sim: device %s does not stream %s", id, sig)
	}
	return settingsFor(sig), nil
}

// settingsFor returns the simulated setting pair for one signal type.
func settingsFor(sig sensor.SignalType) sensor.SettingPair {
	switch sig {
	case sensor.SignalHR, sensor.SignalPPI:
		// Beat-derived signals carry no configurable settings.
		return sensor.SettingPair{Default: sensor.SettingSet{}, Full: sensor.SettingSet{}}
	case sensor.SignalACC:
		return sensor.SettingPair{
			Default: sensor.SettingSet{
				sensor.SettingSampleRate: {52},
				sensor.SettingRange:      {8},
				sensor.SettingResolution: {16},
			},
			Full: sensor.SettingSet{
				sensor.SettingSampleRate: {26, 52, 104, 208},
				sensor.SettingRange:      {2, 4, 8, 16},
				sensor.SettingResolution: {16},
			},
		}
	case sensor.SignalECG:
		return sensor.SettingPair{
			Default: sensor.SettingSet{
				sensor.SettingSampleRate: {130},
				sensor.SettingResolution: {14},
			},
			Full: sensor.SettingSet{
				sensor.SettingSampleRate: {130},
				sensor.SettingResolution: {14},
			},
		}
	default:
		return sensor.SettingPair{
			Default: sensor.SettingSet{sensor.SettingSampleRate: {52}},
			Full:    sensor.SettingSet{sensor.SettingSampleRate: {26, 52, 104}},
		}
	}
}

// Clock reads the simulated device clock.
func (t *Transport) Clock(_ context.Context, id string) (time.Time, error) {
	d, err := t.connectedDevice(id)
	if err != nil {
		return time.Time{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Now().Add(d.clockOffset), nil
}

// SetClock writes the simulated device clock.
func (t *Transport) SetClock(_ context.Context, id string, v time.Time) error {
	d, err := t.connectedDevice(id)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	d.clockOffset = time.Until(v)
	return nil
}

// StreamingMode reads the simulated firmware streaming mode flag.
func (t *Transport) StreamingMode(_ context.Context, id string) (bool, error) {
	d, err := t.connectedDevice(id)
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return d.streamingMode, nil
}

// SetStreamingMode writes the simulated firmware streaming mode flag.
func (t *Transport) SetStreamingMode(_ context.Context, id string, enabled bool) error {
	d, err := t.connectedDevice(id)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	d.streamingMode = enabled
	return nil
}

// Subscribe opens one simulated sample stream. Batches are generated at
// the configured interval until the context is cancelled or the device
// disconnects; disconnect completes the stream without an error, the
// way a dropped link surfaces upstream.
func (t *Transport) Subscribe(ctx context.Context, id string, sig sensor.SignalType, _ sensor.SettingSet) (<-chan sensor.Batch, <-chan error, error) {
	d, err := t.connectedDevice(id)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := d.signals[sig]; !ok {
		return nil, nil, fmt.Errorf("sim: device %s does not stream %s", id, sig)
	}

	batches := make(chan sensor.Batch)
	errs := make(chan error, 1)

	interval := t.cfg.SampleInterval
	if interval <= 0 {
		interval = time.Second
	}

	go func() {
		defer close(batches)

		gen := newGenerator(d.cfg.ID, sig)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-d.gone:
				return
			case now := <-ticker.C:
				select {
				case batches <- gen.next(now):
				case <-ctx.Done():
					return
				case <-d.gone:
					return
				}
			}
		}
	}()

	return batches, errs, nil
}

// generator produces deterministic sample batches for one stream. The
// phase is seeded from the device id so different devices produce
// different but repeatable waveforms.
type generator struct {
	sig   sensor.SignalType
	phase float64
	step  int
}

func newGenerator(deviceID string, sig sensor.SignalType) *generator {
	var seed float64
	for _, c := range deviceID {
		seed += float64(c)
	}
	return &generator{sig: sig, phase: math.Mod(seed, 2*math.Pi)}
}

func (g *generator) next(now time.Time) sensor.Batch {
	g.step++
	wave := math.Sin(g.phase + float64(g.step)/10)

	switch g.sig {
	case sensor.SignalHR:
		return sensor.HRBatch{Samples: []sensor.HRSample{{
			BPM:             70 + int(10*wave),
			ContactDetected: true,
		}}}
	case sensor.SignalPPI:
		return sensor.PPIBatch{Samples: []sensor.PPISample{{
			IntervalMS:  857 + int(50*wave),
			SkinContact: true,
		}}}
	case sensor.SignalACC:
		return sensor.AccBatch{Samples: []sensor.XYZSample{{
			TimestampNS: now.UnixNano(),
			X:           wave,
			Y:           -wave / 2,
			Z:           9.81,
		}}}
	case sensor.SignalGyro:
		return sensor.GyroBatch{Samples: []sensor.XYZSample{{
			TimestampNS: now.UnixNano(),
			X:           wave * 90,
			Y:           wave * 45,
			Z:           0,
		}}}
	case sensor.SignalMag:
		return sensor.MagBatch{Samples: []sensor.XYZSample{{
			TimestampNS: now.UnixNano(),
			X:           50 * wave,
			Y:           20,
			Z:           -30,
		}}}
	case sensor.SignalPPG:
		return sensor.PPGBatch{Samples: []sensor.PPGSample{{
			TimestampNS: now.UnixNano(),
			Channels:    []float64{1000 + 100*wave, 980 + 90*wave, 1020 + 110*wave},
		}}}
	case sensor.SignalECG:
		return sensor.ECGBatch{Samples: []sensor.ECGSample{{
			TimestampNS: now.UnixNano(),
			VoltageUV:   400 * wave,
		}}}
	case sensor.SignalTemp:
		return sensor.TempBatch{Samples: []sensor.TempSample{{
			TimestampNS: now.UnixNano(),
			Celsius:     36.5 + 0.3*wave,
		}}}
	case sensor.SignalSkinTemp:
		return sensor.SkinTempBatch{Samples: []sensor.TempSample{{
			TimestampNS: now.UnixNano(),
			Celsius:     33.0 + 0.5*wave,
		}}}
	default:
		return sensor.HRBatch{}
	}
}
