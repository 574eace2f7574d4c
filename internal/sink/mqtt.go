package sink

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/biostream-core/internal/recording"
)

// Publisher is the broker surface the MQTT sink needs. Satisfied by
// *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// MQTT republishes recording data points to the broker so external
// consumers can follow a session live. Session status changes go to a
// retained per-recording status topic.
type MQTT struct {
	cfg    config.MQTTSinkConfig
	client Publisher
	topics mqtt.Topics

	mu      sync.Mutex
	session string
}

// mqttPoint is the JSON shape of a republished data point.
type mqttPoint struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Category  string    `json:"category"`
	Data      any       `json:"data"`
}

// mqttStatus is the JSON shape of the retained status message.
type mqttStatus struct {
	Recording string    `json:"recording"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMQTT creates the MQTT sink over a connected broker client.
func NewMQTT(cfg config.MQTTSinkConfig, client Publisher) *MQTT {
	return &MQTT{cfg: cfg, client: client}
}

// Name identifies the sink in logs.
func (m *MQTT) Name() string { return "mqtt" }

// Enabled reports whether the sink participates in sessions.
func (m *MQTT) Enabled() bool { return m.cfg.Enabled }

// Initialized reports readiness based on the broker connection.
func (m *MQTT) Initialized() recording.InitState {
	if !m.cfg.Enabled {
		return recording.InitPending
	}
	if m.client == nil || !m.client.IsConnected() {
		return recording.InitFailed
	}
	return recording.InitSuccess
}

// StartSession publishes a retained "recording" status for the session.
func (m *MQTT) StartSession(name string, startedAt time.Time) error {
	m.mu.Lock()
	m.session = name
	m.mu.Unlock()
	return m.publishStatus(name, "recording", startedAt)
}

// SaveData publishes one data point to the per-recording data topic.
func (m *MQTT) SaveData(ts time.Time, deviceID, recordingName, category string, payload any) error {
	body, err := json.Marshal(mqttPoint{
		Timestamp: ts,
		DeviceID:  deviceID,
		Category:  category,
		Data:      payload,
	})
	if err != nil {
		return fmt.Errorf("mqtt sink: encoding payload: %w", err)
	}
	topic := m.topics.RecordingData(recordingName, deviceID, category)
	if err := m.client.Publish(topic, body, 0, false); err != nil {
		return fmt.Errorf("mqtt sink: publishing to %s: %w", topic, err)
	}
	return nil
}

// StopSaving flips the retained status to "stopped" and forgets the
// session.
func (m *MQTT) StopSaving() error {
	m.mu.Lock()
	name := m.session
	m.session = ""
	m.mu.Unlock()

	if name == "" {
		return nil
	}
	return m.publishStatus(name, "stopped", time.Now().UTC())
}

// Cleanup forgets the session. The broker client is owned by the caller
// and closed at shutdown.
func (m *MQTT) Cleanup() error {
	m.mu.Lock()
	m.session = ""
	m.mu.Unlock()
	return nil
}

func (m *MQTT) publishStatus(name, status string, ts time.Time) error {
	body, err := json.Marshal(mqttStatus{
		Recording: name,
		Status:    status,
		Timestamp: ts,
	})
	if err != nil {
		return fmt.Errorf("mqtt sink: encoding status: %w", err)
	}
	topic := m.topics.RecordingStatus(name)
	if err := m.client.Publish(topic, body, 1, true); err != nil {
		return fmt.Errorf("mqtt sink: publishing status to %s: %w", topic, err)
	}
	return nil
}
