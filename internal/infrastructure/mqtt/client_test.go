package mqtt

import (
	"errors"
	"testing"
)

// newDisconnectedClient returns a client that has never connected.
// Useful for exercising validation paths without a broker.
func newDisconnectedClient() *Client {
	return &Client{
		routes: make(map[string]route),
		logger: noopLogger{},
	}
}

func TestPublishValidation(t *testing.T) {
	c := newDisconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{
			name:    "empty topic",
			topic:   "",
			payload: []byte("{}"),
			qos:     1,
			wantErr: ErrInvalidTopic,
		},
		{
			name:    "invalid qos",
			topic:   Topics{}.Data("polar-123", "HR"),
			payload: []byte("{}"),
			qos:     3,
			wantErr: ErrInvalidQoS,
		},
		{
			name:    "oversized payload",
			topic:   Topics{}.Data("polar-123", "HR"),
			payload: make([]byte, maxPayloadSize+1),
			qos:     1,
			wantErr: ErrPublishFailed,
		},
		{
			name:    "not connected",
			topic:   Topics{}.Data("polar-123", "HR"),
			payload: []byte("{}"),
			qos:     1,
			wantErr: ErrNotConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newDisconnectedClient()
	handler := func(topic string, payload []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty topic) error = %v, want %v", err, ErrInvalidTopic)
	}
	if err := c.Subscribe("biostream/test", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want %v", err, ErrInvalidQoS)
	}
	if err := c.Subscribe("biostream/test", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want %v", err, ErrSubscribeFailed)
	}
	if err := c.Subscribe("biostream/test", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() while disconnected error = %v, want %v", err, ErrNotConnected)
	}

	// Failed subscriptions are not tracked.
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
}

func TestCloseNilClient(t *testing.T) {
	c := newDisconnectedClient()
	if err := c.Close(); err != nil {
		t.Errorf("Close() on never-connected client error = %v", err)
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "data topic",
			got:  topics.Data("polar-123", "HR"),
			want: "biostream/data/polar-123/HR",
		},
		{
			name: "log data topic",
			got:  topics.Data("polar-123", "LOG"),
			want: "biostream/data/polar-123/LOG",
		},
		{
			name: "device state",
			got:  topics.DeviceState("polar-123"),
			want: "biostream/device/polar-123/state",
		},
		{
			name: "device battery",
			got:  topics.DeviceBattery("polar-123"),
			want: "biostream/device/polar-123/battery",
		},
		{
			name: "recording data",
			got:  topics.RecordingData("morning-run", "polar-123", "HR"),
			want: "biostream/recording/morning-run/polar-123/HR",
		},
		{
			name: "recording status",
			got:  topics.RecordingStatus("morning-run"),
			want: "biostream/recording/morning-run/status",
		},
		{
			name: "recording command",
			got:  topics.RecordingCommand(),
			want: "biostream/recording/command",
		},
		{
			name: "system status",
			got:  topics.SystemStatus(),
			want: "biostream/system/status",
		},
		{
			name: "all data wildcard",
			got:  topics.AllData(),
			want: "biostream/data/+/+",
		},
		{
			name: "all device states wildcard",
			got:  topics.AllDeviceStates(),
			want: "biostream/device/+/state",
		},
		{
			name: "all topics wildcard",
			got:  topics.AllTopics(),
			want: "biostream/#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestHasSubscription(t *testing.T) {
	c := newDisconnectedClient()

	if c.HasSubscription("biostream/test") {
		t.Error("HasSubscription() = true for untracked topic")
	}

	c.routes["biostream/test"] = route{qos: 1}

	if !c.HasSubscription("biostream/test") {
		t.Error("HasSubscription() = false for tracked topic")
	}
	if c.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", c.SubscriptionCount())
	}
}
