package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the recorder's needs: presence
// announcements on the system status topic, sample and state
// publishing, and the inbound recording command channel.
//
// All methods are safe for concurrent use. Subscriptions survive
// broker reconnects; paho's auto-reconnect loop re-establishes them
// through resubscribeAll.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	// mu guards connection state, the event callbacks, and the logger.
	mu           sync.RWMutex
	connected    bool
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger

	// routeMu guards the subscription table, which paho callback
	// goroutines read during reconnect.
	routeMu sync.RWMutex
	routes  map[string]route
}

// Logger receives handler errors and recovered panics. logging.Logger
// and slog.Logger both satisfy it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// MessageHandler is invoked for each received message. Paho runs
// handlers on its own goroutines, so long-running work belongs
// elsewhere. A returned error is logged and the message is still
// acknowledged.
type MessageHandler func(topic string, payload []byte) error

// route records an active subscription so it can be re-established
// after a reconnect. The routes map key carries the topic.
type route struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker described by cfg and returns a ready
// client.
//
// The session carries a last-will presence message so consumers can
// tell a crashed recorder from a gracefully stopped one, and announces
// itself online once connected. Reconnects are handled by paho with
// the backoff bounds from cfg.Reconnect.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		routes: make(map[string]route),
		logger: noopLogger{},
	}

	opts := newClientOptions(cfg)
	setLastWill(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { c.onConnected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect callback runs asynchronously and may not have
	// fired yet; mark the session up here so IsConnected holds as
	// soon as Connect returns.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

func (c *Client) onConnected() {
	c.mu.Lock()
	c.connected = true
	notify := c.onConnect
	c.mu.Unlock()

	c.resubscribeAll()
	c.announcePresence("online", "")

	if notify != nil {
		notify()
	}
}

func (c *Client) onConnectionLost(err error) {
	c.mu.Lock()
	c.connected = false
	notify := c.onDisconnect
	c.mu.Unlock()

	if notify != nil {
		notify(err)
	}
}

// resubscribeAll re-establishes tracked subscriptions after a
// reconnect. Errors are ignored here; paho retries on the next
// reconnect cycle.
func (c *Client) resubscribeAll() {
	c.routeMu.RLock()
	defer c.routeMu.RUnlock()

	for topic, r := range c.routes {
		c.client.Subscribe(topic, r.qos, c.dispatch(r.handler))
	}
}

// announcePresence publishes a retained status message. Callers that
// need delivery confirmation wait on the returned token.
func (c *Client) announcePresence(status, reason string) pahomqtt.Token {
	payload := presencePayload(c.cfg.Broker.ClientID, status, reason)
	return c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, payload)
}

// Close announces a graceful shutdown and disconnects. The offline
// announcement carries a shutdown reason so it is distinguishable from
// the last will the broker publishes on an unexpected drop.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		c.announcePresence("offline", reasonShutdown).WaitTimeout(publishTimeout)
	}

	c.client.Disconnect(disconnectQuiesceMS)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	return nil
}

// HealthCheck reports whether the broker session is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect registers a callback invoked on initial connect and on
// every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback invoked when the session drops.
// The error describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger routes handler errors and panics to logger. The default
// discards them.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// dispatch adapts a MessageHandler to paho's callback shape,
// recovering panics so a misbehaving handler cannot take down the
// paho router goroutine.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log().Error("mqtt handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.log().Warn("mqtt handler error",
				"topic", msg.Topic(),
				"error", err,
			)
		}
	}
}
