package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/meterdock/ediel-core/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the importer's event traffic.
//
// It keeps a record of every subscription so they survive the paho
// auto-reconnect cycle, announces online/offline status on the system
// topic, and recovers panics raised inside message handlers. All
// methods are safe for concurrent use.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig

	mu           sync.RWMutex // guards connected, callbacks, logger
	connected    bool
	onConnect    func()
	onDisconnect func(error)
	logger       Logger

	subsMu sync.RWMutex
	subs   map[string]subscription
}

// Logger receives handler errors and recovered panics. Satisfied by
// logging.Logger and *slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is invoked for each message delivered on a subscribed
// topic. Paho calls it on its own goroutine; a returned error is logged
// but does not nack the message.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker and returns a ready client.
//
// The connection carries a Last Will that marks the importer offline if
// it dies without a clean shutdown; a matching online status is
// published (retained) on every successful connect.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:  cfg,
		subs: make(map[string]subscription),
	}

	opts := brokerOptions(cfg)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })

	c.paho = pahomqtt.NewClient(opts)
	if err := wait(c.paho.Connect(), connectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The OnConnect handler fires asynchronously; mark the client
	// connected here so callers can publish right away.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

func (c *Client) handleConnect() {
	c.mu.Lock()
	c.connected = true
	cb := c.onConnect
	c.mu.Unlock()

	c.resubscribe()

	c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
		statusPayload(statusOnline, c.cfg.Broker.ClientID, ""))

	if cb != nil {
		cb()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.mu.Lock()
	c.connected = false
	cb := c.onDisconnect
	c.mu.Unlock()

	if cb != nil {
		cb(err)
	}
}

// resubscribe replays tracked subscriptions after a reconnect. A clean
// session drops them broker-side, so each one is re-issued; failures
// here are retried on the next reconnect cycle.
func (c *Client) resubscribe() {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()

	for topic, sub := range c.subs {
		c.paho.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// Close publishes a graceful offline status and disconnects, allowing a
// short quiesce for in-flight publishes. Safe to call on a client that
// never connected.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
			statusPayload(statusOffline, c.cfg.Broker.ClientID, "graceful_shutdown"))
		token.WaitTimeout(opTimeout)
	}

	c.paho.Disconnect(disconnectQuiesceMs)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	return nil
}

// HealthCheck reports whether the broker connection is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.paho.IsConnected()
}

// SetOnConnect registers a callback invoked on connect and every
// reconnect.
func (c *Client) SetOnConnect(cb func()) {
	c.mu.Lock()
	c.onConnect = cb
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback invoked when the connection
// drops, with the cause.
func (c *Client) SetOnDisconnect(cb func(error)) {
	c.mu.Lock()
	c.onDisconnect = cb
	c.mu.Unlock()
}

// SetLogger attaches a logger for handler errors and panics. Without
// one they are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// wrapHandler adapts a MessageHandler to paho's signature, isolating
// the client from panicking handlers.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if log := c.getLogger(); log != nil {
					log.Error("mqtt handler panicked", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if log := c.getLogger(); log != nil {
				log.Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
