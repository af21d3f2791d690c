package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/norris81b/webCamCtrl/internal/infrastructure/config"
)

// Client is the service's connection to the MQTT broker. It carries the
// camera bridge's command and response traffic and the retained system
// topics. Methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	connected atomic.Bool

	subMu sync.RWMutex
	subs  map[string]subscription

	hookMu       sync.RWMutex
	logger       Logger
	onConnect    func()
	onDisconnect func(err error)
}

// Logger is the subset of logging.Logger the client uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// MessageHandler receives a message from a subscription. paho calls it on
// its own goroutine; an error is logged and the message is still acked.
type MessageHandler func(topic string, payload []byte) error

// Will is the retained message the broker publishes if the service drops
// off without calling Close.
type Will struct {
	Topic   string
	Payload []byte
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker and blocks until the first CONNACK or the
// connect timeout. A nil will registers an offline StatusMessage on the
// system status topic. The online status is published from the connect
// hook, so it is repeated after every reconnect.
func Connect(cfg config.MQTTConfig, will *Will) (*Client, error) {
	c := &Client{cfg: cfg}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID, will)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log().Info("mqtt reconnecting", "broker", brokerURL(cfg))
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: %s: no CONNACK after %v", ErrConnectionFailed, brokerURL(cfg), connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(cfg), err)
	}

	// The connect hook runs asynchronously.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) handleConnect() {
	c.connected.Store(true)
	c.restore()
	c.client.Publish(Topics{}.SystemStatus(), c.qos(), true,
		statusPayload(StatusOnline, c.cfg.Broker.ClientID, ""))

	c.hookMu.RLock()
	fn := c.onConnect
	c.hookMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connected.Store(false)
	c.log().Warn("mqtt connection lost", "error", err)

	c.hookMu.RLock()
	fn := c.onDisconnect
	c.hookMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Close publishes a graceful offline status, which replaces the retained
// will, and disconnects. It is safe on a nil or never-connected client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.client.Publish(Topics{}.SystemStatus(), c.qos(), true,
			statusPayload(StatusOffline, c.cfg.Broker.ClientID, ReasonShutdown))
		token.WaitTimeout(operationTimeout)
	}
	c.client.Disconnect(disconnectQuiesceMS)
	c.connected.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known link state.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}

// SetOnConnect registers fn to run after the first connect and each
// reconnect, once subscriptions are restored.
func (c *Client) SetOnConnect(fn func()) {
	c.hookMu.Lock()
	c.onConnect = fn
	c.hookMu.Unlock()
}

// SetOnDisconnect registers fn to run when the link drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.hookMu.Lock()
	c.onDisconnect = fn
	c.hookMu.Unlock()
}

// SetLogger sets the logger for link events and handler failures.
func (c *Client) SetLogger(logger Logger) {
	c.hookMu.Lock()
	c.logger = logger
	c.hookMu.Unlock()
}

func (c *Client) log() Logger {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	if c.logger == nil {
		return nopLogger{}
	}
	return c.logger
}

func (c *Client) qos() byte {
	return byte(c.cfg.QoS)
}

// deliver adapts a MessageHandler to paho, logging handler errors and
// recovering panics so one bad payload cannot take the service down.
func (c *Client) deliver(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		topic := msg.Topic()
		defer func() {
			if r := recover(); r != nil {
				c.log().Error("mqtt handler panicked", "topic", topic, "panic", r)
			}
		}()
		if err := handler(topic, msg.Payload()); err != nil {
			c.log().Warn("mqtt handler failed", "topic", topic, "error", err)
		}
	}
}
