package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/norris81b/webCamCtrl/internal/infrastructure/config"
)

// These tests exercise everything that does not need a live broker.

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "webcamctrl-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     30,
		},
	}
}

func disconnectedClient() *Client {
	return &Client{}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Info(msg string, _ ...any)  { l.record(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record(msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record(msg) }

func (l *recordingLogger) has(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.msgs {
		if m == msg {
			return true
		}
	}
	return false
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "cam", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "webcamctrl-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "cam" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Errorf("AutoReconnect = %v, CleanSession = %v", opts.AutoReconnect, opts.CleanSession)
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS configured without cfg.Broker.TLS")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %v, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLSConfig = %+v", opts.TLSConfig)
	}
}

func TestConfigureLWT(t *testing.T) {
	t.Run("default system status", func(t *testing.T) {
		opts := pahomqtt.NewClientOptions()
		configureLWT(opts, "cam-1", nil)

		if !opts.WillEnabled || opts.WillTopic != "webcamctrl/system/status" {
			t.Fatalf("will = %v %q", opts.WillEnabled, opts.WillTopic)
		}
		if !opts.WillRetained || opts.WillQos != 1 {
			t.Errorf("retained = %v, qos = %d", opts.WillRetained, opts.WillQos)
		}
		var msg StatusMessage
		if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
			t.Fatalf("will payload is not JSON: %v", err)
		}
		if msg.Status != StatusOffline || msg.ClientID != "cam-1" || msg.Reason != ReasonLost {
			t.Errorf("payload = %+v", msg)
		}
	})

	t.Run("explicit will", func(t *testing.T) {
		opts := pahomqtt.NewClientOptions()
		configureLWT(opts, "cam-1", &Will{Topic: "webcamctrl/health", Payload: []byte(`{"status":"offline"}`)})

		if opts.WillTopic != "webcamctrl/health" || string(opts.WillPayload) != `{"status":"offline"}` {
			t.Errorf("will = %q %q", opts.WillTopic, opts.WillPayload)
		}
	})
}

func TestStatusPayload(t *testing.T) {
	tests := []struct {
		status, reason string
	}{
		{StatusOnline, ""},
		{StatusOffline, ReasonShutdown},
		{StatusOffline, ReasonLost},
	}
	for _, tt := range tests {
		var msg StatusMessage
		if err := json.Unmarshal(statusPayload(tt.status, "cam-1", tt.reason), &msg); err != nil {
			t.Fatalf("%s payload is not JSON: %v", tt.status, err)
		}
		if msg.Status != tt.status || msg.ClientID != "cam-1" || msg.Reason != tt.reason {
			t.Errorf("payload = %+v", msg)
		}
		if msg.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	}
}

func TestPublishJSON(t *testing.T) {
	c := disconnectedClient()

	if err := c.PublishJSON("webcamctrl/system/scan", map[string]bool{"running": true}, true); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishJSON() error = %v, want ErrNotConnected", err)
	}
	if err := c.PublishJSON("webcamctrl/system/scan", make(chan int), true); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON(chan) error = %v, want ErrPublishFailed", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := disconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "webcamctrl/health", []byte("x"), 3, ErrInvalidQoS},
		{"too large", "webcamctrl/health", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "webcamctrl/health", []byte("x"), 1, ErrNotConnected},
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
	c := disconnectedClient()
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, noop, ErrInvalidTopic},
		{"invalid qos", "webcamctrl/command/+", 5, noop, ErrInvalidQoS},
		{"nil handler", "webcamctrl/command/+", 1, nil, ErrSubscribeFailed},
		{"disconnected", "webcamctrl/command/+", 1, noop, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if c.SubscriptionCount() != 0 || c.HasSubscription("webcamctrl/command/+") {
		t.Error("failed subscriptions must not be tracked")
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	c := disconnectedClient()
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v", err)
	}
	if err := c.Unsubscribe("webcamctrl/#"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	c := disconnectedClient()

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
	if err := disconnectedClient().Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestDeliver(t *testing.T) {
	c := disconnectedClient()
	logger := &recordingLogger{}
	c.SetLogger(logger)

	var got string
	c.deliver(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	})(nil, fakeMessage{topic: "webcamctrl/command/ZOOM_IN", payload: []byte("{}")})

	if got != "webcamctrl/command/ZOOM_IN={}" {
		t.Errorf("handler saw %q", got)
	}

	c.deliver(func(string, []byte) error {
		return errors.New("bad payload")
	})(nil, fakeMessage{topic: "t"})
	if !logger.has("mqtt handler failed") {
		t.Error("handler error was not logged")
	}

	c.deliver(func(string, []byte) error {
		panic("boom")
	})(nil, fakeMessage{topic: "t"})
	if !logger.has("mqtt handler panicked") {
		t.Error("handler panic was not logged")
	}
}

func TestHandleDisconnectCallbacks(t *testing.T) {
	c := disconnectedClient()
	c.connected.Store(true)

	var lost error
	c.SetOnDisconnect(func(err error) { lost = err })
	c.handleDisconnect(errors.New("link down"))

	if lost == nil || lost.Error() != "link down" {
		t.Errorf("OnDisconnect got %v", lost)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Topics{}.SystemStatus(), "webcamctrl/system/status"},
		{Topics{}.ScanState(), "webcamctrl/system/scan"},
		{Topics{}.AllTopics(), "webcamctrl/#"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestBridgeClientSubscribe(t *testing.T) {
	b := NewBridgeClient(disconnectedClient())

	err := b.Subscribe("webcamctrl/command/+", 1, func(string, []byte) {})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	err = b.Subscribe("webcamctrl/command/+", 1, nil)
	if err == nil || !strings.Contains(err.Error(), "handler cannot be nil") {
		t.Errorf("Subscribe(nil) error = %v", err)
	}
}
