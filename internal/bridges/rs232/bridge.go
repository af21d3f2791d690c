package rs232

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Submitter queues commands and reports rejection.
type Submitter interface {
	Submit(name string, args []byte) (string, error)
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Processor queues camera commands. Usually a *Processor.
	Processor Submitter

	// Stats feeds the health reporter. Optional.
	Stats StatsSource

	// Version and Address appear in health messages.
	Version string
	Address string

	// HealthInterval overrides the 30 second default.
	HealthInterval time.Duration

	// Logger is optional structured logger.
	Logger Logger
}

// Bridge connects the camera processor to MQTT:
//   - commands on webcamctrl/command/{name} are queued on the processor
//   - every queued or rejected command is acknowledged on webcamctrl/ack/{name}
//   - classified responses are published on webcamctrl/response
//   - health is published on webcamctrl/health
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt      MQTTClient
	processor Submitter
	health    *HealthReporter

	stopOnce sync.Once

	commandsRx       atomic.Uint64
	commandsRejected atomic.Uint64
	responsesRelayed atomic.Uint64
	publishFailures  atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a new bridge instance. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}

	health := NewHealthReporter(HealthReporterConfig{
		Version:   opts.Version,
		Address:   opts.Address,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Source:    opts.Stats,
	})

	b := &Bridge{
		mqtt:      opts.MQTTClient,
		processor: opts.Processor,
		health:    health,
		logger:    nopLogger{},
	}
	if opts.Logger != nil {
		b.SetLogger(opts.Logger)
	}
	return b, nil
}

// Start subscribes to command topics and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.log().Warn("failed to publish starting status", "error", err)
	}

	topic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(topic, 1, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.log().Info("subscribed to commands", "topic", topic)

	b.health.Start(ctx)
	return nil
}

// Stop halts health reporting. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.health.Stop()
		b.log().Info("bridge stopped")
	})
}

// HandleResponse publishes a classified response. Register it as (part of)
// the processor's response listener.
func (b *Bridge) HandleResponse(resp Response) {
	payload, err := json.Marshal(NewResponseMessage(resp))
	if err != nil {
		b.log().Error("failed to marshal response", "error", err)
		return
	}
	if err := b.mqtt.Publish(ResponseTopic(), payload, 1, false); err != nil {
		b.publishFailures.Add(1)
		b.log().Warn("failed to publish response", "error", err)
		return
	}
	b.responsesRelayed.Add(1)
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.health.SetLogger(logger)
}

// BridgeMetrics contains counters for the API metrics endpoint.
type BridgeMetrics struct {
	CommandsReceived uint64
	CommandsRejected uint64
	ResponsesRelayed uint64
	PublishFailures  uint64
	MQTTConnected    bool
}

// Metrics returns current bridge counters.
func (b *Bridge) Metrics() BridgeMetrics {
	return BridgeMetrics{
		CommandsReceived: b.commandsRx.Load(),
		CommandsRejected: b.commandsRejected.Load(),
		ResponsesRelayed: b.responsesRelayed.Load(),
		PublishFailures:  b.publishFailures.Load(),
		MQTTConnected:    b.mqtt.IsConnected(),
	}
}

// handleCommand processes one message from the command topic.
func (b *Bridge) handleCommand(topic string, payload []byte) {
	b.commandsRx.Add(1)

	var cmd CommandMessage
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			cmd.Command = topicCommand(topic)
			b.reject(cmd, ErrCodeInvalidPayload, err.Error())
			return
		}
	}
	if cmd.Command == "" {
		cmd.Command = topicCommand(topic)
	}

	args, err := hex.DecodeString(cmd.Args)
	if err != nil {
		b.reject(cmd, ErrCodeInvalidArguments, fmt.Sprintf("args %q is not hex", cmd.Args))
		return
	}

	id, err := b.processor.Submit(cmd.Command, args)
	if err != nil {
		code := ErrCodeBridgeError
		if errors.Is(err, ErrUnknownCommand) {
			code = ErrCodeUnknownCommand
		}
		b.reject(cmd, code, err.Error())
		return
	}

	b.log().Debug("command queued from MQTT", "command", cmd.Command, "id", id, "source", cmd.Source)
	b.publishAck(cmd.Command, NewAckMessage(cmd, id))
}

func (b *Bridge) reject(cmd CommandMessage, code, message string) {
	b.commandsRejected.Add(1)
	b.log().Warn("command rejected", "command", cmd.Command, "code", code, "message", message)
	b.publishAck(cmd.Command, NewAckError(cmd, code, message))
}

func (b *Bridge) publishAck(name string, ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.log().Error("failed to marshal ack", "error", err)
		return
	}
	if err := b.mqtt.Publish(AckTopic(name), payload, 1, false); err != nil {
		b.publishFailures.Add(1)
		b.log().Warn("failed to publish ack", "error", err)
	}
}

// topicCommand extracts the command name from webcamctrl/command/{name}.
func topicCommand(topic string) string {
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

func (b *Bridge) log() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}
