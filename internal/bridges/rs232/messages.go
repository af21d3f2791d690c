package rs232

import (
	"time"
)

// MQTT message types exchanged between the camera bridge and its clients.

// TopicPrefix is the root of every camera bridge topic.
const TopicPrefix = "webcamctrl"

// BridgeID identifies this bridge in health messages.
const BridgeID = "rs232"

// CommandMessage asks the bridge to send a catalog command.
// Topic: webcamctrl/command/{name}
type CommandMessage struct {
	// ID correlates the command with its acknowledgment. Optional.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Command is the catalog name. When empty the topic's last segment is used.
	Command string `json:"command"`

	// Args is the argument payload as hex, e.g. "05". Empty uses the
	// catalog's fixed arguments.
	Args string `json:"args,omitempty"`

	// Source indicates where the command originated ("ui", "automation").
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckQueued indicates the command was accepted into the transmission queue.
	AckQueued AckStatus = "queued"

	// AckRejected indicates the command could not be queued.
	AckRejected AckStatus = "rejected"
)

// AckMessage reports whether a command was queued.
// Topic: webcamctrl/ack/{name}
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id,omitempty"`

	// InstanceID is the queued instance, set when Status is queued.
	InstanceID string `json:"instance_id,omitempty"`

	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Status    AckStatus `json:"status"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for rejected commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for rejected commands.
const (
	ErrCodeUnknownCommand   = "UNKNOWN_COMMAND"
	ErrCodeInvalidArguments = "INVALID_ARGUMENTS"
	ErrCodeInvalidPayload   = "INVALID_PAYLOAD"
	ErrCodeBridgeError      = "BRIDGE_ERROR"
)

// ResponseMessage carries one classified camera response.
// Topic: webcamctrl/response
type ResponseMessage struct {
	Timestamp time.Time `json:"timestamp"`

	// Command is the outstanding command when the response arrived.
	// Empty for unsolicited messages.
	Command   string `json:"command,omitempty"`
	CommandID string `json:"command_id,omitempty"`

	// Outcome is "success", "fail" or "passthrough".
	Outcome string `json:"outcome"`

	// Status, Args and Raw are upper-case hex.
	Status string `json:"status"`
	Args   string `json:"args,omitempty"`
	Raw    string `json:"raw"`

	LatencyMS int64 `json:"latency_ms,omitempty"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// Topic: webcamctrl/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string            `json:"bridge"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        HealthStatus      `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Connection    *ConnectionStatus `json:"connection,omitempty"`
	Statistics    *BridgeStatistics `json:"statistics,omitempty"`
	Discovered    bool              `json:"discovered"`
	Reason        string            `json:"reason,omitempty"`
}

// ConnectionStatus describes the camera link state.
type ConnectionStatus struct {
	// Status is "connected", "disconnected" or "connecting".
	Status  string `json:"status"`
	Address string `json:"address"`
}

// BridgeStatistics contains operational metrics.
type BridgeStatistics struct {
	CommandsSent      uint64 `json:"commands_sent"`
	ResponsesReceived uint64 `json:"responses_received"`
	Successes         uint64 `json:"successes"`
	Nacks             uint64 `json:"nacks"`
	Timeouts          uint64 `json:"timeouts"`
	Errors            uint64 `json:"errors"`
	Reconnects        uint64 `json:"reconnects"`
	Pending           int    `json:"pending"`
}

// NewAckMessage creates an acknowledgment for a queued command.
func NewAckMessage(cmd CommandMessage, instanceID string) AckMessage {
	return AckMessage{
		CommandID:  cmd.ID,
		InstanceID: instanceID,
		Timestamp:  time.Now().UTC(),
		Command:    cmd.Command,
		Status:     AckQueued,
	}
}

// NewAckError creates an acknowledgment for a rejected command.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Command:   cmd.Command,
		Status:    AckRejected,
		Error:     &AckError{Code: code, Message: message},
	}
}

// NewResponseMessage converts a classified response for publishing.
func NewResponseMessage(r Response) ResponseMessage {
	return ResponseMessage{
		Timestamp: r.ReceivedAt.UTC(),
		Command:   r.Command,
		CommandID: r.CommandID,
		Outcome:   r.Outcome.String(),
		Status:    FormatHex([]byte{r.Status}),
		Args:      FormatHex(r.Args),
		Raw:       r.Hex(),
		LatencyMS: r.Latency.Milliseconds(),
	}
}

// NewHealthMessage builds a health message from processor statistics.
func NewHealthMessage(version string, status HealthStatus, stats ProcessorStats, address string, startTime time.Time) HealthMessage {
	connStatus := "disconnected"
	switch {
	case stats.Connected:
		connStatus = "connected"
	case stats.Reconnecting:
		connStatus = "connecting"
	}

	return HealthMessage{
		Bridge:        BridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Connection: &ConnectionStatus{
			Status:  connStatus,
			Address: address,
		},
		Statistics: &BridgeStatistics{
			CommandsSent:      stats.CommandsTx,
			ResponsesReceived: stats.ResponsesRx,
			Successes:         stats.Successes,
			Nacks:             stats.Nacks,
			Timeouts:          stats.Timeouts,
			Errors:            stats.ErrorsTotal,
			Reconnects:        stats.ReconnectsTotal,
			Pending:           stats.Pending,
		},
		Discovered: stats.Discovered,
	}
}

// NewLWTMessage creates the Last Will and Testament payload.
func NewLWTMessage() HealthMessage {
	return HealthMessage{
		Bridge:    BridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// CommandTopic returns the topic for commands named name.
func CommandTopic(name string) string {
	return TopicPrefix + "/command/" + name
}

// CommandSubscribeTopic returns the wildcard topic for all commands.
func CommandSubscribeTopic() string {
	return TopicPrefix + "/command/+"
}

// AckTopic returns the acknowledgment topic for commands named name.
func AckTopic(name string) string {
	return TopicPrefix + "/ack/" + name
}

// ResponseTopic returns the topic classified responses are published on.
func ResponseTopic() string {
	return TopicPrefix + "/response"
}

// HealthTopic returns the bridge health topic.
func HealthTopic() string {
	return TopicPrefix + "/health"
}
