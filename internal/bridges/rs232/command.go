package rs232

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ArgRange is the inclusive range of a device-settable argument.
type ArgRange struct {
	Min int
	Max int
}

// Contains reports whether v lies within the range.
func (r ArgRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// String renders the range the way it appears in a catalog file.
func (r ArgRange) String() string {
	return fmt.Sprintf("%02X..%02X", r.Min, r.Max)
}

// CommandDefinition describes one camera command as loaded from the catalog.
// Definitions are immutable once the catalog is built.
type CommandDefinition struct {
	// Name is the unique catalog key, e.g. "PRESET_MOVE".
	Name string

	// Opcode is the single command byte sent first on the wire.
	Opcode byte

	// Args holds the fixed argument bytes. Mutually exclusive with Range.
	Args []byte

	// Range marks a device-settable argument whose value the caller supplies.
	Range *ArgRange

	// Response is the exact byte sequence acknowledging the command.
	// A nil Response never matches, so the command resolves only through
	// NACK or the ack timeout.
	Response []byte

	// CompletionCode is the single byte signalling the command finished.
	// Zero means any response satisfies completion.
	CompletionCode byte

	// NextCmdDelay is the catalog's inter-command delay override. It is
	// parsed and kept for diagnostics; the queue timing does not consume it.
	NextCmdDelay time.Duration
}

// HasRange reports whether the command takes a caller-supplied argument.
func (d *CommandDefinition) HasRange() bool {
	return d.Range != nil
}

// CheckArgs validates caller arguments against the definition's range.
// Only single-byte arguments are range checked.
func (d *CommandDefinition) CheckArgs(args []byte) error {
	if d.Range == nil || len(args) != 1 {
		return nil
	}
	if !d.Range.Contains(int(args[0])) {
		return fmt.Errorf("%w: %s argument %02X not in %s", ErrArgumentOutOfRange, d.Name, args[0], d.Range)
	}
	return nil
}

// Instance is a CommandDefinition bound to concrete argument bytes.
// It is created per enqueue and dispatched exactly once.
type Instance struct {
	ID         string
	Definition *CommandDefinition
	Args       []byte

	// Attempt counts dispatches under a retry policy, starting at 1.
	Attempt int

	EnqueuedAt time.Time
	SentAt     time.Time
}

// NewInstance binds args to def. When args is empty the definition's fixed
// argument bytes are used. The argument slice is copied.
func NewInstance(def *CommandDefinition, args []byte) *Instance {
	bound := def.Args
	if len(args) > 0 {
		bound = args
	}
	return &Instance{
		ID:         uuid.NewString(),
		Definition: def,
		Args:       bytes.Clone(bound),
		Attempt:    1,
		EnqueuedAt: time.Now(),
	}
}

// Name returns the command name.
func (i *Instance) Name() string {
	return i.Definition.Name
}

// Encode serialises the instance as opcode followed by argument bytes.
// There is no length prefix and no checksum.
func (i *Instance) Encode() []byte {
	frame := make([]byte, 0, 1+len(i.Args))
	frame = append(frame, i.Definition.Opcode)
	return append(frame, i.Args...)
}

// retry returns a copy of the instance for another dispatch attempt.
func (i *Instance) retry() *Instance {
	next := *i
	next.Attempt++
	next.SentAt = time.Time{}
	return &next
}

// Outcome classifies a received response.
type Outcome int

// Response outcomes.
const (
	// OutcomePassthrough is a response that neither resolved nor rejected
	// the outstanding command.
	OutcomePassthrough Outcome = iota

	// OutcomeSuccess means the outstanding command was acknowledged and completed.
	OutcomeSuccess

	// OutcomeFail means the camera rejected the outstanding command.
	OutcomeFail
)

// String returns the outcome name used in logs and published messages.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFail:
		return "fail"
	default:
		return "passthrough"
	}
}

// Response is one message read from the camera, classified against the
// command outstanding when it arrived.
type Response struct {
	Status  byte
	Args    []byte
	Raw     []byte
	Outcome Outcome

	// Command and CommandID identify the outstanding command. Both are
	// empty for unsolicited messages.
	Command   string
	CommandID string

	// Latency is the time since the outstanding command was written.
	Latency time.Duration

	ReceivedAt time.Time
}

// newResponse splits a raw message into status and argument bytes.
func newResponse(raw []byte) Response {
	r := Response{
		Raw:        bytes.Clone(raw),
		ReceivedAt: time.Now(),
	}
	if len(raw) > 0 {
		r.Status = raw[0]
		r.Args = bytes.Clone(raw[1:])
	}
	return r
}

// Hex renders the raw message as upper-case hex.
func (r Response) Hex() string {
	return FormatHex(r.Raw)
}

// FormatHex renders b as upper-case hex without separators.
func FormatHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// ResponseListener receives classified responses. It is called from the
// reader goroutine and must not block for long.
type ResponseListener func(Response)

// MultiListener fans a response out to several listeners in order.
func MultiListener(listeners ...ResponseListener) ResponseListener {
	return func(r Response) {
		for _, l := range listeners {
			if l != nil {
				l(r)
			}
		}
	}
}
