package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementResponse = "camera_response"
	MeasurementLink     = "camera_link"
	MeasurementEvent    = "camera_event"
)

// LinkSample is a point-in-time snapshot of the camera link counters.
type LinkSample struct {
	Connected    bool
	Pending      int
	CommandsTx   uint64
	ResponsesRx  uint64
	Successes    uint64
	Nacks        uint64
	Timeouts     uint64
	Passthroughs uint64
	Reconnects   uint64
	Errors       uint64
}

// WriteResponse records one classified camera response. Unsolicited
// messages have an empty command and are tagged "unsolicited".
//
// Example:
//
//	client.WriteResponse("PRESET_MOVE", "success", 0xB1, 42*time.Millisecond)
func (c *Client) WriteResponse(command, outcome string, status byte, latency time.Duration) {
	if !c.IsConnected() {
		return
	}
	if command == "" {
		command = "unsolicited"
	}

	point := write.NewPoint(
		MeasurementResponse,
		map[string]string{
			"command": command,
			"outcome": outcome,
		},
		map[string]interface{}{
			"status":     int64(status),
			"latency_ms": latency.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteLinkSample records the link counters. Counters are cumulative, so
// rates are derived at query time.
func (c *Client) WriteLinkSample(s LinkSample) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementLink,
		map[string]string{},
		map[string]interface{}{
			"connected":    s.Connected,
			"pending":      int64(s.Pending),
			"commands_tx":  int64(s.CommandsTx),   // #nosec G115 -- counters stay far below MaxInt64
			"responses_rx": int64(s.ResponsesRx),  // #nosec G115
			"successes":    int64(s.Successes),    // #nosec G115
			"nacks":        int64(s.Nacks),        // #nosec G115
			"timeouts":     int64(s.Timeouts),     // #nosec G115
			"passthroughs": int64(s.Passthroughs), // #nosec G115
			"reconnects":   int64(s.Reconnects),   // #nosec G115
			"errors":       int64(s.Errors),       // #nosec G115
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteEvent records an operator-visible event such as a preset store or
// a scan toggle.
//
// Example:
//
//	client.WriteEvent("preset_stored", map[string]interface{}{"preset": 3})
func (c *Client) WriteEvent(kind string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	if len(fields) == 0 {
		fields = map[string]interface{}{"count": int64(1)}
	}

	point := write.NewPoint(MeasurementEvent, map[string]string{"kind": kind}, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
