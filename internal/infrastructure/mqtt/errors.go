package mqtt

import "errors"

// Errors returned by Client. Compare with errors.Is; most are wrapped with
// the topic or the broker's reason.
var (
	// ErrNotConnected means the broker link is down. Publishes are not
	// buffered while disconnected.
	ErrNotConnected = errors.New("mqtt: broker not connected")

	// ErrConnectionFailed is returned by Connect.
	ErrConnectionFailed = errors.New("mqtt: cannot connect to broker")

	// ErrPublishFailed covers oversize payloads, broker rejections and
	// acknowledgement timeouts.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned by Subscribe and Unsubscribe.
	ErrSubscribeFailed = errors.New("mqtt: subscription failed")

	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
