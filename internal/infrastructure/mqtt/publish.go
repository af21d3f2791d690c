package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize bounds a single publish. Camera traffic is a few hundred
// bytes; anything near this is a bug upstream.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker's
// acknowledgement. Only state topics should be retained.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if n := len(payload); n > maxPayloadSize {
		return fmt.Errorf("%w: %s: %d byte payload over the %d byte limit", ErrPublishFailed, topic, n, maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed, topic)
}

// PublishRetained publishes a retained message at the configured QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, c.qos(), true)
}

// PublishJSON encodes v and publishes it at the configured QoS.
func (c *Client) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %s: encoding payload: %w", ErrPublishFailed, topic, err)
	}
	return c.Publish(topic, payload, c.qos(), retained)
}
