package mqtt

// BridgeClient adapts a Client to handlers that do not return errors, the
// shape the camera bridge subscribes with.
type BridgeClient struct {
	*Client
}

// NewBridgeClient wraps c.
func NewBridgeClient(c *Client) *BridgeClient {
	return &BridgeClient{Client: c}
}

// Subscribe registers handler on topic.
func (b *BridgeClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	if handler == nil {
		return b.Client.Subscribe(topic, qos, nil)
	}
	return b.Client.Subscribe(topic, qos, func(t string, payload []byte) error {
		handler(t, payload)
		return nil
	})
}
