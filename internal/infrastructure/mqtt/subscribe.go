package mqtt

import "fmt"

// Subscribe routes messages on topic to handler. Wildcards are allowed,
// e.g. webcamctrl/command/+ for every command name. The subscription is
// remembered and replayed after a reconnect; a failed subscribe is
// forgotten again.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: %s: handler cannot be nil", ErrSubscribeFailed, topic)
	case !c.IsConnected():
		return ErrNotConnected
	}

	c.track(topic, subscription{qos: qos, handler: handler})
	if err := await(c.client.Subscribe(topic, qos, c.deliver(handler)), ErrSubscribeFailed, topic); err != nil {
		c.forget(topic)
		return err
	}
	return nil
}

// Unsubscribe drops topic. Messages already in flight may still arrive.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.forget(topic)
	return await(c.client.Unsubscribe(topic), ErrSubscribeFailed, "unsubscribe "+topic)
}

// SubscriptionCount returns the number of remembered subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subs)
}

// HasSubscription reports whether the exact filter topic is remembered.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subs[topic]
	return ok
}

func (c *Client) track(topic string, sub subscription) {
	c.subMu.Lock()
	if c.subs == nil {
		c.subs = make(map[string]subscription)
	}
	c.subs[topic] = sub
	c.subMu.Unlock()
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subs, topic)
	c.subMu.Unlock()
}

// restore replays remembered subscriptions after a reconnect. Failures
// surface as missing traffic and are logged.
func (c *Client) restore() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for topic, sub := range c.subs {
		token := c.client.Subscribe(topic, sub.qos, c.deliver(sub.handler))
		go func(topic string) {
			if err := await(token, ErrSubscribeFailed, topic); err != nil {
				c.log().Warn("mqtt resubscribe failed", "topic", topic, "error", err)
			}
		}(topic)
	}
}
