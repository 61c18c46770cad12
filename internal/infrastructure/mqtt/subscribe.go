package mqtt

import (
	"fmt"
	"strings"
)

// Subscribe registers handler for a topic filter. The filter is remembered
// and restored after every reconnect.
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	if err := validateFilter(filter); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %q", ErrSubscribeFailed, filter)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.remember(subscription{topic: filter, qos: qos, handler: handler})
	err := await(c.client.Subscribe(filter, qos, c.wrapHandler(handler)), defaultPublishTimeout, ErrSubscribeFailed)
	if err != nil {
		c.forget(filter)
		return err
	}
	c.logger.Debug("mqtt subscribed", "filter", filter, "qos", qos)
	return nil
}

// Unsubscribe drops a filter. Messages already in flight may still arrive.
func (c *Client) Unsubscribe(filter string) error {
	if err := validateFilter(filter); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(filter)
	return await(c.client.Unsubscribe(filter), defaultPublishTimeout, ErrUnsubscribeFailed)
}

// SubscriptionCount returns the number of remembered filters.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// validateFilter checks MQTT wildcard placement: + must fill a whole level
// and # must be the whole last level.
func validateFilter(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "#" && i != len(levels)-1,
			level != "#" && strings.Contains(level, "#"),
			level != "+" && strings.Contains(level, "+"):
			return fmt.Errorf("%w: %q", ErrInvalidTopic, filter)
		}
	}
	return nil
}

func (c *Client) remember(sub subscription) {
	c.subMu.Lock()
	c.subscriptions[sub.topic] = sub
	c.subMu.Unlock()
}

func (c *Client) forget(filter string) {
	c.subMu.Lock()
	delete(c.subscriptions, filter)
	c.subMu.Unlock()
}
