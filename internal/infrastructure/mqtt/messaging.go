package mqtt

import "fmt"

// Publish sends payload to topic at the given QoS. Retained messages
// should be reserved for state topics (system status); import and
// reading events are moments, not state, and go out unretained.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validateTopicQoS(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return wait(c.paho.Publish(topic, qos, retained, payload), opTimeout, ErrPublishFailed)
}

// Subscribe registers handler for topic, which may contain + and #
// wildcards. The subscription is tracked and re-issued after a
// reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validateTopicQoS(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subsMu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.subsMu.Unlock()

	if err := wait(c.paho.Subscribe(topic, qos, c.wrapHandler(handler)), opTimeout, ErrSubscribeFailed); err != nil {
		c.subsMu.Lock()
		delete(c.subs, topic)
		c.subsMu.Unlock()
		return err
	}

	return nil
}

func validateTopicQoS(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}
