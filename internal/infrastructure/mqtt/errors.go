package mqtt

import "errors"

// Sentinel errors; match with errors.Is.
var (
	ErrNotConnected      = errors.New("mqtt: not connected to broker")
	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
	ErrInvalidQoS        = errors.New("mqtt: QoS must be 0, 1 or 2")

	// ErrInvalidTopic covers empty topics, wildcards in publish topics and
	// misplaced wildcards in filters.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrInvalidCommand is returned for a detect command that is not JSON.
	ErrInvalidCommand = errors.New("mqtt: invalid command payload")
)
