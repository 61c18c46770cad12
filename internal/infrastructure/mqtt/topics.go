package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "devsel"

// Topics builds devsel MQTT topics under a common prefix.
type Topics struct {
	prefix string
}

// NewTopics returns topic builders rooted at prefix. Surrounding slashes are
// trimmed; an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: devsel/system/status
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}

// SweepResult returns the retained topic carrying the latest sweep summary.
//
// Example: devsel/sweep/result
func (t Topics) SweepResult() string {
	return t.Prefix() + "/sweep/result"
}

// Selection returns the retained topic carrying the current selection.
//
// Example: devsel/selection
func (t Topics) Selection() string {
	return t.Prefix() + "/selection"
}

// CommandDetect returns the inbound topic that requests a sweep.
//
// Example: devsel/command/detect
func (t Topics) CommandDetect() string {
	return t.Prefix() + "/command/detect"
}

// All returns a wildcard matching every devsel topic.
func (t Topics) All() string {
	return t.Prefix() + "/#"
}
