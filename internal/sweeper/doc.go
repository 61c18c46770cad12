// Package sweeper runs detection sweeps in the background: once at start,
// then on a fixed interval and whenever a sweep is requested through
// Trigger (HTTP or MQTT). After each sweep it prunes recorded history older
// than the configured retention.
package sweeper
