package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/devsel/internal/device"
)

// Publisher is the subset of Client used by SweepPublisher.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// SweepPayload is published retained on the sweep result topic.
type SweepPayload struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
	State      string         `json:"state"`
	SelectedID string         `json:"selected_id,omitempty"`
	Matches    []string       `json:"matches"`
	Probes     []ProbePayload `json:"probes"`
}

// ProbePayload summarises one device probe within a sweep.
type ProbePayload struct {
	ID         string `json:"id"`
	Enabled    bool   `json:"enabled"`
	Live       bool   `json:"live"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// SelectionPayload is published retained on the selection topic.
type SelectionPayload struct {
	State     string    `json:"state"`
	ID        string    `json:"id,omitempty"`
	SweepID   string    `json:"sweep_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSweepPayload converts a detection result to its wire form.
func NewSweepPayload(result device.Result) SweepPayload {
	selected, _ := result.Selection.ID()
	p := SweepPayload{
		ID:         result.ID,
		StartedAt:  result.StartedAt.UTC(),
		DurationMS: result.Duration.Milliseconds(),
		State:      result.Selection.State().String(),
		SelectedID: selected,
		Matches:    result.Matches,
		Probes:     make([]ProbePayload, 0, len(result.Probes)),
	}
	if p.Matches == nil {
		p.Matches = []string{}
	}
	for _, r := range result.Probes {
		p.Probes = append(p.Probes, ProbePayload{
			ID:         r.ID,
			Enabled:    r.Enabled,
			Live:       r.Live,
			DurationMS: r.Duration.Milliseconds(),
			Error:      r.Error,
		})
	}
	return p
}

// SweepPublisher publishes every completed sweep and the resulting
// selection as retained messages. It implements device.SweepObserver.
type SweepPublisher struct {
	pub    Publisher
	topics Topics
	logger Logger
}

// NewSweepPublisher creates a publisher. A nil logger discards output.
func NewSweepPublisher(pub Publisher, topics Topics, logger Logger) *SweepPublisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &SweepPublisher{pub: pub, topics: topics, logger: logger}
}

// ObserveSweep implements device.SweepObserver. Publish failures are logged;
// they never affect detection.
func (p *SweepPublisher) ObserveSweep(_ context.Context, result device.Result) {
	if err := p.publishJSON(p.topics.SweepResult(), NewSweepPayload(result)); err != nil {
		p.logger.Warn("publishing sweep result", "sweep_id", result.ID, "error", err)
	}

	selected, _ := result.Selection.ID()
	sel := SelectionPayload{
		State:     result.Selection.State().String(),
		ID:        selected,
		SweepID:   result.ID,
		Timestamp: result.StartedAt.Add(result.Duration).UTC(),
	}
	if err := p.publishJSON(p.topics.Selection(), sel); err != nil {
		p.logger.Warn("publishing selection", "sweep_id", result.ID, "error", err)
	}
}

func (p *SweepPublisher) publishJSON(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", topic, err)
	}
	return p.pub.PublishRetained(topic, data)
}

// DetectCommand is the optional body of a detect command.
type DetectCommand struct {
	RequestID string `json:"request_id,omitempty"`
}

// DetectHandler returns a handler for the detect command topic. trigger
// requests a sweep without blocking and reports whether the request was
// accepted; false means a sweep is already pending. An empty payload is a
// valid command.
func DetectHandler(trigger func() bool, logger Logger) MessageHandler {
	if logger == nil {
		logger = noopLogger{}
	}
	return func(topic string, payload []byte) error {
		var cmd DetectCommand
		if len(bytes.TrimSpace(payload)) > 0 {
			if err := json.Unmarshal(payload, &cmd); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
			}
		}

		if trigger() {
			logger.Info("detect requested over mqtt", "topic", topic, "request_id", cmd.RequestID)
		} else {
			logger.Debug("detect already pending", "topic", topic, "request_id", cmd.RequestID)
		}
		return nil
	}
}

// SubscribeDetect wires DetectHandler onto the client's command topic.
func (c *Client) SubscribeDetect(trigger func() bool) error {
	return c.Subscribe(c.topics.CommandDetect(), byte(c.cfg.QoS), DetectHandler(trigger, c.logger))
}
