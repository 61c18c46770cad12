package influxdb

import (
	"context"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/devsel/internal/device"
)

// Measurement names.
const (
	measurementProbe = "probe"
	measurementSweep = "sweep"
)

// PointWriter accepts points for asynchronous delivery.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// WritePoint queues p. Points written while disconnected are dropped.
func (c *Client) WritePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

// probePoint builds the point for one probe report.
func probePoint(result device.Result, report device.ProbeReport) *write.Point {
	fields := map[string]interface{}{
		"sweep_id":    result.ID,
		"enabled":     report.Enabled,
		"attempted":   report.Attempted,
		"live":        report.Live,
		"duration_ms": float64(report.Duration.Microseconds()) / 1000,
	}
	if report.Error != "" {
		fields["error"] = report.Error
	}

	return write.NewPoint(
		measurementProbe,
		map[string]string{
			"device_id": report.ID,
			"outcome":   report.Outcome.String(),
		},
		fields,
		result.StartedAt,
	)
}

// sweepPoint builds the summary point for a sweep.
func sweepPoint(result device.Result) *write.Point {
	fields := map[string]interface{}{
		"sweep_id":    result.ID,
		"devices":     len(result.Probes),
		"matches":     len(result.Matches),
		"duration_ms": float64(result.Duration.Microseconds()) / 1000,
	}
	if id, ok := result.Selection.ID(); ok {
		fields["selected_id"] = id
	}

	return write.NewPoint(
		measurementSweep,
		map[string]string{"state": result.Selection.State().String()},
		fields,
		result.StartedAt,
	)
}

// SweepRecorder writes sweep telemetry. It implements device.SweepObserver.
type SweepRecorder struct {
	w PointWriter
}

// NewSweepRecorder creates a recorder writing to w.
func NewSweepRecorder(w PointWriter) *SweepRecorder {
	return &SweepRecorder{w: w}
}

// ObserveSweep implements device.SweepObserver.
func (r *SweepRecorder) ObserveSweep(_ context.Context, result device.Result) {
	for _, report := range result.Probes {
		r.w.WritePoint(probePoint(result, report))
	}
	r.w.WritePoint(sweepPoint(result))
}
