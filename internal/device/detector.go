package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is a scoped transport probe bound to one device's comm section.
//
// Check returns nil when a live connection to the device is established or
// establishable. Implementations bound their own latency; the detector does
// not time them out.
type Session interface {
	Check(ctx context.Context) error
	Close() error
}

// SessionFactory constructs a Session from a comm section. A construction
// error is treated as a failed probe.
type SessionFactory func(comm Section) (Session, error)

// SweepObserver is notified after every completed sweep.
// Observers must not retain the Catalog; they receive the settled Result.
type SweepObserver interface {
	ObserveSweep(ctx context.Context, result Result)
}

// ObserverFunc adapts a function to SweepObserver.
type ObserverFunc func(ctx context.Context, result Result)

// ObserveSweep implements SweepObserver.
func (f ObserverFunc) ObserveSweep(ctx context.Context, result Result) {
	f(ctx, result)
}

// Logger defines the logging interface used by the Detector.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ProbeReport describes one iteration of a sweep.
type ProbeReport struct {
	ID        string        `json:"id"`
	Outcome   Outcome       `json:"outcome"`
	Enabled   bool          `json:"enabled"`
	Attempted bool          `json:"attempted"`
	Live      bool          `json:"live"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
}

// Result is the outcome of one sweep.
type Result struct {
	// ID uniquely identifies the sweep.
	ID string `json:"id"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`

	// Matches lists the live identifiers in catalog order.
	Matches []string `json:"matches"`

	// Selection is the catalog's settled state after disambiguation.
	Selection Selection `json:"selection"`

	Probes []ProbeReport `json:"probes"`
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the detector's logger.
func WithLogger(logger Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObservers appends sweep observers, notified in order.
func WithObservers(observers ...SweepObserver) Option {
	return func(d *Detector) {
		for _, o := range observers {
			if o != nil {
				d.observers = append(d.observers, o)
			}
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// Detector sweeps a Catalog and settles it on the device that answers.
//
// Thread Safety:
//   - Detect and Do share one mutex; concurrent callers are serialised.
//   - Observers run after the mutex is released.
type Detector struct {
	mu        sync.Mutex
	catalog   *Catalog
	open      SessionFactory
	observers []SweepObserver
	logger    Logger
	now       func() time.Time
}

// NewDetector creates a detector over catalog using open to build probes.
func NewDetector(catalog *Catalog, open SessionFactory, opts ...Option) *Detector {
	d := &Detector{
		catalog: catalog,
		open:    open,
		logger:  noopLogger{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddObserver registers an observer after construction.
func (d *Detector) AddObserver(o SweepObserver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

// Do runs fn with exclusive access to the catalog. fn must not call back
// into the Detector.
func (d *Detector) Do(fn func(c *Catalog)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.catalog)
}

// Detect probes every configured device and settles the catalog.
//
// The sweep is serial: each device is selected, its probe is opened,
// checked and closed, and the catalog is reset before the next device.
// Disabled devices are skipped without a probe. Probe failures never abort
// the sweep. Afterwards the catalog is left selected on the single match,
// unset when nothing answered, or ambiguous when several did. Matches always
// carries every live identifier.
func (d *Detector) Detect(ctx context.Context) Result {
	d.mu.Lock()
	result := d.sweep(ctx)
	observers := make([]SweepObserver, len(d.observers))
	copy(observers, d.observers)
	d.mu.Unlock()

	d.logger.Info("detection sweep complete",
		"sweep_id", result.ID,
		"devices", len(result.Probes),
		"matches", len(result.Matches),
		"selection", result.Selection.String(),
		"duration_ms", result.Duration.Milliseconds(),
	)

	for _, o := range observers {
		d.notify(ctx, o, result)
	}
	return result
}

// sweep runs one detection pass. The caller holds d.mu.
func (d *Detector) sweep(ctx context.Context) Result {
	start := d.now()
	result := Result{
		ID:        uuid.NewString(),
		StartedAt: start,
		Matches:   []string{},
	}

	d.catalog.Reset()
	ids := d.catalog.IDs()
	result.Probes = make([]ProbeReport, 0, len(ids))

	for _, id := range ids {
		report := d.probe(ctx, id)
		result.Probes = append(result.Probes, report)
		if report.Live {
			result.Matches = append(result.Matches, id)
		}
		d.catalog.Reset()
	}

	switch len(result.Matches) {
	case 0:
		d.catalog.Reset()
	case 1:
		if _, err := d.catalog.Select(result.Matches[0]); err != nil {
			d.logger.Warn("detected device has an invalid configuration",
				"device_id", result.Matches[0],
				"error", err,
			)
		}
	default:
		d.catalog.MarkAmbiguous()
		d.logger.Warn("detection is ambiguous", "matches", result.Matches)
	}

	result.Selection = d.catalog.Selection()
	result.Duration = d.now().Sub(start)
	return result
}

// probe selects id and, if enabled, checks its channel once.
func (d *Detector) probe(ctx context.Context, id string) ProbeReport {
	report := ProbeReport{ID: id}

	outcome, err := d.catalog.Select(id)
	report.Outcome = outcome
	if err != nil {
		d.logger.Debug("device selection during sweep", "device_id", id, "error", err)
	}

	comm := d.catalog.Comm()
	report.Enabled = d.catalog.IsEnabled()
	if !report.Enabled {
		d.logger.Debug("device disabled, skipping probe", "device_id", id)
		return report
	}

	report.Attempted = true
	start := d.now()
	err = d.check(ctx, comm)
	report.Duration = d.now().Sub(start)
	if err != nil {
		report.Error = err.Error()
		d.logger.Debug("device not live", "device_id", id, "error", err)
		return report
	}

	report.Live = true
	d.logger.Debug("device live", "device_id", id)
	return report
}

// check opens, checks and always closes one session. A panicking session is
// reported as a failed probe.
func (d *Detector) check(ctx context.Context, comm Section) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panic: %v", r)
		}
	}()

	if d.open == nil {
		return fmt.Errorf("no session factory configured")
	}

	sess, err := d.open(comm)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	if sess == nil {
		return fmt.Errorf("opening session: factory returned no session")
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			d.logger.Warn("closing probe session", "error", closeErr)
		}
	}()

	return sess.Check(ctx)
}

// notify calls one observer, recovering from panics.
func (d *Detector) notify(ctx context.Context, o SweepObserver, result Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("sweep observer panic recovered", "sweep_id", result.ID, "panic", r)
		}
	}()
	o.ObserveSweep(ctx, result)
}
