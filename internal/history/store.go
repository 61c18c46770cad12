// Package history persists detection sweeps in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/devsel/internal/device"
)

// DefaultLimit is used by List when limit is not positive.
const DefaultLimit = 20

// MaxLimit caps List.
const MaxLimit = 1000

// Repository defines sweep persistence.
type Repository interface {
	Record(ctx context.Context, result device.Result) error
	List(ctx context.Context, limit int) ([]device.Result, error)
	Get(ctx context.Context, id string) (device.Result, error)
}

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// timeLayout is fixed width so stored timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const sweepColumns = `id, started_at, duration_ns, state, selected_id, matches`

// Store implements Repository over the sweeps and sweep_probes tables.
// It also implements device.SweepObserver, recording every sweep.
type Store struct {
	db     *sql.DB
	logger Logger
}

// NewStore creates a store over a migrated database.
func NewStore(db *sql.DB, logger Logger) *Store {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Store{db: db, logger: logger}
}

// ObserveSweep implements device.SweepObserver. Failures are logged.
func (s *Store) ObserveSweep(ctx context.Context, result device.Result) {
	if err := s.Record(ctx, result); err != nil {
		s.logger.Error("recording sweep", "sweep_id", result.ID, "error", err)
	}
}

// Record stores a sweep and its probe reports in one transaction.
func (s *Store) Record(ctx context.Context, result device.Result) error {
	matches, err := json.Marshal(result.Matches)
	if err != nil {
		return fmt.Errorf("marshalling matches: %w", err)
	}

	var selectedID sql.NullString
	if id, ok := result.Selection.ID(); ok {
		selectedID = sql.NullString{String: id, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sweeps (`+sweepColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		result.ID,
		result.StartedAt.UTC().Format(timeLayout),
		int64(result.Duration),
		result.Selection.State().String(),
		selectedID,
		string(matches),
	)
	if err != nil {
		return fmt.Errorf("inserting sweep: %w", err)
	}

	for i, p := range result.Probes {
		var probeErr sql.NullString
		if p.Error != "" {
			probeErr = sql.NullString{String: p.Error, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sweep_probes (
				sweep_id, position, device_id, outcome, enabled, attempted, live, duration_ns, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.ID, i, p.ID, p.Outcome.String(),
			p.Enabled, p.Attempted, p.Live, int64(p.Duration), probeErr,
		)
		if err != nil {
			return fmt.Errorf("inserting probe %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing sweep: %w", err)
	}
	s.logger.Debug("sweep recorded", "sweep_id", result.ID, "probes", len(result.Probes))
	return nil
}

// List returns the most recent sweeps, newest first, with their probes.
func (s *Store) List(ctx context.Context, limit int) ([]device.Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sweepColumns+` FROM sweeps ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sweeps: %w", err)
	}

	var results []device.Result
	for rows.Next() {
		r, err := scanSweep(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating sweeps: %w", err)
	}
	rows.Close()

	// Probes are loaded after the cursor is closed: the pool has one connection.
	for i := range results {
		probes, err := s.probes(ctx, results[i].ID)
		if err != nil {
			return nil, err
		}
		results[i].Probes = probes
	}
	if results == nil {
		results = []device.Result{}
	}
	return results, nil
}

// Get returns one sweep with its probes.
func (s *Store) Get(ctx context.Context, id string) (device.Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sweepColumns+` FROM sweeps WHERE id = ?`, id)
	r, err := scanSweep(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return device.Result{}, fmt.Errorf("%w: %s", ErrSweepNotFound, id)
		}
		return device.Result{}, err
	}

	r.Probes, err = s.probes(ctx, id)
	if err != nil {
		return device.Result{}, err
	}
	return r, nil
}

// Prune deletes sweeps older than before and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sweeps WHERE started_at < ?`, before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning sweeps: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning sweeps: %w", err)
	}
	return n, nil
}

func (s *Store) probes(ctx context.Context, sweepID string) ([]device.ProbeReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, outcome, enabled, attempted, live, duration_ns, error
		FROM sweep_probes WHERE sweep_id = ? ORDER BY position`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("querying probes: %w", err)
	}
	defer rows.Close()

	probes := []device.ProbeReport{}
	for rows.Next() {
		var (
			p        device.ProbeReport
			outcome  string
			duration int64
			probeErr sql.NullString
		)
		if err := rows.Scan(&p.ID, &outcome, &p.Enabled, &p.Attempted, &p.Live, &duration, &probeErr); err != nil {
			return nil, fmt.Errorf("scanning probe: %w", err)
		}
		p.Outcome, _ = device.ParseOutcome(outcome)
		p.Duration = time.Duration(duration)
		p.Error = probeErr.String
		probes = append(probes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating probes: %w", err)
	}
	return probes, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSweep(row scanner) (device.Result, error) {
	var (
		r          device.Result
		startedAt  string
		duration   int64
		state      string
		selectedID sql.NullString
		matches    string
	)
	if err := row.Scan(&r.ID, &startedAt, &duration, &state, &selectedID, &matches); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scanning sweep: %w", err)
	}

	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return r, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
	}
	r.StartedAt = t
	r.Duration = time.Duration(duration)
	r.Selection = device.SelectionFrom(state, selectedID.String)

	if err := json.NewDecoder(strings.NewReader(matches)).Decode(&r.Matches); err != nil {
		return r, fmt.Errorf("decoding matches: %w", err)
	}
	if r.Matches == nil {
		r.Matches = []string{}
	}
	return r, nil
}
