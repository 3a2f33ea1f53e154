// Package store keeps the scan history in SQLite: one row per area scan and
// one row per measurement (area, zoom or correction).
package store

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/geometry"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/scan"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("store: session not found")

// DB is the scan history database.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// SQLite allows one writer; observers write from the scan goroutine while
	// the web handlers read.
	sqldb.SetMaxOpenConns(1)

	db := &DB{sqldb}
	if err := db.migrateUp(); err != nil {
		sqldb.Close()
		return nil, err
	}
	debug.Info("Scan history: %s", path)
	return db, nil
}

func (db *DB) migrateUp() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("store: migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("store: sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	// m is not closed: closing it would close db.
	m.Log = migrateLogger{}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	debug.Verbose("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool {
	return debug.IsEnabled(debug.LevelTrace)
}

// Session is one recorded area scan.
type Session struct {
	ID      uuid.UUID
	Started time.Time
	Updated time.Time
	Rows    int
	Cols    int
	Params  scan.Params
	State   string
	Error   string
}

// Measurement is one recorded value.
type Measurement struct {
	SessionID uuid.UUID
	Kind      scan.MeasurementKind
	Index     int
	Cell      geometry.Cell
	Value     float64
	Taken     time.Time
}

// CreateSession records the start of an area scan.
func (db *DB) CreateSession(id uuid.UUID, started time.Time, rows, cols int, p scan.Params) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("store: encode params: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO sessions (session_id, started_ns, updated_ns, grid_rows, grid_cols, params_json, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), started.UnixNano(), started.UnixNano(), rows, cols, string(raw), scan.StatePositioning.String())
	if err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// RecordMeasurement appends one value to the history of its session.
func (db *DB) RecordMeasurement(m Measurement) error {
	_, err := db.Exec(`
		INSERT INTO measurements (session_id, kind, point_index, grid_row, grid_col, value, taken_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.SessionID.String(), string(m.Kind), m.Index, m.Cell.Row, m.Cell.Col, m.Value, m.Taken.UnixNano())
	if err != nil {
		return fmt.Errorf("store: record measurement: %w", err)
	}
	return nil
}

// UpdateState records a state change of a session.
func (db *DB) UpdateState(id uuid.UUID, at time.Time, state scan.State, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := db.Exec(`UPDATE sessions SET state = ?, error = ?, updated_ns = ? WHERE session_id = ?`,
		state.String(), msg, at.UnixNano(), id.String())
	if err != nil {
		return fmt.Errorf("store: update state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Measurements returns the values of a session in the order they were taken.
func (db *DB) Measurements(id uuid.UUID) ([]Measurement, error) {
	rows, err := db.Query(`
		SELECT kind, point_index, grid_row, grid_col, value, taken_ns
		FROM measurements WHERE session_id = ? ORDER BY measurement_id`, id.String())
	if err != nil {
		return nil, fmt.Errorf("store: measurements: %w", err)
	}
	defer rows.Close()

	var out []Measurement
	for rows.Next() {
		m := Measurement{SessionID: id}
		var kind string
		var taken int64
		if err := rows.Scan(&kind, &m.Index, &m.Cell.Row, &m.Cell.Col, &m.Value, &taken); err != nil {
			return nil, fmt.Errorf("store: measurements: %w", err)
		}
		m.Kind = scan.MeasurementKind(kind)
		m.Taken = time.Unix(0, taken)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Session returns one recorded session.
func (db *DB) Session(id uuid.UUID) (*Session, error) {
	row := db.QueryRow(`
		SELECT session_id, started_ns, updated_ns, grid_rows, grid_cols, params_json, state, error
		FROM sessions WHERE session_id = ?`, id.String())
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, err
}

// ListSessions returns the most recent sessions first, at most limit
// (all when limit <= 0).
func (db *DB) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT session_id, started_ns, updated_ns, grid_rows, grid_cols, params_json, state, error
		FROM sessions ORDER BY started_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*Session, error) {
	var (
		s                Session
		id, params       string
		started, updated int64
	)
	if err := r.Scan(&id, &started, &updated, &s.Rows, &s.Cols, &params, &s.State, &s.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: session: %w", err)
	}
	var err error
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("store: session id %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(params), &s.Params); err != nil {
		return nil, fmt.Errorf("store: session %s params: %w", id, err)
	}
	s.Started = time.Unix(0, started)
	s.Updated = time.Unix(0, updated)
	return &s, nil
}
