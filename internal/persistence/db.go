// Package persistence provides SQLite-based storage for sweep runs, their
// per-point results, and recorded traces.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/spatial-dilemma/internal/engine"
	"github.com/talgya/spatial-dilemma/internal/model"
)

// ErrNotFound is returned when a run or meta key does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection for result persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created INTEGER NOT NULL,
		topology TEXT NOT NULL,
		rule TEXT NOT NULL,
		agents INTEGER NOT NULL,
		degree INTEGER NOT NULL,
		kappa REAL NOT NULL,
		seed INTEGER NOT NULL,
		episodes INTEGER NOT NULL,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		run_id TEXT NOT NULL REFERENCES runs(id),
		episode INTEGER NOT NULL,
		dg REAL NOT NULL,
		dr REAL NOT NULL,
		fc REAL NOT NULL,
		outcome TEXT NOT NULL,
		rounds INTEGER NOT NULL,
		PRIMARY KEY (run_id, episode, dr, dg)
	);

	CREATE TABLE IF NOT EXISTS traces (
		run_id TEXT NOT NULL,
		dg REAL NOT NULL,
		dr REAL NOT NULL,
		round INTEGER NOT NULL,
		fc REAL NOT NULL,
		PRIMARY KEY (run_id, dg, dr, round)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run describes one sweep invocation.
type Run struct {
	ID         string  `db:"id" json:"id"`
	Created    int64   `db:"created" json:"created"` // Unix seconds
	Topology   string  `db:"topology" json:"topology"`
	Rule       string  `db:"rule" json:"rule"`
	Agents     int     `db:"agents" json:"agents"`
	Degree     int     `db:"degree" json:"degree"`
	Kappa      float64 `db:"kappa" json:"kappa"`
	Seed       int64   `db:"seed" json:"seed"`
	Episodes   int     `db:"episodes" json:"episodes"`
	ConfigJSON string  `db:"config_json" json:"-"`
}

// NewRun creates a run record with a fresh id for cfg.
func NewRun(cfg engine.Config, episodes int) (Run, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return Run{}, fmt.Errorf("encode config: %w", err)
	}
	return Run{
		ID:         uuid.NewString(),
		Created:    time.Now().Unix(),
		Topology:   string(cfg.Topology),
		Rule:       string(cfg.Rule),
		Agents:     cfg.Population,
		Degree:     cfg.AverageDegree,
		Kappa:      cfg.Kappa,
		Seed:       cfg.Seed,
		Episodes:   episodes,
		ConfigJSON: string(raw),
	}, nil
}

// Config decodes the engine settings stored with the run.
func (r Run) Config() (engine.Config, error) {
	var cfg engine.Config
	if err := json.Unmarshal([]byte(r.ConfigJSON), &cfg); err != nil {
		return cfg, fmt.Errorf("decode config of run %s: %w", r.ID, err)
	}
	return cfg, nil
}

// SaveRun inserts or replaces a run record.
func (db *DB) SaveRun(r Run) error {
	_, err := db.conn.NamedExec(`INSERT OR REPLACE INTO runs
		(id, created, topology, rule, agents, degree, kappa, seed, episodes, config_json)
		VALUES (:id, :created, :topology, :rule, :agents, :degree, :kappa, :seed, :episodes, :config_json)`, r)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	if err := db.SaveMeta("last_run", r.ID); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}

// GetRun returns the run with the given id.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT * FROM runs ORDER BY created DESC, rowid DESC LIMIT ?",
		limit,
	)
	return runs, err
}

// resultRow is the stored form of model.EpisodeResult.
type resultRow struct {
	RunID   string  `db:"run_id"`
	Episode int     `db:"episode"`
	Dg      float64 `db:"dg"`
	Dr      float64 `db:"dr"`
	Fc      float64 `db:"fc"`
	Outcome string  `db:"outcome"`
	Rounds  int     `db:"rounds"`
}

// SaveResults appends results to a run in one transaction.
func (db *DB) SaveResults(runID string, results []model.EpisodeResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO results
		(run_id, episode, dg, dr, fc, outcome, rounds)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		_, err := stmt.Exec(runID, r.Episode, r.Dg, r.Dr, r.Fc, r.Outcome.String(), r.Rounds)
		if err != nil {
			return fmt.Errorf("insert result %s episode %d: %w", r.Params(), r.Episode, err)
		}
	}

	return tx.Commit()
}

// LoadResults returns every result of a run in sweep order: episode, then
// Dr, then Dg.
func (db *DB) LoadResults(runID string) ([]model.EpisodeResult, error) {
	var rows []resultRow
	err := db.conn.Select(&rows,
		"SELECT * FROM results WHERE run_id = ? ORDER BY episode, dr, dg",
		runID,
	)
	if err != nil {
		return nil, err
	}

	out := make([]model.EpisodeResult, len(rows))
	for i, row := range rows {
		outcome, err := model.ParseOutcome(row.Outcome)
		if err != nil {
			return nil, fmt.Errorf("result %d of run %s: %w", i, runID, err)
		}
		out[i] = model.EpisodeResult{
			Episode: row.Episode,
			Dg:      row.Dg,
			Dr:      row.Dr,
			Fc:      row.Fc,
			Outcome: outcome,
			Rounds:  row.Rounds,
		}
	}
	return out, nil
}

// Ensemble aggregates a run's results per parameter point: the mean Fc
// over episodes and the sample variance (n-1 denominator).
func (db *DB) Ensemble(runID string) ([]model.EnsemblePoint, error) {
	var points []model.EnsemblePoint
	err := db.conn.Select(&points, `
		SELECT dg, dr,
			COUNT(*) AS episodes,
			AVG(fc) AS mean,
			CASE WHEN COUNT(*) > 1
				THEN (SUM(fc * fc) - SUM(fc) * SUM(fc) / COUNT(*)) / (COUNT(*) - 1)
				ELSE 0.0
			END AS variance
		FROM results
		WHERE run_id = ?
		GROUP BY dr, dg
		ORDER BY dr, dg`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	// The one-pass formula can dip below zero by rounding.
	for i := range points {
		points[i].Variance = math.Max(0, points[i].Variance)
	}
	return points, nil
}

// SaveTrace replaces the stored trace of one parameter point.
func (db *DB) SaveTrace(runID string, p model.Params, points []model.TracePoint) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM traces WHERE run_id = ? AND dg = ? AND dr = ?", runID, p.Dg, p.Dr); err != nil {
		return err
	}
	for _, tp := range points {
		_, err := tx.Exec(
			"INSERT INTO traces (run_id, dg, dr, round, fc) VALUES (?, ?, ?, ?, ?)",
			runID, p.Dg, p.Dr, tp.Round, tp.Fc,
		)
		if err != nil {
			return fmt.Errorf("insert trace round %d: %w", tp.Round, err)
		}
	}

	return tx.Commit()
}

// LoadTrace returns the stored trace of one parameter point in round order.
func (db *DB) LoadTrace(runID string, p model.Params) ([]model.TracePoint, error) {
	var points []model.TracePoint
	err := db.conn.Select(&points,
		"SELECT round, fc FROM traces WHERE run_id = ? AND dg = ? AND dr = ? ORDER BY round",
		runID, p.Dg, p.Dr,
	)
	return points, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %s: %w", key, ErrNotFound)
	}
	return value, err
}

// LastRun returns the most recently saved run.
func (db *DB) LastRun() (Run, error) {
	id, err := db.GetMeta("last_run")
	if err != nil {
		return Run{}, err
	}
	return db.GetRun(id)
}

// Recorder buffers a sweep's results and writes them one episode at a
// time, so an interrupted sweep keeps every completed point.
type Recorder struct {
	db       *DB
	run      Run
	perFlush int
	pending  []model.EpisodeResult
	saved    int
}

// NewRecorder saves run and returns a recorder that flushes every
// perFlush results.
func (db *DB) NewRecorder(run Run, perFlush int) (*Recorder, error) {
	if err := db.SaveRun(run); err != nil {
		return nil, err
	}
	if perFlush < 1 {
		perFlush = 1
	}
	return &Recorder{db: db, run: run, perFlush: perFlush}, nil
}

// Add buffers one result, flushing when the buffer is full.
func (r *Recorder) Add(res model.EpisodeResult) error {
	r.pending = append(r.pending, res)
	if len(r.pending) >= r.perFlush {
		return r.Flush()
	}
	return nil
}

// Flush writes every buffered result.
func (r *Recorder) Flush() error {
	if len(r.pending) == 0 {
		return nil
	}
	if err := r.db.SaveResults(r.run.ID, r.pending); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	r.saved += len(r.pending)
	slog.Debug("results saved", "run", r.run.ID, "count", len(r.pending), "total", r.saved)
	r.pending = r.pending[:0]
	return nil
}

// Saved returns how many results have been written.
func (r *Recorder) Saved() int {
	return r.saved
}
