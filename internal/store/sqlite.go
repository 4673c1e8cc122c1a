package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/everstacklabs/brandscope/internal/aggregate"
	"github.com/everstacklabs/brandscope/internal/export"
	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/quality"
	"github.com/everstacklabs/brandscope/internal/question"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at dsn and configures WAL mode. An
// in-memory DSN is pinned to a single connection so every query sees the
// same database.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	status          TEXT NOT NULL DEFAULT 'running',
	config          TEXT NOT NULL,
	report          TEXT,
	recommendations TEXT,
	artifacts_dir   TEXT NOT NULL DEFAULT '',
	error           TEXT NOT NULL DEFAULT '',
	started_at      DATETIME NOT NULL,
	finished_at     DATETIME
);

CREATE TABLE IF NOT EXISTS results (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	run_index     INTEGER NOT NULL,
	question_id   TEXT NOT NULL,
	analysis_type TEXT NOT NULL,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	status        TEXT NOT NULL,
	latency_ms    INTEGER NOT NULL,
	cost          REAL NOT NULL,
	result        TEXT NOT NULL,
	validation    TEXT,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS merged_sources (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	run_index   INTEGER NOT NULL,
	question_id TEXT NOT NULL,
	data        TEXT NOT NULL,
	PRIMARY KEY (run_id, run_index, question_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
CREATE INDEX IF NOT EXISTS idx_results_provider_status ON results(provider, status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, cfg export.RunConfig) (*Run, error) {
	id := cfg.RunID
	if id == "" {
		id = uuid.New().String()
		cfg.RunID = id
	}
	now := time.Now().UTC()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal config")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, config, started_at) VALUES (?, ?, ?, ?)`,
		id, string(RunStatusRunning), string(cfgJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{ID: id, Status: RunStatusRunning, StartedAt: now, Config: cfg}, nil
}

func (s *SQLiteStore) SaveResult(ctx context.Context, runID string, runIndex int, q question.Question, r provider.Result, v *quality.Result) error {
	resultJSON, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}
	var validation sql.NullString
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal validation")
		}
		validation = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (id, run_id, run_index, question_id, analysis_type, provider, model, status, latency_ms, cost, result, validation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, runIndex, q.ID, string(q.Type), string(r.Provider), r.Model, string(r.Status),
		r.LatencyMs, r.Cost, string(resultJSON), validation, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert result for run %s", runID)
}

func (s *SQLiteStore) SaveSources(ctx context.Context, runID string, qs export.QuestionSources) error {
	data, err := json.Marshal(qs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO merged_sources (run_id, run_index, question_id, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT (run_id, run_index, question_id) DO UPDATE SET data = excluded.data`,
		runID, qs.Run, qs.QuestionID, string(data),
	)
	return eris.Wrapf(err, "sqlite: upsert sources for run %s", runID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, fin Finish) error {
	report, err := nullJSON(fin.Report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	rec, err := nullJSON(fin.Recommendations)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal recommendations")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, report = ?, recommendations = ?, artifacts_dir = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(fin.Status), report, rec, fin.ArtifactsDir, fin.Error, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func nullJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", id)
	}
	return nil
}

const runColumns = `id, status, config, report, recommendations, artifacts_dir, error, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r                   Run
		status, cfgJSON     string
		reportJSON, recJSON sql.NullString
		finishedAt          sql.NullTime
	)
	if err := row.Scan(&r.ID, &status, &cfgJSON, &reportJSON, &recJSON, &r.ArtifactsDir, &r.Error, &r.StartedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.Status = RunStatus(status)
	if err := json.Unmarshal([]byte(cfgJSON), &r.Config); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal config")
	}
	if reportJSON.Valid {
		r.Report = &aggregate.Report{}
		if err := json.Unmarshal([]byte(reportJSON.String), r.Report); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
	}
	if recJSON.Valid {
		r.Recommendations = &aggregate.Recommendations{}
		if err := json.Unmarshal([]byte(recJSON.String), r.Recommendations); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal recommendations")
		}
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	return r, nil
}

// ListRuns returns the most recent runs first. Reports are omitted.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer func() { _ = rows.Close() }()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Report = nil
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) ListResults(ctx context.Context, runID string) ([]ResultRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_index, question_id, analysis_type, result, validation, created_at
		 FROM results WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer func() { _ = rows.Close() }()

	out := []ResultRow{}
	for rows.Next() {
		var (
			rr          ResultRow
			typ, result string
			validation  sql.NullString
		)
		if err := rows.Scan(&rr.RunIndex, &rr.QuestionID, &typ, &result, &validation, &rr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		rr.Type = question.AnalysisType(typ)
		if err := json.Unmarshal([]byte(result), &rr.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
		if validation.Valid {
			rr.Validation = &quality.Result{}
			if err := json.Unmarshal([]byte(validation.String), rr.Validation); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal validation")
			}
		}
		out = append(out, rr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate results")
}

func (s *SQLiteStore) ListSources(ctx context.Context, runID string) ([]export.QuestionSources, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM merged_sources WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sources")
	}
	defer func() { _ = rows.Close() }()

	out := []export.QuestionSources{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sources")
		}
		var qs export.QuestionSources
		if err := json.Unmarshal([]byte(data), &qs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal sources")
		}
		out = append(out, qs)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate sources")
}
