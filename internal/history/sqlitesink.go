package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sinkSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	experiment_id TEXT NOT NULL,
	run_index     INTEGER NOT NULL,
	search_space  INTEGER NOT NULL,
	seed          INTEGER NOT NULL,
	strategy      TEXT NOT NULL,
	benchmark     TEXT NOT NULL,
	objective     TEXT NOT NULL,
	generations   INTEGER NOT NULL,
	pop_size      INTEGER NOT NULL,
	started_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS evaluations (
	run_id        TEXT NOT NULL,
	idx           INTEGER NOT NULL,
	generation    INTEGER NOT NULL,
	fitness       REAL NOT NULL,
	valid_error   REAL NOT NULL,
	test_error    REAL NOT NULL,
	training_time REAL NOT NULL,
	budget        INTEGER NOT NULL,
	fingerprint   TEXT,
	valid         INTEGER NOT NULL,
	config_json   TEXT NOT NULL,
	vector_json   TEXT NOT NULL,
	repaired      INTEGER NOT NULL,
	error         TEXT,
	created_at    TEXT NOT NULL,
	PRIMARY KEY (run_id, idx),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// SQLiteSink stores run histories in a SQLite database
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens a SQLite database and runs migrations
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", sinkDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(sinkSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// sinkDSN applies the pragmas to every pooled connection, not just the first
func sinkDSN(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Close closes the underlying database connection
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB
func (s *SQLiteSink) DB() *sql.DB {
	return s.db
}

// Write stores the run and all of its records in one transaction
func (s *SQLiteSink) Write(ctx context.Context, info RunInfo, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, experiment_id, run_index, search_space, seed, strategy, benchmark, objective, generations, pop_size, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.RunID, info.ExperimentID, info.RunIndex, info.SearchSpace, info.Seed,
		info.Strategy, info.Benchmark, info.Objective, info.Generations, info.PopSize,
		info.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO evaluations (run_id, idx, generation, fitness, valid_error, test_error, training_time, budget, fingerprint, valid, config_json, vector_json, repaired, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare evaluation insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		configJSON, err := json.Marshal(rec.Config)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		vectorJSON, err := json.Marshal(rec.Vector)
		if err != nil {
			return fmt.Errorf("marshal vector: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			info.RunID, rec.Index, rec.Generation, rec.Fitness,
			rec.Result.ValidError, rec.Result.TestError, rec.Result.TrainingTime, rec.Result.Budget,
			nullIfEmpty(rec.Fingerprint), boolToInt(rec.Valid), string(configJSON), string(vectorJSON),
			boolToInt(rec.Repaired), nullIfEmpty(rec.Err), rec.Time.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert evaluation %d: %w", rec.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RunSummary is the per-run aggregate stored in the database
type RunSummary struct {
	RunID       string
	SearchSpace int
	Seed        int64
	Evaluations int
	BestFitness float64
}

// Summaries returns one summary per stored run of the experiment, ordered by run index
func (s *SQLiteSink) Summaries(ctx context.Context, experimentID string) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.run_id, r.search_space, r.seed, COUNT(e.idx), COALESCE(MIN(e.fitness), 0)
		 FROM runs r LEFT JOIN evaluations e ON e.run_id = r.run_id
		 WHERE r.experiment_id = ?
		 GROUP BY r.run_id
		 ORDER BY r.search_space, r.run_index`,
		experimentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.RunID, &rs.SearchSpace, &rs.Seed, &rs.Evaluations, &rs.BestFitness); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
