package benchmark

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/denas/internal/nasbench"
	_ "modernc.org/sqlite"
)

const tableSchema = `
CREATE TABLE IF NOT EXISTS architectures (
	fingerprint   TEXT NOT NULL,
	budget        INTEGER NOT NULL,
	valid_error   REAL NOT NULL,
	test_error    REAL NOT NULL,
	training_time REAL NOT NULL,
	PRIMARY KEY (fingerprint, budget)
);
`

// Table is a tabular benchmark keyed by cell fingerprint and budget
type Table struct {
	db *sql.DB
}

// OpenTable opens (creating if needed) a benchmark table at path.
// Use ":memory:" for a throwaway table.
func OpenTable(path string) (*Table, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open benchmark table: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(tableSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate benchmark table: %w", err)
	}
	return &Table{db: db}, nil
}

// Close closes the underlying database connection
func (t *Table) Close() error {
	return t.db.Close()
}

// Name identifies the benchmark in logs and history headers
func (t *Table) Name() string {
	return "table"
}

// Insert stores (or replaces) the result for a cell fingerprint
func (t *Table) Insert(ctx context.Context, fingerprint string, r Result) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO architectures (fingerprint, budget, valid_error, test_error, training_time)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint, budget) DO UPDATE SET
		   valid_error = excluded.valid_error,
		   test_error = excluded.test_error,
		   training_time = excluded.training_time`,
		fingerprint, r.Budget, r.ValidError, r.TestError, r.TrainingTime,
	)
	if err != nil {
		return fmt.Errorf("insert architecture: %w", err)
	}
	return nil
}

// InsertCell fingerprints cell and stores r for it
func (t *Table) InsertCell(ctx context.Context, cell *nasbench.Cell, r Result) error {
	fp, err := cell.Fingerprint()
	if err != nil {
		return err
	}
	return t.Insert(ctx, fp, r)
}

// Query returns the stored result for cell at budget, or ErrNotFound
func (t *Table) Query(ctx context.Context, cell *nasbench.Cell, budget int) (Result, error) {
	fp, err := cell.Fingerprint()
	if err != nil {
		return Result{}, err
	}
	return t.QueryFingerprint(ctx, fp, budget)
}

// QueryFingerprint is Query for an already computed fingerprint
func (t *Table) QueryFingerprint(ctx context.Context, fingerprint string, budget int) (Result, error) {
	r := Result{Budget: budget}
	err := t.db.QueryRowContext(ctx,
		`SELECT valid_error, test_error, training_time FROM architectures
		 WHERE fingerprint = ? AND budget = ?`,
		fingerprint, budget,
	).Scan(&r.ValidError, &r.TestError, &r.TrainingTime)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, fmt.Errorf("%w: %s at budget %d", ErrNotFound, fingerprint, budget)
	}
	if err != nil {
		return Result{}, fmt.Errorf("query architecture: %w", err)
	}
	return r, nil
}

// Best returns the lowest validation and test errors stored for budget.
// They are the reference points regret is measured against.
func (t *Table) Best(ctx context.Context, budget int) (validMin, testMin float64, err error) {
	var v, te sql.NullFloat64
	err = t.db.QueryRowContext(ctx,
		`SELECT MIN(valid_error), MIN(test_error) FROM architectures WHERE budget = ?`,
		budget,
	).Scan(&v, &te)
	if err != nil {
		return 0, 0, fmt.Errorf("query best: %w", err)
	}
	if !v.Valid {
		return 0, 0, fmt.Errorf("%w: no entries at budget %d", ErrNotFound, budget)
	}
	return v.Float64, te.Float64, nil
}

// Count returns the number of stored results
func (t *Table) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM architectures`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count architectures: %w", err)
	}
	return n, nil
}
