// Package execute runs approved statements against the target database
// with a bounded timeout and row cap. It never rewrites or re-interprets
// the statement and never retries.
package execute

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/askdb/askdb/internal/failure"
	"github.com/askdb/askdb/internal/observability"
)

// Result is a bounded, ordered result set. Truncated is set when the
// database had more rows than the cap allowed.
type Result struct {
	Columns   []string
	Rows      [][]any
	RowCount  int
	Truncated bool
	Duration  time.Duration
}

type Options struct {
	RowCap  int
	Timeout time.Duration
}

type Executor struct {
	db      *sql.DB
	rowCap  int
	timeout time.Duration
}

func New(db *sql.DB, opts Options) *Executor {
	rowCap := opts.RowCap
	if rowCap <= 0 {
		rowCap = 200
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Executor{db: db, rowCap: rowCap, timeout: timeout}
}

// Run executes sqlText and reads at most rowCap rows. One extra row is
// fetched to decide the truncated flag without counting the full result.
func (e *Executor) Run(ctx context.Context, sqlText string) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(runCtx, sqlText)
	if err != nil {
		return Result{}, classify(runCtx, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, classify(runCtx, err)
	}

	result := Result{Columns: columns}
	for rows.Next() {
		if result.RowCount == e.rowCap {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, classify(runCtx, err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
		result.RowCount++
	}
	if err := rows.Err(); err != nil && !result.Truncated {
		return Result{}, classify(runCtx, err)
	}

	result.Duration = time.Since(start)
	observability.ObserveExecution(result.Duration)
	return result, nil
}

// classify maps a driver error onto the failure taxonomy. A deadline on
// the run context wins over whatever error text the driver produced, since
// cancellation usually surfaces as a broken connection.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return failure.Wrap(failure.KindExecutionTimeout, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// The server parsed the statement and rejected it; the
		// connection itself is fine.
		return failure.Newf(failure.KindExecutionError, "database rejected statement: %s", pgErr.Message)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return failure.Wrap(failure.KindConnectionLost, err)
	}
	return failure.Wrap(failure.KindExecutionError, err)
}
