package script

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// StatementError reports a failed script statement. Index is 1-based.
type StatementError struct {
	Index     int
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d failed: %v\n%s", e.Index, e.Err, e.Statement)
}

func (e *StatementError) Unwrap() error { return e.Err }

// Result counts the statements a run executed and the ones that failed.
type Result struct {
	Executed int
	Failed   int
}

// Runner executes scripts statement by statement.
type Runner struct {
	DB sqlx.ExecerContext
	// TerminateOnError stops the run at the first failing statement.
	// Otherwise failures are logged and the run continues.
	TerminateOnError bool
	Logger           *slog.Logger
}

// Run reads the whole script from r and executes it.
func (rn *Runner) Run(ctx context.Context, r io.Reader) (Result, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("read script: %w", err)
	}
	return rn.RunString(ctx, string(src))
}

// RunString executes the statements of src.
func (rn *Runner) RunString(ctx context.Context, src string) (Result, error) {
	logger := rn.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var res Result
	t := NewTokenizer(src)
	for i := 1; ; i++ {
		stmt, ok := t.Next()
		if !ok {
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := rn.DB.ExecContext(ctx, stmt); err != nil {
			res.Failed++
			if rn.TerminateOnError {
				return res, &StatementError{Index: i, Statement: stmt, Err: err}
			}
			logger.Warn("script statement failed", "index", i, "statement", stmt, "error", err)
			continue
		}
		res.Executed++
	}
}
