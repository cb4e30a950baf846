package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/flatfile/internal/flatfile"
)

// Run status values stored in decode_runs.status.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
	StatusFailed    = "failed"
)

// Run is one row of decode_runs.
type Run struct {
	ID           uuid.UUID  `json:"id"`
	FormatKey    string     `json:"format"`
	Source       string     `json:"source"`
	Status       string     `json:"status"`
	Lines        int        `json:"lines"`
	Records      int        `json:"records"`
	Unresolvable int        `json:"unresolvable"`
	Bytes        int64      `json:"bytes"`
	Aborted      bool       `json:"aborted"`
	LimitReached bool       `json:"limitReached"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// Failure is one unresolvable line of a run.
type Failure struct {
	Line   int    `json:"line"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

// FailureFromRow converts a decoder row error.
func FailureFromRow(row *flatfile.RowError) Failure {
	reason := "unresolvable"
	if row.Err != nil {
		reason = row.Err.Error()
	}
	return Failure{Line: row.Line, Raw: row.Raw, Reason: reason}
}

// Runs records decode runs.
type Runs struct {
	db DBTX
}

// NewRuns returns a run log over db.
func NewRuns(db DBTX) *Runs {
	return &Runs{db: db}
}

// Start inserts a running run and returns its id.
func (r *Runs) Start(ctx context.Context, formatKey, source string) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("new run id: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO decode_runs (id, format_key, source, status) VALUES ($1, $2, $3, $4)`,
		ToPgUUID(id), formatKey, source, StatusRunning,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

// Finish stores the final stats. decodeErr marks the run failed.
func (r *Runs) Finish(ctx context.Context, id uuid.UUID, st flatfile.Stats, decodeErr error) error {
	status := runStatus(st, decodeErr)
	var msg pgtype.Text
	if decodeErr != nil {
		msg = ToPgText(decodeErr.Error())
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE decode_runs
		    SET status = $2, lines = $3, records = $4, unresolvable = $5, bytes = $6,
		        aborted = $7, limit_reached = $8, error = $9, finished_at = now()
		  WHERE id = $1`,
		ToPgUUID(id), status, st.Lines, st.Records, st.Unresolvable, st.Bytes,
		st.Aborted, st.LimitReached, msg,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

func runStatus(st flatfile.Stats, decodeErr error) string {
	switch {
	case decodeErr != nil:
		return StatusFailed
	case st.Aborted:
		return StatusAborted
	default:
		return StatusCompleted
	}
}

// AddFailures copies unresolvable lines for a run.
func (r *Runs) AddFailures(ctx context.Context, id uuid.UUID, failures []Failure) error {
	if len(failures) == 0 {
		return nil
	}
	runID := ToPgUUID(id)
	_, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"decode_failures"},
		[]string{"run_id", "line_number", "raw_line", "reason"},
		pgx.CopyFromSlice(len(failures), func(i int) ([]any, error) {
			f := failures[i]
			return []any{runID, f.Line, f.Raw, f.Reason}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("add failures: %w", err)
	}
	return nil
}

// Get returns one run.
func (r *Runs) Get(ctx context.Context, id uuid.UUID) (Run, error) {
	row := r.db.QueryRow(ctx, selectRuns+` WHERE id = $1`, ToPgUUID(id))
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// Recent returns the latest runs, newest first. An empty formatKey lists
// every format.
func (r *Runs) Recent(ctx context.Context, formatKey string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx,
		selectRuns+` WHERE ($1 = '' OR format_key = $1) ORDER BY started_at DESC LIMIT $2`,
		formatKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const selectRuns = `SELECT id, format_key, source, status, lines, records, unresolvable, bytes,
       aborted, limit_reached, error, started_at, finished_at
  FROM decode_runs`

func scanRun(row pgx.Row) (Run, error) {
	var (
		run      Run
		id       pgtype.UUID
		errText  pgtype.Text
		finished pgtype.Timestamptz
	)
	err := row.Scan(&id, &run.FormatKey, &run.Source, &run.Status, &run.Lines, &run.Records,
		&run.Unresolvable, &run.Bytes, &run.Aborted, &run.LimitReached, &errText,
		&run.StartedAt, &finished)
	if err != nil {
		return Run{}, err
	}
	run.ID = uuid.UUID(id.Bytes)
	run.Error = errText.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}
