package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScheduleEvaluator computes the next firing for a schedule spec. anchor is
// the previously planned run (zero for a brand-new task) and the result
// must be strictly after now. ok=false means the schedule is exhausted (a
// one-shot already fired).
type ScheduleEvaluator interface {
	NextRun(spec string, anchor, now time.Time) (next time.Time, ok bool, err error)
}

// Task is a recurring or one-shot unit of background work. Tasks are
// disabled when retired, never deleted.
type Task struct {
	ID        string
	Title     string
	Schedule  string
	Payload   string
	Enabled   bool
	LastRun   *time.Time
	NextRun   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskRun is one entry in the append-only run-outcome journal.
type TaskRun struct {
	RunID     int64
	TaskID    string
	OK        bool
	Detail    string
	CreatedAt time.Time
}

// Due reports whether the task would be selected by a poll at now.
func (t Task) Due(now time.Time) bool {
	return t.Enabled && t.NextRun != nil && !t.NextRun.After(now)
}

// CreateTask inserts a new enabled task. The evaluator validates the
// schedule spec and computes the initial next_run.
func (s *Store) CreateTask(ctx context.Context, title, scheduleSpec, payload string, eval ScheduleEvaluator) (Task, error) {
	if title == "" {
		return Task{}, fmt.Errorf("create task: empty title")
	}
	now := time.Now().UTC().Truncate(time.Second)
	next, ok, err := eval.NextRun(scheduleSpec, time.Time{}, now)
	if err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}
	if !ok {
		return Task{}, fmt.Errorf("create task: schedule %q has no future firing", scheduleSpec)
	}
	next = next.UTC().Truncate(time.Second)

	task := Task{
		ID:        "task_" + uuid.NewString(),
		Title:     title,
		Schedule:  scheduleSpec,
		Payload:   payload,
		Enabled:   true,
		NextRun:   &next,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.retryOnBusy(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO tasks (id, title, schedule, payload, enabled, last_run, next_run, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, NULL, ?, ?, ?);
		`, task.ID, task.Title, task.Schedule, task.Payload, next.Unix(), now.Unix(), now.Unix())
		return err
	})
	if err != nil {
		return Task{}, fmt.Errorf("create task: %w", mapStoreErr(err))
	}
	return task, nil
}

// GetTask returns a task by id, or ErrNotFound.
func (s *Store) GetTask(ctx context.Context, id string) (Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, schedule, payload, enabled, last_run, next_run, created_at, updated_at
		FROM tasks WHERE id = ?;
	`, id)
	task, err := scanTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task: %w", mapStoreErr(err))
	}
	return task, nil
}

// ListTasks returns all tasks ordered by creation time.
func (s *Store) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, schedule, payload, enabled, last_run, next_run, created_at, updated_at
		FROM tasks ORDER BY created_at ASC, id ASC;
	`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", mapStoreErr(err))
	}
	defer rows.Close()
	return collectTasks(rows)
}

// EnableTask re-enables a retired task.
func (s *Store) EnableTask(ctx context.Context, id string) error {
	return s.setTaskEnabled(ctx, id, true)
}

// DisableTask retires a task. Disabled tasks are never selected as due.
func (s *Store) DisableTask(ctx context.Context, id string) error {
	return s.setTaskEnabled(ctx, id, false)
}

func (s *Store) setTaskEnabled(ctx context.Context, id string, enabled bool) error {
	var affected int64
	err := s.retryOnBusy(ctx, 5, func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE tasks SET enabled = ?, updated_at = ? WHERE id = ?;
		`, boolToInt(enabled), time.Now().UTC().Unix(), id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("set task enabled: %w", mapStoreErr(err))
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DueTasks returns all enabled tasks with next_run <= now. Read-only: the
// scan mutates nothing, claiming is a separate step.
func (s *Store) DueTasks(ctx context.Context, now time.Time) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, schedule, payload, enabled, last_run, next_run, created_at, updated_at
		FROM tasks
		WHERE enabled = 1 AND next_run IS NOT NULL AND next_run <= ?
		ORDER BY next_run ASC, id ASC;
	`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("due tasks: %w", mapStoreErr(err))
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ClaimTask atomically takes a due task for execution: it re-checks that
// the task is still due, stamps last_run = now, and advances next_run to a
// time strictly after now via the evaluator. The update is guarded by the
// next_run value observed at the start of the transaction, so when two
// pollers race on the same window exactly one wins; the loser gets
// ErrConflictingClaim and observes the advanced next_run on its next read.
//
// An exhausted schedule (one-shot that just fired) disables the task
// instead of advancing it. A claim is never undone; cancellation of the
// task body is reported through RecordTaskOutcome.
func (s *Store) ClaimTask(ctx context.Context, id string, now time.Time, eval ScheduleEvaluator) (Task, error) {
	now = now.UTC().Truncate(time.Second)
	var claimed Task
	err := s.retryOnBusy(ctx, 5, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin claim tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx, `
			SELECT id, title, schedule, payload, enabled, last_run, next_run, created_at, updated_at
			FROM tasks WHERE id = ?;
		`, id)
		task, scanErr := scanTask(row.Scan)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return ErrNotFound
		}
		if scanErr != nil {
			return fmt.Errorf("read task for claim: %w", scanErr)
		}
		if !task.Due(now) {
			return ErrConflictingClaim
		}
		anchor := *task.NextRun

		next, ok, evalErr := eval.NextRun(task.Schedule, anchor, now)
		if evalErr != nil {
			return fmt.Errorf("evaluate schedule %q: %w", task.Schedule, evalErr)
		}

		var res sql.Result
		if ok {
			next = next.UTC().Truncate(time.Second)
			if !next.After(now) {
				// Truncation must not hand back a due time in the past.
				next = next.Add(time.Second)
			}
			res, err = tx.ExecContext(ctx, `
				UPDATE tasks
				SET last_run = ?, next_run = ?, updated_at = ?
				WHERE id = ? AND enabled = 1 AND next_run = ?;
			`, now.Unix(), next.Unix(), now.Unix(), id, anchor.Unix())
			task.NextRun = &next
		} else {
			// One-shot fired for the last time: retire rather than delete.
			res, err = tx.ExecContext(ctx, `
				UPDATE tasks
				SET last_run = ?, next_run = NULL, enabled = 0, updated_at = ?
				WHERE id = ? AND enabled = 1 AND next_run = ?;
			`, now.Unix(), now.Unix(), id, anchor.Unix())
			task.NextRun = nil
			task.Enabled = false
		}
		if err != nil {
			return fmt.Errorf("advance task run: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			// Another poller advanced next_run between our read and write.
			return ErrConflictingClaim
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit claim tx: %w", err)
		}
		task.LastRun = &now
		task.UpdatedAt = now
		claimed = task
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflictingClaim) {
			return Task{}, err
		}
		return Task{}, mapStoreErr(err)
	}
	return claimed, nil
}

// RecordTaskOutcome appends a run outcome to the journal. It never touches
// next_run — that already advanced at claim time, so a crashed execution
// cannot block future firings. Delivery is at-least-once by design; task
// bodies carry the idempotency burden.
func (s *Store) RecordTaskOutcome(ctx context.Context, id string, ok bool, detail string) error {
	err := s.retryOnBusy(ctx, 5, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin outcome tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var exists int
		scanErr := tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?;`, id).Scan(&exists)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return ErrNotFound
		}
		if scanErr != nil {
			return fmt.Errorf("check task: %w", scanErr)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO task_runs (task_id, ok, detail, created_at)
			VALUES (?, ?, ?, ?);
		`, id, boolToInt(ok), detail, time.Now().UTC().Unix()); err != nil {
			return fmt.Errorf("insert task run: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("record task outcome: %w", mapStoreErr(err))
	}
	return nil
}

// ListTaskRuns returns the outcome journal for a task, oldest first.
func (s *Store) ListTaskRuns(ctx context.Context, id string) ([]TaskRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, task_id, ok, detail, created_at
		FROM task_runs WHERE task_id = ?
		ORDER BY run_id ASC;
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list task runs: %w", mapStoreErr(err))
	}
	defer rows.Close()

	var out []TaskRun
	for rows.Next() {
		var r TaskRun
		var okInt int
		var detail sql.NullString
		var ts int64
		if err := rows.Scan(&r.RunID, &r.TaskID, &okInt, &detail, &ts); err != nil {
			return nil, fmt.Errorf("scan task run: %w", err)
		}
		r.OK = okInt != 0
		r.Detail = detail.String
		r.CreatedAt = time.Unix(ts, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanTask(scan func(dest ...any) error) (Task, error) {
	var t Task
	var enabled int
	var payload sql.NullString
	var lastRun, nextRun sql.NullInt64
	var createdAt, updatedAt int64
	if err := scan(&t.ID, &t.Title, &t.Schedule, &payload, &enabled, &lastRun, &nextRun, &createdAt, &updatedAt); err != nil {
		return Task{}, err
	}
	t.Payload = payload.String
	t.Enabled = enabled != 0
	if lastRun.Valid {
		ts := time.Unix(lastRun.Int64, 0).UTC()
		t.LastRun = &ts
	}
	if nextRun.Valid {
		ts := time.Unix(nextRun.Int64, 0).UTC()
		t.NextRun = &ts
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return t, nil
}

func collectTasks(rows *sql.Rows) ([]Task, error) {
	var out []Task
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}
