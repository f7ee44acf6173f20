package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/avolkov/todo-atlas/internal/apperror"
	"github.com/avolkov/todo-atlas/internal/model"
	"github.com/avolkov/todo-atlas/internal/repository"
)

// compile-time check that *DB implements repository.TaskRepository
var _ repository.TaskRepository = (*DB)(nil)

// Every query below filters on user_id as well as id. A task belonging to a
// different user is reported as NotFound — callers cannot distinguish
// "someone else's task" from "no such task", which is exactly the intent.

// CreateTask inserts a task for its owner and fills in the generated ID.
func (db *DB) CreateTask(ctx context.Context, task *model.Task) error {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO tasks (title, completed, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		task.Title,
		task.Completed,
		task.UserID,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating task: %w", err)
	}

	// database/sql has no multi-statement transaction here — a failed
	// INSERT leaves nothing behind, and LastInsertId is reliable on the
	// sqlite driver.
	task.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new task id: %w", err)
	}

	return nil
}

// GetTask retrieves one task scoped to its owner.
func (db *DB) GetTask(ctx context.Context, id int64, userID string) (*model.Task, error) {
	var t model.Task
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, completed, user_id, created_at, updated_at
		 FROM tasks WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&t.ID, &t.Title, &t.Completed, &t.UserID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("task", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting task %d: %w", id, err)
	}
	return &t, nil
}

// ListTasks returns the owner's tasks, oldest first, with pagination.
func (db *DB) ListTasks(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Task, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, completed, user_id, created_at, updated_at
		 FROM tasks WHERE user_id = ?
		 ORDER BY id
		 LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0, limit)
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Completed, &t.UserID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tasks: %w", err)
	}

	return tasks, nil
}

// UpdateTask writes title/completed for a task the given user owns.
// RowsAffected == 0 means the task doesn't exist or belongs to someone
// else; both are NotFound.
func (db *DB) UpdateTask(ctx context.Context, task *model.Task) error {
	task.UpdatedAt = time.Now()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE tasks SET title = ?, completed = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		task.Title,
		task.Completed,
		task.UpdatedAt,
		task.ID,
		task.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating task %d: %w", task.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("task", strconv.FormatInt(task.ID, 10))
	}

	return nil
}

// DeleteTask removes a task the given user owns.
func (db *DB) DeleteTask(ctx context.Context, id int64, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting task %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("task", strconv.FormatInt(id, 10))
	}

	return nil
}
