package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kraman82351/Task-management/types"
)

const taskColumns = `id, user_id, title, description, due_date, priority, status, completed,
	attachment_key, attachment_filename, attachment_size, attachment_content_type,
	created_at, updated_at`

// TaskRepository handles persistence for tasks.
type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func scanTask(row rowScanner) (types.Task, error) {
	var (
		task                     types.Task
		dueDate                  sql.NullTime
		attKey, attName, attType sql.NullString
		attSize                  sql.NullInt64
	)
	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&dueDate,
		&task.Priority,
		&task.Status,
		&task.Completed,
		&attKey,
		&attName,
		&attSize,
		&attType,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return types.Task{}, err
	}
	if dueDate.Valid {
		due := dueDate.Time
		task.DueDate = &due
	}
	if attKey.Valid {
		task.Attachment = &types.Attachment{
			Key:         attKey.String,
			Filename:    attName.String,
			Size:        attSize.Int64,
			ContentType: attType.String,
		}
	}
	return task, nil
}

func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string) ([]types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	tasks := make([]types.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) Get(ctx context.Context, id string) (types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, mapError(err)
	}
	return task, nil
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	const query = `
		INSERT INTO tasks (id, user_id, title, description, due_date, priority, status, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		nullTime(task.DueDate),
		task.Priority,
		task.Status,
		task.Completed,
		task.CreatedAt,
		task.UpdatedAt,
	); err != nil {
		return types.Task{}, mapError(err)
	}
	return task, nil
}

// Update writes every mutable column. user_id is not part of the statement.
func (r *TaskRepository) Update(ctx context.Context, task types.Task) (types.Task, error) {
	task.UpdatedAt = time.Now()

	var attKey, attName, attType sql.NullString
	var attSize sql.NullInt64
	if task.Attachment != nil {
		attKey = sql.NullString{String: task.Attachment.Key, Valid: true}
		attName = sql.NullString{String: task.Attachment.Filename, Valid: true}
		attType = sql.NullString{String: task.Attachment.ContentType, Valid: true}
		attSize = sql.NullInt64{Int64: task.Attachment.Size, Valid: true}
	}

	const query = `
		UPDATE tasks
		SET title = $1,
			description = $2,
			due_date = $3,
			priority = $4,
			status = $5,
			completed = $6,
			attachment_key = $7,
			attachment_filename = $8,
			attachment_size = $9,
			attachment_content_type = $10,
			updated_at = $11
		WHERE id = $12`
	result, err := r.db.ExecContext(
		ctx,
		query,
		task.Title,
		task.Description,
		nullTime(task.DueDate),
		task.Priority,
		task.Status,
		task.Completed,
		attKey,
		attName,
		attSize,
		attType,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return types.Task{}, mapError(err)
	}
	if err := expectAffected(result); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}

// DeleteByOwner removes every task of ownerID and returns how many were removed.
func (r *TaskRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	const query = `DELETE FROM tasks WHERE user_id = $1`
	result, err := r.db.ExecContext(ctx, query, ownerID)
	if err != nil {
		return 0, mapError(err)
	}
	return result.RowsAffected()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
