package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hrygo/cortex/store"
)

const taskColumns = "id, description, status, assigned_assistant, created_ts, updated_ts"

func (d *DB) CreateTask(ctx context.Context, create *store.Task) (*store.Task, error) {
	stmt := `INSERT INTO task (` + taskColumns + `) VALUES (` + placeholders(6) + `)`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID, create.Description, string(create.Status), nullString(create.AssignedAssistant), create.CreatedTs, create.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return create, nil
}

func (d *DB) ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.AssignedAssistant != nil {
		where, args = append(where, "assigned_assistant = "+placeholder(len(args)+1)), append(args, *find.AssignedAssistant)
	}
	if find.Status != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, string(*find.Status))
	}
	if len(find.TagNames) > 0 {
		var cond string
		cond, args = taggedWith("id", store.EntityTask, find.TagNames, args)
		where = append(where, cond)
	}

	query := `SELECT ` + taskColumns + ` FROM task
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts ASC, id ASC` + limitOffset(find.Limit, find.Offset)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return list, nil
}

func (d *DB) UpdateTask(ctx context.Context, update *store.UpdateTask) (*store.Task, error) {
	set, args := []string{}, []any{}

	if update.Description != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *update.Description)
	}
	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, string(*update.Status))
	}
	if update.AssignedAssistant != nil {
		set, args = append(set, "assigned_assistant = "+placeholder(len(args)+1)), append(args, nullString(*update.AssignedAssistant))
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", store.ErrInvalidArgument)
	}

	args = append(args, update.ID)
	stmt := `UPDATE task SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` RETURNING ` + taskColumns
	task, err := scanTask(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", update.ID, store.ErrNotFound)
		}
		return nil, err
	}
	return task, nil
}

func (d *DB) DeleteTask(ctx context.Context, delete *store.DeleteTask) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entity_tag WHERE entity_type = $1 AND entity_id = $2`, string(store.EntityTask), delete.ID,
		); err != nil {
			return fmt.Errorf("failed to delete task tags: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM task WHERE id = $1`, delete.ID)
		if err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		rows, err := affected(result)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("task %s: %w", delete.ID, store.ErrNotFound)
		}
		return nil
	})
}

func scanTask(row scanner) (*store.Task, error) {
	task := &store.Task{}
	var assigned sql.NullString
	if err := row.Scan(&task.ID, &task.Description, &task.Status, &assigned, &task.CreatedTs, &task.UpdatedTs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	task.AssignedAssistant = assigned.String
	return task, nil
}
