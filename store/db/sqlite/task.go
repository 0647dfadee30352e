package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/cortex/store"
)

const taskColumns = "id, description, status, assigned_assistant, created_ts, updated_ts"

func (d *DB) CreateTask(ctx context.Context, create *store.Task) (*store.Task, error) {
	stmt := `INSERT INTO task (` + taskColumns + `) VALUES (` + placeholders(6) + `)`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID, create.Description, string(create.Status), nullString(create.AssignedAssistant), create.CreatedTs, create.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create task")
	}
	return create, nil
}

func (d *DB) ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.AssignedAssistant != nil {
		where, args = append(where, "assigned_assistant = ?"), append(args, *find.AssignedAssistant)
	}
	if find.Status != nil {
		where, args = append(where, "status = ?"), append(args, string(*find.Status))
	}
	if len(find.TagNames) > 0 {
		cond, tagArgs := taggedWith("id", store.EntityTask, find.TagNames)
		where, args = append(where, cond), append(args, tagArgs...)
	}

	query := `SELECT ` + taskColumns + ` FROM task
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts ASC, id ASC` + limitOffset(find.Limit, find.Offset)
	args = limitOffsetArgs(args, find.Limit, find.Offset)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tasks")
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
		return nil, errors.Wrap(err, "failed to iterate tasks")
	}
	return list, nil
}

func (d *DB) UpdateTask(ctx context.Context, update *store.UpdateTask) (*store.Task, error) {
	set, args := []string{}, []any{}

	if update.Description != nil {
		set, args = append(set, "description = ?"), append(args, *update.Description)
	}
	if update.Status != nil {
		set, args = append(set, "status = ?"), append(args, string(*update.Status))
	}
	if update.AssignedAssistant != nil {
		set, args = append(set, "assigned_assistant = ?"), append(args, nullString(*update.AssignedAssistant))
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = ?"), append(args, *update.UpdatedTs)
	}
	if len(set) == 0 {
		return nil, errors.Wrap(store.ErrInvalidArgument, "no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE task SET ` + strings.Join(set, ", ") + ` WHERE id = ? RETURNING ` + taskColumns
	task, err := scanTask(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(store.ErrNotFound, "task %s", update.ID)
		}
		return nil, err
	}
	return task, nil
}

func (d *DB) DeleteTask(ctx context.Context, delete *store.DeleteTask) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entity_tag WHERE entity_type = ? AND entity_id = ?`, string(store.EntityTask), delete.ID,
		); err != nil {
			return errors.Wrap(err, "failed to delete task tags")
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM task WHERE id = ?`, delete.ID)
		if err != nil {
			return errors.Wrap(err, "failed to delete task")
		}
		rows, err := affected(result)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.Wrapf(store.ErrNotFound, "task %s", delete.ID)
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
		return nil, errors.Wrap(err, "failed to scan task")
	}
	task.AssignedAssistant = assigned.String
	return task, nil
}
