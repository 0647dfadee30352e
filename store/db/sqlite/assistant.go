package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/cortex/store"
)

const assistantColumns = "id, name, description, type, model, remote_assistant_id, created_ts, updated_ts"

func (d *DB) CreateAssistant(ctx context.Context, create *store.CreateAssistant) (*store.Assistant, error) {
	a := create.Assistant
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		stmt := `INSERT INTO assistant (` + assistantColumns + `) VALUES (` + placeholders(8) + `)`
		if _, err := tx.ExecContext(ctx, stmt,
			a.ID, a.Name, a.Description, string(a.Type), a.Model, nullString(a.RemoteAssistantID), a.CreatedTs, a.UpdatedTs,
		); err != nil {
			if isUniqueViolation(err) {
				return errors.Wrapf(store.ErrConflict, "assistant %q already exists", a.Name)
			}
			return errors.Wrap(err, "failed to create assistant")
		}

		seed := create.Seed
		if seed == nil {
			return nil
		}
		if err := insertFocusRule(ctx, tx, seed.FocusRule); err != nil {
			return err
		}
		if seed.Memory == nil {
			return nil
		}
		if err := insertMemory(ctx, tx, seed.Memory); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO assistant_memory (assistant_id, memory_id, created_ts) VALUES (?, ?, ?)`,
			a.ID, seed.Memory.ID, a.CreatedTs,
		); err != nil {
			return errors.Wrap(err, "failed to own seed memory")
		}
		if seed.FocusRule.MaxResults > 0 {
			return insertFocused(ctx, tx, seed.FocusRule.ID, []string{seed.Memory.ID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (d *DB) ListAssistants(ctx context.Context, find *store.FindAssistant) ([]*store.Assistant, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.Name != nil {
		where, args = append(where, "name = ?"), append(args, *find.Name)
	}
	if find.Type != nil {
		where, args = append(where, "type = ?"), append(args, string(*find.Type))
	}
	if find.ExcludeInactive {
		where, args = append(where, "type <> ?"), append(args, string(store.AssistantTypeInactive))
	}
	if len(find.TagNames) > 0 {
		cond, tagArgs := taggedWith("id", store.EntityAssistant, find.TagNames)
		where, args = append(where, cond), append(args, tagArgs...)
	}

	query := `SELECT ` + assistantColumns + ` FROM assistant
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts ASC, id ASC` + limitOffset(find.Limit, find.Offset)
	args = limitOffsetArgs(args, find.Limit, find.Offset)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list assistants")
	}
	defer rows.Close()

	list := make([]*store.Assistant, 0)
	for rows.Next() {
		a, err := scanAssistant(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate assistants")
	}
	return list, nil
}

func (d *DB) UpdateAssistant(ctx context.Context, update *store.UpdateAssistant) (*store.Assistant, error) {
	set, args := []string{}, []any{}

	if update.Name != nil {
		set, args = append(set, "name = ?"), append(args, *update.Name)
	}
	if update.Description != nil {
		set, args = append(set, "description = ?"), append(args, *update.Description)
	}
	if update.Model != nil {
		set, args = append(set, "model = ?"), append(args, *update.Model)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = ?"), append(args, *update.UpdatedTs)
	}
	if len(set) == 0 {
		return nil, errors.Wrap(store.ErrInvalidArgument, "no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE assistant SET ` + strings.Join(set, ", ") + ` WHERE id = ? RETURNING ` + assistantColumns
	a, err := scanAssistant(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(store.ErrNotFound, "assistant %s", update.ID)
		}
		if isUniqueViolation(err) {
			return nil, errors.Wrapf(store.ErrConflict, "assistant %q already exists", *update.Name)
		}
		return nil, err
	}
	return a, nil
}

func (d *DB) DeactivateAssistant(ctx context.Context, deactivate *store.DeactivateAssistant) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		set := "name = ?, type = ?, updated_ts = ?"
		if deactivate.ClearRemote {
			set += ", remote_assistant_id = NULL"
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE assistant SET `+set+` WHERE id = ? AND type <> ?`,
			deactivate.Name, string(store.AssistantTypeInactive), deactivate.UpdatedTs, deactivate.ID, string(store.AssistantTypeInactive),
		)
		if err != nil {
			return errors.Wrap(err, "failed to deactivate assistant")
		}
		rows, err := affected(result)
		if err != nil {
			return err
		}
		if rows == 0 {
			return mustExist(ctx, tx, "assistant", deactivate.ID)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE task SET assigned_assistant = ?, updated_ts = ? WHERE assigned_assistant = ?`,
			store.InactivePrefix+deactivate.ID, deactivate.UpdatedTs, deactivate.ID,
		); err != nil {
			return errors.Wrap(err, "failed to release assistant tasks")
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssistant(row scanner) (*store.Assistant, error) {
	a := &store.Assistant{}
	var remoteID sql.NullString
	if err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Type, &a.Model, &remoteID, &a.CreatedTs, &a.UpdatedTs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan assistant")
	}
	a.RemoteAssistantID = remoteID.String
	return a, nil
}
