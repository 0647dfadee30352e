package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/cortex/store"
)

const (
	memoryFields  = "id, type, name, summary, description, data, created_ts, updated_ts"
	memoryColumns = "m.id, m.type, m.name, m.summary, m.description, m.data, m.created_ts, m.updated_ts"
)

func insertMemory(ctx context.Context, q queryer, m *store.Memory) error {
	stmt := `INSERT INTO memory (` + memoryFields + `) VALUES (` + placeholders(8) + `)`
	if _, err := q.ExecContext(ctx, stmt,
		m.ID, string(m.Type), nullString(m.Name), nullString(m.Summary), m.Description, nullString(m.Data), m.CreatedTs, m.UpdatedTs,
	); err != nil {
		return errors.Wrap(err, "failed to create memory")
	}
	return nil
}

func (d *DB) CreateMemory(ctx context.Context, create *store.Memory) (*store.Memory, error) {
	if err := insertMemory(ctx, d.db, create); err != nil {
		return nil, err
	}
	return create, nil
}

func (d *DB) ListMemories(ctx context.Context, find *store.FindMemory) ([]*store.Memory, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "m.id = ?"), append(args, *find.ID)
	}
	if len(find.IDs) > 0 {
		where, args = append(where, "m.id IN ("+placeholders(len(find.IDs))+")"), append(args, stringArgs(find.IDs)...)
	}
	if find.Type != nil {
		where, args = append(where, "m.type = ?"), append(args, string(*find.Type))
	}
	if find.AssistantID != nil {
		where, args = append(where, "m.id IN (SELECT memory_id FROM assistant_memory WHERE assistant_id = ?)"), append(args, *find.AssistantID)
	}
	if len(find.TagNames) > 0 {
		cond, tagArgs := taggedWith("m.id", store.EntityMemory, find.TagNames)
		where, args = append(where, cond), append(args, tagArgs...)
	}
	if find.Query != nil && *find.Query != "" {
		pattern := "%" + strings.ToLower(*find.Query) + "%"
		where = append(where, `(LOWER(COALESCE(m.name, '')) LIKE ? OR LOWER(COALESCE(m.summary, '')) LIKE ?
			OR LOWER(m.description) LIKE ? OR LOWER(COALESCE(m.data, '')) LIKE ?)`)
		args = append(args, pattern, pattern, pattern, pattern)
	}

	query := `SELECT ` + memoryColumns + ` FROM memory m
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY m.created_ts ASC, m.id ASC` + limitOffset(find.Limit, find.Offset)
	args = limitOffsetArgs(args, find.Limit, find.Offset)

	return queryMemories(ctx, d.db, query, args...)
}

func queryMemories(ctx context.Context, q queryer, query string, args ...any) ([]*store.Memory, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memories")
	}
	defer rows.Close()

	list := make([]*store.Memory, 0)
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate memories")
	}
	return list, nil
}

func (d *DB) UpdateMemory(ctx context.Context, update *store.UpdateMemory) (*store.Memory, error) {
	set, args := []string{}, []any{}

	if update.Type != nil {
		set, args = append(set, "type = ?"), append(args, string(*update.Type))
	}
	if update.Name != nil {
		set, args = append(set, "name = ?"), append(args, nullString(*update.Name))
	}
	if update.Summary != nil {
		set, args = append(set, "summary = ?"), append(args, nullString(*update.Summary))
	}
	if update.Description != nil {
		set, args = append(set, "description = ?"), append(args, *update.Description)
	}
	if update.Data != nil {
		set, args = append(set, "data = ?"), append(args, nullString(*update.Data))
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = ?"), append(args, *update.UpdatedTs)
	}
	if len(set) == 0 {
		return nil, errors.Wrap(store.ErrInvalidArgument, "no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE memory SET ` + strings.Join(set, ", ") + ` WHERE id = ? RETURNING ` + memoryFields
	m, err := scanMemory(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(store.ErrNotFound, "memory %s", update.ID)
		}
		return nil, err
	}
	return m, nil
}

func (d *DB) DeleteMemory(ctx context.Context, delete *store.DeleteMemory) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entity_tag WHERE entity_type = ? AND entity_id = ?`, string(store.EntityMemory), delete.ID,
		); err != nil {
			return errors.Wrap(err, "failed to delete memory tags")
		}
		// assistant_memory, focused_memory and chat_message rows cascade.
		result, err := tx.ExecContext(ctx, `DELETE FROM memory WHERE id = ?`, delete.ID)
		if err != nil {
			return errors.Wrap(err, "failed to delete memory")
		}
		rows, err := affected(result)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.Wrapf(store.ErrNotFound, "memory %s", delete.ID)
		}
		return nil
	})
}

func (d *DB) AddOwnedMemory(ctx context.Context, assistantID, memoryID string, createdTs int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "assistant", assistantID); err != nil {
			return err
		}
		if err := mustExist(ctx, tx, "memory", memoryID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO assistant_memory (assistant_id, memory_id, created_ts) VALUES (?, ?, ?)
			ON CONFLICT (assistant_id, memory_id) DO NOTHING`,
			assistantID, memoryID, createdTs,
		); err != nil {
			return errors.Wrap(err, "failed to add owned memory")
		}
		return nil
	})
}

func (d *DB) RemoveOwnedMemory(ctx context.Context, assistantID, memoryID string) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`DELETE FROM assistant_memory WHERE assistant_id = ? AND memory_id = ?`, assistantID, memoryID)
	if err != nil {
		return false, errors.Wrap(err, "failed to remove owned memory")
	}
	rows, err := affected(result)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (d *DB) SetOwnedMemories(ctx context.Context, assistantID string, memoryIDs []string, createdTs int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "assistant", assistantID); err != nil {
			return err
		}
		if err := allMemoriesExist(ctx, tx, memoryIDs); err != nil {
			return err
		}

		current, err := queryIDs(ctx, tx, `SELECT memory_id FROM assistant_memory WHERE assistant_id = ? ORDER BY created_ts, memory_id`, assistantID)
		if err != nil {
			return err
		}
		added, removed := store.DiffIDs(current, memoryIDs)
		for _, id := range removed {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM assistant_memory WHERE assistant_id = ? AND memory_id = ?`, assistantID, id); err != nil {
				return errors.Wrap(err, "failed to remove owned memory")
			}
		}
		for _, id := range added {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO assistant_memory (assistant_id, memory_id, created_ts) VALUES (?, ?, ?)`,
				assistantID, id, createdTs); err != nil {
				return errors.Wrap(err, "failed to add owned memory")
			}
		}
		return nil
	})
}

func allMemoriesExist(ctx context.Context, q queryer, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := queryIDs(ctx, q, `SELECT id FROM memory WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return err
	}
	missing, _ := store.DiffIDs(found, ids)
	if len(missing) == 0 {
		return nil
	}
	return errors.Wrapf(store.ErrNotFound, "memories %s", strings.Join(missing, ", "))
}

func queryIDs(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query ids")
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate ids")
	}
	return ids, nil
}

func scanMemory(row scanner) (*store.Memory, error) {
	m := &store.Memory{}
	var name, summary, data sql.NullString
	if err := row.Scan(&m.ID, &m.Type, &name, &summary, &m.Description, &data, &m.CreatedTs, &m.UpdatedTs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan memory")
	}
	m.Name, m.Summary, m.Data = name.String, summary.String, data.String
	return m, nil
}
