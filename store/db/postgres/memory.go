package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

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
		return fmt.Errorf("failed to create memory: %w", err)
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
		where, args = append(where, "m.id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if len(find.IDs) > 0 {
		where, args = append(where, "m.id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.IDs))
	}
	if find.Type != nil {
		where, args = append(where, "m.type = "+placeholder(len(args)+1)), append(args, string(*find.Type))
	}
	if find.AssistantID != nil {
		where = append(where, "m.id IN (SELECT memory_id FROM assistant_memory WHERE assistant_id = "+placeholder(len(args)+1)+")")
		args = append(args, *find.AssistantID)
	}
	if len(find.TagNames) > 0 {
		var cond string
		cond, args = taggedWith("m.id", store.EntityMemory, find.TagNames, args)
		where = append(where, cond)
	}
	if find.Query != nil && *find.Query != "" {
		args = append(args, "%"+*find.Query+"%")
		p := placeholder(len(args))
		where = append(where, `(COALESCE(m.name, '') ILIKE `+p+` OR COALESCE(m.summary, '') ILIKE `+p+`
			OR m.description ILIKE `+p+` OR COALESCE(m.data, '') ILIKE `+p+`)`)
	}

	query := `SELECT ` + memoryColumns + ` FROM memory m
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY m.created_ts ASC, m.id ASC` + limitOffset(find.Limit, find.Offset)
	return queryMemories(ctx, d.db, query, args...)
}

func queryMemories(ctx context.Context, q queryer, query string, args ...any) ([]*store.Memory, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
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
		return nil, fmt.Errorf("error iterating memory rows: %w", err)
	}
	return list, nil
}

func (d *DB) UpdateMemory(ctx context.Context, update *store.UpdateMemory) (*store.Memory, error) {
	set, args := []string{}, []any{}

	if update.Type != nil {
		set, args = append(set, "type = "+placeholder(len(args)+1)), append(args, string(*update.Type))
	}
	if update.Name != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, nullString(*update.Name))
	}
	if update.Summary != nil {
		set, args = append(set, "summary = "+placeholder(len(args)+1)), append(args, nullString(*update.Summary))
	}
	if update.Description != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *update.Description)
	}
	if update.Data != nil {
		set, args = append(set, "data = "+placeholder(len(args)+1)), append(args, nullString(*update.Data))
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", store.ErrInvalidArgument)
	}

	args = append(args, update.ID)
	stmt := `UPDATE memory SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` RETURNING ` + memoryFields
	m, err := scanMemory(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("memory %s: %w", update.ID, store.ErrNotFound)
		}
		return nil, err
	}
	return m, nil
}

func (d *DB) DeleteMemory(ctx context.Context, delete *store.DeleteMemory) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entity_tag WHERE entity_type = $1 AND entity_id = $2`, string(store.EntityMemory), delete.ID,
		); err != nil {
			return fmt.Errorf("failed to delete memory tags: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM memory WHERE id = $1`, delete.ID)
		if err != nil {
			return fmt.Errorf("failed to delete memory: %w", err)
		}
		rows, err := affected(result)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("memory %s: %w", delete.ID, store.ErrNotFound)
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
			`INSERT INTO assistant_memory (assistant_id, memory_id, created_ts) VALUES ($1, $2, $3)
			ON CONFLICT (assistant_id, memory_id) DO NOTHING`,
			assistantID, memoryID, createdTs,
		); err != nil {
			return fmt.Errorf("failed to add owned memory: %w", err)
		}
		return nil
	})
}

func (d *DB) RemoveOwnedMemory(ctx context.Context, assistantID, memoryID string) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`DELETE FROM assistant_memory WHERE assistant_id = $1 AND memory_id = $2`, assistantID, memoryID)
	if err != nil {
		return false, fmt.Errorf("failed to remove owned memory: %w", err)
	}
	rows, err := affected(result)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (d *DB) SetOwnedMemories(ctx context.Context, assistantID string, memoryIDs []string, createdTs int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		// Lock the owner row so concurrent replacements apply one after another.
		var id string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM assistant WHERE id = $1 FOR UPDATE`, assistantID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("assistant %s: %w", assistantID, store.ErrNotFound)
			}
			return fmt.Errorf("failed to lock assistant: %w", err)
		}
		if err := allMemoriesExist(ctx, tx, memoryIDs); err != nil {
			return err
		}

		current, err := queryIDs(ctx, tx, `SELECT memory_id FROM assistant_memory WHERE assistant_id = $1`, assistantID)
		if err != nil {
			return err
		}
		added, removed := store.DiffIDs(current, memoryIDs)
		if len(removed) > 0 {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM assistant_memory WHERE assistant_id = $1 AND memory_id = ANY($2)`, assistantID, pq.Array(removed)); err != nil {
				return fmt.Errorf("failed to remove owned memories: %w", err)
			}
		}
		for _, memoryID := range added {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO assistant_memory (assistant_id, memory_id, created_ts) VALUES ($1, $2, $3)`,
				assistantID, memoryID, createdTs); err != nil {
				return fmt.Errorf("failed to add owned memory: %w", err)
			}
		}
		return nil
	})
}

func allMemoriesExist(ctx context.Context, q queryer, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := queryIDs(ctx, q, `SELECT id FROM memory WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return err
	}
	missing, _ := store.DiffIDs(found, ids)
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("memories %s: %w", strings.Join(missing, ", "), store.ErrNotFound)
}

func scanMemory(row scanner) (*store.Memory, error) {
	m := &store.Memory{}
	var name, summary, data sql.NullString
	if err := row.Scan(&m.ID, &m.Type, &name, &summary, &m.Description, &data, &m.CreatedTs, &m.UpdatedTs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan memory: %w", err)
	}
	m.Name, m.Summary, m.Data = name.String, summary.String, data.String
	return m, nil
}
