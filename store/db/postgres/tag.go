package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hrygo/cortex/store"
)

func upsertTags(ctx context.Context, q queryer, tags []*store.Tag) ([]*store.Tag, error) {
	if len(tags) == 0 {
		return []*store.Tag{}, nil
	}
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO tag (id, name, created_ts) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
			tag.ID, tag.Name, tag.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to upsert tag: %w", err)
		}
		names = append(names, tag.Name)
	}
	return queryTags(ctx, q, `SELECT id, name, created_ts FROM tag WHERE name = ANY($1) ORDER BY name`, pq.Array(names))
}

func (d *DB) UpsertTags(ctx context.Context, tags []*store.Tag) ([]*store.Tag, error) {
	var result []*store.Tag
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = upsertTags(ctx, tx, tags)
		return err
	})
	return result, err
}

func (d *DB) ListTags(ctx context.Context, find *store.FindTag) ([]*store.Tag, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if len(find.Names) > 0 {
		where, args = append(where, "name = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.Names))
	}
	if find.Entity != nil {
		args = append(args, find.Entity.ID, string(find.Entity.Kind))
		where = append(where, "id IN (SELECT tag_id FROM entity_tag WHERE entity_id = "+
			placeholder(len(args)-1)+" AND entity_type = "+placeholder(len(args))+")")
	}

	query := `SELECT id, name, created_ts FROM tag WHERE ` + strings.Join(where, " AND ") + ` ORDER BY name`
	return queryTags(ctx, d.db, query, args...)
}

func queryTags(ctx context.Context, q queryer, query string, args ...any) ([]*store.Tag, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Tag, 0)
	for rows.Next() {
		tag := &store.Tag{}
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		list = append(list, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag rows: %w", err)
	}
	return list, nil
}

func (d *DB) AttachTag(ctx context.Context, ref store.EntityRef, tagID string, createdTs int64) error {
	table, err := ref.Kind.Table()
	if err != nil {
		return err
	}
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "tag", tagID); err != nil {
			return err
		}
		if err := mustExist(ctx, tx, table, ref.ID); err != nil {
			return err
		}
		return attachTags(ctx, tx, ref, []string{tagID}, createdTs)
	})
}

func attachTags(ctx context.Context, q queryer, ref store.EntityRef, tagIDs []string, createdTs int64) error {
	for _, tagID := range tagIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO entity_tag (entity_id, entity_type, tag_id, created_ts) VALUES ($1, $2, $3, $4)
			ON CONFLICT (entity_id, entity_type, tag_id) DO NOTHING`,
			ref.ID, string(ref.Kind), tagID, createdTs,
		); err != nil {
			return fmt.Errorf("failed to attach tag: %w", err)
		}
	}
	return nil
}

func (d *DB) DetachTag(ctx context.Context, ref store.EntityRef, tagID string) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`DELETE FROM entity_tag WHERE entity_id = $1 AND entity_type = $2 AND tag_id = $3`,
		ref.ID, string(ref.Kind), tagID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to detach tag: %w", err)
	}
	rows, err := affected(result)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (d *DB) SetEntityTags(ctx context.Context, ref store.EntityRef, tags []*store.Tag, createdTs int64) error {
	table, err := ref.Kind.Table()
	if err != nil {
		return err
	}
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, table, ref.ID); err != nil {
			return err
		}
		stored, err := upsertTags(ctx, tx, tags)
		if err != nil {
			return err
		}
		desired := make([]string, 0, len(stored))
		for _, tag := range stored {
			desired = append(desired, tag.ID)
		}
		current, err := queryIDs(ctx, tx,
			`SELECT tag_id FROM entity_tag WHERE entity_id = $1 AND entity_type = $2`, ref.ID, string(ref.Kind))
		if err != nil {
			return err
		}

		added, removed := store.DiffIDs(current, desired)
		if len(removed) > 0 {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM entity_tag WHERE entity_id = $1 AND entity_type = $2 AND tag_id = ANY($3)`,
				ref.ID, string(ref.Kind), pq.Array(removed),
			); err != nil {
				return fmt.Errorf("failed to detach tags: %w", err)
			}
		}
		return attachTags(ctx, tx, ref, added, createdTs)
	})
}
