package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/cortex/store"
)

func upsertTags(ctx context.Context, q queryer, tags []*store.Tag) ([]*store.Tag, error) {
	if len(tags) == 0 {
		return []*store.Tag{}, nil
	}
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO tag (id, name, created_ts) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`,
			tag.ID, tag.Name, tag.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to upsert tag")
		}
		names = append(names, tag.Name)
	}
	return queryTags(ctx, q, `SELECT t.id, t.name, t.created_ts FROM tag t WHERE t.name IN (`+placeholders(len(names))+`) ORDER BY t.name`, stringArgs(names)...)
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
		where, args = append(where, "t.id = ?"), append(args, *find.ID)
	}
	if len(find.Names) > 0 {
		where, args = append(where, "t.name IN ("+placeholders(len(find.Names))+")"), append(args, stringArgs(find.Names)...)
	}
	if find.Entity != nil {
		where = append(where, "t.id IN (SELECT tag_id FROM entity_tag WHERE entity_id = ? AND entity_type = ?)")
		args = append(args, find.Entity.ID, string(find.Entity.Kind))
	}

	query := `SELECT t.id, t.name, t.created_ts FROM tag t WHERE ` + strings.Join(where, " AND ") + ` ORDER BY t.name`
	return queryTags(ctx, d.db, query, args...)
}

func queryTags(ctx context.Context, q queryer, query string, args ...any) ([]*store.Tag, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tags")
	}
	defer rows.Close()

	list := make([]*store.Tag, 0)
	for rows.Next() {
		tag := &store.Tag{}
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan tag")
		}
		list = append(list, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate tags")
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
			`INSERT INTO entity_tag (entity_id, entity_type, tag_id, created_ts) VALUES (?, ?, ?, ?)
			ON CONFLICT (entity_id, entity_type, tag_id) DO NOTHING`,
			ref.ID, string(ref.Kind), tagID, createdTs,
		); err != nil {
			return errors.Wrap(err, "failed to attach tag")
		}
	}
	return nil
}

func detachTag(ctx context.Context, q queryer, ref store.EntityRef, tagID string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM entity_tag WHERE entity_id = ? AND entity_type = ? AND tag_id = ?`,
		ref.ID, string(ref.Kind), tagID,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to detach tag")
	}
	rows, err := affected(result)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (d *DB) DetachTag(ctx context.Context, ref store.EntityRef, tagID string) (bool, error) {
	return detachTag(ctx, d.db, ref, tagID)
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
			`SELECT tag_id FROM entity_tag WHERE entity_id = ? AND entity_type = ?`, ref.ID, string(ref.Kind))
		if err != nil {
			return err
		}

		added, removed := store.DiffIDs(current, desired)
		for _, tagID := range removed {
			if _, err := detachTag(ctx, tx, ref, tagID); err != nil {
				return err
			}
		}
		return attachTags(ctx, tx, ref, added, createdTs)
	})
}
