package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hrygo/cortex/store"
)

const feedbackColumns = "id, target_id, target_type, user_id, rating, comments, created_ts, updated_ts"

func (d *DB) CreateFeedback(ctx context.Context, create *store.Feedback) (*store.Feedback, error) {
	table, err := create.TargetType.Table()
	if err != nil {
		return nil, err
	}
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, table, create.TargetID); err != nil {
			return err
		}
		stmt := `INSERT INTO feedback (` + feedbackColumns + `) VALUES (` + placeholders(8) + `)`
		if _, err := tx.ExecContext(ctx, stmt,
			create.ID, create.TargetID, string(create.TargetType), nullString(create.UserID), create.Rating,
			nullString(create.Comments), create.CreatedTs, create.UpdatedTs,
		); err != nil {
			return fmt.Errorf("failed to create feedback: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return create, nil
}

func (d *DB) ListFeedback(ctx context.Context, find *store.FindFeedback) ([]*store.Feedback, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.TargetID != nil {
		where, args = append(where, "target_id = "+placeholder(len(args)+1)), append(args, *find.TargetID)
	}
	if find.TargetType != nil {
		where, args = append(where, "target_type = "+placeholder(len(args)+1)), append(args, string(*find.TargetType))
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}

	query := `SELECT ` + feedbackColumns + ` FROM feedback
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id ASC` + limitOffset(find.Limit, 0)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Feedback, 0)
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback rows: %w", err)
	}
	return list, nil
}

func (d *DB) UpdateFeedback(ctx context.Context, update *store.UpdateFeedback) (*store.Feedback, error) {
	var userID, comments sql.NullString
	var rating sql.NullInt32
	if update.UserID != nil {
		userID = sql.NullString{String: *update.UserID, Valid: true}
	}
	if update.Comments != nil {
		comments = sql.NullString{String: *update.Comments, Valid: true}
	}
	if update.Rating != nil {
		rating = sql.NullInt32{Int32: *update.Rating, Valid: true}
	}

	stmt := `UPDATE feedback SET
		user_id = COALESCE($1, user_id),
		rating = COALESCE($2, rating),
		comments = COALESCE($3, comments),
		updated_ts = $4
		WHERE id = $5
		RETURNING ` + feedbackColumns
	f, err := scanFeedback(d.db.QueryRowContext(ctx, stmt, userID, rating, comments, update.UpdatedTs, update.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("feedback %s: %w", update.ID, store.ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

func (d *DB) DeleteFeedback(ctx context.Context, delete *store.DeleteFeedback) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM feedback WHERE id = $1`, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}
	rows, err := affected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("feedback %s: %w", delete.ID, store.ErrNotFound)
	}
	return nil
}

func scanFeedback(row scanner) (*store.Feedback, error) {
	f := &store.Feedback{}
	var userID, comments sql.NullString
	if err := row.Scan(&f.ID, &f.TargetID, &f.TargetType, &userID, &f.Rating, &comments, &f.CreatedTs, &f.UpdatedTs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan feedback: %w", err)
	}
	f.UserID, f.Comments = userID.String, comments.String
	return f, nil
}
