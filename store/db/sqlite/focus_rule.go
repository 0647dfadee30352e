package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/cortex/store"
)

const focusRuleColumns = "id, assistant_id, name, max_results, created_ts, updated_ts"

func insertFocusRule(ctx context.Context, q queryer, rule *store.FocusRule) error {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO focus_rule (`+focusRuleColumns+`) VALUES (`+placeholders(6)+`)`,
		rule.ID, rule.AssistantID, rule.Name, rule.MaxResults, rule.CreatedTs, rule.UpdatedTs,
	); err != nil {
		return errors.Wrap(err, "failed to create focus rule")
	}
	return nil
}

func insertFocused(ctx context.Context, q queryer, focusRuleID string, memoryIDs []string) error {
	for seq, memoryID := range memoryIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO focused_memory (focus_rule_id, memory_id, seq) VALUES (?, ?, ?)`,
			focusRuleID, memoryID, seq,
		); err != nil {
			return errors.Wrap(err, "failed to focus memory")
		}
	}
	return nil
}

func (d *DB) CreateFocusRule(ctx context.Context, create *store.FocusRule) (*store.FocusRule, error) {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "assistant", create.AssistantID); err != nil {
			return err
		}
		return insertFocusRule(ctx, tx, create)
	})
	if err != nil {
		return nil, err
	}
	return create, nil
}

func (d *DB) ListFocusRules(ctx context.Context, find *store.FindFocusRule) ([]*store.FocusRule, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.AssistantID != nil {
		where, args = append(where, "assistant_id = ?"), append(args, *find.AssistantID)
	}
	if find.Name != nil {
		where, args = append(where, "name = ?"), append(args, *find.Name)
	}
	if find.MemoryID != nil {
		where, args = append(where, "id IN (SELECT focus_rule_id FROM focused_memory WHERE memory_id = ?)"), append(args, *find.MemoryID)
	}

	query := `SELECT ` + focusRuleColumns + ` FROM focus_rule
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts ASC, id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list focus rules")
	}
	defer rows.Close()

	list := make([]*store.FocusRule, 0)
	for rows.Next() {
		rule, err := scanFocusRule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate focus rules")
	}
	return list, nil
}

func (d *DB) DeleteFocusRule(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM focus_rule WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete focus rule")
	}
	rows, err := affected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.Wrapf(store.ErrNotFound, "focus rule %s", id)
	}
	return nil
}

func (d *DB) ListFocusedMemories(ctx context.Context, focusRuleID string) ([]*store.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM focused_memory f
		JOIN memory m ON m.id = f.memory_id
		WHERE f.focus_rule_id = ?
		ORDER BY f.seq ASC`
	return queryMemories(ctx, d.db, query, focusRuleID)
}

func (d *DB) MutateFocusedMemories(ctx context.Context, focusRuleID string, updatedTs int64, mutate store.FocusMutation) (*store.FocusRule, error) {
	var result *store.FocusRule
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		rule, err := scanFocusRule(tx.QueryRowContext(ctx,
			`SELECT `+focusRuleColumns+` FROM focus_rule WHERE id = ?`, focusRuleID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errors.Wrapf(store.ErrNotFound, "focus rule %s", focusRuleID)
			}
			return err
		}
		current, err := queryIDs(ctx, tx,
			`SELECT memory_id FROM focused_memory WHERE focus_rule_id = ? ORDER BY seq ASC`, focusRuleID)
		if err != nil {
			return err
		}

		next := *rule
		focused, err := mutate(&next, current)
		if err != nil {
			return err
		}
		if focused == nil && next.MaxResults == rule.MaxResults {
			result = rule
			return nil
		}
		if next.MaxResults < 0 {
			return errors.Wrap(store.ErrInvalidArgument, "max results must not be negative")
		}

		if focused != nil {
			if err := allMemoriesExist(ctx, tx, focused); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM focused_memory WHERE focus_rule_id = ?`, focusRuleID); err != nil {
				return errors.Wrap(err, "failed to clear focused memories")
			}
			if err := insertFocused(ctx, tx, focusRuleID, focused); err != nil {
				return err
			}
		}
		next.UpdatedTs = updatedTs
		if _, err := tx.ExecContext(ctx,
			`UPDATE focus_rule SET max_results = ?, updated_ts = ? WHERE id = ?`,
			next.MaxResults, next.UpdatedTs, focusRuleID,
		); err != nil {
			return errors.Wrap(err, "failed to update focus rule")
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanFocusRule(row scanner) (*store.FocusRule, error) {
	rule := &store.FocusRule{}
	if err := row.Scan(&rule.ID, &rule.AssistantID, &rule.Name, &rule.MaxResults, &rule.CreatedTs, &rule.UpdatedTs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan focus rule")
	}
	return rule, nil
}
