package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hrygo/cortex/store"
)

const focusRuleColumns = "id, assistant_id, name, max_results, created_ts, updated_ts"

func insertFocusRule(ctx context.Context, q queryer, rule *store.FocusRule) error {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO focus_rule (`+focusRuleColumns+`) VALUES (`+placeholders(6)+`)`,
		rule.ID, rule.AssistantID, rule.Name, rule.MaxResults, rule.CreatedTs, rule.UpdatedTs,
	); err != nil {
		return fmt.Errorf("failed to create focus rule: %w", err)
	}
	return nil
}

func insertFocused(ctx context.Context, q queryer, focusRuleID string, memoryIDs []string) error {
	for seq, memoryID := range memoryIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO focused_memory (focus_rule_id, memory_id, seq) VALUES ($1, $2, $3)`,
			focusRuleID, memoryID, seq,
		); err != nil {
			return fmt.Errorf("failed to focus memory: %w", err)
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
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.AssistantID != nil {
		where, args = append(where, "assistant_id = "+placeholder(len(args)+1)), append(args, *find.AssistantID)
	}
	if find.Name != nil {
		where, args = append(where, "name = "+placeholder(len(args)+1)), append(args, *find.Name)
	}
	if find.MemoryID != nil {
		where, args = append(where, "id IN (SELECT focus_rule_id FROM focused_memory WHERE memory_id = "+placeholder(len(args)+1)+")"), append(args, *find.MemoryID)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT `+focusRuleColumns+` FROM focus_rule
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_ts ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list focus rules: %w", err)
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
		return nil, fmt.Errorf("error iterating focus rule rows: %w", err)
	}
	return list, nil
}

func (d *DB) DeleteFocusRule(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM focus_rule WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete focus rule: %w", err)
	}
	rows, err := affected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("focus rule %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (d *DB) ListFocusedMemories(ctx context.Context, focusRuleID string) ([]*store.Memory, error) {
	return queryMemories(ctx, d.db, `SELECT `+memoryColumns+` FROM focused_memory f
		JOIN memory m ON m.id = f.memory_id
		WHERE f.focus_rule_id = $1
		ORDER BY f.seq ASC`, focusRuleID)
}

// MutateFocusedMemories holds a row lock on the rule for the whole
// read-modify-write cycle.
func (d *DB) MutateFocusedMemories(ctx context.Context, focusRuleID string, updatedTs int64, mutate store.FocusMutation) (*store.FocusRule, error) {
	var result *store.FocusRule
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		rule, err := scanFocusRule(tx.QueryRowContext(ctx,
			`SELECT `+focusRuleColumns+` FROM focus_rule WHERE id = $1 FOR UPDATE`, focusRuleID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("focus rule %s: %w", focusRuleID, store.ErrNotFound)
			}
			return err
		}
		current, err := queryIDs(ctx, tx,
			`SELECT memory_id FROM focused_memory WHERE focus_rule_id = $1 ORDER BY seq ASC`, focusRuleID)
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
			return fmt.Errorf("max results must not be negative: %w", store.ErrInvalidArgument)
		}

		if focused != nil {
			if err := allMemoriesExist(ctx, tx, focused); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM focused_memory WHERE focus_rule_id = $1`, focusRuleID); err != nil {
				return fmt.Errorf("failed to clear focused memories: %w", err)
			}
			if err := insertFocused(ctx, tx, focusRuleID, focused); err != nil {
				return err
			}
		}
		next.UpdatedTs = updatedTs
		if _, err := tx.ExecContext(ctx,
			`UPDATE focus_rule SET max_results = $1, updated_ts = $2 WHERE id = $3`,
			next.MaxResults, next.UpdatedTs, focusRuleID,
		); err != nil {
			return fmt.Errorf("failed to update focus rule: %w", err)
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
		return nil, fmt.Errorf("failed to scan focus rule: %w", err)
	}
	return rule, nil
}
