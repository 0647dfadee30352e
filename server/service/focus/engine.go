// Package focus maintains the bounded, ordered focus groups that decide which
// memories make up an assistant's instructions.
package focus

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/cortex/ai/metrics"
	"github.com/hrygo/cortex/internal/profile"
	"github.com/hrygo/cortex/store"
)

// Engine applies the focus group policy on top of the store. Every mutation
// runs under the store's per-rule lock; every read re-applies the capacity.
type Engine struct {
	store   *store.Store
	profile *profile.Profile
	metrics *metrics.PrometheusExporter
}

func NewEngine(st *store.Store, p *profile.Profile, m *metrics.PrometheusExporter) *Engine {
	return &Engine{store: st, profile: p, metrics: m}
}

// DefaultCapacity is the capacity given to rules created without one.
func (e *Engine) DefaultCapacity() int {
	if e.profile == nil {
		return profile.DefaultFocusCapacity
	}
	return e.profile.DefaultFocusCapacity
}

// CreateFocusRule creates a named rule for the assistant. A nil maxResults
// uses the default capacity; zero is legal and keeps the group empty.
func (e *Engine) CreateFocusRule(ctx context.Context, assistantID, name string, maxResults *int) (*store.FocusRule, error) {
	capacity := e.DefaultCapacity()
	if maxResults != nil {
		capacity = *maxResults
	}
	return e.store.CreateFocusRule(ctx, &store.FocusRule{
		AssistantID: assistantID,
		Name:        name,
		MaxResults:  capacity,
	})
}

func (e *Engine) GetFocusRule(ctx context.Context, id string) (*store.FocusRule, error) {
	return e.store.GetFocusRule(ctx, id)
}

func (e *Engine) ListFocusRules(ctx context.Context, assistantID string) ([]*store.FocusRule, error) {
	return e.store.ListFocusRules(ctx, &store.FindFocusRule{AssistantID: &assistantID})
}

func (e *Engine) DeleteFocusRule(ctx context.Context, id string) error {
	return e.store.DeleteFocusRule(ctx, id)
}

// DefaultRule returns the assistant's rule named "default", or its oldest
// rule when none carries that name.
func (e *Engine) DefaultRule(ctx context.Context, assistantID string) (*store.FocusRule, error) {
	rules, err := e.ListFocusRules(ctx, assistantID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, errors.Wrapf(store.ErrNotFound, "assistant %s has no focus rule", assistantID)
	}
	for _, rule := range rules {
		if rule.Name == store.DefaultFocusRuleName {
			return rule, nil
		}
	}
	return rules[0], nil
}

// GetFocusedMemories returns the rule's memories oldest first, never more
// than the rule's capacity.
func (e *Engine) GetFocusedMemories(ctx context.Context, ruleID string) ([]*store.Memory, error) {
	rule, err := e.store.GetFocusRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	memories, err := e.store.ListFocusedMemories(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if len(memories) > rule.MaxResults {
		slog.Warn("focus group over capacity on read",
			"focus_rule_id", ruleID,
			"count", len(memories),
			"max_results", rule.MaxResults,
		)
	}
	return keepNewest(memories, rule.MaxResults), nil
}

// GetFocusedMemoriesByAssistantID reads the assistant's default rule. A
// positive limit further shortens the capped list from the oldest end.
func (e *Engine) GetFocusedMemoriesByAssistantID(ctx context.Context, assistantID string, limit int) ([]*store.Memory, error) {
	rule, err := e.DefaultRule(ctx, assistantID)
	if err != nil {
		return nil, err
	}
	memories, err := e.GetFocusedMemories(ctx, rule.ID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(memories) {
		memories = memories[:limit]
	}
	return memories, nil
}

// AddFocusedMemory appends the memory as newest. At capacity the oldest
// member is evicted first. Focusing a member again is a successful no-op;
// a zero-capacity rule admits nothing and reports false.
func (e *Engine) AddFocusedMemory(ctx context.Context, ruleID, memoryID string) (bool, error) {
	if _, err := e.store.GetMemory(ctx, memoryID); err != nil {
		return false, err
	}

	var added bool
	var evicted int
	_, err := e.store.MutateFocusedMemories(ctx, ruleID, func(rule *store.FocusRule, focused []string) ([]string, error) {
		next := keepNewest(focused, rule.MaxResults)
		trimmed := len(next) != len(focused)
		evicted = len(focused) - len(next)

		if contains(next, memoryID) {
			added = true
			return changed(next, trimmed), nil
		}
		if rule.MaxResults == 0 {
			added = false
			return changed(next, trimmed), nil
		}
		if len(next) >= rule.MaxResults {
			drop := len(next) - rule.MaxResults + 1
			next = next[drop:]
			evicted += drop
		}
		added = true
		return append(append([]string{}, next...), memoryID), nil
	})
	if err != nil {
		return false, err
	}

	e.metrics.RecordFocusMutation("add")
	e.metrics.RecordFocusEvictions(evicted)
	if evicted > 0 {
		slog.Debug("evicted focused memories", "focus_rule_id", ruleID, "count", evicted)
	}
	return added, nil
}

// RemoveFocusedMemory reports false when the memory was not focused.
func (e *Engine) RemoveFocusedMemory(ctx context.Context, ruleID, memoryID string) (bool, error) {
	var removed bool
	_, err := e.store.MutateFocusedMemories(ctx, ruleID, func(_ *store.FocusRule, focused []string) ([]string, error) {
		next := make([]string, 0, len(focused))
		for _, id := range focused {
			if id == memoryID {
				removed = true
				continue
			}
			next = append(next, id)
		}
		if !removed {
			return nil, nil
		}
		return next, nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		e.metrics.RecordFocusMutation("remove")
	}
	return removed, nil
}

// UpdateFocusedMemories replaces the group with memoryIDs in the given order.
// Repeated ids keep their last position, and only the last maxResults
// entries are retained.
func (e *Engine) UpdateFocusedMemories(ctx context.Context, ruleID string, memoryIDs []string) (bool, error) {
	desired := dedupeKeepLast(memoryIDs)
	if len(desired) > 0 {
		memories, err := e.store.ListMemories(ctx, &store.FindMemory{IDs: desired})
		if err != nil {
			return false, err
		}
		if len(memories) != len(desired) {
			return false, errors.Wrap(store.ErrNotFound, "some memories do not exist")
		}
	}

	var evicted int
	_, err := e.store.MutateFocusedMemories(ctx, ruleID, func(rule *store.FocusRule, _ []string) ([]string, error) {
		next := keepNewest(desired, rule.MaxResults)
		evicted = len(desired) - len(next)
		return next, nil
	})
	if err != nil {
		return false, err
	}
	e.metrics.RecordFocusMutation("replace")
	e.metrics.RecordFocusEvictions(evicted)
	return true, nil
}

// SetMaxResults changes the rule's capacity, dropping the oldest members that
// no longer fit in the same transaction.
func (e *Engine) SetMaxResults(ctx context.Context, ruleID string, maxResults int) (*store.FocusRule, error) {
	if maxResults < 0 {
		return nil, errors.Wrap(store.ErrInvalidArgument, "max results must not be negative")
	}
	var evicted int
	rule, err := e.store.MutateFocusedMemories(ctx, ruleID, func(rule *store.FocusRule, focused []string) ([]string, error) {
		rule.MaxResults = maxResults
		if len(focused) <= maxResults {
			return nil, nil
		}
		evicted = len(focused) - maxResults
		return keepNewest(focused, maxResults), nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.RecordFocusMutation("resize")
	e.metrics.RecordFocusEvictions(evicted)
	return rule, nil
}

// keepNewest returns the last n elements of items.
func keepNewest[T any](items []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

// dedupeKeepLast drops empty ids and keeps each id at its last position.
func dedupeKeepLast(ids []string) []string {
	last := make(map[string]int, len(ids))
	for i, id := range ids {
		last[id] = i
	}
	result := make([]string, 0, len(last))
	for i, id := range ids {
		if id != "" && last[id] == i {
			result = append(result, id)
		}
	}
	return result
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// changed returns next when the set must be rewritten, nil otherwise.
func changed(next []string, rewrite bool) []string {
	if !rewrite {
		return nil
	}
	return append([]string{}, next...)
}
