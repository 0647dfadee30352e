package store

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Store) CreateFocusRule(ctx context.Context, create *FocusRule) (*FocusRule, error) {
	if create.MaxResults < 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "max results must not be negative")
	}
	if create.AssistantID == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "assistant id is required")
	}
	if create.ID == "" {
		create.ID = s.NewID()
	}
	if create.Name == "" {
		create.Name = DefaultFocusRuleName
	}
	now := s.timestamp()
	create.CreatedTs, create.UpdatedTs = now, now
	return s.driver.CreateFocusRule(ctx, create)
}

func (s *Store) GetFocusRule(ctx context.Context, id string) (*FocusRule, error) {
	list, err := s.driver.ListFocusRules(ctx, &FindFocusRule{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "focus rule %s", id)
	}
	return list[0], nil
}

// ListFocusRules returns rules oldest first.
func (s *Store) ListFocusRules(ctx context.Context, find *FindFocusRule) ([]*FocusRule, error) {
	return s.driver.ListFocusRules(ctx, find)
}

func (s *Store) DeleteFocusRule(ctx context.Context, id string) error {
	return s.driver.DeleteFocusRule(ctx, id)
}

// ListFocusedMemories returns every stored focus row of the rule in insertion
// order, without applying the capacity.
func (s *Store) ListFocusedMemories(ctx context.Context, focusRuleID string) ([]*Memory, error) {
	return s.driver.ListFocusedMemories(ctx, focusRuleID)
}

// MutateFocusedMemories runs mutate against the locked rule.
func (s *Store) MutateFocusedMemories(ctx context.Context, focusRuleID string, mutate FocusMutation) (*FocusRule, error) {
	return s.driver.MutateFocusedMemories(ctx, focusRuleID, s.timestamp(), mutate)
}
