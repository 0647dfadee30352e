package store

import (
	"context"

	"github.com/pkg/errors"
)

// CreateAssistant assigns ids and timestamps, then writes the assistant and
// its optional seed in one transaction.
func (s *Store) CreateAssistant(ctx context.Context, create *CreateAssistant) (*Assistant, error) {
	if create == nil || create.Assistant == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "assistant is required")
	}
	a := create.Assistant
	if a.Name == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "assistant name is required")
	}
	if err := a.Type.Validate(); err != nil {
		return nil, err
	}
	if a.Type.IsRemote() != (a.RemoteAssistantID != "") {
		return nil, errors.Wrap(ErrInvalidArgument, "remote assistant id must be set exactly for assistant type")
	}

	now := s.timestamp()
	if a.ID == "" {
		a.ID = s.NewID()
	}
	a.CreatedTs, a.UpdatedTs = now, now

	if seed := create.Seed; seed != nil {
		if seed.FocusRule == nil {
			return nil, errors.Wrap(ErrInvalidArgument, "seed requires a focus rule")
		}
		if seed.FocusRule.MaxResults < 0 {
			return nil, errors.Wrap(ErrInvalidArgument, "max results must not be negative")
		}
		if seed.Memory != nil {
			if err := seed.Memory.Type.Validate(); err != nil {
				return nil, err
			}
			s.prepareMemory(seed.Memory, now)
		}
		rule := seed.FocusRule
		if rule.ID == "" {
			rule.ID = s.NewID()
		}
		if rule.Name == "" {
			rule.Name = DefaultFocusRuleName
		}
		rule.AssistantID = a.ID
		rule.CreatedTs, rule.UpdatedTs = now, now
	}

	return s.driver.CreateAssistant(ctx, create)
}

// GetAssistant returns the single assistant matching find, including soft-deleted ones
// unless find excludes them.
func (s *Store) GetAssistant(ctx context.Context, find *FindAssistant) (*Assistant, error) {
	list, err := s.ListAssistants(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrap(ErrNotFound, "assistant not found")
	}
	return list[0], nil
}

// GetAssistantByID returns the assistant with the given id.
func (s *Store) GetAssistantByID(ctx context.Context, id string) (*Assistant, error) {
	a, err := s.GetAssistant(ctx, &FindAssistant{ID: &id})
	if err != nil {
		return nil, errors.Wrapf(err, "assistant %s", id)
	}
	return a, nil
}

func (s *Store) ListAssistants(ctx context.Context, find *FindAssistant) ([]*Assistant, error) {
	return s.driver.ListAssistants(ctx, find)
}

func (s *Store) UpdateAssistant(ctx context.Context, update *UpdateAssistant) (*Assistant, error) {
	if update.Name != nil && *update.Name == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "assistant name cannot be empty")
	}
	now := s.timestamp()
	update.UpdatedTs = &now
	return s.driver.UpdateAssistant(ctx, update)
}

// DeactivateAssistant soft-deletes the assistant: it is renamed with
// InactivePrefix, typed inactive, and its tasks are re-labelled. The remote
// id is kept as history unless clearRemote is set.
func (s *Store) DeactivateAssistant(ctx context.Context, a *Assistant, clearRemote bool) error {
	return s.driver.DeactivateAssistant(ctx, &DeactivateAssistant{
		ID:          a.ID,
		Name:        InactivePrefix + a.Name,
		UpdatedTs:   s.timestamp(),
		ClearRemote: clearRemote,
	})
}
