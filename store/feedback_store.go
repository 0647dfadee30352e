package store

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Store) CreateFeedback(ctx context.Context, create *Feedback) (*Feedback, error) {
	if err := (EntityRef{ID: create.TargetID, Kind: create.TargetType}).Validate(); err != nil {
		return nil, err
	}
	if create.ID == "" {
		create.ID = s.NewID()
	}
	now := s.timestamp()
	create.CreatedTs, create.UpdatedTs = now, now
	return s.driver.CreateFeedback(ctx, create)
}

func (s *Store) ListFeedback(ctx context.Context, find *FindFeedback) ([]*Feedback, error) {
	return s.driver.ListFeedback(ctx, find)
}

// UpdateFeedback merges the given fields into the stored feedback.
func (s *Store) UpdateFeedback(ctx context.Context, update *UpdateFeedback) (*Feedback, error) {
	update.UpdatedTs = s.timestamp()
	return s.driver.UpdateFeedback(ctx, update)
}

func (s *Store) DeleteFeedback(ctx context.Context, id string) error {
	if id == "" {
		return errors.Wrap(ErrInvalidArgument, "feedback id is required")
	}
	return s.driver.DeleteFeedback(ctx, &DeleteFeedback{ID: id})
}
