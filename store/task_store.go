package store

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Store) CreateTask(ctx context.Context, create *Task) (*Task, error) {
	if create.Description == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "task description is required")
	}
	if create.Status == "" {
		create.Status = TaskStatusPending
	}
	if err := create.Status.Validate(); err != nil {
		return nil, err
	}
	if create.ID == "" {
		create.ID = s.NewID()
	}
	now := s.timestamp()
	create.CreatedTs, create.UpdatedTs = now, now
	return s.driver.CreateTask(ctx, create)
}

func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	list, err := s.driver.ListTasks(ctx, &FindTask{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "task %s", id)
	}
	return list[0], nil
}

func (s *Store) ListTasks(ctx context.Context, find *FindTask) ([]*Task, error) {
	return s.driver.ListTasks(ctx, find)
}

func (s *Store) UpdateTask(ctx context.Context, update *UpdateTask) (*Task, error) {
	if update.Status != nil {
		if err := update.Status.Validate(); err != nil {
			return nil, err
		}
	}
	now := s.timestamp()
	update.UpdatedTs = &now
	return s.driver.UpdateTask(ctx, update)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return s.driver.DeleteTask(ctx, &DeleteTask{ID: id})
}
