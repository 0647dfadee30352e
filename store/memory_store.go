package store

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Store) prepareMemory(m *Memory, now int64) {
	if m.ID == "" {
		m.ID = s.NewID()
	}
	m.CreatedTs, m.UpdatedTs = now, now
}

// CreateMemory assigns identity and timestamps and stores the memory.
func (s *Store) CreateMemory(ctx context.Context, create *Memory) (*Memory, error) {
	if err := create.Type.Validate(); err != nil {
		return nil, err
	}
	s.prepareMemory(create, s.timestamp())
	return s.driver.CreateMemory(ctx, create)
}

func (s *Store) GetMemory(ctx context.Context, id string) (*Memory, error) {
	list, err := s.driver.ListMemories(ctx, &FindMemory{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "memory %s", id)
	}
	return list[0], nil
}

func (s *Store) ListMemories(ctx context.Context, find *FindMemory) ([]*Memory, error) {
	return s.driver.ListMemories(ctx, find)
}

// ListMemoriesByAssistant returns the memories owned by the assistant.
func (s *Store) ListMemoriesByAssistant(ctx context.Context, assistantID string) ([]*Memory, error) {
	return s.driver.ListMemories(ctx, &FindMemory{AssistantID: &assistantID})
}

// ListMemoriesByTagNames returns memories carrying any of the tags.
func (s *Store) ListMemoriesByTagNames(ctx context.Context, names []string) ([]*Memory, error) {
	names = NormalizeTagNames(names)
	if len(names) == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "tag names are required")
	}
	return s.driver.ListMemories(ctx, &FindMemory{TagNames: names})
}

func (s *Store) UpdateMemory(ctx context.Context, update *UpdateMemory) (*Memory, error) {
	if update.Type != nil {
		if err := update.Type.Validate(); err != nil {
			return nil, err
		}
	}
	now := s.timestamp()
	update.UpdatedTs = &now
	return s.driver.UpdateMemory(ctx, update)
}

// DeleteMemory removes the memory along with its owned, focused and tag links.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	return s.driver.DeleteMemory(ctx, &DeleteMemory{ID: id})
}

// UpdateMemoryTags makes the memory's tags exactly names: new names are
// attached (creating tags as needed), absent ones detached, the rest untouched.
func (s *Store) UpdateMemoryTags(ctx context.Context, memoryID string, names []string) (bool, error) {
	if err := s.driver.SetEntityTags(ctx, EntityRef{ID: memoryID, Kind: EntityMemory}, s.newTags(names), s.timestamp()); err != nil {
		return false, err
	}
	return true, nil
}

// AddOwnedMemory links the memory to the assistant's owned set. Adding an
// existing link succeeds without change.
func (s *Store) AddOwnedMemory(ctx context.Context, assistantID, memoryID string) (bool, error) {
	if err := s.driver.AddOwnedMemory(ctx, assistantID, memoryID, s.timestamp()); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveOwnedMemory reports false when the link did not exist.
func (s *Store) RemoveOwnedMemory(ctx context.Context, assistantID, memoryID string) (bool, error) {
	return s.driver.RemoveOwnedMemory(ctx, assistantID, memoryID)
}

// SetOwnedMemories replaces the owned set by adding and removing the
// difference inside one transaction.
func (s *Store) SetOwnedMemories(ctx context.Context, assistantID string, memoryIDs []string) (bool, error) {
	if err := s.driver.SetOwnedMemories(ctx, assistantID, DedupeIDs(memoryIDs), s.timestamp()); err != nil {
		return false, err
	}
	return true, nil
}

// DedupeIDs removes empty and repeated ids, keeping the first occurrence.
func DedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

// DiffIDs returns the ids present only in desired (added) and only in current (removed).
func DiffIDs(current, desired []string) (added, removed []string) {
	currentSet := make(map[string]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	desiredSet := make(map[string]struct{}, len(desired))
	for _, id := range desired {
		desiredSet[id] = struct{}{}
		if _, ok := currentSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range current {
		if _, ok := desiredSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}
