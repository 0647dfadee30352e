package store

import (
	"context"

	"github.com/pkg/errors"
)

// newTags builds candidate tag rows for names; ids are only used for names
// that do not exist yet.
func (s *Store) newTags(names []string) []*Tag {
	names = NormalizeTagNames(names)
	now := s.timestamp()
	tags := make([]*Tag, 0, len(names))
	for _, name := range names {
		tags = append(tags, &Tag{ID: s.NewID(), Name: name, CreatedTs: now})
	}
	return tags
}

// UpsertTagsByName creates the tags that do not exist and returns the id of
// every requested name.
func (s *Store) UpsertTagsByName(ctx context.Context, names []string) (map[string]string, error) {
	tags := s.newTags(names)
	result := make(map[string]string, len(tags))
	if len(tags) == 0 {
		return result, nil
	}
	stored, err := s.driver.UpsertTags(ctx, tags)
	if err != nil {
		return nil, err
	}
	for _, tag := range stored {
		result[tag.Name] = tag.ID
	}
	return result, nil
}

func (s *Store) ListTags(ctx context.Context, find *FindTag) ([]*Tag, error) {
	return s.driver.ListTags(ctx, find)
}

// ListTagsForEntity returns the tags attached to ref, in no particular order.
func (s *Store) ListTagsForEntity(ctx context.Context, ref EntityRef) ([]*Tag, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	return s.driver.ListTags(ctx, &FindTag{Entity: &ref})
}

// AttachTag is idempotent: attaching an attached tag succeeds without a new row.
func (s *Store) AttachTag(ctx context.Context, ref EntityRef, tagID string) (bool, error) {
	if err := ref.Validate(); err != nil {
		return false, err
	}
	if err := s.driver.AttachTag(ctx, ref, tagID, s.timestamp()); err != nil {
		return false, err
	}
	return true, nil
}

// DetachTag reports false when the association did not exist.
func (s *Store) DetachTag(ctx context.Context, ref EntityRef, tagID string) (bool, error) {
	if err := ref.Validate(); err != nil {
		return false, err
	}
	return s.driver.DetachTag(ctx, ref, tagID)
}

// SetEntityTags replaces the tags of any taggable entity by name.
func (s *Store) SetEntityTags(ctx context.Context, ref EntityRef, names []string) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	return s.driver.SetEntityTags(ctx, ref, s.newTags(names), s.timestamp())
}

// FindEntitiesByTagNames returns the entities of kind carrying any of the tags.
func (s *Store) FindEntitiesByTagNames(ctx context.Context, kind EntityKind, names []string) (*TaggedEntities, error) {
	names = NormalizeTagNames(names)
	if len(names) == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "tag names are required")
	}

	result := &TaggedEntities{Kind: kind}
	var err error
	switch kind {
	case EntityMemory:
		result.Memories, err = s.driver.ListMemories(ctx, &FindMemory{TagNames: names})
	case EntityAssistant:
		result.Assistants, err = s.driver.ListAssistants(ctx, &FindAssistant{TagNames: names})
	case EntityTask:
		result.Tasks, err = s.driver.ListTasks(ctx, &FindTask{TagNames: names})
	default:
		return nil, kind.Validate()
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
