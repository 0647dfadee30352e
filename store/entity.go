package store

import "github.com/pkg/errors"

// EntityKind discriminates the entities that can carry tags or receive feedback.
type EntityKind string

const (
	EntityMemory    EntityKind = "memory"
	EntityAssistant EntityKind = "assistant"
	EntityTask      EntityKind = "task"
)

// Validate reports whether k names a known entity kind.
func (k EntityKind) Validate() error {
	switch k {
	case EntityMemory, EntityAssistant, EntityTask:
		return nil
	default:
		return errors.Wrapf(ErrInvalidArgument, "unknown entity kind %q", string(k))
	}
}

// Table returns the table that stores entities of kind k.
func (k EntityKind) Table() (string, error) {
	switch k {
	case EntityMemory:
		return "memory", nil
	case EntityAssistant:
		return "assistant", nil
	case EntityTask:
		return "task", nil
	default:
		return "", errors.Wrapf(ErrInvalidArgument, "unknown entity kind %q", string(k))
	}
}

// EntityRef points at one tagged entity.
type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

func (r EntityRef) Validate() error {
	if r.ID == "" {
		return errors.Wrap(ErrInvalidArgument, "entity id is required")
	}
	return r.Kind.Validate()
}
