package store

import "github.com/pkg/errors"

// MemoryType is the category of a memory record.
type MemoryType string

const (
	MemoryTypeInstruction MemoryType = "instruction"
	MemoryTypeSession     MemoryType = "session"
	MemoryTypePrompt      MemoryType = "prompt"
	MemoryTypeKnowledge   MemoryType = "knowledge"
	MemoryTypeMeta        MemoryType = "meta"
)

func (t MemoryType) Validate() error {
	switch t {
	case MemoryTypeInstruction, MemoryTypeSession, MemoryTypePrompt, MemoryTypeKnowledge, MemoryTypeMeta:
		return nil
	default:
		return errors.Wrapf(ErrInvalidArgument, "unsupported memory type %q", string(t))
	}
}

type Memory struct {
	ID          string     `json:"id"`
	Type        MemoryType `json:"type"`
	Name        string     `json:"name,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Description string     `json:"description"`
	Data        string     `json:"data,omitempty"`
	CreatedTs   int64      `json:"created_ts"`
	UpdatedTs   int64      `json:"updated_ts"`
}

type FindMemory struct {
	ID   *string
	IDs  []string
	Type *MemoryType
	// AssistantID restricts the result to memories owned by the assistant.
	AssistantID *string
	// TagNames matches memories carrying any of the tags.
	TagNames []string
	// Query is a case-insensitive substring match over name, summary, description and data.
	Query  *string
	Limit  int
	Offset int
}

type UpdateMemory struct {
	ID          string
	Type        *MemoryType
	Name        *string
	Summary     *string
	Description *string
	Data        *string
	UpdatedTs   *int64
}

type DeleteMemory struct {
	ID string
}
