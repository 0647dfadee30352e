package store

import "github.com/pkg/errors"

// AssistantType is the kind of assistant record.
type AssistantType string

const (
	AssistantTypeCompletion AssistantType = "completion"
	AssistantTypeChat       AssistantType = "chat"
	// AssistantTypeAssistant is backed by a remote assistant resource.
	AssistantTypeAssistant AssistantType = "assistant"
	// AssistantTypeInactive marks a soft-deleted assistant.
	AssistantTypeInactive AssistantType = "inactive"
)

// InactivePrefix is prepended to the name of soft-deleted assistants and to the
// assignee of their tasks.
const InactivePrefix = "INACTIVE_"

func (t AssistantType) Validate() error {
	switch t {
	case AssistantTypeCompletion, AssistantTypeChat, AssistantTypeAssistant:
		return nil
	default:
		return errors.Wrapf(ErrInvalidArgument, "unsupported assistant type %q", string(t))
	}
}

// IsRemote reports whether assistants of this type live on the AI provider.
func (t AssistantType) IsRemote() bool {
	return t == AssistantTypeAssistant
}

type Assistant struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	Type              AssistantType `json:"type"`
	Model             string        `json:"model"`
	RemoteAssistantID string        `json:"remote_assistant_id,omitempty"`
	CreatedTs         int64         `json:"created_ts"`
	UpdatedTs         int64         `json:"updated_ts"`
}

// IsActive reports whether the assistant has not been soft-deleted.
func (a *Assistant) IsActive() bool {
	return a.Type != AssistantTypeInactive
}

// SeedInstruction is the default focus rule and optional instruction memory
// written together with a new assistant.
type SeedInstruction struct {
	FocusRule *FocusRule
	// Memory, when set, is owned by the assistant and focused into FocusRule
	// if the rule admits any memory.
	Memory *Memory
}

type CreateAssistant struct {
	Assistant *Assistant
	// Seed is optional; when set, its rows are created in the same
	// transaction as the assistant.
	Seed *SeedInstruction
}

type FindAssistant struct {
	ID       *string
	Name     *string
	Type     *AssistantType
	TagNames []string
	// ExcludeInactive drops soft-deleted assistants.
	ExcludeInactive bool
	Limit           int
	Offset          int
}

type UpdateAssistant struct {
	ID          string
	Name        *string
	Description *string
	Model       *string
	UpdatedTs   *int64
}

// DeactivateAssistant renames the assistant and marks the tasks assigned to it.
type DeactivateAssistant struct {
	ID        string
	Name      string
	UpdatedTs int64
	// ClearRemote drops the remote id once the remote resource is gone.
	ClearRemote bool
}
