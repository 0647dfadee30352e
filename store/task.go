package store

import "github.com/pkg/errors"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

func (s TaskStatus) Validate() error {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return nil
	default:
		return errors.Wrapf(ErrInvalidArgument, "unsupported task status %q", string(s))
	}
}

type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	// AssignedAssistant holds the assistant id, or InactivePrefix+id once that
	// assistant has been soft-deleted.
	AssignedAssistant string `json:"assigned_assistant,omitempty"`
	CreatedTs         int64  `json:"created_ts"`
	UpdatedTs         int64  `json:"updated_ts"`
}

type FindTask struct {
	ID                *string
	AssignedAssistant *string
	Status            *TaskStatus
	TagNames          []string
	Limit             int
	Offset            int
}

type UpdateTask struct {
	ID                string
	Description       *string
	Status            *TaskStatus
	AssignedAssistant *string
	UpdatedTs         *int64
}

type DeleteTask struct {
	ID string
}
