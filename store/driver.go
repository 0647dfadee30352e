package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error
	// GetSchemaVersion returns "" before any version was recorded.
	GetSchemaVersion(ctx context.Context) (string, error)
	SetSchemaVersion(ctx context.Context, version string, updatedTs int64) error

	// Assistant model related methods.
	CreateAssistant(ctx context.Context, create *CreateAssistant) (*Assistant, error)
	ListAssistants(ctx context.Context, find *FindAssistant) ([]*Assistant, error)
	UpdateAssistant(ctx context.Context, update *UpdateAssistant) (*Assistant, error)
	DeactivateAssistant(ctx context.Context, deactivate *DeactivateAssistant) error

	// Memory model related methods.
	CreateMemory(ctx context.Context, create *Memory) (*Memory, error)
	ListMemories(ctx context.Context, find *FindMemory) ([]*Memory, error)
	UpdateMemory(ctx context.Context, update *UpdateMemory) (*Memory, error)
	DeleteMemory(ctx context.Context, delete *DeleteMemory) error

	// Owned memory related methods.
	AddOwnedMemory(ctx context.Context, assistantID, memoryID string, createdTs int64) error
	RemoveOwnedMemory(ctx context.Context, assistantID, memoryID string) (bool, error)
	SetOwnedMemories(ctx context.Context, assistantID string, memoryIDs []string, createdTs int64) error

	// Tag model related methods.
	UpsertTags(ctx context.Context, tags []*Tag) ([]*Tag, error)
	ListTags(ctx context.Context, find *FindTag) ([]*Tag, error)
	AttachTag(ctx context.Context, ref EntityRef, tagID string, createdTs int64) error
	DetachTag(ctx context.Context, ref EntityRef, tagID string) (bool, error)
	// SetEntityTags makes the tags of ref exactly the given tags, creating missing tag rows.
	SetEntityTags(ctx context.Context, ref EntityRef, tags []*Tag, createdTs int64) error

	// FocusRule model related methods.
	CreateFocusRule(ctx context.Context, create *FocusRule) (*FocusRule, error)
	ListFocusRules(ctx context.Context, find *FindFocusRule) ([]*FocusRule, error)
	DeleteFocusRule(ctx context.Context, id string) error
	ListFocusedMemories(ctx context.Context, focusRuleID string) ([]*Memory, error)
	// MutateFocusedMemories serializes concurrent mutations of one rule.
	MutateFocusedMemories(ctx context.Context, focusRuleID string, updatedTs int64, mutate FocusMutation) (*FocusRule, error)

	// Task model related methods.
	CreateTask(ctx context.Context, create *Task) (*Task, error)
	ListTasks(ctx context.Context, find *FindTask) ([]*Task, error)
	UpdateTask(ctx context.Context, update *UpdateTask) (*Task, error)
	DeleteTask(ctx context.Context, delete *DeleteTask) error

	// Feedback model related methods.
	CreateFeedback(ctx context.Context, create *Feedback) (*Feedback, error)
	ListFeedback(ctx context.Context, find *FindFeedback) ([]*Feedback, error)
	UpdateFeedback(ctx context.Context, update *UpdateFeedback) (*Feedback, error)
	DeleteFeedback(ctx context.Context, delete *DeleteFeedback) error

	// Session, chat and chat message related methods.
	CreateSession(ctx context.Context, create *Session) (*Session, error)
	ListSessions(ctx context.Context, find *FindSession) ([]*Session, error)
	DeleteSession(ctx context.Context, id string) error
	CreateChat(ctx context.Context, create *Chat) (*Chat, error)
	ListChats(ctx context.Context, find *FindChat) ([]*Chat, error)
	// CreateChatMessage writes the content memory (when not nil) and the message together.
	CreateChatMessage(ctx context.Context, create *ChatMessage, content *Memory) (*ChatMessage, error)
	ListChatMessages(ctx context.Context, find *FindChatMessage) ([]*ChatMessage, error)
}
