// Package provider is the boundary to the remote conversational-AI service
// that hosts assistants of type "assistant".
package provider

import (
	"context"
	"errors"
)

// ErrRemoteProvider marks every failure that crossed the provider boundary,
// including a client that could not be initialized.
var ErrRemoteProvider = errors.New("remote provider failure")

// RemoteAssistant is the provider-side view of an assistant resource.
type RemoteAssistant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
}

type CreateRemoteAssistant struct {
	Model        string
	Name         string
	Description  string
	Instructions string
}

// UpdateRemoteAssistant carries a partial update. Model is always required by
// the provider; nil fields are left untouched.
type UpdateRemoteAssistant struct {
	Model        string
	Name         *string
	Description  *string
	Instructions *string
}

// AssistantClient manages remote assistant resources.
type AssistantClient interface {
	CreateAssistant(ctx context.Context, create *CreateRemoteAssistant) (*RemoteAssistant, error)
	GetAssistant(ctx context.Context, id string) (*RemoteAssistant, error)
	UpdateAssistant(ctx context.Context, id string, update *UpdateRemoteAssistant) error
	DeleteAssistant(ctx context.Context, id string) error
}
