package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Lazy builds its client on first use and shares it afterwards. A failed
// initialization is kept and returned by every later call.
type Lazy struct {
	init func() (AssistantClient, error)

	once   sync.Once
	client AssistantClient
	err    error
}

// NewLazy returns a client that defers init until the first call.
func NewLazy(init func() (AssistantClient, error)) *Lazy {
	return &Lazy{init: init}
}

func (l *Lazy) get() (AssistantClient, error) {
	l.once.Do(func() {
		l.client, l.err = l.init()
		if l.err != nil {
			slog.Error("failed to initialize assistant provider", "error", l.err)
			l.err = fmt.Errorf("%w: initialize client: %v", ErrRemoteProvider, l.err)
		}
	})
	return l.client, l.err
}

func (l *Lazy) CreateAssistant(ctx context.Context, create *CreateRemoteAssistant) (*RemoteAssistant, error) {
	client, err := l.get()
	if err != nil {
		return nil, err
	}
	return client.CreateAssistant(ctx, create)
}

func (l *Lazy) GetAssistant(ctx context.Context, id string) (*RemoteAssistant, error) {
	client, err := l.get()
	if err != nil {
		return nil, err
	}
	return client.GetAssistant(ctx, id)
}

func (l *Lazy) UpdateAssistant(ctx context.Context, id string, update *UpdateRemoteAssistant) error {
	client, err := l.get()
	if err != nil {
		return err
	}
	return client.UpdateAssistant(ctx, id, update)
}

func (l *Lazy) DeleteAssistant(ctx context.Context, id string) error {
	client, err := l.get()
	if err != nil {
		return err
	}
	return client.DeleteAssistant(ctx, id)
}
