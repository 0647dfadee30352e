package store

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Store) CreateSession(ctx context.Context, create *Session) (*Session, error) {
	if create.ID == "" {
		create.ID = s.shortIDs.NewID()
	}
	now := s.timestamp()
	create.CreatedTs, create.UpdatedTs = now, now
	return s.driver.CreateSession(ctx, create)
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	list, err := s.driver.ListSessions(ctx, &FindSession{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "session %s", id)
	}
	return list[0], nil
}

func (s *Store) ListSessions(ctx context.Context, find *FindSession) ([]*Session, error) {
	return s.driver.ListSessions(ctx, find)
}

// DeleteSession removes the session with its chats and messages.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.driver.DeleteSession(ctx, id)
}

func (s *Store) CreateChat(ctx context.Context, create *Chat) (*Chat, error) {
	if create.SessionID == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "session id is required")
	}
	if create.ID == "" {
		create.ID = s.shortIDs.NewID()
	}
	now := s.timestamp()
	create.CreatedTs, create.UpdatedTs = now, now
	return s.driver.CreateChat(ctx, create)
}

func (s *Store) GetChat(ctx context.Context, id string) (*Chat, error) {
	list, err := s.driver.ListChats(ctx, &FindChat{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "chat %s", id)
	}
	return list[0], nil
}

func (s *Store) ListChats(ctx context.Context, find *FindChat) ([]*Chat, error) {
	return s.driver.ListChats(ctx, find)
}

// CreateChatMessage stores content as a session memory and links it to the chat.
func (s *Store) CreateChatMessage(ctx context.Context, chatID, role, content string) (*ChatMessage, error) {
	if role == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "message role is required")
	}
	now := s.timestamp()
	memory := &Memory{Type: MemoryTypeSession, Name: role, Description: content}
	s.prepareMemory(memory, now)
	msg := &ChatMessage{
		ID:        s.messageIDs.NewID(),
		ChatID:    chatID,
		MemoryID:  memory.ID,
		Role:      role,
		CreatedTs: now,
	}
	return s.driver.CreateChatMessage(ctx, msg, memory)
}

// ListChatMessages returns the messages of a chat oldest first.
func (s *Store) ListChatMessages(ctx context.Context, find *FindChatMessage) ([]*ChatMessage, error) {
	return s.driver.ListChatMessages(ctx, find)
}
