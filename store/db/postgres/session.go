package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hrygo/cortex/store"
)

func (d *DB) CreateSession(ctx context.Context, create *store.Session) (*store.Session, error) {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if create.AssistantID != "" {
			if err := mustExist(ctx, tx, "assistant", create.AssistantID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_session (id, name, assistant_id, created_ts, updated_ts) VALUES ($1, $2, $3, $4, $5)`,
			create.ID, create.Name, nullString(create.AssistantID), create.CreatedTs, create.UpdatedTs,
		); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return create, nil
}

func (d *DB) ListSessions(ctx context.Context, find *store.FindSession) ([]*store.Session, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.AssistantID != nil {
		where, args = append(where, "assistant_id = "+placeholder(len(args)+1)), append(args, *find.AssistantID)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT id, name, assistant_id, created_ts, updated_ts FROM chat_session
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_ts DESC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Session, 0)
	for rows.Next() {
		session := &store.Session{}
		var assistantID sql.NullString
		if err := rows.Scan(&session.ID, &session.Name, &assistantID, &session.CreatedTs, &session.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		session.AssistantID = assistantID.String
		list = append(list, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return list, nil
}

func (d *DB) DeleteSession(ctx context.Context, id string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory WHERE id IN (
			SELECT cm.memory_id FROM chat_message cm
			JOIN chat c ON c.id = cm.chat_id
			WHERE c.session_id = $1)`, id,
		); err != nil {
			return fmt.Errorf("failed to delete session messages: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM chat_session WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		rows, err := affected(result)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("session %s: %w", id, store.ErrNotFound)
		}
		return nil
	})
}

func (d *DB) CreateChat(ctx context.Context, create *store.Chat) (*store.Chat, error) {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "chat_session", create.SessionID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat (id, session_id, title, created_ts, updated_ts) VALUES ($1, $2, $3, $4, $5)`,
			create.ID, create.SessionID, create.Title, create.CreatedTs, create.UpdatedTs,
		); err != nil {
			return fmt.Errorf("failed to create chat: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return create, nil
}

func (d *DB) ListChats(ctx context.Context, find *store.FindChat) ([]*store.Chat, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.SessionID != nil {
		where, args = append(where, "session_id = "+placeholder(len(args)+1)), append(args, *find.SessionID)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT id, session_id, title, created_ts, updated_ts FROM chat
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_ts ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Chat, 0)
	for rows.Next() {
		chat := &store.Chat{}
		if err := rows.Scan(&chat.ID, &chat.SessionID, &chat.Title, &chat.CreatedTs, &chat.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		list = append(list, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat rows: %w", err)
	}
	return list, nil
}

func (d *DB) CreateChatMessage(ctx context.Context, create *store.ChatMessage, content *store.Memory) (*store.ChatMessage, error) {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		// The chat row lock orders concurrent appends.
		var chatID string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM chat WHERE id = $1 FOR UPDATE`, create.ChatID).Scan(&chatID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("chat %s: %w", create.ChatID, store.ErrNotFound)
			}
			return fmt.Errorf("failed to lock chat: %w", err)
		}
		if content != nil {
			if err := insertMemory(ctx, tx, content); err != nil {
				return err
			}
		}
		var seq int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), -1) + 1 FROM chat_message WHERE chat_id = $1`, create.ChatID,
		).Scan(&seq); err != nil {
			return fmt.Errorf("failed to compute message sequence: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_message (id, chat_id, memory_id, role, seq, created_ts) VALUES ($1, $2, $3, $4, $5, $6)`,
			create.ID, create.ChatID, create.MemoryID, create.Role, seq, create.CreatedTs,
		); err != nil {
			return fmt.Errorf("failed to create chat message: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE chat SET updated_ts = $1 WHERE id = $2`, create.CreatedTs, create.ChatID); err != nil {
			return fmt.Errorf("failed to touch chat: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return create, nil
}

func (d *DB) ListChatMessages(ctx context.Context, find *store.FindChatMessage) ([]*store.ChatMessage, error) {
	query := `SELECT id, chat_id, memory_id, role, created_ts FROM (
		SELECT id, chat_id, memory_id, role, created_ts, seq FROM chat_message
		WHERE chat_id = $1
		ORDER BY seq DESC` + limitOffset(find.Limit, 0) + `
	) recent ORDER BY seq ASC`

	rows, err := d.db.QueryContext(ctx, query, find.ChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ChatMessage, 0)
	for rows.Next() {
		msg := &store.ChatMessage{}
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.MemoryID, &msg.Role, &msg.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		list = append(list, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat message rows: %w", err)
	}
	return list, nil
}
