package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

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
			`INSERT INTO chat_session (id, name, assistant_id, created_ts, updated_ts) VALUES (?, ?, ?, ?, ?)`,
			create.ID, create.Name, nullString(create.AssistantID), create.CreatedTs, create.UpdatedTs,
		); err != nil {
			return errors.Wrap(err, "failed to create session")
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
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.AssistantID != nil {
		where, args = append(where, "assistant_id = ?"), append(args, *find.AssistantID)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT id, name, assistant_id, created_ts, updated_ts FROM chat_session
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_ts DESC, id ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	defer rows.Close()

	list := make([]*store.Session, 0)
	for rows.Next() {
		session := &store.Session{}
		var assistantID sql.NullString
		if err := rows.Scan(&session.ID, &session.Name, &assistantID, &session.CreatedTs, &session.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan session")
		}
		session.AssistantID = assistantID.String
		list = append(list, session)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate sessions")
	}
	return list, nil
}

func (d *DB) DeleteSession(ctx context.Context, id string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		// Message contents live in memory rows that nothing else references.
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory WHERE id IN (
			SELECT cm.memory_id FROM chat_message cm
			JOIN chat c ON c.id = cm.chat_id
			WHERE c.session_id = ?)`, id,
		); err != nil {
			return errors.Wrap(err, "failed to delete session messages")
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM chat_session WHERE id = ?`, id)
		if err != nil {
			return errors.Wrap(err, "failed to delete session")
		}
		rows, err := affected(result)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.Wrapf(store.ErrNotFound, "session %s", id)
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
			`INSERT INTO chat (id, session_id, title, created_ts, updated_ts) VALUES (?, ?, ?, ?, ?)`,
			create.ID, create.SessionID, create.Title, create.CreatedTs, create.UpdatedTs,
		); err != nil {
			return errors.Wrap(err, "failed to create chat")
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
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.SessionID != nil {
		where, args = append(where, "session_id = ?"), append(args, *find.SessionID)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT id, session_id, title, created_ts, updated_ts FROM chat
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_ts ASC, id ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chats")
	}
	defer rows.Close()

	list := make([]*store.Chat, 0)
	for rows.Next() {
		chat := &store.Chat{}
		if err := rows.Scan(&chat.ID, &chat.SessionID, &chat.Title, &chat.CreatedTs, &chat.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan chat")
		}
		list = append(list, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate chats")
	}
	return list, nil
}

func (d *DB) CreateChatMessage(ctx context.Context, create *store.ChatMessage, content *store.Memory) (*store.ChatMessage, error) {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "chat", create.ChatID); err != nil {
			return err
		}
		if content != nil {
			if err := insertMemory(ctx, tx, content); err != nil {
				return err
			}
		}
		var seq int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), -1) + 1 FROM chat_message WHERE chat_id = ?`, create.ChatID,
		).Scan(&seq); err != nil {
			return errors.Wrap(err, "failed to compute message sequence")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_message (id, chat_id, memory_id, role, seq, created_ts) VALUES (?, ?, ?, ?, ?, ?)`,
			create.ID, create.ChatID, create.MemoryID, create.Role, seq, create.CreatedTs,
		); err != nil {
			return errors.Wrap(err, "failed to create chat message")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE chat SET updated_ts = ? WHERE id = ?`, create.CreatedTs, create.ChatID,
		); err != nil {
			return errors.Wrap(err, "failed to touch chat")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return create, nil
}

func (d *DB) ListChatMessages(ctx context.Context, find *store.FindChatMessage) ([]*store.ChatMessage, error) {
	// With a limit the newest messages win, still returned oldest first.
	query := `SELECT id, chat_id, memory_id, role, created_ts FROM (
		SELECT id, chat_id, memory_id, role, created_ts, seq FROM chat_message
		WHERE chat_id = ?
		ORDER BY seq DESC` + limitOffset(find.Limit, 0) + `
	) ORDER BY seq ASC`
	args := limitOffsetArgs([]any{find.ChatID}, find.Limit, 0)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chat messages")
	}
	defer rows.Close()

	list := make([]*store.ChatMessage, 0)
	for rows.Next() {
		msg := &store.ChatMessage{}
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.MemoryID, &msg.Role, &msg.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan chat message")
		}
		list = append(list, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate chat messages")
	}
	return list, nil
}
