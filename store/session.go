package store

// Session groups chats, optionally with one assistant.
type Session struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AssistantID string `json:"assistant_id,omitempty"`
	CreatedTs   int64  `json:"created_ts"`
	UpdatedTs   int64  `json:"updated_ts"`
}

type FindSession struct {
	ID          *string
	AssistantID *string
}

type Chat struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	CreatedTs int64  `json:"created_ts"`
	UpdatedTs int64  `json:"updated_ts"`
}

type FindChat struct {
	ID        *string
	SessionID *string
}

// ChatMessage references the memory that holds the message content.
type ChatMessage struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	MemoryID  string `json:"memory_id"`
	Role      string `json:"role"`
	CreatedTs int64  `json:"created_ts"`
}

type FindChatMessage struct {
	ChatID string
	Limit  int
}
