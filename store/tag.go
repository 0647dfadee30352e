package store

type Tag struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedTs int64  `json:"created_ts"`
}

type FindTag struct {
	ID     *string
	Names  []string
	Entity *EntityRef
}

// TaggedEntities is the result of a tag lookup; only the slice matching the
// requested kind is populated.
type TaggedEntities struct {
	Kind       EntityKind   `json:"kind"`
	Memories   []*Memory    `json:"memories,omitempty"`
	Assistants []*Assistant `json:"assistants,omitempty"`
	Tasks      []*Task      `json:"tasks,omitempty"`
}
