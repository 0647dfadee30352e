package store

// DefaultFocusRuleName is the name of the rule created with every assistant.
const DefaultFocusRuleName = "default"

// FocusRule bounds the set of memories materialized into an assistant's instructions.
type FocusRule struct {
	ID          string `json:"id"`
	AssistantID string `json:"assistant_id"`
	Name        string `json:"name"`
	MaxResults  int    `json:"max_results"`
	CreatedTs   int64  `json:"created_ts"`
	UpdatedTs   int64  `json:"updated_ts"`
}

type FindFocusRule struct {
	ID          *string
	AssistantID *string
	Name        *string
	// MemoryID matches the rules whose focus set holds the memory.
	MemoryID *string
}

// FocusMutation computes the next ordered focus set (oldest first) from the
// locked rule and its current members. Returning a nil slice leaves the set
// untouched; the mutation may also change rule.MaxResults, which is persisted
// in the same transaction.
type FocusMutation func(rule *FocusRule, focused []string) ([]string, error)
