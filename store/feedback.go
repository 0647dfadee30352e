package store

type Feedback struct {
	ID         string     `json:"id"`
	TargetID   string     `json:"target_id"`
	TargetType EntityKind `json:"target_type"`
	UserID     string     `json:"user_id,omitempty"`
	Rating     int32      `json:"rating"`
	Comments   string     `json:"comments,omitempty"`
	CreatedTs  int64      `json:"created_ts"`
	UpdatedTs  int64      `json:"updated_ts"`
}

type FindFeedback struct {
	ID         *string
	TargetID   *string
	TargetType *EntityKind
	UserID     *string
	Limit      int
}

// UpdateFeedback merges the set fields; nil fields keep their stored value.
type UpdateFeedback struct {
	ID        string
	UserID    *string
	Rating    *int32
	Comments  *string
	UpdatedTs int64
}

type DeleteFeedback struct {
	ID string
}
