package store

import (
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"github.com/oklog/ulid/v2"
)

// IDGenerator produces collision-resistant entity ids.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator generates random UUIDv4 strings.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// ShortIDGenerator generates base57 short uuids, used for sessions and chats
// whose ids end up in URLs.
type ShortIDGenerator struct{}

func (ShortIDGenerator) NewID() string {
	return shortuuid.New()
}

// ULIDGenerator generates lexicographically time-ordered ULIDs, used for chat
// messages.
type ULIDGenerator struct{}

func (ULIDGenerator) NewID() string {
	return ulid.Make().String()
}
