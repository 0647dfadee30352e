package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cortex/internal/profile"
	"github.com/hrygo/cortex/store"
	"github.com/hrygo/cortex/store/storetest"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$3", placeholder(3))
	assert.Equal(t, "$1, $2, $3", placeholders(3))
	assert.Equal(t, "", placeholders(0))
}

func TestLimitOffset(t *testing.T) {
	tests := []struct {
		limit, offset int
		want          string
	}{
		{0, 0, ""},
		{10, 0, " LIMIT 10"},
		{0, 5, " OFFSET 5"},
		{10, 5, " LIMIT 10 OFFSET 5"},
		{-1, -1, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, limitOffset(tt.limit, tt.offset))
	}
}

func TestTaggedWith(t *testing.T) {
	cond, args := taggedWith("m.id", store.EntityMemory, []string{"go"}, []any{"knowledge"})
	require.Len(t, args, 3)
	assert.Equal(t, "memory", args[1])
	assert.Contains(t, cond, "et.entity_type = $2")
	assert.Contains(t, cond, "t.name = ANY($3)")
}

// TestDriver runs against a live database named by CORTEX_TEST_POSTGRES_DSN.
func TestDriver(t *testing.T) {
	dsn := os.Getenv("CORTEX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CORTEX_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Driver {
		ctx := context.Background()
		driver, err := NewDB(&profile.Profile{Driver: "postgres", DSN: dsn})
		require.NoError(t, err)
		require.NoError(t, driver.Migrate(ctx))
		_, err = driver.(*DB).GetDB().ExecContext(ctx, `TRUNCATE chat_message, chat, chat_session, feedback, task,
			focused_memory, focus_rule, entity_tag, tag, assistant_memory, memory, assistant CASCADE`)
		require.NoError(t, err)
		return driver
	})
}
