package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cortex/ai/instruction"
	"github.com/hrygo/cortex/internal/profile"
	"github.com/hrygo/cortex/server/service/assistant"
	"github.com/hrygo/cortex/server/service/focus"
	"github.com/hrygo/cortex/store"
	"github.com/hrygo/cortex/store/db/sqlite"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	p := &profile.Profile{
		Mode:                 "dev",
		Driver:               "sqlite",
		DSN:                  filepath.Join(t.TempDir(), "orchestrator.db"),
		DefaultFocusCapacity: 2,
		ProviderModel:        "gpt-4o",
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	engine := focus.NewEngine(st, p, nil)
	return New(st, engine, assistant.NewManager(st, engine, nil, p, nil))
}

func createAssistant(t *testing.T, o *Orchestrator, name string, tags ...string) string {
	t.Helper()
	id, err := o.Assistants().Create(context.Background(), &assistant.CreateRequest{
		Name: name,
		Type: store.AssistantTypeChat,
		Tags: tags,
	})
	require.NoError(t, err)
	return id
}

func memoryIDs(memories []*store.Memory) []string {
	ids := make([]string, 0, len(memories))
	for _, m := range memories {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t)
	id := createAssistant(t, o, "Helper")

	m, err := o.Remember(ctx, &RememberRequest{
		AssistantID: id,
		Description: "Prefer short answers.",
		Tags:        []string{"style"},
		Focus:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, store.MemoryTypeKnowledge, m.Type)

	owned, err := o.Store().ListMemoriesByAssistant(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{m.ID}, memoryIDs(owned))

	focused, err := o.Focus().GetFocusedMemoriesByAssistantID(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, "Prefer short answers.", instruction.Synthesize(focused))

	tagged, err := o.Store().ListMemoriesByTagNames(ctx, []string{"style"})
	require.NoError(t, err)
	assert.Equal(t, []string{m.ID}, memoryIDs(tagged))
}

func TestRememberValidation(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t)

	_, err := o.Remember(ctx, &RememberRequest{Description: " "})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = o.Remember(ctx, &RememberRequest{Description: "x", Focus: true})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = o.Remember(ctx, &RememberRequest{Description: "x", AssistantID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = o.Remember(ctx, &RememberRequest{Description: "x", Type: "gossip"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestFocusEvictionThroughOrchestrator(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t)
	id := createAssistant(t, o, "Helper")

	var ids []string
	for _, text := range []string{"a", "b", "c"} {
		m, err := o.Remember(ctx, &RememberRequest{AssistantID: id, Description: text, Focus: true})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	focused, err := o.Focus().GetFocusedMemoriesByAssistantID(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, ids[1:], memoryIDs(focused))

	rule, err := o.Focus().DefaultRule(ctx, id)
	require.NoError(t, err)
	ok, err := o.ReplaceFocus(ctx, rule.ID, ids)
	require.NoError(t, err)
	assert.True(t, ok)

	resized, err := o.ResizeFocus(ctx, rule.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, resized.MaxResults)

	focused, err = o.Focus().GetFocusedMemories(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, ids[2:], memoryIDs(focused))

	ok, err = o.UnfocusMemory(ctx, rule.ID, ids[2])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDelegateTask(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t)
	id := createAssistant(t, o, "Helper")

	task, err := o.DelegateTask(ctx, &DelegateRequest{AssistantID: id, Description: "summarize", Tags: []string{"weekly"}})
	require.NoError(t, err)
	assert.Equal(t, store.TaskStatusPending, task.Status)
	assert.Equal(t, id, task.AssignedAssistant)

	found, err := o.Store().FindEntitiesByTagNames(ctx, store.EntityTask, []string{"weekly"})
	require.NoError(t, err)
	require.Len(t, found.Tasks, 1)
	assert.Equal(t, task.ID, found.Tasks[0].ID)

	_, err = o.Assistants().Delete(ctx, id)
	require.NoError(t, err)
	_, err = o.DelegateTask(ctx, &DelegateRequest{AssistantID: id, Description: "late"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestConnectAndDisconnectMemory(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t)
	id := createAssistant(t, o, "Helper")
	m, err := o.Remember(ctx, &RememberRequest{Description: "shared fact"})
	require.NoError(t, err)

	ok, err := o.ConnectMemory(ctx, id, m.ID, true)
	require.NoError(t, err)
	assert.True(t, ok)

	focused, err := o.Focus().GetFocusedMemoriesByAssistantID(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{m.ID}, memoryIDs(focused))

	ok, err = o.DisconnectMemory(ctx, id, m.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = o.DisconnectMemory(ctx, id, m.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	focused, err = o.Focus().GetFocusedMemoriesByAssistantID(ctx, id, 0)
	require.NoError(t, err)
	assert.Empty(t, focused)
}

func TestTagAndUntagEntity(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t)
	id := createAssistant(t, o, "Helper")
	ref := store.EntityRef{ID: id, Kind: store.EntityAssistant}

	tags, err := o.TagEntity(ctx, ref, []string{"go", "go", "db"})
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	// Tagging again changes nothing.
	tags, err = o.TagEntity(ctx, ref, []string{"go"})
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	ok, err := o.UntagEntity(ctx, ref, []string{"db", "unknown"})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = o.TagEntity(ctx, ref, nil)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = o.TagEntity(ctx, store.EntityRef{ID: "missing", Kind: store.EntityMemory}, []string{"go"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestQueryKnowledge(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t)

	faq, err := o.Remember(ctx, &RememberRequest{Name: "faq-billing", Description: "Invoices go out monthly.", Tags: []string{"billing"}})
	require.NoError(t, err)
	_, err = o.Remember(ctx, &RememberRequest{Name: "note", Description: "Invoices are PDF.", Tags: []string{"billing"}})
	require.NoError(t, err)
	_, err = o.Remember(ctx, &RememberRequest{Type: store.MemoryTypePrompt, Name: "faq-prompt", Description: "Greet the user."})
	require.NoError(t, err)

	t.Run("by tag", func(t *testing.T) {
		memories, err := o.QueryKnowledge(ctx, &KnowledgeQuery{TagNames: []string{"billing"}})
		require.NoError(t, err)
		assert.Len(t, memories, 2)
	})

	t.Run("by text", func(t *testing.T) {
		memories, err := o.QueryKnowledge(ctx, &KnowledgeQuery{Text: "monthly"})
		require.NoError(t, err)
		assert.Equal(t, []string{faq.ID}, memoryIDs(memories))
	})

	t.Run("by filter", func(t *testing.T) {
		memories, err := o.QueryKnowledge(ctx, &KnowledgeQuery{Filter: `type == "knowledge" && name.startsWith("faq")`})
		require.NoError(t, err)
		assert.Equal(t, []string{faq.ID}, memoryIDs(memories))
	})

	t.Run("limit after filter", func(t *testing.T) {
		all, err := o.QueryKnowledge(ctx, &KnowledgeQuery{Filter: `name.startsWith("faq")`})
		require.NoError(t, err)
		require.Len(t, all, 2)

		memories, err := o.QueryKnowledge(ctx, &KnowledgeQuery{Filter: `name.startsWith("faq")`, Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, memories, 1)
		assert.Equal(t, all[1].ID, memories[0].ID)
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := o.QueryKnowledge(ctx, &KnowledgeQuery{Filter: "name +"})
		assert.ErrorIs(t, err, store.ErrInvalidArgument)
	})
}

func TestRelatedMemories(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t)
	id := createAssistant(t, o, "Helper", "billing")

	owned, err := o.Remember(ctx, &RememberRequest{AssistantID: id, Description: "mine", Tags: []string{"billing"}})
	require.NoError(t, err)
	other, err := o.Remember(ctx, &RememberRequest{Description: "theirs", Tags: []string{"billing"}})
	require.NoError(t, err)
	_, err = o.Remember(ctx, &RememberRequest{Description: "unrelated", Tags: []string{"hr"}})
	require.NoError(t, err)

	related, err := o.RelatedMemories(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, memoryIDs(related))
	assert.NotContains(t, memoryIDs(related), owned.ID)

	untagged := createAssistant(t, o, "Plain")
	related, err = o.RelatedMemories(ctx, untagged, 0)
	require.NoError(t, err)
	assert.Empty(t, related)

	_, err = o.RelatedMemories(ctx, "missing", 0)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordChatMessage(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t)
	id := createAssistant(t, o, "Helper")

	session, err := o.Store().CreateSession(ctx, &store.Session{Name: "support", AssistantID: id})
	require.NoError(t, err)
	chat, err := o.Store().CreateChat(ctx, &store.Chat{SessionID: session.ID, Title: "refund"})
	require.NoError(t, err)

	first, err := o.RecordChatMessage(ctx, chat.ID, "user", "Where is my refund?")
	require.NoError(t, err)
	second, err := o.RecordChatMessage(ctx, chat.ID, "assistant", "On its way.")
	require.NoError(t, err)

	messages, err := o.Store().ListChatMessages(ctx, &store.FindChatMessage{ChatID: chat.ID})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, first.ID, messages[0].ID)
	assert.Equal(t, second.ID, messages[1].ID)

	content, err := o.Store().GetMemory(ctx, first.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, store.MemoryTypeSession, content.Type)

	_, err = o.RecordChatMessage(ctx, chat.ID, "user", "")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = o.RecordChatMessage(ctx, "missing", "user", "hi")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
