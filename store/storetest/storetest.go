// Package storetest holds the behaviour every store.Driver must share. Driver
// packages run it against their own database.
package storetest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cortex/internal/profile"
	"github.com/hrygo/cortex/store"
)

// Opener returns a migrated, empty driver. It is called once per subtest.
type Opener func(t *testing.T) store.Driver

// Run exercises the driver contract.
func Run(t *testing.T, open Opener) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s *store.Store)
	}{
		{"Tags", testTags},
		{"EntityTags", testEntityTags},
		{"OwnedMemories", testOwnedMemories},
		{"AssistantLifecycle", testAssistantLifecycle},
		{"AssistantSeed", testAssistantSeed},
		{"MutateFocusedMemories", testMutateFocusedMemories},
		{"MemoryQueries", testMemoryQueries},
		{"DeleteMemory", testDeleteMemory},
		{"Tasks", testTasks},
		{"Feedback", testFeedback},
		{"ChatMessages", testChatMessages},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			driver := open(t)
			t.Cleanup(func() { driver.Close() })
			tc.fn(t, store.New(driver, &profile.Profile{}, store.WithClock(ticker())))
		})
	}
}

// ticker advances one second per call so insertion order is visible in timestamps.
func ticker() func() time.Time {
	var n atomic.Int64
	start := time.Unix(1_700_000_000, 0)
	return func() time.Time {
		return start.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

func createMemory(t *testing.T, s *store.Store, description string) *store.Memory {
	t.Helper()
	m, err := s.CreateMemory(context.Background(), &store.Memory{Type: store.MemoryTypeKnowledge, Description: description})
	require.NoError(t, err)
	return m
}

func createAssistant(t *testing.T, s *store.Store, name string) *store.Assistant {
	t.Helper()
	a, err := s.CreateAssistant(context.Background(), &store.CreateAssistant{
		Assistant: &store.Assistant{Name: name, Type: store.AssistantTypeChat},
		Seed:      &store.SeedInstruction{FocusRule: &store.FocusRule{MaxResults: 3}},
	})
	require.NoError(t, err)
	return a
}

func defaultRule(t *testing.T, s *store.Store, assistantID string) *store.FocusRule {
	t.Helper()
	rules, err := s.ListFocusRules(context.Background(), &store.FindFocusRule{AssistantID: &assistantID})
	require.NoError(t, err)
	require.NotEmpty(t, rules)
	return rules[0]
}

func memoryIDs(list []*store.Memory) []string {
	ids := make([]string, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.ID)
	}
	return ids
}

func tagNames(list []*store.Tag) []string {
	names := make([]string, 0, len(list))
	for _, tag := range list {
		names = append(names, tag.Name)
	}
	return names
}

func testTags(t *testing.T, s *store.Store) {
	ctx := context.Background()
	m := createMemory(t, s, "alpha")

	ids, err := s.UpsertTagsByName(ctx, []string{"go", " go ", "db", ""})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	again, err := s.UpsertTagsByName(ctx, []string{"go"})
	require.NoError(t, err)
	assert.Equal(t, ids["go"], again["go"])

	ref := store.EntityRef{ID: m.ID, Kind: store.EntityMemory}
	for i := 0; i < 2; i++ {
		ok, err := s.AttachTag(ctx, ref, ids["go"])
		require.NoError(t, err)
		assert.True(t, ok)
	}
	tags, err := s.ListTagsForEntity(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, tagNames(tags))

	_, err = s.AttachTag(ctx, ref, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.AttachTag(ctx, store.EntityRef{ID: "missing", Kind: store.EntityMemory}, ids["go"])
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.AttachTag(ctx, store.EntityRef{ID: m.ID, Kind: "note"}, ids["go"])
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	ok, err := s.DetachTag(ctx, ref, ids["go"])
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.DetachTag(ctx, ref, ids["go"])
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := s.ListTags(ctx, &store.FindTag{})
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "go"}, tagNames(all))
}

func testEntityTags(t *testing.T, s *store.Store) {
	ctx := context.Background()
	m := createMemory(t, s, "alpha")
	other := createMemory(t, s, "beta")
	a := createAssistant(t, s, "tagged")

	ok, err := s.UpdateMemoryTags(ctx, m.ID, []string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = s.UpdateMemoryTags(ctx, m.ID, []string{"b", "c"})
	require.NoError(t, err)

	tags, err := s.ListTagsForEntity(ctx, store.EntityRef{ID: m.ID, Kind: store.EntityMemory})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, tagNames(tags))

	// Detached tags stay in the registry.
	stale, err := s.ListTags(ctx, &store.FindTag{Names: []string{"a"}})
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	_, err = s.UpdateMemoryTags(ctx, "missing", []string{"a"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SetEntityTags(ctx, store.EntityRef{ID: other.ID, Kind: store.EntityMemory}, []string{"c"}))
	require.NoError(t, s.SetEntityTags(ctx, store.EntityRef{ID: a.ID, Kind: store.EntityAssistant}, []string{"c"}))

	found, err := s.FindEntitiesByTagNames(ctx, store.EntityMemory, []string{"c", "zzz"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{m.ID, other.ID}, memoryIDs(found.Memories))
	assert.Empty(t, found.Assistants)

	found, err = s.FindEntitiesByTagNames(ctx, store.EntityAssistant, []string{"c"})
	require.NoError(t, err)
	require.Len(t, found.Assistants, 1)
	assert.Equal(t, a.ID, found.Assistants[0].ID)

	_, err = s.FindEntitiesByTagNames(ctx, store.EntityMemory, []string{" "})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
	_, err = s.FindEntitiesByTagNames(ctx, "note", []string{"c"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	// Clearing removes every association.
	require.NoError(t, s.SetEntityTags(ctx, store.EntityRef{ID: m.ID, Kind: store.EntityMemory}, nil))
	tags, err = s.ListTagsForEntity(ctx, store.EntityRef{ID: m.ID, Kind: store.EntityMemory})
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func testOwnedMemories(t *testing.T, s *store.Store) {
	ctx := context.Background()
	a := createAssistant(t, s, "owner")
	m1, m2, m3 := createMemory(t, s, "one"), createMemory(t, s, "two"), createMemory(t, s, "three")

	for i := 0; i < 2; i++ {
		ok, err := s.AddOwnedMemory(ctx, a.ID, m1.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	owned, err := s.ListMemoriesByAssistant(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{m1.ID}, memoryIDs(owned))

	_, err = s.AddOwnedMemory(ctx, "missing", m1.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.AddOwnedMemory(ctx, a.ID, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.SetOwnedMemories(ctx, a.ID, []string{m2.ID, m3.ID, m2.ID})
	require.NoError(t, err)
	owned, err = s.ListMemoriesByAssistant(ctx, a.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{m2.ID, m3.ID}, memoryIDs(owned))

	_, err = s.SetOwnedMemories(ctx, a.ID, []string{m1.ID, "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	owned, err = s.ListMemoriesByAssistant(ctx, a.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{m2.ID, m3.ID}, memoryIDs(owned), "failed replace leaves the set untouched")

	ok, err := s.RemoveOwnedMemory(ctx, a.ID, m2.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.RemoveOwnedMemory(ctx, a.ID, m2.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testAssistantLifecycle(t *testing.T, s *store.Store) {
	ctx := context.Background()
	a := createAssistant(t, s, "writer")

	_, err := s.CreateAssistant(ctx, &store.CreateAssistant{
		Assistant: &store.Assistant{Name: "writer", Type: store.AssistantTypeCompletion},
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.CreateAssistant(ctx, &store.CreateAssistant{
		Assistant: &store.Assistant{Name: "remote", Type: store.AssistantTypeAssistant},
	})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	other := createAssistant(t, s, "editor")
	name := "writer"
	_, err = s.UpdateAssistant(ctx, &store.UpdateAssistant{ID: other.ID, Name: &name})
	assert.ErrorIs(t, err, store.ErrConflict)

	model := "gpt-4o"
	updated, err := s.UpdateAssistant(ctx, &store.UpdateAssistant{ID: a.ID, Model: &model})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", updated.Model)
	assert.Greater(t, updated.UpdatedTs, a.UpdatedTs)

	_, err = s.UpdateAssistant(ctx, &store.UpdateAssistant{ID: "missing", Model: &model})
	assert.ErrorIs(t, err, store.ErrNotFound)

	task, err := s.CreateTask(ctx, &store.Task{Description: "draft", AssignedAssistant: a.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeactivateAssistant(ctx, a, false))
	require.NoError(t, s.DeactivateAssistant(ctx, a, false), "deactivating twice is a no-op")
	assert.ErrorIs(t, s.DeactivateAssistant(ctx, &store.Assistant{ID: "missing"}, false), store.ErrNotFound)

	got, err := s.GetAssistantByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, store.AssistantTypeInactive, got.Type)
	assert.Equal(t, store.InactivePrefix+"writer", got.Name)
	assert.False(t, got.IsActive())

	task, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.InactivePrefix+a.ID, task.AssignedAssistant)

	active, err := s.ListAssistants(ctx, &store.FindAssistant{ExcludeInactive: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, other.ID, active[0].ID)

	// The name is free again once the holder is inactive.
	createAssistant(t, s, "writer")

	kept, err := s.CreateAssistant(ctx, &store.CreateAssistant{
		Assistant: &store.Assistant{Name: "kept", Type: store.AssistantTypeAssistant, RemoteAssistantID: "asst_kept"},
	})
	require.NoError(t, err)
	removed, err := s.CreateAssistant(ctx, &store.CreateAssistant{
		Assistant: &store.Assistant{Name: "removed", Type: store.AssistantTypeAssistant, RemoteAssistantID: "asst_removed"},
	})
	require.NoError(t, err)
	require.NoError(t, s.DeactivateAssistant(ctx, kept, false))
	require.NoError(t, s.DeactivateAssistant(ctx, removed, true))

	got, err = s.GetAssistantByID(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, "asst_kept", got.RemoteAssistantID, "remote id is kept as history")
	got, err = s.GetAssistantByID(ctx, removed.ID)
	require.NoError(t, err)
	assert.Empty(t, got.RemoteAssistantID)
	assert.Equal(t, store.AssistantTypeInactive, got.Type)
}

func testAssistantSeed(t *testing.T, s *store.Store) {
	ctx := context.Background()

	for _, tc := range []struct {
		name       string
		maxResults int
		focused    int
	}{
		{"focused", 2, 1},
		{"closed", 0, 0},
	} {
		seed := &store.Memory{Type: store.MemoryTypeInstruction, Name: "instructions", Description: "Be brief."}
		a, err := s.CreateAssistant(ctx, &store.CreateAssistant{
			Assistant: &store.Assistant{Name: tc.name, Type: store.AssistantTypeChat},
			Seed:      &store.SeedInstruction{FocusRule: &store.FocusRule{MaxResults: tc.maxResults}, Memory: seed},
		})
		require.NoError(t, err, tc.name)

		rule := defaultRule(t, s, a.ID)
		assert.Equal(t, store.DefaultFocusRuleName, rule.Name)
		assert.Equal(t, tc.maxResults, rule.MaxResults)

		owned, err := s.ListMemoriesByAssistant(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{seed.ID}, memoryIDs(owned), tc.name)

		focused, err := s.ListFocusedMemories(ctx, rule.ID)
		require.NoError(t, err)
		assert.Len(t, focused, tc.focused, tc.name)
	}

	// A failed seed leaves no assistant behind.
	_, err := s.CreateAssistant(ctx, &store.CreateAssistant{
		Assistant: &store.Assistant{Name: "focused", Type: store.AssistantTypeChat},
		Seed:      &store.SeedInstruction{FocusRule: &store.FocusRule{MaxResults: 1}},
	})
	assert.ErrorIs(t, err, store.ErrConflict)
	name := "focused"
	list, err := s.ListAssistants(ctx, &store.FindAssistant{Name: &name})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testMutateFocusedMemories(t *testing.T, s *store.Store) {
	ctx := context.Background()
	a := createAssistant(t, s, "focus")
	rule := defaultRule(t, s, a.ID)
	m1, m2, m3 := createMemory(t, s, "one"), createMemory(t, s, "two"), createMemory(t, s, "three")

	replace := func(ids ...string) store.FocusMutation {
		return func(*store.FocusRule, []string) ([]string, error) { return ids, nil }
	}
	focusedIDs := func() []string {
		list, err := s.ListFocusedMemories(ctx, rule.ID)
		require.NoError(t, err)
		return memoryIDs(list)
	}

	after, err := s.MutateFocusedMemories(ctx, rule.ID, replace(m3.ID, m1.ID, m2.ID))
	require.NoError(t, err)
	assert.Greater(t, after.UpdatedTs, rule.UpdatedTs)
	assert.Equal(t, []string{m3.ID, m1.ID, m2.ID}, focusedIDs(), "insertion order is kept")

	var seen []string
	unchanged, err := s.MutateFocusedMemories(ctx, rule.ID, func(_ *store.FocusRule, current []string) ([]string, error) {
		seen = current
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{m3.ID, m1.ID, m2.ID}, seen)
	assert.Equal(t, after.UpdatedTs, unchanged.UpdatedTs)

	resized, err := s.MutateFocusedMemories(ctx, rule.ID, func(r *store.FocusRule, current []string) ([]string, error) {
		r.MaxResults = 1
		return current[len(current)-1:], nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resized.MaxResults)
	assert.Greater(t, resized.UpdatedTs, after.UpdatedTs)
	stored, err := s.GetFocusRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.MaxResults)
	assert.Equal(t, []string{m2.ID}, focusedIDs())

	_, err = s.MutateFocusedMemories(ctx, rule.ID, replace(m1.ID, "missing"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []string{m2.ID}, focusedIDs(), "failed mutation rolls back")

	_, err = s.MutateFocusedMemories(ctx, rule.ID, func(r *store.FocusRule, _ []string) ([]string, error) {
		r.MaxResults = -1
		return nil, nil
	})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = s.MutateFocusedMemories(ctx, rule.ID, func(*store.FocusRule, []string) ([]string, error) {
		return nil, store.ErrConflict
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.MutateFocusedMemories(ctx, rule.ID, replace([]string{}...))
	require.NoError(t, err)
	assert.Empty(t, focusedIDs())

	_, err = s.MutateFocusedMemories(ctx, "missing", replace(m1.ID))
	assert.ErrorIs(t, err, store.ErrNotFound)

	extra, err := s.CreateFocusRule(ctx, &store.FocusRule{AssistantID: a.ID, Name: "extra", MaxResults: 2})
	require.NoError(t, err)
	rules, err := s.ListFocusRules(ctx, &store.FindFocusRule{AssistantID: &a.ID})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, rule.ID, rules[0].ID, "rules are listed oldest first")

	require.NoError(t, s.DeleteFocusRule(ctx, extra.ID))
	assert.ErrorIs(t, s.DeleteFocusRule(ctx, extra.ID), store.ErrNotFound)
	_, err = s.CreateFocusRule(ctx, &store.FocusRule{AssistantID: a.ID, MaxResults: -1})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func testMemoryQueries(t *testing.T, s *store.Store) {
	ctx := context.Background()
	m1 := createMemory(t, s, "Postgres tuning notes")
	m2 := createMemory(t, s, "sqlite pragmas")
	prompt, err := s.CreateMemory(ctx, &store.Memory{Type: store.MemoryTypePrompt, Name: "greeting", Description: "Say hi", Data: "POSTGRES"})
	require.NoError(t, err)
	_, err = s.UpdateMemoryTags(ctx, m2.ID, []string{"db"})
	require.NoError(t, err)

	query := "postgres"
	list, err := s.ListMemories(ctx, &store.FindMemory{Query: &query})
	require.NoError(t, err)
	assert.Equal(t, []string{m1.ID, prompt.ID}, memoryIDs(list))

	kind := store.MemoryTypePrompt
	list, err = s.ListMemories(ctx, &store.FindMemory{Query: &query, Type: &kind})
	require.NoError(t, err)
	assert.Equal(t, []string{prompt.ID}, memoryIDs(list))

	list, err = s.ListMemoriesByTagNames(ctx, []string{"db"})
	require.NoError(t, err)
	assert.Equal(t, []string{m2.ID}, memoryIDs(list))
	_, err = s.ListMemoriesByTagNames(ctx, nil)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	list, err = s.ListMemories(ctx, &store.FindMemory{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{m2.ID}, memoryIDs(list))
	list, err = s.ListMemories(ctx, &store.FindMemory{Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{prompt.ID}, memoryIDs(list))

	list, err = s.ListMemories(ctx, &store.FindMemory{IDs: []string{prompt.ID, m1.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{m1.ID, prompt.ID}, memoryIDs(list))

	summary := "tuning"
	updated, err := s.UpdateMemory(ctx, &store.UpdateMemory{ID: m1.ID, Summary: &summary})
	require.NoError(t, err)
	assert.Equal(t, "tuning", updated.Summary)
	assert.Equal(t, "Postgres tuning notes", updated.Description)

	_, err = s.UpdateMemory(ctx, &store.UpdateMemory{ID: "missing", Summary: &summary})
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetMemory(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDeleteMemory(t *testing.T, s *store.Store) {
	ctx := context.Background()
	a := createAssistant(t, s, "cleanup")
	rule := defaultRule(t, s, a.ID)
	m := createMemory(t, s, "doomed")
	keep := createMemory(t, s, "kept")

	_, err := s.AddOwnedMemory(ctx, a.ID, m.ID)
	require.NoError(t, err)
	_, err = s.UpdateMemoryTags(ctx, m.ID, []string{"gone"})
	require.NoError(t, err)
	_, err = s.MutateFocusedMemories(ctx, rule.ID, func(*store.FocusRule, []string) ([]string, error) {
		return []string{m.ID, keep.ID}, nil
	})
	require.NoError(t, err)

	holding, err := s.ListFocusRules(ctx, &store.FindFocusRule{MemoryID: &m.ID})
	require.NoError(t, err)
	require.Len(t, holding, 1)
	assert.Equal(t, rule.ID, holding[0].ID)

	require.NoError(t, s.DeleteMemory(ctx, m.ID))
	assert.ErrorIs(t, s.DeleteMemory(ctx, m.ID), store.ErrNotFound)
	holding, err = s.ListFocusRules(ctx, &store.FindFocusRule{MemoryID: &m.ID})
	require.NoError(t, err)
	assert.Empty(t, holding)

	owned, err := s.ListMemoriesByAssistant(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, owned)
	focused, err := s.ListFocusedMemories(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, memoryIDs(focused))
	found, err := s.FindEntitiesByTagNames(ctx, store.EntityMemory, []string{"gone"})
	require.NoError(t, err)
	assert.Empty(t, found.Memories)
}

func testTasks(t *testing.T, s *store.Store) {
	ctx := context.Background()
	a := createAssistant(t, s, "worker")

	task, err := s.CreateTask(ctx, &store.Task{Description: "index docs", AssignedAssistant: a.ID})
	require.NoError(t, err)
	assert.Equal(t, store.TaskStatusPending, task.Status)
	other, err := s.CreateTask(ctx, &store.Task{Description: "unassigned"})
	require.NoError(t, err)

	_, err = s.CreateTask(ctx, &store.Task{})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	status := store.TaskStatusCompleted
	updated, err := s.UpdateTask(ctx, &store.UpdateTask{ID: task.ID, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, store.TaskStatusCompleted, updated.Status)
	assert.Equal(t, "index docs", updated.Description)

	list, err := s.ListTasks(ctx, &store.FindTask{AssignedAssistant: &a.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, task.ID, list[0].ID)

	require.NoError(t, s.SetEntityTags(ctx, store.EntityRef{ID: other.ID, Kind: store.EntityTask}, []string{"ops"}))
	found, err := s.FindEntitiesByTagNames(ctx, store.EntityTask, []string{"ops"})
	require.NoError(t, err)
	require.Len(t, found.Tasks, 1)
	assert.Equal(t, other.ID, found.Tasks[0].ID)

	require.NoError(t, s.DeleteTask(ctx, other.ID))
	assert.ErrorIs(t, s.DeleteTask(ctx, other.ID), store.ErrNotFound)
	found, err = s.FindEntitiesByTagNames(ctx, store.EntityTask, []string{"ops"})
	require.NoError(t, err)
	assert.Empty(t, found.Tasks)
}

func testFeedback(t *testing.T, s *store.Store) {
	ctx := context.Background()
	m := createMemory(t, s, "rated")

	first, err := s.CreateFeedback(ctx, &store.Feedback{TargetID: m.ID, TargetType: store.EntityMemory, Rating: 3, Comments: "ok"})
	require.NoError(t, err)
	second, err := s.CreateFeedback(ctx, &store.Feedback{TargetID: m.ID, TargetType: store.EntityMemory, Rating: 5, UserID: "u1"})
	require.NoError(t, err)

	_, err = s.CreateFeedback(ctx, &store.Feedback{TargetID: "missing", TargetType: store.EntityMemory, Rating: 1})
	assert.ErrorIs(t, err, store.ErrNotFound)

	list, err := s.ListFeedback(ctx, &store.FindFeedback{TargetID: &m.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")

	rating := int32(4)
	updated, err := s.UpdateFeedback(ctx, &store.UpdateFeedback{ID: first.ID, Rating: &rating})
	require.NoError(t, err)
	assert.Equal(t, int32(4), updated.Rating)
	assert.Equal(t, "ok", updated.Comments, "unset fields keep their value")

	_, err = s.UpdateFeedback(ctx, &store.UpdateFeedback{ID: "missing", Rating: &rating})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteFeedback(ctx, first.ID))
	assert.ErrorIs(t, s.DeleteFeedback(ctx, first.ID), store.ErrNotFound)
}

func testChatMessages(t *testing.T, s *store.Store) {
	ctx := context.Background()
	session, err := s.CreateSession(ctx, &store.Session{Name: "standup"})
	require.NoError(t, err)
	chat, err := s.CreateChat(ctx, &store.Chat{SessionID: session.ID, Title: "monday"})
	require.NoError(t, err)

	_, err = s.CreateChat(ctx, &store.Chat{SessionID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	var ids []string
	for _, content := range []string{"one", "two", "three"} {
		msg, err := s.CreateChatMessage(ctx, chat.ID, "user", content)
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}
	_, err = s.CreateChatMessage(ctx, "missing", "user", "lost")
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := s.ListChatMessages(ctx, &store.FindChatMessage{ChatID: chat.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, msg := range all {
		assert.Equal(t, ids[i], msg.ID)
	}

	newest, err := s.ListChatMessages(ctx, &store.FindChatMessage{ChatID: chat.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, ids[1], newest[0].ID)
	assert.Equal(t, ids[2], newest[1].ID)

	content, err := s.GetMemory(ctx, newest[1].MemoryID)
	require.NoError(t, err)
	assert.Equal(t, store.MemoryTypeSession, content.Type)
	assert.Equal(t, "three", content.Description)

	require.NoError(t, s.DeleteSession(ctx, session.ID))
	assert.ErrorIs(t, s.DeleteSession(ctx, session.ID), store.ErrNotFound)
	_, err = s.GetMemory(ctx, content.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetChat(ctx, chat.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
