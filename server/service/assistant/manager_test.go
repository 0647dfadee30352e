package assistant

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cortex/ai/instruction"
	"github.com/hrygo/cortex/ai/provider"
	"github.com/hrygo/cortex/internal/profile"
	"github.com/hrygo/cortex/server/service/focus"
	"github.com/hrygo/cortex/store"
	"github.com/hrygo/cortex/store/db/sqlite"
)

type mockClient struct {
	mock.Mock
}

func (c *mockClient) CreateAssistant(ctx context.Context, create *provider.CreateRemoteAssistant) (*provider.RemoteAssistant, error) {
	args := c.Called(ctx, create)
	if ra, ok := args.Get(0).(*provider.RemoteAssistant); ok {
		return ra, args.Error(1)
	}
	return nil, args.Error(1)
}

func (c *mockClient) GetAssistant(ctx context.Context, id string) (*provider.RemoteAssistant, error) {
	args := c.Called(ctx, id)
	if ra, ok := args.Get(0).(*provider.RemoteAssistant); ok {
		return ra, args.Error(1)
	}
	return nil, args.Error(1)
}

func (c *mockClient) UpdateAssistant(ctx context.Context, id string, update *provider.UpdateRemoteAssistant) error {
	return c.Called(ctx, id, update).Error(0)
}

func (c *mockClient) DeleteAssistant(ctx context.Context, id string) error {
	return c.Called(ctx, id).Error(0)
}

var errRemote = errors.Wrap(provider.ErrRemoteProvider, "boom")

type fixture struct {
	manager *Manager
	store   *store.Store
	focus   *focus.Engine
	client  *mockClient
	profile *profile.Profile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := &profile.Profile{
		Mode:                 "dev",
		Driver:               "sqlite",
		DSN:                  filepath.Join(t.TempDir(), "assistant.db"),
		DefaultFocusCapacity: profile.DefaultFocusCapacity,
		ProviderModel:        "gpt-4o",
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	engine := focus.NewEngine(st, p, nil)
	client := &mockClient{}
	t.Cleanup(func() { client.AssertExpectations(t) })
	return &fixture{
		manager: NewManager(st, engine, client, p, nil),
		store:   st,
		focus:   engine,
		client:  client,
		profile: p,
	}
}

func TestCreateSeedsFocusRule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.manager.Create(ctx, &CreateRequest{
		Name:         "Helper",
		Description:  "desc",
		Type:         store.AssistantTypeChat,
		Model:        "gpt-x",
		Instructions: "Be concise.",
	})
	require.NoError(t, err)

	rule, err := f.focus.DefaultRule(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, profile.DefaultFocusCapacity, rule.MaxResults)

	focused, err := f.focus.GetFocusedMemories(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, focused, 1)
	assert.Equal(t, store.MemoryTypeInstruction, focused[0].Type)
	assert.Equal(t, "Be concise.", instruction.Synthesize(focused))

	owned, err := f.store.ListMemoriesByAssistant(ctx, id)
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestCreateIsIdempotentByName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := &CreateRequest{Name: "Bot", Type: store.AssistantTypeCompletion, Model: "gpt-x"}

	first, err := f.manager.Create(ctx, req)
	require.NoError(t, err)
	second, err := f.manager.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	name := "Bot"
	list, err := f.store.ListAssistants(ctx, &store.FindAssistant{Name: &name})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateWithoutInstructions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	zero := 0

	id, err := f.manager.Create(ctx, &CreateRequest{Name: "Quiet", Type: store.AssistantTypeChat, MaxResults: &zero, Tags: []string{"ops"}})
	require.NoError(t, err)

	detail, err := f.manager.Detail(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", detail.Assistant.Model)
	assert.Empty(t, detail.OwnedMemories)
	assert.Empty(t, detail.FocusedMemories)
	require.Len(t, detail.FocusRules, 1)
	assert.Equal(t, 0, detail.FocusRules[0].MaxResults)
	require.Len(t, detail.Tags, 1)
	assert.Equal(t, "ops", detail.Tags[0].Name)
	assert.Empty(t, detail.Instructions)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	negative := -1

	tests := []struct {
		name string
		req  *CreateRequest
	}{
		{name: "empty name", req: &CreateRequest{Name: "  ", Type: store.AssistantTypeChat}},
		{name: "inactive type", req: &CreateRequest{Name: "x", Type: store.AssistantTypeInactive}},
		{name: "unknown type", req: &CreateRequest{Name: "x", Type: "robot"}},
		{name: "negative capacity", req: &CreateRequest{Name: "x", Type: store.AssistantTypeChat, MaxResults: &negative}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Create(ctx, tt.req)
			assert.ErrorIs(t, err, store.ErrInvalidArgument)
		})
	}
}

func TestCreateRemoteAssistant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.client.On("CreateAssistant", mock.Anything, mock.MatchedBy(func(c *provider.CreateRemoteAssistant) bool {
		return c.Name == "Remote" && c.Instructions == "Answer in French." && c.Model == "gpt-x"
	})).Return(&provider.RemoteAssistant{ID: "asst_1"}, nil).Once()

	id, err := f.manager.Create(ctx, &CreateRequest{
		Name:         "Remote",
		Type:         store.AssistantTypeAssistant,
		Model:        "gpt-x",
		Instructions: "Answer in French.",
	})
	require.NoError(t, err)

	a, err := f.manager.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "asst_1", a.RemoteAssistantID)
}

func TestCreateRemoteFailureLeavesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.client.On("CreateAssistant", mock.Anything, mock.Anything).Return(nil, errRemote).Once()

	_, err := f.manager.Create(ctx, &CreateRequest{Name: "Remote", Type: store.AssistantTypeAssistant, Model: "gpt-x"})
	assert.ErrorIs(t, err, provider.ErrRemoteProvider)

	list, err := f.manager.List(ctx, &ListRequest{IncludeInactive: true})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdatePushesSynthesizedInstructions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.client.On("CreateAssistant", mock.Anything, mock.Anything).Return(&provider.RemoteAssistant{ID: "asst_1"}, nil).Once()
	id, err := f.manager.Create(ctx, &CreateRequest{Name: "Remote", Type: store.AssistantTypeAssistant, Model: "gpt-x", Instructions: "First."})
	require.NoError(t, err)

	m, err := f.store.CreateMemory(ctx, &store.Memory{Type: store.MemoryTypeKnowledge, Description: "Second."})
	require.NoError(t, err)
	rule, err := f.focus.DefaultRule(ctx, id)
	require.NoError(t, err)
	_, err = f.focus.AddFocusedMemory(ctx, rule.ID, m.ID)
	require.NoError(t, err)

	name := "Renamed"
	f.client.On("UpdateAssistant", mock.Anything, "asst_1", mock.MatchedBy(func(u *provider.UpdateRemoteAssistant) bool {
		return u.Model == "gpt-x" && u.Name != nil && *u.Name == name &&
			u.Instructions != nil && *u.Instructions == "First.\n\nSecond."
	})).Return(nil).Once()

	ok, err := f.manager.Update(ctx, id, &UpdateRequest{Name: &name})
	require.NoError(t, err)
	assert.True(t, ok)

	a, err := f.manager.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, name, a.Name)
}

func TestUpdateRemoteFailureSkipsLocalWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.client.On("CreateAssistant", mock.Anything, mock.Anything).Return(&provider.RemoteAssistant{ID: "asst_1"}, nil).Once()
	id, err := f.manager.Create(ctx, &CreateRequest{Name: "Remote", Type: store.AssistantTypeAssistant, Model: "gpt-x"})
	require.NoError(t, err)

	f.client.On("UpdateAssistant", mock.Anything, "asst_1", mock.Anything).Return(errRemote).Once()
	name := "Renamed"
	ok, err := f.manager.Update(ctx, id, &UpdateRequest{Name: &name})
	assert.ErrorIs(t, err, provider.ErrRemoteProvider)
	assert.False(t, ok)

	a, err := f.manager.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Remote", a.Name)
}

func TestUpdateRenameConflictSkipsRemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.client.On("CreateAssistant", mock.Anything, mock.Anything).Return(&provider.RemoteAssistant{ID: "asst_1"}, nil).Once()
	id, err := f.manager.Create(ctx, &CreateRequest{Name: "A", Type: store.AssistantTypeAssistant, Model: "gpt-x"})
	require.NoError(t, err)
	_, err = f.manager.Create(ctx, &CreateRequest{Name: "B", Type: store.AssistantTypeChat})
	require.NoError(t, err)

	name := "B"
	ok, err := f.manager.Update(ctx, id, &UpdateRequest{Name: &name})
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.False(t, ok)
	f.client.AssertNotCalled(t, "UpdateAssistant", mock.Anything, mock.Anything, mock.Anything)

	a, err := f.manager.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A", a.Name)

	// Keeping its own name is not a conflict.
	own := "A"
	f.client.On("UpdateAssistant", mock.Anything, "asst_1", mock.Anything).Return(nil).Once()
	ok, err = f.manager.Update(ctx, id, &UpdateRequest{Name: &own})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateLocalFailureRestoresRemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.client.On("CreateAssistant", mock.Anything, mock.Anything).Return(&provider.RemoteAssistant{ID: "asst_1"}, nil).Once()
	id, err := f.manager.Create(ctx, &CreateRequest{Name: "A", Description: "first", Type: store.AssistantTypeAssistant, Model: "gpt-x"})
	require.NoError(t, err)

	// Another writer takes the name between the check and the local write.
	name := "B"
	f.client.On("UpdateAssistant", mock.Anything, "asst_1", mock.MatchedBy(func(u *provider.UpdateRemoteAssistant) bool {
		return u.Name != nil && *u.Name == "B"
	})).Run(func(mock.Arguments) {
		_, err := f.store.CreateAssistant(ctx, &store.CreateAssistant{Assistant: &store.Assistant{Name: "B", Type: store.AssistantTypeChat}})
		require.NoError(t, err)
	}).Return(nil).Once()
	f.client.On("UpdateAssistant", mock.Anything, "asst_1", mock.MatchedBy(func(u *provider.UpdateRemoteAssistant) bool {
		return u.Name != nil && *u.Name == "A" && u.Description != nil && *u.Description == "first" &&
			u.Model == "gpt-x" && u.Instructions == nil
	})).Return(nil).Once()

	ok, err := f.manager.Update(ctx, id, &UpdateRequest{Name: &name})
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.False(t, ok)

	a, err := f.manager.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A", a.Name)
}

func TestUpdateLocalAssistant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.manager.Create(ctx, &CreateRequest{Name: "Local", Type: store.AssistantTypeChat})
	require.NoError(t, err)

	desc := "new description"
	ok, err := f.manager.Update(ctx, id, &UpdateRequest{Description: &desc})
	require.NoError(t, err)
	assert.True(t, ok)

	a, err := f.manager.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, desc, a.Description)

	_, err = f.manager.Update(ctx, "missing", &UpdateRequest{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteSoftDeletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.manager.Create(ctx, &CreateRequest{Name: "Helper", Type: store.AssistantTypeChat})
	require.NoError(t, err)
	task, err := f.store.CreateTask(ctx, &store.Task{Description: "write docs", AssignedAssistant: id})
	require.NoError(t, err)

	ok, err := f.manager.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	a, err := f.manager.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.AssistantTypeInactive, a.Type)
	assert.Equal(t, store.InactivePrefix+"Helper", a.Name)

	stored, err := f.store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.InactivePrefix+id, stored.AssignedAssistant)

	active, err := f.manager.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := f.manager.List(ctx, &ListRequest{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Deleting again is a successful no-op.
	ok, err = f.manager.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.manager.Update(ctx, id, &UpdateRequest{})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	// The name is free again.
	again, err := f.manager.Create(ctx, &CreateRequest{Name: "Helper", Type: store.AssistantTypeChat})
	require.NoError(t, err)
	assert.NotEqual(t, id, again)
}

func TestDeleteRemotePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("remote kept by default", func(t *testing.T) {
		f := newFixture(t)
		f.client.On("CreateAssistant", mock.Anything, mock.Anything).Return(&provider.RemoteAssistant{ID: "asst_1"}, nil).Once()
		id, err := f.manager.Create(ctx, &CreateRequest{Name: "Remote", Type: store.AssistantTypeAssistant, Model: "gpt-x"})
		require.NoError(t, err)

		ok, err := f.manager.Delete(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
		f.client.AssertNotCalled(t, "DeleteAssistant", mock.Anything, mock.Anything)

		a, err := f.manager.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "asst_1", a.RemoteAssistantID)
	})

	t.Run("remote deleted when enabled", func(t *testing.T) {
		f := newFixture(t)
		f.profile.DeleteRemoteOnSoftDelete = true
		f.client.On("CreateAssistant", mock.Anything, mock.Anything).Return(&provider.RemoteAssistant{ID: "asst_2"}, nil).Once()
		id, err := f.manager.Create(ctx, &CreateRequest{Name: "Remote", Type: store.AssistantTypeAssistant, Model: "gpt-x"})
		require.NoError(t, err)

		f.client.On("DeleteAssistant", mock.Anything, "asst_2").Return(errRemote).Once()
		ok, err := f.manager.Delete(ctx, id)
		assert.ErrorIs(t, err, provider.ErrRemoteProvider)
		assert.False(t, ok)

		a, err := f.manager.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, a.IsActive())

		f.client.On("DeleteAssistant", mock.Anything, "asst_2").Return(nil).Once()
		ok, err = f.manager.Delete(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)

		a, err = f.manager.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, a.IsActive())
		assert.Empty(t, a.RemoteAssistantID)
	})
}

func TestDetailIncludesRemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.client.On("CreateAssistant", mock.Anything, mock.Anything).Return(&provider.RemoteAssistant{ID: "asst_1"}, nil).Once()
	id, err := f.manager.Create(ctx, &CreateRequest{Name: "Remote", Type: store.AssistantTypeAssistant, Model: "gpt-x", Instructions: "Hi."})
	require.NoError(t, err)

	f.client.On("GetAssistant", mock.Anything, "asst_1").Return(&provider.RemoteAssistant{ID: "asst_1", Instructions: "Hi."}, nil).Once()
	detail, err := f.manager.Detail(ctx, id, true)
	require.NoError(t, err)
	require.NotNil(t, detail.Remote)
	assert.Equal(t, "Hi.", detail.Remote.Instructions)
	assert.Equal(t, "Hi.", detail.Instructions)
}

func TestSyncInstructions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.manager.Create(ctx, &CreateRequest{Name: "Local", Type: store.AssistantTypeChat, Instructions: "Stay calm."})
	require.NoError(t, err)

	text, err := f.manager.SyncInstructions(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Stay calm.", text)
}
