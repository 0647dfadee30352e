package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	AssistantClient
	created int
}

func (s *stubClient) CreateAssistant(context.Context, *CreateRemoteAssistant) (*RemoteAssistant, error) {
	s.created++
	return &RemoteAssistant{ID: "asst_stub"}, nil
}

func TestLazyInitializesOnce(t *testing.T) {
	calls := 0
	stub := &stubClient{}
	lazy := NewLazy(func() (AssistantClient, error) {
		calls++
		return stub, nil
	})
	assert.Equal(t, 0, calls)

	for i := 0; i < 3; i++ {
		a, err := lazy.CreateAssistant(context.Background(), &CreateRemoteAssistant{Model: "m"})
		require.NoError(t, err)
		assert.Equal(t, "asst_stub", a.ID)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, stub.created)
}

func TestLazyRemembersInitFailure(t *testing.T) {
	calls := 0
	lazy := NewLazy(func() (AssistantClient, error) {
		calls++
		return nil, errors.New("missing api key")
	})

	_, err := lazy.CreateAssistant(context.Background(), &CreateRemoteAssistant{})
	assert.ErrorIs(t, err, ErrRemoteProvider)
	_, err = lazy.GetAssistant(context.Background(), "asst_1")
	assert.ErrorIs(t, err, ErrRemoteProvider)
	assert.ErrorIs(t, lazy.UpdateAssistant(context.Background(), "asst_1", &UpdateRemoteAssistant{}), ErrRemoteProvider)
	assert.ErrorIs(t, lazy.DeleteAssistant(context.Background(), "asst_1"), ErrRemoteProvider)
	assert.Equal(t, 1, calls)
}
