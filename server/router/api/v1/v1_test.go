package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cortex/ai/provider"
	"github.com/hrygo/cortex/internal/profile"
	"github.com/hrygo/cortex/server/service/assistant"
	"github.com/hrygo/cortex/server/service/focus"
	"github.com/hrygo/cortex/server/service/orchestrator"
	"github.com/hrygo/cortex/store"
	"github.com/hrygo/cortex/store/db/sqlite"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	p := &profile.Profile{
		Mode:                 "dev",
		Driver:               "sqlite",
		DSN:                  filepath.Join(t.TempDir(), "api.db"),
		DefaultFocusCapacity: 2,
		ProviderModel:        "gpt-4o",
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	engine := focus.NewEngine(st, p, nil)
	orch := orchestrator.New(st, engine, assistant.NewManager(st, engine, nil, p, nil))

	e := echo.New()
	NewAPIV1Service(p, orch).RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string, out any) int {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestAssistantEndpoints(t *testing.T) {
	e := newTestServer(t)

	var created createAssistantResponse
	code := do(t, e, http.MethodPost, "/api/v1/assistants",
		`{"name":"Helper","description":"desc","type":"chat","model":"gpt-x","instructions":"Be concise."}`, &created)
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, created.ID)

	var again createAssistantResponse
	do(t, e, http.MethodPost, "/api/v1/assistants", `{"name":"Helper","type":"chat"}`, &again)
	assert.Equal(t, created.ID, again.ID)

	var detail assistant.Detail
	code = do(t, e, http.MethodGet, "/api/v1/assistants/"+created.ID+"/detail", "", &detail)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Be concise.", detail.Instructions)
	require.Len(t, detail.FocusRules, 1)
	assert.Equal(t, 2, detail.FocusRules[0].MaxResults)

	var updated okResponse
	code = do(t, e, http.MethodPatch, "/api/v1/assistants/"+created.ID, `{"description":"changed"}`, &updated)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, updated.OK)

	var deleted okResponse
	code = do(t, e, http.MethodDelete, "/api/v1/assistants/"+created.ID, "", &deleted)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, deleted.OK)

	var a store.Assistant
	code = do(t, e, http.MethodGet, "/api/v1/assistants/"+created.ID, "", &a)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, store.AssistantTypeInactive, a.Type)

	var active []*store.Assistant
	do(t, e, http.MethodGet, "/api/v1/assistants", "", &active)
	assert.Empty(t, active)

	var all []*store.Assistant
	do(t, e, http.MethodGet, "/api/v1/assistants?include_inactive=true", "", &all)
	assert.Len(t, all, 1)
}

func TestErrorMapping(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{name: "missing assistant", method: http.MethodGet, path: "/api/v1/assistants/missing", code: http.StatusNotFound},
		{name: "invalid type", method: http.MethodPost, path: "/api/v1/assistants", body: `{"name":"x","type":"robot"}`, code: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPost, path: "/api/v1/assistants", body: `{`, code: http.StatusBadRequest},
		{name: "empty tag lookup", method: http.MethodGet, path: "/api/v1/tags/entities?kind=memory", code: http.StatusBadRequest},
		{name: "unknown entity kind", method: http.MethodGet, path: "/api/v1/entities/user/1/tags", code: http.StatusBadRequest},
		{name: "invalid limit", method: http.MethodGet, path: "/api/v1/memories?limit=abc", code: http.StatusBadRequest},
		{name: "invalid filter", method: http.MethodGet, path: "/api/v1/memories?filter=name%20%2B", code: http.StatusBadRequest},
		{name: "missing focus rule", method: http.MethodGet, path: "/api/v1/focus-rules/missing/memories", code: http.StatusNotFound},
		{name: "remote without provider", method: http.MethodPost, path: "/api/v1/assistants", body: `{"name":"r","type":"assistant"}`, code: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, do(t, e, tt.method, tt.path, tt.body, nil))
		})
	}
}

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{err: errors.Wrap(store.ErrNotFound, "x"), code: http.StatusNotFound},
		{err: errors.Wrap(store.ErrInvalidArgument, "x"), code: http.StatusBadRequest},
		{err: errors.Wrap(store.ErrConflict, "x"), code: http.StatusConflict},
		{err: errors.Wrap(provider.ErrRemoteProvider, "x"), code: http.StatusBadGateway},
		{err: errors.New("boom"), code: http.StatusInternalServerError},
		{err: echo.NewHTTPError(http.StatusTeapot), code: http.StatusTeapot},
	}
	for _, tt := range tests {
		var httpErr *echo.HTTPError
		require.True(t, errors.As(toHTTPError(tt.err), &httpErr))
		assert.Equal(t, tt.code, httpErr.Code, tt.err.Error())
	}
}

func TestFocusEndpoints(t *testing.T) {
	e := newTestServer(t)

	var created createAssistantResponse
	do(t, e, http.MethodPost, "/api/v1/assistants", `{"name":"Helper","type":"chat"}`, &created)

	var ids []string
	for _, text := range []string{"a", "b", "c"} {
		var m store.Memory
		code := do(t, e, http.MethodPost, "/api/v1/memories",
			`{"assistant_id":"`+created.ID+`","description":"`+text+`","focus":true,"tags":["letters"]}`, &m)
		require.Equal(t, http.StatusCreated, code)
		ids = append(ids, m.ID)
	}

	var focused []*store.Memory
	do(t, e, http.MethodGet, "/api/v1/assistants/"+created.ID+"/focused", "", &focused)
	require.Len(t, focused, 2)
	assert.Equal(t, ids[1], focused[0].ID)
	assert.Equal(t, ids[2], focused[1].ID)

	var rules []*store.FocusRule
	do(t, e, http.MethodGet, "/api/v1/assistants/"+created.ID+"/focus-rules", "", &rules)
	require.Len(t, rules, 1)
	ruleID := rules[0].ID

	var replaced okResponse
	code := do(t, e, http.MethodPut, "/api/v1/focus-rules/"+ruleID+"/memories",
		`{"memory_ids":["`+ids[0]+`","`+ids[1]+`","`+ids[2]+`"]}`, &replaced)
	require.Equal(t, http.StatusOK, code)

	var rule store.FocusRule
	code = do(t, e, http.MethodPatch, "/api/v1/focus-rules/"+ruleID, `{"max_results":1}`, &rule)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, rule.MaxResults)

	do(t, e, http.MethodGet, "/api/v1/focus-rules/"+ruleID+"/memories", "", &focused)
	require.Len(t, focused, 1)
	assert.Equal(t, ids[2], focused[0].ID)

	var tagged store.TaggedEntities
	code = do(t, e, http.MethodGet, "/api/v1/tags/entities?kind=memory&name=letters", "", &tagged)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, tagged.Memories, 3)
}

func TestChatEndpoints(t *testing.T) {
	e := newTestServer(t)

	var session store.Session
	require.Equal(t, http.StatusCreated, do(t, e, http.MethodPost, "/api/v1/sessions", `{"name":"support"}`, &session))

	var chat store.Chat
	require.Equal(t, http.StatusCreated, do(t, e, http.MethodPost, "/api/v1/sessions/"+session.ID+"/chats", `{"title":"refund"}`, &chat))

	for _, content := range []string{"one", "two", "three"} {
		require.Equal(t, http.StatusCreated,
			do(t, e, http.MethodPost, "/api/v1/chats/"+chat.ID+"/messages", `{"role":"user","content":"`+content+`"}`, nil))
	}

	var messages []*store.ChatMessage
	require.Equal(t, http.StatusOK, do(t, e, http.MethodGet, "/api/v1/chats/"+chat.ID+"/messages?limit=2", "", &messages))
	require.Len(t, messages, 2)

	var first store.Memory
	do(t, e, http.MethodGet, "/api/v1/memories/"+messages[0].MemoryID, "", &first)
	assert.Equal(t, "two", first.Description)

	assert.Equal(t, http.StatusNoContent, do(t, e, http.MethodDelete, "/api/v1/sessions/"+session.ID, "", nil))
	assert.Equal(t, http.StatusNotFound, do(t, e, http.MethodGet, "/api/v1/chats/"+chat.ID, "", nil))
}

func TestTaskAndFeedbackEndpoints(t *testing.T) {
	e := newTestServer(t)

	var created createAssistantResponse
	do(t, e, http.MethodPost, "/api/v1/assistants", `{"name":"Helper","type":"completion"}`, &created)

	var task store.Task
	require.Equal(t, http.StatusCreated,
		do(t, e, http.MethodPost, "/api/v1/tasks", `{"description":"triage","assistant_id":"`+created.ID+`"}`, &task))
	assert.Equal(t, created.ID, task.AssignedAssistant)

	var updated store.Task
	require.Equal(t, http.StatusOK,
		do(t, e, http.MethodPatch, "/api/v1/tasks/"+task.ID, `{"status":"completed"}`, &updated))
	assert.Equal(t, store.TaskStatusCompleted, updated.Status)

	var feedback store.Feedback
	require.Equal(t, http.StatusCreated,
		do(t, e, http.MethodPost, "/api/v1/feedback", `{"target_id":"`+task.ID+`","target_type":"task","rating":4,"comments":"good"}`, &feedback))

	var merged store.Feedback
	require.Equal(t, http.StatusOK,
		do(t, e, http.MethodPatch, "/api/v1/feedback/"+feedback.ID, `{"rating":5}`, &merged))
	assert.Equal(t, int32(5), merged.Rating)
	assert.Equal(t, "good", merged.Comments)

	assert.Equal(t, http.StatusNotFound,
		do(t, e, http.MethodPost, "/api/v1/feedback", `{"target_id":"missing","target_type":"task","rating":1}`, nil))
}
