package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cortex/ai/metrics"
	"github.com/hrygo/cortex/internal/profile"
)

// fakeAssistantsAPI serves the subset of the Assistants API the client uses.
type fakeAssistantsAPI struct {
	mu         sync.Mutex
	assistants map[string]map[string]any
	fail       bool
	nextID     int
}

func (f *fakeAssistantsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.fail {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream unavailable","type":"server_error"}}`))
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/assistants")
	id = strings.TrimPrefix(id, "/")

	switch {
	case r.Method == http.MethodPost && id == "":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.nextID++
		body["id"] = "asst_" + string(rune('0'+f.nextID))
		body["object"] = "assistant"
		f.assistants[body["id"].(string)] = body
		_ = json.NewEncoder(w).Encode(body)
	case r.Method == http.MethodGet:
		a, ok := f.assistants[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"no such assistant","type":"invalid_request_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	case r.Method == http.MethodPost:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		a := f.assistants[id]
		for k, v := range body {
			a[k] = v
		}
		_ = json.NewEncoder(w).Encode(a)
	case r.Method == http.MethodDelete:
		_, ok := f.assistants[id]
		delete(f.assistants, id)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "object": "assistant.deleted", "deleted": ok})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T) (AssistantClient, *fakeAssistantsAPI) {
	t.Helper()
	api := &fakeAssistantsAPI{assistants: map[string]map[string]any{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", RPS: 100}, metrics.NewPrometheusExporter(metrics.DefaultConfig()))
	require.NoError(t, err)
	return client, api
}

func TestOpenAIClientLifecycle(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	created, err := client.CreateAssistant(ctx, &CreateRemoteAssistant{
		Model:        "gpt-4o",
		Name:         "Bot",
		Instructions: "Be concise.",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "Bot", created.Name)
	assert.Equal(t, "Be concise.", created.Instructions)

	name := "Bot 2"
	require.NoError(t, client.UpdateAssistant(ctx, created.ID, &UpdateRemoteAssistant{Model: "gpt-4o", Name: &name}))

	got, err := client.GetAssistant(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bot 2", got.Name)
	assert.Equal(t, "Be concise.", got.Instructions)

	require.NoError(t, client.DeleteAssistant(ctx, created.ID))

	_, err = client.GetAssistant(ctx, created.ID)
	assert.ErrorIs(t, err, ErrRemoteProvider)
}

func TestOpenAIClientFailure(t *testing.T) {
	ctx := context.Background()
	client, api := newTestClient(t)
	api.fail = true

	_, err := client.CreateAssistant(ctx, &CreateRemoteAssistant{Model: "gpt-4o", Name: "Bot"})
	assert.ErrorIs(t, err, ErrRemoteProvider)

	err = client.DeleteAssistant(ctx, "asst_missing")
	assert.ErrorIs(t, err, ErrRemoteProvider)
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(Config{}, nil)
	assert.Error(t, err)
}

func TestConfigFromProfile(t *testing.T) {
	cfg := configFromProfile(&profile.Profile{
		ProviderAPIKey:      "sk-test",
		ProviderBaseURL:     "http://localhost/v1",
		ProviderRPS:         2,
		ProviderTimeout:     15,
		ProviderMaxInFlight: 8,
	})
	assert.Equal(t, Config{
		APIKey:      "sk-test",
		BaseURL:     "http://localhost/v1",
		RPS:         2,
		Timeout:     15,
		MaxInFlight: 8,
	}, cfg)
}
