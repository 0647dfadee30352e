package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cortex/internal/profile"
	"github.com/hrygo/cortex/store"
	"github.com/hrygo/cortex/store/db/sqlite"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	p := &profile.Profile{
		Mode:                 "dev",
		Driver:               "sqlite",
		DSN:                  filepath.Join(t.TempDir(), "server.db"),
		DefaultFocusCapacity: profile.DefaultFocusCapacity,
		RequestTimeout:       5,
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { _ = st.Close() })

	s, err := NewServer(ctx, p, st)
	require.NoError(t, err)
	return s
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Service ready.", rec.Body.String())
}

func TestRequestsAreMeasured(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistants", strings.NewReader(`{"name":"Helper","type":"chat"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/assistants/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `cortex_http_requests_total{code="201",method="POST",route="/api/v1/assistants"} 1`)
	assert.Contains(t, body, `cortex_http_requests_total{code="404",method="GET",route="/api/v1/assistants/:id"} 1`)
	assert.Contains(t, body, `cortex_assistant_operations_total{operation="create",status="success"} 1`)
}
