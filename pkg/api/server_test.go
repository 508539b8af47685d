package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kustomzone/hyperbee/pkg/btree"
	"github.com/kustomzone/hyperbee/pkg/logstore/memlog"
)

func TestRouterRequiresAPIKeyForProtectedRoutes(t *testing.T) {
	tree := btree.New(memlog.New())
	require.NoError(t, tree.Ready(context.Background()))
	router := NewRouter(tree, ServerConfig{APIKey: "secret"}, testMetrics())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterMetricsEndpointIsUnprotected(t *testing.T) {
	tree := btree.New(memlog.New())
	require.NoError(t, tree.Ready(context.Background()))
	router := NewRouter(tree, ServerConfig{APIKey: "secret"}, testMetrics())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
