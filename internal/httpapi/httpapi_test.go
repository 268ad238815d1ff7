package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurabx/harmony/internal/config"
	"github.com/aurabx/harmony/internal/middleware"
	"github.com/aurabx/harmony/internal/pipeline"
	"github.com/aurabx/harmony/internal/services"
	"github.com/aurabx/harmony/internal/services/builtin"
)

func newTestAdapter(t *testing.T, cfg *config.Config) *Adapter {
	t.Helper()
	reg := services.NewRegistry()
	builtin.Register(reg)
	exec := pipeline.NewExecutor(reg, cfg, nil)
	return NewAdapter("public", "127.0.0.1:0", cfg, reg, middleware.NewTypeRegistry(), exec, nil)
}

func echoConfig() *config.Config {
	return &config.Config{
		Endpoints: map[string]config.EndpointConfig{
			"echo-endpoint": {Service: "echo", Options: map[string]any{"path_prefix": "/echo"}},
		},
		Pipelines: map[string]config.PipelineConfig{
			"echo-pipeline": {Networks: []string{"public"}, Endpoints: []string{"echo-endpoint"}},
		},
	}
}

func TestBuildRouterInstallsEchoRoute(t *testing.T) {
	adapter := newTestAdapter(t, echoConfig())
	router, err := adapter.BuildRouter()
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/echo/ping", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBuildRouterDedupsConflictingRoutes(t *testing.T) {
	cfg := &config.Config{
		Endpoints: map[string]config.EndpointConfig{
			"echo-a": {Service: "echo", Options: map[string]any{"path_prefix": "/echo"}},
			"echo-b": {Service: "echo", Options: map[string]any{"path_prefix": "/echo"}},
		},
		Pipelines: map[string]config.PipelineConfig{
			"pipeline-a": {Networks: []string{"public"}, Endpoints: []string{"echo-a"}},
			"pipeline-b": {Networks: []string{"public"}, Endpoints: []string{"echo-b"}},
		},
	}
	adapter := newTestAdapter(t, cfg)

	router, err := adapter.BuildRouter()
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/echo/ping", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "pipeline-a", adapter.RouteOwner("POST", "/echo/*"))
}

func TestBuildRouterSkipsOtherNetworks(t *testing.T) {
	cfg := echoConfig()
	cfg.Pipelines["echo-pipeline"] = config.PipelineConfig{Networks: []string{"admin"}, Endpoints: []string{"echo-endpoint"}}
	adapter := newTestAdapter(t, cfg)

	router, err := adapter.BuildRouter()
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/echo/ping", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
