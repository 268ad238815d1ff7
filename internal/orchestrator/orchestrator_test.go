package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurabx/harmony/internal/config"
	"github.com/aurabx/harmony/internal/middleware"
	"github.com/aurabx/harmony/internal/pipeline"
	"github.com/aurabx/harmony/internal/services"
	"github.com/aurabx/harmony/internal/services/builtin"
)

func newTestOrchestrator(t *testing.T, cfg *config.Config) *Orchestrator {
	t.Helper()
	reg := services.NewRegistry()
	builtin.Register(reg)
	types := middleware.NewTypeRegistry()
	exec := pipeline.NewExecutor(reg, cfg, nil)
	return New(cfg, reg, types, exec, nil)
}

func TestBuildCreatesOneHTTPAdapterPerNetwork(t *testing.T) {
	cfg := &config.Config{
		Network: map[string]config.NetworkConfig{
			"public": {HTTP: &config.HTTPNetworkConfig{BindAddr: "127.0.0.1", Port: 0}},
			"admin":  {HTTP: &config.HTTPNetworkConfig{BindAddr: "127.0.0.1", Port: 0}},
		},
		Endpoints: map[string]config.EndpointConfig{
			"echo-endpoint": {Service: "echo", Options: map[string]any{"path_prefix": "/echo"}},
		},
		Pipelines: map[string]config.PipelineConfig{
			"echo-pipeline": {Networks: []string{"public"}, Endpoints: []string{"echo-endpoint"}},
		},
	}

	o := newTestOrchestrator(t, cfg)
	require.NoError(t, o.Build())
	assert.Len(t, o.HTTPAdapters(), 2)
	assert.Empty(t, o.DimseSCPs())
}

func TestBuildCreatesDimseSCPForDimseBearingEndpoint(t *testing.T) {
	cfg := &config.Config{
		Network: map[string]config.NetworkConfig{
			"pacs": {},
		},
		Endpoints: map[string]config.EndpointConfig{
			"dimse-endpoint": {Service: "echo", Options: map[string]any{
				"local_aet": "HARMONY", "bind_addr": "127.0.0.1", "port": 0,
			}},
		},
		Pipelines: map[string]config.PipelineConfig{
			"dimse-pipeline": {Networks: []string{"pacs"}, Endpoints: []string{"dimse-endpoint"}},
		},
	}

	o := newTestOrchestrator(t, cfg)
	require.NoError(t, o.Build())
	assert.Empty(t, o.HTTPAdapters())
	require.Len(t, o.DimseSCPs(), 1)
}

func TestBuildDedupsIdenticalSCPKeys(t *testing.T) {
	cfg := &config.Config{
		Network: map[string]config.NetworkConfig{"pacs": {}},
		Endpoints: map[string]config.EndpointConfig{
			"dimse-a": {Service: "echo", Options: map[string]any{"local_aet": "HARMONY", "bind_addr": "127.0.0.1", "port": 11112}},
			"dimse-b": {Service: "echo", Options: map[string]any{"local_aet": "HARMONY", "bind_addr": "127.0.0.1", "port": 11112}},
		},
		Pipelines: map[string]config.PipelineConfig{
			"pipeline-a": {Networks: []string{"pacs"}, Endpoints: []string{"dimse-a"}},
			"pipeline-b": {Networks: []string{"pacs"}, Endpoints: []string{"dimse-b"}},
		},
	}

	o := newTestOrchestrator(t, cfg)
	require.NoError(t, o.Build())
	assert.Len(t, o.DimseSCPs(), 1)
}

func TestRegisterSCPIsAtomicTestAndSet(t *testing.T) {
	o := newTestOrchestrator(t, &config.Config{})
	assert.True(t, o.registerSCP("HARMONY@127.0.0.1:11112#ep"))
	assert.False(t, o.registerSCP("HARMONY@127.0.0.1:11112#ep"))
	assert.True(t, o.registerSCP("HARMONY@127.0.0.1:11113#ep"))
}

func TestRunReturnsWhenContextCancelledWithNoUnits(t *testing.T) {
	o := newTestOrchestrator(t, &config.Config{})
	require.NoError(t, o.Build())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunStartsHTTPAdapterAndStopsOnCancel(t *testing.T) {
	cfg := &config.Config{
		Network: map[string]config.NetworkConfig{
			"public": {HTTP: &config.HTTPNetworkConfig{BindAddr: "127.0.0.1", Port: 0}},
		},
		Endpoints: map[string]config.EndpointConfig{
			"echo-endpoint": {Service: "echo", Options: map[string]any{"path_prefix": "/echo"}},
		},
		Pipelines: map[string]config.PipelineConfig{
			"echo-pipeline": {Networks: []string{"public"}, Endpoints: []string{"echo-endpoint"}},
		},
	}
	o := newTestOrchestrator(t, cfg)
	require.NoError(t, o.Build())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
