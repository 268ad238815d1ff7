package mgmt

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/aurabx/harmony/internal/config"
	"github.com/aurabx/harmony/internal/middleware"
	"github.com/aurabx/harmony/internal/orchestrator"
	"github.com/aurabx/harmony/internal/pipeline"
	"github.com/aurabx/harmony/internal/services"
	"github.com/aurabx/harmony/internal/services/builtin"
)

func testConfig() *config.Config {
	return &config.Config{
		Proxy: config.ProxyConfig{ID: "harmony-test", StoreDir: "/tmp/harmony"},
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
}

func testOrchestrator(t *testing.T, cfg *config.Config) *orchestrator.Orchestrator {
	t.Helper()
	reg := services.NewRegistry()
	builtin.Register(reg)
	types := middleware.NewTypeRegistry()
	exec := pipeline.NewExecutor(reg, cfg, nil)
	o := orchestrator.New(cfg, reg, types, exec, nil)
	require.NoError(t, o.Build())
	return o
}

func TestServiceInfo(t *testing.T) {
	cfg := testConfig()
	svc := New(cfg, testOrchestrator(t, cfg))

	info := svc.Info()
	assert.Equal(t, "harmony-test", info.ProxyID)
	assert.Equal(t, []string{"public"}, info.Networks)
	assert.Equal(t, 1, info.PipelineCount)
	assert.Equal(t, 1, info.EndpointCount)
}

func TestServicePipelines(t *testing.T) {
	cfg := testConfig()
	svc := New(cfg, testOrchestrator(t, cfg))

	pipelines := svc.Pipelines()
	require.Len(t, pipelines, 1)
	assert.Equal(t, "echo-pipeline", pipelines[0].Name)
	assert.Equal(t, []string{"echo-endpoint"}, pipelines[0].Endpoints)
}

func TestServiceRoutes(t *testing.T) {
	cfg := testConfig()
	svc := New(cfg, testOrchestrator(t, cfg))

	routes := svc.Routes()
	require.Len(t, routes, 1)
	assert.Equal(t, "public", routes[0].Network)
	assert.Equal(t, "echo-pipeline", routes[0].Pipeline)
	assert.Equal(t, "/echo/*", routes[0].Path)
}

func TestMountServesJSONListings(t *testing.T) {
	cfg := testConfig()
	svc := New(cfg, testOrchestrator(t, cfg))

	r := chi.NewRouter()
	Mount(r, "/mgmt", svc)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/mgmt/info")
	require.NoError(t, err)
	defer resp.Body.Close()

	var info Info
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "harmony-test", info.ProxyID)
}

func TestGRPCServerServesListings(t *testing.T) {
	cfg := testConfig()
	svc := New(cfg, testOrchestrator(t, cfg))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	grpcServer := NewGRPCServer(svc)
	go func() { _ = grpcServer.Serve(lis) }()
	defer grpcServer.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	var out structpb.Struct
	err = conn.Invoke(context.Background(), "/"+serviceName+"/GetInfo", &structpb.Struct{}, &out)
	require.NoError(t, err)
	assert.Equal(t, "harmony-test", out.Fields["proxy_id"].GetStringValue())
}
