package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurabx/harmony/internal/config"
	"github.com/aurabx/harmony/internal/envelope"
	"github.com/aurabx/harmony/internal/middleware"
	middlewarebuiltin "github.com/aurabx/harmony/internal/middleware/builtin"
	"github.com/aurabx/harmony/internal/protocolctx"
	"github.com/aurabx/harmony/internal/services"
)

type stubService struct {
	name           string
	incomingCalled bool
	outgoingStatus int
}

func (s *stubService) Name() string                                     { return s.name }
func (s *stubService) Validate(map[string]any) error                    { return nil }
func (s *stubService) BuildRouter(map[string]any) []services.Route      { return nil }
func (s *stubService) BuildProtocolEnvelope(*protocolctx.ProtocolCtx, map[string]any) (*envelope.RequestEnvelope, error) {
	return envelope.New(), nil
}
func (s *stubService) EndpointIncomingRequest(env *envelope.RequestEnvelope, _ map[string]any) (*envelope.RequestEnvelope, error) {
	s.incomingCalled = true
	return env, nil
}
func (s *stubService) BackendOutgoingRequest(env *envelope.RequestEnvelope, _ map[string]any) (*envelope.ResponseEnvelope, error) {
	return envelope.NewResponse(env.ID, 200), nil
}
func (s *stubService) EndpointOutgoingProtocol(resp *envelope.ResponseEnvelope, _ *protocolctx.ProtocolCtx, _ map[string]any) error {
	s.outgoingStatus = resp.ResponseDetails.Status
	return nil
}
func (s *stubService) EndpointOutgoingResponse(resp *envelope.ResponseEnvelope, _ map[string]any) ([]byte, map[string]string, error) {
	return resp.OriginalData, resp.ResponseDetails.Headers, nil
}

func newTestExecutor(t *testing.T) (*Executor, *stubService, *config.Config) {
	t.Helper()
	epSvc := &stubService{name: "http"}
	reg := services.NewRegistry()
	reg.Register("http", func() (services.Service, error) { return epSvc, nil })

	cfg := &config.Config{
		Endpoints: map[string]config.EndpointConfig{
			"in": {Service: "http"},
		},
		Backends: map[string]config.BackendConfig{
			"out": {Service: "http"},
		},
	}
	return NewExecutor(reg, cfg, nil), epSvc, cfg
}

func TestExecutePlumbsThroughAllStages(t *testing.T) {
	exec, epSvc, _ := newTestExecutor(t)
	types := middleware.NewTypeRegistry()
	p := &ResolvedPipeline{Name: "p1", Endpoints: []string{"in"}, Backends: []string{"out"}, Chain: mustChain(t, types, nil)}

	req := envelope.New()
	resp, err := exec.Execute(context.Background(), p, protocolctx.New(protocolctx.Http, nil), req)
	require.NoError(t, err)
	assert.True(t, epSvc.incomingCalled)
	assert.Equal(t, 200, resp.ResponseDetails.Status)
	assert.Equal(t, 200, epSvc.outgoingStatus)
}

func TestExecuteSkipBackendsSynthesizes200(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	types := middleware.NewTypeRegistry()
	p := &ResolvedPipeline{Name: "p1", Endpoints: []string{"in"}, Backends: []string{"out"}, Chain: mustChain(t, types, nil)}

	req := envelope.New()
	req.RequestDetails.Metadata["skip_backends"] = "true"
	resp, err := exec.Execute(context.Background(), p, protocolctx.New(protocolctx.Http, nil), req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.ResponseDetails.Status)
}

func TestExecuteUnknownBackendSynthesizes502(t *testing.T) {
	exec, _, cfg := newTestExecutor(t)
	delete(cfg.Backends, "out")
	types := middleware.NewTypeRegistry()
	p := &ResolvedPipeline{Name: "p1", Endpoints: []string{"in"}, Backends: []string{"out"}, Chain: mustChain(t, types, nil)}

	req := envelope.New()
	resp, err := exec.Execute(context.Background(), p, protocolctx.New(protocolctx.Http, nil), req)
	require.NoError(t, err)
	assert.Equal(t, 502, resp.ResponseDetails.Status)
}

func TestExecuteUnknownEndpointIsConfigError(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	types := middleware.NewTypeRegistry()
	p := &ResolvedPipeline{Name: "p1", Endpoints: []string{"missing"}, Backends: nil, Chain: mustChain(t, types, nil)}

	_, err := exec.Execute(context.Background(), p, protocolctx.New(protocolctx.Http, nil), envelope.New())
	assert.Error(t, err)
}

// TestExecutePathFilterRejectionSurfacesAsEndToEnd404 covers spec scenario
// S3: a path_filter rejection sets skip_backends and writes a 404 skeleton
// onto the request's normalized_data.response; that skeleton must still be
// the response status the caller observes, not the backend stage's default
// 200 (runBackendStage/applyRequestNormalizedResponse).
func TestExecutePathFilterRejectionSurfacesAsEndToEnd404(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	types := middleware.NewTypeRegistry()
	middlewarebuiltin.Register(types)

	instances := map[string]middleware.InstanceConfig{
		"path_filter": {
			Name:         "path_filter",
			InstanceType: "path_filter",
			InstanceOpts: map[string]any{"rules": []any{"/allowed"}},
			HasInstance:  true,
		},
	}
	chain, err := middleware.BuildChain([]string{"path_filter"}, instances, types)
	require.NoError(t, err)
	p := &ResolvedPipeline{Name: "p1", Endpoints: []string{"in"}, Backends: []string{"out"}, Chain: chain}

	req := envelope.New()
	req.RequestDetails.Metadata["path"] = "/not-allowed"
	resp, err := exec.Execute(context.Background(), p, protocolctx.New(protocolctx.Http, nil), req)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.ResponseDetails.Status)
}

func mustChain(t *testing.T, types *middleware.TypeRegistry, names []string) *middleware.Chain {
	t.Helper()
	chain, err := middleware.BuildChain(names, nil, types)
	require.NoError(t, err)
	return chain
}
