package dimseadapter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurabx/harmony/internal/config"
	"github.com/aurabx/harmony/internal/dimse"
	"github.com/aurabx/harmony/internal/envelope"
	"github.com/aurabx/harmony/internal/middleware"
	"github.com/aurabx/harmony/internal/pipeline"
	"github.com/aurabx/harmony/internal/protocolctx"
	"github.com/aurabx/harmony/internal/services"
)

// echoService is a minimal Service that echoes the identifier it was sent
// back as a single "matches" entry, so tests can exercise the DIMSE ->
// pipeline -> DIMSE round trip without a real backend.
type echoService struct{}

func (echoService) Name() string                                  { return "echo" }
func (echoService) Validate(map[string]any) error                 { return nil }
func (echoService) BuildRouter(map[string]any) []services.Route   { return nil }
func (echoService) BuildProtocolEnvelope(ctx *protocolctx.ProtocolCtx, _ map[string]any) (*envelope.RequestEnvelope, error) {
	req := envelope.New()
	req.OriginalData = ctx.Payload
	return req, nil
}
func (echoService) EndpointIncomingRequest(env *envelope.RequestEnvelope, _ map[string]any) (*envelope.RequestEnvelope, error) {
	return env, nil
}
func (echoService) BackendOutgoingRequest(env *envelope.RequestEnvelope, _ map[string]any) (*envelope.ResponseEnvelope, error) {
	resp := envelope.NewResponse(env.ID, 200)
	var identifier map[string]any
	if len(env.OriginalData) > 0 {
		_ = json.Unmarshal(env.OriginalData, &identifier)
	}
	resp.NormalizedData = map[string]any{"matches": []map[string]any{identifier}}
	return resp, nil
}
func (echoService) EndpointOutgoingProtocol(*envelope.ResponseEnvelope, *protocolctx.ProtocolCtx, map[string]any) error {
	return nil
}
func (echoService) EndpointOutgoingResponse(*envelope.ResponseEnvelope, map[string]any) ([]byte, map[string]string, error) {
	return nil, nil, nil
}

func newTestProvider(t *testing.T) (*PipelineQueryProvider, *config.Config) {
	t.Helper()
	reg := services.NewRegistry()
	reg.Register("echo", func() (services.Service, error) { return echoService{}, nil })

	cfg := &config.Config{
		Endpoints: map[string]config.EndpointConfig{
			"dimse-endpoint": {Service: "echo"},
		},
		Backends: map[string]config.BackendConfig{
			"dimse-backend": {Service: "echo"},
		},
		Pipelines: map[string]config.PipelineConfig{
			"dimse-pipeline": {Endpoints: []string{"dimse-endpoint"}, Backends: []string{"dimse-backend"}},
		},
	}

	resolved, err := pipeline.Resolve("dimse-pipeline", cfg.Pipelines["dimse-pipeline"], cfg, middleware.NewTypeRegistry())
	require.NoError(t, err)

	exec := pipeline.NewExecutor(reg, cfg, nil)
	return NewPipelineQueryProvider(exec, resolved, "dimse-endpoint", nil), cfg
}

func TestPipelineQueryProviderFindRoundTrips(t *testing.T) {
	provider, _ := newTestProvider(t)

	results, err := provider.Find(t.Context(), dimse.LevelStudy, map[string]string{"00100010": "DOE^JOHN"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].IsFile())
}

func TestPipelineQueryProviderStoreWritesFile(t *testing.T) {
	provider, _ := newTestProvider(t)
	dir := t.TempDir()
	provider.StoreDir = dir

	meta := dimse.DatasetMetadata{SOPInstanceUID: "1.2.3.4"}
	ds := dimse.NewMemoryDatasetStream([]byte("dicom-bytes"), meta)

	err := provider.Store(t.Context(), ds)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "1.2.3.4.dcm"))
	require.NoError(t, err)
	assert.Equal(t, "dicom-bytes", string(data))
}

func TestPipelineQueryProviderStoreRejectsObjectDataset(t *testing.T) {
	provider, _ := newTestProvider(t)
	provider.StoreDir = t.TempDir()

	ds := dimse.NewObjectDatasetStream(struct{}{}, dimse.DatasetMetadata{SOPInstanceUID: "1.2.3.4"})

	err := provider.Store(t.Context(), ds)
	assert.Error(t, err)
}

func TestSetCurrentStoreDirAffectsDefault(t *testing.T) {
	dir := t.TempDir()
	SetCurrentStoreDir(dir)
	defer SetCurrentStoreDir(dimse.DefaultStoreDir)

	assert.Equal(t, dir, getCurrentStoreDir())
}
