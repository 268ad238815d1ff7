package dimseadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/aurabx/harmony/internal/dicomcodec"
	"github.com/aurabx/harmony/internal/dimse"
	"github.com/aurabx/harmony/internal/envelope"
	"github.com/aurabx/harmony/internal/observability"
	"github.com/aurabx/harmony/internal/pipeline"
	"github.com/aurabx/harmony/internal/protocolctx"
)

var (
	storeDirMu      sync.Mutex
	currentStoreDir = dimse.DefaultStoreDir
)

// SetCurrentStoreDir sets the process-wide default directory PipelineQueryProvider
// writes C-STORE datasets to when a provider instance doesn't override it,
// generalizing query_provider.rs's CURRENT_STORE_DIR Lazy<Mutex<...>> global.
func SetCurrentStoreDir(dir string) {
	storeDirMu.Lock()
	defer storeDirMu.Unlock()
	currentStoreDir = dir
}

func getCurrentStoreDir() string {
	storeDirMu.Lock()
	defer storeDirMu.Unlock()
	return currentStoreDir
}

// PipelineQueryProvider implements dimse.QueryProvider by running DIMSE
// operations through a resolved pipeline, grounded on
// src/adapters/dimse/query_provider.rs's PipelineQueryProvider and
// src/integrations/dimse/pipeline_query_provider.rs.
type PipelineQueryProvider struct {
	Executor *pipeline.Executor
	Pipeline *pipeline.ResolvedPipeline
	Endpoint string
	StoreDir string
	Logger   observability.Logger
}

// NewPipelineQueryProvider constructs a PipelineQueryProvider bound to an
// already-resolved pipeline.
func NewPipelineQueryProvider(exec *pipeline.Executor, resolved *pipeline.ResolvedPipeline, endpoint string, logger observability.Logger) *PipelineQueryProvider {
	return &PipelineQueryProvider{Executor: exec, Pipeline: resolved, Endpoint: endpoint, Logger: logger}
}

func (p *PipelineQueryProvider) storeDir() string {
	if p.StoreDir != "" {
		return p.StoreDir
	}
	return getCurrentStoreDir()
}

// run builds a DIMSE-origin RequestEnvelope from a DICOM-JSON identifier
// payload and drives it through the pipeline executor, mirroring
// query_provider.rs's PipelineQueryProvider::run.
func (p *PipelineQueryProvider) run(ctx context.Context, op string, identifier map[string]any, meta map[string]string) (*envelope.ResponseEnvelope, error) {
	payload, err := json.Marshal(identifier)
	if err != nil {
		return nil, fmt.Errorf("dimseadapter: encode identifier: %w", err)
	}

	req := envelope.New()
	req.RequestDetails.Method = op
	req.RequestDetails.URI = p.Endpoint
	req.RequestDetails.Metadata = meta
	req.OriginalData = payload

	ctxProto := protocolctx.New(protocolctx.Dimse, payload)
	ctxProto.Meta = meta

	return p.Executor.Execute(ctx, p.Pipeline, ctxProto, req)
}

// matchesFromResponse extracts a "matches" array of DICOM-JSON identifier
// objects from a pipeline response's NormalizedData, tolerating both a
// freshly-built []map[string]any and the []any-of-map[string]any shape a
// JSON round-trip through ResponseFromJSON produces.
func matchesFromResponse(resp *envelope.ResponseEnvelope) []map[string]any {
	if resp == nil || resp.NormalizedData == nil {
		return nil
	}
	root, ok := resp.NormalizedData.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := root["matches"]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

// tagString reads a single-valued DICOM-JSON string element (PN alphabetic
// or any scalar Value[0]) for one of the well-known tags used to populate
// DatasetMetadata.
func tagString(identifier map[string]any, tag string) string {
	entry, ok := identifier[tag].(map[string]any)
	if !ok {
		return ""
	}
	values, ok := entry["Value"].([]any)
	if !ok || len(values) == 0 {
		return ""
	}
	switch v := values[0].(type) {
	case string:
		return v
	case map[string]any:
		if alpha, ok := v["Alphabetic"].(string); ok {
			return alpha
		}
	}
	return ""
}

func datasetFromIdentifier(identifier map[string]any) *dimse.DatasetStream {
	meta := dimse.DatasetMetadata{
		StudyInstanceUID:  tagString(identifier, "0020000D"),
		SeriesInstanceUID: tagString(identifier, "0020000E"),
		SOPInstanceUID:    tagString(identifier, "00080018"),
		SOPClassUID:       tagString(identifier, "00080016"),
	}
	body, err := json.Marshal(identifier)
	if err != nil {
		body = nil
	}
	return dimse.NewMemoryDatasetStream(body, meta)
}

// Find runs a C-FIND identifier through the pipeline and converts matches
// back into DatasetStreams, going beyond query_provider.rs's own
// acknowledged TODO stub (it returns Ok(vec![]) unconditionally).
func (p *PipelineQueryProvider) Find(ctx context.Context, level dimse.QueryLevel, params map[string]string, maxResults int) ([]*dimse.DatasetStream, error) {
	identifier := BuildIdentifierJSON(params)
	meta := matchMetaStrings(BuildQueryMetadata(params))
	meta["query_level"] = level.String()

	resp, err := p.run(ctx, "C-FIND", identifier, meta)
	if err != nil {
		return nil, err
	}

	matches := matchesFromResponse(resp)
	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	out := make([]*dimse.DatasetStream, 0, len(matches))
	for _, m := range matches {
		out = append(out, datasetFromIdentifier(m))
	}
	return out, nil
}

// Locate runs a C-MOVE identifier through the pipeline in the same shape
// as Find, since C-MOVE resolution and C-FIND resolution share the same
// identifier matching semantics (spec §3.2).
func (p *PipelineQueryProvider) Locate(ctx context.Context, level dimse.QueryLevel, params map[string]string) ([]*dimse.DatasetStream, error) {
	return p.Find(ctx, level, params, 0)
}

// Store writes the dataset to the current store directory, then fires a
// best-effort pipeline event for observability, discarding its result
// exactly as query_provider.rs's `let _ = self.run(...)` does.
func (p *PipelineQueryProvider) Store(ctx context.Context, dataset *dimse.DatasetStream) error {
	if dataset == nil {
		return fmt.Errorf("dimseadapter: nil dataset")
	}

	dir := p.storeDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("dimseadapter: create store dir: %w", err)
	}

	sopInstanceUID := dataset.Meta.SOPInstanceUID
	if sopInstanceUID == "" {
		// The caller didn't pre-populate identifying tags (e.g. a raw wire
		// C-STORE payload); fall back to the dicomcodec parsing boundary
		// before giving up and naming the file by a random UUID.
		if meta, err := dicomcodec.MetadataFromStream(dataset); err == nil {
			sopInstanceUID = meta.SOPInstanceUID
		}
	}

	name := sopInstanceUID
	if name == "" {
		name = uuid.NewString()
	}
	target := filepath.Join(dir, name+".dcm")

	if err := writeDataset(dataset, target); err != nil {
		return err
	}

	identifier := map[string]any{
		"00080018": map[string]any{"vr": "UI", "Value": []any{sopInstanceUID}},
	}
	meta := map[string]string{"query_level": "IMAGE"}
	if resp, err := p.run(ctx, "C-STORE", identifier, meta); err != nil {
		if p.Logger != nil {
			p.Logger.Warn("dimseadapter: store notification pipeline run failed", "path", target, "error", err.Error())
		}
	} else if resp != nil && p.Logger != nil {
		p.Logger.Debug("dimseadapter: store notification delivered", "path", target)
	}

	return nil
}

func writeDataset(dataset *dimse.DatasetStream, target string) error {
	if dataset.IsFile() {
		data, err := os.ReadFile(dataset.Path())
		if err != nil {
			return fmt.Errorf("dimseadapter: read source dataset: %w", err)
		}
		return os.WriteFile(target, data, 0o644)
	}
	if dataset.Object() != nil {
		return fmt.Errorf("dimseadapter: cannot store an Object-variant dataset")
	}
	return os.WriteFile(target, dataset.Bytes(), 0o644)
}

func matchMetaStrings(meta map[string]QueryMetaEntry) map[string]string {
	out := make(map[string]string, len(meta))
	for tag, entry := range meta {
		out[tag] = string(entry.MatchType)
	}
	return out
}

var _ dimse.QueryProvider = (*PipelineQueryProvider)(nil)
