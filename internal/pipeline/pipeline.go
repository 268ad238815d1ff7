// Package pipeline implements the PipelineExecutor: the fixed six-stage
// orchestrator spec §4.4 describes, generalized from the teacher's
// coreengine/runtime/runtime.go PipelineRunner.Execute (span-wrapped stage
// dispatch, metrics recording via observability.RecordPipelineExecution)
// and grounded stage-by-stage on
// original_source/src/pipeline/executor.rs's PipelineExecutor::execute.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aurabx/harmony/internal/config"
	"github.com/aurabx/harmony/internal/envelope"
	"github.com/aurabx/harmony/internal/herrors"
	"github.com/aurabx/harmony/internal/middleware"
	"github.com/aurabx/harmony/internal/observability"
	"github.com/aurabx/harmony/internal/protocolctx"
	"github.com/aurabx/harmony/internal/services"
)

var tracer = otel.Tracer("harmony/pipeline")

// ResolvedPipeline is a config.PipelineConfig with its middleware chain
// pre-built (spec §4.3: construction happens once, ahead of request time).
type ResolvedPipeline struct {
	Name      string
	Endpoints []string // config.Endpoints keys, first is active
	Backends  []string // config.Backends keys, first is used
	Chain     *middleware.Chain
}

// Resolve builds a ResolvedPipeline from a config.PipelineConfig, resolving
// its declared middleware names (with any matching middleware.<name>
// instance blocks) against the built-in type registry.
func Resolve(name string, p config.PipelineConfig, cfg *config.Config, types *middleware.TypeRegistry) (*ResolvedPipeline, error) {
	instances := make(map[string]middleware.InstanceConfig, len(cfg.Middleware))
	for mwName, inst := range cfg.Middleware {
		instances[mwName] = middleware.InstanceConfig{
			Name:         mwName,
			InstanceType: inst.Type,
			InstanceOpts: inst.Options,
			HasInstance:  true,
		}
	}
	chain, err := middleware.BuildChain(p.Middleware, instances, types)
	if err != nil {
		return nil, err
	}
	return &ResolvedPipeline{Name: name, Endpoints: p.Endpoints, Backends: p.Backends, Chain: chain}, nil
}

// Executor runs Envelopes through the six stages.
type Executor struct {
	Services *services.Registry
	Config   *config.Config
	Logger   observability.Logger
}

// NewExecutor constructs an Executor.
func NewExecutor(reg *services.Registry, cfg *config.Config, logger observability.Logger) *Executor {
	return &Executor{Services: reg, Config: cfg, Logger: logger}
}

func endpointLookup(cfg *config.Config, name string) (config.EndpointConfig, error) {
	ep, ok := cfg.Endpoints[name]
	if !ok {
		return config.EndpointConfig{}, herrors.WrapConfigError(
			fmt.Sprintf("endpoint %q not found in configuration", name), fmt.Errorf("unknown endpoint"))
	}
	return ep, nil
}

// Execute runs req through the six stages described in spec §4.4:
//  1. endpoint.incoming_request
//  2. left middleware chain
//  3. backend stage (skip_backends / missing-backend-502 / invoke)
//  4. right middleware chain
//  5. endpoint.outgoing_protocol
//  6. return
func (e *Executor) Execute(ctx context.Context, p *ResolvedPipeline, ctxProto *protocolctx.ProtocolCtx, req *envelope.RequestEnvelope) (*envelope.ResponseEnvelope, error) {
	start := time.Now()
	spanCtx, span := tracer.Start(ctx, "pipeline.execute", attribute.String("pipeline", p.Name))
	defer span.End()
	_ = spanCtx

	resp, err := e.execute(p, ctxProto, req)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.RecordPipelineExecution(p.Name, status, time.Since(start).Milliseconds())
	return resp, err
}

func (e *Executor) execute(p *ResolvedPipeline, ctxProto *protocolctx.ProtocolCtx, req *envelope.RequestEnvelope) (*envelope.ResponseEnvelope, error) {
	if len(p.Endpoints) == 0 {
		return nil, herrors.NewConfigError("pipeline has no endpoints")
	}
	activeEndpointName := p.Endpoints[0]
	epCfg, err := endpointLookup(e.Config, activeEndpointName)
	if err != nil {
		return nil, err
	}
	epSvc, err := e.Services.Resolve(epCfg.Service)
	if err != nil {
		return nil, herrors.WrapConfigError(fmt.Sprintf("endpoint %q service %q", activeEndpointName, epCfg.Service), err)
	}

	// Stage 1: endpoint.incoming_request
	req, err = epSvc.EndpointIncomingRequest(req, epCfg.Options)
	if err != nil {
		return nil, herrors.NewServiceError(epCfg.Service, err)
	}

	// Stage 2: left middleware chain (JSON operand form, preserve bytes).
	req, err = e.runLeftMiddleware(p, req)
	if err != nil {
		return nil, err
	}

	// Stage 3: backend stage.
	resp, err := e.runBackendStage(p, req)
	if err != nil {
		return nil, err
	}

	// Stage 4: right middleware chain.
	resp, err = e.runRightMiddleware(p, resp)
	if err != nil {
		return nil, err
	}

	// Stage 5: endpoint.outgoing_protocol.
	if err := epSvc.EndpointOutgoingProtocol(resp, ctxProto, epCfg.Options); err != nil {
		return nil, herrors.NewServiceError(epCfg.Service, err)
	}

	// Stage 6: return.
	return resp, nil
}

// runLeftMiddleware converts req to its JSON operand form, traverses the
// chain forward, then reconstructs the bytes-flavored envelope while
// preserving the ORIGINAL wire bytes rather than the JSON round-trip of
// them — original_source/src/pipeline/executor.rs's exact behavior, which
// matters for binary (e.g. DICOM) payloads that are not valid JSON text.
func (e *Executor) runLeftMiddleware(p *ResolvedPipeline, req *envelope.RequestEnvelope) (*envelope.RequestEnvelope, error) {
	if p.Chain.Len() == 0 {
		return req, nil
	}
	jsonForm, err := req.ToJSON()
	if err != nil {
		return nil, herrors.NewMiddlewareError("json-encode", err)
	}
	jsonForm, err = p.Chain.Left(jsonForm)
	if err != nil {
		return nil, err
	}
	return envelope.FromJSON(jsonForm, req.OriginalData)
}

// runRightMiddleware is runLeftMiddleware's response-side mirror.
func (e *Executor) runRightMiddleware(p *ResolvedPipeline, resp *envelope.ResponseEnvelope) (*envelope.ResponseEnvelope, error) {
	if p.Chain.Len() == 0 {
		return resp, nil
	}
	jsonForm, err := resp.ToJSON()
	if err != nil {
		return nil, herrors.NewMiddlewareError("json-encode", err)
	}
	jsonForm, err = p.Chain.Right(jsonForm)
	if err != nil {
		return nil, err
	}
	return envelope.ResponseFromJSON(jsonForm, resp.OriginalData)
}

// runBackendStage implements spec §4.4 stage 3 exactly: skip_backends or a
// zero-backend pipeline synthesizes an empty 200, unless a left middleware
// (e.g. path_filter) already wrote its own status/body onto the request's
// normalized_data.response — that skeleton is carried onto the synthesized
// response so a middleware-driven short-circuit (spec scenario S3: 404 from
// path_filter with skip_backends) survives to the adapter instead of being
// silently overwritten by the default 200. An undeclared backend name
// synthesizes a 502 with a plain-text body; otherwise the first backend's
// BackendOutgoingRequest is invoked.
func (e *Executor) runBackendStage(p *ResolvedPipeline, req *envelope.RequestEnvelope) (*envelope.ResponseEnvelope, error) {
	if req.SkipBackends() || len(p.Backends) == 0 {
		resp := envelope.NewResponse(req.ID, 200)
		applyRequestNormalizedResponse(resp, req.NormalizedData)
		return resp, nil
	}

	backendName := p.Backends[0]
	beCfg, ok := e.Config.Backends[backendName]
	if !ok {
		resp := envelope.NewResponse(req.ID, 502)
		resp.ResponseDetails.Headers["content-type"] = "text/plain"
		resp.OriginalData = []byte("Backend not found in configuration")
		return resp, nil
	}

	beSvc, err := e.Services.Resolve(beCfg.Service)
	if err != nil {
		return nil, herrors.WrapConfigError(fmt.Sprintf("backend %q service %q", backendName, beCfg.Service), err)
	}
	resp, err := beSvc.BackendOutgoingRequest(req, beCfg.Options)
	if err != nil {
		return nil, herrors.NewBackendError(backendName, err)
	}
	return resp, nil
}

// applyRequestNormalizedResponse is runBackendStage's skip-backends
// counterpart to internal/services/builtin's applyNormalizedResponse: it
// reads the same normalized_data.response{status,headers,body,json} shape,
// but off the REQUEST envelope a left middleware (e.g. path_filter) wrote to,
// since a skip-backends short-circuit never produces a response envelope of
// its own for that helper to read from.
func applyRequestNormalizedResponse(resp *envelope.ResponseEnvelope, normalizedData any) {
	nd, _ := normalizedData.(map[string]any)
	if nd == nil {
		return
	}
	respMeta, _ := nd["response"].(map[string]any)
	if respMeta == nil {
		return
	}

	if status, ok := respMeta["status"].(float64); ok {
		resp.ResponseDetails.Status = int(status)
	}
	if headers, ok := respMeta["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				resp.ResponseDetails.Headers[k] = s
			}
		}
	}
	if body, ok := respMeta["body"].(string); ok {
		resp.OriginalData = []byte(body)
		return
	}
	if j, ok := respMeta["json"]; ok {
		if b, err := json.Marshal(j); err == nil {
			resp.OriginalData = b
			if _, has := resp.ResponseDetails.Headers["content-type"]; !has {
				resp.ResponseDetails.Headers["content-type"] = "application/json"
			}
		}
	}
}
