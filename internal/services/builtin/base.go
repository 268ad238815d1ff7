// Package builtin implements the Service kinds spec §4.2/§6 names: http,
// echo, fhir, dicomweb, jmix, dicom, mock_dicom as endpoints; http, fhir,
// mock_dicom as backends (dicom implements no backend hook). Each is grounded on its same-named file under
// original_source/src/models/services/types/, translated from axum's
// Response<Value>-returning ServiceHandler trait into Harmony's
// RequestEnvelope/ResponseEnvelope pair (spec §3).
package builtin

import (
	"encoding/json"
	"fmt"

	"github.com/aurabx/harmony/internal/envelope"
	"github.com/aurabx/harmony/internal/protocolctx"
	"github.com/aurabx/harmony/internal/services"
)

// base supplies a Service's non-essential hooks with spec-conformant
// defaults so each concrete service only overrides what it actually does,
// the same "most hooks are no-ops" shape original_source's ServiceType/
// ServiceHandler split shows per service file.
type base struct {
	name string
}

func (b base) Name() string { return b.name }

func (b base) Validate(map[string]any) error { return nil }

func (b base) BuildRouter(map[string]any) []services.Route { return nil }

// BuildProtocolEnvelope lifts a ProtocolCtx's raw payload, meta, and attrs
// into a fresh RequestEnvelope, shared by every endpoint (the adapter
// already built the ProtocolCtx; this just seeds the envelope from it).
// When attrs carries httpapi's method/uri/headers/cookies/query_params/
// cache_status shape (spec §4.1), RequestDetails is populated from it too —
// a backend like httpService.BackendOutgoingRequest reads
// RequestDetails.Method/URI/Headers back out to build its proxied request.
func (b base) BuildProtocolEnvelope(ctx *protocolctx.ProtocolCtx, _ map[string]any) (*envelope.RequestEnvelope, error) {
	env := envelope.New()
	env.OriginalData = ctx.Payload
	for k, v := range ctx.Meta {
		env.RequestDetails.Metadata[k] = v
	}
	applyProtocolAttrs(&env.RequestDetails, ctx.Attrs)
	return env, nil
}

// applyProtocolAttrs reads the http attrs shape
// ({method,uri,headers,cookies,query_params,cache_status}) into details,
// no-oping on any other protocol's attrs shape.
func applyProtocolAttrs(details *envelope.RequestDetails, attrsValue any) {
	attrs, ok := attrsValue.(map[string]any)
	if !ok {
		return
	}
	if method, ok := attrs["method"].(string); ok {
		details.Method = method
	}
	if uri, ok := attrs["uri"].(string); ok {
		details.URI = uri
	}
	if headers, ok := attrs["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				details.Headers[k] = s
			}
		}
	}
	if cookies, ok := attrs["cookies"].(map[string]any); ok {
		for k, v := range cookies {
			if s, ok := v.(string); ok {
				details.Cookies[k] = s
			}
		}
	}
	if qp, ok := attrs["query_params"].(map[string]any); ok {
		for k, v := range qp {
			if list, ok := v.([]any); ok {
				values := make([]string, 0, len(list))
				for _, item := range list {
					if s, ok := item.(string); ok {
						values = append(values, s)
					}
				}
				details.QueryParams[k] = values
			}
		}
	}
	if cacheStatus, ok := attrs["cache_status"].(string); ok {
		details.CacheStatus = cacheStatus
	}
}

func (b base) EndpointIncomingRequest(env *envelope.RequestEnvelope, _ map[string]any) (*envelope.RequestEnvelope, error) {
	return env, nil
}

func (b base) BackendOutgoingRequest(env *envelope.RequestEnvelope, _ map[string]any) (*envelope.ResponseEnvelope, error) {
	return nil, fmt.Errorf("service %q is not usable as a backend", b.name)
}

func (b base) EndpointOutgoingProtocol(_ *envelope.ResponseEnvelope, _ *protocolctx.ProtocolCtx, _ map[string]any) error {
	return nil
}

func (b base) EndpointOutgoingResponse(resp *envelope.ResponseEnvelope, _ map[string]any) ([]byte, map[string]string, error) {
	return resp.OriginalData, resp.ResponseDetails.Headers, nil
}

// requirePathPrefix implements the "non-empty path_prefix" validation every
// HTTP-facing endpoint in original_source repeats verbatim.
func requirePathPrefix(serviceName string, options map[string]any) error {
	prefix, _ := options["path_prefix"].(string)
	if prefix == "" {
		return fmt.Errorf("%s endpoint requires a non-empty 'path_prefix'", serviceName)
	}
	return nil
}

func pathPrefixOr(options map[string]any, fallback string) string {
	if prefix, ok := options["path_prefix"].(string); ok && prefix != "" {
		return prefix
	}
	return fallback
}

// applyNormalizedResponse reads a normalized_data.response object (the
// shape middlewares like dicomweb_bridge and path_filter synthesize: status/
// headers/body/json) and applies it onto resp's wire-facing fields, the Go
// equivalent of fhir.rs's transform_response reading the same shape out of
// normalized_data before building its axum Response.
func applyNormalizedResponse(resp *envelope.ResponseEnvelope) {
	nd, _ := resp.NormalizedData.(map[string]any)
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

// respondJSON renders resp.NormalizedData as the response body when no raw
// OriginalData bytes were set, mirroring every original_source
// ServiceHandler::transform_response that returns normalized_data directly
// as a JSON HTTP body.
func respondJSON(resp *envelope.ResponseEnvelope) ([]byte, map[string]string, error) {
	headers := resp.ResponseDetails.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	if len(resp.OriginalData) > 0 {
		return resp.OriginalData, headers, nil
	}
	body, err := json.Marshal(resp.NormalizedData)
	if err != nil {
		return nil, headers, err
	}
	headers["content-type"] = "application/json"
	return body, headers, nil
}
