package builtin

import (
	"net/http"

	"github.com/aurabx/harmony/internal/envelope"
	"github.com/aurabx/harmony/internal/protocolctx"
	"github.com/aurabx/harmony/internal/services"
)

// dicomwebService exposes the QIDO-RS surface grounded on original_source's
// DicomwebEndpoint (types/dicomweb.rs). WADO-RS binary retrieval (instance/
// frame bytes) is out of scope here: no pixel-data codec is grounded
// anywhere in the example pack (DESIGN.md), so only the JSON-returning QIDO
// routes are wired through to a backend; requests under the WADO-RS
// metadata/instance/frames/bulkdata paths are answered 501 directly by
// EndpointIncomingRequest, matching the teacher's own "not yet implemented"
// fallback for routes it declares but doesn't serve.
type dicomwebService struct{ base }

func newDicomwebService() (services.Service, error) {
	return &dicomwebService{base{name: "dicomweb"}}, nil
}

func (s *dicomwebService) Validate(options map[string]any) error {
	return requirePathPrefix("dicomweb", options)
}

func (s *dicomwebService) BuildRouter(options map[string]any) []services.Route {
	base := pathPrefixOr(options, "/dicomweb")
	return []services.Route{
		{Path: base + "/studies", Methods: []string{http.MethodGet, http.MethodOptions}, Description: "DICOMweb QIDO-RS: query for studies"},
		{Path: base + "/studies/*", Methods: []string{http.MethodGet, http.MethodOptions}, Description: "DICOMweb QIDO-RS/WADO-RS: study-scoped routes"},
		{Path: base + "/bulkdata/*", Methods: []string{http.MethodGet, http.MethodOptions}, Description: "DICOMweb WADO-RS: bulk data retrieval"},
	}
}

func (s *dicomwebService) EndpointIncomingRequest(env *envelope.RequestEnvelope, _ map[string]any) (*envelope.RequestEnvelope, error) {
	method := env.RequestDetails.Method
	subpath := env.RequestDetails.Metadata["path"]

	if method == http.MethodOptions {
		env.NormalizedData = map[string]any{"response": map[string]any{
			"status": float64(http.StatusOK),
			"headers": map[string]any{
				"access-control-allow-origin":  "*",
				"access-control-allow-methods": "GET, OPTIONS",
				"access-control-allow-headers": "accept, content-type",
			},
		}}
		env.RequestDetails.Metadata["skip_backends"] = "true"
		return env, nil
	}

	if isQidoPath(subpath) {
		// QIDO query: leave skip_backends unset, path_filter/dicomweb_bridge
		// middleware and the backend handle it from here.
		return env, nil
	}

	env.NormalizedData = map[string]any{"response": map[string]any{
		"status":  float64(http.StatusNotImplemented),
		"headers": map[string]any{"content-type": "application/json"},
		"json": map[string]any{
			"error":   "Not implemented",
			"message": "DICOMweb endpoint " + method + " " + subpath + " is not yet implemented",
			"path":    subpath,
			"method":  method,
		},
	}}
	env.RequestDetails.Metadata["skip_backends"] = "true"
	return env, nil
}

func isQidoPath(subpath string) bool {
	parts := splitNonEmpty(subpath)
	switch len(parts) {
	case 1:
		return parts[0] == "studies"
	case 2:
		return parts[0] == "studies"
	case 3:
		return parts[0] == "studies" && parts[2] == "series"
	case 4:
		return parts[0] == "studies" && parts[2] == "series"
	}
	return false
}

func splitNonEmpty(path string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				out = append(out, path[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func (s *dicomwebService) EndpointOutgoingProtocol(resp *envelope.ResponseEnvelope, ctx *protocolctx.ProtocolCtx, _ map[string]any) error {
	resp.ResponseDetails.Metadata["service"] = "dicomweb"
	if ctx != nil {
		resp.ResponseDetails.Metadata["protocol"] = ctx.Protocol
	}
	if _, has := resp.ResponseDetails.Headers["content-type"]; !has {
		resp.ResponseDetails.Headers["content-type"] = "application/dicom+json"
	}
	applyNormalizedResponse(resp)
	return nil
}

func (s *dicomwebService) EndpointOutgoingResponse(resp *envelope.ResponseEnvelope, _ map[string]any) ([]byte, map[string]string, error) {
	return respondJSON(resp)
}
