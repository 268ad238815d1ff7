package builtin

import (
	"net/http"

	"github.com/aurabx/harmony/internal/envelope"
	"github.com/aurabx/harmony/internal/protocolctx"
	"github.com/aurabx/harmony/internal/services"
)

// fhirService is grounded on original_source's FhirEndpoint (types/fhir.rs):
// as an endpoint it tags the envelope with its subpath, and on the way out
// reads a normalized_data.response object the middleware chain may have
// synthesized (e.g. dicomweb_bridge, path_filter) to decide status/headers/
// body rather than always answering 200.
type fhirService struct{ base }

func newFhirService() (services.Service, error) {
	return &fhirService{base{name: "fhir"}}, nil
}

func (s *fhirService) Validate(options map[string]any) error {
	return requirePathPrefix("fhir", options)
}

func (s *fhirService) BuildRouter(options map[string]any) []services.Route {
	prefix := pathPrefixOr(options, "/fhir")
	return []services.Route{{
		Path:        prefix + "/*",
		Methods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		Description: "Handles FHIR GET/POST/PUT/DELETE requests",
	}}
}

func (s *fhirService) EndpointIncomingRequest(env *envelope.RequestEnvelope, _ map[string]any) (*envelope.RequestEnvelope, error) {
	env.NormalizedData = map[string]any{
		"message":       "FHIR endpoint received the request",
		"path":          env.RequestDetails.Metadata["path"],
		"full_path":     env.RequestDetails.Metadata["full_path"],
		"headers":       env.RequestDetails.Headers,
		"original_data": string(env.OriginalData),
	}
	return env, nil
}

func (s *fhirService) EndpointOutgoingProtocol(resp *envelope.ResponseEnvelope, _ *protocolctx.ProtocolCtx, _ map[string]any) error {
	applyNormalizedResponse(resp)
	return nil
}

func (s *fhirService) EndpointOutgoingResponse(resp *envelope.ResponseEnvelope, _ map[string]any) ([]byte, map[string]string, error) {
	return respondJSON(resp)
}

// BackendOutgoingRequest proxies to a FHIR server the same way the http
// backend does; FHIR transport is plain HTTP, the only difference is the
// service's validation/routing contract on the endpoint side.
func (s *fhirService) BackendOutgoingRequest(env *envelope.RequestEnvelope, options map[string]any) (*envelope.ResponseEnvelope, error) {
	httpSvc := &httpService{base{name: "fhir"}}
	return httpSvc.BackendOutgoingRequest(env, options)
}
