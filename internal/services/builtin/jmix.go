package builtin

import (
	"net/http"

	"github.com/aurabx/harmony/internal/envelope"
	"github.com/aurabx/harmony/internal/services"
)

// jmixService is the HTTP endpoint surface over JMIX package delivery,
// grounded on original_source's JmixEndpoint (types/jmix.rs). The actual
// packaging work lives in internal/jmix and is driven by the jmix_builder
// middleware on the right-hand side of a pipeline; this service only
// stamps the envelope on the way in and renders whatever response shape
// that middleware (or a backend) set in normalized_data.response.
type jmixService struct{ base }

func newJmixService() (services.Service, error) {
	return &jmixService{base{name: "jmix"}}, nil
}

func (s *jmixService) Validate(options map[string]any) error {
	return requirePathPrefix("jmix", options)
}

func (s *jmixService) BuildRouter(options map[string]any) []services.Route {
	prefix := pathPrefixOr(options, "/jmix")
	return []services.Route{{
		Path:        prefix + "/*",
		Methods:     []string{http.MethodPost, http.MethodGet},
		Description: "Handles JMIX GET/POST requests",
	}}
}

func (s *jmixService) EndpointIncomingRequest(env *envelope.RequestEnvelope, _ map[string]any) (*envelope.RequestEnvelope, error) {
	env.NormalizedData = map[string]any{
		"message":       "Jmix endpoint processed the request",
		"path":          env.RequestDetails.Metadata["path"],
		"original_data": string(env.OriginalData),
	}
	return env, nil
}

func (s *jmixService) EndpointOutgoingResponse(resp *envelope.ResponseEnvelope, _ map[string]any) ([]byte, map[string]string, error) {
	applyNormalizedResponse(resp)
	return respondJSON(resp)
}
