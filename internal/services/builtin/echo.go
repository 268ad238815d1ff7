package builtin

import (
	"net/http"

	"github.com/aurabx/harmony/internal/envelope"
	"github.com/aurabx/harmony/internal/services"
)

// echoService is an endpoint-only diagnostic that reflects the request back
// as JSON, grounded on original_source's EchoEndpoint (types/echo.rs).
type echoService struct{ base }

func newEchoService() (services.Service, error) {
	return &echoService{base{name: "echo"}}, nil
}

func (s *echoService) Validate(options map[string]any) error {
	return requirePathPrefix("echo", options)
}

func (s *echoService) BuildRouter(options map[string]any) []services.Route {
	prefix := pathPrefixOr(options, "/echo")
	return []services.Route{{
		Path:        prefix + "/*",
		Methods:     []string{http.MethodPost},
		Description: "Handles Echo POST requests",
	}}
}

func (s *echoService) EndpointIncomingRequest(env *envelope.RequestEnvelope, _ map[string]any) (*envelope.RequestEnvelope, error) {
	env.NormalizedData = map[string]any{
		"message":       "Echo endpoint received the request",
		"path":          env.RequestDetails.Metadata["path"],
		"full_path":     env.RequestDetails.Metadata["full_path"],
		"headers":       env.RequestDetails.Headers,
		"original_data": string(env.OriginalData),
	}
	return env, nil
}

func (s *echoService) EndpointOutgoingResponse(resp *envelope.ResponseEnvelope, _ map[string]any) ([]byte, map[string]string, error) {
	return respondJSON(resp)
}
