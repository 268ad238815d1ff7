package builtin

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aurabx/harmony/internal/envelope"
	"github.com/aurabx/harmony/internal/services"
)

// httpService is registered once under "http" and plays either role a
// pipeline assigns it (spec §3: "services share one interface, distinguished
// positionally"): as an endpoint it's a generic passthrough accepting any
// method under its configured path_prefix (original_source's HttpEndpoint,
// types/http.rs); as a backend it proxies the envelope to a configured
// upstream URL over real HTTP.
type httpService struct{ base }

func newHTTPService() (services.Service, error) {
	return &httpService{base{name: "http"}}, nil
}

func (s *httpService) Validate(options map[string]any) error {
	if _, isBackend := options["base_url"]; isBackend {
		return nil
	}
	return requirePathPrefix("http", options)
}

func (s *httpService) BuildRouter(options map[string]any) []services.Route {
	prefix := pathPrefixOr(options, "/")
	return []services.Route{{
		Path:        prefix + "/*",
		Methods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		Description: "Handles GET/POST/PUT/DELETE for HttpEndpoint",
	}}
}

func (s *httpService) EndpointIncomingRequest(env *envelope.RequestEnvelope, _ map[string]any) (*envelope.RequestEnvelope, error) {
	env.NormalizedData = map[string]any{
		"message":       "BasicEndpoint processed the request",
		"original_data": string(env.OriginalData),
	}
	return env, nil
}

func (s *httpService) EndpointOutgoingResponse(resp *envelope.ResponseEnvelope, _ map[string]any) ([]byte, map[string]string, error) {
	return respondJSON(resp)
}

// BackendOutgoingRequest proxies env to options["base_url"]+env.RequestDetails.URI
// over real HTTP with a bounded timeout, the teacher's guard against an
// unresponsive downstream hanging a pipeline execution indefinitely.
func (s *httpService) BackendOutgoingRequest(env *envelope.RequestEnvelope, options map[string]any) (*envelope.ResponseEnvelope, error) {
	baseURL, _ := options["base_url"].(string)
	if baseURL == "" {
		return nil, fmt.Errorf("http backend requires a 'base_url' option")
	}
	method := env.RequestDetails.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequest(method, baseURL+env.RequestDetails.URI, bytes.NewReader(env.OriginalData))
	if err != nil {
		return nil, err
	}
	for k, v := range env.RequestDetails.Headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	httpResp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	resp := envelope.NewResponse(env.ID, httpResp.StatusCode)
	resp.OriginalData = body
	for k := range httpResp.Header {
		resp.ResponseDetails.Headers[k] = httpResp.Header.Get(k)
	}
	return resp, nil
}
