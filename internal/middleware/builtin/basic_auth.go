package builtin

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aurabx/harmony/internal/herrors"
)

// basicAuthMiddleware validates an HTTP Basic Authorization header against a
// configured username/password pair, grounded on original_source's
// AuthSidecarMiddleware (auth.rs). A missing or malformed header, or a
// mismatched credential, surfaces as an auth failure (herrors.MiddlewareError
// with Auth=true) rather than a generic error, per spec §7.
type basicAuthMiddleware struct {
	username string
	password string
}

func newBasicAuth(options map[string]any) (*basicAuthMiddleware, error) {
	username, _ := options["username"].(string)
	password, _ := options["password"].(string)
	return &basicAuthMiddleware{username: username, password: password}, nil
}

func (m *basicAuthMiddleware) Name() string { return "basic_auth" }

func (m *basicAuthMiddleware) Left(env map[string]any) (map[string]any, error) {
	header, ok := headerValue(env, "authorization")
	if !ok {
		return nil, herrors.NewAuthFailure("basic_auth", fmt.Errorf("missing Authorization header"))
	}
	if !strings.HasPrefix(header, "Basic ") {
		return nil, herrors.NewAuthFailure("basic_auth", fmt.Errorf("authorization header must start with 'Basic '"))
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return nil, herrors.NewAuthFailure("basic_auth", fmt.Errorf("failed to decode basic auth credentials"))
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, herrors.NewAuthFailure("basic_auth", fmt.Errorf("malformed basic auth credentials"))
	}
	if user != m.username || pass != m.password {
		return nil, herrors.NewAuthFailure("basic_auth", fmt.Errorf("invalid username or password"))
	}
	return env, nil
}

func (m *basicAuthMiddleware) Right(env map[string]any) (map[string]any, error) {
	return env, nil
}

// headerValue fetches a case-sensitive header from env's request_details.headers,
// which the HTTP adapter always stores lowercased (spec §4.5).
func headerValue(env map[string]any, key string) (string, bool) {
	rd, _ := env["request_details"].(map[string]any)
	if rd == nil {
		return "", false
	}
	headers, _ := rd["headers"].(map[string]any)
	if headers == nil {
		return "", false
	}
	v, ok := headers[key].(string)
	return v, ok
}
