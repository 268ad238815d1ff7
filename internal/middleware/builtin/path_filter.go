package builtin

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// pathFilterMiddleware allows or rejects a request based on its subpath
// against a set of chi route patterns, grounded on original_source's
// PathFilterMiddleware (path_filter.rs), which used the matchit crate for
// the same purpose; Harmony uses go-chi/chi/v5's own router as its path
// matcher since the HTTP adapter is already built on it.
type pathFilterMiddleware struct {
	router chi.Router
}

func newPathFilter(options map[string]any) (*pathFilterMiddleware, error) {
	rawRules, _ := options["rules"].([]any)
	if len(rawRules) == 0 {
		return nil, fmt.Errorf("path_filter requires at least one rule")
	}
	r := chi.NewRouter()
	for _, rv := range rawRules {
		rule, ok := rv.(string)
		if !ok || rule == "" {
			return nil, fmt.Errorf("path_filter rules must be non-empty strings")
		}
		r.Handle(rule, http.NotFoundHandler())
	}
	return &pathFilterMiddleware{router: r}, nil
}

func (m *pathFilterMiddleware) Name() string { return "path_filter" }

func (m *pathFilterMiddleware) Left(env map[string]any) (map[string]any, error) {
	path := normalizedPathForFilter(metadataValue(env, "path"))

	rctx := chi.NewRouteContext()
	if m.router.Match(rctx, http.MethodGet, path) {
		return env, nil
	}

	setMetadata(env, "skip_backends", "true")
	obj, _ := env["normalized_data"].(map[string]any)
	if obj == nil {
		obj = map[string]any{}
	}
	obj["response"] = map[string]any{"status": float64(404), "body": ""}
	env["normalized_data"] = obj
	return env, nil
}

func (m *pathFilterMiddleware) Right(env map[string]any) (map[string]any, error) {
	return env, nil
}

func normalizedPathForFilter(subpath string) string {
	if subpath == "" {
		return "/"
	}
	if !strings.HasPrefix(subpath, "/") {
		subpath = "/" + subpath
	}
	if subpath != "/" && strings.HasSuffix(subpath, "/") {
		subpath = strings.TrimSuffix(subpath, "/")
	}
	return subpath
}

func metadataValue(env map[string]any, key string) string {
	rd, _ := env["request_details"].(map[string]any)
	if rd == nil {
		return ""
	}
	meta, _ := rd["metadata"].(map[string]any)
	if meta == nil {
		return ""
	}
	v, _ := meta[key].(string)
	return v
}

func setMetadata(env map[string]any, key, value string) {
	rd, _ := env["request_details"].(map[string]any)
	if rd == nil {
		rd = map[string]any{}
		env["request_details"] = rd
	}
	meta, _ := rd["metadata"].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
		rd["metadata"] = meta
	}
	meta[key] = value
}
