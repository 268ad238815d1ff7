package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/aurabx/harmony/internal/herrors"
	"github.com/aurabx/harmony/internal/protocolctx"
)

// requestToProtocolCtx converts an *http.Request into a ProtocolCtx,
// grounded line-for-line on mod.rs's http_request_to_protocol_ctx: derives
// path/full_path from the endpoint's path_prefix option, copies headers
// under lowercased keys,
// parses cookies, URL-decodes multi-valued query params, records a
// cache-status tag from the first of Cache-Status/X-Cache/CF-Cache-Status
// present, and attaches the body as payload.
func requestToProtocolCtx(r *http.Request, options map[string]any) (*protocolctx.ProtocolCtx, error) {
	pathPrefix, _ := options["path_prefix"].(string)

	pathOnly := r.URL.Path
	fullPath := pathOnly
	if r.URL.RawQuery != "" {
		fullPath = pathOnly + "?" + r.URL.RawQuery
	}
	subpath := strings.TrimPrefix(pathOnly, pathPrefix)
	subpath = strings.TrimPrefix(subpath, "/")

	headers := map[string]any{}
	for key, values := range r.Header {
		headers[strings.ToLower(key)] = strings.Join(values, ", ")
	}

	cookies := map[string]any{}
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}

	queryParams := map[string]any{}
	for key, values := range r.URL.Query() {
		out := make([]any, len(values))
		for i, v := range values {
			out[i] = v
		}
		queryParams[key] = out
	}

	cacheStatus := firstHeader(r, "Cache-Status", "X-Cache", "CF-Cache-Status")

	meta := map[string]string{
		"protocol":  "http",
		"path":      subpath,
		"full_path": fullPath,
	}

	attrs := map[string]any{
		"method":       r.Method,
		"uri":          r.URL.String(),
		"headers":      headers,
		"cookies":      cookies,
		"query_params": queryParams,
		"cache_status": cacheStatus,
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, herrors.WrapConfigError("failed to read request body", err)
	}

	ctx := protocolctx.New(protocolctx.Http, body)
	ctx.Meta = meta
	ctx.Attrs = attrs
	return ctx, nil
}

func firstHeader(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := r.Header.Get(name); v != "" {
			return v
		}
	}
	return ""
}
