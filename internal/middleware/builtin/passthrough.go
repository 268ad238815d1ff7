// Package builtin implements the built-in middleware kinds spec §4.3 names,
// each registered under its bare config name in the process-wide
// middleware.TypeRegistry. Every implementation here is grounded on its
// same-named file under original_source/src/models/middleware/types/,
// translated from RequestEnvelope<Value>/ResponseEnvelope<Value> hooks into
// the map[string]any operand form internal/pipeline hands to
// middleware.Chain.
package builtin

// passthroughMiddleware is a diagnostic no-op that stamps a marker into
// normalized_data on each side, grounded on original_source's
// PassthruMiddleware (passthru.rs).
type passthroughMiddleware struct{}

func newPassthrough(map[string]any) (*passthroughMiddleware, error) {
	return &passthroughMiddleware{}, nil
}

func (m *passthroughMiddleware) Name() string { return "passthrough" }

func (m *passthroughMiddleware) Left(env map[string]any) (map[string]any, error) {
	return stampNormalized(env, "mw_left"), nil
}

func (m *passthroughMiddleware) Right(env map[string]any) (map[string]any, error) {
	return stampNormalized(env, "mw_right"), nil
}

func stampNormalized(env map[string]any, key string) map[string]any {
	obj, _ := env["normalized_data"].(map[string]any)
	if obj == nil {
		obj = map[string]any{}
	}
	obj[key] = true
	env["normalized_data"] = obj
	return env
}
