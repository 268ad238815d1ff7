package builtin

// jsonExtractorMiddleware sets normalized_data from original_data only if it
// is not already populated, grounded on original_source's
// JsonExtractorMiddleware (json_extractor.rs). It performs no work on the
// response side — the adapter handles response JSON extraction itself.
type jsonExtractorMiddleware struct{}

func newJSONExtractor(map[string]any) (*jsonExtractorMiddleware, error) {
	return &jsonExtractorMiddleware{}, nil
}

func (m *jsonExtractorMiddleware) Name() string { return "json_extractor" }

func (m *jsonExtractorMiddleware) Left(env map[string]any) (map[string]any, error) {
	if env["normalized_data"] == nil {
		env["normalized_data"] = env["original_data"]
	}
	return env, nil
}

func (m *jsonExtractorMiddleware) Right(env map[string]any) (map[string]any, error) {
	return env, nil
}
