package builtin

import (
	"fmt"
	"os"

	"github.com/aurabx/harmony/internal/jolt"
)

// transformMiddleware applies a JOLT-lite shift spec to normalized_data,
// grounded on original_source's JoltTransformMiddleware (transform.rs): a
// snapshot of normalized_data is taken on first transform (invariant 4),
// apply selects which side(s) the spec runs on, and fail_on_error controls
// whether a transform failure aborts the pipeline or is swallowed with the
// untransformed data left in place.
type transformMiddleware struct {
	specs       []jolt.Spec
	applyLeft   bool
	applyRight  bool
	failOnError bool
}

func newTransform(options map[string]any) (*transformMiddleware, error) {
	specPath, _ := options["spec_path"].(string)
	if specPath == "" {
		return nil, fmt.Errorf("transform requires a 'spec_path' option")
	}
	raw, err := os.ReadFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("transform: reading spec_path %q: %w", specPath, err)
	}
	specs, err := jolt.ParseSpec(raw)
	if err != nil {
		return nil, err
	}

	apply, _ := options["apply"].(string)
	if apply == "" {
		apply = "both"
	}
	failOnError := true
	if v, ok := options["fail_on_error"].(bool); ok {
		failOnError = v
	}

	return &transformMiddleware{
		specs:       specs,
		applyLeft:   apply == "left" || apply == "both",
		applyRight:  apply == "right" || apply == "both",
		failOnError: failOnError,
	}, nil
}

func (m *transformMiddleware) Name() string { return "transform" }

func (m *transformMiddleware) Left(env map[string]any) (map[string]any, error) {
	if !m.applyLeft {
		return env, nil
	}
	return m.apply(env)
}

func (m *transformMiddleware) Right(env map[string]any) (map[string]any, error) {
	if !m.applyRight {
		return env, nil
	}
	return m.apply(env)
}

func (m *transformMiddleware) apply(env map[string]any) (map[string]any, error) {
	if env["normalized_snapshot"] == nil {
		env["normalized_snapshot"] = env["normalized_data"]
	}
	if env["normalized_data"] == nil {
		return env, nil
	}
	out, err := jolt.Transform(env["normalized_data"], m.specs)
	if err != nil {
		if m.failOnError {
			return nil, fmt.Errorf("jolt transform failed: %w", err)
		}
		return env, nil
	}
	env["normalized_data"] = out
	env["original_data"] = out
	return env, nil
}
