package builtin

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aurabx/harmony/internal/jolt"
)

// metadataTransformMiddleware is metadata_transform.rs's Go counterpart,
// scoped to the fields Harmony's envelope actually carries: it runs the
// same JOLT-lite shift as transform but writes the result into
// request_details.metadata / response_details.metadata as string values
// (JSON-encoding any non-string leaf) rather than the original's
// TargetDetails structure, which Harmony's data model (spec §3) has no
// equivalent of.
type metadataTransformMiddleware struct {
	specs       []jolt.Spec
	applyLeft   bool
	applyRight  bool
	failOnError bool
}

func newMetadataTransform(options map[string]any) (*metadataTransformMiddleware, error) {
	specPath, _ := options["spec_path"].(string)
	if specPath == "" {
		return nil, fmt.Errorf("metadata_transform requires a 'spec_path' option")
	}
	raw, err := os.ReadFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("metadata_transform: reading spec_path %q: %w", specPath, err)
	}
	specs, err := jolt.ParseSpec(raw)
	if err != nil {
		return nil, err
	}

	apply, _ := options["apply"].(string)
	if apply == "" {
		apply = "left"
	}
	failOnError := true
	if v, ok := options["fail_on_error"].(bool); ok {
		failOnError = v
	}

	return &metadataTransformMiddleware{
		specs:       specs,
		applyLeft:   apply == "left" || apply == "both",
		applyRight:  apply == "right" || apply == "both",
		failOnError: failOnError,
	}, nil
}

func (m *metadataTransformMiddleware) Name() string { return "metadata_transform" }

func (m *metadataTransformMiddleware) Left(env map[string]any) (map[string]any, error) {
	if !m.applyLeft {
		return env, nil
	}
	return m.applyTo(env, "request_details")
}

func (m *metadataTransformMiddleware) Right(env map[string]any) (map[string]any, error) {
	if !m.applyRight {
		return env, nil
	}
	return m.applyTo(env, "response_details")
}

func (m *metadataTransformMiddleware) applyTo(env map[string]any, detailsKey string) (map[string]any, error) {
	if env["normalized_data"] == nil {
		return env, nil
	}
	out, err := jolt.Transform(env["normalized_data"], m.specs)
	if err != nil {
		if m.failOnError {
			return nil, fmt.Errorf("metadata_transform: %w", err)
		}
		return env, nil
	}
	obj, ok := out.(map[string]any)
	if !ok {
		if m.failOnError {
			return nil, fmt.Errorf("metadata_transform: transformed JSON must be an object")
		}
		return env, nil
	}

	details, _ := env[detailsKey].(map[string]any)
	if details == nil {
		details = map[string]any{}
		env[detailsKey] = details
	}
	meta, _ := details["metadata"].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
		details["metadata"] = meta
	}
	for k, v := range obj {
		if s, ok := v.(string); ok {
			meta[k] = s
			continue
		}
		b, _ := json.Marshal(v)
		meta[k] = string(b)
	}
	return env, nil
}
