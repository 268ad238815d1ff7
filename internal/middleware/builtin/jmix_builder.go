package builtin

import (
	"github.com/aurabx/harmony/internal/jmix"
)

// jmixBuilderMiddleware builds a JMIX package on the right side of a DICOM
// move/get response, narrowed from jmix_builder.rs's JmixBuilderMiddleware:
// the folder-copy, manifest and response-shaping parts are kept; the
// original's inline zip-readiness bookkeeping and response-metadata
// round-tripping are folded into one response object rather than several
// separate metadata keys, since Harmony's envelope already carries a
// structured response.json field the original had to simulate.
type jmixBuilderMiddleware struct {
	builder *jmix.Builder
}

func newJmixBuilderMiddleware(_ map[string]any, builder *jmix.Builder) (*jmixBuilderMiddleware, error) {
	return &jmixBuilderMiddleware{builder: builder}, nil
}

func (m *jmixBuilderMiddleware) Name() string { return "jmix_builder" }

func (m *jmixBuilderMiddleware) Left(env map[string]any) (map[string]any, error) {
	return env, nil
}

// Right detects a move/get-style normalized_data payload carrying
// folder_path/study_uid/instances and builds a package from it, replacing
// normalized_data.response with the created package's ID.
func (m *jmixBuilderMiddleware) Right(env map[string]any) (map[string]any, error) {
	obj, _ := env["normalized_data"].(map[string]any)
	if obj == nil {
		return env, nil
	}
	folderPath, _ := obj["folder_path"].(string)
	studyUID, _ := obj["study_uid"].(string)
	rawInstances, _ := obj["instances"].([]any)
	if folderPath == "" || len(rawInstances) == 0 {
		return env, nil
	}

	instances := make([]string, 0, len(rawInstances))
	for _, v := range rawInstances {
		if s, ok := v.(string); ok {
			instances = append(instances, s)
		}
	}

	pkg, err := m.builder.Build(jmix.BuildRequest{
		StudyUID:  studyUID,
		SourceDir: folderPath,
		Instances: instances,
	})
	if err != nil {
		return nil, err
	}

	obj["response"] = map[string]any{
		"status": float64(200),
		"json":   map[string]any{"jmix_id": pkg.ID, "study_uid": pkg.StudyUID},
	}
	env["normalized_data"] = obj
	env["original_data"] = obj
	return env, nil
}
