package builtin

import (
	"encoding/json"

	"github.com/aurabx/harmony/internal/envelope"
	"github.com/aurabx/harmony/internal/services"
)

// mockDicomService is a canned DIMSE backend for exercising pipelines and
// integration tests without a real Application Entity, grounded on
// original_source's MockDicomEndpoint (types/mock_dicom.rs). It carries one
// condensed sample study (one series, three instances) rather than the
// teacher's three-series/fifteen-instance fixture; the query-level
// detection and response shapes are otherwise unchanged in meaning.
type mockDicomService struct{ base }

func newMockDicomService() (services.Service, error) {
	return &mockDicomService{base{name: "mock_dicom"}}, nil
}

var mockStudy = struct {
	StudyUID  string
	PatientID string
	Series    mockSeries
}{
	StudyUID:  "1.2.826.0.1.3680043.9.7133.3280065491876470",
	PatientID: "PID156695",
	Series: mockSeries{
		SeriesUID:         "1.2.826.0.1.3680043.9.7133.1734441961856038",
		SeriesNumber:      1,
		Modality:          "CT",
		SeriesDescription: "Series 1",
		Instances: []mockInstance{
			{InstanceUID: "1.2.826.0.1.3680043.9.7133.2677554575065585", InstanceNumber: 1, SOPClassUID: "1.2.840.10008.5.1.4.1.1.2"},
			{InstanceUID: "1.2.826.0.1.3680043.9.7133.1494401914668643", InstanceNumber: 2, SOPClassUID: "1.2.840.10008.5.1.4.1.1.2"},
			{InstanceUID: "1.2.826.0.1.3680043.9.7133.1578071133979400", InstanceNumber: 3, SOPClassUID: "1.2.840.10008.5.1.4.1.1.2"},
		},
	},
}

type mockSeries struct {
	SeriesUID         string
	SeriesNumber      int
	Modality          string
	SeriesDescription string
	Instances         []mockInstance
}

type mockInstance struct {
	InstanceUID    string
	InstanceNumber int
	SOPClassUID    string
}

// handleFindQuery mirrors handle_find_query's query-level detection: the
// presence of specific DICOM tag keys in the identifier determines whether
// this is a patient/study/series/image-level C-FIND.
func handleFindQuery(params map[string]string) []map[string]any {
	_, hasSOPInstance := params["00080018"]
	sopInstance := params["00080018"]
	_, hasSeries := params["0020000E"]
	series := params["0020000E"]
	_, hasStudy := params["0020000D"]
	study := params["0020000D"]

	switch {
	case sopInstance != "" || (hasSOPInstance && (study != "" || series != "")):
		return queryInstances(params)
	case series != "":
		return querySeries(params)
	case hasSeries && study != "":
		return querySeries(params)
	case study != "":
		return queryStudies(params)
	case hasStudy:
		return queryStudies(params)
	default:
		return queryPatients(params)
	}
}

func queryPatients(params map[string]string) []map[string]any {
	if pid, ok := params["00100020"]; ok && trimSemicolon(pid) != "" && trimSemicolon(pid) != mockStudy.PatientID {
		return nil
	}
	return []map[string]any{{
		"00100020": tagLO(mockStudy.PatientID),
		"00100010": map[string]any{"vr": "PN", "Value": []any{map[string]any{"Alphabetic": "Doe^John"}}},
		"0020000D": tagUI(mockStudy.StudyUID),
		"00080020": map[string]any{"vr": "DA", "Value": []any{"20241015"}},
		"00080030": map[string]any{"vr": "TM", "Value": []any{"120000"}},
		"00081030": tagLO("Mock CT Study"),
	}}
}

func queryStudies(params map[string]string) []map[string]any {
	if uid, ok := params["0020000D"]; ok && uid != "" && uid != mockStudy.StudyUID {
		return nil
	}
	if pid, ok := params["00100020"]; ok && trimSemicolon(pid) != "" && trimSemicolon(pid) != mockStudy.PatientID {
		return nil
	}
	return []map[string]any{{
		"0020000D": tagUI(mockStudy.StudyUID),
		"00100020": tagLO(mockStudy.PatientID),
		"00100010": map[string]any{"vr": "PN", "Value": []any{map[string]any{"Alphabetic": "Doe^John"}}},
		"00080020": map[string]any{"vr": "DA", "Value": []any{"20241015"}},
		"00080030": map[string]any{"vr": "TM", "Value": []any{"120000"}},
		"00081030": tagLO("Mock CT Study"),
		"00200010": map[string]any{"vr": "SH", "Value": []any{"1"}},
	}}
}

func querySeries(params map[string]string) []map[string]any {
	study, ok := params["0020000D"]
	if !ok || study == "" || study != mockStudy.StudyUID {
		return nil
	}
	if uid, ok := params["0020000E"]; ok && uid != "" {
		if uid == mockStudy.Series.SeriesUID {
			return []map[string]any{seriesResponse(mockStudy.Series)}
		}
		return nil
	}
	if modality, ok := params["00080060"]; ok && modality != "" && modality != mockStudy.Series.Modality {
		return nil
	}
	return []map[string]any{seriesResponse(mockStudy.Series)}
}

func queryInstances(params map[string]string) []map[string]any {
	study, ok := params["0020000D"]
	if !ok || study == "" || study != mockStudy.StudyUID {
		return nil
	}
	seriesUID, ok := params["0020000E"]
	if !ok || seriesUID == "" || seriesUID != mockStudy.Series.SeriesUID {
		return nil
	}
	instances := mockStudy.Series.Instances
	if instanceUID, ok := params["00080018"]; ok && instanceUID != "" {
		for _, inst := range instances {
			if inst.InstanceUID == instanceUID {
				return []map[string]any{instanceResponse(mockStudy.Series, inst)}
			}
		}
		return nil
	}
	out := make([]map[string]any, 0, len(instances))
	for _, inst := range instances {
		out = append(out, instanceResponse(mockStudy.Series, inst))
	}
	return out
}

func seriesResponse(s mockSeries) map[string]any {
	return map[string]any{
		"0020000D": tagUI(mockStudy.StudyUID),
		"0020000E": tagUI(s.SeriesUID),
		"00080060": map[string]any{"vr": "CS", "Value": []any{s.Modality}},
		"0008103E": tagLO(s.SeriesDescription),
		"00200011": map[string]any{"vr": "IS", "Value": []any{s.SeriesNumber}},
	}
}

func instanceResponse(s mockSeries, i mockInstance) map[string]any {
	return map[string]any{
		"0020000D": tagUI(mockStudy.StudyUID),
		"0020000E": tagUI(s.SeriesUID),
		"00080018": tagUI(i.InstanceUID),
		"00200013": map[string]any{"vr": "IS", "Value": []any{i.InstanceNumber}},
		"00080016": map[string]any{"vr": "UI", "Value": []any{i.SOPClassUID}},
	}
}

func tagUI(v string) map[string]any { return map[string]any{"vr": "UI", "Value": []any{v}} }
func tagLO(v string) map[string]any { return map[string]any{"vr": "LO", "Value": []any{v}} }

func trimSemicolon(s string) string {
	for len(s) > 0 && s[len(s)-1] == ';' {
		s = s[:len(s)-1]
	}
	return s
}

// EndpointIncomingRequest intentionally passes through unchanged: the mock
// backend must generate its response in BackendOutgoingRequest, which runs
// after left middleware, or middleware-set identifiers would be clobbered.
func (s *mockDicomService) EndpointIncomingRequest(env *envelope.RequestEnvelope, _ map[string]any) (*envelope.RequestEnvelope, error) {
	return env, nil
}

func (s *mockDicomService) BackendOutgoingRequest(env *envelope.RequestEnvelope, _ map[string]any) (*envelope.ResponseEnvelope, error) {
	op := metadataLookup(env, "dimse_op")
	var result any
	switch op {
	case "echo", "/echo":
		result = map[string]any{"operation": "echo", "success": true, "remote_aet": "MOCK_DICOM", "host": "mock", "port": 11112}
	case "find", "/find":
		params := identifierParams(env)
		result = map[string]any{"matches": handleFindQuery(params)}
	default:
		result = map[string]any{"operation": op, "success": false, "error": "Mock DICOM: unsupported operation: " + op}
	}

	resp := envelope.NewResponse(env.ID, 200)
	resp.ResponseDetails.Headers["content-type"] = "application/json"
	resp.NormalizedData = result
	if body, err := json.Marshal(result); err == nil {
		resp.OriginalData = body
	}
	return resp, nil
}

func metadataLookup(env *envelope.RequestEnvelope, key string) string {
	if nd, ok := env.NormalizedData.(map[string]any); ok {
		if v, ok := nd[key].(string); ok {
			return v
		}
	}
	return env.RequestDetails.Metadata[key]
}

// identifierParams flattens the dimse_identifier JSON (as produced by the
// dicomweb_bridge middleware) into a flat tag -> first-Value string map,
// the shape handleFindQuery expects.
func identifierParams(env *envelope.RequestEnvelope) map[string]string {
	out := map[string]string{}
	nd, ok := env.NormalizedData.(map[string]any)
	if !ok {
		return out
	}
	ident, ok := nd["dimse_identifier"].(map[string]any)
	if !ok {
		return out
	}
	for tag, raw := range ident {
		elem, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		values, ok := elem["Value"].([]any)
		if !ok || len(values) == 0 {
			out[tag] = ""
			continue
		}
		if s, ok := values[0].(string); ok {
			out[tag] = s
		}
	}
	return out
}

func (s *mockDicomService) EndpointOutgoingResponse(resp *envelope.ResponseEnvelope, _ map[string]any) ([]byte, map[string]string, error) {
	return respondJSON(resp)
}
