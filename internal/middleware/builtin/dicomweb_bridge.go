package builtin

// dicomwebBridgeMiddleware bridges DICOMweb QIDO-RS style HTTP requests to
// DIMSE C-FIND identifiers and back, narrowed from original_source's
// DicomwebBridgeMiddleware (dicomweb_bridge.rs): Harmony's port covers the
// QIDO-RS query-to-identifier and identifier-to-JSON directions the spec's
// [DICOM] module actually exercises. WADO-RS binary/pixel-data retrieval
// (the original's dicom_pixeldata-based image encoding) is out of scope —
// no pixel-data codec is grounded anywhere in the example pack, so it is
// left to the dicom service itself rather than this bridge (DESIGN.md).
type dicomwebBridgeMiddleware struct{}

func newDicomwebBridge(map[string]any) (*dicomwebBridgeMiddleware, error) {
	return &dicomwebBridgeMiddleware{}, nil
}

func (m *dicomwebBridgeMiddleware) Name() string { return "dicomweb_bridge" }

// Left converts a QIDO-RS query-string request into a DIMSE find identifier
// carried as normalized_data.dimse_identifier, tagging the envelope so the
// dimse backend service knows which operation to run.
func (m *dicomwebBridgeMiddleware) Left(env map[string]any) (map[string]any, error) {
	rd, _ := env["request_details"].(map[string]any)
	qp, _ := rd["query_params"].(map[string]any)

	identifier := map[string]any{}
	for key, raw := range qp {
		values, _ := raw.([]any)
		if len(values) == 0 {
			continue
		}
		first, _ := values[0].(string)
		tag, vr := qidoParamToTag(key)
		if tag == "" {
			continue
		}
		identifier[tag] = map[string]any{"vr": vr, "Value": []any{first}}
	}

	obj, _ := env["normalized_data"].(map[string]any)
	if obj == nil {
		obj = map[string]any{}
	}
	delete(obj, "response")
	obj["dimse_identifier"] = identifier
	env["normalized_data"] = obj

	setMetadata(env, "dimse_op", "find")
	setMetadata(env, "skip_backends", "false")
	return env, nil
}

// Right wraps a dimse backend's find-match list into a DICOMweb QIDO-RS
// JSON array response.
func (m *dicomwebBridgeMiddleware) Right(env map[string]any) (map[string]any, error) {
	obj, _ := env["normalized_data"].(map[string]any)
	if obj == nil {
		return env, nil
	}
	matches, ok := obj["matches"]
	if !ok {
		return env, nil
	}
	arr, ok := matches.([]any)
	if !ok {
		arr = []any{matches}
	}

	resp := map[string]any{
		"status":  float64(200),
		"headers": map[string]any{"content-type": "application/dicom+json"},
		"json":    arr,
	}
	obj["response"] = resp
	env["normalized_data"] = obj
	env["original_data"] = obj
	return env, nil
}

// qidoParamToTag maps the small set of QIDO-RS query keys spec's DICOM
// module exercises to their DICOM tag/VR pair, grounded on
// dicomweb_bridge.rs's add_tag call sites.
func qidoParamToTag(param string) (tag, vr string) {
	switch param {
	case "PatientID":
		return "00100020", "LO"
	case "PatientName":
		return "00100010", "PN"
	case "StudyInstanceUID":
		return "0020000D", "UI"
	case "StudyDate":
		return "00080020", "DA"
	case "AccessionNumber":
		return "00080050", "SH"
	case "ModalitiesInStudy":
		return "00080061", "CS"
	default:
		return "", ""
	}
}
