// Package dimseadapter bridges the DIMSE runtime (internal/dimse) to the
// pipeline executor: a QueryProvider implementation that runs C-FIND/
// C-MOVE/C-STORE through a configured pipeline, plus the identifier
// JSON/match-type and DIMSE<->HTTP status-mapping helpers that provider
// needs. Grounded on original_source's
// src/adapters/dimse/{query_provider.rs,status_mapper.rs} and
// src/integrations/dimse/pipeline_query_provider.rs.
package dimseadapter

import "strings"

// MatchType is the DICOM PS3.4 C.2.2.2 query-matching classification a
// C-FIND/C-MOVE parameter value implies.
type MatchType string

const (
	MatchExact     MatchType = "EXACT"
	MatchWildcard  MatchType = "WILDCARD"
	MatchRange     MatchType = "RANGE"
	MatchReturnKey MatchType = "RETURN_KEY"
)

// ClassifyMatchType derives a parameter's match type from its value
// characters, per SPEC_FULL.md §3.2 (an empty value is RETURN_KEY; a
// value containing '*' or '?' is WILDCARD; a value containing '-' between
// two non-empty tokens is RANGE; anything else is EXACT). This is
// deliberately broader than query_provider.rs's build_query_metadata,
// which restricts RANGE to the two date tags it special-cases — the spec
// resolves that ambiguity explicitly for every tag, so the broader rule
// wins here.
func ClassifyMatchType(value string) MatchType {
	if value == "" {
		return MatchReturnKey
	}
	if strings.ContainsAny(value, "*?") {
		return MatchWildcard
	}
	if isRange(value) {
		return MatchRange
	}
	return MatchExact
}

// isRange reports whether value is two non-empty tokens joined by '-',
// e.g. a DICOM date/time range "20200101-20201231".
func isRange(value string) bool {
	idx := strings.Index(value, "-")
	if idx <= 0 || idx >= len(value)-1 {
		return false
	}
	return true
}

// tagVR is the narrow set of value representations the identifier
// builder needs to distinguish, mirroring query_provider.rs's
// build_identifier_json match on well-known tags.
func tagVR(tag string) string {
	switch tag {
	case "00100010": // PatientName
		return "PN"
	case "00100020": // PatientID
		return "LO"
	case "00080020", "00080021": // StudyDate, SeriesDate
		return "DA"
	default:
		return "UN"
	}
}

// BuildIdentifierJSON renders DIMSE query parameters (tag -> string
// value) as a DICOM-JSON identifier object, one entry per tag, value
// representation selected by well-known tag (PN for patient name, LO for
// patient ID, DA for dates, UN otherwise). An empty value becomes an
// empty Value array (a return-key request per DICOM convention).
func BuildIdentifierJSON(params map[string]string) map[string]any {
	out := make(map[string]any, len(params))
	for tag, val := range params {
		vr := tagVR(tag)
		var value any
		switch {
		case val == "":
			value = []any{}
		case vr == "PN":
			value = []any{map[string]any{"Alphabetic": val}}
		default:
			value = []any{val}
		}
		out[tag] = map[string]any{"vr": vr, "Value": value}
	}
	return out
}

// QueryMetaEntry carries the derived match type for one query parameter.
type QueryMetaEntry struct {
	MatchType MatchType `json:"match_type,omitempty"`
}

// BuildQueryMetadata classifies every parameter's match type, the
// companion structure query_provider.rs attaches to the identifier so a
// pipeline-backed provider can tell an exact match apart from a wildcard,
// range, or return-key request.
func BuildQueryMetadata(params map[string]string) map[string]QueryMetaEntry {
	out := make(map[string]QueryMetaEntry, len(params))
	for tag, val := range params {
		out[tag] = QueryMetaEntry{MatchType: ClassifyMatchType(val)}
	}
	return out
}
