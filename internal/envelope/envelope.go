// Package envelope implements Harmony's uniform request/response carrier.
//
// The shape is split in two, RequestEnvelope and ResponseEnvelope, rather
// than the single generic envelope the teacher (coreengine/envelope) uses
// for agent-DAG state — Harmony's domain is a request/response pair flowing
// through a fixed six-stage pipeline, not an open-ended agent graph, so the
// split is the natural generalization of the teacher's deep-copy/JSON-
// round-trip idiom to this domain.
package envelope

import (
	"encoding/json"

	"github.com/google/uuid"
)

// RequestDetails carries the origin-side metadata of a request Envelope.
type RequestDetails struct {
	Method      string              `json:"method"`
	URI         string              `json:"uri"`
	Headers     map[string]string   `json:"headers"`
	Cookies     map[string]string   `json:"cookies"`
	QueryParams map[string][]string `json:"query_params"`
	CacheStatus string              `json:"cache_status,omitempty"`
	Metadata    map[string]string   `json:"metadata"`
}

// NewRequestDetails returns a RequestDetails with all maps initialized.
func NewRequestDetails() RequestDetails {
	return RequestDetails{
		Headers:     map[string]string{},
		Cookies:     map[string]string{},
		QueryParams: map[string][]string{},
		Metadata:    map[string]string{},
	}
}

func (d RequestDetails) clone() RequestDetails {
	return RequestDetails{
		Method:      d.Method,
		URI:         d.URI,
		Headers:     copyStringMap(d.Headers),
		Cookies:     copyStringMap(d.Cookies),
		QueryParams: copyMultiMap(d.QueryParams),
		CacheStatus: d.CacheStatus,
		Metadata:    copyStringMap(d.Metadata),
	}
}

// ResponseDetails carries the wire-facing outcome of a response Envelope.
type ResponseDetails struct {
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers"`
	Metadata map[string]string `json:"metadata"`
}

// NewResponseDetails returns a ResponseDetails with all maps initialized.
func NewResponseDetails() ResponseDetails {
	return ResponseDetails{Headers: map[string]string{}, Metadata: map[string]string{}}
}

func (d ResponseDetails) clone() ResponseDetails {
	return ResponseDetails{
		Status:   d.Status,
		Headers:  copyStringMap(d.Headers),
		Metadata: copyStringMap(d.Metadata),
	}
}

// RequestEnvelope is the in-process carrier of an inbound request as it
// flows: adapter -> endpoint.incoming -> left middleware -> backend.
type RequestEnvelope struct {
	ID                string `json:"id"`
	RequestDetails    RequestDetails `json:"request_details"`
	OriginalData      []byte         `json:"original_data"`
	NormalizedData    any            `json:"normalized_data,omitempty"`
	NormalizedSnapshot any           `json:"normalized_snapshot,omitempty"`
}

// New constructs an empty RequestEnvelope with a fresh ID, mirroring the
// teacher's UUID-seeded envelope constructor.
func New() *RequestEnvelope {
	return &RequestEnvelope{
		ID:             uuid.NewString(),
		RequestDetails: NewRequestDetails(),
	}
}

// Clone performs a deep copy, generalizing the teacher's GenericEnvelope.Clone.
func (e *RequestEnvelope) Clone() *RequestEnvelope {
	if e == nil {
		return nil
	}
	out := &RequestEnvelope{
		ID:             e.ID,
		RequestDetails: e.RequestDetails.clone(),
		OriginalData:   append([]byte(nil), e.OriginalData...),
	}
	if e.NormalizedData != nil {
		out.NormalizedData = deepCopyValue(e.NormalizedData)
	}
	if e.NormalizedSnapshot != nil {
		out.NormalizedSnapshot = deepCopyValue(e.NormalizedSnapshot)
	}
	return out
}

// SetNormalizedSnapshot sets the snapshot at most once (invariant 4): once
// populated, subsequent calls are no-ops.
func (e *RequestEnvelope) SetNormalizedSnapshot(v any) {
	if e.NormalizedSnapshot == nil {
		e.NormalizedSnapshot = deepCopyValue(v)
	}
}

// SkipBackends reports whether a middleware has set the skip_backends
// control flag (invariant 3). It is kept in metadata, never a typed field,
// so any middleware can set or unset it late (spec §9 design note).
func (e *RequestEnvelope) SkipBackends() bool {
	return e.RequestDetails.Metadata["skip_backends"] == "true"
}

// jsonEnvelope is the wire shape used by ToJSON/FromJSON: original_data is
// represented as a JSON value (normalized_data if present, else parsed from
// bytes, else null) rather than raw bytes, so JSON-native middlewares can
// operate on it directly (spec §4.1).
type jsonEnvelope struct {
	ID                 string         `json:"id"`
	RequestDetails     RequestDetails `json:"request_details"`
	OriginalData       any            `json:"original_data"`
	NormalizedData     any            `json:"normalized_data,omitempty"`
	NormalizedSnapshot any            `json:"normalized_snapshot,omitempty"`
}

// ToJSON converts the envelope into its JSON-operand form for the left
// middleware chain. The original bytes are preserved separately by the
// caller (internal/pipeline) so the bytes-flavored envelope can be
// reconstructed afterward without lossy double-encoding of non-UTF8
// payloads (original_source/src/pipeline/executor.rs's exact behavior).
func (e *RequestEnvelope) ToJSON() (map[string]any, error) {
	originalAsJSON := e.NormalizedData
	if originalAsJSON == nil {
		if len(e.OriginalData) > 0 {
			var v any
			if err := json.Unmarshal(e.OriginalData, &v); err == nil {
				originalAsJSON = v
			}
		}
	}
	je := jsonEnvelope{
		ID:                 e.ID,
		RequestDetails:     e.RequestDetails,
		OriginalData:       originalAsJSON,
		NormalizedData:     e.NormalizedData,
		NormalizedSnapshot: e.NormalizedSnapshot,
	}
	b, err := json.Marshal(je)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// FromJSON reconstructs a bytes-flavored RequestEnvelope from the JSON
// operand form produced by a middleware chain, preserving originalData
// (the caller's real wire bytes) while adopting normalized_data/snapshot
// and request_details from the processed JSON map.
func FromJSON(m map[string]any, originalData []byte) (*RequestEnvelope, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var je jsonEnvelope
	if err := json.Unmarshal(b, &je); err != nil {
		return nil, err
	}
	out := &RequestEnvelope{
		ID:                 je.ID,
		RequestDetails:     je.RequestDetails,
		OriginalData:       originalData,
		NormalizedData:     je.NormalizedData,
		NormalizedSnapshot: je.NormalizedSnapshot,
	}
	return out, nil
}

// ResponseEnvelope is the in-process carrier of an outbound response as it
// flows: backend -> right middleware -> endpoint.outgoing -> adapter.
type ResponseEnvelope struct {
	ID                 string          `json:"id"`
	ResponseDetails    ResponseDetails `json:"response_details"`
	OriginalData       []byte          `json:"original_data"`
	NormalizedData     any             `json:"normalized_data,omitempty"`
	NormalizedSnapshot any             `json:"normalized_snapshot,omitempty"`
}

// NewResponse constructs an empty ResponseEnvelope carrying the given
// status, tying it to the originating request by ID.
func NewResponse(requestID string, status int) *ResponseEnvelope {
	details := NewResponseDetails()
	details.Status = status
	return &ResponseEnvelope{
		ID:              requestID,
		ResponseDetails: details,
	}
}

// Clone performs a deep copy of the response envelope.
func (e *ResponseEnvelope) Clone() *ResponseEnvelope {
	if e == nil {
		return nil
	}
	out := &ResponseEnvelope{
		ID:              e.ID,
		ResponseDetails: e.ResponseDetails.clone(),
		OriginalData:    append([]byte(nil), e.OriginalData...),
	}
	if e.NormalizedData != nil {
		out.NormalizedData = deepCopyValue(e.NormalizedData)
	}
	if e.NormalizedSnapshot != nil {
		out.NormalizedSnapshot = deepCopyValue(e.NormalizedSnapshot)
	}
	return out
}

type jsonResponseEnvelope struct {
	ID                 string          `json:"id"`
	ResponseDetails    ResponseDetails `json:"response_details"`
	OriginalData       any             `json:"original_data"`
	NormalizedData     any             `json:"normalized_data,omitempty"`
	NormalizedSnapshot any             `json:"normalized_snapshot,omitempty"`
}

// ToJSON converts the response envelope into its JSON operand form for the
// right middleware chain.
func (e *ResponseEnvelope) ToJSON() (map[string]any, error) {
	originalAsJSON := e.NormalizedData
	if originalAsJSON == nil {
		if len(e.OriginalData) > 0 {
			var v any
			if err := json.Unmarshal(e.OriginalData, &v); err == nil {
				originalAsJSON = v
			}
		}
	}
	je := jsonResponseEnvelope{
		ID:                 e.ID,
		ResponseDetails:    e.ResponseDetails,
		OriginalData:       originalAsJSON,
		NormalizedData:     e.NormalizedData,
		NormalizedSnapshot: e.NormalizedSnapshot,
	}
	b, err := json.Marshal(je)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ResponseFromJSON reconstructs a bytes-flavored ResponseEnvelope from the
// JSON operand form, preserving the original wire bytes.
func ResponseFromJSON(m map[string]any, originalData []byte) (*ResponseEnvelope, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var je jsonResponseEnvelope
	if err := json.Unmarshal(b, &je); err != nil {
		return nil, err
	}
	out := &ResponseEnvelope{
		ID:                 je.ID,
		ResponseDetails:    je.ResponseDetails,
		OriginalData:       originalData,
		NormalizedData:     je.NormalizedData,
		NormalizedSnapshot: je.NormalizedSnapshot,
	}
	return out, nil
}

// --- deep copy helpers, generalized from coreengine/envelope/generic.go ---

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyMultiMap(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopyValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopyValue(val)
		}
		return out
	default:
		return v
	}
}
