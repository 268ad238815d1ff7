// Package protocolctx carries the wire-protocol-tagged raw input produced
// once by an adapter and propagated read-only through the pipeline
// executor (spec §3 "ProtocolCtx").
package protocolctx

// Protocol identifies which wire protocol produced a ProtocolCtx.
type Protocol string

const (
	Http  Protocol = "http"
	Dimse Protocol = "dimse"
	Hl7   Protocol = "hl7"
)

// ProtocolCtx is the tagged carrier for protocol identity, raw payload, and
// free-form attrs/meta, built once by the adapter from the wire input.
type ProtocolCtx struct {
	Protocol Protocol
	Payload  []byte
	Meta     map[string]string
	Attrs    any
}

// New returns a ProtocolCtx with initialized maps.
func New(protocol Protocol, payload []byte) *ProtocolCtx {
	return &ProtocolCtx{
		Protocol: protocol,
		Payload:  payload,
		Meta:     map[string]string{},
	}
}
