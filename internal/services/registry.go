// Package services implements the Service abstraction and the process-wide
// registry that resolves a configured service name to its constructor,
// generalized from the teacher's static agent-lookup map
// (coreengine/runtime/runtime.go's buildAgents) per spec §4.2 and §9's
// "process-wide state S with init=startup, reads lock-free after init".
package services

import (
	"fmt"

	"github.com/aurabx/harmony/internal/envelope"
	"github.com/aurabx/harmony/internal/protocolctx"
)

// Route describes one HTTP-facing route a service's endpoint exposes.
type Route struct {
	Path        string
	Methods     []string
	Description string
}

// Service is the polymorphic entity spec §3 defines: endpoints and backends
// share one interface, distinguished positionally (endpoints get the
// incoming/outgoing hooks; backends get the terminal stage).
type Service interface {
	// Name is the service's declared name ("http", "fhir", "dicom", ...).
	Name() string

	// Validate checks options at registry-population time.
	Validate(options map[string]any) error

	// BuildRouter is consumed only by HTTP-facing adapters; DIMSE services
	// return an empty slice.
	BuildRouter(options map[string]any) []Route

	// BuildProtocolEnvelope lifts a ProtocolCtx into a request Envelope.
	BuildProtocolEnvelope(ctx *protocolctx.ProtocolCtx, options map[string]any) (*envelope.RequestEnvelope, error)

	// EndpointIncomingRequest is the endpoint-only pre-pipeline hook.
	EndpointIncomingRequest(env *envelope.RequestEnvelope, options map[string]any) (*envelope.RequestEnvelope, error)

	// BackendOutgoingRequest is the backend-only terminal stage.
	BackendOutgoingRequest(env *envelope.RequestEnvelope, options map[string]any) (*envelope.ResponseEnvelope, error)

	// EndpointOutgoingProtocol is the endpoint-only protocol-aware hook
	// that injects protocol-appropriate headers/metadata.
	EndpointOutgoingProtocol(resp *envelope.ResponseEnvelope, ctx *protocolctx.ProtocolCtx, options map[string]any) error

	// EndpointOutgoingResponse serializes a response Envelope to a wire
	// response (used by the HTTP adapter).
	EndpointOutgoingResponse(resp *envelope.ResponseEnvelope, options map[string]any) ([]byte, map[string]string, error)
}

// Constructor builds a Service instance. It takes no arguments; endpoint
// and backend options reach the service through each hook's options
// parameter.
type Constructor func() (Service, error)

// Registry is a name->Constructor map filled at startup, plus a cache of
// the Service instance Resolve built for each name.
type Registry struct {
	constructors map[string]Constructor
	instances    map[string]Service
}

// NewRegistry returns an empty registry. Register adds constructors;
// Resolve builds an instance on first use and caches it.
func NewRegistry() *Registry {
	return &Registry{constructors: map[string]Constructor{}, instances: map[string]Service{}}
}

// Register binds name to a constructor. Re-registering the same name
// overwrites the prior binding (used only during startup population).
func (r *Registry) Register(name string, ctor Constructor) {
	r.constructors[name] = ctor
}

// Resolve returns the (possibly cached) Service instance for name.
func (r *Registry) Resolve(name string) (Service, error) {
	if svc, ok := r.instances[name]; ok {
		return svc, nil
	}
	ctor, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("service %q is not registered", name)
	}
	svc, err := ctor()
	if err != nil {
		return nil, fmt.Errorf("constructing service %q: %w", name, err)
	}
	r.instances[name] = svc
	return svc, nil
}

// Has reports whether name is a known constructor.
func (r *Registry) Has(name string) bool {
	_, ok := r.constructors[name]
	return ok
}
