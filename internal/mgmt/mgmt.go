// Package mgmt implements the `management` endpoint spec §6 names:
// /info, /pipelines, /routes JSON listings, plus an additive gRPC surface
// exposing the same three listings (SPEC_FULL.md §6.2), instrumented with
// otelgrpc exactly as coreengine/grpc/server.go wires its own gRPC server.
package mgmt

import (
	"sort"

	"github.com/aurabx/harmony/internal/config"
	"github.com/aurabx/harmony/internal/orchestrator"
)

// Service computes the three management listings from the live
// configuration and orchestrator state. Both the HTTP and gRPC surfaces
// are thin encodings over this one source of truth.
type Service struct {
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
}

func New(cfg *config.Config, orch *orchestrator.Orchestrator) *Service {
	return &Service{Config: cfg, Orchestrator: orch}
}

// Info is the /info listing: process-identifying facts plus a summary of
// what the configuration declares.
type Info struct {
	ProxyID       string   `json:"proxy_id"`
	StoreDir      string   `json:"store_dir"`
	Networks      []string `json:"networks"`
	PipelineCount int      `json:"pipeline_count"`
	EndpointCount int      `json:"endpoint_count"`
}

func (s *Service) Info() Info {
	networks := make([]string, 0, len(s.Config.Network))
	for name := range s.Config.Network {
		networks = append(networks, name)
	}
	sort.Strings(networks)

	return Info{
		ProxyID:       s.Config.Proxy.ID,
		StoreDir:      s.Config.Proxy.StoreDir,
		Networks:      networks,
		PipelineCount: len(s.Config.Pipelines),
		EndpointCount: len(s.Config.Endpoints),
	}
}

// PipelineInfo is one entry of the /pipelines listing.
type PipelineInfo struct {
	Name       string   `json:"name"`
	Networks   []string `json:"networks"`
	Endpoints  []string `json:"endpoints"`
	Backends   []string `json:"backends"`
	Middleware []string `json:"middleware"`
}

func (s *Service) Pipelines() []PipelineInfo {
	names := make([]string, 0, len(s.Config.Pipelines))
	for name := range s.Config.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]PipelineInfo, 0, len(names))
	for _, name := range names {
		p := s.Config.Pipelines[name]
		out = append(out, PipelineInfo{
			Name:       name,
			Networks:   p.Networks,
			Endpoints:  p.Endpoints,
			Backends:   p.Backends,
			Middleware: p.Middleware,
		})
	}
	return out
}

// RouteInfo is one entry of the /routes listing: a route installed on a
// network's HTTP adapter and the pipeline that owns it.
type RouteInfo struct {
	Network  string `json:"network"`
	Method   string `json:"method"`
	Path     string `json:"path"`
	Pipeline string `json:"pipeline"`
}

func (s *Service) Routes() []RouteInfo {
	if s.Orchestrator == nil {
		return nil
	}
	var out []RouteInfo
	for _, adapter := range s.Orchestrator.HTTPAdapters() {
		for _, route := range adapter.Routes() {
			out = append(out, RouteInfo{
				Network:  adapter.NetworkName,
				Method:   route.Method,
				Path:     route.Path,
				Pipeline: route.Pipeline,
			})
		}
	}
	return out
}
