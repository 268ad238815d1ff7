// Package orchestrator owns process-wide adapter supervision: one HTTP
// adapter per declared network plus one DimseScp per DIMSE-bearing
// endpoint, a dedup registry preventing duplicate SCP listeners, and a
// single shared cancellation context. Grounded on
// coreengine/kernel/orchestrator.go's Orchestrator (a struct holding live
// units in a mutex-guarded map, constructed by NewOrchestrator, torn down
// unit-by-unit) generalized from per-session agent orchestration to
// per-network adapter supervision, per spec.md §4.9/§5/§9.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aurabx/harmony/coreengine/typeutil"
	"github.com/aurabx/harmony/internal/config"
	"github.com/aurabx/harmony/internal/dimse"
	"github.com/aurabx/harmony/internal/dimseadapter"
	"github.com/aurabx/harmony/internal/httpapi"
	"github.com/aurabx/harmony/internal/middleware"
	"github.com/aurabx/harmony/internal/observability"
	"github.com/aurabx/harmony/internal/pipeline"
	"github.com/aurabx/harmony/internal/services"
)

// unit is anything the orchestrator starts and waits on. Both *httpapi.Adapter
// and *dimse.DimseScp already expose Run(ctx) error, so both satisfy it
// as-is.
type unit interface {
	Run(ctx context.Context) error
}

// Orchestrator holds every adapter the current configuration calls for and
// supervises their lifetime under one shared cancellation context.
type Orchestrator struct {
	Config   *config.Config
	Services *services.Registry
	Types    *middleware.TypeRegistry
	Executor *pipeline.Executor
	Logger   observability.Logger

	mu          sync.Mutex
	scpRegistry map[string]struct{}

	httpAdapters []*httpapi.Adapter
	dimseSCPs    []*dimse.DimseScp
}

// New builds an Orchestrator bound to cfg; call Build before Run.
func New(cfg *config.Config, reg *services.Registry, types *middleware.TypeRegistry, exec *pipeline.Executor, logger observability.Logger) *Orchestrator {
	if logger == nil {
		logger = observability.NewLogger("info")
	}
	return &Orchestrator{
		Config:      cfg,
		Services:    reg,
		Types:       types,
		Executor:    exec,
		Logger:      logger,
		scpRegistry: make(map[string]struct{}),
	}
}

// registerSCP is the Go translation of spec §9's register_scp: an atomic
// test-and-set on the process-wide STARTED_SCP registry. It returns true
// the first time key is seen and false on every later call with the same
// key, matching "duplicate registration is a no-op handle".
func (o *Orchestrator) registerSCP(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.scpRegistry[key]; exists {
		return false
	}
	o.scpRegistry[key] = struct{}{}
	return true
}

// scpKey builds the `<local_aet>@<bind>:<port>#<endpoint>` dedup key spec
// §4.6.2 specifies.
func scpKey(localAET, bindAddr string, port int, endpoint string) string {
	return fmt.Sprintf("%s@%s:%d#%s", localAET, bindAddr, port, endpoint)
}

// Build resolves the configuration into a concrete set of adapters: one
// httpapi.Adapter per network carrying an http block, and one DimseScp per
// endpoint (first endpoint of any pipeline on that network) whose options
// describe a DIMSE listener (local_aet/bind_addr/port all present).
// Duplicate DIMSE listener keys are skipped rather than spawning a second
// SCP for the same (local_aet, bind, port, endpoint) tuple.
func (o *Orchestrator) Build() error {
	o.httpAdapters = nil
	o.dimseSCPs = nil

	for _, name := range networkNames(o.Config) {
		net := o.Config.Network[name]
		if net.HTTP != nil {
			adapter := httpapi.NewAdapter(name, net.HTTP.Addr(), o.Config, o.Services, o.Types, o.Executor, o.Logger)
			if _, err := adapter.BuildRouter(); err != nil {
				return fmt.Errorf("orchestrator: building router for network %q: %w", name, err)
			}
			o.httpAdapters = append(o.httpAdapters, adapter)
		}

		for _, pipelineName := range o.Config.PipelinesForNetwork(name) {
			p := o.Config.Pipelines[pipelineName]
			if len(p.Endpoints) == 0 {
				continue
			}
			endpointName := p.Endpoints[0]
			epCfg, ok := o.Config.Endpoints[endpointName]
			if !ok {
				continue
			}
			dimseCfg, ok := dimseConfigFromOptions(epCfg.Options)
			if !ok {
				continue
			}

			key := scpKey(dimseCfg.LocalAET, dimseCfg.BindAddr, dimseCfg.Port, endpointName)
			if !o.registerSCP(key) {
				o.Logger.Warn("orchestrator: duplicate DIMSE SCP registration, reusing existing listener", "key", key)
				continue
			}

			resolved, err := pipeline.Resolve(pipelineName, p, o.Config, o.Types)
			if err != nil {
				return fmt.Errorf("orchestrator: resolving pipeline %q for DIMSE endpoint %q: %w", pipelineName, endpointName, err)
			}
			provider := dimseadapter.NewPipelineQueryProvider(o.Executor, resolved, endpointName, o.Logger)
			scp := dimse.NewDimseScp(dimseCfg, provider, o.Logger)
			o.dimseSCPs = append(o.dimseSCPs, scp)
		}
	}

	return nil
}

// networkNames returns the declared network names in sorted (deterministic)
// order.
func networkNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Network))
	for name := range cfg.Network {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// dimseConfigFromOptions extracts a DimseConfig from an endpoint's options
// map, following spec §6's "An endpoint has service + options map
// (commonly path_prefix, local_aet, port, bind_addr)": an endpoint is
// DIMSE-bearing exactly when local_aet, bind_addr, and port are all
// present.
func dimseConfigFromOptions(options map[string]any) (dimse.DimseConfig, bool) {
	localAET, _ := typeutil.SafeString(options["local_aet"])
	bindAddr, _ := typeutil.SafeString(options["bind_addr"])
	port, ok := typeutil.SafeInt(options["port"])
	if localAET == "" || bindAddr == "" || !ok {
		return dimse.DimseConfig{}, false
	}
	return dimse.DimseConfig{
		LocalAET:    localAET,
		BindAddr:    bindAddr,
		Port:        port,
		EnableEcho:  true,
		EnableFind:  true,
		EnableMove:  true,
		EnableStore: true,
	}.WithDefaults(), true
}

// Run spawns every built adapter under ctx and blocks until all of them
// return, mirroring spec §4.9's "spawn adapters with a shared cancellation
// token ... join all adapter tasks with a bounded timeout" — the bounded
// timeout itself lives in each unit's own Run (httpapi.Adapter.Run applies
// a 10s shutdown deadline; dimse.DimseScp.Run exits as soon as its listener
// closes), so Run here only needs to fan out and collect.
func (o *Orchestrator) Run(ctx context.Context) error {
	units := o.units()
	if len(units) == 0 {
		<-ctx.Done()
		return nil
	}

	errs := make(chan error, len(units))
	for _, u := range units {
		u := u
		go func() { errs <- u.Run(ctx) }()
	}

	var firstErr error
	for range units {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (o *Orchestrator) units() []unit {
	units := make([]unit, 0, len(o.httpAdapters)+len(o.dimseSCPs))
	for _, a := range o.httpAdapters {
		units = append(units, a)
	}
	for _, s := range o.dimseSCPs {
		units = append(units, s)
	}
	return units
}

// HTTPAdapters exposes the built HTTP adapters, one per network carrying an
// http block, for a management surface listing active networks.
func (o *Orchestrator) HTTPAdapters() []*httpapi.Adapter {
	return o.httpAdapters
}

// DimseSCPs exposes the built DIMSE listeners.
func (o *Orchestrator) DimseSCPs() []*dimse.DimseScp {
	return o.dimseSCPs
}
