// Package config implements Harmony's declarative TOML configuration:
// parsing (pelletier/go-toml/v2) and validation, generalized from the
// teacher's typed-struct-plus-Validate()-error idiom
// (coreengine/config/core_config.go) and grounded section-by-section on
// original_source/src/config/config.rs's from_args/validate dispatch
// (its "groups" concept is renamed "pipelines" throughout, per spec's own
// terminology — SPEC_FULL.md §2.3).
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// ProxyConfig is the top-level `proxy` section: process identity and
// global logging/storage defaults.
type ProxyConfig struct {
	ID       string `toml:"id"`
	LogLevel string `toml:"log_level"`
	StoreDir string `toml:"store_dir"`
}

// StorageConfig is the top-level `storage` section.
type StorageConfig struct {
	Root string `toml:"root"`
}

// HTTPNetworkConfig is `network.<name>.http`.
type HTTPNetworkConfig struct {
	BindAddr string `toml:"bind_addr"`
	Port     int    `toml:"port"`
}

// Addr is the listen address derived from BindAddr/Port, mirroring
// dimse.DimseConfig.Addr's host:port construction.
func (h HTTPNetworkConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.BindAddr, h.Port)
}

// NetworkConfig is `network.<name>`.
type NetworkConfig struct {
	HTTP *HTTPNetworkConfig `toml:"http"`
}

// PipelineConfig is `pipelines.<name>`: the ordered tuple of networks,
// endpoints, backends and middleware spec §3 describes.
type PipelineConfig struct {
	Description string   `toml:"description"`
	Networks    []string `toml:"networks"`
	Endpoints   []string `toml:"endpoints"`
	Backends    []string `toml:"backends"`
	Middleware  []string `toml:"middleware"`
}

// EndpointConfig is `endpoints.<name>`: a service name plus its options.
type EndpointConfig struct {
	Service string         `toml:"service"`
	Options map[string]any `toml:"options"`
}

// BackendConfig is `backends.<name>`.
type BackendConfig struct {
	Service string         `toml:"service"`
	Options map[string]any `toml:"options"`
}

// ServiceConfig is `services.<name>`: recognizes a module name for dynamic
// loading (spec §4.2 — "module-level dynamic loading is recognized but not
// required"); an empty Module means "built-in".
type ServiceConfig struct {
	Module string `toml:"module"`
}

// MiddlewareTypeConfig is `middleware_types.<name>`.
type MiddlewareTypeConfig struct {
	Module string `toml:"module"`
}

// MiddlewareInstanceConfig is `middleware.<instance>`: an options block
// that takes precedence over a same-named built-in type (DESIGN.md OQ1).
type MiddlewareInstanceConfig struct {
	Type    string         `toml:"type"`
	Options map[string]any `toml:"options"`
}

// Config is the full Harmony declarative document (spec §6).
type Config struct {
	Proxy           ProxyConfig                         `toml:"proxy"`
	Storage         StorageConfig                       `toml:"storage"`
	Network         map[string]NetworkConfig            `toml:"network"`
	Pipelines       map[string]PipelineConfig            `toml:"pipelines"`
	Endpoints       map[string]EndpointConfig            `toml:"endpoints"`
	Backends        map[string]BackendConfig             `toml:"backends"`
	Services        map[string]ServiceConfig             `toml:"services"`
	MiddlewareTypes map[string]MiddlewareTypeConfig       `toml:"middleware_types"`
	Middleware      map[string]MiddlewareInstanceConfig   `toml:"middleware"`
}

// Load reads and parses path, then validates the result. A parse or
// validation failure is always returned as an error rather than panicking,
// so cmd/harmonyd can translate it into a non-zero exit code (spec §6).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate runs every section validator and aggregates their errors,
// mirroring original_source/src/config/config.rs's Config::validate
// dispatch to validate_proxy/validate_networks/validate_groups/... .
func (c *Config) Validate() error {
	var errs []string
	if err := c.validateProxy(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateNetworks(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validatePipelines(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validateProxy() error {
	if strings.TrimSpace(c.Proxy.ID) == "" {
		return errors.New("proxy.id must not be empty")
	}
	if c.Proxy.LogLevel != "" && !validLogLevels[strings.ToLower(c.Proxy.LogLevel)] {
		return errors.Errorf("proxy.log_level %q is not one of trace/debug/info/warn/error", c.Proxy.LogLevel)
	}
	if strings.TrimSpace(c.Proxy.StoreDir) == "" {
		return errors.New("proxy.store_dir must not be empty")
	}
	return nil
}

func (c *Config) validateNetworks() error {
	for name, net := range c.Network {
		if net.HTTP != nil && net.HTTP.BindAddr == "" {
			return errors.Errorf("network %q: http.bind_addr must not be empty", name)
		}
	}
	return nil
}

// validatePipelines renames original_source's validate_groups to Harmony's
// "pipeline" terminology (DESIGN.md decision). Empty endpoint/backend/
// middleware lists are accepted without an error or a warning; references
// to endpoint/backend names that are not declared anywhere are a hard error.
func (c *Config) validatePipelines() error {
	for name, p := range c.Pipelines {
		for _, ep := range p.Endpoints {
			if _, ok := c.Endpoints[ep]; !ok {
				return errors.Errorf("pipeline %q references unknown endpoint %q", name, ep)
			}
		}
		for _, be := range p.Backends {
			if _, ok := c.Backends[be]; !ok {
				return errors.Errorf("pipeline %q references unknown backend %q", name, be)
			}
		}
	}
	return nil
}

// PipelinesForNetwork returns the names of pipelines whose Networks list
// includes network, sorted by name. go-toml/v2 decodes `pipelines.<name>`
// into a Go map, which carries no declaration order; sorting by name is the
// deterministic substitute Harmony uses everywhere "pipeline order" matters
// (e.g. the HTTP adapter's route-conflict dedup, spec §4.5).
func (c *Config) PipelinesForNetwork(network string) []string {
	var out []string
	for name, p := range c.Pipelines {
		for _, n := range p.Networks {
			if n == network {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
