package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validToml = `
[proxy]
id = "test-proxy"
log_level = "info"
store_dir = "/tmp/harmony"

[network.clinic]
http = { bind_addr = "0.0.0.0", port = 8080 }

[endpoints.qr]
service = "dicom"
options = { path_prefix = "/dicom", aet = "REMOTE", host = "10.0.0.1", port = 11112 }

[backends.pacs]
service = "dicom"
options = { aet = "REMOTE", host = "10.0.0.1", port = 11112 }

[pipelines.qr_pipeline]
description = "Query/retrieve"
networks = ["clinic"]
endpoints = ["qr"]
backends = ["pacs"]
middleware = []
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harmony.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesAndValidatesAGoodConfig(t *testing.T) {
	path := writeConfig(t, validToml)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-proxy", cfg.Proxy.ID)
	assert.Equal(t, "0.0.0.0:8080", cfg.Network["clinic"].HTTP.Addr())
	assert.Equal(t, []string{"qr_pipeline"}, cfg.PipelinesForNetwork("clinic"))
	assert.Empty(t, cfg.PipelinesForNetwork("other"))
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	assert.Error(t, err)
}

func TestLoadReturnsErrorForUnparsableToml(t *testing.T) {
	path := writeConfig(t, "this = [is not valid toml")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsEmptyProxyID(t *testing.T) {
	cfg := &Config{Proxy: ProxyConfig{StoreDir: "/tmp/x"}}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "proxy.id must not be empty")
}

func TestValidateRejectsEmptyStoreDir(t *testing.T) {
	cfg := &Config{Proxy: ProxyConfig{ID: "p"}}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "proxy.store_dir must not be empty")
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := &Config{Proxy: ProxyConfig{ID: "p", StoreDir: "/tmp/x", LogLevel: "verbose"}}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "proxy.log_level")
}

func TestValidateRejectsHTTPNetworkWithEmptyBindAddr(t *testing.T) {
	cfg := &Config{
		Proxy:   ProxyConfig{ID: "p", StoreDir: "/tmp/x"},
		Network: map[string]NetworkConfig{"clinic": {HTTP: &HTTPNetworkConfig{Port: 8080}}},
	}
	err := cfg.Validate()
	assert.ErrorContains(t, err, `network "clinic": http.bind_addr must not be empty`)
}

func TestValidatePipelinesRejectsUnknownEndpointReference(t *testing.T) {
	cfg := &Config{
		Proxy:     ProxyConfig{ID: "p", StoreDir: "/tmp/x"},
		Pipelines: map[string]PipelineConfig{"p1": {Endpoints: []string{"missing"}}},
	}
	err := cfg.Validate()
	assert.ErrorContains(t, err, `pipeline "p1" references unknown endpoint "missing"`)
}

func TestValidatePipelinesRejectsUnknownBackendReference(t *testing.T) {
	cfg := &Config{
		Proxy:     ProxyConfig{ID: "p", StoreDir: "/tmp/x"},
		Pipelines: map[string]PipelineConfig{"p1": {Backends: []string{"missing"}}},
	}
	err := cfg.Validate()
	assert.ErrorContains(t, err, `pipeline "p1" references unknown backend "missing"`)
}

func TestPipelinesForNetworkIsSortedAndDeterministic(t *testing.T) {
	cfg := &Config{
		Pipelines: map[string]PipelineConfig{
			"zeta":  {Networks: []string{"clinic"}},
			"alpha": {Networks: []string{"clinic"}},
			"other": {Networks: []string{"research"}},
		},
	}
	assert.Equal(t, []string{"alpha", "zeta"}, cfg.PipelinesForNetwork("clinic"))
}
