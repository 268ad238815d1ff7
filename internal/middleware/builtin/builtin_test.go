package builtin

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurabx/harmony/internal/herrors"
)

func envWithHeader(key, value string) map[string]any {
	return map[string]any{
		"request_details": map[string]any{
			"headers":  map[string]any{key: value},
			"metadata": map[string]any{},
		},
	}
}

func TestPassthroughStampsBothSides(t *testing.T) {
	mw, err := newPassthrough(nil)
	require.NoError(t, err)

	out, err := mw.Left(map[string]any{})
	require.NoError(t, err)
	nd := out["normalized_data"].(map[string]any)
	assert.Equal(t, true, nd["mw_left"])

	out, err = mw.Right(out)
	require.NoError(t, err)
	nd = out["normalized_data"].(map[string]any)
	assert.Equal(t, true, nd["mw_right"])
}

func TestJSONExtractorOnlySetsWhenAbsent(t *testing.T) {
	mw, err := newJSONExtractor(nil)
	require.NoError(t, err)

	env := map[string]any{"original_data": map[string]any{"a": "b"}}
	out, err := mw.Left(env)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "b"}, out["normalized_data"])

	env2 := map[string]any{"original_data": map[string]any{"a": "b"}, "normalized_data": "already-set"}
	out2, err := mw.Left(env2)
	require.NoError(t, err)
	assert.Equal(t, "already-set", out2["normalized_data"])
}

func TestBasicAuthAcceptsValidCredentials(t *testing.T) {
	mw, err := newBasicAuth(map[string]any{"username": "alice", "password": "secret"})
	require.NoError(t, err)

	creds := base64.StdEncoding.EncodeToString([]byte("alice:secret"))
	env := envWithHeader("authorization", "Basic "+creds)
	_, err = mw.Left(env)
	assert.NoError(t, err)
}

func TestBasicAuthRejectsWrongPassword(t *testing.T) {
	mw, err := newBasicAuth(map[string]any{"username": "alice", "password": "secret"})
	require.NoError(t, err)

	creds := base64.StdEncoding.EncodeToString([]byte("alice:wrong"))
	env := envWithHeader("authorization", "Basic "+creds)
	_, err = mw.Left(env)
	require.Error(t, err)
	var mwErr *herrors.MiddlewareError
	require.ErrorAs(t, err, &mwErr)
	assert.True(t, mwErr.IsAuthFailure())
}

func TestBasicAuthRejectsMissingHeader(t *testing.T) {
	mw, err := newBasicAuth(map[string]any{"username": "a", "password": "b"})
	require.NoError(t, err)
	_, err = mw.Left(map[string]any{"request_details": map[string]any{}})
	assert.Error(t, err)
}

func TestPathFilterAllowsMatchingRoute(t *testing.T) {
	mw, err := newPathFilter(map[string]any{"rules": []any{"/ImagingStudy"}})
	require.NoError(t, err)

	env := map[string]any{"request_details": map[string]any{"metadata": map[string]any{"path": "ImagingStudy"}}}
	out, err := mw.Left(env)
	require.NoError(t, err)
	meta := out["request_details"].(map[string]any)["metadata"].(map[string]any)
	_, skipped := meta["skip_backends"]
	assert.False(t, skipped)
}

func TestPathFilterRejectsNonMatchingRoute(t *testing.T) {
	mw, err := newPathFilter(map[string]any{"rules": []any{"/ImagingStudy"}})
	require.NoError(t, err)

	env := map[string]any{"request_details": map[string]any{"metadata": map[string]any{"path": "ImagingStudy/series"}}}
	out, err := mw.Left(env)
	require.NoError(t, err)
	meta := out["request_details"].(map[string]any)["metadata"].(map[string]any)
	assert.Equal(t, "true", meta["skip_backends"])
	nd := out["normalized_data"].(map[string]any)
	resp := nd["response"].(map[string]any)
	assert.Equal(t, float64(404), resp["status"])
}

func TestPathFilterRequiresAtLeastOneRule(t *testing.T) {
	_, err := newPathFilter(map[string]any{"rules": []any{}})
	assert.Error(t, err)
}
