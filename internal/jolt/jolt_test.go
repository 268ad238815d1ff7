package jolt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformShiftRenamesFields(t *testing.T) {
	specJSON := []byte(`[{"operation":"shift","spec":{"name":"data.name","account":"data.account"}}]`)
	specs, err := ParseSpec(specJSON)
	require.NoError(t, err)

	input := map[string]any{
		"id":      float64(1),
		"name":    "John Smith",
		"account": map[string]any{"id": float64(1000), "type": "Checking"},
	}
	out, err := Transform(input, specs)
	require.NoError(t, err)

	b, _ := json.Marshal(out)
	var result map[string]any
	json.Unmarshal(b, &result)
	data, _ := result["data"].(map[string]any)
	require.NotNil(t, data)
	assert.Equal(t, "John Smith", data["name"])
}

func TestTransformIdentityWildcard(t *testing.T) {
	specJSON := []byte(`[{"operation":"shift","spec":{"*":"&"}}]`)
	specs, err := ParseSpec(specJSON)
	require.NoError(t, err)

	input := map[string]any{"test": "value"}
	out, err := Transform(input, specs)
	require.NoError(t, err)

	result, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "value", result["test"])
}

func TestParseSpecRejectsUnsupportedOperation(t *testing.T) {
	_, err := ParseSpec([]byte(`[{"operation":"remove","spec":{}}]`))
	assert.Error(t, err)
}
