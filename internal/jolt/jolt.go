// Package jolt implements a JSON-to-JSON "shift" transform, the minimal
// subset of JOLT (https://github.com/bazaarvoice/jolt) that
// original_source's harmony_transform crate exposes to middleware: a single
// "shift" operation walking a spec tree and writing matched input paths to
// output paths. No Go port of JOLT exists in the example pack or the wider
// ecosystem (DESIGN.md notes this gap), so Harmony builds its own
// interpreter directly on tidwall/gjson (read side) and tidwall/sjson
// (write side) rather than hand-rolling JSON pointer walking — both
// libraries are otherwise used across the example pack for exactly this
// kind of non-schema'd JSON surgery.
package jolt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Spec is one JOLT-lite operation. Only "shift" is implemented; any other
// operation name is a hard error at construction time.
type Spec struct {
	Operation string         `json:"operation"`
	Spec      map[string]any `json:"spec"`
}

// ParseSpec parses a JOLT spec document (a JSON array of operations).
func ParseSpec(raw []byte) ([]Spec, error) {
	var specs []Spec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("jolt: parsing spec: %w", err)
	}
	for _, s := range specs {
		if s.Operation != "shift" {
			return nil, fmt.Errorf("jolt: unsupported operation %q (only \"shift\" is implemented)", s.Operation)
		}
	}
	return specs, nil
}

// Transform applies every shift operation in specs to input (a decoded JSON
// value) in order and returns the resulting decoded JSON value.
func Transform(input any, specs []Spec) (any, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	output := []byte(`{}`)
	for _, s := range specs {
		output, err = shiftOnce(inputJSON, output, s.Spec, "")
		if err != nil {
			return nil, err
		}
	}
	var result any
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// shiftOnce walks one shift spec tree, reading matched values from inputJSON
// via gjson at inputPath and writing them into outputJSON via sjson at the
// leaf-specified output path.
func shiftOnce(inputJSON, outputJSON []byte, spec map[string]any, inputPath string) ([]byte, error) {
	var err error
	for key, val := range spec {
		childInputPath := joinPath(inputPath, key)

		switch leaf := val.(type) {
		case string:
			outputJSON, err = applyLeaf(inputJSON, outputJSON, key, inputPath, leaf)
			if err != nil {
				return nil, err
			}
		case map[string]any:
			outputJSON, err = shiftOnce(inputJSON, outputJSON, leaf, childInputPath)
			if err != nil {
				return nil, err
			}
		case []any:
			for _, v := range leaf {
				if outPath, ok := v.(string); ok {
					outputJSON, err = applyLeaf(inputJSON, outputJSON, key, inputPath, outPath)
					if err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return outputJSON, nil
}

// applyLeaf resolves one "inputKey": "outputPath" mapping, handling "*"
// (copy every sibling at this level through, using its own key as both
// input segment and the & back-reference) and "&" (use the matched input
// key unchanged as the output segment).
func applyLeaf(inputJSON, outputJSON []byte, inputKey, inputPath, outputTemplate string) ([]byte, error) {
	if inputKey == "*" {
		base := gjson.ParseBytes(inputJSON)
		if inputPath != "" {
			base = gjson.GetBytes(inputJSON, gjsonPath(inputPath))
		}
		var out []byte = outputJSON
		var err error
		if base.IsObject() {
			base.ForEach(func(k, v gjson.Result) bool {
				resolved := strings.ReplaceAll(outputTemplate, "&", k.String())
				out, err = sjson.SetBytes(out, resolved, v.Value())
				return err == nil
			})
			return out, err
		}
		return outputJSON, nil
	}

	value := gjson.GetBytes(inputJSON, gjsonPath(joinPath(inputPath, inputKey)))
	if !value.Exists() {
		return outputJSON, nil
	}
	resolved := strings.ReplaceAll(outputTemplate, "&", inputKey)
	return sjson.SetBytes(outputJSON, resolved, value.Value())
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

// gjsonPath converts a dot path into gjson's own dot syntax, which is
// already the format Harmony builds, so this is currently an identity
// conversion kept as its own function for the one place a future escaping
// rule (keys containing literal dots) would need to change.
func gjsonPath(p string) string { return p }
