package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/caseconf/internal/ir"
)

// marshalValue converts a Value to canonical JSON TEXT for storage.
func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses a stored value.
func unmarshalValue(data string) (ir.Value, error) {
	var v ir.Value
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return ir.Value{}, fmt.Errorf("unmarshal value %q: %w", data, err)
	}
	return v, nil
}
