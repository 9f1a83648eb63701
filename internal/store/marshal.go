package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/querydeck/internal/ir"
	"github.com/roach88/querydeck/internal/queryir"
)

// marshalPredicate converts a predicate to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so equal predicates store identical text.
func marshalPredicate(p queryir.Predicate) (string, error) {
	data, err := ir.MarshalCanonical(queryir.EncodePredicate(p))
	if err != nil {
		return "", fmt.Errorf("marshal predicate: %w", err)
	}
	return string(data), nil
}

// marshalFields converts assigned field names to canonical JSON TEXT.
func marshalFields(fields []string) (string, error) {
	arr := make(ir.IRArray, len(fields))
	for i, f := range fields {
		arr[i] = ir.IRString(f)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses the JSON TEXT written by marshalFields.
// Returns an empty slice (not nil) for an empty array.
func unmarshalFields(data string) ([]string, error) {
	fields := []string{}
	if data == "" || data == "[]" {
		return fields, nil
	}
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return fields, nil
}
