// Package fingerprint derives cache keys from an operation name and its parameters.
package fingerprint

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Build returns a 16-character hex fingerprint of operation and params.
// Params are serialized with keys in lexicographic order, so map iteration order never
// affects the result.
func Build(operation string, params map[string]any) string {
	h := xxhash.New()
	_, _ = h.WriteString(operation)
	_, _ = h.WriteString(":")
	_, _ = h.Write(serialize(params))
	return fmt.Sprintf("%016x", h.Sum64())
}

// serialize encodes params as JSON. encoding/json writes map keys sorted. Values json cannot
// encode fall back to their %v form so Build stays total.
func serialize(params map[string]any) []byte {
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err == nil {
		return b
	}
	safe := make(map[string]string, len(params))
	for k, v := range params {
		safe[k] = fmt.Sprintf("%v", v)
	}
	b, _ = json.Marshal(safe)
	return b
}
