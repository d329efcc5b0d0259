package core

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Value is a generic structured value: maps, slices and scalars as produced
// by decoding msgpack into interface{}.
type Value = interface{}

// ValueOf converts a typed struct into its generic Value form by round
// tripping it through msgpack.
func ValueOf(v interface{}) (Value, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}

	var out interface{}
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return out, nil
}
