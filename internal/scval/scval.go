// Package scval builds and reads the xdr.ScVal shapes the relayer's
// contract ABI uses: encoding native Go values into ScVal for outgoing
// invoke-host-function arguments, and decoding ScVal back into native
// values for incoming view-call results. The encode direction mirrors
// (in reverse) the type switch
// contract-invocation-processor/go/server/scval_converter.go uses to
// read ScVal into protobuf values.
package scval

import (
	"fmt"

	"github.com/stellar/go/xdr"
)

func U64(v uint64) xdr.ScVal {
	u := xdr.Uint64(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvU64, U64: &u}
}

func Bool(v bool) xdr.ScVal {
	b := xdr.Bool(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvBool, B: &b}
}

func Bytes(b []byte) xdr.ScVal {
	sb := xdr.ScBytes(b)
	return xdr.ScVal{Type: xdr.ScValTypeScvBytes, Bytes: &sb}
}

func String(s string) xdr.ScVal {
	ss := xdr.ScString(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &ss}
}

// OptU64 encodes a nullable u64 (e.g. a comment's parent_id) as Void
// when absent, U64 when present.
func OptU64(v *uint64) xdr.ScVal {
	if v == nil {
		return xdr.ScVal{Type: xdr.ScValTypeScvVoid}
	}
	return U64(*v)
}

// AsU64 reads a U32 or U64 ScVal as a Go uint64, erroring on any other
// type. Used to decode registry/membership view-call return values.
func AsU64(v xdr.ScVal) (uint64, error) {
	switch v.Type {
	case xdr.ScValTypeScvU64:
		return uint64(v.MustU64()), nil
	case xdr.ScValTypeScvU32:
		return uint64(v.MustU32()), nil
	default:
		return 0, fmt.Errorf("expected numeric ScVal, got %s", v.Type.String())
	}
}

// AsString reads a Symbol or String ScVal as a Go string.
func AsString(v xdr.ScVal) (string, error) {
	switch v.Type {
	case xdr.ScValTypeScvString:
		return string(v.MustStr()), nil
	case xdr.ScValTypeScvSymbol:
		return string(v.MustSym()), nil
	default:
		return "", fmt.Errorf("expected string-like ScVal, got %s", v.Type.String())
	}
}

// AsBool reads a Bool ScVal as a Go bool.
func AsBool(v xdr.ScVal) (bool, error) {
	if v.Type != xdr.ScValTypeScvBool {
		return false, fmt.Errorf("expected bool ScVal, got %s", v.Type.String())
	}
	return bool(v.MustB()), nil
}

// Vec returns the elements of a Vec ScVal, or nil for an empty/absent
// vector.
func Vec(v xdr.ScVal) ([]xdr.ScVal, error) {
	if v.Type != xdr.ScValTypeScvVec {
		return nil, fmt.Errorf("expected vec ScVal, got %s", v.Type.String())
	}
	vec := v.MustVec()
	if vec == nil {
		return nil, nil
	}
	return []xdr.ScVal(*vec), nil
}

// MapField looks up a named field within a Map ScVal whose keys are
// symbols or strings, as Soroban contract structs are represented.
func MapField(v xdr.ScVal, field string) (xdr.ScVal, bool) {
	if v.Type != xdr.ScValTypeScvMap {
		return xdr.ScVal{}, false
	}
	m := v.MustMap()
	if m == nil {
		return xdr.ScVal{}, false
	}
	for _, entry := range *m {
		key, err := AsString(entry.Key)
		if err == nil && key == field {
			return entry.Val, true
		}
	}
	return xdr.ScVal{}, false
}
