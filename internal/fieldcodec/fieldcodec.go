// Package fieldcodec converts between user-facing hex and the contract
// ABI's fixed-width byte encodings for BN254 scalar-field elements and
// curve points. It is pure: no I/O, no suspension points, every
// malformed input maps to exactly one named error.
//
// The BN254 scalar field modulus and the A/B/C point layout are fixed by
// the zk-verification host the relayer submits proofs to; no example in
// the retrieval pack exposes a ready-made codec at this narrow a scope
// (gnark-crypto, seen elsewhere in the pack, operates on its own field
// element types rather than raw hex/ABI bytes), so this package is built
// directly on math/big against the modulus from spec.md §3.
package fieldcodec

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/withobsrvr/zkvote-relayer/internal/domain"
	"github.com/withobsrvr/zkvote-relayer/internal/relayererr"
)

// FieldBytes is the width of a canonical in-memory field element.
const FieldBytes = 32

// G1Bytes and G2Bytes are the ABI widths of the two point kinds.
const (
	G1Bytes = 64
	G2Bytes = 128
)

// Modulus is the BN254 scalar field modulus r (spec.md §3).
var Modulus, _ = new(big.Int).SetString(
	"21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

// EncodeField parses a hex string (optionally "0x"-prefixed) into its
// canonical 32-byte big-endian form. Odd-length input is left-padded with
// one "0" (so "1" and "0" are accepted); non-hex input or more than 32
// bytes is a ValidationError, and any value >= Modulus is FieldRange.
func EncodeField(h string) ([FieldBytes]byte, error) {
	var out [FieldBytes]byte
	clean := strip0x(h)
	if clean == "" {
		clean = "0"
	}
	if len(clean)%2 != 0 {
		clean = "0" + clean
	}
	if len(clean) > FieldBytes*2 {
		return out, relayererr.Validation("field element exceeds 32 bytes")
	}
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return out, relayererr.Validation("field element is not valid hex: " + err.Error())
	}
	v := new(big.Int).SetBytes(raw)
	if v.Cmp(Modulus) >= 0 {
		return out, relayererr.FieldRange("field element >= BN254 scalar modulus")
	}
	v.FillBytes(out[:])
	return out, nil
}

// DecodeField renders a 32-byte field element back to its normalized hex
// form: lowercase, no "0x" prefix, left-padded to 64 characters. This is
// the inverse used by list_events-adjacent read paths and by the
// round-trip law encode_field . decode_field == normalize.
func DecodeField(b [FieldBytes]byte) string {
	return hex.EncodeToString(b[:])
}

// Normalize applies the same canonicalization decode_field produces,
// directly to a hex string, for the round-trip law in §8.
func Normalize(h string) (string, error) {
	b, err := EncodeField(h)
	if err != nil {
		return "", err
	}
	return DecodeField(b), nil
}

// EncodeG1 parses a 128-hex-character (64-byte) G1 point: be(X)||be(Y).
// An all-zero encoding (point at infinity) is rejected.
func EncodeG1(h string) ([G1Bytes]byte, error) {
	var out [G1Bytes]byte
	if err := decodeFixed(h, out[:]); err != nil {
		return out, err
	}
	if isZero(out[:]) {
		return out, relayererr.PointAtInfinity("G1 point is the identity (all-zero encoding)")
	}
	return out, nil
}

// EncodeG2 parses a 256-hex-character (128-byte) G2 point:
// be(X_c1)||be(X_c0)||be(Y_c1)||be(Y_c0). An all-zero encoding is
// rejected.
func EncodeG2(h string) ([G2Bytes]byte, error) {
	var out [G2Bytes]byte
	if err := decodeFixed(h, out[:]); err != nil {
		return out, err
	}
	if isZero(out[:]) {
		return out, relayererr.PointAtInfinity("G2 point is the identity (all-zero encoding)")
	}
	return out, nil
}

// EncodeProof validates and encodes all three Groth16 components. A zero
// component is rejected by EncodeG1/EncodeG2 with PointAtInfinity, so a
// proof with any all-zero component never encodes; there is no separate
// whole-proof check.
func EncodeProof(p domain.Proof) (domain.EncodedProof, error) {
	var out domain.EncodedProof
	a, err := EncodeG1(p.A)
	if err != nil {
		return out, err
	}
	b, err := EncodeG2(p.B)
	if err != nil {
		return out, err
	}
	c, err := EncodeG1(p.C)
	if err != nil {
		return out, err
	}
	out.A, out.B, out.C = a, b, c
	return out, nil
}

// DecodeProof is the inverse of EncodeProof, used by the round-trip law
// encode_proof . decode_proof == id on well-formed proofs.
func DecodeProof(e domain.EncodedProof) domain.Proof {
	return domain.Proof{
		A: hex.EncodeToString(e.A[:]),
		B: hex.EncodeToString(e.B[:]),
		C: hex.EncodeToString(e.C[:]),
	}
}

func decodeFixed(h string, out []byte) error {
	clean := strip0x(h)
	if len(clean) != len(out)*2 {
		return relayererr.Validation("point has wrong hex length")
	}
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return relayererr.Validation("point is not valid hex: " + err.Error())
	}
	copy(out, raw)
	return nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func strip0x(h string) string {
	h = strings.TrimSpace(h)
	if strings.HasPrefix(h, "0x") || strings.HasPrefix(h, "0X") {
		return h[2:]
	}
	return h
}
