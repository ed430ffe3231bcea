package fieldcodec

import (
	"math/big"
	"strings"
	"testing"

	"github.com/withobsrvr/zkvote-relayer/internal/domain"
	"github.com/withobsrvr/zkvote-relayer/internal/relayererr"
)

func TestEncodeFieldZero(t *testing.T) {
	b, err := EncodeField("0")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, v := range b {
		if v != 0 {
			t.Fatalf("expected 32 zero bytes, got %x", b)
		}
	}
}

func TestEncodeFieldAtModulusRejected(t *testing.T) {
	_, err := EncodeField(Modulus.Text(16))
	if relayererr.CodeOf(err) != relayererr.CodeFieldRange {
		t.Fatalf("expected FieldRange, got %v", err)
	}
}

func TestEncodeFieldModulusMinusOneAccepted(t *testing.T) {
	v := new(big.Int).Sub(Modulus, big.NewInt(1))
	if _, err := EncodeField(v.Text(16)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestEncodeFieldRejectsNonHex(t *testing.T) {
	if _, err := EncodeField("0xzz"); relayererr.CodeOf(err) != relayererr.CodeValidation {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDecodeFieldRoundTrip(t *testing.T) {
	cases := []string{"0x01", "ff", "0X00ab", "1"}
	for _, h := range cases {
		b, err := EncodeField(h)
		if err != nil {
			t.Fatalf("EncodeField(%s): %v", h, err)
		}
		got := DecodeField(b)
		want, err := Normalize(h)
		if err != nil {
			t.Fatalf("Normalize(%s): %v", h, err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %s want %s", got, want)
		}
		if strings.HasPrefix(got, "0x") {
			t.Fatalf("normalized form must not carry 0x prefix: %s", got)
		}
	}
}

func TestEncodeG1RejectsAllZero(t *testing.T) {
	zeros := strings.Repeat("0", G1Bytes*2)
	if _, err := EncodeG1(zeros); relayererr.CodeOf(err) != relayererr.CodePointAtInfinity {
		t.Fatalf("expected PointAtInfinity, got %v", err)
	}
}

func TestEncodeG1RejectsWrongLength(t *testing.T) {
	if _, err := EncodeG1("01"); relayererr.CodeOf(err) != relayererr.CodeValidation {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestEncodeG2RejectsAllZero(t *testing.T) {
	zeros := strings.Repeat("0", G2Bytes*2)
	if _, err := EncodeG2(zeros); relayererr.CodeOf(err) != relayererr.CodePointAtInfinity {
		t.Fatalf("expected PointAtInfinity, got %v", err)
	}
}

func nonZeroHex(n int) string {
	s := strings.Repeat("00", n-1)
	return s + "01"
}

func TestEncodeProofRoundTrip(t *testing.T) {
	p := domain.Proof{
		A: nonZeroHex(G1Bytes),
		B: nonZeroHex(G2Bytes),
		C: nonZeroHex(G1Bytes),
	}
	enc, err := EncodeProof(p)
	if err != nil {
		t.Fatalf("EncodeProof: %v", err)
	}
	back := DecodeProof(enc)
	if back.A != p.A || back.B != p.B || back.C != p.C {
		t.Fatalf("round trip mismatch: got %+v want %+v", back, p)
	}
}

func TestEncodeProofRejectsZeroComponent(t *testing.T) {
	p := domain.Proof{
		A: strings.Repeat("0", G1Bytes*2),
		B: nonZeroHex(G2Bytes),
		C: nonZeroHex(G1Bytes),
	}
	if _, err := EncodeProof(p); relayererr.CodeOf(err) != relayererr.CodePointAtInfinity {
		t.Fatalf("expected PointAtInfinity, got %v", err)
	}
}
