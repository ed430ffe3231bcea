package submitter

import (
	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/zkvote-relayer/internal/scval"
)

func abiU64(v uint64) xdr.ScVal       { return scval.U64(v) }
func abiBool(v bool) xdr.ScVal        { return scval.Bool(v) }
func abiBytes(b []byte) xdr.ScVal     { return scval.Bytes(b) }
func abiString(s string) xdr.ScVal    { return scval.String(s) }
func abiOptU64(v *uint64) xdr.ScVal   { return scval.OptU64(v) }
