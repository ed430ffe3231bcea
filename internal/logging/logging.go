// Package logging constructs the relayer's shared zap logger and redacts
// sensitive fields before they reach a log call site, the way the
// teacher's services build one *zap.Logger in their constructors
// (contract-invocation-processor/go/server/server.go NewContractInvocationServer)
// and thread it through by reference.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// sensitiveKeys are field names whose values must never reach a log
// sink verbatim: nullifiers and commitments identify a voter's secret
// material, proofs are large and uninformative, secrets/tokens are
// credentials.
var sensitiveKeys = []string{"nullifier", "commitment", "proof", "secret", "token"}

// New builds the production zap logger used across the relayer. dev
// selects the human-readable development encoder instead of JSON, for
// local runs.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
	return zap.NewProduction()
}

// Redact returns v unchanged unless key names sensitive material, in
// which case it returns a fixed placeholder. Call sites that log
// request payloads should run each field through this before attaching
// it, e.g. zap.String("nullifier", logging.Redact("nullifier", req.Nullifier)).
func Redact(key string, v string) string {
	lk := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lk, s) {
			if v == "" {
				return ""
			}
			return "[redacted]"
		}
	}
	return v
}

// HashIP returns a stable, non-reversible token for an IP address for
// logs, when IP hashing is enabled (§7: "hash IPs when enabled"). It is
// intentionally not cryptographic; it only needs to avoid storing raw
// IPs in plaintext logs while still letting operators correlate repeated
// requests from the same address.
func HashIP(ip string) string {
	if ip == "" {
		return ""
	}
	var h uint32 = 2166136261
	for i := 0; i < len(ip); i++ {
		h ^= uint32(ip[i])
		h *= 16777619
	}
	const hex = "0123456789abcdef"
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = hex[h&0xf]
		h >>= 4
	}
	return string(buf)
}
