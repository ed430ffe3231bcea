package indexer

import (
	"fmt"
	"strconv"
)

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

func formatUint32(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

// syntheticTxHash produces a stable placeholder tx_hash for
// operator-inserted or Syncer-synthesized events (§4.6, §6). It is not a
// real transaction hash and is recognizable by its "synthetic:" prefix.
func syntheticTxHash(source string, orgID uint64, kind string) string {
	return fmt.Sprintf("synthetic:%s:%d:%s", source, orgID, kind)
}
