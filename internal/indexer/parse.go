package indexer

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/zkvote-relayer/internal/domain"
)

// topicKinds is the fixed translation table from a raw event's first
// topic (a symbol emitted by the contract) to the relayer's closed kind
// set (§3, §4.6). Topics not present here fall through to KindUnknown.
var topicKinds = map[string]string{
	"org_create":   domain.KindOrganizationCreate,
	"member_add":   domain.KindMemberAdd,
	"member_revoke": domain.KindMemberRevoke,
	"member_join":  domain.KindMemberJoin,
	"member_leave": domain.KindMemberLeave,
	"proposal_create": domain.KindProposalCreate,
	"proposal_close":  domain.KindProposalClose,
	"vote_cast":    domain.KindVoteCast,
	"comment_posted": domain.KindCommentPosted,
}

// parsedEvent is the result of translating one raw chain event, ready
// for Store.AddEvent.
type parsedEvent struct {
	Kind    string
	OrgID   uint64
	Payload map[string]any
}

// parseRawEvent reads the first topic as the kind discriminant and the
// second topic, if numeric, as the org id. The value is decoded into a
// structured payload the core does not otherwise interpret (§4.6, §6).
// An unparseable topic/value pair returns an error; callers log and skip
// it rather than block the watermark.
func parseRawEvent(topics []xdr.ScVal, value xdr.ScVal) (parsedEvent, error) {
	if len(topics) == 0 {
		return parsedEvent{}, fmt.Errorf("event has no topics")
	}

	rawKind, err := scValToSymbolOrString(topics[0])
	if err != nil {
		return parsedEvent{}, fmt.Errorf("failed to decode event kind topic: %w", err)
	}
	kind, known := topicKinds[rawKind]
	if !known {
		kind = domain.KindUnknown
	}

	var orgID uint64
	if len(topics) > 1 {
		if id, ok := scValToUint64(topics[1]); ok {
			orgID = id
		}
	}

	payloadValue, err := scValToJSON(value)
	if err != nil {
		return parsedEvent{}, fmt.Errorf("failed to decode event value: %w", err)
	}
	payload, ok := payloadValue.(map[string]any)
	if !ok {
		payload = map[string]any{"value": payloadValue}
	}
	if !known {
		payload["raw_kind"] = rawKind
	}

	return parsedEvent{Kind: kind, OrgID: orgID, Payload: payload}, nil
}

func scValToSymbolOrString(v xdr.ScVal) (string, error) {
	switch v.Type {
	case xdr.ScValTypeScvSymbol:
		return string(v.MustSym()), nil
	case xdr.ScValTypeScvString:
		return string(v.MustStr()), nil
	default:
		return "", fmt.Errorf("unexpected topic type %s", v.Type.String())
	}
}

func scValToUint64(v xdr.ScVal) (uint64, bool) {
	switch v.Type {
	case xdr.ScValTypeScvU64:
		return uint64(v.MustU64()), true
	case xdr.ScValTypeScvU32:
		return uint64(v.MustU32()), true
	default:
		return 0, false
	}
}

// scValToJSON converts an ScVal into a JSON-serializable Go value,
// mirroring contract-invocation-processor/go/server/scval_converter.go's
// ConvertScValToJSON in the same switch-on-type shape, since the
// relayer's event payload is exactly that: an opaque structured map.
func scValToJSON(v xdr.ScVal) (any, error) {
	switch v.Type {
	case xdr.ScValTypeScvVoid:
		return nil, nil
	case xdr.ScValTypeScvBool:
		return bool(v.MustB()), nil
	case xdr.ScValTypeScvU32:
		return uint32(v.MustU32()), nil
	case xdr.ScValTypeScvI32:
		return int32(v.MustI32()), nil
	case xdr.ScValTypeScvU64:
		return strconv.FormatUint(uint64(v.MustU64()), 10), nil
	case xdr.ScValTypeScvI64:
		return strconv.FormatInt(int64(v.MustI64()), 10), nil
	case xdr.ScValTypeScvBytes:
		return base64.StdEncoding.EncodeToString([]byte(v.MustBytes())), nil
	case xdr.ScValTypeScvString:
		return string(v.MustStr()), nil
	case xdr.ScValTypeScvSymbol:
		return string(v.MustSym()), nil
	case xdr.ScValTypeScvVec:
		vec := v.MustVec()
		if vec == nil {
			return []any{}, nil
		}
		out := make([]any, len(*vec))
		for i, item := range *vec {
			converted, err := scValToJSON(item)
			if err != nil {
				return nil, fmt.Errorf("vector item %d: %w", i, err)
			}
			out[i] = converted
		}
		return out, nil
	case xdr.ScValTypeScvMap:
		m := v.MustMap()
		if m == nil {
			return map[string]any{}, nil
		}
		out := make(map[string]any, len(*m))
		for _, entry := range *m {
			key, err := scValToJSON(entry.Key)
			if err != nil {
				return nil, fmt.Errorf("map key: %w", err)
			}
			val, err := scValToJSON(entry.Val)
			if err != nil {
				return nil, fmt.Errorf("map value: %w", err)
			}
			out[fmt.Sprintf("%v", key)] = val
		}
		return out, nil
	default:
		return map[string]any{"type": v.Type.String()}, nil
	}
}
