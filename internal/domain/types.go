// Package domain holds the shared record types that flow between Store,
// Indexer, Syncer, and Submitter: events, organization rows, and the
// Groth16 proof shape. None of these types perform I/O.
package domain

import "time"

// Event kinds are a closed set (§3). Unknown kinds observed on-chain are
// still stored, tagged with KindUnknown, and carry their raw topic in
// Payload["raw_kind"].
const (
	KindOrganizationCreate = "organization-create"
	KindMemberAdd          = "member-add"
	KindMemberRevoke       = "member-revoke"
	KindMemberJoin         = "member-join"
	KindMemberLeave        = "member-leave"
	KindProposalCreate     = "proposal-create"
	KindProposalClose      = "proposal-close"
	KindVoteCast           = "vote-cast"
	KindCommentPosted      = "comment-posted"
	KindUnknown            = "unknown"
)

// MembershipMutatingKinds is the set of kinds that, once verified,
// trigger Syncer.RefreshMember for the event's org (§4.7).
var MembershipMutatingKinds = map[string]bool{
	KindMemberAdd:    true,
	KindMemberRevoke: true,
	KindMemberJoin:   true,
	KindMemberLeave:  true,
}

// Event is the local, durable record of a contract event or a notified
// pending transaction. (tx_hash, kind, org_id) is the dedup key; ID is a
// monotone local identifier assigned by Store on insert.
type Event struct {
	ID         int64
	OrgID      uint64
	Kind       string
	Payload    map[string]any
	Ledger     *uint32 // nil for pending events and for manual (operator) events
	TxHash     string
	ObservedAt time.Time
	Verified   bool
}

// OrgCache mirrors an on-chain registry row.
type OrgCache struct {
	ID                uint64
	Name              string
	Admin             string
	OpenMembership    bool
	MembersCanPropose bool
	MetadataRef       string
	MemberCount       uint32
	UpdatedAt         time.Time
}

// Proof is the Groth16 (A, B, C) triple, each component still in its
// canonical hex wire form; FieldCodec turns this into the 64/128/64-byte
// ABI encoding.
type Proof struct {
	A string
	B string
	C string
}

// EncodedProof holds the binary ABI form of a Proof after FieldCodec has
// validated and encoded each component.
type EncodedProof struct {
	A [64]byte
	B [128]byte
	C [64]byte
}

// VoteRequest is the native argument shape for Submitter.SubmitVote.
type VoteRequest struct {
	OrgID      uint64
	ProposalID uint64
	Choice     bool
	Nullifier  string
	Root       string
	Proof      Proof
}

// CommentRequest is the native argument shape for
// Submitter.SubmitAnonymousComment.
type CommentRequest struct {
	OrgID       uint64
	ProposalID  uint64
	ContentRef  string
	ParentID    *uint64
	VoteChoice  bool
	Nullifier   string
	Root        string
	Commitment  string
	Proof       Proof
}

// Outcome is the classified result of a submission (§4.5 step 9).
type Outcome struct {
	Status Status
	Hash   string
	Ledger uint32
	Reason string
}

// Status is the closed outcome classification for a submission.
type Status int

const (
	StatusSuccess Status = iota + 1
	StatusFailed
	StatusTimeout
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusTimeout:
		return "timeout"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
