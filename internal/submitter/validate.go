package submitter

import (
	"github.com/withobsrvr/zkvote-relayer/internal/domain"
	"github.com/withobsrvr/zkvote-relayer/internal/relayererr"
)

const maxContentRefLen = 2048

// validateVoteShape checks step-1 shape constraints (spec.md §4.5.1)
// before any field/point encoding is attempted.
func validateVoteShape(req domain.VoteRequest) error {
	if req.OrgID == 0 {
		return relayererr.Validation("org_id is required")
	}
	if req.ProposalID == 0 {
		return relayererr.Validation("proposal_id is required")
	}
	if req.Nullifier == "" {
		return relayererr.Validation("nullifier is required")
	}
	if req.Root == "" {
		return relayererr.Validation("root is required")
	}
	if req.Proof.A == "" || req.Proof.B == "" || req.Proof.C == "" {
		return relayererr.Validation("proof must carry all three components")
	}
	return nil
}

func validateCommentShape(req domain.CommentRequest) error {
	if req.OrgID == 0 {
		return relayererr.Validation("org_id is required")
	}
	if req.ProposalID == 0 {
		return relayererr.Validation("proposal_id is required")
	}
	if req.ContentRef == "" {
		return relayererr.Validation("content_ref is required")
	}
	if len(req.ContentRef) > maxContentRefLen {
		return relayererr.Validation("content_ref exceeds maximum length")
	}
	if req.Nullifier == "" {
		return relayererr.Validation("nullifier is required")
	}
	if req.Root == "" {
		return relayererr.Validation("root is required")
	}
	if req.Commitment == "" {
		return relayererr.Validation("commitment is required")
	}
	if req.Proof.A == "" || req.Proof.B == "" || req.Proof.C == "" {
		return relayererr.Validation("proof must carry all three components")
	}
	return nil
}
