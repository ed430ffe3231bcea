package submitter

import (
	"context"
	"strings"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"go.uber.org/zap"

	"github.com/withobsrvr/zkvote-relayer/internal/chainclient"
	"github.com/withobsrvr/zkvote-relayer/internal/domain"
	"github.com/withobsrvr/zkvote-relayer/internal/relayererr"
)

const testContractID = "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABSC4"

type fakeChain struct {
	sendResult  chainclient.SendResult
	sendErr     error
	pollResult  chainclient.PollResult
	pollErr     error
	simErr      error
	loadErr     error
	sequence    int64
	sendCalls   int
}

func (f *fakeChain) LoadAccount(ctx context.Context, address string) (chainclient.Account, error) {
	if f.loadErr != nil {
		return chainclient.Account{}, f.loadErr
	}
	return chainclient.Account{Address: address, Sequence: f.sequence}, nil
}

func (f *fakeChain) Simulate(ctx context.Context, tx *txnbuild.Transaction) (chainclient.SimulateResult, error) {
	if f.simErr != nil {
		return chainclient.SimulateResult{}, f.simErr
	}
	return chainclient.SimulateResult{MinResourceFee: 500}, nil
}

func (f *fakeChain) Send(ctx context.Context, tx *txnbuild.Transaction) (chainclient.SendResult, error) {
	f.sendCalls++
	return f.sendResult, f.sendErr
}

func (f *fakeChain) WaitTx(ctx context.Context, hash string) (chainclient.PollResult, error) {
	return f.pollResult, f.pollErr
}

type fakeNotifier struct {
	calls []string
}

func (n *fakeNotifier) NotifyEvent(ctx context.Context, orgID uint64, kind string, payload map[string]any, txHash string) error {
	n.calls = append(n.calls, kind+":"+txHash)
	return nil
}

func newTestSubmitter(t *testing.T, chain chainPort, notifier Notifier) *Submitter {
	t.Helper()
	kp, err := keypair.Random()
	if err != nil {
		t.Fatalf("keypair.Random: %v", err)
	}
	s := New(nil, kp, network.TestNetworkPassphrase, testContractID, testContractID, notifier, zap.NewNop())
	s.chain = chain
	return s
}

func validVoteRequest() domain.VoteRequest {
	return domain.VoteRequest{
		OrgID:      1,
		ProposalID: 7,
		Choice:     true,
		Nullifier:  "01",
		Root:       "02",
		Proof: domain.Proof{
			A: strings.Repeat("11", 64),
			B: strings.Repeat("22", 128),
			C: strings.Repeat("33", 64),
		},
	}
}

func TestSubmitVoteHappyPath(t *testing.T) {
	notifier := &fakeNotifier{}
	chain := &fakeChain{
		sendResult: chainclient.SendResult{Hash: "deadbeef", Status: chainclient.SendQueued},
		pollResult: chainclient.PollResult{Outcome: chainclient.PollSuccess, Ledger: 42},
	}
	s := newTestSubmitter(t, chain, notifier)

	outcome, err := s.SubmitVote(context.Background(), validVoteRequest())
	if err != nil {
		t.Fatalf("SubmitVote: %v", err)
	}
	if outcome.Status != domain.StatusSuccess || outcome.Ledger != 42 || outcome.Hash != "deadbeef" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(notifier.calls) != 1 || notifier.calls[0] != domain.KindVoteCast+":deadbeef" {
		t.Fatalf("expected indexer notify on success, got %v", notifier.calls)
	}
}

func TestSubmitVoteFieldOutOfRangeSkipsRPC(t *testing.T) {
	chain := &fakeChain{}
	s := newTestSubmitter(t, chain, nil)

	req := validVoteRequest()
	req.Nullifier = "30644e72e131a029b85045b68181585d2833e84879b9709143e1f593f0000001"

	_, err := s.SubmitVote(context.Background(), req)
	if relayererr.CodeOf(err) != relayererr.CodeFieldRange {
		t.Fatalf("expected FieldRange, got %v", err)
	}
	if chain.sendCalls != 0 {
		t.Fatalf("expected no RPC calls issued, got %d send calls", chain.sendCalls)
	}
}

func TestSubmitVotePointAtInfinitySkipsRPC(t *testing.T) {
	chain := &fakeChain{}
	s := newTestSubmitter(t, chain, nil)

	req := validVoteRequest()
	req.Proof.A = strings.Repeat("0", 128)

	_, err := s.SubmitVote(context.Background(), req)
	if relayererr.CodeOf(err) != relayererr.CodePointAtInfinity {
		t.Fatalf("expected PointAtInfinity, got %v", err)
	}
	if chain.sendCalls != 0 {
		t.Fatalf("expected no RPC calls issued, got %d send calls", chain.sendCalls)
	}
}

func TestSubmitVoteChainRejected(t *testing.T) {
	chain := &fakeChain{
		sendResult: chainclient.SendResult{},
		sendErr:    relayererr.ChainRejected("nullifier-used"),
	}
	s := newTestSubmitter(t, chain, nil)

	_, err := s.SubmitVote(context.Background(), validVoteRequest())
	if relayererr.CodeOf(err) != relayererr.CodeChainRejected {
		t.Fatalf("expected ChainRejected, got %v", err)
	}
}

func TestSubmitVoteWaitTimeout(t *testing.T) {
	chain := &fakeChain{
		sendResult: chainclient.SendResult{Hash: "abc123", Status: chainclient.SendQueued},
		pollErr:    relayererr.Timeout("abc123"),
	}
	s := newTestSubmitter(t, chain, nil)

	outcome, err := s.SubmitVote(context.Background(), validVoteRequest())
	if err != nil {
		t.Fatalf("SubmitVote: %v", err)
	}
	if outcome.Status != domain.StatusTimeout || outcome.Hash != "abc123" {
		t.Fatalf("expected timeout outcome with hash preserved, got %+v", outcome)
	}
}

func TestSubmitAnonymousCommentHappyPath(t *testing.T) {
	notifier := &fakeNotifier{}
	chain := &fakeChain{
		sendResult: chainclient.SendResult{Hash: "commentHash", Status: chainclient.SendQueued},
		pollResult: chainclient.PollResult{Outcome: chainclient.PollSuccess, Ledger: 10},
	}
	s := newTestSubmitter(t, chain, notifier)

	parentID := uint64(3)
	req := domain.CommentRequest{
		OrgID:      1,
		ProposalID: 2,
		ContentRef: "ipfs://abc",
		ParentID:   &parentID,
		VoteChoice: true,
		Nullifier:  "05",
		Root:       "06",
		Commitment: "07",
		Proof: domain.Proof{
			A: strings.Repeat("11", 64),
			B: strings.Repeat("22", 128),
			C: strings.Repeat("33", 64),
		},
	}

	outcome, err := s.SubmitAnonymousComment(context.Background(), req)
	if err != nil {
		t.Fatalf("SubmitAnonymousComment: %v", err)
	}
	if outcome.Status != domain.StatusSuccess {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if len(notifier.calls) != 1 || notifier.calls[0] != domain.KindCommentPosted+":commentHash" {
		t.Fatalf("expected indexer notify on success, got %v", notifier.calls)
	}
}

func TestSubmitAnonymousCommentMissingContentRef(t *testing.T) {
	chain := &fakeChain{}
	s := newTestSubmitter(t, chain, nil)

	req := domain.CommentRequest{OrgID: 1, ProposalID: 2}
	_, err := s.SubmitAnonymousComment(context.Background(), req)
	if relayererr.CodeOf(err) != relayererr.CodeValidation {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
