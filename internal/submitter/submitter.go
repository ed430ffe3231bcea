// Package submitter is the relayer's write pipeline: validate, encode,
// load the relayer account, build the contract-invoke ABI args, simulate,
// sign, send, confirm, classify, notify. Grounded in the same
// RPC-plus-retry shape chainclient wraps from
// stellar-live-source/go/server/server.go, extended here with the
// submit-specific steps spec.md §4.5 names.
//
// The Submitter holds no long-lived state beyond its collaborators and
// the sequence mutex; every call is a self-contained pipeline run bound
// to the caller's context.
package submitter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
	"go.uber.org/zap"

	"github.com/withobsrvr/zkvote-relayer/internal/chainclient"
	"github.com/withobsrvr/zkvote-relayer/internal/domain"
	"github.com/withobsrvr/zkvote-relayer/internal/fieldcodec"
	"github.com/withobsrvr/zkvote-relayer/internal/metrics"
	"github.com/withobsrvr/zkvote-relayer/internal/relayererr"
	"github.com/withobsrvr/zkvote-relayer/internal/txbuilder"
)

const validityWindow = 30 * time.Second

const (
	fnCastVote             = "cast_vote"
	fnPostAnonymousComment = "post_anonymous_comment"
)

// chainPort is the subset of chainclient.Client the pipeline drives,
// narrowed to an interface so tests can substitute a fake RPC backend —
// the same seam contract-data-processor/go/server/stream_manager.go uses
// for its LedgerProcessor dependency.
type chainPort interface {
	LoadAccount(ctx context.Context, address string) (chainclient.Account, error)
	Simulate(ctx context.Context, tx *txnbuild.Transaction) (chainclient.SimulateResult, error)
	Send(ctx context.Context, tx *txnbuild.Transaction) (chainclient.SendResult, error)
	WaitTx(ctx context.Context, hash string) (chainclient.PollResult, error)
}

// Notifier is the subset of the Indexer's API the Submitter depends on:
// recording a just-submitted transaction as pending so the verify loop
// can reconcile it against the chain (spec.md §4.5 step 10). Kept as an
// interface here so Submitter never imports Indexer directly.
type Notifier interface {
	NotifyEvent(ctx context.Context, orgID uint64, kind string, payload map[string]any, txHash string) error
}

// Submitter is stateless apart from its collaborators and the sequence
// mutex guarding steps 3-7 of the pipeline (account load through send).
type Submitter struct {
	chain               chainPort
	signer              *keypair.Full
	networkPassphrase   string
	votingContractID    string
	commentsContractID  string
	notifier            Notifier
	logger              *zap.Logger

	seqMu sync.Mutex
}

// New constructs a Submitter. signer is held by reference for the
// lifetime of the process and never logged (spec.md §5, §7).
func New(
	chain *chainclient.Client,
	signer *keypair.Full,
	networkPassphrase string,
	votingContractID string,
	commentsContractID string,
	notifier Notifier,
	logger *zap.Logger,
) *Submitter {
	return &Submitter{
		chain:              chain,
		signer:             signer,
		networkPassphrase:  networkPassphrase,
		votingContractID:   votingContractID,
		commentsContractID: commentsContractID,
		notifier:           notifier,
		logger:             logger,
	}
}

// SubmitVote runs the full submit pipeline for a single vote cast.
func (s *Submitter) SubmitVote(ctx context.Context, req domain.VoteRequest) (domain.Outcome, error) {
	reqID := uuid.NewString()
	log := s.logger.With(zap.String("request_id", reqID), zap.String("op", "submit_vote"))

	if err := validateVoteShape(req); err != nil {
		return domain.Outcome{}, err
	}

	encProof, err := fieldcodec.EncodeProof(req.Proof)
	if err != nil {
		return domain.Outcome{}, err
	}
	nullifier, err := fieldcodec.EncodeField(req.Nullifier)
	if err != nil {
		return domain.Outcome{}, err
	}
	root, err := fieldcodec.EncodeField(req.Root)
	if err != nil {
		return domain.Outcome{}, err
	}

	args := txbuilder.Args{
		ContractID:   s.votingContractID,
		FunctionName: fnCastVote,
		Values: []xdr.ScVal{
			abiU64(req.OrgID),
			abiU64(req.ProposalID),
			abiBool(req.Choice),
			abiBytes(nullifier[:]),
			abiBytes(root[:]),
			abiBytes(encProof.A[:]),
			abiBytes(encProof.B[:]),
			abiBytes(encProof.C[:]),
		},
	}

	outcome, hash, err := s.runPipeline(ctx, log, "submit_vote", args)
	if err != nil {
		return outcome, err
	}

	if outcome.Status == domain.StatusSuccess && s.notifier != nil {
		payload := map[string]any{"org_id": req.OrgID, "proposal_id": req.ProposalID}
		if nerr := s.notifier.NotifyEvent(ctx, req.OrgID, domain.KindVoteCast, payload, hash); nerr != nil {
			log.Warn("failed to notify indexer of successful vote submission", zap.Error(nerr))
		}
	}
	return outcome, nil
}

// SubmitAnonymousComment runs the full submit pipeline for an anonymous
// comment/vote-on-proposal post.
func (s *Submitter) SubmitAnonymousComment(ctx context.Context, req domain.CommentRequest) (domain.Outcome, error) {
	reqID := uuid.NewString()
	log := s.logger.With(zap.String("request_id", reqID), zap.String("op", "submit_comment_anonymous"))

	if err := validateCommentShape(req); err != nil {
		return domain.Outcome{}, err
	}

	encProof, err := fieldcodec.EncodeProof(req.Proof)
	if err != nil {
		return domain.Outcome{}, err
	}
	nullifier, err := fieldcodec.EncodeField(req.Nullifier)
	if err != nil {
		return domain.Outcome{}, err
	}
	root, err := fieldcodec.EncodeField(req.Root)
	if err != nil {
		return domain.Outcome{}, err
	}
	commitment, err := fieldcodec.EncodeField(req.Commitment)
	if err != nil {
		return domain.Outcome{}, err
	}

	args := txbuilder.Args{
		ContractID:   s.commentsContractID,
		FunctionName: fnPostAnonymousComment,
		Values: []xdr.ScVal{
			abiU64(req.OrgID),
			abiU64(req.ProposalID),
			abiString(req.ContentRef),
			abiOptU64(req.ParentID),
			abiBool(req.VoteChoice),
			abiBytes(nullifier[:]),
			abiBytes(root[:]),
			abiBytes(commitment[:]),
			abiBytes(encProof.A[:]),
			abiBytes(encProof.B[:]),
			abiBytes(encProof.C[:]),
		},
	}

	outcome, hash, err := s.runPipeline(ctx, log, "submit_comment_anonymous", args)
	if err != nil {
		return outcome, err
	}

	if outcome.Status == domain.StatusSuccess && s.notifier != nil {
		payload := map[string]any{"org_id": req.OrgID, "proposal_id": req.ProposalID, "content_ref": req.ContentRef}
		if nerr := s.notifier.NotifyEvent(ctx, req.OrgID, domain.KindCommentPosted, payload, hash); nerr != nil {
			log.Warn("failed to notify indexer of successful comment submission", zap.Error(nerr))
		}
	}
	return outcome, nil
}

// runPipeline executes steps 3-9: account load through classification.
// Steps 3-7 (load_account through send) run under the sequence mutex
// since they share the relayer's single keypair and its sequence number;
// wait_tx runs outside the lock so a slow confirmation does not stall
// other callers' sends.
func (s *Submitter) runPipeline(ctx context.Context, log *zap.Logger, op string, args txbuilder.Args) (domain.Outcome, string, error) {
	start := time.Now()
	outcome, hash, err := s.runPipelineUninstrumented(ctx, log, args)
	metrics.SubmissionDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.SubmissionsTotal.WithLabelValues(op, submissionStatusLabel(outcome, err)).Inc()
	return outcome, hash, err
}

func submissionStatusLabel(outcome domain.Outcome, err error) string {
	if err != nil {
		return relayererr.CodeOf(err).String()
	}
	return outcome.Status.String()
}

func (s *Submitter) runPipelineUninstrumented(ctx context.Context, log *zap.Logger, args txbuilder.Args) (domain.Outcome, string, error) {
	sendResult, err := s.buildAndSend(ctx, log, args)
	if err != nil {
		return domain.Outcome{}, "", err
	}

	pollResult, err := s.chain.WaitTx(ctx, sendResult.Hash)
	if err != nil {
		if relayererr.CodeOf(err) == relayererr.CodeTimeout {
			return domain.Outcome{Status: domain.StatusTimeout, Hash: sendResult.Hash}, sendResult.Hash, nil
		}
		return domain.Outcome{}, "", err
	}

	switch pollResult.Outcome {
	case chainclient.PollSuccess:
		return domain.Outcome{
			Status: domain.StatusSuccess,
			Hash:   sendResult.Hash,
			Ledger: pollResult.Ledger,
		}, sendResult.Hash, nil
	case chainclient.PollFailed:
		return domain.Outcome{
			Status: domain.StatusFailed,
			Hash:   sendResult.Hash,
			Reason: pollResult.Reason,
		}, sendResult.Hash, nil
	default:
		return domain.Outcome{Status: domain.StatusTimeout, Hash: sendResult.Hash}, sendResult.Hash, nil
	}
}

// buildAndSend covers steps 3-7, held under the sequence mutex.
func (s *Submitter) buildAndSend(ctx context.Context, log *zap.Logger, args txbuilder.Args) (chainclient.SendResult, error) {
	if ctx.Err() != nil {
		return chainclient.SendResult{}, relayererr.Aborted("request cancelled before pipeline start")
	}

	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	account, err := s.chain.LoadAccount(ctx, s.signer.Address())
	if err != nil {
		return chainclient.SendResult{}, err
	}

	unsigned, err := txbuilder.Build(
		account.Address,
		account.Sequence,
		args,
		"",
		0,
		s.networkPassphrase,
		s.signer,
		validityWindow,
	)
	if err != nil {
		return chainclient.SendResult{}, err
	}

	simResult, err := s.chain.Simulate(ctx, unsigned)
	if err != nil {
		return chainclient.SendResult{}, err
	}

	signed, err := txbuilder.Build(
		account.Address,
		account.Sequence,
		args,
		simResult.TransactionDataXDR,
		simResult.MinResourceFee,
		s.networkPassphrase,
		s.signer,
		validityWindow,
	)
	if err != nil {
		return chainclient.SendResult{}, err
	}

	if ctx.Err() != nil {
		return chainclient.SendResult{}, relayererr.Aborted("request cancelled before send")
	}

	sendResult, err := s.chain.Send(ctx, signed)
	if err != nil {
		log.Warn("send failed", zap.Error(err))
		return sendResult, err
	}
	log.Info("transaction sent", zap.String("hash", sendResult.Hash))
	return sendResult, nil
}
