// Package orchestrator wires the relayer's components together and owns
// their shared lifecycle: construct Store and ChainClient, spawn the
// Indexer's and Syncer's background loops under one errgroup, and bring
// everything down cleanly on shutdown. Grounded in the same
// spawn-and-wait shape stellar-live-source/go/server/server.go uses for
// its streaming goroutines, generalized here to golang.org/x/sync/errgroup
// since the relayer has two independent periodic loops (plus a third,
// membership-sync, ticker) rather than one stream.
package orchestrator

import (
	"context"
	"time"

	"github.com/stellar/go/keypair"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/withobsrvr/zkvote-relayer/internal/chainclient"
	"github.com/withobsrvr/zkvote-relayer/internal/config"
	"github.com/withobsrvr/zkvote-relayer/internal/indexer"
	"github.com/withobsrvr/zkvote-relayer/internal/store"
	"github.com/withobsrvr/zkvote-relayer/internal/submitter"
	"github.com/withobsrvr/zkvote-relayer/internal/syncer"
	"github.com/withobsrvr/zkvote-relayer/internal/txbuilder"
)

// Orchestrator holds every long-lived collaborator and the cancellation
// plumbing for the relayer's two background sweeps (§4.8). Submitter is
// reachable through it but never runs on a background goroutine of its
// own — callers invoke SubmitVote/SubmitAnonymousComment synchronously
// in their own request context.
type Orchestrator struct {
	cfg    *config.Config
	logger *zap.Logger

	store  *store.Store
	chain  *chainclient.Client
	signer *keypair.Full

	Submitter *submitter.Submitter
	Indexer   *indexer.Indexer
	Syncer    *syncer.Syncer

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New builds every component but does not start the background loops —
// call Start for that. Config is assumed already validated
// (config.Load calls Validate itself).
func New(cfg *config.Config, logger *zap.Logger) (*Orchestrator, error) {
	signer, err := txbuilder.LoadSigner(cfg.RelayerSecretKey)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(context.Background(), cfg.DataDir+"/relayer.db")
	if err != nil {
		return nil, err
	}

	chain := chainclient.New(cfg.RPCURL, cfg.RPCTimeout, logger)

	contractIDs := []string{cfg.VotingContractID, cfg.TreeContractID, cfg.CommentsContractID}
	if cfg.RegistryContractID != "" {
		contractIDs = append(contractIDs, cfg.RegistryContractID)
	}
	if cfg.MembershipContractID != "" {
		contractIDs = append(contractIDs, cfg.MembershipContractID)
	}

	sy := syncer.New(
		chain,
		st,
		signer,
		cfg.NetworkPassphrase,
		cfg.RegistryContractID,
		cfg.MembershipContractID,
		cfg.OrgSyncInterval,
		cfg.MembershipSyncInterval,
		logger,
	)

	ix := indexer.New(chain, st, contractIDs, cfg.IndexerPollInterval, sy, logger)

	sub := submitter.New(
		chain,
		signer,
		cfg.NetworkPassphrase,
		cfg.VotingContractID,
		cfg.CommentsContractID,
		ix,
		logger,
	)

	return &Orchestrator{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		chain:     chain,
		signer:    signer,
		Submitter: sub,
		Indexer:   ix,
		Syncer:    sy,
	}, nil
}

// Start spawns the Indexer's poll/verify loop and both Syncer loops, each
// on its own goroutine under a shared errgroup, bound to a context
// derived from ctx. Start returns once the loops are launched; it does
// not block.
func (o *Orchestrator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	group, runCtx := errgroup.WithContext(runCtx)
	o.group = group

	group.Go(func() error {
		o.Indexer.Run(runCtx)
		return nil
	})
	group.Go(func() error {
		o.Syncer.RunOrgSync(runCtx)
		return nil
	})
	group.Go(func() error {
		o.Syncer.RunMembershipSync(runCtx)
		return nil
	})

	o.logger.Info("orchestrator started",
		zap.Duration("indexer_poll_interval", o.cfg.IndexerPollInterval),
		zap.Duration("org_sync_interval", o.cfg.OrgSyncInterval),
		zap.Duration("membership_sync_interval", o.cfg.MembershipSyncInterval),
	)
}

// Stop signals cancellation to every background loop, waits up to a
// grace period derived from rpc_timeout_ms for them to reach a
// quiescent point, then closes the Store (§4.8). Safe to call once;
// repeated calls are a no-op aside from re-closing the Store.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if o.cancel != nil {
		o.cancel()
	}

	if o.group != nil {
		done := make(chan struct{})
		go func() {
			o.group.Wait()
			close(done)
		}()

		grace := o.cfg.RPCTimeout
		if grace <= 0 {
			grace = 10 * time.Second
		}
		select {
		case <-done:
		case <-time.After(grace):
			o.logger.Warn("orchestrator stop: background loops did not quiesce within grace period", zap.Duration("grace", grace))
		case <-ctx.Done():
		}
	}

	o.logger.Info("orchestrator stopped")
	return o.store.Close()
}

// Status reports a minimal snapshot of background-loop progress, for the
// relayer's operational surface (§6 indexer_status).
type Status struct {
	IndexerWatermark uint32
	OrgCount         int
}

func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	ixStatus, err := o.Indexer.Status(ctx)
	if err != nil {
		return Status{}, err
	}
	n, err := o.store.OrgsCount(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{IndexerWatermark: ixStatus.Watermark, OrgCount: n}, nil
}
