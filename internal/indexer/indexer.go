// Package indexer runs the relayer's two background reconciliation
// loops: poll (ingest on-chain events, advance the watermark) and verify
// (resolve client-notified pending events against the chain). Grounded
// in the ticker-driven poll loop of
// stellar-live-source/go/server/server.go, which already owns a
// "read watermark, call RPC, advance watermark" cycle for ledger
// ingestion; Indexer keeps that shape and adds the notify/verify state
// machine spec.md §4.6 layers on top.
package indexer

import (
	"context"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/withobsrvr/zkvote-relayer/internal/chainclient"
	"github.com/withobsrvr/zkvote-relayer/internal/domain"
	"github.com/withobsrvr/zkvote-relayer/internal/metrics"
	"github.com/withobsrvr/zkvote-relayer/internal/relayererr"
	"github.com/withobsrvr/zkvote-relayer/internal/store"
)

const (
	watermarkMetaKey    = "last_ledger"
	verifyBatchSize     = 10
	getEventsPageLimit  = 100
)

// chainPort narrows chainclient.Client to the read-only calls the
// Indexer drives.
type chainPort interface {
	LatestLedger(ctx context.Context) (uint32, error)
	GetEvents(ctx context.Context, contractIDs []string, startLedger, endLedger uint32) ([]chainclient.RawEvent, error)
	PollTx(ctx context.Context, hash string) (chainclient.PollResult, error)
}

// storePort narrows store.Store to the calls the Indexer drives.
type storePort interface {
	AddEvent(ctx context.Context, kind string, orgID uint64, payload map[string]any, ledger *uint32, txHash string, verified bool) (store.AddResult, error)
	AddPendingEvent(ctx context.Context, orgID uint64, kind string, payload map[string]any, txHash string) (store.AddResult, error)
	MarkVerified(ctx context.Context, txHash string, ledger uint32) error
	DeletePending(ctx context.Context, txHash string) error
	ListUnverified(ctx context.Context, limit int) ([]domain.Event, error)
	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
}

// MembershipRefresher is the Syncer's event-triggered-refresh entry
// point (§4.7): the Indexer calls it once a membership-mutating event is
// verified. Kept as an interface so Indexer never imports Syncer.
type MembershipRefresher interface {
	RefreshMember(ctx context.Context, orgID uint64) error
}

// Indexer owns the watermark and runs the poll/verify loops. It is safe
// for the poll and verify ticks to run sequentially on the same
// goroutine (as Run does) or be driven independently by tests.
type Indexer struct {
	chain       chainPort
	store       storePort
	contractIDs []string
	refresher   MembershipRefresher
	logger      *zap.Logger

	pollInterval time.Duration
}

// New constructs an Indexer. refresher may be nil (e.g. in tests, or
// before the Syncer is wired up) — verify simply skips the membership
// refresh step.
func New(chain *chainclient.Client, st *store.Store, contractIDs []string, pollInterval time.Duration, refresher MembershipRefresher, logger *zap.Logger) *Indexer {
	return &Indexer{
		chain:        chain,
		store:        st,
		contractIDs:  contractIDs,
		refresher:    refresher,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

// Run drives the poll and verify loops on a single ticker until ctx is
// cancelled, matching §4.6's "same tick, after poll" ordering.
func (ix *Indexer) Run(ctx context.Context) {
	ticker := time.NewTicker(ix.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ix.Poll(ctx)
			ix.Verify(ctx)
		}
	}
}

// Poll advances the watermark by one sweep: read last_ledger, fetch the
// latest ledger, query get_events for every watched contract in
// (watermark, latest], parse and insert each, then advance the
// watermark. On any RPC failure the sweep is abandoned without moving
// the watermark (§4.6 backpressure).
func (ix *Indexer) Poll(ctx context.Context) {
	watermark, err := ix.loadWatermark(ctx)
	if err != nil {
		ix.logger.Warn("poll: failed to load watermark", zap.Error(err))
		metrics.IndexerPollErrors.Inc()
		return
	}

	latest, err := ix.chain.LatestLedger(ctx)
	if err != nil {
		ix.logger.Warn("poll: failed to fetch latest ledger", zap.Error(err))
		metrics.IndexerPollErrors.Inc()
		return
	}
	if latest <= watermark {
		return
	}

	events, err := ix.chain.GetEvents(ctx, ix.contractIDs, watermark+1, latest)
	if err != nil {
		ix.logger.Warn("poll: get_events failed", zap.Error(err))
		metrics.IndexerPollErrors.Inc()
		return
	}

	for _, raw := range events {
		parsed, err := parseRawEvent(raw.Topics, raw.Value)
		if err != nil {
			ix.logger.Info("poll: skipping unparseable event", zap.String("tx_hash", raw.TxHash), zap.Error(err))
			continue
		}
		ledger := raw.Ledger
		if _, err := ix.store.AddEvent(ctx, parsed.Kind, parsed.OrgID, parsed.Payload, &ledger, raw.TxHash, true); err != nil {
			ix.logger.Warn("poll: failed to persist event", zap.String("tx_hash", raw.TxHash), zap.Error(err))
			continue
		}
		metrics.IndexerEventsIngested.Inc()
	}

	if err := ix.saveWatermark(ctx, latest); err != nil {
		ix.logger.Warn("poll: failed to advance watermark", zap.Error(err))
		return
	}
	metrics.IndexerWatermark.Set(float64(latest))
}

// Verify resolves up to verifyBatchSize pending (notified but unverified)
// events against the chain: success promotes the row, failed deletes it,
// not_found leaves it for the next tick.
func (ix *Indexer) Verify(ctx context.Context) {
	pending, err := ix.store.ListUnverified(ctx, verifyBatchSize)
	if err != nil {
		ix.logger.Warn("verify: failed to list unverified events", zap.Error(err))
		return
	}

	for _, ev := range pending {
		res, err := ix.chain.PollTx(ctx, ev.TxHash)
		if err != nil {
			ix.logger.Info("verify: poll_tx failed, retrying next tick", zap.String("tx_hash", ev.TxHash), zap.Error(err))
			continue
		}

		switch res.Outcome {
		case chainclient.PollSuccess:
			if err := ix.store.MarkVerified(ctx, ev.TxHash, res.Ledger); err != nil {
				ix.logger.Warn("verify: failed to mark event verified", zap.String("tx_hash", ev.TxHash), zap.Error(err))
				continue
			}
			metrics.PendingEventsVerified.WithLabelValues("success").Inc()
			ix.triggerMembershipRefresh(ctx, ev)
		case chainclient.PollFailed:
			if err := ix.store.DeletePending(ctx, ev.TxHash); err != nil {
				ix.logger.Warn("verify: failed to delete failed pending event", zap.String("tx_hash", ev.TxHash), zap.Error(err))
				continue
			}
			metrics.PendingEventsVerified.WithLabelValues("failed").Inc()
		case chainclient.PollNotFound:
			// leave for the next tick
		}
	}
}

func (ix *Indexer) triggerMembershipRefresh(ctx context.Context, ev domain.Event) {
	if ix.refresher == nil || !domain.MembershipMutatingKinds[ev.Kind] {
		return
	}
	if err := ix.refresher.RefreshMember(ctx, ev.OrgID); err != nil {
		ix.logger.Warn("verify: membership refresh failed", zap.Uint64("org_id", ev.OrgID), zap.Error(err))
	}
}

// NotifyEvent implements submitter.Notifier: it records a just-sent
// transaction as pending so the verify loop can reconcile it (§4.5 step
// 10, §6 notify_event). txHash must be 64 hex characters; anything else
// is rejected with a ValidationError before the store is touched.
func (ix *Indexer) NotifyEvent(ctx context.Context, orgID uint64, kind string, payload map[string]any, txHash string) error {
	if len(txHash) != 64 {
		return relayererr.Validation("tx_hash must be 64 hex characters")
	}
	if _, err := hex.DecodeString(txHash); err != nil {
		return relayererr.Validation("tx_hash must be 64 hex characters")
	}
	_, err := ix.store.AddPendingEvent(ctx, orgID, kind, payload, txHash)
	return err
}

// AddManualEvent inserts a verified event with a synthetic tx hash, for
// operator tooling only (§6).
func (ix *Indexer) AddManualEvent(ctx context.Context, orgID uint64, kind string, payload map[string]any) error {
	txHash := syntheticTxHash("manual", orgID, kind)
	_, err := ix.store.AddEvent(ctx, kind, orgID, payload, nil, txHash, true)
	return err
}

// Status is the Indexer's read-side status. It carries only the
// watermark; event totals and org counts are not part of it.
type Status struct {
	Watermark uint32
}

func (ix *Indexer) Status(ctx context.Context) (Status, error) {
	watermark, err := ix.loadWatermark(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Watermark: watermark}, nil
}

func (ix *Indexer) loadWatermark(ctx context.Context) (uint32, error) {
	v, ok, err := ix.store.GetMeta(ctx, watermarkMetaKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, err := parseUint32(v)
	if err != nil {
		return 0, relayererr.Internal("corrupt watermark metadata", err)
	}
	return n, nil
}

func (ix *Indexer) saveWatermark(ctx context.Context, ledger uint32) error {
	return ix.store.SetMeta(ctx, watermarkMetaKey, formatUint32(ledger))
}
