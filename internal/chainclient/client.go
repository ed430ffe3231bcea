// Package chainclient wraps the Soroban RPC endpoint: health, account
// load, simulate (with retry), send, poll/wait for confirmation, and
// event queries. Every call carries a deadline.
//
// Grounded directly in stellar-live-source/go/server/server.go, which
// already wraps github.com/stellar/stellar-rpc/client this way
// (client.NewClient(endpoint, nil), protocol.GetLedgersRequest, its own
// retry/backoff loop around transient RPC errors). ChainClient keeps that
// shape — a *client.Client held behind a small struct, a growing
// 200*i ms backoff between simulate attempts (no jitter), zap logging per
// attempt — and extends it with the
// submission-pipeline calls (SimulateTransaction, SendTransaction,
// GetTransaction) the live-source server doesn't need.
package chainclient

import (
	"context"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
	"github.com/stellar/stellar-rpc/client"
	"github.com/stellar/stellar-rpc/protocol"
	"go.uber.org/zap"

	"github.com/withobsrvr/zkvote-relayer/internal/metrics"
	"github.com/withobsrvr/zkvote-relayer/internal/relayererr"
	"github.com/withobsrvr/zkvote-relayer/internal/txbuilder"
)

const (
	simulateMaxAttempts = 3
	simulateBackoffUnit = 200 * time.Millisecond

	waitTxPollInterval = 1 * time.Second
	waitTxMaxAttempts  = 30

	viewValidityWindow = 30 * time.Second
)

// Client wraps the RPC client with the relayer's timeout and retry
// policy. All methods are safe for concurrent use — the underlying
// stellar-rpc client is itself a stateless HTTP/JSON-RPC wrapper.
type Client struct {
	rpc     *client.Client
	timeout time.Duration
	logger  *zap.Logger
}

// New dials no connection up front (the RPC client is HTTP-based); it
// simply configures the endpoint and default per-call timeout.
func New(endpoint string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		rpc:     client.NewClient(endpoint, nil),
		timeout: timeout,
		logger:  logger,
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// Health performs a single bounded health check.
type HealthResult struct {
	OK     bool
	Detail string
}

func (c *Client) Health(ctx context.Context) (HealthResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.rpc.GetHealth(ctx)
	if err != nil {
		return HealthResult{}, relayererr.ChainTransient("health check failed", err)
	}
	ok := resp.Status == "healthy"
	return HealthResult{OK: ok, Detail: resp.Status}, nil
}

// Account is the subset of ledger-entry state the relayer needs to
// build a transaction: address and current sequence number.
type Account struct {
	Address  string
	Sequence int64
}

// LoadAccount fetches the relayer account's current sequence number via
// the RPC's ledger-entry lookup (the same read path Soroban RPC uses to
// serve horizon-equivalent account state, since the relayer does not
// depend on a separate Horizon instance).
func (c *Client) LoadAccount(ctx context.Context, address string) (Account, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	key, err := accountLedgerKey(address)
	if err != nil {
		return Account{}, relayererr.Internal("failed to build account ledger key", err)
	}

	resp, err := c.rpc.GetLedgerEntries(ctx, protocol.GetLedgerEntriesRequest{Keys: []string{key}})
	if err != nil {
		return Account{}, relayererr.ChainTransient("failed to load account", err)
	}
	if len(resp.Entries) == 0 {
		return Account{}, relayererr.ChainTransient("account not found", nil)
	}

	seq, err := decodeAccountSequence(resp.Entries[0].DataXDR)
	if err != nil {
		return Account{}, relayererr.Internal("failed to decode account entry", err)
	}
	return Account{Address: address, Sequence: seq}, nil
}

// SimulateResult is the subset of the RPC's simulateTransaction response
// the Submitter/TxBuilder need: resource footprint/fee assembly data and
// (on failure) the contract-level error string.
type SimulateResult struct {
	TransactionDataXDR string
	MinResourceFee     int64
	Results            []protocol.SimulateHostFunctionResult
	Error              string
}

// Simulate calls simulateTransaction with retry: up to 3 attempts with
// exponential backoff (200*i ms), transient errors retried, permanent
// (contract-level) errors surfaced immediately without retry.
func (c *Client) Simulate(ctx context.Context, tx *txnbuild.Transaction) (SimulateResult, error) {
	envelopeXDR, err := tx.Base64()
	if err != nil {
		return SimulateResult{}, relayererr.Internal("failed to encode transaction envelope", err)
	}

	var lastErr error
	for attempt := 1; attempt <= simulateMaxAttempts; attempt++ {
		callCtx, cancel := c.withTimeout(ctx)
		resp, err := c.rpc.SimulateTransaction(callCtx, protocol.SimulateTransactionRequest{Transaction: envelopeXDR})
		cancel()

		if err == nil && resp.Error == "" {
			return SimulateResult{
				TransactionDataXDR: resp.TransactionData,
				MinResourceFee:     resp.MinResourceFee,
				Results:            resp.Results,
			}, nil
		}
		if err == nil && resp.Error != "" {
			// Contract-level simulation failure: permanent, not retried.
			return SimulateResult{Error: resp.Error}, relayererr.ChainRejected(resp.Error)
		}

		lastErr = err
		if ctx.Err() != nil {
			return SimulateResult{}, relayererr.Aborted("simulate cancelled")
		}
		if attempt < simulateMaxAttempts {
			metrics.SimulateRetries.Inc()
			c.logDebug("simulate attempt failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
			select {
			case <-ctx.Done():
				return SimulateResult{}, relayererr.Aborted("simulate cancelled during backoff")
			case <-time.After(time.Duration(attempt) * simulateBackoffUnit):
			}
		}
	}
	return SimulateResult{}, relayererr.ChainTransient("simulate failed after retries", lastErr)
}

// SimulateView runs a read-only contract view call through
// simulateTransaction and decodes its single return value. It is never
// sent — the Syncer uses it for the registry/membership contracts'
// count/get/get_members views (§4.7), which never mutate ledger state
// and so need no real account sequence.
func (c *Client) SimulateView(ctx context.Context, signer *keypair.Full, networkPassphrase string, args txbuilder.Args) (xdr.ScVal, error) {
	tx, err := txbuilder.Build(signer.Address(), 0, args, "", 0, networkPassphrase, signer, viewValidityWindow)
	if err != nil {
		return xdr.ScVal{}, relayererr.Internal("failed to build view transaction", err)
	}

	sim, err := c.Simulate(ctx, tx)
	if err != nil {
		return xdr.ScVal{}, err
	}
	if len(sim.Results) == 0 {
		return xdr.ScVal{}, relayererr.Internal("simulate returned no results for view call", nil)
	}

	var out xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(sim.Results[0].XDR, &out); err != nil {
		return xdr.ScVal{}, relayererr.Internal("failed to decode view result", err)
	}
	return out, nil
}

// SendStatus classifies the immediate response to sendTransaction.
type SendStatus int

const (
	SendQueued SendStatus = iota + 1
	SendRejectedLocal
	SendRejectedRemote
)

// SendResult is the outcome of Send.
type SendResult struct {
	Hash   string
	Status SendStatus
}

// Send submits a signed transaction after simulation. It is not retried
// inside ChainClient — send is not safe to retry blindly since a prior
// attempt may already have been sequenced by the ledger; the Submitter
// owns any higher-level retry policy.
func (c *Client) Send(ctx context.Context, tx *txnbuild.Transaction) (SendResult, error) {
	envelopeXDR, err := tx.Base64()
	if err != nil {
		return SendResult{}, relayererr.Internal("failed to encode signed transaction", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.rpc.SendTransaction(ctx, protocol.SendTransactionRequest{Transaction: envelopeXDR})
	if err != nil {
		return SendResult{}, relayererr.ChainTransient("send failed", err)
	}

	switch resp.Status {
	case protocol.TransactionPending, protocol.TransactionDuplicate:
		return SendResult{Hash: resp.Hash, Status: SendQueued}, nil
	case protocol.TransactionError:
		return SendResult{Hash: resp.Hash, Status: SendRejectedRemote}, relayererr.ChainRejected(resp.ErrorResultXDR)
	default:
		return SendResult{Hash: resp.Hash, Status: SendRejectedLocal}, relayererr.ChainRejected(string(resp.Status))
	}
}

// PollOutcome is the classified result of a single poll_tx read.
type PollOutcome int

const (
	PollSuccess PollOutcome = iota + 1
	PollFailed
	PollNotFound
)

// PollResult carries the ledger sequence when PollOutcome is PollSuccess.
type PollResult struct {
	Outcome PollOutcome
	Ledger  uint32
	Reason  string
}

// PollTx performs one bounded getTransaction read.
func (c *Client) PollTx(ctx context.Context, hash string) (PollResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.rpc.GetTransaction(ctx, protocol.GetTransactionRequest{Hash: hash})
	if err != nil {
		return PollResult{}, relayererr.ChainTransient("poll_tx failed", err)
	}

	switch resp.Status {
	case protocol.TransactionStatusSuccess:
		return PollResult{Outcome: PollSuccess, Ledger: uint32(resp.Ledger)}, nil
	case protocol.TransactionStatusFailed:
		return PollResult{Outcome: PollFailed, Reason: resp.ResultXDR}, nil
	case protocol.TransactionStatusNotFound:
		return PollResult{Outcome: PollNotFound}, nil
	default:
		return PollResult{Outcome: PollNotFound}, nil
	}
}

// WaitTx polls once per second up to 30 attempts, returning the final
// outcome or relayererr.CodeTimeout if the transaction never resolves.
func (c *Client) WaitTx(ctx context.Context, hash string) (PollResult, error) {
	for attempt := 0; attempt < waitTxMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return PollResult{}, relayererr.Timeout(hash)
		}
		res, err := c.PollTx(ctx, hash)
		if err != nil {
			c.logDebug("wait_tx poll error, continuing", zap.String("hash", hash), zap.Error(err))
		} else if res.Outcome != PollNotFound {
			return res, nil
		}

		select {
		case <-ctx.Done():
			return PollResult{}, relayererr.Timeout(hash)
		case <-time.After(waitTxPollInterval):
		}
	}
	return PollResult{}, relayererr.Timeout(hash)
}

// LatestLedger returns the current RPC-visible ledger sequence.
func (c *Client) LatestLedger(ctx context.Context) (uint32, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.rpc.GetLatestLedger(ctx)
	if err != nil {
		return 0, relayererr.ChainTransient("failed to fetch latest ledger", err)
	}
	return resp.Sequence, nil
}

// RawEvent is an unparsed contract event as returned by the RPC, left
// for the Indexer to translate into a domain.Event.
type RawEvent struct {
	ContractID string
	Topics     []xdr.ScVal
	Value      xdr.ScVal
	Ledger     uint32
	TxHash     string
}

const getEventsDefaultLimit = 100

// GetEvents returns contract-scoped events in [startLedger, endLedger]
// (startLedger is inclusive, as the RPC treats it; the Indexer passes
// watermark+1). Only the first page of up to 100 events is fetched.
// A contract reporting "not found" (e.g. uninstalled) is suppressed: it
// returns an empty slice rather than an error, so the Indexer's
// watermark is not blocked by one bad contract ID (§4.6 backpressure).
func (c *Client) GetEvents(ctx context.Context, contractIDs []string, startLedger, endLedger uint32) ([]RawEvent, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req := protocol.GetEventsRequest{
		StartLedger: startLedger,
		Filters: []protocol.EventFilter{{
			ContractIDs: contractIDs,
		}},
		Pagination: &protocol.EventPaginationOptions{Limit: getEventsDefaultLimit},
	}
	resp, err := c.rpc.GetEvents(ctx, req)
	if err != nil {
		if isNotFoundErr(err) {
			return nil, nil
		}
		return nil, relayererr.ChainTransient("get_events failed", err)
	}

	out := make([]RawEvent, 0, len(resp.Events))
	for _, ev := range resp.Events {
		if ev.Ledger > endLedger {
			continue
		}
		topics, value, err := decodeEventBody(ev.Topic, ev.Value)
		if err != nil {
			c.logDebug("skipping unparseable event", zap.Error(err))
			continue
		}
		out = append(out, RawEvent{
			ContractID: ev.ContractID,
			Topics:     topics,
			Value:      value,
			Ledger:     ev.Ledger,
			TxHash:     ev.TxHash,
		})
	}
	return out, nil
}

func (c *Client) logDebug(msg string, fields ...zap.Field) {
	if c.logger != nil {
		c.logger.Debug(msg, fields...)
	}
}

func isNotFoundErr(err error) bool {
	if err == nil {
		return false
	}
	return containsFold(err.Error(), "not found") || containsFold(err.Error(), "not installed")
}

func containsFold(haystack, needle string) bool {
	hl := len(haystack)
	nl := len(needle)
	if nl == 0 || nl > hl {
		return nl == 0
	}
	for i := 0; i+nl <= hl; i++ {
		if equalFold(haystack[i:i+nl], needle) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
