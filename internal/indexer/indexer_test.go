package indexer

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/withobsrvr/zkvote-relayer/internal/chainclient"
	"github.com/withobsrvr/zkvote-relayer/internal/domain"
	"github.com/withobsrvr/zkvote-relayer/internal/store"
)

type fakeChain struct {
	latest      uint32
	latestErr   error
	events      []chainclient.RawEvent
	eventsErr   error
	pollResults map[string]chainclient.PollResult
	pollErr     error
}

func (f *fakeChain) LatestLedger(ctx context.Context) (uint32, error) {
	return f.latest, f.latestErr
}

func (f *fakeChain) GetEvents(ctx context.Context, contractIDs []string, startLedger, endLedger uint32) ([]chainclient.RawEvent, error) {
	return f.events, f.eventsErr
}

func (f *fakeChain) PollTx(ctx context.Context, hash string) (chainclient.PollResult, error) {
	if f.pollErr != nil {
		return chainclient.PollResult{}, f.pollErr
	}
	return f.pollResults[hash], nil
}

type fakeRefresher struct {
	calls []uint64
}

func (r *fakeRefresher) RefreshMember(ctx context.Context, orgID uint64) error {
	r.calls = append(r.calls, orgID)
	return nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), dir+"/test.db")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNotifyEventRejectsShortHash(t *testing.T) {
	s := openTestStore(t)
	ix := New(nil, s, nil, time.Second, nil, zap.NewNop())

	err := ix.NotifyEvent(context.Background(), 1, domain.KindMemberAdd, nil, "short")
	if err == nil {
		t.Fatalf("expected error for short tx_hash")
	}
}

func TestNotifyThenVerifySuccessTriggersRefresh(t *testing.T) {
	s := openTestStore(t)
	hash := makeHash("a")
	refresher := &fakeRefresher{}
	chain := &fakeChain{pollResults: map[string]chainclient.PollResult{
		hash: {Outcome: chainclient.PollSuccess, Ledger: 99},
	}}
	ix := &Indexer{chain: chain, store: s, refresher: refresher, logger: zap.NewNop()}

	if err := ix.NotifyEvent(context.Background(), 1, domain.KindMemberAdd, nil, hash); err != nil {
		t.Fatalf("NotifyEvent: %v", err)
	}
	ix.Verify(context.Background())

	rows, _, err := s.ListEvents(context.Background(), 1, store.ListFilter{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(rows) != 1 || !rows[0].Verified || rows[0].Ledger == nil || *rows[0].Ledger != 99 {
		t.Fatalf("expected verified row at ledger 99, got %+v", rows)
	}
	if len(refresher.calls) != 1 || refresher.calls[0] != 1 {
		t.Fatalf("expected membership refresh triggered for org 1, got %v", refresher.calls)
	}
}

func TestNotifyThenVerifyFailedDeletesRow(t *testing.T) {
	s := openTestStore(t)
	hash := makeHash("b")
	chain := &fakeChain{pollResults: map[string]chainclient.PollResult{
		hash: {Outcome: chainclient.PollFailed, Reason: "nullifier-used"},
	}}
	ix := &Indexer{chain: chain, store: s, logger: zap.NewNop()}

	if err := ix.NotifyEvent(context.Background(), 1, domain.KindVoteCast, nil, hash); err != nil {
		t.Fatalf("NotifyEvent: %v", err)
	}
	ix.Verify(context.Background())

	rows, total, err := s.ListEvents(context.Background(), 1, store.ListFilter{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if total != 0 || len(rows) != 0 {
		t.Fatalf("expected no rows after failed verify, got %d", total)
	}
}

func TestPollAdvancesWatermarkAndSkipsUnparseableEvents(t *testing.T) {
	s := openTestStore(t)
	// An event with no topics cannot be parsed and must be skipped.
	chain := &fakeChain{latest: 50, events: []chainclient.RawEvent{{TxHash: makeHash("c"), Ledger: 10}}}
	ix := &Indexer{chain: chain, store: s, logger: zap.NewNop()}

	ix.Poll(context.Background())

	status, err := ix.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Watermark != 50 {
		t.Fatalf("expected watermark advanced to 50, got %d", status.Watermark)
	}
	_, total, err := s.ListEvents(context.Background(), 0, store.ListFilter{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected the unparseable event to be skipped, got %d rows", total)
	}
}

func TestPollDoesNotAdvanceWatermarkOnRPCFailure(t *testing.T) {
	s := openTestStore(t)
	chain := &fakeChain{eventsErr: errRPC("boom"), latest: 50}
	ix := &Indexer{chain: chain, store: s, logger: zap.NewNop()}

	ix.Poll(context.Background())

	status, err := ix.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Watermark != 0 {
		t.Fatalf("expected watermark unchanged on RPC failure, got %d", status.Watermark)
	}
}

func TestAddManualEventIsVerifiedImmediately(t *testing.T) {
	s := openTestStore(t)
	ix := &Indexer{chain: &fakeChain{}, store: s, logger: zap.NewNop()}

	if err := ix.AddManualEvent(context.Background(), 5, domain.KindOrganizationCreate, map[string]any{"name": "acme"}); err != nil {
		t.Fatalf("AddManualEvent: %v", err)
	}

	rows, _, err := s.ListEvents(context.Background(), 5, store.ListFilter{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(rows) != 1 || !rows[0].Verified {
		t.Fatalf("expected one verified manual row, got %+v", rows)
	}
}

type errRPC string

func (e errRPC) Error() string { return string(e) }

func makeHash(seed string) string {
	out := make([]byte, 64)
	for i := range out {
		out[i] = byte('0' + (int(seed[0])+i)%10)
	}
	return string(out)
}
