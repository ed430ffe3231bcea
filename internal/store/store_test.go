package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/withobsrvr/zkvote-relayer/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "relayer.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddEventDedup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res1, err := s.AddEvent(ctx, "vote-cast", 1, map[string]any{"a": 1}, nil, "deadbeef", true)
	if err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	if !res1.Inserted {
		t.Fatalf("expected first insert to succeed")
	}

	res2, err := s.AddEvent(ctx, "vote-cast", 1, map[string]any{"a": 2}, nil, "deadbeef", true)
	if err != nil {
		t.Fatalf("AddEvent duplicate: %v", err)
	}
	if res2.Inserted {
		t.Fatalf("expected duplicate to be rejected")
	}

	rows, total, err := s.ListEvents(ctx, 1, ListFilter{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("expected exactly one row, got total=%d rows=%d", total, len(rows))
	}
}

func TestAddEventDifferentOrgNotDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.AddEvent(ctx, "vote-cast", 1, nil, nil, "hash1", true); err != nil {
		t.Fatalf("AddEvent org1: %v", err)
	}
	res, err := s.AddEvent(ctx, "vote-cast", 2, nil, nil, "hash1", true)
	if err != nil {
		t.Fatalf("AddEvent org2: %v", err)
	}
	if !res.Inserted {
		t.Fatalf("expected distinct org_id to not dedup")
	}
}

func TestNotifyThenChainConfirms(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.AddPendingEvent(ctx, 1, "member-add", nil, "notifyhash"); err != nil {
		t.Fatalf("AddPendingEvent: %v", err)
	}

	unverified, err := s.ListUnverified(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnverified: %v", err)
	}
	if len(unverified) != 1 {
		t.Fatalf("expected one unverified row, got %d", len(unverified))
	}

	if err := s.MarkVerified(ctx, "notifyhash", 42); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}

	rows, _, err := s.ListEvents(ctx, 1, ListFilter{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(rows) != 1 || !rows[0].Verified || rows[0].Ledger == nil || *rows[0].Ledger != 42 {
		t.Fatalf("expected verified row at ledger 42, got %+v", rows)
	}

	// A later chain poll re-observing the same tx_hash must not duplicate.
	res, err := s.AddEvent(ctx, "member-add", 1, nil, uint32Ptr(42), "notifyhash", true)
	if err != nil {
		t.Fatalf("AddEvent re-poll: %v", err)
	}
	if res.Inserted {
		t.Fatalf("expected re-observed event to dedup against the verified row")
	}
}

func TestNotifyThenChainFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.AddPendingEvent(ctx, 1, "member-add", nil, "failedhash"); err != nil {
		t.Fatalf("AddPendingEvent: %v", err)
	}
	if err := s.DeletePending(ctx, "failedhash"); err != nil {
		t.Fatalf("DeletePending: %v", err)
	}

	rows, total, err := s.ListEvents(ctx, 1, ListFilter{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if total != 0 || len(rows) != 0 {
		t.Fatalf("expected no rows remaining, got %d", total)
	}
}

func TestListEventsLimitCappedAt100(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		if _, err := s.AddEvent(ctx, "vote-cast", 1, nil, uint32Ptr(uint32(i)), hashFor(i), true); err != nil {
			t.Fatalf("AddEvent %d: %v", i, err)
		}
	}

	rows, total, err := s.ListEvents(ctx, 1, ListFilter{Limit: 200})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if total != 150 {
		t.Fatalf("expected total 150, got %d", total)
	}
	if len(rows) != 100 {
		t.Fatalf("expected at most 100 rows, got %d", len(rows))
	}
}

func TestUpsertOrgsSingleTransaction(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rows := []domain.OrgCache{
		{ID: 1, Name: "a", Admin: "GADMIN1", UpdatedAt: now},
		{ID: 2, Name: "b", Admin: "GADMIN2", UpdatedAt: now},
	}
	if err := s.UpsertOrgs(ctx, rows); err != nil {
		t.Fatalf("UpsertOrgs: %v", err)
	}

	n, err := s.OrgsCount(ctx)
	if err != nil {
		t.Fatalf("OrgsCount: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 orgs, got %d", n)
	}

	got, ok, err := s.GetOrg(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("GetOrg(1): ok=%v err=%v", ok, err)
	}
	if got.Name != "a" {
		t.Fatalf("expected name 'a', got %q", got.Name)
	}
}

func uint32Ptr(v uint32) *uint32 { return &v }

func hashFor(i int) string {
	const alphabet = "0123456789abcdef"
	b := make([]byte, 8)
	for j := range b {
		b[j] = alphabet[(i>>(j*4))&0xf]
	}
	return string(b)
}
