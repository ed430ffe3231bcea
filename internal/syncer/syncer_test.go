package syncer

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/withobsrvr/zkvote-relayer/internal/store"
)

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

func TestMembershipCacheCopyOnWrite(t *testing.T) {
	c := newMembershipCache()
	if got := c.Members(1); got != nil {
		t.Fatalf("expected nil for unknown org, got %v", got)
	}

	c.swap(1, map[string]bool{"GA": true})
	if got := c.Members(1); !got["GA"] {
		t.Fatalf("expected org 1 to carry member GA, got %v", got)
	}

	c.swap(2, map[string]bool{"GB": true})
	if got := c.Members(1); !got["GA"] {
		t.Fatalf("expected org 1's set to survive a swap on org 2, got %v", got)
	}
	if got := c.Members(2); !got["GB"] {
		t.Fatalf("expected org 2 to carry member GB, got %v", got)
	}
}

func TestSyncOrgsSkippedWithoutRegistryContract(t *testing.T) {
	s := openTestStore(t)
	sy := &Syncer{store: s, logger: zap.NewNop()}
	sy.SyncOrgs(context.Background())

	n, err := s.OrgsCount(context.Background())
	if err != nil {
		t.Fatalf("OrgsCount: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no orgs synced without a registry contract, got %d", n)
	}
}

func TestRefreshMemberSkippedWithoutMembershipContract(t *testing.T) {
	sy := &Syncer{logger: zap.NewNop(), membership: newMembershipCache()}
	if err := sy.RefreshMember(context.Background(), 1); err != nil {
		t.Fatalf("RefreshMember: %v", err)
	}
	if got := sy.Membership().Members(1); got != nil {
		t.Fatalf("expected no membership cached without a membership contract, got %v", got)
	}
}

func TestSyncMembershipNoOrgsIsNoop(t *testing.T) {
	s := openTestStore(t)
	sy := &Syncer{
		store:                s,
		logger:               zap.NewNop(),
		membership:           newMembershipCache(),
		membershipContractID: "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWH",
	}
	sy.SyncMembership(context.Background())
	if got := sy.Membership().Members(1); got != nil {
		t.Fatalf("expected no membership cached with zero orgs, got %v", got)
	}
}
