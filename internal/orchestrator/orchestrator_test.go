package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"go.uber.org/zap"

	"github.com/withobsrvr/zkvote-relayer/internal/config"
)

func testConfig(t *testing.T, dataDir string) *config.Config {
	t.Helper()
	kp, err := keypair.Random()
	if err != nil {
		t.Fatalf("keypair.Random: %v", err)
	}
	return &config.Config{
		RPCURL:                 "http://localhost:8000/soroban/rpc",
		NetworkPassphrase:      network.TestNetworkPassphrase,
		RelayerSecretKey:       kp.Seed(),
		VotingContractID:       "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWH",
		TreeContractID:         "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWH",
		CommentsContractID:     "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWH",
		RPCTimeout:             time.Second,
		IndexerPollInterval:    time.Hour,
		OrgSyncInterval:        time.Hour,
		MembershipSyncInterval: time.Hour,
		DataDir:                dataDir,
	}
}

func TestNewConstructsEveryCollaborator(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	orch, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer orch.store.Close()

	if orch.Submitter == nil || orch.Indexer == nil || orch.Syncer == nil {
		t.Fatal("expected Submitter, Indexer, and Syncer to all be constructed")
	}
}

func TestStartStopIsQuiescentWithoutDeadlock(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	orch, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	orch.Start(context.Background())

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := orch.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestStatusReflectsFreshStore(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	orch, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer orch.store.Close()

	status, err := orch.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.IndexerWatermark != 0 {
		t.Errorf("expected watermark 0 on a fresh store, got %d", status.IndexerWatermark)
	}
	if status.OrgCount != 0 {
		t.Errorf("expected org count 0 on a fresh store, got %d", status.OrgCount)
	}
}
