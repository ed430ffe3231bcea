package txbuilder

import (
	"testing"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
)

func testSigner(t *testing.T) *keypair.Full {
	t.Helper()
	kp, err := keypair.Random()
	if err != nil {
		t.Fatalf("keypair.Random: %v", err)
	}
	return kp
}

func TestBuildSignsAndSetsSourceAccount(t *testing.T) {
	signer := testSigner(t)

	args := Args{
		ContractID:   "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABSC4",
		FunctionName: "cast_vote",
		Values:       []xdr.ScVal{},
	}

	tx, err := Build(
		signer.Address(),
		41,
		args,
		"",
		0,
		network.TestNetworkPassphrase,
		signer,
		30*time.Second,
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tx.SourceAccount().AccountID != signer.Address() {
		t.Fatalf("expected source account %s, got %s", signer.Address(), tx.SourceAccount().AccountID)
	}
	if tx.SequenceNumber() != 42 {
		t.Fatalf("expected incremented sequence 42, got %d", tx.SequenceNumber())
	}
	if len(tx.Signatures()) != 1 {
		t.Fatalf("expected exactly one signature, got %d", len(tx.Signatures()))
	}
}

func TestBuildRejectsInvalidContractID(t *testing.T) {
	signer := testSigner(t)
	args := Args{ContractID: "not-a-contract-id", FunctionName: "cast_vote"}

	if _, err := Build(signer.Address(), 1, args, "", 0, network.TestNetworkPassphrase, signer, 30*time.Second); err == nil {
		t.Fatalf("expected error for malformed contract id")
	}
}

func TestBuildAppliesResourceFeePadding(t *testing.T) {
	signer := testSigner(t)
	args := Args{
		ContractID:   "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABSC4",
		FunctionName: "cast_vote",
	}

	const minResourceFee = int64(1000)
	tx, err := Build(signer.Address(), 1, args, "", minResourceFee, network.TestNetworkPassphrase, signer, 30*time.Second)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	wantFee := int64(defaultBaseFee) + minResourceFee*(100+resourceFeePaddingPercent)/100
	if int64(tx.BaseFee()) != wantFee {
		t.Fatalf("expected base fee %d, got %d", wantFee, tx.BaseFee())
	}
}

func TestLoadSignerRejectsMalformedSeed(t *testing.T) {
	if _, err := LoadSigner("not-a-seed"); err == nil {
		t.Fatalf("expected error for malformed secret seed")
	}
}

func TestLoadSignerAcceptsValidSeed(t *testing.T) {
	kp := testSigner(t)
	loaded, err := LoadSigner(kp.Seed())
	if err != nil {
		t.Fatalf("LoadSigner: %v", err)
	}
	if loaded.Address() != kp.Address() {
		t.Fatalf("expected address %s, got %s", kp.Address(), loaded.Address())
	}
}
