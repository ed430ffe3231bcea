// Package txbuilder assembles and signs contract-invoke transactions
// from canonical argument maps. It is a pure function of its inputs
// (account, operation, fee, keypair) plus the wall clock for timebounds;
// no I/O happens here — ChainClient owns simulate/send/poll.
//
// TxBuilder does no argument encoding of its own: callers hand it an
// Args list already encoded as xdr.ScVal (by the scval package, from the
// values FieldCodec and Submitter produce), and TxBuilder wraps that list
// in an InvokeHostFunction operation.
package txbuilder

import (
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"

	"github.com/withobsrvr/zkvote-relayer/internal/relayererr"
)

// resourceFeePaddingPercent pads the simulated resource fee before
// signing, since simulated resource estimates can drift slightly against
// ledger state between simulate and send (SPEC_FULL.md §12).
const resourceFeePaddingPercent = 20

// defaultBaseFee is the classic-operation base fee component (stroops),
// stacked on top of the simulated resource fee per Soroban fee model.
const defaultBaseFee = 100

// Args is a canonical, ordered argument list for a single contract
// invocation, already encoded as xdr.ScVal by the caller (Submitter,
// via FieldCodec for proof/field arguments).
type Args struct {
	ContractID   string
	FunctionName string
	Values       []xdr.ScVal
}

// Build assembles a single InvokeHostFunction transaction: account at
// its current sequence, one contract-invoke operation, the simulated
// resource data and fee applied, timebounds of validityWindow, signed
// with signer. It does not simulate or send — those are ChainClient's
// job. The Submitter calls it twice: first with empty resource data to
// get a transaction to simulate (step 5), then with the simulation's
// resource data and fee to get the transaction it sends (step 6).
// SimulateView calls it once, with empty resource data.
func Build(
	accountAddress string,
	accountSequence int64,
	args Args,
	transactionDataXDR string,
	minResourceFee int64,
	networkPassphrase string,
	signer *keypair.Full,
	validityWindow time.Duration,
) (*txnbuild.Transaction, error) {
	account := txnbuild.NewSimpleAccount(accountAddress, accountSequence)

	contractID, err := contractIDFromAddress(args.ContractID)
	if err != nil {
		return nil, relayererr.Internal("invalid contract id", err)
	}

	invokeArgs := xdr.InvokeContractArgs{
		ContractAddress: contractID,
		FunctionName:    xdr.ScSymbol(args.FunctionName),
		Args:            args.Values,
	}

	hostFn := xdr.HostFunction{
		Type:           xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
		InvokeContract: &invokeArgs,
	}

	op := &txnbuild.InvokeHostFunction{
		HostFunction: hostFn,
	}

	sorobanData, err := decodeResourceData(transactionDataXDR)
	if err != nil {
		return nil, relayererr.Internal("failed to decode simulated resource data", err)
	}

	fee := int64(defaultBaseFee) + minResourceFee*(100+resourceFeePaddingPercent)/100

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{op},
		BaseFee:              fee,
		SorobanData:          sorobanData,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimeout(int64(validityWindow.Seconds())),
		},
	})
	if err != nil {
		return nil, relayererr.Internal("failed to assemble transaction", err)
	}

	signed, err := tx.Sign(networkPassphrase, signer)
	if err != nil {
		return nil, relayererr.Internal("failed to sign transaction", err)
	}
	return signed, nil
}

// LoadSigner parses the relayer's secret seed into a signing keypair.
// The Orchestrator holds the keypair for the life of the process and
// hands it by reference to the Submitter and Syncer; it must never be
// logged (§4.4, §7).
func LoadSigner(secretSeed string) (*keypair.Full, error) {
	kp, err := keypair.ParseFull(secretSeed)
	if err != nil {
		return nil, relayererr.Config("relayer_secret_key is not a valid secret seed")
	}
	return kp, nil
}

func contractIDFromAddress(address string) (xdr.ScAddress, error) {
	var scAddr xdr.ScAddress
	contractID, err := xdr.ContractIdFromStrkeyContractAddress(address)
	if err != nil {
		return scAddr, err
	}
	scAddr.Type = xdr.ScAddressTypeScAddressTypeContract
	scAddr.ContractId = &contractID
	return scAddr, nil
}

// decodeResourceData unmarshals the simulated Soroban resource footprint
// and fee into the struct txnbuild embeds directly into the transaction
// envelope's ext field. An empty input (e.g. in tests exercising
// classic-only paths) yields a nil pointer, which txnbuild treats as
// "no Soroban extension".
func decodeResourceData(transactionDataXDR string) (*xdr.SorobanTransactionData, error) {
	if transactionDataXDR == "" {
		return nil, nil
	}
	var sorobanData xdr.SorobanTransactionData
	if err := xdr.SafeUnmarshalBase64(transactionDataXDR, &sorobanData); err != nil {
		return nil, err
	}
	return &sorobanData, nil
}
