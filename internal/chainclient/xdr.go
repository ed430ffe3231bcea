package chainclient

import (
	"errors"

	"github.com/stellar/go/xdr"
)

// accountLedgerKey builds the base64 XDR LedgerKey for an account
// address, as required by the RPC's getLedgerEntries call.
func accountLedgerKey(address string) (string, error) {
	var accountID xdr.AccountId
	if err := accountID.SetAddress(address); err != nil {
		return "", err
	}
	key := xdr.LedgerKey{
		Type: xdr.LedgerEntryTypeAccount,
		Account: &xdr.LedgerKeyAccount{
			AccountId: accountID,
		},
	}
	return xdr.MarshalBase64(key)
}

// decodeAccountSequence extracts the sequence number from a base64 XDR
// LedgerEntryData for an account entry.
func decodeAccountSequence(entryDataXDR string) (int64, error) {
	var entry xdr.LedgerEntryData
	if err := xdr.SafeUnmarshalBase64(entryDataXDR, &entry); err != nil {
		return 0, err
	}
	account, ok := entry.GetAccount()
	if !ok {
		return 0, errors.New("ledger entry is not an account entry")
	}
	return int64(account.SeqNum), nil
}

// decodeEventBody decodes an event's base64 XDR topic list and value
// into xdr.ScVal, for the Indexer's parser to translate into a domain
// event kind/payload.
func decodeEventBody(topicsXDR []string, valueXDR string) ([]xdr.ScVal, xdr.ScVal, error) {
	topics := make([]xdr.ScVal, 0, len(topicsXDR))
	for _, t := range topicsXDR {
		var sv xdr.ScVal
		if err := xdr.SafeUnmarshalBase64(t, &sv); err != nil {
			return nil, xdr.ScVal{}, err
		}
		topics = append(topics, sv)
	}
	var value xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(valueXDR, &value); err != nil {
		return nil, xdr.ScVal{}, err
	}
	return topics, value, nil
}
