package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction describes a transfer relative to the queried wallet address.
// It is never absolute: the same on-chain movement is "outgoing" for the
// sender and "incoming" for the recipient.
type Direction string

const (
	DirectionIncoming    Direction = "incoming"
	DirectionOutgoing    Direction = "outgoing"
	DirectionInteraction Direction = "interaction"
)

// TransferStatus is the execution outcome of the underlying transaction.
type TransferStatus string

const (
	StatusSuccess TransferStatus = "success"
	StatusFailed  TransferStatus = "failed"
)

// Transfer is the canonical unit of economic movement extracted from a raw
// chain transaction. One transaction may yield several transfers (a native
// transfer plus token transfers), and the same economic transfer may be
// surfaced by more than one detection path; deduplication happens downstream
// by TransferKey.
type Transfer struct {
	Hash          string          `json:"hash"`
	Timestamp     time.Time       `json:"timestamp"`
	Chain         string          `json:"chain"`
	Source        string          `json:"source"`
	Destination   string          `json:"destination"`
	Amount        decimal.Decimal `json:"amount"`
	Direction     Direction       `json:"direction"`
	TokenSymbol   string          `json:"token"`
	TokenAddress  string          `json:"token_address,omitempty"`
	Fee           decimal.Decimal `json:"fee"`
	Status        TransferStatus  `json:"status"`
	USDEquivalent decimal.Decimal `json:"usd_equivalent"`
}

// TransferKey identifies a transfer as economically unique across redundant
// discovery paths (balance-delta inference vs. instruction parsing, outgoing-
// vs. incoming-indexed upstream queries). Amount is carried as its canonical
// string form so the key is comparable.
type TransferKey struct {
	Hash        string
	Source      string
	Destination string
	Amount      string
	TokenSymbol string
}

// Key returns the dedup identity of the transfer.
func (t *Transfer) Key() TransferKey {
	return TransferKey{
		Hash:        t.Hash,
		Source:      t.Source,
		Destination: t.Destination,
		Amount:      t.Amount.String(),
		TokenSymbol: t.TokenSymbol,
	}
}
