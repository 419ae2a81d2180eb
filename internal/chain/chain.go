// Package chain defines the upstream chain client boundary: every supported
// blockchain exposes the same listing, detail-fetch, balance and
// normalization operations, with chain-owned address handling.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Tad-z/BlockTrace-api/internal/models"
)

// Sentinel errors surfaced by chain clients. ErrRateLimited is distinguished
// from ErrUnavailable so the batch processor can back off and retry instead
// of abandoning the item.
var (
	ErrRateLimited = errors.New("upstream rate limited")
	ErrUnavailable = errors.New("upstream unavailable")
)

// SignatureInfo is one entry from a transfer-signature listing. ObservedAt
// is zero when the upstream did not report a timestamp; Raw carries the
// originating list entry for chains whose entries already contain transfer
// fields.
type SignatureInfo struct {
	Hash       string
	ObservedAt time.Time
	Cursor     string
	Raw        json.RawMessage
}

// RawTransferEvent is the chain-specific detail payload for one
// transaction, plus receipt-derived fields that are independent of transfer
// parsing. Estimated is set when Timestamp had to be inferred rather than
// read from the chain.
type RawTransferEvent struct {
	Hash       string
	Timestamp  time.Time
	Estimated  bool
	Fee        decimal.Decimal
	Status     models.TransferStatus
	Detail     json.RawMessage
	Descriptor json.RawMessage
}

// Client is a per-chain adapter over the upstream RPC provider. All calls
// carry explicit timeouts via ctx; implementations must map HTTP 429 and
// equivalent responses to ErrRateLimited and other upstream failures to
// ErrUnavailable.
type Client interface {
	// Name returns the canonical chain name (e.g. "solana", "ethereum"), also the registry key.
	Name() string

	// NativeSymbol returns the chain's native asset symbol.
	NativeSymbol() string

	// KnownSymbols returns the token symbols this chain can resolve,
	// used for bulk price prefetching.
	KnownSymbols() []string

	// ValidateAddress reports whether address is well-formed for this chain.
	ValidateAddress(address string) error

	// NormalizeAddress applies the chain's casing convention. It must be
	// applied before any equality or set-membership check.
	NormalizeAddress(address string) string

	// GetBalance returns the native-asset balance for address.
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)

	// ListTransferSignatures returns up to limit transfer-signature
	// descriptors for address, newest first.
	ListTransferSignatures(ctx context.Context, address string, limit int) ([]SignatureInfo, error)

	// GetTransferDetail fetches the detailed payload for one signature.
	GetTransferDetail(ctx context.Context, sig SignatureInfo) (*RawTransferEvent, error)

	// Normalize parses a raw transfer event into zero or more canonical
	// transfers relative to the queried address. Overlapping detection
	// paths may yield duplicates; deduplication is the caller's concern.
	Normalize(raw *RawTransferEvent, queriedAddress string) []models.Transfer

	// Ping checks upstream reachability.
	Ping(ctx context.Context) error
}

// Registry resolves a chain client by its lowercase request name.
type Registry map[string]Client

// Get returns the client registered under name, if any.
func (r Registry) Get(name string) (Client, bool) {
	c, ok := r[name]
	return c, ok
}
