package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NodeType distinguishes the queried wallet from its counterparties.
type NodeType string

const (
	NodeTypeMainWallet     NodeType = "main_wallet"
	NodeTypeExternalWallet NodeType = "external_wallet"
)

// GraphNode is one distinct address in the transaction graph. The queried
// address is always present, even when no transfers were found.
type GraphNode struct {
	ID          string           `json:"id"`
	Label       string           `json:"label"`
	Type        NodeType         `json:"type"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	FullAddress string           `json:"full_address"`
}

// GraphEdge is one surviving deduplicated transfer. Weight equals the
// transfer amount and is consumed by frontend layout algorithms.
type GraphEdge struct {
	Source          string          `json:"source"`
	Destination     string          `json:"destination"`
	TransactionHash string          `json:"transaction_hash"`
	Timestamp       time.Time       `json:"timestamp"`
	Amount          decimal.Decimal `json:"amount"`
	TokenSymbol     string          `json:"token"`
	TokenAddress    string          `json:"token_address,omitempty"`
	Direction       Direction       `json:"direction"`
	USDEquivalent   decimal.Decimal `json:"usd_equivalent"`
	Fee             decimal.Decimal `json:"fee"`
	Status          TransferStatus  `json:"status"`
	Chain           string          `json:"chain"`
	Weight          decimal.Decimal `json:"weight"`
}

// Graph is the node/edge set assembled from the final transfer list.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// DateRange spans the timestamps observed in the final transfer set.
type DateRange struct {
	Earliest        *time.Time `json:"earliest"`
	Latest          *time.Time `json:"latest"`
	AllowedDaysBack int        `json:"allowed_days_back"`
}

// Limitations reports how the result was degraded by tier policy or partial
// upstream failure, so callers can tell "no activity" from "data truncated".
type Limitations struct {
	TimeLimited        bool `json:"time_limited"`
	TransactionLimited bool `json:"transaction_limited"`
}

// Summary holds aggregate statistics computed over the final transfer set.
type Summary struct {
	TotalIncoming      int             `json:"total_incoming"`
	TotalOutgoing      int             `json:"total_outgoing"`
	NativeVolume       decimal.Decimal `json:"native_volume"`
	UniqueAddresses    int             `json:"unique_addresses"`
	DateRange          DateRange       `json:"date_range"`
	TokensFound        []string        `json:"tokens_found"`
	LimitationsApplied Limitations     `json:"limitations_applied"`
}

// QuotaInfo tells the caller how much of the daily distinct-address quota
// remains after this request.
type QuotaInfo struct {
	AddressesUsedToday int `json:"addresses_used_today"`
	DailyLimit         int `json:"daily_limit"`
	Remaining          int `json:"remaining"`
}

// AggregationResult is the engine's response for one wallet aggregation.
// It is constructed fresh per request and never mutated after construction.
type AggregationResult struct {
	WalletAddress     string          `json:"wallet_address"`
	Balance           decimal.Decimal `json:"balance"`
	Chain             string          `json:"chain"`
	SubscriptionTier  string          `json:"subscription_tier"`
	TierLimits        TierLimits      `json:"tier_limits"`
	TotalTransactions int             `json:"total_transactions"`
	GraphData         Graph           `json:"graph_data"`
	Summary           Summary         `json:"summary"`
	QuotaInfo         *QuotaInfo      `json:"rate_limit_info,omitempty"`
}

// TierLimits are the immutable limits attached to a subscription tier.
type TierLimits struct {
	TimeRangeDays     int  `json:"time_range_days"`
	DailyAddressLimit int  `json:"daily_address_limit"`
	MaxTransactions   int  `json:"max_transactions"`
	GraphDepth        int  `json:"graph_depth"`
	ExportEnabled     bool `json:"export_enabled"`
}
