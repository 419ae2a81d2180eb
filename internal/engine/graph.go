package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Tad-z/BlockTrace-api/internal/models"
)

// labelAffixLen is how many leading and trailing characters survive in a
// shortened node label.
const labelAffixLen = 8

// Assemble builds the node/edge graph and summary statistics from the final
// transfer set. The queried wallet is always the first node, carrying the
// balance; counterparty nodes appear in first-seen order.
func Assemble(queriedAddress string, balance decimal.Decimal, nativeSymbol string, transfers []models.Transfer, limits models.TierLimits, stats ProcessStats) (models.Graph, models.Summary) {
	nodes := []models.GraphNode{{
		ID:          queriedAddress,
		Label:       shortenLabel(queriedAddress),
		Type:        models.NodeTypeMainWallet,
		Balance:     &balance,
		FullAddress: queriedAddress,
	}}
	seen := map[string]struct{}{queriedAddress: {}}

	edges := make([]models.GraphEdge, 0, len(transfers))
	summary := models.Summary{
		NativeVolume: decimal.Zero,
		DateRange:    models.DateRange{AllowedDaysBack: limits.TimeRangeDays},
		TokensFound:  []string{},
		LimitationsApplied: models.Limitations{
			TimeLimited:        stats.TimeFiltered > 0,
			TransactionLimited: stats.Truncated,
		},
	}

	tokens := make(map[string]struct{})
	var earliest, latest time.Time

	for _, t := range transfers {
		for _, addr := range []string{t.Source, t.Destination} {
			if addr == "" {
				continue
			}
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			nodes = append(nodes, models.GraphNode{
				ID:          addr,
				Label:       shortenLabel(addr),
				Type:        models.NodeTypeExternalWallet,
				FullAddress: addr,
			})
		}

		edges = append(edges, models.GraphEdge{
			Source:          t.Source,
			Destination:     t.Destination,
			TransactionHash: t.Hash,
			Timestamp:       t.Timestamp,
			Amount:          t.Amount,
			TokenSymbol:     t.TokenSymbol,
			TokenAddress:    t.TokenAddress,
			Direction:       t.Direction,
			USDEquivalent:   t.USDEquivalent,
			Fee:             t.Fee,
			Status:          t.Status,
			Chain:           t.Chain,
			Weight:          t.Amount,
		})

		switch t.Direction {
		case models.DirectionIncoming:
			summary.TotalIncoming++
		case models.DirectionOutgoing:
			summary.TotalOutgoing++
		}

		if t.TokenSymbol == nativeSymbol {
			summary.NativeVolume = summary.NativeVolume.Add(t.Amount)
		}
		tokens[t.TokenSymbol] = struct{}{}

		if !t.Timestamp.IsZero() {
			if earliest.IsZero() || t.Timestamp.Before(earliest) {
				earliest = t.Timestamp
			}
			if latest.IsZero() || t.Timestamp.After(latest) {
				latest = t.Timestamp
			}
		}
	}

	if !earliest.IsZero() {
		summary.DateRange.Earliest = &earliest
		summary.DateRange.Latest = &latest
	}

	for token := range tokens {
		summary.TokensFound = append(summary.TokensFound, token)
	}
	sort.Strings(summary.TokensFound)

	// The queried wallet does not count toward its own counterparties.
	summary.UniqueAddresses = len(nodes) - 1

	return models.Graph{Nodes: nodes, Edges: edges}, summary
}

// shortenLabel abbreviates long addresses for display. Short identifiers
// such as "System Program" pass through untouched.
func shortenLabel(address string) string {
	if len(address) <= 2*labelAffixLen {
		return address
	}
	return fmt.Sprintf("%s...%s", address[:labelAffixLen], address[len(address)-labelAffixLen:])
}
