package evm

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/Tad-z/BlockTrace-api/internal/chain"
	"github.com/Tad-z/BlockTrace-api/internal/models"
)

// syntheticSymbolPrefixLen is how much of the contract address appears in
// the synthetic symbol for unknown tokens.
const syntheticSymbolPrefixLen = 8

// Normalize converts one enriched asset transfer into a canonical transfer.
// EVM listings are already one-transfer-per-entry, so the result is a single
// element, or empty when the descriptor cannot be parsed.
func (c *Client) Normalize(raw *chain.RawTransferEvent, queriedAddress string) []models.Transfer {
	var entry assetTransfer
	if err := json.Unmarshal(raw.Descriptor, &entry); err != nil {
		return nil
	}

	from := strings.ToLower(entry.From)
	to := strings.ToLower(entry.To)
	queried := strings.ToLower(queriedAddress)

	t := models.Transfer{
		Hash:        raw.Hash,
		Timestamp:   raw.Timestamp,
		Chain:       chainName,
		Source:      from,
		Destination: to,
		Fee:         raw.Fee,
		Status:      raw.Status,
	}

	switch {
	case from == queried:
		t.Direction = models.DirectionOutgoing
	case to == queried:
		t.Direction = models.DirectionIncoming
	default:
		// Listing filters should prevent this; keep the record anyway.
		t.Direction = models.DirectionInteraction
	}

	if entry.Category == "external" || entry.Category == "internal" {
		t.TokenSymbol = nativeSymbol
		if entry.Value != nil {
			t.Amount = *entry.Value
		}
		return []models.Transfer{t}
	}

	t.TokenSymbol, t.TokenAddress, t.Amount = resolveTokenTransfer(&entry)
	return []models.Transfer{t}
}

// resolveTokenTransfer works out symbol, contract address and scaled amount
// for a non-native transfer. Known contracts override the reported decimals.
func resolveTokenTransfer(entry *assetTransfer) (symbol, address string, amount decimal.Decimal) {
	if entry.RawContract == nil {
		return genericTokenSymbol(""), "", decimal.Zero
	}

	address = strings.ToLower(entry.RawContract.Address)

	var decimals int32 = 18
	if d, err := hexutil.DecodeUint64(entry.RawContract.Decimal); err == nil {
		decimals = int32(d)
	}

	if info, known := erc20Tokens[address]; known {
		symbol = info.Symbol
		decimals = info.Decimals
	} else {
		symbol = genericTokenSymbol(address)
	}

	rawValue, ok := new(big.Int).SetString(strings.TrimPrefix(entry.RawContract.Value, "0x"), 16)
	if !ok {
		// Fall back to the listing's pre-scaled value when present.
		if entry.Value != nil {
			return symbol, address, *entry.Value
		}
		return symbol, address, decimal.Zero
	}

	return symbol, address, decimal.NewFromBigInt(rawValue, -decimals)
}

func genericTokenSymbol(address string) string {
	if len(address) < syntheticSymbolPrefixLen {
		return "TOKEN_UNKNOWN"
	}
	return fmt.Sprintf("TOKEN_%s", address[:syntheticSymbolPrefixLen])
}
