package solana

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/Tad-z/BlockTrace-api/internal/chain"
	"github.com/Tad-z/BlockTrace-api/internal/models"
)

const (
	genericSPLSymbol = "SPL Token"
	systemProgram    = "System Program"
)

// Normalize extracts transfers touching queriedAddress from a raw
// transaction. SOL movements are detected two ways: lamport balance deltas
// across accounts, and parsed system-program transfer instructions. SPL
// movements come from parsed spl-token instructions. A transaction in which
// no transfer involves the queried address yields a single zero-amount
// interaction record so the wallet's activity still appears in the graph.
func (c *Client) Normalize(raw *chain.RawTransferEvent, queriedAddress string) []models.Transfer {
	base := models.Transfer{
		Hash:      raw.Hash,
		Timestamp: raw.Timestamp,
		Chain:     chainName,
		Fee:       raw.Fee,
		Status:    raw.Status,
	}

	var payload txPayload
	if err := json.Unmarshal(raw.Detail, &payload); err != nil || payload.Meta == nil {
		return []models.Transfer{interactionPlaceholder(base, queriedAddress)}
	}

	transfers := make([]models.Transfer, 0, 2)
	transfers = appendBalanceDeltaTransfers(transfers, base, &payload, queriedAddress)
	transfers = appendInstructionTransfers(transfers, base, &payload, queriedAddress)

	if len(transfers) == 0 {
		return []models.Transfer{interactionPlaceholder(base, queriedAddress)}
	}
	return transfers
}

// appendBalanceDeltaTransfers detects a SOL movement from pre/post lamport
// balances. Only the first counterparty whose delta has the opposite sign of
// the queried address's delta is taken, to avoid double counting fan-out
// transactions.
func appendBalanceDeltaTransfers(dst []models.Transfer, base models.Transfer, payload *txPayload, queriedAddress string) []models.Transfer {
	meta := payload.Meta
	keys := payload.Transaction.Message.AccountKeys

	deltas := make(map[string]int64, len(keys))
	// Ordered list so counterparty selection is deterministic.
	ordered := make([]string, 0, len(keys))
	for i, key := range keys {
		if i >= len(meta.PreBalances) || i >= len(meta.PostBalances) {
			break
		}
		delta := meta.PostBalances[i] - meta.PreBalances[i]
		if delta == 0 {
			continue
		}
		if _, dup := deltas[key.Pubkey]; !dup {
			ordered = append(ordered, key.Pubkey)
		}
		deltas[key.Pubkey] = delta
	}

	userDelta := deltas[queriedAddress]
	if userDelta == 0 {
		return dst
	}

	for _, addr := range ordered {
		if addr == queriedAddress {
			continue
		}
		change := deltas[addr]
		if (userDelta > 0 && change >= 0) || (userDelta < 0 && change <= 0) {
			continue
		}

		t := base
		t.Amount = decimal.New(change, -9).Abs()
		t.TokenSymbol = nativeSymbol
		if userDelta > 0 {
			t.Direction = models.DirectionIncoming
			t.Source = addr
			t.Destination = queriedAddress
		} else {
			t.Direction = models.DirectionOutgoing
			t.Source = queriedAddress
			t.Destination = addr
		}
		return append(dst, t)
	}
	return dst
}

// appendInstructionTransfers extracts system-program SOL transfers and
// spl-token transfer/transferChecked instructions involving the queried
// address.
func appendInstructionTransfers(dst []models.Transfer, base models.Transfer, payload *txPayload, queriedAddress string) []models.Transfer {
	for _, ins := range payload.Transaction.Message.Instructions {
		if ins.Parsed == nil {
			continue
		}

		switch {
		case ins.Program == "system" && ins.Parsed.Type == "transfer":
			var info systemTransferInfo
			if err := json.Unmarshal(ins.Parsed.Info, &info); err != nil {
				continue
			}
			if info.Source != queriedAddress && info.Destination != queriedAddress {
				continue
			}

			lamports, err := info.Lamports.Int64()
			if err != nil {
				continue
			}

			t := base
			t.Source = info.Source
			t.Destination = info.Destination
			t.Amount = decimal.New(lamports, -9)
			t.TokenSymbol = nativeSymbol
			t.Direction = models.DirectionIncoming
			if info.Source == queriedAddress {
				t.Direction = models.DirectionOutgoing
			}
			dst = append(dst, t)

		case ins.Program == "spl-token" && (ins.Parsed.Type == "transfer" || ins.Parsed.Type == "transferChecked"):
			var info splTransferInfo
			if err := json.Unmarshal(ins.Parsed.Info, &info); err != nil {
				continue
			}

			sourceOwner := info.Authority
			if sourceOwner == "" {
				sourceOwner = info.Source
			}
			if sourceOwner != queriedAddress && info.Destination != queriedAddress {
				continue
			}

			var amount decimal.Decimal
			mint := info.Mint
			if ins.Parsed.Type == "transferChecked" && info.TokenAmount != nil {
				raw, err := decimal.NewFromString(info.TokenAmount.Amount)
				if err != nil {
					continue
				}
				amount = raw.Shift(-info.TokenAmount.Decimals)
			} else {
				raw, err := decimal.NewFromString(info.Amount.String())
				if err != nil {
					continue
				}
				amount = raw
				if mint == "" {
					mint = "UNKNOWN"
				}
			}

			symbol := genericSPLSymbol
			if tok, ok := splTokens[mint]; ok {
				symbol = tok.Symbol
			}

			t := base
			t.Source = sourceOwner
			t.Destination = info.Destination
			t.Amount = amount
			t.TokenSymbol = symbol
			t.TokenAddress = mint
			t.Direction = models.DirectionIncoming
			if sourceOwner == queriedAddress {
				t.Direction = models.DirectionOutgoing
			}
			dst = append(dst, t)
		}
	}
	return dst
}

// interactionPlaceholder records that the wallet touched a transaction even
// though no concrete transfer could be parsed out of it.
func interactionPlaceholder(base models.Transfer, queriedAddress string) models.Transfer {
	t := base
	t.Source = queriedAddress
	t.Destination = systemProgram
	t.Amount = decimal.Zero
	t.Direction = models.DirectionInteraction
	t.TokenSymbol = nativeSymbol
	return t
}
