package evm

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tad-z/BlockTrace-api/internal/chain"
	"github.com/Tad-z/BlockTrace-api/internal/models"
)

const (
	testWallet       = "0x742d35cc6634c0532925a3b844bc454e4438f44e"
	testCounterparty = "0x53d284357ec70ce289d6d64134dfac8e511c8a3d"
	usdtContract     = "0xdac17f958d2ee523a2206206994597c13d831ec7"
)

func rawEvent(t *testing.T, descriptor interface{}) *chain.RawTransferEvent {
	t.Helper()
	data, err := json.Marshal(descriptor)
	require.NoError(t, err)
	return &chain.RawTransferEvent{
		Hash:       "0xabc123",
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Fee:        decimal.RequireFromString("0.0021"),
		Status:     models.StatusSuccess,
		Descriptor: data,
	}
}

func TestNormalizeExternalETHTransfer(t *testing.T) {
	client := &Client{}
	descriptor := map[string]interface{}{
		"hash":     "0xabc123",
		"blockNum": "0x1406f40",
		"from":     testWallet,
		"to":       testCounterparty,
		"value":    1.5,
		"category": "external",
	}

	transfers := client.Normalize(rawEvent(t, descriptor), testWallet)

	require.Len(t, transfers, 1)
	tr := transfers[0]
	assert.Equal(t, models.DirectionOutgoing, tr.Direction)
	assert.Equal(t, "ETH", tr.TokenSymbol)
	assert.Empty(t, tr.TokenAddress)
	assert.True(t, tr.Amount.Equal(decimal.NewFromFloat(1.5)), "got %s", tr.Amount)
	assert.Equal(t, "ethereum", tr.Chain)
}

func TestNormalizeKnownERC20UsesTableDecimals(t *testing.T) {
	client := &Client{}
	descriptor := map[string]interface{}{
		"hash":     "0xabc123",
		"from":     testCounterparty,
		"to":       testWallet,
		"category": "erc20",
		"rawContract": map[string]interface{}{
			"address": usdtContract,
			// 25 USDT with 6 decimals: 25000000 = 0x17d7840.
			"value":   "0x17d7840",
			"decimal": "0x12",
		},
	}

	transfers := client.Normalize(rawEvent(t, descriptor), testWallet)

	require.Len(t, transfers, 1)
	tr := transfers[0]
	assert.Equal(t, models.DirectionIncoming, tr.Direction)
	assert.Equal(t, "USDT", tr.TokenSymbol)
	assert.Equal(t, usdtContract, tr.TokenAddress)
	// Table decimals (6) win over the listing's bogus 18.
	assert.True(t, tr.Amount.Equal(decimal.NewFromInt(25)), "got %s", tr.Amount)
}

func TestNormalizeChecksummedContractMatchesTable(t *testing.T) {
	client := &Client{}
	descriptor := map[string]interface{}{
		"hash":     "0xabc123",
		"from":     testWallet,
		"to":       testCounterparty,
		"category": "erc20",
		"rawContract": map[string]interface{}{
			"address": "0xdAC17F958D2ee523a2206206994597C13D831ec7",
			"value":   "0xf4240",
			"decimal": "0x6",
		},
	}

	transfers := client.Normalize(rawEvent(t, descriptor), testWallet)

	require.Len(t, transfers, 1)
	assert.Equal(t, "USDT", transfers[0].TokenSymbol)
	assert.True(t, transfers[0].Amount.Equal(decimal.NewFromInt(1)))
}

func TestNormalizeUnknownTokenSyntheticSymbol(t *testing.T) {
	client := &Client{}
	unknownContract := "0x1234567890abcdef1234567890abcdef12345678"
	descriptor := map[string]interface{}{
		"hash":     "0xabc123",
		"from":     testWallet,
		"to":       testCounterparty,
		"category": "erc20",
		"rawContract": map[string]interface{}{
			"address": unknownContract,
			"value":   "0xde0b6b3a7640000",
			"decimal": "0x12",
		},
	}

	transfers := client.Normalize(rawEvent(t, descriptor), testWallet)

	require.Len(t, transfers, 1)
	assert.Equal(t, "TOKEN_0x123456", transfers[0].TokenSymbol)
	assert.True(t, transfers[0].Amount.Equal(decimal.NewFromInt(1)), "got %s", transfers[0].Amount)
}

func TestNormalizeUninvolvedAddressMarkedInteraction(t *testing.T) {
	client := &Client{}
	descriptor := map[string]interface{}{
		"hash":     "0xabc123",
		"from":     testCounterparty,
		"to":       "0x000000000000000000000000000000000000dead",
		"value":    0.1,
		"category": "external",
	}

	transfers := client.Normalize(rawEvent(t, descriptor), testWallet)

	require.Len(t, transfers, 1)
	assert.Equal(t, models.DirectionInteraction, transfers[0].Direction)
}

func TestNormalizeMalformedDescriptor(t *testing.T) {
	client := &Client{}
	raw := &chain.RawTransferEvent{
		Hash:       "0xabc123",
		Descriptor: json.RawMessage(`{"from": `),
	}

	assert.Empty(t, client.Normalize(raw, testWallet))
}

func TestValidateAddress(t *testing.T) {
	client := &Client{}

	assert.NoError(t, client.ValidateAddress(testWallet))
	assert.NoError(t, client.ValidateAddress("0x742D35Cc6634C0532925a3b844Bc454e4438f44E"))
	assert.Error(t, client.ValidateAddress("742d35cc6634c0532925a3b844bc454e4438f44"))
	assert.Error(t, client.ValidateAddress("not-an-address"))
}

func TestNormalizeAddressLowercases(t *testing.T) {
	client := &Client{}

	assert.Equal(t, testWallet, client.NormalizeAddress(" 0x742D35Cc6634C0532925a3b844Bc454e4438f44E "))
}
