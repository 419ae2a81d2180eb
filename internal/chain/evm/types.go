package evm

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// rateLimited reports whether the error code indicates provider throttling.
func (e *rpcError) rateLimited() bool {
	return e.Code == -32005 || e.Code == 429
}

// assetTransfer is one entry from alchemy_getAssetTransfers. Value is the
// already-scaled amount for external/internal/erc20 categories; token
// amounts are recomputed from rawContract when a known decimals override
// exists.
type assetTransfer struct {
	Hash        string            `json:"hash"`
	BlockNum    string            `json:"blockNum"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Value       *decimal.Decimal  `json:"value"`
	Category    string            `json:"category"`
	RawContract *rawContract      `json:"rawContract"`
	Metadata    *transferMetadata `json:"metadata"`

	raw json.RawMessage
}

type rawContract struct {
	Value   string `json:"value"`
	Address string `json:"address"`
	Decimal string `json:"decimal"`
}

type transferMetadata struct {
	BlockTimestamp string `json:"blockTimestamp"`
}

type txDetail struct {
	GasPrice string `json:"gasPrice"`
}

type txReceipt struct {
	GasUsed string `json:"gasUsed"`
	Status  string `json:"status"`
}
