package solana

import (
	"encoding/json"
	"fmt"
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

// rateLimited reports whether the error code indicates upstream throttling.
// -32005 is the node-is-behind/limit code, -32029 the provider rate limit.
func (e *rpcError) rateLimited() bool {
	return e.Code == -32005 || e.Code == -32029
}

type signatureEntry struct {
	Signature string      `json:"signature"`
	Slot      uint64      `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// txPayload is the jsonParsed getTransaction result.
type txPayload struct {
	Slot        uint64        `json:"slot"`
	BlockTime   *int64        `json:"blockTime"`
	Meta        *txMeta       `json:"meta"`
	Transaction txTransaction `json:"transaction"`
}

type txMeta struct {
	Err          interface{} `json:"err"`
	Fee          uint64      `json:"fee"`
	PreBalances  []int64     `json:"preBalances"`
	PostBalances []int64     `json:"postBalances"`
}

type txTransaction struct {
	Message txMessage `json:"message"`
}

type txMessage struct {
	AccountKeys  []accountKey  `json:"accountKeys"`
	Instructions []instruction `json:"instructions"`
}

// accountKey accepts both the jsonParsed object form and the legacy plain
// string form.
type accountKey struct {
	Pubkey string `json:"pubkey"`
	Signer bool   `json:"signer"`
}

func (k *accountKey) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &k.Pubkey)
	}
	type alias accountKey
	return json.Unmarshal(data, (*alias)(k))
}

type instruction struct {
	Program   string             `json:"program"`
	ProgramID string             `json:"programId"`
	Parsed    *parsedInstruction `json:"parsed"`
}

type parsedInstruction struct {
	Type string          `json:"type"`
	Info json.RawMessage `json:"info"`
}

// systemTransferInfo is the parsed info block of a system-program transfer.
type systemTransferInfo struct {
	Source      string      `json:"source"`
	Destination string      `json:"destination"`
	Lamports    json.Number `json:"lamports"`
}

// splTransferInfo covers both spl-token transfer and transferChecked.
type splTransferInfo struct {
	Source      string         `json:"source"`
	Destination string         `json:"destination"`
	Authority   string         `json:"authority"`
	Mint        string         `json:"mint"`
	Amount      json.Number    `json:"amount"`
	TokenAmount *uiTokenAmount `json:"tokenAmount"`
}

type uiTokenAmount struct {
	Amount         string  `json:"amount"`
	Decimals       int32   `json:"decimals"`
	UIAmountString string  `json:"uiAmountString"`
	UIAmount       float64 `json:"uiAmount"`
}
