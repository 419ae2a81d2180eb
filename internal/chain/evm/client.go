// Package evm implements the chain.Client adapter for Ethereum-compatible
// chains using Alchemy's enhanced transfer API.
package evm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Tad-z/BlockTrace-api/internal/chain"
	"github.com/Tad-z/BlockTrace-api/internal/config"
	"github.com/Tad-z/BlockTrace-api/internal/models"
	"github.com/Tad-z/BlockTrace-api/pkg/logger"
)

const (
	chainName    = "ethereum"
	nativeSymbol = "ETH"

	// maxTransferCount is Alchemy's per-call ceiling for getAssetTransfers.
	maxTransferCount = 1000

	// secondsPerBlock drives timestamp estimation when the transfer
	// metadata carries no block timestamp.
	secondsPerBlock = 12

	// latestBlockTTL bounds how often eth_blockNumber is refreshed for
	// timestamp estimation.
	latestBlockTTL = time.Minute
)

// transferCategories covered by the listing. NFTs are included so activity
// still appears in the graph; their amounts normalize as token transfers.
var transferCategories = []string{"external", "internal", "erc20", "erc721", "erc1155"}

// Client talks to an Ethereum JSON-RPC endpoint with Alchemy extensions.
type Client struct {
	httpClient *http.Client
	endpoint   string
	limiter    *rate.Limiter
	requestID  atomic.Int64
	log        *logger.Logger

	blockMu       sync.Mutex
	latestBlock   uint64
	latestBlockAt time.Time
}

// NewClient creates an Ethereum chain client from RPC configuration.
func NewClient(cfg *config.RPCConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:        logger.GetLogger().WithFields(map[string]interface{}{"chain": chainName}),
	}
}

// Name returns the canonical chain name.
func (c *Client) Name() string { return chainName }

// NativeSymbol returns the native asset symbol.
func (c *Client) NativeSymbol() string { return nativeSymbol }

// KnownSymbols returns the ERC-20 symbols this client can resolve.
func (c *Client) KnownSymbols() []string {
	symbols := make([]string, 0, len(erc20Tokens)+1)
	symbols = append(symbols, nativeSymbol)
	for _, info := range erc20Tokens {
		symbols = append(symbols, info.Symbol)
	}
	return symbols
}

// ValidateAddress checks that address is a well-formed hex address.
func (c *Client) ValidateAddress(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid ethereum address %q", address)
	}
	return nil
}

// NormalizeAddress lowercases the hex address so equality checks are
// checksum-insensitive.
func (c *Client) NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// GetBalance returns the ETH balance for address.
func (c *Client) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	result, err := c.call(ctx, "eth_getBalance", []interface{}{address, "latest"})
	if err != nil {
		return decimal.Zero, fmt.Errorf("eth_getBalance: %w", err)
	}

	var hexBalance string
	if err := json.Unmarshal(result, &hexBalance); err != nil {
		return decimal.Zero, fmt.Errorf("unmarshal balance: %w", err)
	}

	wei, err := hexutil.DecodeBig(hexBalance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode balance %q: %w", hexBalance, err)
	}

	// Wei to ETH.
	return decimal.NewFromBigInt(wei, -18), nil
}

// ListTransferSignatures queries asset transfers in both directions and
// merges them, deduplicating by transaction hash. Alchemy has no combined
// from-or-to filter, so two calls are required.
func (c *Client) ListTransferSignatures(ctx context.Context, address string, limit int) ([]chain.SignatureInfo, error) {
	count := limit
	if count > maxTransferCount {
		count = maxTransferCount
	}

	outgoing, err := c.listAssetTransfers(ctx, map[string]interface{}{"fromAddress": address}, count)
	if err != nil {
		return nil, fmt.Errorf("outgoing transfers: %w", err)
	}
	incoming, err := c.listAssetTransfers(ctx, map[string]interface{}{"toAddress": address}, count)
	if err != nil {
		return nil, fmt.Errorf("incoming transfers: %w", err)
	}

	seen := make(map[string]struct{}, len(outgoing)+len(incoming))
	sigs := make([]chain.SignatureInfo, 0, len(outgoing)+len(incoming))
	for _, entry := range append(outgoing, incoming...) {
		if entry.Hash == "" {
			continue
		}
		if _, dup := seen[entry.Hash]; dup {
			continue
		}
		seen[entry.Hash] = struct{}{}

		info := chain.SignatureInfo{
			Hash:   entry.Hash,
			Cursor: entry.BlockNum,
			Raw:    entry.raw,
		}
		if entry.Metadata != nil && entry.Metadata.BlockTimestamp != "" {
			if ts, err := time.Parse(time.RFC3339, entry.Metadata.BlockTimestamp); err == nil {
				info.ObservedAt = ts.UTC()
			}
		}
		sigs = append(sigs, info)
		if len(sigs) == limit {
			break
		}
	}

	return sigs, nil
}

func (c *Client) listAssetTransfers(ctx context.Context, directionFilter map[string]interface{}, count int) ([]assetTransfer, error) {
	params := map[string]interface{}{
		"fromBlock":        "0x0",
		"toBlock":          "latest",
		"category":         transferCategories,
		"withMetadata":     true,
		"excludeZeroValue": false,
		"maxCount":         hexutil.EncodeUint64(uint64(count)),
	}
	for k, v := range directionFilter {
		params[k] = v
	}

	result, err := c.call(ctx, "alchemy_getAssetTransfers", []interface{}{params})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Transfers []json.RawMessage `json:"transfers"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal transfers: %w", err)
	}

	transfers := make([]assetTransfer, 0, len(payload.Transfers))
	for _, raw := range payload.Transfers {
		var entry assetTransfer
		if err := json.Unmarshal(raw, &entry); err != nil {
			c.log.Warn("Skipping unparsable transfer entry", zap.Error(err))
			continue
		}
		entry.raw = raw
		transfers = append(transfers, entry)
	}
	return transfers, nil
}

// GetTransferDetail enriches one listed transfer with fee and execution
// status from the transaction and its receipt. The listing entry itself is
// carried through as the descriptor for normalization.
func (c *Client) GetTransferDetail(ctx context.Context, sig chain.SignatureInfo) (*chain.RawTransferEvent, error) {
	detailResult, err := c.call(ctx, "eth_getTransactionByHash", []interface{}{sig.Hash})
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionByHash(%s): %w", sig.Hash, err)
	}
	receiptResult, err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{sig.Hash})
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt(%s): %w", sig.Hash, err)
	}

	var detail txDetail
	if err := json.Unmarshal(detailResult, &detail); err != nil {
		return nil, fmt.Errorf("unmarshal transaction %s: %w", sig.Hash, err)
	}
	var receipt *txReceipt
	if err := json.Unmarshal(receiptResult, &receipt); err != nil {
		return nil, fmt.Errorf("unmarshal receipt %s: %w", sig.Hash, err)
	}

	raw := &chain.RawTransferEvent{
		Hash:       sig.Hash,
		Status:     models.StatusFailed,
		Detail:     detailResult,
		Descriptor: sig.Raw,
	}

	if receipt != nil {
		if receipt.Status == "0x1" {
			raw.Status = models.StatusSuccess
		}
		gasUsed, usedErr := hexutil.DecodeUint64(receipt.GasUsed)
		gasPrice, priceErr := hexutil.DecodeUint64(detail.GasPrice)
		if usedErr == nil && priceErr == nil {
			raw.Fee = decimal.NewFromInt(int64(gasUsed)).
				Mul(decimal.New(int64(gasPrice), -18))
		}
	}

	if !sig.ObservedAt.IsZero() {
		raw.Timestamp = sig.ObservedAt
	} else {
		raw.Timestamp = c.estimateTimestamp(ctx, sig)
		raw.Estimated = true
	}

	return raw, nil
}

// estimateTimestamp approximates a transfer's time from its block height
// and the current head, assuming the average block interval.
func (c *Client) estimateTimestamp(ctx context.Context, sig chain.SignatureInfo) time.Time {
	now := time.Now().UTC()

	var entry assetTransfer
	if err := json.Unmarshal(sig.Raw, &entry); err != nil || entry.BlockNum == "" {
		return now
	}
	blockNum, err := hexutil.DecodeUint64(entry.BlockNum)
	if err != nil {
		return now
	}

	head, err := c.latestBlockNumber(ctx)
	if err != nil || head < blockNum {
		return now
	}

	blocksAgo := head - blockNum
	return now.Add(-time.Duration(blocksAgo) * secondsPerBlock * time.Second)
}

func (c *Client) latestBlockNumber(ctx context.Context) (uint64, error) {
	c.blockMu.Lock()
	defer c.blockMu.Unlock()

	if time.Since(c.latestBlockAt) < latestBlockTTL && c.latestBlock > 0 {
		return c.latestBlock, nil
	}

	result, err := c.call(ctx, "eth_blockNumber", []interface{}{})
	if err != nil {
		return 0, err
	}
	var hexBlock string
	if err := json.Unmarshal(result, &hexBlock); err != nil {
		return 0, err
	}
	block, err := hexutil.DecodeUint64(hexBlock)
	if err != nil {
		return 0, err
	}

	c.latestBlock = block
	c.latestBlockAt = time.Now()
	return block, nil
}

// Ping checks upstream reachability via eth_blockNumber.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.call(ctx, "eth_blockNumber", []interface{}{}); err != nil {
		return fmt.Errorf("eth_blockNumber: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      int(c.requestID.Add(1)),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", method, err, chain.ErrUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", chain.ErrUnavailable)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.log.Warn("Upstream rate limited", zap.String("method", method))
		return nil, fmt.Errorf("%s: http 429: %w", method, chain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: http %d: %w", method, resp.StatusCode, chain.ErrUnavailable)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", chain.ErrUnavailable)
	}

	if rpcResp.Error != nil {
		if rpcResp.Error.rateLimited() {
			return nil, fmt.Errorf("%s: %v: %w", method, rpcResp.Error, chain.ErrRateLimited)
		}
		return nil, fmt.Errorf("%s: %v: %w", method, rpcResp.Error, chain.ErrUnavailable)
	}

	return rpcResp.Result, nil
}
