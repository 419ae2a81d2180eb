// Package solana implements the chain.Client adapter for the Solana
// JSON-RPC API.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Tad-z/BlockTrace-api/internal/chain"
	"github.com/Tad-z/BlockTrace-api/internal/config"
	"github.com/Tad-z/BlockTrace-api/internal/models"
	"github.com/Tad-z/BlockTrace-api/pkg/logger"
)

const (
	chainName    = "solana"
	nativeSymbol = "SOL"

	// maxPageSize is the upstream ceiling for getSignaturesForAddress.
	maxPageSize = 1000
)

// Client talks to a Solana JSON-RPC endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	limiter    *rate.Limiter
	requestID  atomic.Int64
	log        *logger.Logger
}

// NewClient creates a Solana chain client from RPC configuration.
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

// KnownSymbols returns the SPL token symbols this client can resolve.
func (c *Client) KnownSymbols() []string {
	symbols := make([]string, 0, len(splTokens))
	for _, info := range splTokens {
		symbols = append(symbols, info.Symbol)
	}
	return symbols
}

// ValidateAddress checks that address is a well-formed base-58 public key.
func (c *Client) ValidateAddress(address string) error {
	if _, err := solanago.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("invalid solana address %q: %w", address, err)
	}
	return nil
}

// NormalizeAddress trims whitespace. Base-58 addresses are case-sensitive,
// so no case folding is applied.
func (c *Client) NormalizeAddress(address string) string {
	return strings.TrimSpace(address)
}

// GetBalance returns the SOL balance for address.
func (c *Client) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	result, err := c.call(ctx, "getBalance", []interface{}{
		address,
		map[string]string{"commitment": "finalized"},
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("getBalance: %w", err)
	}

	var balance struct {
		Value int64 `json:"value"`
	}
	if err := json.Unmarshal(result, &balance); err != nil {
		return decimal.Zero, fmt.Errorf("unmarshal balance: %w", err)
	}

	// Lamports to SOL.
	return decimal.New(balance.Value, -9), nil
}

// ListTransferSignatures returns up to limit signature descriptors for
// address, newest first, paginating with the "before" cursor.
func (c *Client) ListTransferSignatures(ctx context.Context, address string, limit int) ([]chain.SignatureInfo, error) {
	sigs := make([]chain.SignatureInfo, 0, limit)
	cursor := ""

	for len(sigs) < limit {
		pageSize := limit - len(sigs)
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		opts := map[string]interface{}{
			"commitment": "finalized",
			"limit":      pageSize,
		}
		if cursor != "" {
			opts["before"] = cursor
		}

		result, err := c.call(ctx, "getSignaturesForAddress", []interface{}{address, opts})
		if err != nil {
			return nil, fmt.Errorf("getSignaturesForAddress: %w", err)
		}

		var page []signatureEntry
		if err := json.Unmarshal(result, &page); err != nil {
			return nil, fmt.Errorf("unmarshal signatures: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, entry := range page {
			info := chain.SignatureInfo{
				Hash:   entry.Signature,
				Cursor: entry.Signature,
			}
			if entry.BlockTime != nil {
				info.ObservedAt = time.Unix(*entry.BlockTime, 0).UTC()
			}
			sigs = append(sigs, info)
		}
		cursor = page[len(page)-1].Signature

		if len(page) < pageSize {
			break
		}
	}

	return sigs, nil
}

// GetTransferDetail fetches the jsonParsed transaction for one signature.
// Fee and execution status come from the transaction meta, independent of
// transfer parsing.
func (c *Client) GetTransferDetail(ctx context.Context, sig chain.SignatureInfo) (*chain.RawTransferEvent, error) {
	result, err := c.call(ctx, "getTransaction", []interface{}{
		sig.Hash,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"commitment":                     "finalized",
			"maxSupportedTransactionVersion": 0,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getTransaction(%s): %w", sig.Hash, err)
	}

	var payload txPayload
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal transaction %s: %w", sig.Hash, err)
	}

	raw := &chain.RawTransferEvent{
		Hash:   sig.Hash,
		Status: models.StatusSuccess,
		Detail: result,
	}

	if payload.Meta != nil {
		raw.Fee = decimal.New(int64(payload.Meta.Fee), -9)
		if payload.Meta.Err != nil {
			raw.Status = models.StatusFailed
		}
	}

	switch {
	case payload.BlockTime != nil:
		raw.Timestamp = time.Unix(*payload.BlockTime, 0).UTC()
	case !sig.ObservedAt.IsZero():
		raw.Timestamp = sig.ObservedAt
		raw.Estimated = true
	default:
		raw.Timestamp = time.Now().UTC()
		raw.Estimated = true
	}

	return raw, nil
}

// Ping checks upstream reachability via getSlot.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.call(ctx, "getSlot", []interface{}{map[string]string{"commitment": "finalized"}}); err != nil {
		return fmt.Errorf("getSlot: %w", err)
	}
	return nil
}

// call performs one JSON-RPC request, waiting on the rate limiter first.
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
