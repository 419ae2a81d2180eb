// Package pricing resolves token USD prices through CoinGecko with a TTL
// cache and hard-coded fallbacks, so pricing never fails a request.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Tad-z/BlockTrace-api/internal/config"
	"github.com/Tad-z/BlockTrace-api/pkg/cache"
	"github.com/Tad-z/BlockTrace-api/pkg/logger"
	"github.com/Tad-z/BlockTrace-api/pkg/mutex"
)

// coingeckoIDs maps token symbols to CoinGecko asset identifiers.
// Symbols absent here always price at zero.
var coingeckoIDs = map[string]string{
	"ETH":   "ethereum",
	"USDC":  "usd-coin",
	"USDT":  "tether",
	"WBTC":  "wrapped-bitcoin",
	"WETH":  "weth",
	"UNI":   "uniswap",
	"MATIC": "matic-network",
	"LINK":  "chainlink",
	"DAI":   "dai",
	"SHIB":  "shiba-inu",
	"BUSD":  "binance-usd",
	"SOL":   "solana",
	"BONK":  "bonk",
	"JUP":   "jupiter",
	"RAY":   "raydium",
	"MNDE":  "marinade",
	"stSOL": "lido-staked-sol",
	"WSOL":  "solana",
	"PENGU": "penguin",
}

// defaultPrices are used when the upstream is throttled or unreachable.
// Symbols without a default fall back to zero.
var defaultPrices = map[string]decimal.Decimal{
	"ETH":   decimal.RequireFromString("4300.73"),
	"USDC":  decimal.RequireFromString("0.999814"),
	"USDT":  decimal.RequireFromString("1.0"),
	"WBTC":  decimal.RequireFromString("111237"),
	"WETH":  decimal.RequireFromString("4304.64"),
	"UNI":   decimal.RequireFromString("9.37"),
	"MATIC": decimal.RequireFromString("0.279483"),
	"LINK":  decimal.RequireFromString("22.26"),
	"DAI":   decimal.RequireFromString("1.0"),
	"SHIB":  decimal.RequireFromString("0.00001237"),
	"BUSD":  decimal.RequireFromString("1.0"),
}

// Oracle is a read-through price cache over CoinGecko's simple/price API.
type Oracle struct {
	httpClient *http.Client
	baseURL    string
	cache      *cache.Cache
	flight     *mutex.KeyMutex
	log        *logger.Logger
}

// NewOracle builds an Oracle from pricing configuration.
func NewOracle(cfg *config.PricingConfig) *Oracle {
	return &Oracle{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cache:      cache.New(cfg.CacheTTL),
		flight:     mutex.New(cfg.CleanupInterval),
		log:        logger.GetLogger().WithFields(map[string]interface{}{"component": "pricing"}),
	}
}

// GetPrice returns the USD price for symbol. Unknown symbols return zero.
// On upstream failure the hard-coded default (or zero) is returned, so there
// is no error path for callers.
func (o *Oracle) GetPrice(ctx context.Context, symbol string) decimal.Decimal {
	id, known := coingeckoIDs[symbol]
	if !known {
		return decimal.Zero
	}

	if price, ok := o.cache.Get(symbol); ok {
		return price
	}

	// Single flight per symbol so a burst of lookups triggers one fetch.
	o.flight.Lock(symbol)
	defer o.flight.Unlock(symbol)

	if price, ok := o.cache.Get(symbol); ok {
		return price
	}

	price, err := o.fetchOne(ctx, id)
	if err != nil {
		price = defaultPrices[symbol]
		o.log.Warn("Price fetch failed, using fallback",
			zap.String("symbol", symbol),
			zap.String("fallback", price.String()),
			zap.Error(err))
	}

	o.cache.Set(symbol, price)
	return price
}

// Prefetch warms the cache for a set of symbols with one batched request.
// Failures are logged and ignored; later GetPrice calls fetch individually.
func (o *Oracle) Prefetch(ctx context.Context, symbols []string) {
	ids := make([]string, 0, len(symbols))
	idToSymbol := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		id, known := coingeckoIDs[symbol]
		if !known {
			continue
		}
		if _, cached := o.cache.Get(symbol); cached {
			continue
		}
		if _, dup := idToSymbol[id]; dup {
			continue
		}
		ids = append(ids, id)
		idToSymbol[id] = symbol
	}
	if len(ids) == 0 {
		return
	}

	prices, err := o.fetch(ctx, ids)
	if err != nil {
		o.log.Warn("Price prefetch failed", zap.Int("symbols", len(ids)), zap.Error(err))
		return
	}

	for id, price := range prices {
		o.cache.Set(idToSymbol[id], price)
	}
}

// Stop releases the cache and single-flight janitors.
func (o *Oracle) Stop() {
	o.cache.Stop()
	o.flight.Stop()
}

func (o *Oracle) fetchOne(ctx context.Context, id string) (decimal.Decimal, error) {
	prices, err := o.fetch(ctx, []string{id})
	if err != nil {
		return decimal.Zero, err
	}
	price, ok := prices[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("no usd quote for %s", id)
	}
	return price, nil
}

func (o *Oracle) fetch(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd",
		o.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price api returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read price response: %w", err)
	}

	var payload map[string]struct {
		USD decimal.Decimal `json:"usd"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal price response: %w", err)
	}

	prices := make(map[string]decimal.Decimal, len(payload))
	for id, quote := range payload {
		prices[id] = quote.USD
	}
	return prices, nil
}
