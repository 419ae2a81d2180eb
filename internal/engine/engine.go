// Package engine orchestrates one wallet aggregation: tier resolution,
// quota accounting, transfer fetching, normalization, pricing and graph
// assembly.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tad-z/BlockTrace-api/internal/chain"
	"github.com/Tad-z/BlockTrace-api/internal/config"
	"github.com/Tad-z/BlockTrace-api/internal/models"
	"github.com/Tad-z/BlockTrace-api/internal/quota"
	"github.com/Tad-z/BlockTrace-api/internal/resultcache"
	"github.com/Tad-z/BlockTrace-api/internal/tier"
	"github.com/Tad-z/BlockTrace-api/pkg/logger"
	"github.com/Tad-z/BlockTrace-api/pkg/metrics"
)

// listingMultiplier oversizes the signature listing relative to the
// transaction cap, so time filtering and deduplication still leave enough
// candidates to fill the result.
const listingMultiplier = 2

// maxListing bounds the signature listing regardless of tier.
const maxListing = 1000

// Request identifies one aggregation: who is asking, under which tier, and
// which wallet on which chain.
type Request struct {
	User          string
	Tier          string
	Chain         string
	WalletAddress string
}

// Engine wires the aggregation pipeline together. All fields are set at
// construction and never mutated, so one Engine serves concurrent requests.
type Engine struct {
	chains    chain.Registry
	oracle    PriceSource
	processor *Processor
	quota     quota.Ledger
	results   resultcache.Store
	cacheCfg  config.ResultCacheConfig
	metrics   *metrics.Collector
	log       *logger.Logger
}

// New builds an Engine.
func New(chains chain.Registry, oracle PriceSource, processor *Processor, ledger quota.Ledger, results resultcache.Store, cacheCfg config.ResultCacheConfig, collector *metrics.Collector) *Engine {
	return &Engine{
		chains:    chains,
		oracle:    oracle,
		processor: processor,
		quota:     ledger,
		results:   results,
		cacheCfg:  cacheCfg,
		metrics:   collector,
		log:       logger.GetLogger().WithFields(map[string]interface{}{"component": "engine"}),
	}
}

// Aggregate runs the full pipeline for one wallet. Validation and quota
// rejections come back as typed errors; upstream degradation (balance
// failures, dropped items, pricing fallbacks) yields a best-effort result
// instead of an error.
func (e *Engine) Aggregate(ctx context.Context, req Request) (*models.AggregationResult, error) {
	client, ok := e.chains.Get(strings.ToLower(strings.TrimSpace(req.Chain)))
	if !ok {
		return nil, models.NewAppError(models.ErrorCodeUnsupportedChain,
			fmt.Sprintf("chain %q is not supported", req.Chain))
	}

	address := client.NormalizeAddress(req.WalletAddress)
	if err := client.ValidateAddress(address); err != nil {
		return nil, models.NewAppErrorWithCause(models.ErrorCodeInvalidAddress,
			fmt.Sprintf("invalid %s address", client.Name()), err)
	}

	tierName := tier.Normalize(req.Tier)
	limits := tier.Resolve(tierName)

	allowed, used, err := e.quota.Record(ctx, req.User, tierName, address, limits.DailyAddressLimit)
	if err != nil {
		return nil, models.NewAppErrorWithCause(models.ErrorCodeStoreError,
			"quota ledger unavailable", err)
	}
	quotaInfo := &models.QuotaInfo{
		AddressesUsedToday: used,
		DailyLimit:         limits.DailyAddressLimit,
		Remaining:          limits.DailyAddressLimit - used,
	}
	if !allowed {
		e.metrics.RecordQuotaRejection()
		return nil, models.NewAppErrorWithDetails(models.ErrorCodeQuotaExceeded,
			"daily address quota exceeded",
			fmt.Sprintf("%d of %d distinct addresses used today", used, limits.DailyAddressLimit))
	}

	chainKey := client.Name()
	if cached, hit, cacheErr := e.results.Get(ctx, req.User, tierName, chainKey, address); cacheErr == nil && hit {
		e.metrics.RecordCacheHit()
		// Quota state moved since the entry was written.
		cached.QuotaInfo = quotaInfo
		return cached, nil
	} else if cacheErr != nil {
		e.log.Warn("Result cache read failed", zap.Error(cacheErr))
	}
	e.metrics.RecordCacheMiss()

	e.oracle.Prefetch(ctx, client.KnownSymbols())

	earliest := time.Now().UTC().AddDate(0, 0, -limits.TimeRangeDays)

	listingLimit := limits.MaxTransactions * listingMultiplier
	if listingLimit > maxListing {
		listingLimit = maxListing
	}

	var balance decimal.Decimal
	var sigs []chain.SignatureInfo

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := client.GetBalance(gctx, address)
		if err != nil {
			// Balance is decorative relative to the graph; zero it.
			e.log.Warn("Balance fetch failed", zap.String("address", address), zap.Error(err))
			return nil
		}
		balance = b
		return nil
	})
	g.Go(func() error {
		s, err := client.ListTransferSignatures(gctx, address, listingLimit)
		if err != nil {
			e.log.Warn("Signature listing failed", zap.String("address", address), zap.Error(err))
			return nil
		}
		sigs = s
		return nil
	})
	_ = g.Wait()

	transfers, stats := e.processor.Process(ctx, client, sigs, address, earliest, limits.MaxTransactions)

	graph, summary := Assemble(address, balance, client.NativeSymbol(), transfers, limits, stats)

	result := &models.AggregationResult{
		WalletAddress:     address,
		Balance:           balance,
		Chain:             client.Name(),
		SubscriptionTier:  tierName,
		TierLimits:        limits,
		TotalTransactions: len(transfers),
		GraphData:         graph,
		Summary:           summary,
		QuotaInfo:         quotaInfo,
	}

	ttl := e.cacheCfg.TTLFor(tierName)
	if err := e.results.Set(ctx, req.User, tierName, chainKey, address, result, ttl); err != nil {
		e.log.Warn("Result cache write failed", zap.Error(err))
	}

	e.log.Info("Aggregation complete",
		zap.String("address", address),
		zap.String("chain", client.Name()),
		zap.String("tier", tierName),
		zap.Int("transfers", len(transfers)),
		zap.Int64("time_filtered", stats.TimeFiltered),
		zap.Int64("dropped", stats.Dropped),
		zap.Int("duplicates", stats.Duplicates),
		zap.Bool("truncated", stats.Truncated))

	return result, nil
}
