package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Tad-z/BlockTrace-api/internal/chain"
	"github.com/Tad-z/BlockTrace-api/internal/config"
	"github.com/Tad-z/BlockTrace-api/internal/models"
	"github.com/Tad-z/BlockTrace-api/pkg/backoff"
	"github.com/Tad-z/BlockTrace-api/pkg/logger"
	"github.com/Tad-z/BlockTrace-api/pkg/metrics"
)

// PriceSource resolves USD prices for token symbols. It never fails;
// unknown symbols price at zero.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) decimal.Decimal
	Prefetch(ctx context.Context, symbols []string)
}

// ProcessStats reports what the batch run did besides producing transfers.
type ProcessStats struct {
	// TimeFiltered counts signatures skipped because they fell outside
	// the tier's time window.
	TimeFiltered int64

	// Dropped counts signatures abandoned after exhausted retries or
	// permanent upstream failures.
	Dropped int64

	// Duplicates counts transfers rejected by identity-key dedup.
	Duplicates int

	// Truncated is set when the unique-transfer cap was reached while
	// eligible transfers remained.
	Truncated bool
}

// Processor turns signature listings into priced, deduplicated transfers.
// Detail fetches run concurrently under a fixed-width semaphore, in
// sub-batches separated by a pacing delay so the upstream provider's rate
// limits are respected.
type Processor struct {
	cfg     config.BatchConfig
	policy  backoff.Policy
	oracle  PriceSource
	metrics *metrics.Collector
	log     *logger.Logger
}

// NewProcessor builds a Processor from batch configuration.
func NewProcessor(cfg config.BatchConfig, oracle PriceSource, collector *metrics.Collector) *Processor {
	return &Processor{
		cfg: cfg,
		policy: backoff.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay,
			MaxDelay:    cfg.MaxDelay,
			MaxJitter:   cfg.MaxJitter,
		},
		oracle:  oracle,
		metrics: collector,
		log:     logger.GetLogger().WithFields(map[string]interface{}{"component": "batch"}),
	}
}

// Process fetches details for sigs, normalizes them relative to
// queriedAddress, prices them, and admits unique transfers in listing order
// until maxTransfers is reached. Signatures older than earliest are skipped
// before any fetch when the listing carried a timestamp, and after detail
// resolution otherwise.
func (p *Processor) Process(ctx context.Context, client chain.Client, sigs []chain.SignatureInfo, queriedAddress string, earliest time.Time, maxTransfers int) ([]models.Transfer, ProcessStats) {
	var stats ProcessStats
	var timeFiltered, dropped atomic.Int64

	dedup := NewDeduplicator()
	results := make([]models.Transfer, 0, maxTransfers)
	sem := semaphore.NewWeighted(int64(p.cfg.Workers))

	for batchStart := 0; batchStart < len(sigs); batchStart += p.cfg.BatchSize {
		batchEnd := batchStart + p.cfg.BatchSize
		if batchEnd > len(sigs) {
			batchEnd = len(sigs)
		}
		batch := sigs[batchStart:batchEnd]

		// Per-index slots keep admission deterministic regardless of
		// goroutine completion order.
		slots := make([][]models.Transfer, len(batch))
		var wg sync.WaitGroup

		for i, sig := range batch {
			if !earliest.IsZero() && !sig.ObservedAt.IsZero() && sig.ObservedAt.Before(earliest) {
				timeFiltered.Add(1)
				continue
			}

			wg.Add(1)
			go func(i int, sig chain.SignatureInfo) {
				defer wg.Done()

				if err := sem.Acquire(ctx, 1); err != nil {
					dropped.Add(1)
					return
				}
				defer sem.Release(1)

				raw, err := p.fetchWithRetry(ctx, client, sig)
				if err != nil {
					dropped.Add(1)
					p.metrics.RecordItemDropped()
					p.log.Warn("Dropping transfer after fetch failure",
						zap.String("hash", sig.Hash), zap.Error(err))
					return
				}

				if !earliest.IsZero() && raw.Timestamp.Before(earliest) {
					timeFiltered.Add(1)
					return
				}

				transfers := client.Normalize(raw, queriedAddress)
				for j := range transfers {
					price := p.oracle.GetPrice(ctx, transfers[j].TokenSymbol)
					transfers[j].USDEquivalent = transfers[j].Amount.Mul(price)
				}
				slots[i] = transfers
			}(i, sig)
		}
		wg.Wait()

		for _, transfers := range slots {
			for _, t := range transfers {
				if dedup.Seen(t.Key()) {
					stats.Duplicates++
					continue
				}
				if len(results) >= maxTransfers {
					stats.Truncated = true
					break
				}
				results = append(results, t)
			}
			if stats.Truncated {
				break
			}
		}

		if len(results) >= maxTransfers {
			// Unfetched batches count as remaining eligible work.
			if !stats.Truncated && batchEnd < len(sigs) {
				stats.Truncated = true
			}
			break
		}

		if batchEnd < len(sigs) && p.cfg.InterBatchDelay > 0 {
			timer := time.NewTimer(p.cfg.InterBatchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				stats.TimeFiltered = timeFiltered.Load()
				stats.Dropped = dropped.Load()
				return results, stats
			case <-timer.C:
			}
		}
	}

	stats.TimeFiltered = timeFiltered.Load()
	stats.Dropped = dropped.Load()
	return results, stats
}

// fetchWithRetry retries rate-limited detail fetches with exponential
// backoff. Any other failure is permanent for the item.
func (p *Processor) fetchWithRetry(ctx context.Context, client chain.Client, sig chain.SignatureInfo) (*chain.RawTransferEvent, error) {
	for attempt := 0; ; attempt++ {
		start := time.Now()
		raw, err := client.GetTransferDetail(ctx, sig)
		p.metrics.RecordRPCCall(time.Since(start), err == nil)
		if err == nil {
			return raw, nil
		}

		if !errors.Is(err, chain.ErrRateLimited) || attempt >= p.policy.MaxAttempts-1 {
			return nil, err
		}

		p.metrics.RecordRPCRetry()
		if sleepErr := p.policy.Sleep(ctx, attempt); sleepErr != nil {
			return nil, sleepErr
		}
	}
}
