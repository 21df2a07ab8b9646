// Package usecase orchestrates the nutrition-lookup engine: waterfall
// barcode resolution, fan-out text search with merge/dedupe, bulk
// lookups, and usage introspection.
package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nutriagg/backend/internal/domain"
	"github.com/nutriagg/backend/internal/infrastructure/cache"
	"github.com/nutriagg/backend/internal/infrastructure/quota"
	"github.com/nutriagg/backend/internal/regional"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AggregatorConfig holds the orchestration tunables.
type AggregatorConfig struct {
	// ProviderTimeout bounds each provider call so one slow upstream
	// cannot stall a waterfall or batch. A timed-out call is treated
	// like any other transport failure.
	ProviderTimeout time.Duration

	// BulkBatchSize bounds in-flight requests during bulk lookup;
	// BulkBatchDelay is the polite pause between batches.
	BulkBatchSize  int
	BulkBatchDelay time.Duration

	// MaxSearchResults caps the merged search result list.
	MaxSearchResults int

	// CacheTTL is the expiry for cached lookups.
	CacheTTL time.Duration
}

func (c *AggregatorConfig) applyDefaults() {
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 8 * time.Second
	}
	if c.BulkBatchSize <= 0 {
		c.BulkBatchSize = 5
	}
	if c.BulkBatchDelay <= 0 {
		c.BulkBatchDelay = 100 * time.Millisecond
	}
	if c.MaxSearchResults <= 0 {
		c.MaxSearchResults = 20
	}
}

// Aggregator owns the ordered provider list and holds one cache and
// one quota tracker for its lifetime. All public methods return result
// envelopes; partial provider failures degrade gracefully instead of
// propagating.
type Aggregator struct {
	providers []domain.Provider // ascending priority
	cache     *cache.Store
	quota     *quota.Tracker
	enhancer  *regional.Enhancer
	cfg       AggregatorConfig
	log       *zap.Logger
}

// NewAggregator creates the service. Providers are sorted by priority
// and registered with the quota tracker by the caller (main wiring).
func NewAggregator(
	providers []domain.Provider,
	cacheStore *cache.Store,
	quotaTracker *quota.Tracker,
	enhancer *regional.Enhancer,
	cfg AggregatorConfig,
	log *zap.Logger,
) *Aggregator {
	cfg.applyDefaults()

	ordered := make([]domain.Provider, len(providers))
	copy(ordered, providers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	return &Aggregator{
		providers: ordered,
		cache:     cacheStore,
		quota:     quotaTracker,
		enhancer:  enhancer,
		cfg:       cfg,
		log:       log,
	}
}

// LookupBarcode resolves a product code through the waterfall: cache
// first, then providers in priority order, first success wins.
func (a *Aggregator) LookupBarcode(ctx context.Context, code string) domain.LookupResult {
	item, cacheHit, err := a.lookupBarcode(ctx, code)
	if err != nil {
		return domain.LookupResult{Success: false, Error: err.Error()}
	}
	if item == nil {
		return domain.LookupResult{Success: false, Error: domain.ErrNotFound.Error()}
	}
	return domain.LookupResult{
		Success:    true,
		Data:       item,
		Source:     item.Source,
		Confidence: item.Confidence,
		CacheHit:   cacheHit,
	}
}

// lookupBarcode is the waterfall itself: (nil, false, nil) is the
// not-found terminal state.
func (a *Aggregator) lookupBarcode(ctx context.Context, code string) (*domain.FoodItem, bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, false, domain.ErrInvalidInput
	}

	if cached := a.cache.Get(barcodeCacheKey(code)); cached != nil {
		cached.Source = "cache"
		return cached, true, nil
	}

	for _, p := range a.providers {
		if !p.Available() {
			continue
		}
		if !a.quota.CanMakeCall(p.Name()) {
			a.log.Debug("provider skipped, quota exhausted", zap.String("provider", p.Name()))
			continue
		}

		item, err := a.callBarcode(ctx, p, code)
		if err != nil {
			// Transport failure: this provider is out for this call,
			// and no quota is consumed.
			a.log.Warn("barcode lookup failed, trying next provider",
				zap.String("provider", p.Name()),
				zap.String("barcode", code),
				zap.Error(err),
			)
			continue
		}

		a.quota.TrackCall(p.Name())
		if item == nil {
			continue
		}

		enhanced := a.enhancer.Enhance(*item)
		if err := a.cache.Set(barcodeCacheKey(code), enhanced, a.cfg.CacheTTL); err != nil {
			a.log.Warn("failed to cache lookup result", zap.Error(err))
		}
		return &enhanced, false, nil
	}

	return nil, false, nil
}

func (a *Aggregator) callBarcode(ctx context.Context, p domain.Provider, code string) (*domain.FoodItem, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.ProviderTimeout)
	defer cancel()
	return p.LookupBarcode(callCtx, code)
}

// SearchFood fans the query out to every admitted provider
// concurrently, then merges: dedupe by name+brand keeping the first
// occurrence in priority order, regional products first, confidence
// descending, capped.
func (a *Aggregator) SearchFood(ctx context.Context, query string) domain.SearchResult {
	return a.fanOut(ctx, query, func(ctx context.Context, p domain.Provider, q string) ([]domain.FoodItem, bool) {
		items, err := p.SearchFood(ctx, q)
		if err != nil {
			a.log.Warn("search failed",
				zap.String("provider", p.Name()),
				zap.String("query", q),
				zap.Error(err),
			)
			return nil, false
		}
		return items, true
	})
}

// SearchByBrand runs the fan-out over providers implementing the
// brand-search capability.
func (a *Aggregator) SearchByBrand(ctx context.Context, brand string) domain.SearchResult {
	return a.fanOut(ctx, brand, func(ctx context.Context, p domain.Provider, q string) ([]domain.FoodItem, bool) {
		searcher, ok := p.(domain.BrandSearcher)
		if !ok {
			return nil, false
		}
		items, err := searcher.SearchByBrand(ctx, q)
		if err != nil {
			a.log.Warn("brand search failed", zap.String("provider", p.Name()), zap.Error(err))
			return nil, false
		}
		return items, true
	})
}

// SearchByCategory runs the fan-out over providers implementing the
// category-search capability.
func (a *Aggregator) SearchByCategory(ctx context.Context, category string) domain.SearchResult {
	return a.fanOut(ctx, category, func(ctx context.Context, p domain.Provider, q string) ([]domain.FoodItem, bool) {
		searcher, ok := p.(domain.CategorySearcher)
		if !ok {
			return nil, false
		}
		items, err := searcher.SearchByCategory(ctx, q)
		if err != nil {
			a.log.Warn("category search failed", zap.String("provider", p.Name()), zap.Error(err))
			return nil, false
		}
		return items, true
	})
}

// searchCall invokes one provider; ok=false means the provider failed
// or lacks the capability, so nothing is tracked against its quota.
type searchCall func(ctx context.Context, p domain.Provider, query string) ([]domain.FoodItem, bool)

func (a *Aggregator) fanOut(ctx context.Context, query string, call searchCall) domain.SearchResult {
	query = cleanQuery(query)
	if query == "" {
		return domain.SearchResult{Success: false, Results: []domain.FoodItem{}, Error: domain.ErrInvalidInput.Error()}
	}

	admitted := a.admittedProviders()
	if len(admitted) == 0 {
		return domain.SearchResult{Success: false, Results: []domain.FoodItem{}, Error: domain.ErrNoProviders.Error()}
	}

	// One slot per provider keeps merge order deterministic by
	// priority regardless of completion order.
	perProvider := make([][]domain.FoodItem, len(admitted))
	succeeded := make([]bool, len(admitted))

	var mu sync.Mutex
	g, groupCtx := errgroup.WithContext(ctx)
	for i, p := range admitted {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(groupCtx, a.cfg.ProviderTimeout)
			defer cancel()

			items, ok := call(callCtx, p, query)
			mu.Lock()
			perProvider[i] = items
			succeeded[i] = ok
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; failures are recorded per provider.
	_ = g.Wait()

	anySucceeded := false
	var sources []string
	seen := make(map[string]struct{})
	merged := make([]domain.FoodItem, 0)

	for i, p := range admitted {
		if !succeeded[i] {
			continue
		}
		anySucceeded = true

		if len(perProvider[i]) > 0 {
			// Quota is consumed only by providers that produced data.
			a.quota.TrackCall(p.Name())
			sources = append(sources, p.Name())
		}

		for _, item := range perProvider[i] {
			enhanced := a.enhancer.Enhance(item)
			key := dedupeKey(enhanced.Name, enhanced.Brand)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, enhanced)
		}
	}

	if !anySucceeded {
		return domain.SearchResult{Success: false, Results: []domain.FoodItem{}, Error: domain.ErrNoProviders.Error()}
	}

	sortResults(merged)
	if len(merged) > a.cfg.MaxSearchResults {
		merged = merged[:a.cfg.MaxSearchResults]
	}

	return domain.SearchResult{
		Success:      true,
		Results:      merged,
		TotalResults: len(merged),
		Sources:      sources,
	}
}

// sortResults orders regional products first, then by confidence
// descending. The sort is stable so equal items keep merge order.
func sortResults(items []domain.FoodItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].RegionalProduct != items[j].RegionalProduct {
			return items[i].RegionalProduct
		}
		return items[i].Confidence > items[j].Confidence
	})
}

// admittedProviders returns available providers still under quota, in
// priority order.
func (a *Aggregator) admittedProviders() []domain.Provider {
	admitted := make([]domain.Provider, 0, len(a.providers))
	for _, p := range a.providers {
		if p.Available() && a.quota.CanMakeCall(p.Name()) {
			admitted = append(admitted, p)
		}
	}
	return admitted
}

// GetBulkProducts resolves a list of barcodes in fixed-size batches,
// fully concurrent within a batch with a pause between batches. One
// barcode's failure never affects the others.
func (a *Aggregator) GetBulkProducts(ctx context.Context, codes []string) domain.BulkResult {
	result := domain.BulkResult{
		Results: make(map[string]*domain.FoodItem),
		Errors:  make(map[string]string),
	}

	var mu sync.Mutex
batches:
	for start := 0; start < len(codes); start += a.cfg.BulkBatchSize {
		end := start + a.cfg.BulkBatchSize
		if end > len(codes) {
			end = len(codes)
		}

		var g errgroup.Group
		for _, code := range codes[start:end] {
			g.Go(func() error {
				item, _, err := a.lookupBarcode(ctx, code)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Errors[code] = err.Error()
					return nil
				}
				result.Results[code] = item
				return nil
			})
		}
		_ = g.Wait()

		// Inter-batch pause keeps bulk traffic polite to upstreams.
		if end < len(codes) {
			select {
			case <-ctx.Done():
				for _, code := range codes[end:] {
					result.Errors[code] = ctx.Err().Error()
				}
				break batches
			case <-time.After(a.cfg.BulkBatchDelay):
			}
		}
	}

	result.Summary.Total = len(result.Results) + len(result.Errors)
	for _, item := range result.Results {
		if item != nil {
			result.Summary.Found++
		} else {
			result.Summary.NotFound++
		}
	}
	result.Summary.Errors = len(result.Errors)
	return result
}

// GetUsageStats reports per-provider quota standing.
func (a *Aggregator) GetUsageStats() map[string]domain.ProviderUsage {
	return a.quota.UsageStats()
}

// GetCacheStats reports cache size and session hit/miss accounting.
func (a *Aggregator) GetCacheStats() domain.CacheStats {
	return a.cache.Stats()
}

// ClearCache drops every cached lookup.
func (a *Aggregator) ClearCache() {
	a.cache.Clear()
}

// GetAvailableProviders lists configured providers in priority order.
func (a *Aggregator) GetAvailableProviders() []string {
	names := make([]string, 0, len(a.providers))
	for _, p := range a.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}

// DescribeProviders reports every provider's capabilities for
// introspection endpoints.
func (a *Aggregator) DescribeProviders() []domain.Descriptor {
	descriptors := make([]domain.Descriptor, 0, len(a.providers))
	for _, p := range a.providers {
		descriptors = append(descriptors, domain.DescribeProvider(p))
	}
	return descriptors
}

// GetBestAvailableAPI returns the highest-priority provider that is
// both configured and under quota, or "none".
func (a *Aggregator) GetBestAvailableAPI() string {
	for _, p := range a.providers {
		if p.Available() && a.quota.CanMakeCall(p.Name()) {
			return p.Name()
		}
	}
	return "none"
}

// HasAvailableAPI reports whether any provider could serve a call now.
func (a *Aggregator) HasAvailableAPI() bool {
	return a.GetBestAvailableAPI() != "none"
}
