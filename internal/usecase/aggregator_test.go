package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nutriagg/backend/internal/domain"
	"github.com/nutriagg/backend/internal/infrastructure/cache"
	"github.com/nutriagg/backend/internal/infrastructure/kvstore"
	"github.com/nutriagg/backend/internal/infrastructure/quota"
	"github.com/nutriagg/backend/internal/regional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProvider scripts a provider's behavior and records its calls.
type fakeProvider struct {
	name      string
	priority  int
	available bool

	mu           sync.Mutex
	barcodeCalls int
	searchCalls  int

	barcodeItem *domain.FoodItem
	barcodeErr  error
	searchItems []domain.FoodItem
	searchErr   error
	delay       time.Duration
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Priority() int   { return f.priority }
func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) LookupBarcode(ctx context.Context, code string) (*domain.FoodItem, error) {
	f.mu.Lock()
	f.barcodeCalls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.barcodeErr != nil {
		return nil, f.barcodeErr
	}
	return f.barcodeItem, nil
}

func (f *fakeProvider) SearchFood(ctx context.Context, query string) ([]domain.FoodItem, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()

	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchItems, nil
}

func (f *fakeProvider) calls() (barcode, search int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.barcodeCalls, f.searchCalls
}

type fixture struct {
	agg     *Aggregator
	cache   *cache.Store
	tracker *quota.Tracker
}

func newFixture(t *testing.T, cfg AggregatorConfig, providers ...*fakeProvider) fixture {
	t.Helper()

	cacheStore := cache.NewStore(kvstore.NewMemoryStore(), cache.Options{})
	tracker := quota.NewTracker(kvstore.NewMemoryStore())

	list := make([]domain.Provider, 0, len(providers))
	for _, p := range providers {
		tracker.Register(p.name, quota.Unlimited, p.priority)
		list = append(list, p)
	}

	agg := NewAggregator(list, cacheStore, tracker,
		regional.NewEnhancer(regional.AustralianProfile()), cfg, zap.NewNop())
	return fixture{agg: agg, cache: cacheStore, tracker: tracker}
}

func food(name, brand, source string, confidence float64) domain.FoodItem {
	return domain.FoodItem{
		ID: name, Name: name, Brand: brand, Source: source,
		Calories: 100, Confidence: confidence,
	}
}

func TestLookupBarcode_WaterfallShortCircuit(t *testing.T) {
	exhausted := &fakeProvider{name: "a", priority: 1, available: true,
		barcodeItem: &domain.FoodItem{Name: "should never be seen", Source: "a"}}
	empty := &fakeProvider{name: "b", priority: 2, available: true}
	hit := &fakeProvider{name: "c", priority: 3, available: true,
		barcodeItem: &domain.FoodItem{Name: "Found Item", Source: "c", Confidence: 0.8}}

	fx := newFixture(t, AggregatorConfig{}, exhausted, empty, hit)

	// Provider a has a 0/day quota: admission denies it up front.
	fx.tracker.Register("a", 0, 1)

	result := fx.agg.LookupBarcode(context.Background(), "12345")
	require.True(t, result.Success)
	assert.Equal(t, "c", result.Data.Source)

	aCalls, _ := exhausted.calls()
	bCalls, _ := empty.calls()
	cCalls, _ := hit.calls()
	assert.Zero(t, aCalls, "quota-exhausted provider is never invoked")
	assert.Equal(t, 1, bCalls)
	assert.Equal(t, 1, cCalls)

	// Both completed calls consumed quota, including b's not-found.
	stats := fx.agg.GetUsageStats()
	assert.Equal(t, 0, stats["a"].CallsToday)
	assert.Equal(t, 1, stats["b"].CallsToday)
	assert.Equal(t, 1, stats["c"].CallsToday)
}

func TestLookupBarcode_TimeoutFallsThroughAndCaches(t *testing.T) {
	slow := &fakeProvider{name: "slow", priority: 1, available: true,
		delay:       200 * time.Millisecond,
		barcodeItem: &domain.FoodItem{Name: "Too Late", Source: "slow"}}
	fallback := &fakeProvider{name: "fallback", priority: 2, available: true,
		barcodeItem: &domain.FoodItem{Name: "Nutella", Brand: "Ferrero", Source: "fallback", Confidence: 0.9}}

	fx := newFixture(t, AggregatorConfig{ProviderTimeout: 50 * time.Millisecond}, slow, fallback)

	result := fx.agg.LookupBarcode(context.Background(), "3017620422003")
	require.True(t, result.Success)
	assert.Equal(t, "fallback", result.Data.Source)
	assert.False(t, result.CacheHit)

	// A second identical lookup is served from cache with zero
	// additional provider calls.
	again := fx.agg.LookupBarcode(context.Background(), "3017620422003")
	require.True(t, again.Success)
	assert.True(t, again.CacheHit)
	assert.Equal(t, "cache", again.Data.Source)

	slowCalls, _ := slow.calls()
	fallbackCalls, _ := fallback.calls()
	assert.Equal(t, 1, slowCalls)
	assert.Equal(t, 1, fallbackCalls)
}

func TestLookupBarcode_TransportErrorDoesNotConsumeQuota(t *testing.T) {
	failing := &fakeProvider{name: "down", priority: 1, available: true,
		barcodeErr: errors.New("connection refused")}
	fx := newFixture(t, AggregatorConfig{}, failing)

	result := fx.agg.LookupBarcode(context.Background(), "12345")
	assert.False(t, result.Success)
	assert.Equal(t, 0, fx.agg.GetUsageStats()["down"].CallsToday)
}

func TestLookupBarcode_InvalidInput(t *testing.T) {
	fx := newFixture(t, AggregatorConfig{}, &fakeProvider{name: "a", priority: 1, available: true})

	result := fx.agg.LookupBarcode(context.Background(), "   ")
	assert.False(t, result.Success)
	assert.Equal(t, domain.ErrInvalidInput.Error(), result.Error)
}

func TestSearchFood_MergeDedupAndSort(t *testing.T) {
	first := &fakeProvider{name: "a", priority: 1, available: true,
		searchItems: []domain.FoodItem{
			food("Apple Juice", "Golden Circle", "a", 0.6), // regional brand
			food("Apple Pie", "BakeCo", "a", 0.9),
			food("Apple Sauce", "SauceCo", "a", 0.5),
		}}
	second := &fakeProvider{name: "b", priority: 2, available: true,
		searchItems: []domain.FoodItem{
			food("Apple Pie", "BakeCo", "b", 0.95), // duplicate of a's item
			food("Apple Cider", "CiderCo", "b", 0.7),
		}}

	fx := newFixture(t, AggregatorConfig{}, first, second)

	result := fx.agg.SearchFood(context.Background(), "apple")
	require.True(t, result.Success)
	require.Len(t, result.Results, 4, "duplicate name+brand collapses to one")
	assert.Equal(t, 4, result.TotalResults)
	assert.ElementsMatch(t, []string{"a", "b"}, result.Sources)

	// Regional item first, then confidence descending.
	assert.Equal(t, "Apple Juice", result.Results[0].Name)
	assert.True(t, result.Results[0].RegionalProduct)
	assert.Equal(t, "Apple Pie", result.Results[1].Name)
	assert.Equal(t, "a", result.Results[1].Source, "first-seen instance wins the dedupe")
	assert.Equal(t, "Apple Cider", result.Results[2].Name)
	assert.Equal(t, "Apple Sauce", result.Results[3].Name)
}

func TestSearchFood_SortInvariant(t *testing.T) {
	provider := &fakeProvider{name: "a", priority: 1, available: true,
		searchItems: []domain.FoodItem{
			food("Plain Crackers Alpha", "X", "a", 0.2),
			food("Vegemite Spread", "Bega", "a", 0.1), // regional, lowest confidence
			food("Plain Crackers Beta", "Y", "a", 0.8),
		}}
	fx := newFixture(t, AggregatorConfig{}, provider)

	result := fx.agg.SearchFood(context.Background(), "anything")
	require.True(t, result.Success)

	for i, a := range result.Results {
		for _, b := range result.Results[i+1:] {
			if a.RegionalProduct && !b.RegionalProduct {
				continue // regional precedes non-regional: invariant holds
			}
			if a.RegionalProduct == b.RegionalProduct {
				assert.GreaterOrEqual(t, a.Confidence, b.Confidence)
			} else {
				assert.Fail(t, "non-regional item precedes regional item")
			}
		}
	}
}

func TestSearchFood_CapsResults(t *testing.T) {
	items := make([]domain.FoodItem, 30)
	for i := range items {
		items[i] = food("Item "+string(rune('A'+i)), "B", "a", 0.5)
	}
	provider := &fakeProvider{name: "a", priority: 1, available: true, searchItems: items}
	fx := newFixture(t, AggregatorConfig{}, provider)

	result := fx.agg.SearchFood(context.Background(), "item")
	assert.Len(t, result.Results, 20)
}

func TestSearchFood_NoAdmittedProviders(t *testing.T) {
	unavailable := &fakeProvider{name: "a", priority: 1, available: false}
	fx := newFixture(t, AggregatorConfig{}, unavailable)

	result := fx.agg.SearchFood(context.Background(), "apple")
	assert.False(t, result.Success)
	assert.Empty(t, result.Results)
}

func TestSearchFood_AllProvidersFailing(t *testing.T) {
	broken := &fakeProvider{name: "a", priority: 1, available: true,
		searchErr: errors.New("boom")}
	fx := newFixture(t, AggregatorConfig{}, broken)

	result := fx.agg.SearchFood(context.Background(), "apple")
	assert.False(t, result.Success)
	assert.Equal(t, 0, fx.agg.GetUsageStats()["a"].CallsToday)
}

func TestSearchFood_EmptyResultsStillSuccess(t *testing.T) {
	quiet := &fakeProvider{name: "a", priority: 1, available: true}
	fx := newFixture(t, AggregatorConfig{}, quiet)

	result := fx.agg.SearchFood(context.Background(), "xyzzy")
	assert.True(t, result.Success)
	assert.Empty(t, result.Results)
	assert.Equal(t, 0, fx.agg.GetUsageStats()["a"].CallsToday,
		"empty result sets consume no quota")
}

func TestDailyQuotaSkipsProviderOnThirdCall(t *testing.T) {
	provider := &fakeProvider{name: "p", priority: 1, available: true,
		barcodeItem: &domain.FoodItem{Name: "X", Source: "p"}}
	fx := newFixture(t, AggregatorConfig{}, provider)
	fx.tracker.Register("p", 2, 1)

	// Distinct barcodes so the cache never short-circuits.
	require.True(t, fx.agg.LookupBarcode(context.Background(), "1").Success)
	require.True(t, fx.agg.LookupBarcode(context.Background(), "2").Success)

	third := fx.agg.LookupBarcode(context.Background(), "3")
	assert.False(t, third.Success)

	calls, _ := provider.calls()
	assert.Equal(t, 2, calls, "third call skips the provider entirely")
}

func TestGetBulkProducts(t *testing.T) {
	provider := &fakeProvider{name: "a", priority: 1, available: true,
		barcodeItem: &domain.FoodItem{Name: "Found", Source: "a"}}
	fx := newFixture(t, AggregatorConfig{BulkBatchSize: 2, BulkBatchDelay: time.Millisecond}, provider)

	result := fx.agg.GetBulkProducts(context.Background(), []string{"1", "2", "3", ""})

	assert.Equal(t, 3, result.Summary.Found)
	assert.Equal(t, 0, result.Summary.NotFound)
	assert.Equal(t, 1, result.Summary.Errors, "empty barcode fails alone")
	assert.Equal(t, result.Summary.Found+result.Summary.NotFound+result.Summary.Errors, result.Summary.Total)
}

func TestGetBulkProducts_EmptyInput(t *testing.T) {
	fx := newFixture(t, AggregatorConfig{}, &fakeProvider{name: "a", priority: 1, available: true})

	result := fx.agg.GetBulkProducts(context.Background(), nil)
	assert.Equal(t, domain.BulkSummary{}, result.Summary)
	assert.Empty(t, result.Results)
	assert.Empty(t, result.Errors)
}

func TestGetBulkProducts_MixedOutcomes(t *testing.T) {
	notFound := &fakeProvider{name: "a", priority: 1, available: true}
	fx := newFixture(t, AggregatorConfig{BulkBatchSize: 5}, notFound)

	result := fx.agg.GetBulkProducts(context.Background(), []string{"1", "2"})
	assert.Equal(t, 2, result.Summary.NotFound)
	assert.Equal(t, 2, result.Summary.Total)

	// Not-found barcodes are present in Results with a nil item.
	item, ok := result.Results["1"]
	assert.True(t, ok)
	assert.Nil(t, item)
}

func TestProviderIntrospection(t *testing.T) {
	a := &fakeProvider{name: "a", priority: 2, available: true}
	b := &fakeProvider{name: "b", priority: 1, available: true}
	c := &fakeProvider{name: "c", priority: 3, available: false}
	fx := newFixture(t, AggregatorConfig{}, a, b, c)

	assert.Equal(t, []string{"b", "a"}, fx.agg.GetAvailableProviders())
	assert.Equal(t, "b", fx.agg.GetBestAvailableAPI())
	assert.True(t, fx.agg.HasAvailableAPI())

	// Exhaust b: best available falls through to a.
	fx.tracker.Register("b", 0, 1)
	assert.Equal(t, "a", fx.agg.GetBestAvailableAPI())
}

func TestConfidenceBoundsAfterEnhancement(t *testing.T) {
	provider := &fakeProvider{name: "a", priority: 1, available: true,
		searchItems: []domain.FoodItem{
			food("Vegemite Spread", "Bega", "a", 0.97), // boost would exceed 1
			food("Plain Item Gamma", "X", "a", 0.5),
		}}
	fx := newFixture(t, AggregatorConfig{}, provider)

	result := fx.agg.SearchFood(context.Background(), "spread")
	for _, item := range result.Results {
		assert.GreaterOrEqual(t, item.Confidence, 0.0)
		assert.LessOrEqual(t, item.Confidence, 1.0)
	}
}
