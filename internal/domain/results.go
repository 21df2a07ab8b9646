package domain

// LookupResult is the envelope returned for a single barcode lookup.
type LookupResult struct {
	Success    bool      `json:"success"`
	Data       *FoodItem `json:"data,omitempty"`
	Source     string    `json:"source,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	CacheHit   bool      `json:"cacheHit,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// SearchResult is the envelope returned for text/brand/category search.
type SearchResult struct {
	Success      bool       `json:"success"`
	Results      []FoodItem `json:"results"`
	TotalResults int        `json:"totalResults"`
	Sources      []string   `json:"sources,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// BulkResult aggregates per-barcode outcomes of a bulk lookup. A failed
// barcode appears in Errors without affecting the others; a not-found
// barcode appears in Results with a nil item.
type BulkResult struct {
	Results map[string]*FoodItem `json:"results"`
	Errors  map[string]string    `json:"errors"`
	Summary BulkSummary          `json:"summary"`
}

// BulkSummary satisfies Total == Found + NotFound + Errors.
type BulkSummary struct {
	Total    int `json:"total"`
	Found    int `json:"found"`
	NotFound int `json:"notFound"`
	Errors   int `json:"errors"`
}

// CacheStats reports cumulative cache accounting for this session.
type CacheStats struct {
	Size    int     `json:"size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

// ProviderUsage is one provider's quota standing. Remaining is -1 for
// unlimited providers.
type ProviderUsage struct {
	CallsToday     int `json:"callsToday"`
	CallsThisMonth int `json:"callsThisMonth"`
	Quota          int `json:"quota"`
	Remaining      int `json:"remaining"`
}
