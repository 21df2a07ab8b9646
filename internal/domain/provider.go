package domain

import "context"

// Provider is the uniform contract every nutrition-source adapter
// implements. Adapters perform network calls only; cache and quota
// state belong to the orchestrator.
type Provider interface {
	// Name identifies the provider in quota records and result provenance.
	Name() string

	// Priority orders the barcode waterfall; lower is tried first.
	Priority() int

	// Available reports whether required credentials are configured.
	// Must not perform network I/O.
	Available() bool

	// SearchFood performs a best-effort text search. No results is a
	// nil or empty slice, never an error; errors are reserved for
	// transport and protocol failures.
	SearchFood(ctx context.Context, query string) ([]FoodItem, error)

	// LookupBarcode resolves a product code. A nil item with nil error
	// means "not found here", distinct from a transport failure.
	LookupBarcode(ctx context.Context, code string) (*FoodItem, error)
}

// BrandSearcher is the optional brand-search capability, checked via
// type assertion rather than runtime probing.
type BrandSearcher interface {
	SearchByBrand(ctx context.Context, brand string) ([]FoodItem, error)
}

// CategorySearcher is the optional category-search capability.
type CategorySearcher interface {
	SearchByCategory(ctx context.Context, category string) ([]FoodItem, error)
}

// Descriptor summarizes a provider's identity and capabilities for
// introspection endpoints.
type Descriptor struct {
	Name         string       `json:"name"`
	Priority     int          `json:"priority"`
	Available    bool         `json:"available"`
	Capabilities Capabilities `json:"capabilities"`
}

// Capabilities flags which optional operations a provider supports.
type Capabilities struct {
	Search         bool `json:"search"`
	Barcode        bool `json:"barcode"`
	BrandSearch    bool `json:"brandSearch"`
	CategorySearch bool `json:"categorySearch"`
}

// DescribeProvider builds a Descriptor from a Provider, deriving the
// optional capabilities from interface satisfaction.
func DescribeProvider(p Provider) Descriptor {
	_, brand := p.(BrandSearcher)
	_, category := p.(CategorySearcher)
	return Descriptor{
		Name:      p.Name(),
		Priority:  p.Priority(),
		Available: p.Available(),
		Capabilities: Capabilities{
			Search:         true,
			Barcode:        true,
			BrandSearch:    brand,
			CategorySearch: category,
		},
	}
}
