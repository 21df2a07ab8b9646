package domain

import "time"

// FoodItem is the canonical nutrition record every provider payload is
// normalized into. All nutrition values are per 100g.
type FoodItem struct {
	ID          string `json:"id"`
	Barcode     string `json:"barcode,omitempty"`
	Name        string `json:"name"`
	Brand       string `json:"brand,omitempty"`
	ServingSize string `json:"servingSize,omitempty"`

	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`

	// Optional nutrients stay nil when the source did not report them,
	// so callers can tell "zero" from "unknown".
	Fiber  *float64 `json:"fiber,omitempty"`
	Sugar  *float64 `json:"sugar,omitempty"`
	Sodium *float64 `json:"sodium,omitempty"`

	// NutritionFacts carries extended nutrients (vitamins, minerals)
	// keyed by nutrient name, per 100g.
	NutritionFacts map[string]float64 `json:"nutritionFacts,omitempty"`

	ImageURL string `json:"imageUrl,omitempty"`

	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"` // 0-1 completeness/quality score
	Verified   bool    `json:"verified"`

	RegionalProduct bool     `json:"regionalProduct,omitempty"`
	HealthRating    *float64 `json:"healthRating,omitempty"` // 0-5

	// Usage metadata, set by the caller layer rather than the engine.
	Category  string    `json:"category,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Quantity  float64   `json:"quantity,omitempty"`
}

// RawRecord is the provider-agnostic intermediate an adapter fills from
// its own wire format before normalization. Numeric fields are pointers
// so the normalizer can distinguish missing from zero when scoring
// completeness.
type RawRecord struct {
	ID      string
	Barcode string
	Name    string
	Brand   string
	Source  string

	// ServingSize is the free-text serving description ("3.5 oz",
	// "1 cup", "100g"). ServingWeightGrams short-circuits text parsing
	// when the source reports an explicit gram weight.
	ServingSize        string
	ServingWeightGrams *float64

	// PerServing marks nutrient values as per-serving rather than
	// per-100g; the normalizer rescales using the serving weight.
	PerServing bool

	Calories *float64 // kcal
	EnergyKJ *float64 // kilojoules, used when kcal is absent
	Protein  *float64
	Carbs    *float64
	Fat      *float64
	Fiber    *float64
	Sugar    *float64
	Sodium   *float64

	Extended map[string]float64

	ImageURL     string
	Verified     bool
	QualityScore float64 // 0-1 when the source reports one, else 0
}

// CacheEntry is the persisted form of one cached FoodItem.
type CacheEntry struct {
	Key       string    `json:"key"`
	Data      FoodItem  `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the entry is logically absent at t.
func (e CacheEntry) Expired(t time.Time) bool {
	return t.After(e.ExpiresAt)
}
