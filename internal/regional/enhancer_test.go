package regional

import (
	"testing"

	"github.com/nutriagg/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnhance_DetectionSignals(t *testing.T) {
	e := NewEnhancer(AustralianProfile())

	tests := []struct {
		name string
		item domain.FoodItem
		want bool
	}{
		{"known brand", domain.FoodItem{Name: "Cheese Slices", Brand: "Bega"}, true},
		{"retailer in name", domain.FoodItem{Name: "Woolworths Free Range Eggs"}, true},
		{"text indicator", domain.FoodItem{Name: "Honey, Product of Australia"}, true},
		{"barcode prefix", domain.FoodItem{Name: "Plain Crackers", Barcode: "9310072001234"}, true},
		{"nothing regional", domain.FoodItem{Name: "Nutella", Brand: "Ferrero", Barcode: "3017620422003"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Enhance(tt.item)
			assert.Equal(t, tt.want, got.RegionalProduct)
		})
	}
}

func TestEnhance_ConfidenceBoostClamped(t *testing.T) {
	e := NewEnhancer(AustralianProfile())

	boosted := e.Enhance(domain.FoodItem{Name: "Vegemite Spread", Confidence: 0.5})
	assert.InDelta(t, 0.6, boosted.Confidence, 1e-9)

	clamped := e.Enhance(domain.FoodItem{Name: "Vegemite Spread", Confidence: 0.95})
	assert.InDelta(t, 1.0, clamped.Confidence, 1e-9)
}

func TestEnhance_NoOpWhenUndetected(t *testing.T) {
	e := NewEnhancer(AustralianProfile())

	in := domain.FoodItem{
		Name:        "Imported Olive Oil",
		Brand:       "Colavita",
		ServingSize: "1 tbsp",
		Confidence:  0.7,
	}
	out := e.Enhance(in)

	// Input returned unchanged, serving string included.
	assert.Equal(t, in, out)
}

func TestEnhance_MetricServingRewrite(t *testing.T) {
	e := NewEnhancer(AustralianProfile())

	out := e.Enhance(domain.FoodItem{Name: "Milo Powder", ServingSize: "3.5 oz"})
	assert.Equal(t, "99 g", out.ServingSize)

	out = e.Enhance(domain.FoodItem{Name: "Milo Powder", ServingSize: "1 cup"})
	assert.Equal(t, "250 ml", out.ServingSize)

	// Already-metric servings are left alone.
	out = e.Enhance(domain.FoodItem{Name: "Milo Powder", ServingSize: "20g"})
	assert.Equal(t, "20g", out.ServingSize)
}

func TestEnhance_HealthRatingBackfill(t *testing.T) {
	e := NewEnhancer(AustralianProfile())

	out := e.Enhance(domain.FoodItem{
		Name:           "Weet-Bix",
		NutritionFacts: map[string]float64{"healthScore": 4.5},
	})
	require.NotNil(t, out.HealthRating)
	assert.InDelta(t, 4.5, *out.HealthRating, 1e-9)

	// An existing rating is never overwritten.
	existing := 2.0
	out = e.Enhance(domain.FoodItem{
		Name:           "Weet-Bix",
		HealthRating:   &existing,
		NutritionFacts: map[string]float64{"healthScore": 4.5},
	})
	assert.InDelta(t, 2.0, *out.HealthRating, 1e-9)
}
