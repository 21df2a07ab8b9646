// Package normalize converts provider-specific raw records into the
// canonical per-100g FoodItem shape and scores their completeness.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nutriagg/backend/internal/domain"
)

// kJPerKcal converts kilojoule energy values to kilocalories.
const kJPerKcal = 4.184

// defaultServingGrams is the denominator when no weight can be derived
// from the serving description.
const defaultServingGrams = 100.0

// Package-level compiled regex patterns for performance
var (
	weightPatternRegex  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(kg|g|grams?|mg|oz|ounces?|lbs?|pounds?|ml|millilitres?|milliliters?|l|litres?|liters?)\b`)
	countPatternRegex   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*([a-z]+)`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

// gramsPerUnit maps measured units to gram equivalents (milk-density
// approximation for volumes, which is close enough for label data).
var gramsPerUnit = map[string]float64{
	"kg": 1000, "g": 1, "gram": 1, "grams": 1, "mg": 0.001,
	"oz": 28.35, "ounce": 28.35, "ounces": 28.35,
	"lb": 453.6, "lbs": 453.6, "pound": 453.6, "pounds": 453.6,
	"ml": 1, "millilitre": 1, "millilitres": 1, "milliliter": 1, "milliliters": 1,
	"l": 1000, "litre": 1000, "litres": 1000, "liter": 1000, "liters": 1000,
}

// containerGrams is the fallback table for container/unit words that
// carry an implied weight.
var containerGrams = map[string]float64{
	"cup": 250, "cups": 250,
	"tbsp": 15, "tablespoon": 15, "tablespoons": 15,
	"tsp": 5, "teaspoon": 5, "teaspoons": 5,
	"slice": 30, "slices": 30,
	"piece": 50, "pieces": 50,
	"serving": 100, "servings": 100, "serve": 100,
	"bar": 45, "bars": 45,
	"can": 330, "cans": 330,
	"bottle": 500, "bottles": 500,
	"packet": 30, "packets": 30, "pack": 30,
	"egg": 50, "eggs": 50,
	"bowl": 300, "bowls": 300,
	"scoop": 30, "scoops": 30,
}

// ratingKeys are extended entries carrying absolute scores that must
// never be rescaled to the 100g basis.
var ratingKeys = map[string]bool{
	"healthRating":   true,
	"nutritionScore": true,
	"healthScore":    true,
}

// Normalizer turns one provider's raw payload into a FoodItem.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize builds the canonical record: per-100g scaling, kJ handling,
// category inference, confidence scoring and non-negative clamping.
func (n *Normalizer) Normalize(rec domain.RawRecord) domain.FoodItem {
	servingGrams := servingWeight(rec)

	// Per-serving sources are rescaled to the 100g basis; per-100g
	// sources pass through untouched.
	factor := 1.0
	if rec.PerServing && servingGrams > 0 {
		factor = defaultServingGrams / servingGrams
	}

	calories := energyKcal(rec)

	item := domain.FoodItem{
		ID:          rec.ID,
		Barcode:     rec.Barcode,
		Name:        strings.TrimSpace(rec.Name),
		Brand:       strings.TrimSpace(rec.Brand),
		ServingSize: strings.TrimSpace(rec.ServingSize),
		Calories:    scaleRequired(calories, factor),
		Protein:     scaleRequired(rec.Protein, factor),
		Carbs:       scaleRequired(rec.Carbs, factor),
		Fat:         scaleRequired(rec.Fat, factor),
		Fiber:       scaleOptional(rec.Fiber, factor),
		Sugar:       scaleOptional(rec.Sugar, factor),
		Sodium:      scaleOptional(rec.Sodium, factor),
		ImageURL:    rec.ImageURL,
		Source:      rec.Source,
		Verified:    rec.Verified || rec.QualityScore > 0.7,
	}

	if item.ID == "" {
		item.ID = synthesizeID(item.Name, item.Brand, rec.Source)
	}

	if len(rec.Extended) > 0 {
		item.NutritionFacts = make(map[string]float64, len(rec.Extended))
		for k, v := range rec.Extended {
			if v < 0 {
				continue
			}
			// Rating keys are absolute scores, not per-serving amounts.
			if !ratingKeys[k] {
				v *= factor
			}
			item.NutritionFacts[k] = v
		}
	}

	item.Category = inferCategory(item.Name, item.Calories, item.Protein, item.Carbs)
	item.Confidence = confidence(rec)
	return item
}

// servingWeight resolves the gram weight of one serving: an explicit
// gram weight from the source wins, then unit-pattern matching on the
// serving text, then the container-word table, then the 100g default.
func servingWeight(rec domain.RawRecord) float64 {
	if rec.ServingWeightGrams != nil && *rec.ServingWeightGrams > 0 {
		return *rec.ServingWeightGrams
	}
	return ParseServingWeight(rec.ServingSize)
}

// ParseServingWeight extracts a gram-equivalent weight from a free-text
// serving description, defaulting to 100g when nothing matches.
func ParseServingWeight(serving string) float64 {
	text := strings.ToLower(strings.TrimSpace(serving))
	if text == "" {
		return defaultServingGrams
	}

	if m := weightPatternRegex.FindStringSubmatch(text); m != nil {
		qty, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			if grams, ok := gramsPerUnit[strings.ToLower(m[2])]; ok && qty > 0 {
				return qty * grams
			}
		}
	}

	// "1 cup", "2 slices": quantity followed by a container word.
	if m := countPatternRegex.FindStringSubmatch(text); m != nil {
		qty, err := strconv.ParseFloat(m[1], 64)
		if err == nil && qty > 0 {
			if grams, ok := containerGrams[m[2]]; ok {
				return qty * grams
			}
		}
	}

	// Bare container word without a count ("cup", "slice").
	for word, grams := range containerGrams {
		if strings.Contains(text, word) {
			return grams
		}
	}

	return defaultServingGrams
}

// energyKcal prefers a kcal value and falls back to kJ conversion.
func energyKcal(rec domain.RawRecord) *float64 {
	if rec.Calories != nil {
		return rec.Calories
	}
	if rec.EnergyKJ != nil {
		kcal := *rec.EnergyKJ / kJPerKcal
		return &kcal
	}
	return nil
}

// scaleRequired scales a required macro, zero-filling when missing and
// clamping negatives.
func scaleRequired(v *float64, factor float64) float64 {
	if v == nil || *v < 0 {
		return 0
	}
	return *v * factor
}

// scaleOptional scales an optional nutrient, preserving nil so callers
// can tell "unknown" from "zero".
func scaleOptional(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	scaled := *v * factor
	if scaled < 0 {
		scaled = 0
	}
	return &scaled
}

// synthesizeID builds a stable identifier for sources that return
// records without one.
func synthesizeID(name, brand, source string) string {
	slug := strings.ToLower(name + "-" + brand)
	slug = multipleSpacesRegex.ReplaceAllString(strings.TrimSpace(slug), "-")
	return fmt.Sprintf("%s:%s", source, slug)
}

// Category keyword tables, scanned against the lowercased food name.
var categoryKeywords = map[string][]string{
	"breakfast": {"cereal", "oat", "porridge", "egg", "toast", "pancake", "waffle", "muesli", "granola", "croissant", "bagel", "yogurt", "yoghurt"},
	"lunch":     {"sandwich", "soup", "salad", "wrap", "rice", "noodle", "pasta", "burger", "sushi", "roll"},
	"dinner":    {"roast", "bake", "curry", "steak", "casserole", "stir fry", "stir-fry", "lasagna", "lasagne", "pie", "schnitzel", "grill"},
	"snack":     {"chip", "crisp", "candy", "chocolate", "biscuit", "cookie", "cracker", "popcorn", "pretzel", "lolly", "nuts"},
}

// Scan order keeps keyword matching deterministic.
var categoryOrder = []string{"breakfast", "lunch", "dinner", "snack"}

// inferCategory assigns a meal category from name keywords, falling
// back to nutrient-ratio heuristics and finally to lunch.
func inferCategory(name string, calories, protein, carbs float64) string {
	lower := strings.ToLower(name)
	for _, category := range categoryOrder {
		for _, keyword := range categoryKeywords[category] {
			if strings.Contains(lower, keyword) {
				return category
			}
		}
	}

	// Low-calorie items read as snacks even without a keyword hit.
	if calories > 0 && calories < 200 {
		return "snack"
	}

	switch {
	case protein > 20:
		return "dinner"
	case carbs > 50:
		return "lunch"
	case calories > 0 && calories < 300:
		return "snack"
	default:
		return "lunch"
	}
}

// requiredPresent counts populated required fields (name + 4 macros).
func requiredPresent(rec domain.RawRecord) float64 {
	score := 0.0
	if strings.TrimSpace(rec.Name) != "" {
		score++
	}
	if rec.Calories != nil || rec.EnergyKJ != nil {
		score++
	}
	if rec.Protein != nil {
		score++
	}
	if rec.Carbs != nil {
		score++
	}
	if rec.Fat != nil {
		score++
	}
	return score
}

// confidence is a completeness ratio: required fields weigh 1, optional
// fields weigh 0.5, and a verified/quality signal adds 1 to both sides
// of the ratio. The result is clamped to [0,1].
//
// Adding the bonus to numerator and denominator is deliberate: the sort
// order of merged search results depends on this exact arithmetic.
func confidence(rec domain.RawRecord) float64 {
	score := requiredPresent(rec)
	total := 5.0

	optionals := []bool{
		rec.Fiber != nil,
		rec.Sugar != nil,
		rec.Sodium != nil,
		strings.TrimSpace(rec.Brand) != "",
		strings.TrimSpace(rec.Barcode) != "",
		rec.ImageURL != "",
	}
	for _, present := range optionals {
		total += 0.5
		if present {
			score += 0.5
		}
	}

	if rec.Verified || rec.QualityScore > 0.7 {
		score++
		total++
	}

	c := score / total
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
