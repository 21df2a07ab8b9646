// Package regional flags products belonging to a specific regional
// market and enriches their records. Detection is heuristic and
// best-effort: false positives and negatives are acceptable, and the
// pass never fails — an undetected item comes back unchanged.
package regional

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nutriagg/backend/internal/domain"
)

// confidenceBoost is the flat bump applied to recognized products.
const confidenceBoost = 0.1

// Profile describes one regional market: curated brand and retailer
// lists, text indicators, and EAN country prefixes.
type Profile struct {
	Name            string
	Brands          []string
	Retailers       []string
	TextIndicators  []string
	BarcodePrefixes []string
}

// AustralianProfile is the default market profile (EAN prefixes
// 930-939 are allocated to GS1 Australia).
func AustralianProfile() Profile {
	return Profile{
		Name: "australia",
		Brands: []string{
			"vegemite", "arnott's", "arnotts", "tim tam", "milo",
			"weet-bix", "weetbix", "sanitarium", "bega", "uncle tobys",
			"golden circle", "bundaberg", "four'n twenty", "mainland",
			"bushells", "twinings australia", "smith's", "allen's",
		},
		Retailers: []string{
			"woolworths", "coles", "iga", "aldi australia", "foodworks",
			"harris farm", "drakes",
		},
		TextIndicators: []string{
			"made in australia", "product of australia",
			"australian made", "australian grown", "australian owned",
		},
		BarcodePrefixes: []string{
			"930", "931", "932", "933", "934", "935", "936", "937", "938", "939",
		},
	}
}

// Enhancer applies the regional-detection pass to normalized items.
type Enhancer struct {
	profile Profile
}

// NewEnhancer creates an Enhancer for the given market profile.
func NewEnhancer(profile Profile) *Enhancer {
	return &Enhancer{profile: profile}
}

// Enhance returns item with regional enrichment applied when any
// detection signal fires, and unchanged otherwise.
func (e *Enhancer) Enhance(item domain.FoodItem) domain.FoodItem {
	if !e.detect(item) {
		return item
	}

	item.RegionalProduct = true
	item.Confidence += confidenceBoost
	if item.Confidence > 1 {
		item.Confidence = 1
	}

	if item.HealthRating == nil {
		if rating, ok := healthRatingFromFacts(item.NutritionFacts); ok {
			item.HealthRating = &rating
		}
	}

	if metric := metricServing(item.ServingSize); metric != "" {
		item.ServingSize = metric
	}

	return item
}

// detect checks the four independent signals; any one suffices.
func (e *Enhancer) detect(item domain.FoodItem) bool {
	name := strings.ToLower(item.Name)
	brand := strings.ToLower(item.Brand)
	haystack := name + " " + brand

	for _, b := range e.profile.Brands {
		if brand == b || strings.Contains(haystack, b) {
			return true
		}
	}
	for _, r := range e.profile.Retailers {
		if strings.Contains(haystack, r) {
			return true
		}
	}
	for _, phrase := range e.profile.TextIndicators {
		if strings.Contains(haystack, phrase) {
			return true
		}
	}
	for _, prefix := range e.profile.BarcodePrefixes {
		if strings.HasPrefix(item.Barcode, prefix) {
			return true
		}
	}
	return false
}

// healthRatingFromFacts backfills a 0-5 rating when the source exposed
// a quality score in the extended nutrient map.
func healthRatingFromFacts(facts map[string]float64) (float64, bool) {
	for _, key := range []string{"healthRating", "nutritionScore", "healthScore"} {
		if v, ok := facts[key]; ok && v >= 0 && v <= 5 {
			return v, true
		}
	}
	return 0, false
}

var imperialServingRegex = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*(oz|ounces?|lbs?|pounds?|cups?|tbsp|tablespoons?)$`)

// imperialToMetric converts to (value, metric unit) per measured unit.
var imperialToMetric = map[string]struct {
	factor float64
	unit   string
}{
	"oz": {28.35, "g"}, "ounce": {28.35, "g"}, "ounces": {28.35, "g"},
	"lb": {453.6, "g"}, "lbs": {453.6, "g"}, "pound": {453.6, "g"}, "pounds": {453.6, "g"},
	"cup": {250, "ml"}, "cups": {250, "ml"},
	"tbsp": {15, "ml"}, "tablespoon": {15, "ml"}, "tablespoons": {15, "ml"},
}

// metricServing rewrites an imperial-style serving string into metric
// units, returning "" when the input is not a convertible form.
func metricServing(serving string) string {
	m := imperialServingRegex.FindStringSubmatch(strings.TrimSpace(serving))
	if m == nil {
		return ""
	}
	qty, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return ""
	}
	conv, ok := imperialToMetric[strings.ToLower(m[2])]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.0f %s", qty*conv.factor, conv.unit)
}
