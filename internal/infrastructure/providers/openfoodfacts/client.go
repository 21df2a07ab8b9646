// Package openfoodfacts adapts the Open Food Facts community database.
// It needs no credentials and has no call quota, which makes it the
// first rung of the barcode waterfall.
package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nutriagg/backend/internal/domain"
	"github.com/nutriagg/backend/internal/normalize"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://world.openfoodfacts.org"

// Config holds the adapter's settings.
type Config struct {
	BaseURL  string
	Priority int
}

// Client is the Open Food Facts provider adapter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	priority   int
	normalizer *normalize.Normalizer
	log        *zap.Logger
}

// NewClient creates the adapter.
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Priority == 0 {
		cfg.Priority = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    cfg.BaseURL,
		priority:   cfg.Priority,
		normalizer: normalize.NewNormalizer(),
		log:        log,
	}
}

func (c *Client) Name() string { return "openfoodfacts" }

func (c *Client) Priority() int { return c.priority }

// Available is always true: Open Food Facts needs no credentials.
func (c *Client) Available() bool { return true }

// product is the subset of an Open Food Facts record the engine reads.
// Nutriments is a loose map because the schema varies per product.
type product struct {
	Code            string         `json:"code"`
	ProductName     string         `json:"product_name"`
	GenericName     string         `json:"generic_name"`
	Brands          string         `json:"brands"`
	ServingSize     string         `json:"serving_size"`
	ImageURL        string         `json:"image_url"`
	Nutriments      map[string]any `json:"nutriments"`
	NutriscoreGrade string         `json:"nutriscore_grade"`
	Completeness    float64        `json:"completeness"`
}

type productResponse struct {
	Status  int     `json:"status"`
	Product product `json:"product"`
}

type searchResponse struct {
	Products []product `json:"products"`
}

// LookupBarcode resolves a product code via the v2 product endpoint.
func (c *Client) LookupBarcode(ctx context.Context, code string) (*domain.FoodItem, error) {
	reqURL := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, url.PathEscape(code))

	var resp productResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}
	if resp.Status != 1 {
		return nil, nil // not found here
	}

	item := c.normalizer.Normalize(c.toRawRecord(resp.Product))
	return &item, nil
}

// SearchFood runs the legacy CGI search, the stable endpoint for
// free-text queries.
func (c *Client) SearchFood(ctx context.Context, query string) ([]domain.FoodItem, error) {
	params := url.Values{}
	params.Set("search_terms", query)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", "20")
	reqURL := fmt.Sprintf("%s/cgi/search.pl?%s", c.baseURL, params.Encode())

	var resp searchResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}

	items := make([]domain.FoodItem, 0, len(resp.Products))
	for _, p := range resp.Products {
		if p.ProductName == "" && p.GenericName == "" {
			continue
		}
		items = append(items, c.normalizer.Normalize(c.toRawRecord(p)))
	}
	return items, nil
}

func (c *Client) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "nutriagg/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: openfoodfacts status %d", domain.ErrProviderFailure, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode openfoodfacts response: %w", err)
	}
	return nil
}

// toRawRecord maps the nutriments map (per-100g keys) into the shared
// intermediate. Energy falls back from kcal to kJ.
func (c *Client) toRawRecord(p product) domain.RawRecord {
	name := p.ProductName
	if name == "" {
		name = p.GenericName
	}

	rec := domain.RawRecord{
		ID:           p.Code,
		Barcode:      p.Code,
		Name:         name,
		Brand:        firstBrand(p.Brands),
		Source:       c.Name(),
		ServingSize:  p.ServingSize,
		ImageURL:     p.ImageURL,
		QualityScore: p.Completeness,
	}

	rec.Calories = nutriment(p.Nutriments, "energy-kcal_100g")
	if rec.Calories == nil {
		rec.EnergyKJ = nutriment(p.Nutriments, "energy-kj_100g")
	}
	rec.Protein = nutriment(p.Nutriments, "proteins_100g")
	rec.Carbs = nutriment(p.Nutriments, "carbohydrates_100g")
	rec.Fat = nutriment(p.Nutriments, "fat_100g")
	rec.Fiber = nutriment(p.Nutriments, "fiber_100g")
	rec.Sugar = nutriment(p.Nutriments, "sugars_100g")

	// Open Food Facts reports sodium in grams; the canonical record
	// carries milligrams.
	if sodium := nutriment(p.Nutriments, "sodium_100g"); sodium != nil {
		mg := *sodium * 1000
		rec.Sodium = &mg
	}

	if rating, ok := nutriscoreRating(p.NutriscoreGrade); ok {
		rec.Extended = map[string]float64{"healthScore": rating}
	}
	return rec
}

// nutriment coerces a loose nutriments value to a float pointer.
func nutriment(m map[string]any, key string) *float64 {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch x := v.(type) {
	case float64:
		return &x
	case string:
		var f float64
		if _, err := fmt.Sscanf(x, "%f", &f); err == nil {
			return &f
		}
	}
	return nil
}

// nutriscoreRating maps a Nutri-Score grade onto the 0-5 rating scale.
func nutriscoreRating(grade string) (float64, bool) {
	switch grade {
	case "a":
		return 5, true
	case "b":
		return 4, true
	case "c":
		return 3, true
	case "d":
		return 2, true
	case "e":
		return 1, true
	}
	return 0, false
}

// firstBrand takes the primary brand from the comma-separated list.
func firstBrand(brands string) string {
	for i := 0; i < len(brands); i++ {
		if brands[i] == ',' {
			return brands[:i]
		}
	}
	return brands
}
