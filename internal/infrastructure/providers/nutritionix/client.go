// Package nutritionix adapts the Nutritionix track API. Branded
// records come back per serving with an explicit gram weight, which the
// normalizer rescales to the 100g basis.
package nutritionix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nutriagg/backend/internal/domain"
	"github.com/nutriagg/backend/internal/normalize"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://trackapi.nutritionix.com"

// Config holds the adapter's settings.
type Config struct {
	AppID    string
	APIKey   string
	BaseURL  string
	Priority int
}

// Client is the Nutritionix provider adapter. It implements the
// optional brand-search capability.
type Client struct {
	httpClient *http.Client
	appID      string
	apiKey     string
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
		cfg.Priority = 3
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		appID:      cfg.AppID,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		priority:   cfg.Priority,
		normalizer: normalize.NewNormalizer(),
		log:        log,
	}
}

func (c *Client) Name() string { return "nutritionix" }

func (c *Client) Priority() int { return c.priority }

// Available reports whether both application credentials are configured.
func (c *Client) Available() bool { return c.appID != "" && c.apiKey != "" }

// brandedFood is a Nutritionix item record. nf_* values are per
// serving.
type brandedFood struct {
	NixItemID          string   `json:"nix_item_id"`
	FoodName           string   `json:"food_name"`
	BrandName          string   `json:"brand_name"`
	UPC                string   `json:"upc"`
	Calories           *float64 `json:"nf_calories"`
	Protein            *float64 `json:"nf_protein"`
	Carbs              *float64 `json:"nf_total_carbohydrate"`
	Fat                *float64 `json:"nf_total_fat"`
	Fiber              *float64 `json:"nf_dietary_fiber"`
	Sugar              *float64 `json:"nf_sugars"`
	Sodium             *float64 `json:"nf_sodium"`
	ServingQty         float64  `json:"serving_qty"`
	ServingUnit        string   `json:"serving_unit"`
	ServingWeightGrams *float64 `json:"serving_weight_grams"`
	Photo              struct {
		Thumb string `json:"thumb"`
	} `json:"photo"`
}

type itemResponse struct {
	Foods []brandedFood `json:"foods"`
}

type instantResponse struct {
	Branded []brandedFood `json:"branded"`
}

// LookupBarcode resolves a UPC via the item endpoint. Nutritionix
// answers 404 for unknown codes.
func (c *Client) LookupBarcode(ctx context.Context, code string) (*domain.FoodItem, error) {
	reqURL := fmt.Sprintf("%s/v2/search/item?upc=%s", c.baseURL, url.QueryEscape(code))

	var resp itemResponse
	found, err := c.getJSON(ctx, reqURL, &resp)
	if err != nil {
		return nil, err
	}
	if !found || len(resp.Foods) == 0 {
		return nil, nil
	}

	f := resp.Foods[0]
	if f.UPC == "" {
		f.UPC = code
	}
	item := c.normalizer.Normalize(c.toRawRecord(f))
	return &item, nil
}

// SearchFood uses the instant endpoint's branded results.
func (c *Client) SearchFood(ctx context.Context, query string) ([]domain.FoodItem, error) {
	reqURL := fmt.Sprintf("%s/v2/search/instant?query=%s", c.baseURL, url.QueryEscape(query))

	var resp instantResponse
	found, err := c.getJSON(ctx, reqURL, &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	items := make([]domain.FoodItem, 0, len(resp.Branded))
	for _, f := range resp.Branded {
		items = append(items, c.normalizer.Normalize(c.toRawRecord(f)))
	}
	return items, nil
}

// SearchByBrand queries the instant endpoint with the brand name and
// keeps branded hits actually carrying it.
func (c *Client) SearchByBrand(ctx context.Context, brand string) ([]domain.FoodItem, error) {
	results, err := c.SearchFood(ctx, brand)
	if err != nil {
		return nil, err
	}

	wanted := strings.ToLower(brand)
	filtered := results[:0]
	for _, item := range results {
		if strings.Contains(strings.ToLower(item.Brand), wanted) {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// getJSON executes a signed GET. The bool result is false for a 404,
// which the API uses for "no such product".
func (c *Client) getJSON(ctx context.Context, reqURL string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-app-id", c.appID)
	req.Header.Set("x-app-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: nutritionix status %d", domain.ErrProviderFailure, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode nutritionix response: %w", err)
	}
	return true, nil
}

func (c *Client) toRawRecord(f brandedFood) domain.RawRecord {
	rec := domain.RawRecord{
		ID:                 f.NixItemID,
		Barcode:            f.UPC,
		Name:               f.FoodName,
		Brand:              f.BrandName,
		Source:             c.Name(),
		PerServing:         true,
		ServingWeightGrams: f.ServingWeightGrams,
		Calories:           f.Calories,
		Protein:            f.Protein,
		Carbs:              f.Carbs,
		Fat:                f.Fat,
		Fiber:              f.Fiber,
		Sugar:              f.Sugar,
		Sodium:             f.Sodium,
		ImageURL:           f.Photo.Thumb,
	}
	if f.ServingQty > 0 && f.ServingUnit != "" {
		rec.ServingSize = fmt.Sprintf("%g %s", f.ServingQty, f.ServingUnit)
	}
	return rec
}
