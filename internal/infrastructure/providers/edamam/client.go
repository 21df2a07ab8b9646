// Package edamam adapts the Edamam food-database parser API. Nutrient
// values come back per 100g.
package edamam

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

const defaultBaseURL = "https://api.edamam.com"

// Config holds the adapter's settings.
type Config struct {
	AppID    string
	AppKey   string
	BaseURL  string
	Priority int
}

// Client is the Edamam provider adapter. It implements the optional
// category-search capability.
type Client struct {
	httpClient *http.Client
	appID      string
	appKey     string
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
		cfg.Priority = 4
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		appID:      cfg.AppID,
		appKey:     cfg.AppKey,
		baseURL:    cfg.BaseURL,
		priority:   cfg.Priority,
		normalizer: normalize.NewNormalizer(),
		log:        log,
	}
}

func (c *Client) Name() string { return "edamam" }

func (c *Client) Priority() int { return c.priority }

// Available reports whether both application credentials are configured.
func (c *Client) Available() bool { return c.appID != "" && c.appKey != "" }

// parserResponse is the parser endpoint envelope. Nutrients use
// Edamam's NTR codes, per 100g.
type parserResponse struct {
	Hints []struct {
		Food struct {
			FoodID    string `json:"foodId"`
			Label     string `json:"label"`
			Brand     string `json:"brand"`
			Category  string `json:"category"`
			Image     string `json:"image"`
			Nutrients struct {
				Energy  *float64 `json:"ENERC_KCAL"`
				Protein *float64 `json:"PROCNT"`
				Fat     *float64 `json:"FAT"`
				Carbs   *float64 `json:"CHOCDF"`
				Fiber   *float64 `json:"FIBTG"`
			} `json:"nutrients"`
		} `json:"food"`
	} `json:"hints"`
}

// SearchFood calls the parser endpoint with a free-text ingredient.
func (c *Client) SearchFood(ctx context.Context, query string) ([]domain.FoodItem, error) {
	params := url.Values{}
	params.Set("ingr", query)
	return c.parse(ctx, params, "")
}

// LookupBarcode calls the parser endpoint with a UPC.
func (c *Client) LookupBarcode(ctx context.Context, code string) (*domain.FoodItem, error) {
	params := url.Values{}
	params.Set("upc", code)

	items, err := c.parse(ctx, params, code)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// SearchByCategory narrows the parser search to one of Edamam's food
// categories.
func (c *Client) SearchByCategory(ctx context.Context, category string) ([]domain.FoodItem, error) {
	params := url.Values{}
	params.Set("ingr", category)
	params.Set("category", "generic-foods")
	return c.parse(ctx, params, "")
}

func (c *Client) parse(ctx context.Context, params url.Values, barcode string) ([]domain.FoodItem, error) {
	params.Set("app_id", c.appID)
	params.Set("app_key", c.appKey)
	reqURL := fmt.Sprintf("%s/api/food-database/v2/parser?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	// Edamam answers 404 for unknown UPCs.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: edamam status %d", domain.ErrProviderFailure, resp.StatusCode)
	}

	var parsed parserResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode edamam response: %w", err)
	}

	items := make([]domain.FoodItem, 0, len(parsed.Hints))
	for _, hint := range parsed.Hints {
		food := hint.Food
		if food.Label == "" {
			continue
		}
		rec := domain.RawRecord{
			ID:       food.FoodID,
			Barcode:  barcode,
			Name:     food.Label,
			Brand:    food.Brand,
			Source:   c.Name(),
			ImageURL: food.Image,
			Calories: food.Nutrients.Energy,
			Protein:  food.Nutrients.Protein,
			Carbs:    food.Nutrients.Carbs,
			Fat:      food.Nutrients.Fat,
			Fiber:    food.Nutrients.Fiber,
		}
		items = append(items, c.normalizer.Normalize(rec))
	}
	return items, nil
}
