// Package usda adapts the USDA FoodData Central API.
package usda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nutriagg/backend/internal/domain"
	"github.com/nutriagg/backend/internal/normalize"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.nal.usda.gov/fdc"

// FoodData Central nutrient IDs for the fields the engine extracts.
const (
	nutrientIDEnergy  = 1008 // kcal
	nutrientIDProtein = 1003 // g
	nutrientIDCarbs   = 1005 // g
	nutrientIDFat     = 1004 // g
	nutrientIDFiber   = 1079 // g
	nutrientIDSugar   = 2000 // g
	nutrientIDSodium  = 1093 // mg
)

// Config holds the adapter's settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Priority int
}

// Client is the USDA FoodData Central provider adapter.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	priority    int
	rateLimiter *rate.Limiter
	normalizer  *normalize.Normalizer
	log         *zap.Logger
}

// NewClient creates the adapter. The limiter keeps under the documented
// 1000 requests/hour ceiling (~0.278 req/s) with a burst of 10.
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Priority == 0 {
		cfg.Priority = 2
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		priority:    cfg.Priority,
		rateLimiter: rate.NewLimiter(rate.Limit(0.278), 10),
		normalizer:  normalize.NewNormalizer(),
		log:         log,
	}
}

func (c *Client) Name() string { return "usda" }

func (c *Client) Priority() int { return c.priority }

// Available reports whether an API key is configured.
func (c *Client) Available() bool { return c.apiKey != "" }

// food is the subset of a FoodData Central search hit the engine reads.
// Search results carry label nutrients normalized to 100g.
type food struct {
	FdcID           int            `json:"fdcId"`
	Description     string         `json:"description"`
	DataType        string         `json:"dataType"`
	BrandOwner      string         `json:"brandOwner"`
	BrandName       string         `json:"brandName"`
	GtinUpc         string         `json:"gtinUpc"`
	ServingSize     float64        `json:"servingSize"`
	ServingSizeUnit string         `json:"servingSizeUnit"`
	Nutrients       []foodNutrient `json:"foodNutrients"`
}

type foodNutrient struct {
	NutrientID int     `json:"nutrientId"`
	Value      float64 `json:"value"`
}

type searchResponse struct {
	Foods     []food `json:"foods"`
	TotalHits int    `json:"totalHits"`
}

// SearchFood searches FoodData Central, retrying transient failures
// with linear backoff.
func (c *Client) SearchFood(ctx context.Context, query string) ([]domain.FoodItem, error) {
	resp, err := c.search(ctx, query)
	if err != nil {
		return nil, err
	}

	items := make([]domain.FoodItem, 0, len(resp.Foods))
	for _, f := range resp.Foods {
		items = append(items, c.normalizer.Normalize(c.toRawRecord(f)))
	}
	return items, nil
}

// LookupBarcode searches by GTIN/UPC; only branded foods carry one, so
// the hit is verified against the requested code.
func (c *Client) LookupBarcode(ctx context.Context, code string) (*domain.FoodItem, error) {
	resp, err := c.search(ctx, code)
	if err != nil {
		return nil, err
	}

	for _, f := range resp.Foods {
		if f.GtinUpc == code {
			item := c.normalizer.Normalize(c.toRawRecord(f))
			return &item, nil
		}
	}
	return nil, nil
}

func (c *Client) search(ctx context.Context, query string) (*searchResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/foods/search", c.baseURL)
	params := url.Values{}
	params.Set("query", query)
	params.Set("api_key", c.apiKey)
	params.Set("dataType", "Survey (FNDDS),Foundation,Branded")
	params.Set("pageSize", "10")
	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", "nutriagg/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.log.Warn("usda request failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			lastErr = fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
			if !sleepCtx(ctx, time.Duration(attempt)*500*time.Millisecond) {
				return nil, ctx.Err()
			}
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			c.log.Warn("usda api error",
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode),
			)
			lastErr = fmt.Errorf("%w: usda status %d", domain.ErrProviderFailure, resp.StatusCode)
			if !sleepCtx(ctx, time.Duration(attempt)*500*time.Millisecond) {
				return nil, ctx.Err()
			}
			continue
		}

		var parsed searchResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("failed to decode usda response: %w", err)
		}
		return &parsed, nil
	}

	return nil, lastErr
}

// sleepCtx waits d or until the context is done, reporting whether the
// full sleep elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (c *Client) toRawRecord(f food) domain.RawRecord {
	brand := f.BrandName
	if brand == "" {
		brand = f.BrandOwner
	}

	rec := domain.RawRecord{
		ID:      fmt.Sprintf("%d", f.FdcID),
		Barcode: f.GtinUpc,
		Name:    f.Description,
		Brand:   brand,
		Source:  c.Name(),
		// Foundation and FNDDS records are lab-derived.
		Verified: f.DataType == "Foundation" || f.DataType == "Survey (FNDDS)",
	}

	if f.ServingSize > 0 && f.ServingSizeUnit != "" {
		rec.ServingSize = fmt.Sprintf("%g %s", f.ServingSize, f.ServingSizeUnit)
	}

	for _, n := range f.Nutrients {
		v := n.Value
		switch n.NutrientID {
		case nutrientIDEnergy:
			rec.Calories = &v
		case nutrientIDProtein:
			rec.Protein = &v
		case nutrientIDCarbs:
			rec.Carbs = &v
		case nutrientIDFat:
			rec.Fat = &v
		case nutrientIDFiber:
			rec.Fiber = &v
		case nutrientIDSugar:
			rec.Sugar = &v
		case nutrientIDSodium:
			rec.Sodium = &v
		}
	}
	return rec
}
