// Package fatsecret adapts the FatSecret platform API. Requests are
// OAuth 1.0 signed via an injected RequestSigner strategy.
package fatsecret

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/nutriagg/backend/internal/domain"
	"github.com/nutriagg/backend/internal/normalize"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://platform.fatsecret.com/rest/server.api"

// Config holds the adapter's settings.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	BaseURL        string
	Priority       int
}

// Client is the FatSecret provider adapter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	priority   int
	available  bool
	signer     RequestSigner
	normalizer *normalize.Normalizer
	log        *zap.Logger
}

// NewClient creates the adapter with the default OAuth 1.0 signer.
func NewClient(cfg Config, log *zap.Logger) *Client {
	return NewClientWithSigner(cfg, NewOAuth1Signer(cfg.ConsumerKey, cfg.ConsumerSecret),
		cfg.ConsumerKey != "" && cfg.ConsumerSecret != "", log)
}

// NewClientWithSigner creates the adapter with a custom signer, which
// tests use to bypass real credentials.
func NewClientWithSigner(cfg Config, signer RequestSigner, available bool, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Priority == 0 {
		cfg.Priority = 5
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    cfg.BaseURL,
		priority:   cfg.Priority,
		available:  available,
		signer:     signer,
		normalizer: normalize.NewNormalizer(),
		log:        log,
	}
}

func (c *Client) Name() string { return "fatsecret" }

func (c *Client) Priority() int { return c.priority }

// Available reports whether consumer credentials are configured.
func (c *Client) Available() bool { return c.available }

type searchResponse struct {
	Foods struct {
		Food jsonList[searchFood] `json:"food"`
	} `json:"foods"`
}

type searchFood struct {
	FoodID      string `json:"food_id"`
	FoodName    string `json:"food_name"`
	BrandName   string `json:"brand_name"`
	Description string `json:"food_description"`
}

type barcodeResponse struct {
	FoodID struct {
		Value string `json:"value"`
	} `json:"food_id"`
}

type foodResponse struct {
	Food struct {
		FoodID    string `json:"food_id"`
		FoodName  string `json:"food_name"`
		BrandName string `json:"brand_name"`
		Servings  struct {
			Serving jsonList[serving] `json:"serving"`
		} `json:"servings"`
	} `json:"food"`
}

// serving fields arrive as strings on the wire.
type serving struct {
	Description  string `json:"serving_description"`
	MetricAmount string `json:"metric_serving_amount"`
	MetricUnit   string `json:"metric_serving_unit"`
	Calories     string `json:"calories"`
	Protein      string `json:"protein"`
	Carbohydrate string `json:"carbohydrate"`
	Fat          string `json:"fat"`
	Fiber        string `json:"fiber"`
	Sugar        string `json:"sugar"`
	Sodium       string `json:"sodium"`
}

// jsonList tolerates the API returning a bare object where a list is
// expected (single-result responses).
type jsonList[T any] []T

func (l *jsonList[T]) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var single T
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = []T{single}
	return nil
}

// SearchFood calls foods.search. Macro values are parsed out of the
// summary description line each result carries.
func (c *Client) SearchFood(ctx context.Context, query string) ([]domain.FoodItem, error) {
	params := url.Values{}
	params.Set("method", "foods.search")
	params.Set("search_expression", query)
	params.Set("format", "json")

	var resp searchResponse
	if err := c.call(ctx, params, &resp); err != nil {
		return nil, err
	}

	items := make([]domain.FoodItem, 0, len(resp.Foods.Food))
	for _, f := range resp.Foods.Food {
		rec := domain.RawRecord{
			ID:     f.FoodID,
			Name:   f.FoodName,
			Brand:  f.BrandName,
			Source: c.Name(),
		}
		applyDescription(&rec, f.Description)
		items = append(items, c.normalizer.Normalize(rec))
	}
	return items, nil
}

// LookupBarcode resolves a barcode to a food id, then fetches the full
// record.
func (c *Client) LookupBarcode(ctx context.Context, code string) (*domain.FoodItem, error) {
	params := url.Values{}
	params.Set("method", "food.find_id_for_barcode")
	params.Set("barcode", code)
	params.Set("format", "json")

	var idResp barcodeResponse
	if err := c.call(ctx, params, &idResp); err != nil {
		return nil, err
	}
	// The API answers food_id 0 for unknown barcodes.
	if idResp.FoodID.Value == "" || idResp.FoodID.Value == "0" {
		return nil, nil
	}

	params = url.Values{}
	params.Set("method", "food.get.v2")
	params.Set("food_id", idResp.FoodID.Value)
	params.Set("format", "json")

	var foodResp foodResponse
	if err := c.call(ctx, params, &foodResp); err != nil {
		return nil, err
	}

	rec := domain.RawRecord{
		ID:      foodResp.Food.FoodID,
		Barcode: code,
		Name:    foodResp.Food.FoodName,
		Brand:   foodResp.Food.BrandName,
		Source:  c.Name(),
	}
	if sv := pickMetricServing(foodResp.Food.Servings.Serving); sv != nil {
		rec.PerServing = true
		rec.ServingSize = sv.Description
		if grams := parseField(sv.MetricAmount); grams != nil && sv.MetricUnit == "g" {
			rec.ServingWeightGrams = grams
		}
		rec.Calories = parseField(sv.Calories)
		rec.Protein = parseField(sv.Protein)
		rec.Carbs = parseField(sv.Carbohydrate)
		rec.Fat = parseField(sv.Fat)
		rec.Fiber = parseField(sv.Fiber)
		rec.Sugar = parseField(sv.Sugar)
		rec.Sodium = parseField(sv.Sodium)
	}

	item := c.normalizer.Normalize(rec)
	return &item, nil
}

// call executes a signed GET against the platform endpoint.
func (c *Client) call(ctx context.Context, params url.Values, out any) error {
	signed := c.signer.Sign(http.MethodGet, c.baseURL, params)
	reqURL := fmt.Sprintf("%s?%s", c.baseURL, signed.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: fatsecret status %d", domain.ErrProviderFailure, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode fatsecret response: %w", err)
	}
	return nil
}

// pickMetricServing prefers a serving with a gram weight so per-100g
// rescaling is exact.
func pickMetricServing(servings []serving) *serving {
	for i := range servings {
		if servings[i].MetricUnit == "g" {
			return &servings[i]
		}
	}
	if len(servings) > 0 {
		return &servings[0]
	}
	return nil
}

func parseField(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// descriptionRegex pulls macros out of a search summary like
// "Per 100g - Calories: 52kcal | Fat: 0.17g | Carbs: 13.81g | Protein: 0.26g".
var descriptionRegex = regexp.MustCompile(
	`(?i)per\s+(.+?)\s*-\s*calories:\s*([\d.]+)kcal\s*\|\s*fat:\s*([\d.]+)g\s*\|\s*carbs:\s*([\d.]+)g\s*\|\s*protein:\s*([\d.]+)g`,
)

func applyDescription(rec *domain.RawRecord, description string) {
	m := descriptionRegex.FindStringSubmatch(description)
	if m == nil {
		return
	}

	basis := m[1]
	rec.Calories = parseField(m[2])
	rec.Fat = parseField(m[3])
	rec.Carbs = parseField(m[4])
	rec.Protein = parseField(m[5])

	if basis != "100g" {
		rec.PerServing = true
		rec.ServingSize = basis
	}
}
