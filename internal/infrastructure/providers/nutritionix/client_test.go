package nutritionix

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		AppID:   "test-app",
		APIKey:  "test-key",
		BaseURL: server.URL,
	}, zap.NewNop())
}

const itemBody = `{
	"foods": [{
		"nix_item_id": "abc123",
		"food_name": "Peanut Butter",
		"brand_name": "TestBrand",
		"upc": "123456789012",
		"nf_calories": 100,
		"nf_protein": 4,
		"nf_total_carbohydrate": 3,
		"nf_total_fat": 8,
		"nf_sodium": 70,
		"serving_qty": 2,
		"serving_unit": "tbsp",
		"serving_weight_grams": 50
	}]
}`

func TestLookupBarcode(t *testing.T) {
	t.Run("rescales per-serving values to 100g", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-app", r.Header.Get("x-app-id"))
			assert.Equal(t, "test-key", r.Header.Get("x-app-key"))
			assert.Equal(t, "123456789012", r.URL.Query().Get("upc"))
			w.Write([]byte(itemBody))
		})

		item, err := client.LookupBarcode(context.Background(), "123456789012")
		require.NoError(t, err)
		require.NotNil(t, item)

		// 100 kcal per 50g serving is 200 kcal per 100g.
		assert.InDelta(t, 200, item.Calories, 0.001)
		assert.InDelta(t, 8, item.Protein, 0.001)
		assert.Equal(t, "TestBrand", item.Brand)
		assert.Equal(t, "nutritionix", item.Source)
		assert.Equal(t, "2 tbsp", item.ServingSize)
	})

	t.Run("404 means not found, not an error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		item, err := client.LookupBarcode(context.Background(), "000")
		assert.NoError(t, err)
		assert.Nil(t, item)
	})

	t.Run("server error propagates", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.LookupBarcode(context.Background(), "000")
		assert.Error(t, err)
	})
}

func TestSearchFood(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "peanut butter", r.URL.Query().Get("query"))
		w.Write([]byte(`{
			"branded": [
				{"food_name": "Peanut Butter Smooth", "brand_name": "TestBrand", "nf_calories": 588},
				{"food_name": "Peanut Butter Crunchy", "brand_name": "OtherBrand", "nf_calories": 590}
			]
		}`))
	})

	items, err := client.SearchFood(context.Background(), "peanut butter")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Peanut Butter Smooth", items[0].Name)
}

func TestSearchByBrand(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"branded": [
				{"food_name": "Tim Tam Original", "brand_name": "Arnott's", "nf_calories": 502},
				{"food_name": "Chocolate Biscuit", "brand_name": "Generic", "nf_calories": 480}
			]
		}`))
	})

	items, err := client.SearchByBrand(context.Background(), "arnott's")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Arnott's", items[0].Brand)
}

func TestAvailable(t *testing.T) {
	assert.True(t, NewClient(Config{AppID: "a", APIKey: "k"}, zap.NewNop()).Available())
	assert.False(t, NewClient(Config{AppID: "a"}, zap.NewNop()).Available())
	assert.False(t, NewClient(Config{}, zap.NewNop()).Available())
}
