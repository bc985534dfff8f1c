package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-service/internal/domain"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		id        int64
		prodName  string
		price     int64
		stock     int64
		category  int64
		rate      float64
		wantField string
	}{
		{name: "valid", id: 1, prodName: "Widget", price: 1000, stock: 5, category: 1, rate: 0.2},
		{name: "free and out of stock", id: 2, prodName: "Sample", price: 0, stock: 0, category: 3, rate: 0},
		{name: "full markdown", id: 3, prodName: "Clearance", price: 500, stock: 1, category: 1, rate: 1},
		{name: "zero id", id: 0, prodName: "Widget", price: 1, stock: 1, category: 1, wantField: "id"},
		{name: "empty name", id: 1, prodName: "", price: 1, stock: 1, category: 1, wantField: "name"},
		{name: "negative price", id: 1, prodName: "Widget", price: -1, stock: 1, category: 1, wantField: "price"},
		{name: "negative stock", id: 1, prodName: "Widget", price: 1, stock: -1, category: 1, wantField: "stock"},
		{name: "zero category", id: 1, prodName: "Widget", price: 1, stock: 1, category: 0, wantField: "category_id"},
		{name: "rate above one", id: 1, prodName: "Widget", price: 1, stock: 1, category: 1, rate: 1.01, wantField: "discount_rate"},
		{name: "negative rate", id: 1, prodName: "Widget", price: 1, stock: 1, category: 1, rate: -0.1, wantField: "discount_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.id, tt.prodName, tt.price, tt.stock, tt.category, tt.rate)
			if tt.wantField != "" {
				require.ErrorIs(t, err, domain.ErrValidation)
				var vErr *domain.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, "product", vErr.Entity)
				assert.Equal(t, tt.wantField, vErr.Field)
				assert.Equal(t, Product{}, p)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, Product{
				ID:           tt.id,
				Name:         tt.prodName,
				Price:        tt.price,
				Stock:        tt.stock,
				CategoryID:   tt.category,
				DiscountRate: tt.rate,
			}, p)
		})
	}
}
