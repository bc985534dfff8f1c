package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-service/internal/domain"
	"github.com/xenking/catalog-service/internal/domain/product"
)

func sampleProducts(t *testing.T) []product.Product {
	t.Helper()

	a, err := product.New(1, "Widget \"deluxe\"", 1_000_000, 3, 1, 0.2)
	require.NoError(t, err)
	b, err := product.New(2, "Gadget", 0, 0, 2, 0)
	require.NoError(t, err)
	return []product.Product{a, b}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "products:list:category:all:offset:0:limit:20", ListKey(0, 0, 20))
	assert.Equal(t, "products:list:category:7:offset:40:limit:20", ListKey(7, 40, 20))
	assert.Equal(t, "products:count:category:all", CountKey(0))
	assert.Equal(t, "products:count:category:12", CountKey(12))

	assert.NotEqual(t, ListKey(1, 12, 3), ListKey(11, 2, 3))
	assert.NotEqual(t, ListKey(1, 0, 10), ListKey(1, 10, 0))
}

func TestCodec(t *testing.T) {
	products := sampleProducts(t)

	got, err := DecodeProducts(EncodeProducts(products))
	require.NoError(t, err)
	assert.Equal(t, products, got)

	empty, err := DecodeProducts(EncodeProducts(nil))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestDecodeProducts_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		validation bool
	}{
		{name: "not json", payload: "oops"},
		{name: "object instead of array", payload: `{"id":1}`},
		{name: "wrong type", payload: `[{"id":"one"}]`},
		{name: "invalid entity", payload: `[{"id":1,"name":"x","price":-5,"stock":0,"category_id":1,"discount_rate":0}]`, validation: true},
		{name: "missing fields", payload: `[{"id":1}]`, validation: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeProducts([]byte(tt.payload))
			require.Error(t, err)
			assert.Equal(t, tt.validation, errors.Is(err, domain.ErrValidation))
		})
	}
}

func TestDecodeProducts_IgnoresUnknownFields(t *testing.T) {
	got, err := DecodeProducts([]byte(`[{"id":5,"name":"Lamp","price":10,"stock":1,"category_id":2,"discount_rate":0.5,"image":{"url":"x"}}]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Lamp", got[0].Name)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, ok, err := m.GetProductList(ctx, 1, 0, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	products := sampleProducts(t)
	require.NoError(t, m.SetProductList(ctx, products, 1, 0, 10))
	require.NoError(t, m.SetProductCount(ctx, 42, 1))

	got, ok, err := m.GetProductList(ctx, 1, 0, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, products, got)

	got[0].Name = "mutated"
	again, _, _ := m.GetProductList(ctx, 1, 0, 10)
	assert.Equal(t, products[0].Name, again[0].Name)

	n, ok, err := m.GetProductCount(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok, _ = m.GetProductCount(ctx, 0)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = m.GetProductList(ctx, 1, 0, 10)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())

	m.cleanup(now)
	assert.Zero(t, m.Len())
}

func TestMemory_StartCleanup(t *testing.T) {
	m := NewMemory(time.Millisecond)
	require.NoError(t, m.SetProductCount(context.Background(), 1, 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartCleanup(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemory_StartCleanupNonPositiveInterval(t *testing.T) {
	m := NewMemory(time.Millisecond)
	require.NoError(t, m.SetProductCount(context.Background(), 1, 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NotPanics(t, func() { m.StartCleanup(ctx, 0) })

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestNewRedis_DefaultTTL(t *testing.T) {
	c := NewRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "catalog:", 0)
	t.Cleanup(func() { _ = c.client.Close() })
	assert.Equal(t, DefaultTTL, c.ttl)
}

func TestRedis_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedis(client, "catalog:", time.Minute)
	ctx := context.Background()

	_, ok, err := c.GetProductList(ctx, 0, 0, 10)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "redis get product list")

	_, _, err = c.GetProductCount(ctx, 0)
	require.Error(t, err)

	require.Error(t, c.SetProductList(ctx, sampleProducts(t), 0, 0, 10))
	require.Error(t, c.SetProductCount(ctx, 3, 0))
	require.Error(t, c.Ping(ctx))
}
