//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/catalog-service/internal/domain/category"
	"github.com/xenking/catalog-service/internal/domain/coupon"
	"github.com/xenking/catalog-service/internal/domain/product"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "catalog",
				"POSTGRES_PASSWORD": "catalog",
				"POSTGRES_DB":       "catalog",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	addr, err := container.PortEndpoint(ctx, "5432/tcp", "")
	require.NoError(t, err)

	pool, err := NewPool(ctx, fmt.Sprintf("postgres://catalog:catalog@%s/catalog?sslmode=disable", addr))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	require.NoError(t, RunMigrations(ctx, pool), "migrations must be re-runnable")
	return pool
}

func TestRepositories_Integration(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	categories := NewCategoryRepository(pool)
	products := NewProductRepository(pool)
	coupons := NewCouponRepository(pool)

	for _, c := range []category.Category{{ID: 1, Name: "Books"}, {ID: 2, Name: "Games"}} {
		require.NoError(t, categories.Upsert(ctx, c))
	}
	for i := int64(1); i <= 5; i++ {
		p, err := product.New(i, fmt.Sprintf("Product %d", i), i*1000, i, 1+i%2, 0.125)
		require.NoError(t, err)
		require.NoError(t, products.Upsert(ctx, p))
	}

	t.Run("categories", func(t *testing.T) {
		all, err := categories.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		c, err := categories.FindByID(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "Games", c.Name)

		_, err = categories.FindByID(ctx, 99)
		require.ErrorIs(t, err, category.ErrNotFound)
	})

	t.Run("products", func(t *testing.T) {
		p, err := products.FindByID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(3000), p.Price)
		assert.Equal(t, int64(2), p.CategoryID)
		assert.InDelta(t, 0.125, p.DiscountRate, 1e-9)

		_, err = products.FindByID(ctx, 999)
		require.ErrorIs(t, err, product.ErrNotFound)

		page, err := products.FindAll(ctx, 1, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, []int64{2, 3}, []int64{page[0].ID, page[1].ID})

		byCat, err := products.FindByCategory(ctx, 2, 0, 10)
		require.NoError(t, err)
		require.Len(t, byCat, 3)
		assert.Equal(t, int64(1), byCat[0].ID)

		n, err := products.CountAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		n, err = products.CountByCategory(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		empty, err := products.FindByCategory(ctx, 42, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("coupons", func(t *testing.T) {
		validTo := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		rate, err := coupon.New(1, "SAVE102024AB", coupon.DiscountRate, 0.1, nil, nil)
		require.NoError(t, err)
		amount, err := coupon.New(1, "FLAT5000KRW1", coupon.DiscountAmount, 5000, nil, &validTo)
		require.NoError(t, err)

		require.NoError(t, coupons.UpsertBatch(ctx, []coupon.Coupon{rate, amount}))

		got, err := coupons.FindByCode(ctx, "FLAT5000KRW1")
		require.NoError(t, err)
		assert.Equal(t, coupon.DiscountAmount, got.DiscountType)
		assert.InDelta(t, 5000, got.DiscountValue, 1e-9)
		require.NotNil(t, got.ValidTo)
		assert.True(t, validTo.Equal(*got.ValidTo))
		assert.Nil(t, got.ValidFrom)

		rate.DiscountValue = 0.2
		require.NoError(t, coupons.Upsert(ctx, rate))
		got, err = coupons.FindByCode(ctx, "SAVE102024AB")
		require.NoError(t, err)
		assert.InDelta(t, 0.2, got.DiscountValue, 1e-9)

		_, err = coupons.FindByCode(ctx, "NOSUCHCODE01")
		require.ErrorIs(t, err, coupon.ErrNotFound)
	})

	t.Run("reset sequences", func(t *testing.T) {
		require.NoError(t, ResetSequences(ctx, pool))

		var next int64
		require.NoError(t, pool.QueryRow(ctx,
			`INSERT INTO categories (name) VALUES ('Music') RETURNING id`).Scan(&next))
		assert.Equal(t, int64(3), next)
	})
}
