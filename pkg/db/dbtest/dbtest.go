// Package dbtest opens isolated in-memory sqlite databases carrying the order
// schema, plus small seeding helpers for catalog rows.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/marketcore/pkg/db"
	"github.com/angelmondragon/marketcore/pkg/db/models"
)

// Open returns a client over a fresh sqlite database. The pool is capped at a
// single connection so concurrent transactions serialize instead of failing
// with table locks.
func Open(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db.Wrap(conn)
}

// SeedVariant inserts a product owned by sellerID with one variant.
func SeedVariant(t testing.TB, conn *gorm.DB, sellerID uuid.UUID, price string, stock int) models.ProductVariant {
	t.Helper()

	product := models.Product{SellerID: sellerID, Title: "product-" + uuid.NewString()[:8]}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variant := models.ProductVariant{
		ProductID: product.ID,
		SKU:       "sku-" + uuid.NewString()[:8],
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
	}
	if err := conn.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant
}

// Stock reads the current stock of a variant.
func Stock(t testing.TB, conn *gorm.DB, variantID uuid.UUID) int {
	t.Helper()

	var variant models.ProductVariant
	if err := conn.Select("stock").First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant stock: %v", err)
	}
	return variant.Stock
}

// Count returns the number of rows in model's table.
func Count(t testing.TB, conn *gorm.DB, model any) int64 {
	t.Helper()

	var n int64
	if err := conn.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
