package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsContainConstraints(t *testing.T) {
	cases := map[string][]string{
		"create_catalog": {
			"CREATE TABLE IF NOT EXISTS product_variants",
			"CONSTRAINT chk_product_variants_stock CHECK (stock >= 0)",
			"price numeric(14,4) NOT NULL",
			"DROP TABLE IF EXISTS product_variants",
		},
		"create_carts": {
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_carts_user_id ON carts (user_id)",
			"FOREIGN KEY (cart_id) REFERENCES carts(id) ON DELETE CASCADE",
			"DROP TABLE IF EXISTS cart_items",
		},
		"create_orders": {
			"items_total numeric(12,2) NOT NULL",
			"CREATE INDEX IF NOT EXISTS idx_orders_user_placed_at ON orders (user_id, placed_at DESC)",
			"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
			"CONSTRAINT chk_order_items_qty CHECK (qty > 0)",
			"DROP TABLE IF EXISTS orders",
		},
		"create_payments": {
			"CREATE TABLE IF NOT EXISTS payments",
			"ux_payments_intent_id",
			"DROP TABLE IF EXISTS payments",
		},
		"create_shipments": {
			"CREATE TABLE IF NOT EXISTS shipment_events",
			"FOREIGN KEY (shipment_id) REFERENCES shipments(id) ON DELETE CASCADE",
			"DROP TABLE IF EXISTS shipments",
		},
	}

	for suffix, checks := range cases {
		content := readMigration(t, suffix)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", suffix, sub)
			}
		}
	}
}
