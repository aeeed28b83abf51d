package sqlite

import (
	"context"
	"fmt"
)

type defaultSubcategory struct {
	name string
	code string // merchant category code, empty when none applies
}

// defaultTaxonomy is the baseline category tree. Merchant category codes
// follow ISO 18245.
var defaultTaxonomy = []struct {
	category      string
	subcategories []defaultSubcategory
}{
	{"Food", []defaultSubcategory{
		{"Groceries", "5411"},
		{"Restaurants", "5812"},
		{"Fast Food", "5814"},
		{"Bakeries", "5462"},
		{"Bars", "5813"},
	}},
	{"Transport", []defaultSubcategory{
		{"Public Transport", "4111"},
		{"Taxi", "4121"},
		{"Fuel", "5541"},
		{"Parking", "7523"},
	}},
	{"Shopping", []defaultSubcategory{
		{"Department Stores", "5311"},
		{"Clothing", "5651"},
		{"Electronics", "5732"},
		{"Pharmacy", "5912"},
	}},
	{"Housing", []defaultSubcategory{
		{"Utilities", "4900"},
		{"Home Improvement", "5200"},
		{"Rent", ""},
	}},
	{"Leisure", []defaultSubcategory{
		{"Cinema", "7832"},
		{"Streaming", "4899"},
		{"Sports", "7941"},
		{"Hotels", "7011"},
		{"Airlines", "4511"},
	}},
	{"Health", []defaultSubcategory{
		{"Doctors", "8011"},
		{"Dentists", "8021"},
	}},
	{"Income", []defaultSubcategory{
		{"Salary", ""},
		{"Transfers", ""},
	}},
}

// SeedDefaults ensures the baseline taxonomy exists. It is idempotent and
// safe to run on every startup; existing rows are left untouched.
func SeedDefaults(ctx context.Context, q DBTX) error {
	for _, cat := range defaultTaxonomy {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO categories (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, cat.category); err != nil {
			return fmt.Errorf("SeedDefaults: inserting category %s: %w", cat.category, err)
		}

		var categoryID int64
		if err := q.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, cat.category).Scan(&categoryID); err != nil {
			return fmt.Errorf("SeedDefaults: reading category %s: %w", cat.category, err)
		}

		for _, sub := range cat.subcategories {
			var code any
			if sub.code != "" {
				code = sub.code
			}
			if _, err := q.ExecContext(ctx, `
				INSERT INTO subcategories (category_id, name, code) VALUES (?, ?, ?)
				ON CONFLICT(category_id, name) DO NOTHING`,
				categoryID, sub.name, code); err != nil {
				return fmt.Errorf("SeedDefaults: inserting subcategory %s/%s: %w", cat.category, sub.name, err)
			}
		}
	}
	return nil
}
