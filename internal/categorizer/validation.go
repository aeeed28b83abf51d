package categorizer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/storage"
)

// CategoryValidator validates model suggestions against the taxonomy.
type CategoryValidator struct {
	// subcategories maps normalized category -> normalized subcategory -> id.
	subcategories map[string]map[string]int64
	// names keeps display names per category for prompts, in taxonomy order.
	names map[string][]string
	order []string
}

// NewCategoryValidator creates a validator from the stored taxonomy.
func NewCategoryValidator(ctx context.Context, repo storage.TaxonomyRepository) (*CategoryValidator, error) {
	rows, err := repo.ListSubcategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewCategoryValidator: list subcategories: %w", err)
	}

	v := &CategoryValidator{
		subcategories: make(map[string]map[string]int64),
		names:         make(map[string][]string),
	}

	for _, row := range rows {
		if row.CategoryName == "" {
			continue
		}
		cat := normalizeCategory(row.CategoryName)
		if v.subcategories[cat] == nil {
			v.subcategories[cat] = make(map[string]int64)
			v.order = append(v.order, row.CategoryName)
		}
		v.subcategories[cat][normalizeCategory(row.Name)] = row.ID
		v.names[row.CategoryName] = append(v.names[row.CategoryName], row.Name)
	}

	if len(v.subcategories) == 0 {
		return nil, fmt.Errorf("NewCategoryValidator: taxonomy is empty")
	}
	return v, nil
}

// Resolve returns the subcategory id for a category and subcategory pair.
// Matching ignores case and surrounding whitespace.
func (v *CategoryValidator) Resolve(category, subcategory string) (int64, error) {
	subs, ok := v.subcategories[normalizeCategory(category)]
	if !ok {
		return 0, fmt.Errorf("invalid category: %q", category)
	}

	id, ok := subs[normalizeCategory(subcategory)]
	if !ok {
		valid := make([]string, 0, len(subs))
		for s := range subs {
			valid = append(valid, s)
		}
		sort.Strings(valid)
		return 0, fmt.Errorf("invalid subcategory %q for category %q. Valid subcategories: %v",
			subcategory, category, valid)
	}
	return id, nil
}

// normalizeCategory converts to uppercase and trims whitespace.
func normalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
