package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/storage"
)

const subcategorySelect = `
	SELECT sc.id, sc.category_id, COALESCE(c.name, ''), sc.name, sc.code
	FROM subcategories sc
	LEFT JOIN categories c ON c.id = sc.category_id`

// FindSubcategoryByCodeWithDB returns the first subcategory mapped to the
// merchant category code, or nil when none is.
func FindSubcategoryByCodeWithDB(ctx context.Context, q DBTX, code string) (*storage.SubcategoryRow, error) {
	row := q.QueryRowContext(ctx, subcategorySelect+` WHERE sc.code = ? ORDER BY sc.id LIMIT 1`, code)

	sc, err := scanSubcategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindSubcategoryByCodeWithDB: scanning: %w", err)
	}
	return sc, nil
}

// GetSubcategoryWithDB returns the subcategory with the given id, or nil.
func GetSubcategoryWithDB(ctx context.Context, q DBTX, id int64) (*storage.SubcategoryRow, error) {
	row := q.QueryRowContext(ctx, subcategorySelect+` WHERE sc.id = ?`, id)

	sc, err := scanSubcategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetSubcategoryWithDB: scanning: %w", err)
	}
	return sc, nil
}

// ListCategoriesWithDB returns all categories ordered by name.
func ListCategoriesWithDB(ctx context.Context, q DBTX) ([]storage.CategoryRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ListCategoriesWithDB: query: %w", err)
	}
	defer rows.Close()

	var out []storage.CategoryRow
	for rows.Next() {
		var c storage.CategoryRow
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("ListCategoriesWithDB: scanning: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCategoriesWithDB: iterating: %w", err)
	}
	return out, nil
}

// ListSubcategoriesWithDB returns all subcategories ordered by category and name.
func ListSubcategoriesWithDB(ctx context.Context, q DBTX) ([]storage.SubcategoryRow, error) {
	rows, err := q.QueryContext(ctx, subcategorySelect+` ORDER BY COALESCE(c.name, ''), sc.name`)
	if err != nil {
		return nil, fmt.Errorf("ListSubcategoriesWithDB: query: %w", err)
	}
	defer rows.Close()

	var out []storage.SubcategoryRow
	for rows.Next() {
		sc, err := scanSubcategory(rows)
		if err != nil {
			return nil, fmt.Errorf("ListSubcategoriesWithDB: scanning: %w", err)
		}
		out = append(out, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListSubcategoriesWithDB: iterating: %w", err)
	}
	return out, nil
}

func scanSubcategory(s scanner) (*storage.SubcategoryRow, error) {
	var (
		sc         storage.SubcategoryRow
		categoryID sql.NullInt64
		code       sql.NullString
	)
	if err := s.Scan(&sc.ID, &categoryID, &sc.CategoryName, &sc.Name, &code); err != nil {
		return nil, err
	}
	sc.CategoryID = int64Ptr(categoryID)
	sc.Code = stringPtr(code)
	return &sc, nil
}
