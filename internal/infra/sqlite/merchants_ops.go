package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/storage"
)

const merchantColumns = `id, merchant_id, name_key, name, category_code, city, country`

// UpsertMerchantByExternalIDWithDB inserts the merchant or, when its external
// id already exists, overwrites name, category code, city and country with
// the incoming values. It returns the merchant's id.
func UpsertMerchantByExternalIDWithDB(ctx context.Context, q DBTX, row *storage.MerchantRow) (int64, error) {
	if row.ExternalID == nil || *row.ExternalID == "" {
		return 0, fmt.Errorf("UpsertMerchantByExternalIDWithDB: external merchant id is required")
	}

	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO merchants (merchant_id, name, category_code, city, country)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(merchant_id) DO UPDATE SET
			name = excluded.name,
			category_code = excluded.category_code,
			city = excluded.city,
			country = excluded.country
		RETURNING id`,
		*row.ExternalID, row.Name, row.CategoryCode, row.City, row.Country,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("UpsertMerchantByExternalIDWithDB: upserting %s: %w", *row.ExternalID, err)
	}

	row.ID = id
	return id, nil
}

// FindMerchantByNameWithDB returns the oldest merchant with exactly this name, or nil.
func FindMerchantByNameWithDB(ctx context.Context, q DBTX, name string) (*storage.MerchantRow, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+merchantColumns+` FROM merchants WHERE name = ? ORDER BY id LIMIT 1`, name)

	m, err := scanMerchant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindMerchantByNameWithDB: scanning: %w", err)
	}
	return m, nil
}

// InsertMerchantByNameKeyWithDB creates a merchant identified by its
// synthesized name key. An existing merchant with the same key is kept as is.
// It returns the id of the stored merchant.
func InsertMerchantByNameKeyWithDB(ctx context.Context, q DBTX, row *storage.MerchantRow) (int64, error) {
	if row.NameKey == nil || *row.NameKey == "" {
		return 0, fmt.Errorf("InsertMerchantByNameKeyWithDB: name key is required")
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO merchants (name_key, name, category_code, city, country)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name_key) DO NOTHING`,
		*row.NameKey, row.Name, row.CategoryCode, row.City, row.Country)
	if err != nil {
		return 0, fmt.Errorf("InsertMerchantByNameKeyWithDB: inserting %q: %w", row.Name, err)
	}

	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM merchants WHERE name_key = ?`, *row.NameKey).Scan(&id); err != nil {
		return 0, fmt.Errorf("InsertMerchantByNameKeyWithDB: reading back %q: %w", row.Name, err)
	}

	row.ID = id
	return id, nil
}

// GetMerchantWithDB returns the merchant with the given id, or nil.
func GetMerchantWithDB(ctx context.Context, q DBTX, id int64) (*storage.MerchantRow, error) {
	row := q.QueryRowContext(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE id = ?`, id)

	m, err := scanMerchant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetMerchantWithDB: scanning: %w", err)
	}
	return m, nil
}

func scanMerchant(s scanner) (*storage.MerchantRow, error) {
	var (
		m                   storage.MerchantRow
		externalID, nameKey sql.NullString
	)
	if err := s.Scan(&m.ID, &externalID, &nameKey, &m.Name, &m.CategoryCode, &m.City, &m.Country); err != nil {
		return nil, err
	}
	m.ExternalID = stringPtr(externalID)
	m.NameKey = stringPtr(nameKey)
	return &m, nil
}
