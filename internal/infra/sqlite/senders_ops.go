package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/storage"
)

// FindSenderByNameCityWithDB returns the sender with exactly this name and city, or nil.
func FindSenderByNameCityWithDB(ctx context.Context, q DBTX, name, city string) (*storage.SenderRow, error) {
	var (
		s       storage.SenderRow
		country sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, sender_key, name, city, country FROM senders WHERE name = ? AND city = ?`,
		name, city,
	).Scan(&s.ID, &s.Key, &s.Name, &s.City, &country)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindSenderByNameCityWithDB: scanning: %w", err)
	}

	s.Country = stringPtr(country)
	return &s, nil
}

// InsertSenderWithDB creates a sender unless one with the same (name, city)
// exists. Existing senders are never updated. It returns the stored id.
func InsertSenderWithDB(ctx context.Context, q DBTX, row *storage.SenderRow) (int64, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO senders (sender_key, name, city, country)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name, city) DO NOTHING`,
		row.Key, row.Name, row.City, row.Country)
	if err != nil {
		return 0, fmt.Errorf("InsertSenderWithDB: inserting %q: %w", row.Name, err)
	}

	var id int64
	err = q.QueryRowContext(ctx, `SELECT id FROM senders WHERE name = ? AND city = ?`, row.Name, row.City).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("InsertSenderWithDB: reading back %q: %w", row.Name, err)
	}

	row.ID = id
	return id, nil
}
