package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/storage"
)

const transactionColumns = `id, transaction_key, created_at, amount, currency_code, agent,
	merchant_id, sender_id, subcategory_id, category_id, transaction_type, transaction_text, ingested_at`

const transactionViewSelect = `
	SELECT
		t.transaction_key,
		t.created_at,
		t.amount,
		t.currency_code,
		t.agent,
		t.transaction_type,
		t.transaction_text,
		m.id, m.merchant_id, m.name, m.category_code, m.city, m.country,
		s.id, s.sender_key, s.name, s.city, s.country,
		sc.id, sc.category_id, sc.name, sc.code,
		c.id, c.name
	FROM transactions t
	LEFT JOIN merchants m ON m.id = t.merchant_id
	LEFT JOIN senders s ON s.id = t.sender_id
	LEFT JOIN subcategories sc ON sc.id = t.subcategory_id
	LEFT JOIN categories c ON c.id = COALESCE(t.category_id, sc.category_id)`

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// FindTransactionByKeyWithDB returns the transaction with the given key, or nil if none exists.
func FindTransactionByKeyWithDB(ctx context.Context, q DBTX, key string) (*storage.TransactionRow, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE transaction_key = ?`, key)

	r, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindTransactionByKeyWithDB: scanning: %w", err)
	}
	return r, nil
}

// InsertTransactionWithDB inserts row and does nothing when its key already
// exists. On insert row.ID is populated.
func InsertTransactionWithDB(ctx context.Context, q DBTX, row *storage.TransactionRow) (bool, error) {
	if row.IngestedAt.IsZero() {
		row.IngestedAt = now()
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO transactions (
			transaction_key, created_at, amount, currency_code, agent,
			merchant_id, sender_id, subcategory_id, category_id,
			transaction_type, transaction_text, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_key) DO NOTHING`,
		row.TransactionKey, row.CreatedAt.UTC(), row.Amount, row.CurrencyCode, row.Agent,
		row.MerchantID, row.SenderID, row.SubcategoryID, row.CategoryID,
		row.TransactionType, row.TransactionText, row.IngestedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("InsertTransactionWithDB: inserting %s: %w", row.TransactionKey, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("InsertTransactionWithDB: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if id, err := res.LastInsertId(); err == nil {
		row.ID = id
	}
	return true, nil
}

// SetTransactionMerchantWithDB assigns merchantID to the transaction only if
// it has no merchant yet.
func SetTransactionMerchantWithDB(ctx context.Context, q DBTX, key string, merchantID int64) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE transactions SET merchant_id = ? WHERE transaction_key = ? AND merchant_id IS NULL`,
		merchantID, key)
	if err != nil {
		return false, fmt.Errorf("SetTransactionMerchantWithDB: updating %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("SetTransactionMerchantWithDB: rows affected: %w", err)
	}
	return n > 0, nil
}

// SetTransactionCategoryWithDB sets category and subcategory on a transaction.
func SetTransactionCategoryWithDB(ctx context.Context, q DBTX, key string, categoryID, subcategoryID *int64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE transactions SET category_id = ?, subcategory_id = ? WHERE transaction_key = ?`,
		categoryID, subcategoryID, key)
	if err != nil {
		return fmt.Errorf("SetTransactionCategoryWithDB: updating %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetTransactionCategoryWithDB: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("SetTransactionCategoryWithDB: transaction %s: %w", key, storage.ErrNotFound)
	}
	return nil
}

// AssignSubcategoryIfUncategorizedWithDB sets the subcategory of a
// transaction that has neither category nor subcategory.
func AssignSubcategoryIfUncategorizedWithDB(ctx context.Context, q DBTX, key string, subcategoryID int64) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE transactions SET subcategory_id = ?
		WHERE transaction_key = ? AND subcategory_id IS NULL AND category_id IS NULL`,
		subcategoryID, key)
	if err != nil {
		return false, fmt.Errorf("AssignSubcategoryIfUncategorizedWithDB: updating %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("AssignSubcategoryIfUncategorizedWithDB: rows affected: %w", err)
	}
	return n > 0, nil
}

// QueryTransactionsByDateRangeWithDB returns transactions whose created_at
// falls within [start, end], oldest first.
func QueryTransactionsByDateRangeWithDB(ctx context.Context, q DBTX, start, end time.Time) ([]*storage.TransactionView, error) {
	rows, err := q.QueryContext(ctx, transactionViewSelect+`
		WHERE t.created_at >= ? AND t.created_at <= ?
		ORDER BY t.created_at, t.id`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRangeWithDB: query: %w", err)
	}
	defer rows.Close()

	views, err := scanTransactionViews(rows)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRangeWithDB: %w", err)
	}
	return views, nil
}

// ListUncategorizedTransactionsWithDB returns the newest transactions without
// category and subcategory.
func ListUncategorizedTransactionsWithDB(ctx context.Context, q DBTX, limit int) ([]*storage.TransactionView, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := q.QueryContext(ctx, transactionViewSelect+`
		WHERE t.category_id IS NULL AND t.subcategory_id IS NULL
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ListUncategorizedTransactionsWithDB: query: %w", err)
	}
	defer rows.Close()

	views, err := scanTransactionViews(rows)
	if err != nil {
		return nil, fmt.Errorf("ListUncategorizedTransactionsWithDB: %w", err)
	}
	return views, nil
}

// ListTransactionsByKeysWithDB returns the transactions with the given keys.
func ListTransactionsByKeysWithDB(ctx context.Context, q DBTX, keys []string) ([]*storage.TransactionView, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := q.QueryContext(ctx, transactionViewSelect+`
		WHERE t.transaction_key IN (`+placeholders+`)
		ORDER BY t.created_at, t.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsByKeysWithDB: query: %w", err)
	}
	defer rows.Close()

	views, err := scanTransactionViews(rows)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsByKeysWithDB: %w", err)
	}
	return views, nil
}

func scanTransaction(s scanner) (*storage.TransactionRow, error) {
	var (
		r                                  storage.TransactionRow
		merchantID, senderID, subID, catID sql.NullInt64
	)
	err := s.Scan(
		&r.ID, &r.TransactionKey, &r.CreatedAt, &r.Amount, &r.CurrencyCode, &r.Agent,
		&merchantID, &senderID, &subID, &catID,
		&r.TransactionType, &r.TransactionText, &r.IngestedAt,
	)
	if err != nil {
		return nil, err
	}

	r.MerchantID = int64Ptr(merchantID)
	r.SenderID = int64Ptr(senderID)
	r.SubcategoryID = int64Ptr(subID)
	r.CategoryID = int64Ptr(catID)
	return &r, nil
}

func scanTransactionViews(rows *sql.Rows) ([]*storage.TransactionView, error) {
	var out []*storage.TransactionView
	for rows.Next() {
		v, err := scanTransactionView(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

func scanTransactionView(s scanner) (*storage.TransactionView, error) {
	var (
		v storage.TransactionView

		mID                                      sql.NullInt64
		mExternal, mName, mCode, mCity, mCountry sql.NullString
		sID                                      sql.NullInt64
		sKey, sName, sCity, sCountry             sql.NullString
		scID, scCategoryID                       sql.NullInt64
		scName, scCode                           sql.NullString
		cID                                      sql.NullInt64
		cName                                    sql.NullString
	)

	err := s.Scan(
		&v.TransactionKey, &v.CreatedAt, &v.Amount, &v.CurrencyCode, &v.Agent,
		&v.TransactionType, &v.TransactionText,
		&mID, &mExternal, &mName, &mCode, &mCity, &mCountry,
		&sID, &sKey, &sName, &sCity, &sCountry,
		&scID, &scCategoryID, &scName, &scCode,
		&cID, &cName,
	)
	if err != nil {
		return nil, err
	}

	if mID.Valid {
		v.Merchant = &storage.MerchantRow{
			ID:           mID.Int64,
			ExternalID:   stringPtr(mExternal),
			Name:         mName.String,
			CategoryCode: mCode.String,
			City:         mCity.String,
			Country:      mCountry.String,
		}
	}
	if sID.Valid {
		v.Sender = &storage.SenderRow{
			ID:      sID.Int64,
			Key:     sKey.String,
			Name:    sName.String,
			City:    sCity.String,
			Country: stringPtr(sCountry),
		}
	}
	if cID.Valid {
		v.Category = &storage.CategoryRow{ID: cID.Int64, Name: cName.String}
	}
	if scID.Valid {
		v.Subcategory = &storage.SubcategoryRow{
			ID:         scID.Int64,
			CategoryID: int64Ptr(scCategoryID),
			Name:       scName.String,
			Code:       stringPtr(scCode),
		}
		if v.Category != nil && scCategoryID.Valid && scCategoryID.Int64 == v.Category.ID {
			v.Subcategory.CategoryName = v.Category.Name
		}
	}
	return &v, nil
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
