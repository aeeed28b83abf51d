package sqlite

import (
	"context"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/storage"
)

// FindTransactionByKey delegates to FindTransactionByKeyWithDB.
func (s *Store) FindTransactionByKey(ctx context.Context, key string) (*storage.TransactionRow, error) {
	return FindTransactionByKeyWithDB(ctx, s.q, key)
}

// InsertTransaction delegates to InsertTransactionWithDB.
func (s *Store) InsertTransaction(ctx context.Context, row *storage.TransactionRow) (bool, error) {
	return InsertTransactionWithDB(ctx, s.q, row)
}

// SetTransactionMerchant delegates to SetTransactionMerchantWithDB.
func (s *Store) SetTransactionMerchant(ctx context.Context, key string, merchantID int64) (bool, error) {
	return SetTransactionMerchantWithDB(ctx, s.q, key, merchantID)
}

// SetTransactionCategory delegates to SetTransactionCategoryWithDB.
func (s *Store) SetTransactionCategory(ctx context.Context, key string, categoryID, subcategoryID *int64) error {
	return SetTransactionCategoryWithDB(ctx, s.q, key, categoryID, subcategoryID)
}

// AssignSubcategoryIfUncategorized delegates to AssignSubcategoryIfUncategorizedWithDB.
func (s *Store) AssignSubcategoryIfUncategorized(ctx context.Context, key string, subcategoryID int64) (bool, error) {
	return AssignSubcategoryIfUncategorizedWithDB(ctx, s.q, key, subcategoryID)
}

// QueryTransactionsByDateRange delegates to QueryTransactionsByDateRangeWithDB.
func (s *Store) QueryTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]*storage.TransactionView, error) {
	return QueryTransactionsByDateRangeWithDB(ctx, s.q, start, end)
}

// ListUncategorizedTransactions delegates to ListUncategorizedTransactionsWithDB.
func (s *Store) ListUncategorizedTransactions(ctx context.Context, limit int) ([]*storage.TransactionView, error) {
	return ListUncategorizedTransactionsWithDB(ctx, s.q, limit)
}

// ListTransactionsByKeys delegates to ListTransactionsByKeysWithDB.
func (s *Store) ListTransactionsByKeys(ctx context.Context, keys []string) ([]*storage.TransactionView, error) {
	return ListTransactionsByKeysWithDB(ctx, s.q, keys)
}

// UpsertMerchantByExternalID delegates to UpsertMerchantByExternalIDWithDB.
func (s *Store) UpsertMerchantByExternalID(ctx context.Context, row *storage.MerchantRow) (int64, error) {
	return UpsertMerchantByExternalIDWithDB(ctx, s.q, row)
}

// FindMerchantByName delegates to FindMerchantByNameWithDB.
func (s *Store) FindMerchantByName(ctx context.Context, name string) (*storage.MerchantRow, error) {
	return FindMerchantByNameWithDB(ctx, s.q, name)
}

// InsertMerchantByNameKey delegates to InsertMerchantByNameKeyWithDB.
func (s *Store) InsertMerchantByNameKey(ctx context.Context, row *storage.MerchantRow) (int64, error) {
	return InsertMerchantByNameKeyWithDB(ctx, s.q, row)
}

// GetMerchant delegates to GetMerchantWithDB.
func (s *Store) GetMerchant(ctx context.Context, id int64) (*storage.MerchantRow, error) {
	return GetMerchantWithDB(ctx, s.q, id)
}

// FindSenderByNameCity delegates to FindSenderByNameCityWithDB.
func (s *Store) FindSenderByNameCity(ctx context.Context, name, city string) (*storage.SenderRow, error) {
	return FindSenderByNameCityWithDB(ctx, s.q, name, city)
}

// InsertSender delegates to InsertSenderWithDB.
func (s *Store) InsertSender(ctx context.Context, row *storage.SenderRow) (int64, error) {
	return InsertSenderWithDB(ctx, s.q, row)
}

// FindSubcategoryByCode delegates to FindSubcategoryByCodeWithDB.
func (s *Store) FindSubcategoryByCode(ctx context.Context, code string) (*storage.SubcategoryRow, error) {
	return FindSubcategoryByCodeWithDB(ctx, s.q, code)
}

// GetSubcategory delegates to GetSubcategoryWithDB.
func (s *Store) GetSubcategory(ctx context.Context, id int64) (*storage.SubcategoryRow, error) {
	return GetSubcategoryWithDB(ctx, s.q, id)
}

// ListCategories delegates to ListCategoriesWithDB.
func (s *Store) ListCategories(ctx context.Context) ([]storage.CategoryRow, error) {
	return ListCategoriesWithDB(ctx, s.q)
}

// ListSubcategories delegates to ListSubcategoriesWithDB.
func (s *Store) ListSubcategories(ctx context.Context) ([]storage.SubcategoryRow, error) {
	return ListSubcategoriesWithDB(ctx, s.q)
}

// SeedDefaults seeds the baseline taxonomy.
func (s *Store) SeedDefaults(ctx context.Context) error {
	return SeedDefaults(ctx, s.q)
}
