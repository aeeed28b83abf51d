package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRepository provides an interface for transaction-related database operations.
type TransactionRepository interface {
	// FindTransactionByKey returns the transaction with the given natural key, or nil if none exists.
	FindTransactionByKey(ctx context.Context, key string) (*TransactionRow, error)

	// InsertTransaction inserts a row unless its key already exists. It reports
	// whether a row was actually inserted.
	InsertTransaction(ctx context.Context, row *TransactionRow) (bool, error)

	// SetTransactionMerchant assigns a merchant to a transaction that has none yet.
	SetTransactionMerchant(ctx context.Context, key string, merchantID int64) (bool, error)

	// SetTransactionCategory sets the category and subcategory of a transaction.
	SetTransactionCategory(ctx context.Context, key string, categoryID, subcategoryID *int64) error

	// AssignSubcategoryIfUncategorized sets the subcategory only when the
	// transaction has neither category nor subcategory.
	AssignSubcategoryIfUncategorized(ctx context.Context, key string, subcategoryID int64) (bool, error)

	// QueryTransactionsByDateRange returns transactions created within [start, end].
	QueryTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]*TransactionView, error)

	// ListUncategorizedTransactions returns transactions without category and subcategory.
	ListUncategorizedTransactions(ctx context.Context, limit int) ([]*TransactionView, error)

	// ListTransactionsByKeys returns the transactions with the given keys.
	ListTransactionsByKeys(ctx context.Context, keys []string) ([]*TransactionView, error)
}

// MerchantRepository provides an interface for merchant-related database operations.
type MerchantRepository interface {
	// UpsertMerchantByExternalID inserts or overwrites the merchant with row.ExternalID.
	UpsertMerchantByExternalID(ctx context.Context, row *MerchantRow) (int64, error)

	// FindMerchantByName returns the first merchant with exactly this name, or nil.
	FindMerchantByName(ctx context.Context, name string) (*MerchantRow, error)

	// InsertMerchantByNameKey creates a merchant keyed by row.NameKey unless one
	// already exists and returns the id of the stored row.
	InsertMerchantByNameKey(ctx context.Context, row *MerchantRow) (int64, error)

	// GetMerchant returns the merchant with the given id, or nil.
	GetMerchant(ctx context.Context, id int64) (*MerchantRow, error)
}

// SenderRepository provides an interface for sender-related database operations.
type SenderRepository interface {
	// FindSenderByNameCity returns the sender with this exact name and city, or nil.
	FindSenderByNameCity(ctx context.Context, name, city string) (*SenderRow, error)

	// InsertSender creates a sender unless (name, city) exists and returns the stored id.
	InsertSender(ctx context.Context, row *SenderRow) (int64, error)
}

// TaxonomyRepository provides an interface for category and subcategory reads.
type TaxonomyRepository interface {
	// FindSubcategoryByCode returns the first subcategory mapped to a merchant category code, or nil.
	FindSubcategoryByCode(ctx context.Context, code string) (*SubcategoryRow, error)

	// GetSubcategory returns the subcategory with the given id, or nil.
	GetSubcategory(ctx context.Context, id int64) (*SubcategoryRow, error)

	// ListCategories returns all categories ordered by name.
	ListCategories(ctx context.Context) ([]CategoryRow, error)

	// ListSubcategories returns all subcategories ordered by category and name.
	ListSubcategories(ctx context.Context) ([]SubcategoryRow, error)
}

// Repository groups every repository the ingestion pipeline touches.
type Repository interface {
	TransactionRepository
	MerchantRepository
	SenderRepository
	TaxonomyRepository
}

// Store is a Repository that can run a unit of work in one database transaction.
type Store interface {
	Repository

	// WithTx runs fn against a transaction-scoped Repository. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(repo Repository) error) error
}

// TransactionRow represents a row of the transactions table.
type TransactionRow struct {
	ID              int64           `json:"id"`
	TransactionKey  string          `json:"transaction_key"`
	CreatedAt       time.Time       `json:"created_at"`
	Amount          decimal.Decimal `json:"amount"`
	CurrencyCode    string          `json:"currency_code"`
	Agent           string          `json:"agent"`
	MerchantID      *int64          `json:"merchant_id,omitempty"`
	SenderID        *int64          `json:"sender_id,omitempty"`
	SubcategoryID   *int64          `json:"subcategory_id,omitempty"`
	CategoryID      *int64          `json:"category_id,omitempty"`
	TransactionType string          `json:"transaction_type"`
	TransactionText string          `json:"transaction_text"`
	IngestedAt      time.Time       `json:"ingested_at"`
}

// Unresolved reports whether the row has neither a merchant nor a sender.
func (r *TransactionRow) Unresolved() bool {
	return r.MerchantID == nil && r.SenderID == nil
}

// MerchantRow represents a row of the merchants table. ExternalID is the
// bank-assigned merchant id; NameKey is the synthesized key of merchants
// created from transaction text. At most one of them is set.
type MerchantRow struct {
	ID           int64   `json:"id"`
	ExternalID   *string `json:"merchant_id,omitempty"`
	NameKey      *string `json:"-"`
	Name         string  `json:"name"`
	CategoryCode string  `json:"category_code,omitempty"`
	City         string  `json:"city,omitempty"`
	Country      string  `json:"country,omitempty"`
}

// SenderRow represents a row of the senders table.
type SenderRow struct {
	ID      int64   `json:"id"`
	Key     string  `json:"key"`
	Name    string  `json:"name"`
	City    string  `json:"city"`
	Country *string `json:"country,omitempty"`
}

// CategoryRow represents a row of the categories table.
type CategoryRow struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SubcategoryRow represents a row of the subcategories table.
type SubcategoryRow struct {
	ID           int64   `json:"id"`
	CategoryID   *int64  `json:"category_id,omitempty"`
	CategoryName string  `json:"category_name,omitempty"`
	Name         string  `json:"name"`
	Code         *string `json:"code,omitempty"`
}

// TransactionView is a transaction with its relations resolved for display
// and export. Category falls back to the subcategory's parent when the
// transaction is not categorized directly.
type TransactionView struct {
	TransactionKey  string          `json:"transaction_key"`
	CreatedAt       time.Time       `json:"created_at"`
	Amount          decimal.Decimal `json:"amount"`
	CurrencyCode    string          `json:"currency_code"`
	Agent           string          `json:"agent"`
	TransactionType string          `json:"transaction_type"`
	TransactionText string          `json:"transaction_text"`
	Merchant        *MerchantRow    `json:"merchant,omitempty"`
	Sender          *SenderRow      `json:"sender,omitempty"`
	Subcategory     *SubcategoryRow `json:"subcategory,omitempty"`
	Category        *CategoryRow    `json:"category,omitempty"`
}
