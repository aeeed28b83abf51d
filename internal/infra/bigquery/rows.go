package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-dashboard/internal/storage"
)

// ExportRow is one transaction in the analytics table.
type ExportRow struct {
	TransactionKey  string     `bigquery:"transaction_key"`  // REQUIRED
	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED, partition column
	CreatedTS       time.Time  `bigquery:"created_ts"`

	Amount   *big.Rat `bigquery:"amount"`   // NUMERIC
	Currency string   `bigquery:"currency"` // REQUIRED STRING
	Agent    string   `bigquery:"agent"`

	TransactionType bigquery.NullString `bigquery:"transaction_type"`
	TransactionText bigquery.NullString `bigquery:"transaction_text"`

	MerchantID           bigquery.NullString `bigquery:"merchant_id"`
	MerchantName         bigquery.NullString `bigquery:"merchant_name"`
	MerchantCategoryCode bigquery.NullString `bigquery:"merchant_category_code"`
	MerchantCity         bigquery.NullString `bigquery:"merchant_city"`
	MerchantCountry      bigquery.NullString `bigquery:"merchant_country"`

	SenderName bigquery.NullString `bigquery:"sender_name"`
	SenderCity bigquery.NullString `bigquery:"sender_city"`

	CategoryName    bigquery.NullString `bigquery:"category_name"`
	SubcategoryName bigquery.NullString `bigquery:"subcategory_name"`

	ExportedTS time.Time `bigquery:"exported_ts"`
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// NewExportRow flattens a transaction view into an ExportRow.
func NewExportRow(v *storage.TransactionView, exportedAt time.Time) *ExportRow {
	row := &ExportRow{
		TransactionKey:  v.TransactionKey,
		TransactionDate: civil.DateOf(v.CreatedAt.UTC()),
		CreatedTS:       v.CreatedAt.UTC(),
		Amount:          v.Amount.Rat(),
		Currency:        v.CurrencyCode,
		Agent:           v.Agent,
		TransactionType: nullString(v.TransactionType),
		TransactionText: nullString(v.TransactionText),
		ExportedTS:      exportedAt.UTC(),
	}

	if m := v.Merchant; m != nil {
		if m.ExternalID != nil {
			row.MerchantID = nullString(*m.ExternalID)
		}
		row.MerchantName = nullString(m.Name)
		row.MerchantCategoryCode = nullString(m.CategoryCode)
		row.MerchantCity = nullString(m.City)
		row.MerchantCountry = nullString(m.Country)
	}
	if s := v.Sender; s != nil {
		row.SenderName = nullString(s.Name)
		row.SenderCity = nullString(s.City)
	}
	if c := v.Category; c != nil {
		row.CategoryName = nullString(c.Name)
	}
	if sc := v.Subcategory; sc != nil {
		row.SubcategoryName = nullString(sc.Name)
	}

	return row
}
