package bigquery

import (
	"math/big"
	"testing"
	"time"

	bq "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-dashboard/internal/storage"
	"github.com/shopspring/decimal"
)

func TestNewExportRow(t *testing.T) {
	externalID := "M-1"
	created := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	exportedAt := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)

	view := &storage.TransactionView{
		TransactionKey:  "K1",
		CreatedAt:       created,
		Amount:          decimal.RequireFromString("-45.50"),
		CurrencyCode:    "DKK",
		Agent:           "RECEIVER",
		TransactionType: "kort",
		Merchant: &storage.MerchantRow{
			ID: 1, ExternalID: &externalID, Name: "Netto", CategoryCode: "5411", City: "Copenhagen",
		},
		Category:    &storage.CategoryRow{ID: 1, Name: "Food"},
		Subcategory: &storage.SubcategoryRow{ID: 2, Name: "Groceries"},
	}

	row := NewExportRow(view, exportedAt)

	if row.TransactionKey != "K1" {
		t.Errorf("TransactionKey = %q, want K1", row.TransactionKey)
	}
	if want := (civil.Date{Year: 2024, Month: time.March, Day: 1}); row.TransactionDate != want {
		t.Errorf("TransactionDate = %v, want %v", row.TransactionDate, want)
	}
	if row.Amount.Cmp(big.NewRat(-91, 2)) != 0 {
		t.Errorf("Amount = %s, want -91/2", row.Amount.RatString())
	}

	nullChecks := []struct {
		name string
		got  bq.NullString
		want bq.NullString
	}{
		{"merchant_id", row.MerchantID, bq.NullString{StringVal: "M-1", Valid: true}},
		{"merchant_name", row.MerchantName, bq.NullString{StringVal: "Netto", Valid: true}},
		{"merchant_country", row.MerchantCountry, bq.NullString{}},
		{"transaction_text", row.TransactionText, bq.NullString{}},
		{"sender_name", row.SenderName, bq.NullString{}},
		{"category_name", row.CategoryName, bq.NullString{StringVal: "Food", Valid: true}},
		{"subcategory_name", row.SubcategoryName, bq.NullString{StringVal: "Groceries", Valid: true}},
	}
	for _, c := range nullChecks {
		if c.got != c.want {
			t.Errorf("%s = %+v, want %+v", c.name, c.got, c.want)
		}
	}
	if !row.ExportedTS.Equal(exportedAt) {
		t.Errorf("ExportedTS = %v, want %v", row.ExportedTS, exportedAt)
	}
}

func TestPendingExportRows(t *testing.T) {
	views := []*storage.TransactionView{
		{TransactionKey: "A", Amount: decimal.NewFromInt(1)},
		{TransactionKey: "B", Amount: decimal.NewFromInt(2)},
		{TransactionKey: "C", Amount: decimal.NewFromInt(3)},
	}

	rows := PendingExportRows(views, map[string]bool{"B": true}, time.Now())
	if len(rows) != 2 {
		t.Fatalf("PendingExportRows() returned %d rows, want 2", len(rows))
	}
	if rows[0].TransactionKey != "A" || rows[1].TransactionKey != "C" {
		t.Errorf("PendingExportRows() keys = %s,%s, want A,C", rows[0].TransactionKey, rows[1].TransactionKey)
	}
}

func TestExportRowSchema(t *testing.T) {
	schema, err := bq.InferSchema(ExportRow{})
	if err != nil {
		t.Fatalf("InferSchema() error = %v", err)
	}

	types := make(map[string]bq.FieldType, len(schema))
	for _, f := range schema {
		types[f.Name] = f.Type
	}
	if types["amount"] != bq.NumericFieldType {
		t.Errorf("amount type = %s, want NUMERIC", types["amount"])
	}
	if types["transaction_date"] != bq.DateFieldType {
		t.Errorf("transaction_date type = %s, want DATE", types["transaction_date"])
	}
	if types["merchant_name"] != bq.StringFieldType {
		t.Errorf("merchant_name type = %s, want STRING", types["merchant_name"])
	}
}
