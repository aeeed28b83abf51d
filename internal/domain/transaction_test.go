package domain

import (
	"encoding/json"
	"testing"
)

func TestAmount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		want         string
		wantOK       bool
		wantCurrency string
		wantErr      bool
	}{
		{name: "bare number", input: `-50.00`, want: "-50", wantOK: true},
		{name: "numeric string", input: `"12.34"`, want: "12.34", wantOK: true},
		{name: "object with value", input: `{"value": -125.5, "currencyCode": "DKK"}`, want: "-125.5", wantOK: true, wantCurrency: "DKK"},
		{name: "value wins over unscaled", input: `{"value": 1.5, "unscaledValue": 999, "scale": 2}`, want: "1.5", wantOK: true},
		{name: "unscaled fallback", input: `{"unscaledValue": -12550, "scale": 2}`, want: "-125.5", wantOK: true},
		{name: "null", input: `null`, wantOK: false},
		{name: "garbage", input: `"abc"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			err := json.Unmarshal([]byte(tt.input), &a)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			d, ok := a.Decimal()
			if ok != tt.wantOK {
				t.Fatalf("Decimal() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && d.String() != tt.want {
				t.Errorf("Decimal() = %s, want %s", d.String(), tt.want)
			}
			if a.CurrencyCode != tt.wantCurrency {
				t.Errorf("CurrencyCode = %q, want %q", a.CurrencyCode, tt.wantCurrency)
			}
		})
	}
}

func TestRawTransactionRecord_Decode(t *testing.T) {
	payload := `{
		"combinedKey": "A1",
		"originalDate": "2024-03-01",
		"transactionText": "Shop",
		"amount": -50.00,
		"currencyCode": "DKK",
		"transactionType": "btlq",
		"cardDetails": {"merchant": {"id": "M1", "name": "Shop", "categoryCode": "5411", "city": "X", "country": "DK"}}
	}`

	var rec RawTransactionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if rec.MerchantID() != "M1" {
		t.Errorf("MerchantID() = %q, want M1", rec.MerchantID())
	}
	if rec.SenderInfo != nil {
		t.Error("SenderInfo should be nil")
	}
	if rec.CardDetails.Merchant.CategoryCode != "5411" {
		t.Errorf("CategoryCode = %q", rec.CardDetails.Merchant.CategoryCode)
	}
}

func TestRawTransactionRecord_MerchantIDWithoutCard(t *testing.T) {
	rec := RawTransactionRecord{CardDetails: &CardDetails{}}
	if got := rec.MerchantID(); got != "" {
		t.Errorf("MerchantID() = %q, want empty", got)
	}
}
