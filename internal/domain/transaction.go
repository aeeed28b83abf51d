package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Agent labels which counterparty a transaction is attributed to.
type Agent string

const (
	// AgentReceiver marks a transaction attributed to a merchant charge.
	AgentReceiver Agent = "RECEIVER"
	// AgentSender marks a transaction attributed to an incoming transfer counterparty.
	AgentSender Agent = "SENDER"
)

// Bank transaction type codes that get special handling.
const (
	TypeMobilePayPurchase = "mppb"
	TypeMobilePayPeer     = "mpcp"
	TypeCardPurchase      = "btlq"
)

// RawTransactionRecord is one element of an uploaded transactionList.
type RawTransactionRecord struct {
	CombinedKey     string       `json:"combinedKey"`
	OriginalDate    string       `json:"originalDate"`
	TransactionText string       `json:"transactionText"`
	IndividualText  string       `json:"individualText"`
	Amount          Amount       `json:"amount"`
	CurrencyCode    string       `json:"currencyCode"`
	TransactionType string       `json:"transactionType"`
	CardDetails     *CardDetails `json:"cardDetails,omitempty"`
	SenderInfo      *SenderInfo  `json:"senderInfo,omitempty"`
}

// CardDetails is present on card and merchant charges.
type CardDetails struct {
	Merchant *CardMerchant `json:"merchant,omitempty"`
}

// CardMerchant carries the bank's view of the merchant.
type CardMerchant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CategoryCode string `json:"categoryCode"`
	City         string `json:"city"`
	Country      string `json:"country"`
}

// SenderInfo is present on incoming and person-to-person transfers.
// AddressLine1 holds the sender name and AddressLine2 the city.
type SenderInfo struct {
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	AddressLine3 string `json:"addressLine3"`
	CountryCode  string `json:"countryCode"`
}

// MerchantID returns the card merchant's external id, or "" when absent.
func (r *RawTransactionRecord) MerchantID() string {
	if r.CardDetails == nil || r.CardDetails.Merchant == nil {
		return ""
	}
	return r.CardDetails.Merchant.ID
}

// Amount is a signed decimal amount. It accepts either a bare JSON number
// (or numeric string) or an object carrying the decimal value, an
// unscaled integer with its scale, and a currency code.
type Amount struct {
	Value         *decimal.Decimal
	UnscaledValue *decimal.Decimal
	Scale         int32
	CurrencyCode  string
}

type amountObject struct {
	Value         *decimal.Decimal `json:"value"`
	UnscaledValue *decimal.Decimal `json:"unscaledValue"`
	Scale         int32            `json:"scale"`
	CurrencyCode  string           `json:"currencyCode"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*a = Amount{}
		return nil
	}

	if trimmed[0] == '{' {
		var obj amountObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		*a = Amount{
			Value:         obj.Value,
			UnscaledValue: obj.UnscaledValue,
			Scale:         obj.Scale,
			CurrencyCode:  obj.CurrencyCode,
		}
		return nil
	}

	var d decimal.Decimal
	if err := d.UnmarshalJSON(trimmed); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount{Value: &d}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(amountObject{
		Value:         a.Value,
		UnscaledValue: a.UnscaledValue,
		Scale:         a.Scale,
		CurrencyCode:  a.CurrencyCode,
	})
}

// Decimal returns the decimal value. The value representation wins; the
// unscaled integer encoding is only used when no value was sent.
func (a Amount) Decimal() (decimal.Decimal, bool) {
	if a.Value != nil {
		return *a.Value, true
	}
	if a.UnscaledValue != nil {
		return a.UnscaledValue.Shift(-a.Scale), true
	}
	return decimal.Zero, false
}
