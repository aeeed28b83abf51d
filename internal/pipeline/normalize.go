package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// dateLayouts are the accepted originalDate formats, tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalized holds the canonical identity and money fields of a record.
type Normalized struct {
	TransactionKey string
	CreatedAt      time.Time
	Amount         decimal.Decimal
	CurrencyCode   string
}

// Normalize extracts the natural key, business date, amount and currency of a record.
func Normalize(rec domain.RawTransactionRecord) (Normalized, error) {
	key := rec.CombinedKey
	if strings.TrimSpace(key) == "" {
		return Normalized{}, ErrEmptyTransactionKey
	}

	createdAt, err := parseDate(rec.OriginalDate)
	if err != nil {
		return Normalized{}, err
	}

	amount, ok := rec.Amount.Decimal()
	if !ok {
		return Normalized{}, ErrInvalidAmount
	}

	currency := rec.Amount.CurrencyCode
	if currency == "" {
		currency = rec.CurrencyCode
	}

	return Normalized{
		TransactionKey: key,
		CreatedAt:      createdAt,
		Amount:         amount,
		CurrencyCode:   strings.ToUpper(strings.TrimSpace(currency)),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
