package pipeline

import (
	"regexp"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// Classification is the outcome of classifying a new record. It is one of
// MerchantCharge, SenderCredit, HeuristicMerchant or Unrecognized.
type Classification interface {
	classification()
}

// MerchantCharge is a card charge with a bank-assigned merchant id.
type MerchantCharge struct {
	Merchant MerchantInput
}

// SenderCredit is an incoming or person-to-person transfer.
type SenderCredit struct {
	Sender SenderInput
}

// HeuristicMerchant is a special-cased type whose merchant is derived from
// the transaction text. ExternalID is set only when the record carries a
// card merchant id.
type HeuristicMerchant struct {
	Merchant MerchantInput
}

// Unrecognized records are logged and dropped.
type Unrecognized struct {
	TransactionType string
	Reason          string
}

func (MerchantCharge) classification()    {}
func (SenderCredit) classification()      {}
func (HeuristicMerchant) classification() {}
func (Unrecognized) classification()      {}

// Agent returns the agent label a classification produces, or "" for Unrecognized.
func Agent(c Classification) domain.Agent {
	switch c.(type) {
	case MerchantCharge, HeuristicMerchant:
		return domain.AgentReceiver
	case SenderCredit:
		return domain.AgentSender
	default:
		return ""
	}
}

var mobilePayPattern = regexp.MustCompile(`(?i)mobilepay`)

// MerchantNameFromText derives a merchant name from transaction text by
// removing every case-insensitive "mobilepay" and trimming whitespace.
func MerchantNameFromText(text string) string {
	return strings.TrimSpace(mobilePayPattern.ReplaceAllString(text, ""))
}

// Classify decides how a new record is attributed. It is pure; the
// existence check and reconciliation happen before it is called.
func Classify(rec domain.RawTransactionRecord) Classification {
	if card := cardMerchant(rec); card != nil && card.ID != "" {
		return MerchantCharge{Merchant: MerchantInput{
			ExternalID:   card.ID,
			Name:         card.Name,
			CategoryCode: card.CategoryCode,
			City:         card.City,
			Country:      card.Country,
		}}
	}

	if s := rec.SenderInfo; s != nil {
		return SenderCredit{Sender: SenderInput{
			Name:         s.AddressLine1,
			City:         s.AddressLine2,
			AddressLine3: s.AddressLine3,
			Country:      s.CountryCode,
		}}
	}

	switch rec.TransactionType {
	case domain.TypeMobilePayPurchase, domain.TypeMobilePayPeer:
		name := MerchantNameFromText(rec.TransactionText)
		if name == "" {
			return Unrecognized{TransactionType: rec.TransactionType, Reason: "no merchant name in transaction text"}
		}
		return HeuristicMerchant{Merchant: MerchantInput{Name: name}}

	case domain.TypeCardPurchase:
		name := strings.TrimSpace(rec.TransactionText)
		if name == "" {
			return Unrecognized{TransactionType: rec.TransactionType, Reason: "empty transaction text"}
		}
		in := MerchantInput{Name: name}
		if card := cardMerchant(rec); card != nil {
			in.ExternalID = card.ID
			in.CategoryCode = card.CategoryCode
			in.City = card.City
			in.Country = card.Country
		}
		return HeuristicMerchant{Merchant: in}
	}

	return Unrecognized{TransactionType: rec.TransactionType, Reason: "no card merchant, sender or known type"}
}

func cardMerchant(rec domain.RawTransactionRecord) *domain.CardMerchant {
	if rec.CardDetails == nil {
		return nil
	}
	return rec.CardDetails.Merchant
}
