package categorizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/storage"
)

// promptTransaction is the per-transaction input shown to the model.
type promptTransaction struct {
	Key          string `json:"key"`
	Text         string `json:"text"`
	Merchant     string `json:"merchant,omitempty"`
	CategoryCode string `json:"merchant_category_code,omitempty"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
}

// buildCategoriesPrompt lists the allowed categories and subcategories.
func (v *CategoryValidator) buildCategoriesPrompt() string {
	var b strings.Builder
	b.WriteString("Use ONLY the following Categories and Subcategories:\n\n")

	for _, cat := range v.order {
		b.WriteString(cat + ":\n")
		for _, s := range v.names[cat] {
			b.WriteString("  - " + s + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("CATEGORY ASSIGNMENT RULES:\n")
	b.WriteString("1. Category must be EXACTLY one of the category names shown above.\n")
	b.WriteString("2. Subcategory must be one of the subcategories listed under that category.\n")
	b.WriteString("3. If you are unsure about a transaction, leave it out of the output.\n")

	return b.String()
}

// BuildPrompt assembles the full instruction for a batch of transactions.
func (v *CategoryValidator) BuildPrompt(views []*storage.TransactionView) (string, error) {
	items := make([]promptTransaction, 0, len(views))
	for _, tv := range views {
		item := promptTransaction{
			Key:      tv.TransactionKey,
			Text:     tv.TransactionText,
			Amount:   tv.Amount.String(),
			Currency: tv.CurrencyCode,
		}
		if m := tv.Merchant; m != nil {
			item.Merchant = m.Name
			item.CategoryCode = m.CategoryCode
		}
		items = append(items, item)
	}

	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("BuildPrompt: encoding transactions: %w", err)
	}

	basePrompt :=
		"You categorize personal bank transactions.\n\n" +
			"Task:\n" +
			"- For each transaction below choose the most appropriate category and subcategory.\n" +
			"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
			"- Output a JSON array of objects with fields \"key\", \"category\" and \"subcategory\".\n\n"

	rulesPrompt :=
		"Return ONLY valid raw JSON.\n" +
			"Do NOT wrap the response in code fences.\n" +
			"Output must begin with \"[\" and end with \"]\".\n"

	return basePrompt + v.buildCategoriesPrompt() + "\nTransactions:\n" + string(payload) + "\n\n" + rulesPrompt, nil
}
