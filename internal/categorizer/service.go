package categorizer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/storage"
)

// Suggestion is one element of the model's answer.
type Suggestion struct {
	Key         string `json:"key"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

// Result counts what a categorization run did.
type Result struct {
	Requested int
	Assigned  int
	Rejected  int
}

// Service assigns model-suggested subcategories to uncategorized transactions.
type Service struct {
	repo      storage.Repository
	suggester Suggester
}

// NewService creates a Service.
func NewService(repo storage.Repository, suggester Suggester) *Service {
	return &Service{repo: repo, suggester: suggester}
}

// parseSuggestions decodes the model's answer.
func parseSuggestions(raw string) ([]Suggestion, error) {
	var out []Suggestion
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &out); err != nil {
		return nil, fmt.Errorf("parseSuggestions: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	return out, nil
}

// CategorizeTransactions asks the model about the transactions that have
// neither category nor subcategory. Suggestions outside the taxonomy or for
// keys that were not asked about are logged and ignored. A transaction that
// was categorized in the meantime is never overwritten.
func (s *Service) CategorizeTransactions(ctx context.Context, views []*storage.TransactionView) (Result, error) {
	log := logger.FromContext(ctx)

	pending := make([]*storage.TransactionView, 0, len(views))
	asked := make(map[string]bool, len(views))
	for _, v := range views {
		if v.Category == nil && v.Subcategory == nil {
			pending = append(pending, v)
			asked[v.TransactionKey] = true
		}
	}

	result := Result{Requested: len(pending)}
	if len(pending) == 0 {
		return result, nil
	}

	validator, err := NewCategoryValidator(ctx, s.repo)
	if err != nil {
		return result, fmt.Errorf("CategorizeTransactions: %w", err)
	}

	prompt, err := validator.BuildPrompt(pending)
	if err != nil {
		return result, fmt.Errorf("CategorizeTransactions: %w", err)
	}

	raw, err := s.suggester.Suggest(ctx, prompt)
	if err != nil {
		return result, fmt.Errorf("CategorizeTransactions: %w", err)
	}

	suggestions, err := parseSuggestions(raw)
	if err != nil {
		return result, fmt.Errorf("CategorizeTransactions: %w", err)
	}

	for _, sg := range suggestions {
		if !asked[sg.Key] {
			log.Warn().Str("transaction_key", sg.Key).Msg("Ignoring suggestion for unknown transaction")
			result.Rejected++
			continue
		}
		// Only the first suggestion per key counts.
		delete(asked, sg.Key)

		subID, err := validator.Resolve(sg.Category, sg.Subcategory)
		if err != nil {
			log.Warn().Err(err).Str("transaction_key", sg.Key).Msg("Rejected category suggestion")
			result.Rejected++
			continue
		}

		assigned, err := s.repo.AssignSubcategoryIfUncategorized(ctx, sg.Key, subID)
		if err != nil {
			return result, fmt.Errorf("CategorizeTransactions: %s: %w", sg.Key, err)
		}
		if assigned {
			result.Assigned++
		}
	}

	log.Info().
		Int("requested", result.Requested).
		Int("assigned", result.Assigned).
		Int("rejected", result.Rejected).
		Msg("Categorization finished")

	return result, nil
}
