package categorizer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/categorizer"
	"github.com/dvloznov/finance-dashboard/internal/infra/sqlite"
	"github.com/dvloznov/finance-dashboard/internal/infra/sqlite/sqlitetest"
	"github.com/dvloznov/finance-dashboard/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// mockSuggester returns canned model answers.
type mockSuggester struct {
	SuggestFunc func(ctx context.Context, prompt string) (string, error)
	prompts     []string
}

func (m *mockSuggester) Suggest(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.SuggestFunc != nil {
		return m.SuggestFunc(ctx, prompt)
	}
	return "[]", nil
}

func seedTransactions(t *testing.T, store *sqlite.Store, keys ...string) []*storage.TransactionView {
	t.Helper()
	ctx := context.Background()
	for _, key := range keys {
		_, err := store.InsertTransaction(ctx, &storage.TransactionRow{
			TransactionKey:  key,
			CreatedAt:       time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			Amount:          decimal.NewFromInt(-30),
			CurrencyCode:    "DKK",
			Agent:           "RECEIVER",
			TransactionType: "btlq",
			TransactionText: "Text " + key,
			IngestedAt:      time.Now().UTC(),
		})
		require.NoError(t, err)
	}
	views, err := store.ListTransactionsByKeys(ctx, keys)
	require.NoError(t, err)
	return views
}

func TestCategorizeTransactions(t *testing.T) {
	ctx := context.Background()
	store := sqlitetest.NewStore(t, true)
	views := seedTransactions(t, store, "T1", "T2", "T3", "T4")

	suggester := &mockSuggester{
		SuggestFunc: func(ctx context.Context, prompt string) (string, error) {
			return "```json\n[" +
				`{"key":"T1","category":"food","subcategory":" groceries "},` +
				`{"key":"T2","category":"Food","subcategory":"Fuel"},` +
				`{"key":"T3","category":"Nonsense","subcategory":"Groceries"},` +
				`{"key":"ZZ","category":"Food","subcategory":"Groceries"},` +
				`{"key":"T1","category":"Transport","subcategory":"Fuel"}` +
				"]\n```", nil
		},
	}

	result, err := categorizer.NewService(store, suggester).CategorizeTransactions(ctx, views)
	require.NoError(t, err)
	require.Equal(t, 4, result.Requested)
	require.Equal(t, 1, result.Assigned)
	require.Equal(t, 4, result.Rejected)

	require.Len(t, suggester.prompts, 1)
	require.Contains(t, suggester.prompts[0], "Groceries")
	require.Contains(t, suggester.prompts[0], `"key": "T4"`)

	got, err := store.ListTransactionsByKeys(ctx, []string{"T1", "T2"})
	require.NoError(t, err)
	byKey := map[string]*storage.TransactionView{}
	for _, v := range got {
		byKey[v.TransactionKey] = v
	}
	require.NotNil(t, byKey["T1"].Subcategory)
	require.Equal(t, "Groceries", byKey["T1"].Subcategory.Name)
	require.Equal(t, "Food", byKey["T1"].Category.Name)
	require.Nil(t, byKey["T2"].Subcategory)
}

func TestCategorizeTransactions_SkipsCategorized(t *testing.T) {
	ctx := context.Background()
	store := sqlitetest.NewStore(t, true)
	views := seedTransactions(t, store, "T1")
	views[0].Category = &storage.CategoryRow{ID: 1, Name: "Food"}

	suggester := &mockSuggester{}
	result, err := categorizer.NewService(store, suggester).CategorizeTransactions(ctx, views)
	require.NoError(t, err)
	require.Equal(t, 0, result.Requested)
	require.Empty(t, suggester.prompts)
}

func TestCategorizeTransactions_NeverOverwrites(t *testing.T) {
	ctx := context.Background()
	store := sqlitetest.NewStore(t, true)
	views := seedTransactions(t, store, "T1")

	// Categorized manually after the job was queued.
	cats, err := store.ListCategories(ctx)
	require.NoError(t, err)
	require.NoError(t, store.SetTransactionCategory(ctx, "T1", &cats[0].ID, nil))

	suggester := &mockSuggester{
		SuggestFunc: func(ctx context.Context, prompt string) (string, error) {
			return `[{"key":"T1","category":"Food","subcategory":"Groceries"}]`, nil
		},
	}
	result, err := categorizer.NewService(store, suggester).CategorizeTransactions(ctx, views)
	require.NoError(t, err)
	require.Equal(t, 0, result.Assigned)

	row, err := store.FindTransactionByKey(ctx, "T1")
	require.NoError(t, err)
	require.Nil(t, row.SubcategoryID)
}

func TestCategorizeTransactions_ModelErrors(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		err     error
		wantMsg string
	}{
		{name: "suggester fails", err: errors.New("quota exceeded"), wantMsg: "quota exceeded"},
		{name: "not json", answer: "I cannot help with that", wantMsg: "unmarshal JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := sqlitetest.NewStore(t, true)
			views := seedTransactions(t, store, "T1")
			suggester := &mockSuggester{
				SuggestFunc: func(ctx context.Context, prompt string) (string, error) {
					return tt.answer, tt.err
				},
			}

			_, err := categorizer.NewService(store, suggester).CategorizeTransactions(context.Background(), views)
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tt.wantMsg), err.Error())
		})
	}
}
