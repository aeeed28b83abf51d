package followup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/categorizer"
	"github.com/dvloznov/finance-dashboard/internal/infra/sqlite/sqlitetest"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	published []*jobs.BatchJob
	err       error
}

func (m *mockPublisher) Publish(ctx context.Context, job *jobs.BatchJob) error {
	if m.err != nil {
		return m.err
	}
	job.JobID = string(job.Type) + "-1"
	m.published = append(m.published, job)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type mockExporter struct {
	ExportFunc func(ctx context.Context, views []*storage.TransactionView) (int, error)
}

func (m *mockExporter) ExportTransactions(ctx context.Context, views []*storage.TransactionView) (int, error) {
	return m.ExportFunc(ctx, views)
}

type mockCategorizer struct {
	calls int
}

func (m *mockCategorizer) CategorizeTransactions(ctx context.Context, views []*storage.TransactionView) (categorizer.Result, error) {
	m.calls++
	return categorizer.Result{Requested: len(views)}, nil
}

func TestRunner_Schedule(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		exporter    Exporter
		categorizer Categorizer
		keys        []string
		wantTypes   []jobs.JobType
	}{
		{name: "nothing configured", keys: []string{"A"}},
		{
			name:      "export only",
			exporter:  &mockExporter{},
			keys:      []string{"A"},
			wantTypes: []jobs.JobType{jobs.JobTypeExportTransactions},
		},
		{
			name:        "both",
			exporter:    &mockExporter{},
			categorizer: &mockCategorizer{},
			keys:        []string{"A", "B"},
			wantTypes:   []jobs.JobType{jobs.JobTypeExportTransactions, jobs.JobTypeCategorizeTransactions},
		},
		{
			name:        "no keys",
			exporter:    &mockExporter{},
			categorizer: &mockCategorizer{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			r := NewRunner(nil, pub, tt.exporter, tt.categorizer)

			ids := r.Schedule(ctx, "upload-1", tt.keys)
			require.Len(t, ids, len(tt.wantTypes))
			require.Len(t, pub.published, len(tt.wantTypes))
			for i, job := range pub.published {
				require.Equal(t, tt.wantTypes[i], job.Type)
				require.Equal(t, "upload-1", job.UploadID)
				require.Equal(t, tt.keys, job.TransactionKeys)
			}
		})
	}
}

func TestRunner_SchedulePublishFailure(t *testing.T) {
	pub := &mockPublisher{err: errors.New("queue is closed")}
	r := NewRunner(nil, pub, &mockExporter{}, nil)
	require.Empty(t, r.Schedule(context.Background(), "u", []string{"A"}))
}

func TestRunner_Handle(t *testing.T) {
	ctx := context.Background()
	store := sqlitetest.NewStore(t, false)
	_, err := store.InsertTransaction(ctx, &storage.TransactionRow{
		TransactionKey: "A",
		CreatedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Amount:         decimal.NewFromInt(-1),
		CurrencyCode:   "DKK",
		Agent:          "RECEIVER",
		IngestedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)

	var exported []string
	exporter := &mockExporter{ExportFunc: func(ctx context.Context, views []*storage.TransactionView) (int, error) {
		for _, v := range views {
			exported = append(exported, v.TransactionKey)
		}
		return len(views), nil
	}}
	cat := &mockCategorizer{}
	r := NewRunner(store, &mockPublisher{}, exporter, cat)

	require.NoError(t, r.Handle(ctx, &jobs.BatchJob{Type: jobs.JobTypeExportTransactions, TransactionKeys: []string{"A", "missing"}}))
	require.Equal(t, []string{"A"}, exported)

	require.NoError(t, r.Handle(ctx, &jobs.BatchJob{Type: jobs.JobTypeCategorizeTransactions, TransactionKeys: []string{"A"}}))
	require.Equal(t, 1, cat.calls)

	require.Error(t, r.Handle(ctx, &jobs.BatchJob{Type: "unknown", TransactionKeys: []string{"A"}}))

	// Unknown keys are not an error.
	require.NoError(t, r.Handle(ctx, &jobs.BatchJob{Type: jobs.JobTypeExportTransactions, TransactionKeys: []string{"missing"}}))

	exporter.ExportFunc = func(ctx context.Context, views []*storage.TransactionView) (int, error) {
		return 0, errors.New("warehouse unavailable")
	}
	require.Error(t, r.Handle(ctx, &jobs.BatchJob{Type: jobs.JobTypeExportTransactions, TransactionKeys: []string{"A"}}))
}
