package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-dashboard/internal/storage"
)

// Exporter mirrors ingested transactions into a BigQuery table. It holds a
// shared client for its lifetime.
type Exporter struct {
	client *bigquery.Client
	ref    TableRef
	now    func() time.Time
}

// NewExporter creates an Exporter with its own BigQuery client.
func NewExporter(ctx context.Context, ref TableRef) (*Exporter, error) {
	client, err := bigquery.NewClient(ctx, ref.Project)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: creating client: %w", err)
	}
	return &Exporter{client: client, ref: ref, now: time.Now}, nil
}

// Close closes the BigQuery client connection.
func (e *Exporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// EnsureTable delegates to EnsureTableWithClient with the shared client.
func (e *Exporter) EnsureTable(ctx context.Context) error {
	return EnsureTableWithClient(ctx, e.client, e.ref)
}

// ExportTransactions writes the transactions that are not in the table yet
// and returns how many rows were sent.
func (e *Exporter) ExportTransactions(ctx context.Context, views []*storage.TransactionView) (int, error) {
	keys := make([]string, len(views))
	for i, v := range views {
		keys[i] = v.TransactionKey
	}

	exported, err := ListExportedKeysWithClient(ctx, e.client, e.ref, keys)
	if err != nil {
		return 0, fmt.Errorf("ExportTransactions: %w", err)
	}

	rows := PendingExportRows(views, exported, e.now())
	if err := InsertExportRowsWithClient(ctx, e.client, e.ref, rows); err != nil {
		return 0, fmt.Errorf("ExportTransactions: %w", err)
	}
	return len(rows), nil
}

// PendingExportRows converts the views whose keys are not in exported.
func PendingExportRows(views []*storage.TransactionView, exported map[string]bool, now time.Time) []*ExportRow {
	rows := make([]*ExportRow, 0, len(views))
	for _, v := range views {
		if exported[v.TransactionKey] {
			continue
		}
		rows = append(rows, NewExportRow(v, now))
	}
	return rows
}
