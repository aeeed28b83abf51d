package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// TableRef names the export table.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

// FullName returns the backtick-quoted project.dataset.table identifier.
func (r TableRef) FullName() string {
	return "`" + r.Project + "." + r.Dataset + "." + r.Table + "`"
}

// EnsureTableWithClient creates the export table, partitioned by
// transaction_date, when it does not exist yet.
func EnsureTableWithClient(ctx context.Context, client *bigquery.Client, ref TableRef) error {
	table := client.DatasetInProject(ref.Project, ref.Dataset).Table(ref.Table)

	_, err := table.Metadata(ctx)
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return fmt.Errorf("EnsureTable: reading metadata: %w", err)
	}

	schema, err := bigquery.InferSchema(ExportRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: inferring schema: %w", err)
	}

	if err := table.Create(ctx, &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Field: "transaction_date",
		},
	}); err != nil {
		return fmt.Errorf("EnsureTable: creating table: %w", err)
	}
	return nil
}

// InsertExportRowsWithClient streams rows into the export table. Each row's
// insert id is its transaction key so retried jobs do not duplicate rows.
func InsertExportRowsWithClient(ctx context.Context, client *bigquery.Client, ref TableRef, rows []*ExportRow) error {
	if len(rows) == 0 {
		return nil
	}

	schema, err := bigquery.InferSchema(ExportRow{})
	if err != nil {
		return fmt.Errorf("InsertExportRows: inferring schema: %w", err)
	}

	savers := make([]*bigquery.StructSaver, len(rows))
	for i, row := range rows {
		savers[i] = &bigquery.StructSaver{
			Struct:   row,
			Schema:   schema,
			InsertID: row.TransactionKey,
		}
	}

	inserter := client.DatasetInProject(ref.Project, ref.Dataset).Table(ref.Table).Inserter()
	if err := inserter.Put(ctx, savers); err != nil {
		return fmt.Errorf("InsertExportRows: inserting rows: %w", err)
	}
	return nil
}

// ListExportedKeysWithClient returns which of keys are already present in
// the export table.
func ListExportedKeysWithClient(ctx context.Context, client *bigquery.Client, ref TableRef, keys []string) (map[string]bool, error) {
	exported := make(map[string]bool)
	if len(keys) == 0 {
		return exported, nil
	}

	q := client.Query(`
		SELECT DISTINCT transaction_key
		FROM ` + ref.FullName() + `
		WHERE transaction_key IN UNNEST(@keys)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "keys", Value: keys},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListExportedKeys: query read: %w", err)
	}

	for {
		var r struct {
			TransactionKey string `bigquery:"transaction_key"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListExportedKeys: iterating rows: %w", err)
		}
		exported[r.TransactionKey] = true
	}

	return exported, nil
}
