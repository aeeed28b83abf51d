// Package followup schedules and runs the background work that follows a
// successful ingest: warehouse export and model categorization.
package followup

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/categorizer"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/storage"
)

// Exporter mirrors transactions into the analytics warehouse.
type Exporter interface {
	ExportTransactions(ctx context.Context, views []*storage.TransactionView) (int, error)
}

// Categorizer assigns subcategories to uncategorized transactions.
type Categorizer interface {
	CategorizeTransactions(ctx context.Context, views []*storage.TransactionView) (categorizer.Result, error)
}

// Runner publishes follow-up jobs and handles them. A nil Exporter or
// Categorizer disables that job type.
type Runner struct {
	repo        storage.TransactionRepository
	publisher   jobs.Publisher
	exporter    Exporter
	categorizer Categorizer
}

// NewRunner creates a Runner.
func NewRunner(repo storage.TransactionRepository, publisher jobs.Publisher, exporter Exporter, categorizer Categorizer) *Runner {
	return &Runner{
		repo:        repo,
		publisher:   publisher,
		exporter:    exporter,
		categorizer: categorizer,
	}
}

// Enabled reports whether any job type is configured.
func (r *Runner) Enabled() bool {
	return r != nil && r.publisher != nil && (r.exporter != nil || r.categorizer != nil)
}

// Schedule publishes one job per enabled type for the given keys and returns
// the published job ids. Publish failures are logged and do not fail the caller.
func (r *Runner) Schedule(ctx context.Context, uploadID string, keys []string) []string {
	if !r.Enabled() || len(keys) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)

	var types []jobs.JobType
	if r.exporter != nil {
		types = append(types, jobs.JobTypeExportTransactions)
	}
	if r.categorizer != nil {
		types = append(types, jobs.JobTypeCategorizeTransactions)
	}

	var ids []string
	for _, typ := range types {
		job := &jobs.BatchJob{
			Type:            typ,
			UploadID:        uploadID,
			TransactionKeys: append([]string(nil), keys...),
		}
		if err := r.publisher.Publish(ctx, job); err != nil {
			log.Error().Err(err).Str("job_type", string(typ)).Str("upload_id", uploadID).Msg("Failed to publish follow-up job")
			continue
		}
		ids = append(ids, job.JobID)
	}
	return ids
}

// Handle is the jobs.JobHandler for follow-up jobs.
func (r *Runner) Handle(ctx context.Context, job *jobs.BatchJob) error {
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"upload_id": job.UploadID,
		"attempt":   job.RetryCount + 1,
	})

	views, err := r.repo.ListTransactionsByKeys(ctx, job.TransactionKeys)
	if err != nil {
		return fmt.Errorf("Handle: %w", err)
	}
	if len(views) == 0 {
		log.Warn().Int("keys", len(job.TransactionKeys)).Msg("No transactions found for job")
		return nil
	}

	switch job.Type {
	case jobs.JobTypeExportTransactions:
		if r.exporter == nil {
			return fmt.Errorf("Handle: export is not configured")
		}
		n, err := r.exporter.ExportTransactions(ctx, views)
		if err != nil {
			return fmt.Errorf("Handle: %w", err)
		}
		log.Info().Int("exported", n).Msg("Exported transactions")

	case jobs.JobTypeCategorizeTransactions:
		if r.categorizer == nil {
			return fmt.Errorf("Handle: categorization is not configured")
		}
		res, err := r.categorizer.CategorizeTransactions(ctx, views)
		if err != nil {
			return fmt.Errorf("Handle: %w", err)
		}
		log.Info().Int("requested", res.Requested).Int("assigned", res.Assigned).Int("rejected", res.Rejected).Msg("Categorized transactions")

	default:
		return fmt.Errorf("Handle: unknown job type %q", job.Type)
	}

	return nil
}
