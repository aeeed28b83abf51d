package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/storage"
)

// Summary reports the outcome of one ingested batch.
type Summary struct {
	TotalTransactions   int `json:"totalTransactions"`
	NewTransactions     int `json:"newTransactions"`
	SkippedTransactions int `json:"skippedTransactions"`
	Reconciled          int `json:"reconciled"`
	Unrecognized        int `json:"unrecognized"`

	// NewTransactionKeys lists the keys inserted by this batch in input order.
	NewTransactionKeys []string `json:"-"`
}

// Options tune the ingestion behavior.
type Options struct {
	ReconcileMPPB bool
}

// IngestStep represents a single step of batch ingestion.
type IngestStep interface {
	Execute(ctx context.Context, state *IngestState) error
}

// IngestState holds the shared state across the steps of one batch.
type IngestState struct {
	Repo    storage.Repository
	Records []domain.RawTransactionRecord

	// pending are the records that passed deduplication, in input order.
	pending []pendingRecord
	// staged are the rows ready to insert.
	staged []*storage.TransactionRow

	Summary Summary
}

type pendingRecord struct {
	rec  domain.RawTransactionRecord
	norm Normalized
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []IngestStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...IngestStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *IngestState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NormalizeStep validates each record and drops in-batch duplicates, keeping
// the first occurrence of each key.
type NormalizeStep struct{}

func (s *NormalizeStep) Execute(ctx context.Context, state *IngestState) error {
	log := logger.FromContext(ctx)
	seen := make(map[string]struct{}, len(state.Records))
	for i, rec := range state.Records {
		norm, err := Normalize(rec)
		if err != nil {
			return &RecordError{Index: i, Key: rec.CombinedKey, Err: err}
		}
		if _, dup := seen[norm.TransactionKey]; dup {
			log.Debug().
				Str("transaction_key", norm.TransactionKey).
				Int("index", i).
				Msg("Skipping duplicate key within batch")
			continue
		}
		seen[norm.TransactionKey] = struct{}{}
		state.pending = append(state.pending, pendingRecord{rec: rec, norm: norm})
	}
	return nil
}

// ResolveStep reconciles records that already exist and attributes the new
// ones to a merchant or sender.
type ResolveStep struct {
	Merchants  MerchantResolver
	Senders    SenderResolver
	Categories CategoryMapper
	Reconciler *Reconciler

	// Now stamps ingested_at; defaults to time.Now.
	Now func() time.Time
}

func (s *ResolveStep) Execute(ctx context.Context, state *IngestState) error {
	log := logger.FromContext(ctx)
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	reconciler := s.Reconciler
	if reconciler == nil {
		reconciler = &Reconciler{}
	}

	for _, p := range state.pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		existing, err := state.Repo.FindTransactionByKey(ctx, p.norm.TransactionKey)
		if err != nil {
			return fmt.Errorf("ResolveStep: %w", err)
		}
		if existing != nil {
			updated, err := reconciler.Reconcile(ctx, state.Repo, p.rec, existing)
			if err != nil {
				return fmt.Errorf("ResolveStep: %w", err)
			}
			if updated {
				state.Summary.Reconciled++
			}
			continue
		}

		row, err := s.resolve(ctx, state.Repo, p)
		if err != nil {
			return fmt.Errorf("ResolveStep: %s: %w", p.norm.TransactionKey, err)
		}
		if row == nil {
			state.Summary.Unrecognized++
			continue
		}
		row.IngestedAt = now().UTC()
		state.staged = append(state.staged, row)
	}

	if state.Summary.Unrecognized > 0 {
		log.Warn().Int("count", state.Summary.Unrecognized).Msg("Dropped unrecognized transactions")
	}
	return nil
}

// resolve builds the row for a new record. It returns nil for records that
// cannot be attributed.
func (s *ResolveStep) resolve(ctx context.Context, repo storage.Repository, p pendingRecord) (*storage.TransactionRow, error) {
	row := &storage.TransactionRow{
		TransactionKey:  p.norm.TransactionKey,
		CreatedAt:       p.norm.CreatedAt,
		Amount:          p.norm.Amount,
		CurrencyCode:    p.norm.CurrencyCode,
		TransactionType: p.rec.TransactionType,
		TransactionText: p.rec.TransactionText,
	}

	c := Classify(p.rec)
	switch c := c.(type) {
	case MerchantCharge:
		merchantID, err := s.Merchants.Resolve(ctx, repo, c.Merchant)
		if err != nil {
			return nil, err
		}
		subID, err := s.Categories.Map(ctx, repo, c.Merchant.CategoryCode)
		if err != nil {
			return nil, err
		}
		row.MerchantID = &merchantID
		row.SubcategoryID = subID

	case HeuristicMerchant:
		merchantID, err := s.Merchants.Resolve(ctx, repo, c.Merchant)
		if err != nil {
			return nil, err
		}
		row.MerchantID = &merchantID

	case SenderCredit:
		senderID, err := s.Senders.Resolve(ctx, repo, c.Sender)
		if err != nil {
			return nil, err
		}
		row.SenderID = &senderID

	case Unrecognized:
		log := logger.FromContext(ctx)
		log.Warn().
			Str("transaction_key", p.norm.TransactionKey).
			Str("transaction_type", c.TransactionType).
			Str("reason", c.Reason).
			Msg("Unrecognized transaction")
		return nil, nil
	}

	row.Agent = string(Agent(c))
	return row, nil
}

// InsertStep writes the staged rows. Rows whose key already exists are skipped.
type InsertStep struct{}

func (s *InsertStep) Execute(ctx context.Context, state *IngestState) error {
	for _, row := range state.staged {
		inserted, err := state.Repo.InsertTransaction(ctx, row)
		if err != nil {
			return fmt.Errorf("InsertStep: %s: %w", row.TransactionKey, err)
		}
		if inserted {
			state.Summary.NewTransactions++
			state.Summary.NewTransactionKeys = append(state.Summary.NewTransactionKeys, row.TransactionKey)
		}
	}
	return nil
}

// Ingestor runs the ingestion pipeline over a Store.
type Ingestor struct {
	store storage.Store
	opts  Options
	now   func() time.Time
}

// NewIngestor creates an Ingestor.
func NewIngestor(store storage.Store, opts Options) *Ingestor {
	return &Ingestor{store: store, opts: opts, now: time.Now}
}

// NewBatchPipeline creates the standard normalize, resolve and insert pipeline.
func (in *Ingestor) NewBatchPipeline() *Pipeline {
	return NewPipeline(
		&NormalizeStep{},
		&ResolveStep{
			Reconciler: &Reconciler{ReconcileMPPB: in.opts.ReconcileMPPB},
			Now:        in.now,
		},
		&InsertStep{},
	)
}

// Ingest persists a batch of records in one database transaction. Either
// every new row is committed or none is.
func (in *Ingestor) Ingest(ctx context.Context, records []domain.RawTransactionRecord) (Summary, error) {
	log := logger.FromContext(ctx)

	var summary Summary
	err := in.store.WithTx(ctx, func(repo storage.Repository) error {
		state := &IngestState{Repo: repo, Records: records}
		if err := in.NewBatchPipeline().Execute(ctx, state); err != nil {
			return err
		}
		summary = state.Summary
		return nil
	})
	if err != nil {
		log.Error().Err(err).Int("records", len(records)).Msg("Batch ingestion rolled back")
		return Summary{}, fmt.Errorf("Ingest: %w", err)
	}

	summary.TotalTransactions = len(records)
	summary.SkippedTransactions = summary.TotalTransactions - summary.NewTransactions

	log.Info().
		Int("total", summary.TotalTransactions).
		Int("new", summary.NewTransactions).
		Int("skipped", summary.SkippedTransactions).
		Int("reconciled", summary.Reconciled).
		Int("unrecognized", summary.Unrecognized).
		Msg("Batch ingested")

	return summary, nil
}
