package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/app"
	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/gcsuploader"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const dateFormat = "2006-01-02"

// cliState is filled by the root command before any subcommand runs.
type cliState struct {
	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	st := &cliState{}

	root := &cobra.Command{
		Use:          "finance-cli",
		Short:        "Operate the finance dashboard datastore from the command line.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				cfg.Log.Level = lvl
			}
			st.cfg = cfg
			st.log = logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}
	root.PersistentFlags().String("log-level", "", "Override log.level")

	root.AddCommand(
		newIngestCmd(st),
		newUploadCmd(st),
		newExportCmd(st),
		newCategorizeCmd(st),
		newInspectCmd(st),
	)
	return root
}

// openApp builds the shared services and a logger-carrying context.
func (st *cliState) openApp(ctx context.Context) (*app.App, context.Context, error) {
	svc, err := app.New(ctx, st.cfg, st.log)
	if err != nil {
		return nil, nil, err
	}
	return svc, logger.WithContext(ctx, st.log), nil
}

func newIngestCmd(st *cliState) *cobra.Command {
	var file, gcsURI string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a transaction export from a local file or GCS",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (gcsURI == "") {
				return errors.New("exactly one of --file or --gcs-uri is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			svc, ctx, err := st.openApp(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			var data []byte
			if file != "" {
				data, err = os.ReadFile(file)
			} else {
				data, err = fetchGCS(ctx, svc, gcsURI)
			}
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			records, err := pipeline.DecodeUpload(bytes.NewReader(data))
			if err != nil {
				return err
			}

			summary, err := svc.Ingestor.Ingest(ctx, records)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total:        %d\n", summary.TotalTransactions)
			fmt.Fprintf(out, "New:          %d\n", summary.NewTransactions)
			fmt.Fprintf(out, "Skipped:      %d\n", summary.SkippedTransactions)
			fmt.Fprintf(out, "Reconciled:   %d\n", summary.Reconciled)
			fmt.Fprintf(out, "Unrecognized: %d\n", summary.Unrecognized)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to a JSON transaction export")
	cmd.Flags().StringVar(&gcsURI, "gcs-uri", "", "gs:// URI of a JSON transaction export")
	return cmd
}

func fetchGCS(ctx context.Context, svc *app.App, uri string) ([]byte, error) {
	if svc.Storage != nil {
		return svc.Storage.FetchFromGCS(ctx, uri)
	}
	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		return nil, err
	}
	defer storage.Close()
	return storage.FetchFromGCS(ctx, uri)
}

func newUploadCmd(st *cliState) *cobra.Command {
	var file, bucket, object string

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a transaction export to GCS",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			if bucket == "" {
				bucket = st.cfg.GCS.Bucket
			}
			if bucket == "" {
				return errors.New("--bucket is required when gcs.bucket is not configured")
			}

			ctx := logger.WithContext(cmd.Context(), st.log)
			storage, err := gcsuploader.NewGCSStorageService(ctx)
			if err != nil {
				return err
			}
			defer storage.Close()

			if object == "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("reading %s: %w", file, err)
				}
				uri, err := gcsuploader.NewArchiver(storage, bucket).Archive(ctx, filepath.Base(file), data)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), uri)
				return nil
			}

			st.log.Info().Str("bucket", bucket).Str("object", object).Str("file", file).Msg("Uploading file to GCS")
			if err := storage.UploadFile(ctx, bucket, object, file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "gs://%s/%s\n", bucket, object)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to the local file")
	cmd.Flags().StringVar(&bucket, "bucket", "", "GCS bucket (defaults to gcs.bucket)")
	cmd.Flags().StringVar(&object, "object", "", "Object name (defaults to the dated archive layout)")
	return cmd
}

// parseRange parses inclusive YYYY-MM-DD bounds; empty values default to
// the last year.
func parseRange(start, end string) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	from := to.AddDate(-1, 0, 0)
	var err error
	if start != "" {
		if from, err = time.Parse(dateFormat, start); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start-date %q", start)
		}
	}
	if end != "" {
		if to, err = time.Parse(dateFormat, end); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end-date %q", end)
		}
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("--end-date is before --start-date")
	}
	return from, to, nil
}

func newExportCmd(st *cliState) *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export transactions in a date range to BigQuery",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := parseRange(start, end)
			if err != nil {
				return err
			}
			if !st.cfg.ExportEnabled() {
				return errors.New("bigquery.project is not configured")
			}

			svc, ctx, err := st.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			views, err := svc.Store.QueryTransactionsByDateRange(ctx, from, to)
			if err != nil {
				return err
			}
			n, err := svc.Exporter.ExportTransactions(ctx, views)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d of %d transactions\n", n, len(views))
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start-date", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end-date", "", "Last day (YYYY-MM-DD)")
	return cmd
}

func newCategorizeCmd(st *cliState) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Suggest subcategories for uncategorized transactions with Gemini",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !st.cfg.AI.Enabled {
				return errors.New("ai.enabled is false")
			}
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}

			svc, ctx, err := st.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			views, err := svc.Store.ListUncategorizedTransactions(ctx, limit)
			if err != nil {
				return err
			}
			res, err := svc.Categorizer.CategorizeTransactions(ctx, views)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requested %d, assigned %d, rejected %d\n", res.Requested, res.Assigned, res.Rejected)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum transactions to send to the model")
	return cmd
}

func newInspectCmd(st *cliState) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show a stored transaction with its merchant, sender and category",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return errors.New("--key is required")
			}

			svc, ctx, err := st.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			views, err := svc.Store.ListTransactionsByKeys(ctx, []string{key})
			if err != nil {
				return err
			}
			if len(views) == 0 {
				return fmt.Errorf("transaction %q not found", key)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(views[0])
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Transaction key (combinedKey)")
	return cmd
}
