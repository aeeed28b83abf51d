package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/pipeline"
	"github.com/dvloznov/finance-dashboard/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	dateFormat = "2006-01-02"

	defaultUncategorizedLimit = 50
	maxUncategorizedLimit     = 500

	// multipartMemory is how much of a multipart body is kept in memory.
	multipartMemory = 32 << 20
)

// Response messages of the upload endpoint.
const (
	msgNoFile          = "No file uploaded"
	msgCSVNotSupported = "CSV files are not supported. Please upload a JSON file."
	msgInvalidJSON     = "Invalid JSON format"
	msgTimeout         = "Timed out while saving transactions"
	msgSaveFailed      = "Error saving transactions to the database"
	msgUploaded        = "Transactions uploaded successfully"
)

// Ingestor persists a decoded batch.
type Ingestor interface {
	Ingest(ctx context.Context, records []domain.RawTransactionRecord) (pipeline.Summary, error)
}

// Archiver keeps a copy of the raw upload.
type Archiver interface {
	Archive(ctx context.Context, filename string, data []byte) (string, error)
}

// FollowupScheduler queues background work for newly inserted transactions.
type FollowupScheduler interface {
	Schedule(ctx context.Context, uploadID string, keys []string) []string
}

// TransactionsOptions configure the transactions handler.
type TransactionsOptions struct {
	// IngestTimeout bounds the database work of one upload.
	IngestTimeout time.Duration
	// MaxUploadBytes limits the request body; 0 means no limit.
	MaxUploadBytes int64
	// Archiver and Followups are optional.
	Archiver  Archiver
	Followups FollowupScheduler
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	ingestor Ingestor
	repo     storage.Repository
	opts     TransactionsOptions
	log      zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(ingestor Ingestor, repo storage.Repository, opts TransactionsOptions, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		ingestor: ingestor,
		repo:     repo,
		opts:     opts,
		log:      log,
	}
}

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	Message             string   `json:"message"`
	TotalTransactions   int      `json:"totalTransactions"`
	NewTransactions     int      `json:"newTransactions"`
	SkippedTransactions int      `json:"skippedTransactions"`
	UploadID            string   `json:"uploadId,omitempty"`
	ArchiveURI          string   `json:"archiveUri,omitempty"`
	JobIDs              []string `json:"jobIds,omitempty"`
}

// Upload handles POST /api/transactions/upload
func (h *TransactionsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	uploadID := uuid.New().String()
	log := logger.FromContext(r.Context()).With().Str("upload_id", uploadID).Logger()
	ctx := logger.WithContext(r.Context(), log)

	if h.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer file.Close()

	if strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		middleware.WriteError(w, http.StatusBadRequest, msgCSVNotSupported)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded file")
		middleware.WriteError(w, http.StatusBadRequest, msgNoFile)
		return
	}

	records, err := pipeline.DecodeUpload(bytes.NewReader(data))
	if err != nil {
		var recErr *pipeline.RecordError
		switch {
		case errors.As(err, &recErr):
			log.Warn().Err(err).Int("index", recErr.Index).Msg("Rejected upload with invalid record")
			middleware.WriteError(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid transaction record at index %d: %v", recErr.Index, recErr.Err))
		case errors.Is(err, pipeline.ErrInvalidFormat):
			log.Warn().Err(err).Msg("Rejected upload with invalid format")
			middleware.WriteError(w, http.StatusBadRequest, msgInvalidJSON)
		default:
			log.Error().Err(err).Msg("Failed to decode upload")
			middleware.WriteError(w, http.StatusBadRequest, msgInvalidJSON)
		}
		return
	}

	resp := UploadResponse{Message: msgUploaded, UploadID: uploadID}

	if h.opts.Archiver != nil {
		uri, err := h.opts.Archiver.Archive(ctx, header.Filename, data)
		if err != nil {
			log.Error().Err(err).Msg("Failed to archive upload")
		} else {
			resp.ArchiveURI = uri
		}
	}

	ingestCtx := ctx
	if h.opts.IngestTimeout > 0 {
		var cancel context.CancelFunc
		ingestCtx, cancel = context.WithTimeout(ctx, h.opts.IngestTimeout)
		defer cancel()
	}

	summary, err := h.ingestor.Ingest(ingestCtx, records)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error().Err(err).Dur("timeout", h.opts.IngestTimeout).Msg("Ingestion timed out")
			middleware.WriteError(w, http.StatusGatewayTimeout, msgTimeout)
			return
		}
		log.Error().Err(err).Msg("Failed to ingest transactions")
		middleware.WriteError(w, http.StatusInternalServerError, msgSaveFailed)
		return
	}

	resp.TotalTransactions = summary.TotalTransactions
	resp.NewTransactions = summary.NewTransactions
	resp.SkippedTransactions = summary.SkippedTransactions

	if h.opts.Followups != nil && len(summary.NewTransactionKeys) > 0 {
		resp.JobIDs = h.opts.Followups.Schedule(ctx, uploadID, summary.NewTransactionKeys)
	}

	log.Info().
		Str("filename", header.Filename).
		Int("total", resp.TotalTransactions).
		Int("new", resp.NewTransactions).
		Int("skipped", resp.SkippedTransactions).
		Msg("Upload processed")

	middleware.WriteJSON(w, http.StatusCreated, resp)
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	startDateStr := query.Get("start_date")
	endDateStr := query.Get("end_date")

	var startDate, endDate time.Time
	var err error

	if startDateStr != "" {
		startDate, err = time.Parse(dateFormat, startDateStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
	} else {
		startDate = time.Now().UTC().AddDate(-1, 0, 0) // 1 year ago
	}

	if endDateStr != "" {
		endDate, err = time.Parse(dateFormat, endDateStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
		// Include the whole end day.
		endDate = endDate.Add(24*time.Hour - time.Nanosecond)
	} else {
		endDate = time.Now().UTC()
	}

	if endDate.Before(startDate) {
		middleware.WriteError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	transactions, err := h.repo.QueryTransactionsByDateRange(ctx, startDate, endDate)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []*storage.TransactionView{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// ListUncategorized handles GET /api/transactions/uncategorized
func (h *TransactionsHandler) ListUncategorized(w http.ResponseWriter, r *http.Request) {
	limit := defaultUncategorizedLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxUncategorizedLimit)
	}

	transactions, err := h.repo.ListUncategorizedTransactions(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list uncategorized transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	if transactions == nil {
		transactions = []*storage.TransactionView{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// SetCategoryRequest is the body of PUT /api/transactions/{key}/category.
type SetCategoryRequest struct {
	CategoryID    *int64 `json:"category_id"`
	SubcategoryID *int64 `json:"subcategory_id"`
}

// SetCategory handles PUT /api/transactions/{key}/category
func (h *TransactionsHandler) SetCategory(w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()
	log := h.log.With().Str("transaction_key", key).Logger()

	var req SetCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CategoryID == nil && req.SubcategoryID == nil {
		middleware.WriteError(w, http.StatusBadRequest, "category_id or subcategory_id is required")
		return
	}

	existing, err := h.repo.FindTransactionByKey(ctx, key)
	if err != nil {
		log.Error().Err(err).Msg("Failed to find transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}
	if existing == nil {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	if msg, err := h.validateCategory(ctx, req); err != nil {
		log.Error().Err(err).Msg("Failed to validate category")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	} else if msg != "" {
		middleware.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.repo.SetTransactionCategory(ctx, key, req.CategoryID, req.SubcategoryID); err != nil {
		log.Error().Err(err).Msg("Failed to set category")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}

	views, err := h.repo.ListTransactionsByKeys(ctx, []string{key})
	if err != nil || len(views) == 0 {
		log.Error().Err(err).Msg("Failed to reload transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}

	log.Info().Msg("Transaction categorized manually")
	middleware.WriteJSON(w, http.StatusOK, views[0])
}

// validateCategory returns a client-facing message when the ids are not
// consistent with the taxonomy.
func (h *TransactionsHandler) validateCategory(ctx context.Context, req SetCategoryRequest) (string, error) {
	if req.CategoryID != nil {
		cats, err := h.repo.ListCategories(ctx)
		if err != nil {
			return "", err
		}
		found := false
		for _, c := range cats {
			if c.ID == *req.CategoryID {
				found = true
				break
			}
		}
		if !found {
			return "Unknown category_id", nil
		}
	}

	if req.SubcategoryID != nil {
		sub, err := h.repo.GetSubcategory(ctx, *req.SubcategoryID)
		if err != nil {
			return "", err
		}
		if sub == nil {
			return "Unknown subcategory_id", nil
		}
		if req.CategoryID != nil && (sub.CategoryID == nil || *sub.CategoryID != *req.CategoryID) {
			return "Subcategory does not belong to category", nil
		}
	}

	return "", nil
}
