package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/api"
	"github.com/dvloznov/finance-dashboard/internal/api/handlers"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/infra/sqlite"
	"github.com/dvloznov/finance-dashboard/internal/infra/sqlite/sqlitetest"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/pipeline"
	"github.com/dvloznov/finance-dashboard/internal/storage"
	"github.com/stretchr/testify/require"
)

const uploadBody = `{"transactionList":[
	{"combinedKey":"C1","originalDate":"2024-03-01","transactionText":"Netto","amount":{"value":"-45.50","currencyCode":"DKK"},"transactionType":"kort",
	 "cardDetails":{"merchant":{"id":"M-1","name":"Netto","categoryCode":"5411","city":"Copenhagen","country":"DK"}}},
	{"combinedKey":"P1","originalDate":"2024-03-04","transactionText":"MobilePay Jens Hansen","amount":"-100","currencyCode":"DKK","transactionType":"mpcp"},
	{"combinedKey":"X1","originalDate":"2024-03-05","transactionText":"Fee","amount":"-1","currencyCode":"DKK","transactionType":"gebyr"}
]}`

// mockIngestor replaces the pipeline for failure paths.
type mockIngestor struct {
	IngestFunc func(ctx context.Context, records []domain.RawTransactionRecord) (pipeline.Summary, error)
}

func (m *mockIngestor) Ingest(ctx context.Context, records []domain.RawTransactionRecord) (pipeline.Summary, error) {
	return m.IngestFunc(ctx, records)
}

type mockScheduler struct {
	uploadID string
	keys     []string
}

func (m *mockScheduler) Schedule(ctx context.Context, uploadID string, keys []string) []string {
	m.uploadID, m.keys = uploadID, keys
	return []string{"job-1"}
}

type mockArchiver struct {
	err   error
	calls int
}

func (m *mockArchiver) Archive(ctx context.Context, filename string, data []byte) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return "gs://bucket/uploads/" + filename, nil
}

type testServer struct {
	handler  http.Handler
	store    *sqlite.Store
	jobStore *inmemory.Store
}

func newTestServer(t *testing.T, ingestor handlers.Ingestor, opts handlers.TransactionsOptions) *testServer {
	t.Helper()
	log := logger.NewWithWriter(io.Discard)
	store := sqlitetest.NewStore(t, true)
	if ingestor == nil {
		ingestor = pipeline.NewIngestor(store, pipeline.Options{})
	}
	jobStore := inmemory.NewStore()

	h := api.NewRouter(api.Handlers{
		Transactions: handlers.NewTransactionsHandler(ingestor, store, opts, log),
		Categories:   handlers.NewCategoriesHandler(store, log),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
		Health:       handlers.NewHealthHandler(store.DB(), log),
	}, log)

	return &testServer{handler: h, store: store, jobStore: jobStore}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, rec, &body)
	return body["error"]
}

func TestUpload_Success(t *testing.T) {
	sched := &mockScheduler{}
	archiver := &mockArchiver{}
	srv := newTestServer(t, nil, handlers.TransactionsOptions{
		IngestTimeout: 10 * time.Second,
		Archiver:      archiver,
		Followups:     sched,
	})

	rec := srv.do(uploadRequest(t, "march.json", uploadBody))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp handlers.UploadResponse
	decodeBody(t, rec, &resp)
	require.Equal(t, "Transactions uploaded successfully", resp.Message)
	require.Equal(t, 3, resp.TotalTransactions)
	require.Equal(t, 2, resp.NewTransactions)
	require.Equal(t, 1, resp.SkippedTransactions)
	require.Equal(t, "gs://bucket/uploads/march.json", resp.ArchiveURI)
	require.Equal(t, []string{"job-1"}, resp.JobIDs)
	require.Equal(t, []string{"C1", "P1"}, sched.keys)
	require.Equal(t, resp.UploadID, sched.uploadID)

	// The same file again inserts nothing and schedules nothing.
	sched.keys = nil
	rec = srv.do(uploadRequest(t, "march.json", uploadBody))
	require.Equal(t, http.StatusCreated, rec.Code)
	decodeBody(t, rec, &resp)
	require.Equal(t, 0, resp.NewTransactions)
	require.Equal(t, 3, resp.SkippedTransactions)
	require.Nil(t, sched.keys)
}

func TestUpload_ArchiveFailureDoesNotBlock(t *testing.T) {
	srv := newTestServer(t, nil, handlers.TransactionsOptions{Archiver: &mockArchiver{err: errors.New("denied")}})

	rec := srv.do(uploadRequest(t, "march.json", uploadBody))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp handlers.UploadResponse
	decodeBody(t, rec, &resp)
	require.Empty(t, resp.ArchiveURI)
	require.Equal(t, 2, resp.NewTransactions)
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		wantCode int
		wantMsg  string
	}{
		{
			name:     "no file field",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "", "") },
			wantCode: http.StatusBadRequest,
			wantMsg:  "No file uploaded",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/api/transactions/upload", strings.NewReader(uploadBody))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			wantCode: http.StatusBadRequest,
			wantMsg:  "No file uploaded",
		},
		{
			name:     "csv",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "export.CSV", "a,b\n1,2") },
			wantCode: http.StatusBadRequest,
			wantMsg:  "CSV files are not supported. Please upload a JSON file.",
		},
		{
			name:     "invalid json",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "x.json", "{not json") },
			wantCode: http.StatusBadRequest,
			wantMsg:  "Invalid JSON format",
		},
		{
			name:     "missing transaction list",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "x.json", `{"items":[]}`) },
			wantCode: http.StatusBadRequest,
			wantMsg:  "Invalid JSON format",
		},
		{
			name: "invalid record",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "x.json", `{"transactionList":[{"combinedKey":"A","originalDate":"2024-01-01","amount":1},{"combinedKey":"","amount":1}]}`)
			},
			wantCode: http.StatusBadRequest,
			wantMsg:  "Invalid transaction record at index 1: combinedKey is empty",
		},
		{
			name: "wrong method",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/transactions/upload", nil)
			},
			wantCode: http.StatusMethodNotAllowed,
			wantMsg:  "Method not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil, handlers.TransactionsOptions{})
			rec := srv.do(tt.req(t))
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			require.Equal(t, tt.wantMsg, errorMessage(t, rec))

			row, err := srv.store.FindTransactionByKey(context.Background(), "A")
			require.NoError(t, err)
			require.Nil(t, row)
		})
	}
}

func TestUpload_IngestFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "deadline",
			err:      fmt.Errorf("Ingest: %w", context.DeadlineExceeded),
			wantCode: http.StatusGatewayTimeout,
			wantMsg:  "Timed out while saving transactions",
		},
		{
			name:     "database",
			err:      errors.New("Ingest: disk I/O error"),
			wantCode: http.StatusInternalServerError,
			wantMsg:  "Error saving transactions to the database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingestor := &mockIngestor{IngestFunc: func(ctx context.Context, records []domain.RawTransactionRecord) (pipeline.Summary, error) {
				return pipeline.Summary{}, tt.err
			}}
			srv := newTestServer(t, ingestor, handlers.TransactionsOptions{})

			rec := srv.do(uploadRequest(t, "x.json", uploadBody))
			require.Equal(t, tt.wantCode, rec.Code)
			require.Equal(t, tt.wantMsg, errorMessage(t, rec))
		})
	}
}

func TestUpload_TimeoutIsApplied(t *testing.T) {
	ingestor := &mockIngestor{IngestFunc: func(ctx context.Context, records []domain.RawTransactionRecord) (pipeline.Summary, error) {
		<-ctx.Done()
		return pipeline.Summary{}, ctx.Err()
	}}
	srv := newTestServer(t, ingestor, handlers.TransactionsOptions{IngestTimeout: 20 * time.Millisecond})

	rec := srv.do(uploadRequest(t, "x.json", uploadBody))
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestListTransactionsAndCategorize(t *testing.T) {
	srv := newTestServer(t, nil, handlers.TransactionsOptions{})
	require.Equal(t, http.StatusCreated, srv.do(uploadRequest(t, "x.json", uploadBody)).Code)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/transactions?start_date=2024-03-01&end_date=2024-03-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var views []storage.TransactionView
	decodeBody(t, rec, &views)
	require.Len(t, views, 1)
	require.Equal(t, "C1", views[0].TransactionKey)
	require.Equal(t, "Groceries", views[0].Subcategory.Name)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/transactions?start_date=03/01/2024", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// P1 has no category yet.
	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/transactions/uncategorized?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var pending struct {
		Transactions []storage.TransactionView `json:"transactions"`
		Count        int                       `json:"count"`
	}
	decodeBody(t, rec, &pending)
	require.Equal(t, 1, pending.Count)
	require.Equal(t, "P1", pending.Transactions[0].TransactionKey)

	cats, err := srv.store.ListCategories(context.Background())
	require.NoError(t, err)
	grocery, err := srv.store.FindSubcategoryByCode(context.Background(), "5411")
	require.NoError(t, err)

	var otherCategory int64
	for _, c := range cats {
		if c.ID != *grocery.CategoryID {
			otherCategory = c.ID
			break
		}
	}

	put := func(key, body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPut, "/api/transactions/"+key+"/category", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		return srv.do(r)
	}

	rec = put("missing", fmt.Sprintf(`{"subcategory_id":%d}`, grocery.ID))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = put("P1", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = put("P1", fmt.Sprintf(`{"category_id":%d,"subcategory_id":%d}`, otherCategory, grocery.ID))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Subcategory does not belong to category", errorMessage(t, rec))

	rec = put("P1", `{"subcategory_id":999999}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = put("P1", fmt.Sprintf(`{"subcategory_id":%d}`, grocery.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated storage.TransactionView
	decodeBody(t, rec, &updated)
	require.Equal(t, "Groceries", updated.Subcategory.Name)
	require.Equal(t, "Food", updated.Category.Name)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/transactions/uncategorized", nil))
	decodeBody(t, rec, &pending)
	require.Equal(t, 0, pending.Count)
}

func TestCategoriesJobsAndHealth(t *testing.T) {
	srv := newTestServer(t, nil, handlers.TransactionsOptions{})

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var cats struct {
		Categories []handlers.CategoryResponse `json:"categories"`
		Count      int                         `json:"count"`
	}
	decodeBody(t, rec, &cats)
	require.Equal(t, len(cats.Categories), cats.Count)
	require.NotZero(t, cats.Count)
	for _, c := range cats.Categories {
		if c.Name == "Food" {
			require.NotEmpty(t, c.Subcategories)
		}
	}

	require.NoError(t, srv.jobStore.SaveJob(context.Background(), &jobs.BatchJob{
		JobID: "j1", Type: jobs.JobTypeExportTransactions, Status: jobs.JobStatusCompleted, CreatedAt: time.Now(),
	}))

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/jobs/j1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var job jobs.BatchJob
	decodeBody(t, rec, &job)
	require.Equal(t, jobs.JobStatusCompleted, job.Status)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/jobs?type=export_transactions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":1`)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "healthy")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
