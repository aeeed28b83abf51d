// Package api wires the HTTP handlers into a router.
package api

import (
	"net/http"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/api/handlers"
	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups the endpoint handlers served by the router.
type Handlers struct {
	Transactions *handlers.TransactionsHandler
	Categories   *handlers.CategoriesHandler
	Jobs         *handlers.JobsHandler
	Health       *handlers.HealthHandler
}

func methodNotAllowed(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// NewRouter builds the ServeMux and wraps it in the middleware chain.
func NewRouter(h Handlers, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Transactions endpoints
	mux.HandleFunc("/api/transactions/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Transactions.Upload(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Transactions.ListTransactions(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/transactions/")

		if rest == "uncategorized" {
			if r.Method == http.MethodGet {
				h.Transactions.ListUncategorized(w, r)
			} else {
				methodNotAllowed(w)
			}
			return
		}

		key, ok := strings.CutSuffix(rest, "/category")
		if !ok || key == "" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		if r.Method == http.MethodPut {
			h.Transactions.SetCategory(w, r, key)
		} else {
			methodNotAllowed(w)
		}
	})

	// Categories endpoints
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Categories.ListCategories(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Jobs.ListJobs(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			h.Jobs.GetJob(w, r, jobID)
		} else {
			methodNotAllowed(w)
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", h.Health.Health)

	return middleware.Chain(log, mux)
}
