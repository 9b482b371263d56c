// internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bc-assistant/internal/bc"
	"bc-assistant/internal/common/auth"
	"bc-assistant/internal/common/config"
	"bc-assistant/internal/common/logger"
	"bc-assistant/internal/common/observability"
	"bc-assistant/internal/graph"
	"bc-assistant/internal/orchestrator"
)

// QueryPipeline is the assistant pipeline the query route drives.
type QueryPipeline interface {
	Handle(ctx context.Context, query string) (*orchestrator.Result, error)
}

// DirectoryAPI is the directory surface the browse routes use. It is the
// orchestrator's directory capability plus combined search.
type DirectoryAPI interface {
	ListUsers(ctx context.Context) ([]graph.User, error)
	ListMessages(ctx context.Context, userID string, top int) ([]graph.Message, error)
	Search(ctx context.Context, query string) ([]graph.SearchHitsContainer, error)
}

// FinancialAPI is the financial surface the direct browse routes use,
// including the ledger entry sets the assistant pipeline does not fetch.
type FinancialAPI interface {
	ListCompanies(ctx context.Context) ([]bc.Company, error)
	ListItems(ctx context.Context, companyID string, top int) ([]bc.Record, error)
	ListCustomers(ctx context.Context, companyID string, top int) ([]bc.Record, error)
	ListSalesInvoices(ctx context.Context, companyID string, top int) ([]bc.Record, error)
	ListPurchaseInvoices(ctx context.Context, companyID string, top int) ([]bc.Record, error)
	ListItemLedgerEntries(ctx context.Context, companyID string, top int) ([]bc.Record, error)
	ListCustomerLedgerEntries(ctx context.Context, companyID string, top int) ([]bc.Record, error)
}

type DirectoryFactory func(token string) DirectoryAPI

type FinancialFactory func(token string) FinancialAPI

// Server exposes the assistant pipeline and the direct upstream browse routes
// over HTTP.
type Server struct {
	cfg       *config.Config
	logger    logger.Logger
	pipeline  QueryPipeline
	tokens    auth.TokenProvider
	directory DirectoryFactory
	financial FinancialFactory
	obs       *observability.Observability

	httpServer *http.Server
}

func New(
	cfg *config.Config,
	pipeline QueryPipeline,
	tokens auth.TokenProvider,
	directory DirectoryFactory,
	financial FinancialFactory,
	obs *observability.Observability,
	log logger.Logger,
) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    log.With(map[string]interface{}{"component": "http-server"}),
		pipeline:  pipeline,
		tokens:    tokens,
		directory: directory,
		financial: financial,
		obs:       obs,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	return s
}

// Router builds the route table. Exposed separately so tests can drive the
// handler stack without binding a port.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api", s.handleQuery)

	mux.HandleFunc("GET /api/search/health", s.handleHealth)
	mux.HandleFunc("GET /api/search/users", s.handleSearchUsers)
	mux.HandleFunc("GET /api/search/emailInbox/{id}", s.handleEmailInbox)
	mux.HandleFunc("GET /api/search/business-central/companies", s.handleBCCompaniesChecked)

	mux.HandleFunc("GET /api/businesscentral/test", s.handleBCCompanies)
	mux.HandleFunc("GET /api/businesscentral/companies", s.handleBCCompanies)
	mux.HandleFunc("GET /api/businesscentral/companies/{companyId}/{resource}", s.handleBCResource)

	mux.Handle("GET /metrics", promhttp.Handler())

	return withCORS(mux)
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// withCORS allows browser frontends on other origins to call the API.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
