// internal/server/handlers.go
package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"bc-assistant/internal/common/auth"
	stderrors "bc-assistant/internal/common/errors"
	"bc-assistant/internal/intent"
)

// defaultBrowseTop bounds the direct browse routes when no ?top is given.
const defaultBrowseTop = 20

// handleQuery runs the full assistant pipeline for ?query=...
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		s.writeError(w, stderrors.NewMissingQueryError())
		return
	}

	ctx := r.Context()
	if s.cfg.Limits.CompletionTimeout > 0 {
		var cancel func()
		ctx, cancel = contextWithTimeout(ctx, s.cfg.Limits.CompletionTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.pipeline.Handle(ctx, query)
	status := "success"
	if err != nil {
		status = "error"
	}
	s.obs.RecordQueryProcessed(ctx, status)
	s.obs.RecordQueryDuration(ctx, time.Since(start), status)

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   s.cfg.App.Name,
		"version":   s.cfg.App.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSearchUsers lists directory users, or runs a combined search across
// messages, events and drive items when ?q= is present.
func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	token, err := s.tokens.Token(r.Context(), auth.AudienceGraph)
	if err != nil {
		s.writeError(w, err)
		return
	}
	dir := s.directory(token)

	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		hits, err := dir.Search(r.Context(), q)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"query":   q,
			"results": hits,
		})
		return
	}

	users, err := dir.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(users),
		"users": users,
	})
}

func (s *Server) handleEmailInbox(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.PathValue("id"))
	if userID == "" {
		s.writeError(w, stderrors.NewMissingIDError("id"))
		return
	}

	token, err := s.tokens.Token(r.Context(), auth.AudienceGraph)
	if err != nil {
		s.writeError(w, err)
		return
	}

	top := s.cfg.Limits.InboxTop
	if top <= 0 {
		top = 5
	}
	messages, err := s.directory(token).ListMessages(r.Context(), userID, top)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":   userID,
		"count":    len(messages),
		"messages": messages,
	})
}

// handleBCCompanies lists companies through the financial audience. It also
// backs the connectivity test route.
func (s *Server) handleBCCompanies(w http.ResponseWriter, r *http.Request) {
	fin, ok := s.financialClient(w, r)
	if !ok {
		return
	}

	companies, err := fin.ListCompanies(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(companies),
		"companies": companies,
	})
}

// handleBCCompaniesChecked is the credential-aware variant: it names the
// missing credential values instead of failing opaquely on token exchange.
func (s *Server) handleBCCompaniesChecked(w http.ResponseWriter, r *http.Request) {
	if missing := s.cfg.MissingBCCredentials(); len(missing) > 0 {
		s.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   "Business Central credentials are not configured",
			"missing": missing,
		})
		return
	}
	s.handleBCCompanies(w, r)
}

func (s *Server) handleBCResource(w http.ResponseWriter, r *http.Request) {
	companyID := strings.TrimSpace(r.PathValue("companyId"))
	if companyID == "" {
		s.writeError(w, stderrors.NewMissingIDError("companyId"))
		return
	}

	fin, ok := s.financialClient(w, r)
	if !ok {
		return
	}

	top := parseTop(r.URL.Query().Get("top"))

	var (
		records []interface{}
		err     error
	)
	switch resource := r.PathValue("resource"); resource {
	case "customers":
		records, err = asInterfaces(fin.ListCustomers(r.Context(), companyID, top))
	case "items":
		records, err = asInterfaces(fin.ListItems(r.Context(), companyID, top))
	case "salesInvoices":
		records, err = asInterfaces(fin.ListSalesInvoices(r.Context(), companyID, top))
	case "purchaseInvoices":
		records, err = asInterfaces(fin.ListPurchaseInvoices(r.Context(), companyID, top))
	case "itemLedgerEntries":
		records, err = asInterfaces(fin.ListItemLedgerEntries(r.Context(), companyID, top))
	case "customerLedgerEntries":
		records, err = asInterfaces(fin.ListCustomerLedgerEntries(r.Context(), companyID, top))
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"companyId": companyID,
		"count":     len(records),
		"value":     records,
	})
}

func (s *Server) financialClient(w http.ResponseWriter, r *http.Request) (FinancialAPI, bool) {
	token, err := s.tokens.Token(r.Context(), auth.AudienceBusinessCentral)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return s.financial(token), true
}

func parseTop(raw string) int {
	top, err := strconv.Atoi(raw)
	if err != nil || top <= 0 {
		return defaultBrowseTop
	}
	if top > intent.MaxTopRecords {
		return intent.MaxTopRecords
	}
	return top
}
