package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bc-assistant/internal/bc"
	"bc-assistant/internal/common/auth"
	"bc-assistant/internal/common/config"
	stderrors "bc-assistant/internal/common/errors"
	"bc-assistant/internal/common/logger"
	"bc-assistant/internal/graph"
	"bc-assistant/internal/orchestrator"
)

// --- fakes ---

type fakePipeline struct {
	result *orchestrator.Result
	err    error
	gotQ   string
}

func (f *fakePipeline) Handle(_ context.Context, query string) (*orchestrator.Result, error) {
	f.gotQ = query
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeTokens struct {
	err error
}

func (f *fakeTokens) Token(context.Context, auth.Audience) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token", nil
}

type fakeDirectory struct {
	users    []graph.User
	messages []graph.Message
	hits     []graph.SearchHitsContainer
	err      error
}

func (f *fakeDirectory) ListUsers(context.Context) ([]graph.User, error) {
	return f.users, f.err
}

func (f *fakeDirectory) ListMessages(context.Context, string, int) ([]graph.Message, error) {
	return f.messages, f.err
}

func (f *fakeDirectory) Search(context.Context, string) ([]graph.SearchHitsContainer, error) {
	return f.hits, f.err
}

type fakeFinancial struct {
	companies []bc.Company
	err       error
	lastCall  string
	lastTop   int
}

func (f *fakeFinancial) ListCompanies(context.Context) ([]bc.Company, error) {
	f.lastCall = "companies"
	return f.companies, f.err
}

func (f *fakeFinancial) list(call string, top int) ([]bc.Record, error) {
	f.lastCall = call
	f.lastTop = top
	if f.err != nil {
		return nil, f.err
	}
	return []bc.Record{{"id": "r1"}}, nil
}

func (f *fakeFinancial) ListItems(_ context.Context, _ string, top int) ([]bc.Record, error) {
	return f.list("items", top)
}

func (f *fakeFinancial) ListCustomers(_ context.Context, _ string, top int) ([]bc.Record, error) {
	return f.list("customers", top)
}

func (f *fakeFinancial) ListSalesInvoices(_ context.Context, _ string, top int) ([]bc.Record, error) {
	return f.list("salesInvoices", top)
}

func (f *fakeFinancial) ListPurchaseInvoices(_ context.Context, _ string, top int) ([]bc.Record, error) {
	return f.list("purchaseInvoices", top)
}

func (f *fakeFinancial) ListItemLedgerEntries(_ context.Context, _ string, top int) ([]bc.Record, error) {
	return f.list("itemLedgerEntries", top)
}

func (f *fakeFinancial) ListCustomerLedgerEntries(_ context.Context, _ string, top int) ([]bc.Record, error) {
	return f.list("customerLedgerEntries", top)
}

// --- harness ---

type harness struct {
	cfg       *config.Config
	pipeline  *fakePipeline
	tokens    *fakeTokens
	directory *fakeDirectory
	financial *fakeFinancial
	router    http.Handler
}

func newHarness() *harness {
	h := &harness{
		cfg: &config.Config{
			App:    config.AppConfig{Name: "bc-assistant", Version: "test"},
			Server: config.ServerConfig{Port: 0},
			Azure: config.AzureConfig{
				TenantID: "t", ClientID: "c", ClientSecret: "s",
			},
			Limits: config.LimitsConfig{InboxTop: 5},
		},
		pipeline: &fakePipeline{result: &orchestrator.Result{Answer: "hi"}},
		tokens:   &fakeTokens{},
		directory: &fakeDirectory{
			users: []graph.User{{ID: "u1", DisplayName: "Alice"}},
		},
		financial: &fakeFinancial{
			companies: []bc.Company{{ID: "c1", DisplayName: "Contoso"}},
		},
	}
	srv := New(
		h.cfg,
		h.pipeline,
		h.tokens,
		func(string) DirectoryAPI { return h.directory },
		func(string) FinancialAPI { return h.financial },
		nil, // no otel pipeline in tests
		logger.NewNoOpLogger(),
	)
	h.router = srv.Router()
	return h
}

func (h *harness) get(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

// --- tests ---

func TestQueryRoute(t *testing.T) {
	h := newHarness()

	rec, body := h.get(t, "/api?query=who+are+our+customers")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", body["answer"])
	assert.Equal(t, "who are our customers", h.pipeline.gotQ)
}

func TestQueryRouteMissingQuery(t *testing.T) {
	h := newHarness()

	rec, body := h.get(t, "/api")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(stderrors.ErrCodeMissingQuery), body["code"])
}

func TestQueryRouteErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantHint   string
		wantHints  bool
	}{
		{
			name:       "forbidden surfaces hint",
			err:        stderrors.NewUpstreamForbiddenError("graph", stderrors.HintGraphPermissions, errors.New("denied")),
			wantStatus: http.StatusForbidden,
			wantHint:   stderrors.HintGraphPermissions,
		},
		{
			name:       "financial not-found surfaces provisioning hints",
			err:        stderrors.NewUpstreamNotFoundError("business-central", errors.New("no env")),
			wantStatus: http.StatusNotFound,
			wantHints:  true,
		},
		{
			name:       "token failure is internal",
			err:        stderrors.NewTokenRequestFailedError("graph", errors.New("bad secret")),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "completion failure is internal",
			err:        stderrors.NewCompletionFailedError(errors.New("overloaded")),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.pipeline.err = tt.err

			rec, body := h.get(t, "/api?query=x")
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantHint != "" {
				assert.Equal(t, tt.wantHint, body["hint"])
			}
			if tt.wantHints {
				hints, ok := body["hints"].([]interface{})
				require.True(t, ok)
				assert.Len(t, hints, len(stderrors.BCNotFoundHints))
			}
		})
	}
}

func TestHealthRoute(t *testing.T) {
	h := newHarness()

	rec, body := h.get(t, "/api/search/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "bc-assistant", body["service"])
}

func TestSearchUsersRoute(t *testing.T) {
	h := newHarness()

	rec, body := h.get(t, "/api/search/users")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestSearchUsersWithQueryRunsSearch(t *testing.T) {
	h := newHarness()
	h.directory.hits = []graph.SearchHitsContainer{{"total": 3}}

	rec, body := h.get(t, "/api/search/users?q=phoenix")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "phoenix", body["query"])
	assert.NotNil(t, body["results"])
}

func TestEmailInboxRoute(t *testing.T) {
	h := newHarness()
	h.directory.messages = []graph.Message{{ID: "m1", Subject: "hello"}}

	rec, body := h.get(t, "/api/search/emailInbox/u1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", body["userId"])
	assert.Equal(t, float64(1), body["count"])
}

func TestEmailInboxRouteTokenFailure(t *testing.T) {
	h := newHarness()
	h.tokens.err = stderrors.NewTokenRequestFailedError("graph", errors.New("down"))

	rec, _ := h.get(t, "/api/search/emailInbox/u1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBCCompaniesRoutes(t *testing.T) {
	for _, path := range []string{"/api/businesscentral/companies", "/api/businesscentral/test"} {
		t.Run(path, func(t *testing.T) {
			h := newHarness()

			rec, body := h.get(t, path)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, float64(1), body["count"])
		})
	}
}

func TestBCResourceRoutes(t *testing.T) {
	resources := []string{
		"customers", "items", "salesInvoices", "purchaseInvoices",
		"itemLedgerEntries", "customerLedgerEntries",
	}

	for _, resource := range resources {
		t.Run(resource, func(t *testing.T) {
			h := newHarness()

			rec, body := h.get(t, fmt.Sprintf("/api/businesscentral/companies/c1/%s", resource))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "c1", body["companyId"])
			assert.Equal(t, resource, h.financial.lastCall)
			assert.Equal(t, defaultBrowseTop, h.financial.lastTop)
		})
	}
}

func TestBCResourceRouteTopParam(t *testing.T) {
	tests := []struct {
		query   string
		wantTop int
	}{
		{"?top=7", 7},
		{"?top=99999", 100},
		{"?top=-1", defaultBrowseTop},
		{"?top=abc", defaultBrowseTop},
		{"", defaultBrowseTop},
	}

	for _, tt := range tests {
		h := newHarness()
		rec, _ := h.get(t, "/api/businesscentral/companies/c1/items"+tt.query)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, tt.wantTop, h.financial.lastTop, tt.query)
	}
}

func TestBCResourceRouteUnknownResource(t *testing.T) {
	h := newHarness()

	rec, _ := h.get(t, "/api/businesscentral/companies/c1/vendors")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBCCheckedRouteMissingCredentials(t *testing.T) {
	h := newHarness()
	h.cfg.Azure = config.AzureConfig{} // no credentials anywhere

	rec, body := h.get(t, "/api/search/business-central/companies")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	missing, ok := body["missing"].([]interface{})
	require.True(t, ok)
	assert.Len(t, missing, 3)
}

func TestBCCheckedRouteWithCredentials(t *testing.T) {
	h := newHarness()

	rec, body := h.get(t, "/api/search/business-central/companies")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestCORSHeaders(t *testing.T) {
	h := newHarness()

	rec, _ := h.get(t, "/api/search/health")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/api", nil)
	opt := httptest.NewRecorder()
	h.router.ServeHTTP(opt, req)
	assert.Equal(t, http.StatusNoContent, opt.Code)
}

func TestMetricsRoute(t *testing.T) {
	h := newHarness()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
