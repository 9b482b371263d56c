package bc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "bc-assistant/internal/common/errors"
)

func TestListCompanies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":[{"id":"c1","displayName":"Contoso"},{"id":"c2","name":"fabrikam"}]}`))
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL, "test-token")
	companies, err := c.ListCompanies(context.Background())
	require.NoError(t, err)
	require.Len(t, companies, 2)
	assert.Equal(t, "Contoso", companies[0].Label())
	assert.Equal(t, "fabrikam", companies[1].Label())
}

func TestListEntitiesODataParams(t *testing.T) {
	tests := []struct {
		name        string
		call        func(c *Client) error
		wantPath    string
		wantSelect  string
		wantTop     string
		wantOrderBy string
	}{
		{
			name: "items",
			call: func(c *Client) error {
				_, err := c.ListItems(context.Background(), "c1", 10)
				return err
			},
			wantPath:   "/companies(c1)/items",
			wantSelect: itemSelect,
			wantTop:    "10",
		},
		{
			name: "customers",
			call: func(c *Client) error {
				_, err := c.ListCustomers(context.Background(), "c1", 25)
				return err
			},
			wantPath:   "/companies(c1)/customers",
			wantSelect: customerSelect,
			wantTop:    "25",
		},
		{
			name: "sales invoices newest first",
			call: func(c *Client) error {
				_, err := c.ListSalesInvoices(context.Background(), "c1", 5)
				return err
			},
			wantPath:    "/companies(c1)/salesInvoices",
			wantSelect:  salesInvoiceSelect,
			wantTop:     "5",
			wantOrderBy: "invoiceDate desc",
		},
		{
			name: "purchase invoices newest first",
			call: func(c *Client) error {
				_, err := c.ListPurchaseInvoices(context.Background(), "c1", 5)
				return err
			},
			wantPath:    "/companies(c1)/purchaseInvoices",
			wantSelect:  purchaseInvoiceSelect,
			wantTop:     "5",
			wantOrderBy: "invoiceDate desc",
		},
		{
			name: "item ledger entries by posting date",
			call: func(c *Client) error {
				_, err := c.ListItemLedgerEntries(context.Background(), "c1", 5)
				return err
			},
			wantPath:    "/companies(c1)/itemLedgerEntries",
			wantSelect:  itemLedgerSelect,
			wantTop:     "5",
			wantOrderBy: "postingDate desc",
		},
		{
			name: "customer ledger entries by posting date",
			call: func(c *Client) error {
				_, err := c.ListCustomerLedgerEntries(context.Background(), "c1", 5)
				return err
			},
			wantPath:    "/companies(c1)/customerLedgerEntries",
			wantSelect:  customerLedgerSelect,
			wantTop:     "5",
			wantOrderBy: "postingDate desc",
		},
		{
			name: "item categories",
			call: func(c *Client) error {
				_, err := c.ListItemCategories(context.Background(), "c1", 5)
				return err
			},
			wantPath:   "/companies(c1)/itemCategories",
			wantSelect: itemCategorySelect,
			wantTop:    "5",
		},
		{
			name: "units of measure",
			call: func(c *Client) error {
				_, err := c.ListUnitsOfMeasure(context.Background(), "c1", 5)
				return err
			},
			wantPath:   "/companies(c1)/unitsOfMeasure",
			wantSelect: unitOfMeasureSelect,
			wantTop:    "5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			var gotQuery map[string][]string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotQuery = r.URL.Query()
				w.Write([]byte(`{"value":[{"id":"r1"}]}`))
			}))
			defer srv.Close()

			c := NewClientWithBase(srv.URL, "t")
			require.NoError(t, tt.call(c))

			assert.Equal(t, tt.wantPath, gotPath)
			assert.Equal(t, tt.wantSelect, gotQuery["$select"][0])
			assert.Equal(t, tt.wantTop, gotQuery["$top"][0])
			if tt.wantOrderBy != "" {
				assert.Equal(t, tt.wantOrderBy, gotQuery["$orderby"][0])
			}
		})
	}
}

func TestGetEntity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies(c1)/items(i1)", r.URL.Path)
		w.Write([]byte(`{"id":"i1","displayName":"Bicycle","unitPrice":1500}`))
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL, "t")
	item, err := c.GetItem(context.Background(), "c1", "i1")
	require.NoError(t, err)
	assert.Equal(t, "Bicycle", item["displayName"])
}

func TestGetItemPicture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies(c1)/items(i1)/picture(small)", r.URL.Path)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xFF, 0xD8, 0xFF})
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL, "t")
	pic, err := c.GetItemPicture(context.Background(), "c1", "i1", "")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", pic.ContentType)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, pic.Bytes)
}

func TestGetCustomerPicture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies(c1)/customers(cu1)/picture", r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL, "t")
	pic, err := c.GetCustomerPicture(context.Background(), "c1", "cu1")
	require.NoError(t, err)
	assert.Equal(t, "image/png", pic.ContentType)
}

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode stderrors.ErrorCode
		wantHint string
	}{
		{"forbidden carries permission hint", http.StatusForbidden, `{"error":"denied"}`,
			stderrors.ErrCodeUpstreamForbidden, stderrors.HintBCPermissions},
		{"unauthorized treated as forbidden", http.StatusUnauthorized, `{"error":"bad token"}`,
			stderrors.ErrCodeUpstreamForbidden, stderrors.HintBCPermissions},
		{"not found", http.StatusNotFound, `{"error":"nope"}`,
			stderrors.ErrCodeUpstreamNotFound, ""},
		{"resource-not-found body with 400", http.StatusBadRequest, `{"error":{"message":"Resource not found"}}`,
			stderrors.ErrCodeUpstreamNotFound, ""},
		{"server error", http.StatusInternalServerError, `boom`,
			stderrors.ErrCodeUpstreamRequestFailed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClientWithBase(srv.URL, "t")
			_, err := c.ListCompanies(context.Background())
			require.Error(t, err)

			se, ok := stderrors.AsStandard(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, se.Code)
			assert.Equal(t, tt.wantHint, se.Hint)
		})
	}
}

func TestNewClientBaseURL(t *testing.T) {
	c := NewClient("tenant-guid", "Sandbox", "t")
	assert.Equal(t,
		"https://api.businesscentral.dynamics.com/v2.0/tenant-guid/Sandbox/api/v2.0",
		c.baseURL)
}

func TestWithOData(t *testing.T) {
	tests := []struct {
		name string
		opts ODataOptions
		want string
	}{
		{"empty options leave endpoint alone", ODataOptions{}, "/companies"},
		{"select and top", ODataOptions{Select: "id,number", Top: 5},
			"/companies?%24select=id%2Cnumber&%24top=5"},
		{"filter encoded", ODataOptions{Filter: "displayName eq 'X'"},
			"/companies?%24filter=displayName+eq+%27X%27"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withOData("/companies", tt.opts))
		})
	}
}
