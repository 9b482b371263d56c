// internal/bc/client.go
//
// Business Central API client.
// Base URL: https://api.businesscentral.dynamics.com/v2.0/{tenantId}/{environment}/api/v2.0
// The bearer token must carry aud: "https://api.businesscentral.dynamics.com".
package bc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	stderrors "bc-assistant/internal/common/errors"
	"bc-assistant/internal/common/metrics"
)

const apiRoot = "https://api.businesscentral.dynamics.com/v2.0"

// Minimal field projections per entity, so listings stay small enough for
// prompt assembly.
const (
	itemSelect            = "id,number,displayName,baseUnitOfMeasureId,itemCategoryId,unitPrice,inventory"
	customerSelect        = "id,number,displayName,type,phoneNumber,email,website,currencyCode,blocked,balance"
	salesInvoiceSelect    = "id,number,customerId,customerName,invoiceDate,dueDate,status,totalAmountIncludingTax,currencyCode"
	purchaseInvoiceSelect = "id,number,vendorId,vendorName,invoiceDate,dueDate,status,totalAmountIncludingTax,currencyCode"
	itemCategorySelect    = "id,code,displayName,parentCategoryId"
	unitOfMeasureSelect   = "id,code,displayName,internationalStandardCode"
	itemLedgerSelect      = "id,postingDate,entryType,documentNumber,itemId,description,quantity,unitOfMeasureCode,locationCode"
	customerLedgerSelect  = "id,postingDate,documentNumber,documentType,customerId,customerNumber,customerName,amount,remainingAmount,currencyCode,open"
)

// Client is a token-bound, read-only accessor for Business Central financial
// records. Constructed once per request with that request's token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a client for the given tenant and environment.
func NewClient(tenantID, environment, token string) *Client {
	return &Client{
		baseURL:    fmt.Sprintf("%s/%s/%s/api/v2.0", apiRoot, tenantID, environment),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBase is used by tests to point at a fake endpoint.
func NewClientWithBase(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ListCompanies fetches all companies.
func (c *Client) ListCompanies(ctx context.Context) ([]Company, error) {
	var out struct {
		Value []Company `json:"value"`
	}
	if err := c.getJSON(ctx, "/companies", &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// ListItems fetches up to top items for a company in the minimal projection.
func (c *Client) ListItems(ctx context.Context, companyID string, top int) ([]Record, error) {
	return c.listEntities(ctx, companyID, "items", ODataOptions{Select: itemSelect, Top: top})
}

// GetItem fetches a single item by id.
func (c *Client) GetItem(ctx context.Context, companyID, itemID string) (Record, error) {
	return c.getEntity(ctx, companyID, "items", itemID)
}

// ListCustomers fetches up to top customers for a company.
func (c *Client) ListCustomers(ctx context.Context, companyID string, top int) ([]Record, error) {
	return c.listEntities(ctx, companyID, "customers", ODataOptions{Select: customerSelect, Top: top})
}

// GetCustomer fetches a single customer by id.
func (c *Client) GetCustomer(ctx context.Context, companyID, customerID string) (Record, error) {
	return c.getEntity(ctx, companyID, "customers", customerID)
}

// ListItemCategories fetches up to top item categories for a company.
func (c *Client) ListItemCategories(ctx context.Context, companyID string, top int) ([]Record, error) {
	return c.listEntities(ctx, companyID, "itemCategories", ODataOptions{Select: itemCategorySelect, Top: top})
}

// ListUnitsOfMeasure fetches up to top units of measure for a company.
func (c *Client) ListUnitsOfMeasure(ctx context.Context, companyID string, top int) ([]Record, error) {
	return c.listEntities(ctx, companyID, "unitsOfMeasure", ODataOptions{Select: unitOfMeasureSelect, Top: top})
}

// ListSalesInvoices fetches up to top sales invoices, newest first.
func (c *Client) ListSalesInvoices(ctx context.Context, companyID string, top int) ([]Record, error) {
	return c.listEntities(ctx, companyID, "salesInvoices", ODataOptions{
		Select:  salesInvoiceSelect,
		Top:     top,
		OrderBy: "invoiceDate desc",
	})
}

// ListPurchaseInvoices fetches up to top purchase invoices, newest first.
func (c *Client) ListPurchaseInvoices(ctx context.Context, companyID string, top int) ([]Record, error) {
	return c.listEntities(ctx, companyID, "purchaseInvoices", ODataOptions{
		Select:  purchaseInvoiceSelect,
		Top:     top,
		OrderBy: "invoiceDate desc",
	})
}

// ListItemLedgerEntries fetches up to top item ledger entries, newest first.
func (c *Client) ListItemLedgerEntries(ctx context.Context, companyID string, top int) ([]Record, error) {
	return c.listEntities(ctx, companyID, "itemLedgerEntries", ODataOptions{
		Select:  itemLedgerSelect,
		Top:     top,
		OrderBy: "postingDate desc",
	})
}

// ListCustomerLedgerEntries fetches up to top customer ledger entries, newest first.
func (c *Client) ListCustomerLedgerEntries(ctx context.Context, companyID string, top int) ([]Record, error) {
	return c.listEntities(ctx, companyID, "customerLedgerEntries", ODataOptions{
		Select:  customerLedgerSelect,
		Top:     top,
		OrderBy: "postingDate desc",
	})
}

// GetItemPicture fetches an item's picture bytes. size is small, medium or large.
func (c *Client) GetItemPicture(ctx context.Context, companyID, itemID, size string) (*Picture, error) {
	if size == "" {
		size = "small"
	}
	endpoint := fmt.Sprintf("/companies(%s)/items(%s)/picture(%s)",
		url.PathEscape(companyID), url.PathEscape(itemID), url.PathEscape(size))
	return c.getBinary(ctx, endpoint)
}

// GetCustomerPicture fetches a customer's picture bytes.
func (c *Client) GetCustomerPicture(ctx context.Context, companyID, customerID string) (*Picture, error) {
	endpoint := fmt.Sprintf("/companies(%s)/customers(%s)/picture",
		url.PathEscape(companyID), url.PathEscape(customerID))
	return c.getBinary(ctx, endpoint)
}

func (c *Client) listEntities(ctx context.Context, companyID, entitySet string, opts ODataOptions) ([]Record, error) {
	endpoint := withOData(fmt.Sprintf("/companies(%s)/%s", url.PathEscape(companyID), entitySet), opts)

	var out struct {
		Value []Record `json:"value"`
	}
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (c *Client) getEntity(ctx context.Context, companyID, entitySet, entityID string) (Record, error) {
	endpoint := fmt.Sprintf("/companies(%s)/%s(%s)",
		url.PathEscape(companyID), entitySet, url.PathEscape(entityID))

	var out Record
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("business-central", "error").Inc()
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues("business-central", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) getBinary(ctx context.Context, endpoint string) (*Picture, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("business-central", "error").Inc()
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues("business-central", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	bytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read picture body: %w", err)
	}
	return &Picture{
		ContentType: resp.Header.Get("Content-Type"),
		Bytes:       bytes,
	}, nil
}

func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return stderrors.NewUpstreamForbiddenError("business-central", stderrors.HintBCPermissions,
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	case resp.StatusCode == http.StatusNotFound || strings.Contains(string(body), "Resource not found"):
		return stderrors.NewUpstreamNotFoundError("business-central",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	default:
		return stderrors.NewUpstreamRequestError("business-central", resp.StatusCode, string(body))
	}
}
