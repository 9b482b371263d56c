// internal/orchestrator/models.go
package orchestrator

import (
	"context"

	"bc-assistant/internal/bc"
	"bc-assistant/internal/graph"
	"bc-assistant/internal/intent"
)

// DirectoryAPI is the read-only directory capability the orchestrator drives.
// Implementations are token-bound per request.
type DirectoryAPI interface {
	ListUsers(ctx context.Context) ([]graph.User, error)
	ListMessages(ctx context.Context, userID string, top int) ([]graph.Message, error)
}

// FinancialAPI is the read-only financial capability the orchestrator drives.
type FinancialAPI interface {
	ListCompanies(ctx context.Context) ([]bc.Company, error)
	ListItems(ctx context.Context, companyID string, top int) ([]bc.Record, error)
	GetItem(ctx context.Context, companyID, itemID string) (bc.Record, error)
	ListCustomers(ctx context.Context, companyID string, top int) ([]bc.Record, error)
	GetCustomer(ctx context.Context, companyID, customerID string) (bc.Record, error)
	ListItemCategories(ctx context.Context, companyID string, top int) ([]bc.Record, error)
	ListUnitsOfMeasure(ctx context.Context, companyID string, top int) ([]bc.Record, error)
	ListSalesInvoices(ctx context.Context, companyID string, top int) ([]bc.Record, error)
	ListPurchaseInvoices(ctx context.Context, companyID string, top int) ([]bc.Record, error)
	GetItemPicture(ctx context.Context, companyID, itemID, size string) (*bc.Picture, error)
	GetCustomerPicture(ctx context.Context, companyID, customerID string) (*bc.Picture, error)
}

// DirectoryFactory builds a token-bound directory client for one request.
type DirectoryFactory func(token string) DirectoryAPI

// FinancialFactory builds a token-bound financial client for one request.
type FinancialFactory func(token string) FinancialAPI

// IntentClassifier resolves a free-text query into a QueryIntent. It never
// fails; unparseable classifications degrade to the default intent.
type IntentClassifier interface {
	Classify(ctx context.Context, query string) intent.QueryIntent
}

// InboxSummary is one user's recent inbox, built per request and discarded
// after the response.
type InboxSummary struct {
	UserID      string          `json:"userId"`
	DisplayName string          `json:"displayName"`
	Mail        string          `json:"mail"`
	EmailInbox  []graph.Message `json:"emailInbox"`
}

// maxInboxMessages caps how many messages one InboxSummary may carry.
const maxInboxMessages = 15

// CompanyResult is the per-company outcome of one fetch strategy: either a
// populated record set (or single record) or an error marker. One company's
// failure never aborts the others.
type CompanyResult struct {
	CompanyID   string      `json:"companyId"`
	CompanyName string      `json:"companyName,omitempty"`
	Count       int         `json:"count,omitempty"`
	Records     []bc.Record `json:"records,omitempty"`
	Record      bc.Record   `json:"record,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// PictureResult is one company's picture fetch outcome, bytes already
// re-encoded to base64 so the payload stays text-safe.
type PictureResult struct {
	CompanyID   string `json:"companyId"`
	CompanyName string `json:"companyName,omitempty"`
	EntityID    string `json:"entityId"`
	ContentType string `json:"contentType,omitempty"`
	Base64      string `json:"base64,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Payload is the assembled financial grounding data, keyed by record set.
type Payload map[string]interface{}

// Result is what one handled query returns to the HTTP layer: the generated
// answer plus a compact observability summary, never the raw payload.
type Result struct {
	Query       string      `json:"query"`
	Answer      string      `json:"answer"`
	DataSummary DataSummary `json:"dataSummary"`
	BC          BCSummary   `json:"bc"`
}

// DataSummary carries counts only.
type DataSummary struct {
	Users           int            `json:"users"`
	UsersWithEmails int            `json:"usersWithEmails"`
	BusinessCentral map[string]int `json:"businessCentral"`
}

// BCSummary describes what the financial side of the request did.
type BCSummary struct {
	Intent     string   `json:"intent"`
	Companies  int      `json:"companies"`
	Keys       []string `json:"keys"`
	HasPicture bool     `json:"hasPicture"`
}
