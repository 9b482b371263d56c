// internal/intent/intent.go
package intent

import "strings"

// Strategy is one of the fixed fetch strategies a query can resolve to.
type Strategy int

const (
	StrategyCompanies Strategy = iota
	StrategyItems
	StrategySingleItem
	StrategyCustomers
	StrategySingleCustomer
	StrategyItemCategories
	StrategyUnitsOfMeasure
	StrategySalesInvoices
	StrategyPurchaseInvoices
	StrategyItemPicture
	StrategyCustomerPicture
)

// strategyLabels is the catalogue shown to the model, in fixed order.
var strategyLabels = [...]string{
	StrategyCompanies:        "1. Get Companies",
	StrategyItems:            "2. Get Items",
	StrategySingleItem:       "3. Get Single Item",
	StrategyCustomers:        "4. Get Customers",
	StrategySingleCustomer:   "5. Get Single Customer",
	StrategyItemCategories:   "6. Get Item Categories",
	StrategyUnitsOfMeasure:   "7. Get Units of Measure",
	StrategySalesInvoices:    "8. Get Sales Invoices",
	StrategyPurchaseInvoices: "9. Get Purchase Invoices",
	StrategyItemPicture:      "10. Get Item Picture",
	StrategyCustomerPicture:  "11. Get Customer Picture",
}

// Label returns the catalogue label of the strategy.
func (s Strategy) Label() string {
	if int(s) < 0 || int(s) >= len(strategyLabels) {
		return strategyLabels[StrategyCompanies]
	}
	return strategyLabels[s]
}

// Strategies returns the full catalogue in order.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategyLabels))
	for i := range strategyLabels {
		out[i] = Strategy(i)
	}
	return out
}

// ParseStrategy maps a model-provided bestFit label onto the catalogue.
// Matching ignores case and the numeric prefix, so "Get Sales Invoices" and
// "8. Get Sales Invoices" both resolve. Unknown labels report ok=false.
func ParseStrategy(label string) (Strategy, bool) {
	norm := normalizeLabel(label)
	for i, l := range strategyLabels {
		if normalizeLabel(l) == norm {
			return Strategy(i), true
		}
	}
	return StrategyCompanies, false
}

func normalizeLabel(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	// Strip a leading "NN." catalogue number.
	if i := strings.Index(s, "."); i > 0 && i <= 2 {
		isNum := true
		for _, r := range s[:i] {
			if r < '0' || r > '9' {
				isNum = false
				break
			}
		}
		if isNum {
			s = strings.TrimSpace(s[i+1:])
		}
	}
	return s
}

// Limits bounds how much upstream data one request may pull.
type Limits struct {
	TopCompanies int `json:"topCompanies"` // clamped to [1,10], default 3
	TopRecords   int `json:"topRecords"`   // clamped to [1,100], default 25
}

const (
	DefaultTopCompanies = 3
	DefaultTopRecords   = 25

	MaxTopCompanies = 10
	MaxTopRecords   = 100
)

// QueryIntent is the structured intent descriptor produced once per request.
// Every field carries a safe default, so the orchestrator never observes a
// partially-populated intent.
type QueryIntent struct {
	BestFit           Strategy `json:"bestFit"`
	NeedsInbox        bool     `json:"needsInbox"`
	NeedsUsers        bool     `json:"needsUsers"`
	SpecificUserNames []string `json:"specificUserNames"`
	CompanyHint       string   `json:"companyHint,omitempty"`
	ItemHint          string   `json:"itemHint,omitempty"`
	CustomerHint      string   `json:"customerHint,omitempty"`
	Limits            Limits   `json:"limits"`
}

// Default returns the fixed fallback intent used whenever classification
// fails or yields garbage.
func Default() QueryIntent {
	return QueryIntent{
		BestFit:           StrategyCompanies,
		NeedsInbox:        false,
		NeedsUsers:        false,
		SpecificUserNames: nil,
		Limits: Limits{
			TopCompanies: DefaultTopCompanies,
			TopRecords:   DefaultTopRecords,
		},
	}
}
