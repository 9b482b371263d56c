// internal/orchestrator/fetch.go
package orchestrator

import (
	"context"
	"encoding/base64"

	"github.com/google/uuid"

	"bc-assistant/internal/bc"
	"bc-assistant/internal/common/metrics"
	"bc-assistant/internal/intent"
)

// fetchFunc runs one fetch strategy over the truncated company list and
// returns the financial part of the grounding payload. Implementations catch
// their own per-company failures; they never return an error.
type fetchFunc func(ctx context.Context, fin FinancialAPI, companies []bc.Company, qi intent.QueryIntent) Payload

// singleEntityTop bounds the fallback listing used when a single-entity
// lookup has no usable id.
const singleEntityTop = 5

// IsEntityID reports whether s is an opaque upstream entity identifier.
// Business Central entity ids are GUIDs; only canonical GUID forms are
// accepted, anything else is treated as a display-name hint.
func IsEntityID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func (o *Orchestrator) buildDispatch() map[intent.Strategy]fetchFunc {
	return map[intent.Strategy]fetchFunc{
		intent.StrategyCompanies:        o.fetchCompanies,
		intent.StrategyItems:            o.fetchItems,
		intent.StrategySingleItem:       o.fetchSingleItem,
		intent.StrategyCustomers:        o.fetchCustomers,
		intent.StrategySingleCustomer:   o.fetchSingleCustomer,
		intent.StrategyItemCategories:   o.fetchItemCategories,
		intent.StrategyUnitsOfMeasure:   o.fetchUnitsOfMeasure,
		intent.StrategySalesInvoices:    o.fetchSalesInvoices,
		intent.StrategyPurchaseInvoices: o.fetchPurchaseInvoices,
		intent.StrategyItemPicture:      o.fetchItemPicture,
		intent.StrategyCustomerPicture:  o.fetchCustomerPicture,
	}
}

func (o *Orchestrator) fetchCompanies(_ context.Context, _ FinancialAPI, companies []bc.Company, _ intent.QueryIntent) Payload {
	return Payload{"companies": companies}
}

func (o *Orchestrator) fetchItems(ctx context.Context, fin FinancialAPI, companies []bc.Company, qi intent.QueryIntent) Payload {
	return Payload{"itemsByCompany": o.listByCompany(ctx, companies, qi.Limits.TopRecords, fin.ListItems)}
}

func (o *Orchestrator) fetchSingleItem(ctx context.Context, fin FinancialAPI, companies []bc.Company, qi intent.QueryIntent) Payload {
	if !IsEntityID(qi.ItemHint) {
		// No usable id: fall back to a small per-company listing and echo the
		// hint so the answer can still reference what was asked for.
		p := Payload{"itemsByCompany": o.listByCompany(ctx, companies, singleEntityTop, fin.ListItems)}
		if qi.ItemHint != "" {
			p["hint"] = qi.ItemHint
		}
		return p
	}

	results := o.getByCompany(ctx, companies, "item", func(ctx context.Context, companyID string) (bc.Record, error) {
		return fin.GetItem(ctx, companyID, qi.ItemHint)
	})
	return Payload{"itemByCompany": results}
}

func (o *Orchestrator) fetchCustomers(ctx context.Context, fin FinancialAPI, companies []bc.Company, qi intent.QueryIntent) Payload {
	return Payload{"customersByCompany": o.listByCompany(ctx, companies, qi.Limits.TopRecords, fin.ListCustomers)}
}

func (o *Orchestrator) fetchSingleCustomer(ctx context.Context, fin FinancialAPI, companies []bc.Company, qi intent.QueryIntent) Payload {
	if !IsEntityID(qi.CustomerHint) {
		p := Payload{"customersByCompany": o.listByCompany(ctx, companies, singleEntityTop, fin.ListCustomers)}
		if qi.CustomerHint != "" {
			p["hint"] = qi.CustomerHint
		}
		return p
	}

	results := o.getByCompany(ctx, companies, "customer", func(ctx context.Context, companyID string) (bc.Record, error) {
		return fin.GetCustomer(ctx, companyID, qi.CustomerHint)
	})
	return Payload{"customerByCompany": results}
}

func (o *Orchestrator) fetchItemCategories(ctx context.Context, fin FinancialAPI, companies []bc.Company, qi intent.QueryIntent) Payload {
	return Payload{"itemCategoriesByCompany": o.listByCompany(ctx, companies, qi.Limits.TopRecords, fin.ListItemCategories)}
}

func (o *Orchestrator) fetchUnitsOfMeasure(ctx context.Context, fin FinancialAPI, companies []bc.Company, qi intent.QueryIntent) Payload {
	return Payload{"unitsOfMeasureByCompany": o.listByCompany(ctx, companies, qi.Limits.TopRecords, fin.ListUnitsOfMeasure)}
}

func (o *Orchestrator) fetchSalesInvoices(ctx context.Context, fin FinancialAPI, companies []bc.Company, qi intent.QueryIntent) Payload {
	return Payload{"salesInvoicesByCompany": o.listByCompany(ctx, companies, qi.Limits.TopRecords, fin.ListSalesInvoices)}
}

func (o *Orchestrator) fetchPurchaseInvoices(ctx context.Context, fin FinancialAPI, companies []bc.Company, qi intent.QueryIntent) Payload {
	return Payload{"purchaseInvoicesByCompany": o.listByCompany(ctx, companies, qi.Limits.TopRecords, fin.ListPurchaseInvoices)}
}

func (o *Orchestrator) fetchItemPicture(ctx context.Context, fin FinancialAPI, companies []bc.Company, qi intent.QueryIntent) Payload {
	if qi.ItemHint == "" {
		return Payload{"pictureError": "Provide an item id to fetch a picture"}
	}
	if !IsEntityID(qi.ItemHint) {
		return Payload{
			"itemsByCompany": o.listByCompany(ctx, companies, singleEntityTop, fin.ListItems),
			"hint":           qi.ItemHint,
		}
	}

	pictures := o.picturesByCompany(ctx, companies, qi.ItemHint, func(ctx context.Context, companyID string) (*bc.Picture, error) {
		return fin.GetItemPicture(ctx, companyID, qi.ItemHint, "small")
	})
	return Payload{"itemPictures": pictures}
}

func (o *Orchestrator) fetchCustomerPicture(ctx context.Context, fin FinancialAPI, companies []bc.Company, qi intent.QueryIntent) Payload {
	if qi.CustomerHint == "" {
		return Payload{"pictureError": "Provide a customer id to fetch a picture"}
	}
	if !IsEntityID(qi.CustomerHint) {
		return Payload{
			"customersByCompany": o.listByCompany(ctx, companies, singleEntityTop, fin.ListCustomers),
			"hint":               qi.CustomerHint,
		}
	}

	pictures := o.picturesByCompany(ctx, companies, qi.CustomerHint, func(ctx context.Context, companyID string) (*bc.Picture, error) {
		return fin.GetCustomerPicture(ctx, companyID, qi.CustomerHint)
	})
	return Payload{"customerPictures": pictures}
}

// listByCompany iterates the company list in order, calling the accessor per
// company. Failures become error markers; the batch always yields one entry
// per company.
func (o *Orchestrator) listByCompany(
	ctx context.Context,
	companies []bc.Company,
	top int,
	list func(ctx context.Context, companyID string, top int) ([]bc.Record, error),
) []CompanyResult {
	if top <= 0 {
		top = intent.DefaultTopRecords
	}

	results := make([]CompanyResult, 0, len(companies))
	for _, company := range companies {
		records, err := list(ctx, company.ID, top)
		if err != nil {
			o.logger.Warn("per-company fetch failed", map[string]interface{}{
				"companyId": company.ID,
				"error":     err.Error(),
			})
			metrics.PartialFailures.WithLabelValues("company").Inc()
			results = append(results, CompanyResult{
				CompanyID:   company.ID,
				CompanyName: company.Label(),
				Error:       err.Error(),
			})
			continue
		}
		results = append(results, CompanyResult{
			CompanyID:   company.ID,
			CompanyName: company.Label(),
			Count:       len(records),
			Records:     records,
		})
	}
	return results
}

// getByCompany is listByCompany's single-record counterpart.
func (o *Orchestrator) getByCompany(
	ctx context.Context,
	companies []bc.Company,
	scope string,
	get func(ctx context.Context, companyID string) (bc.Record, error),
) []CompanyResult {
	results := make([]CompanyResult, 0, len(companies))
	for _, company := range companies {
		record, err := get(ctx, company.ID)
		if err != nil {
			o.logger.Warn("per-company fetch failed", map[string]interface{}{
				"companyId": company.ID,
				"scope":     scope,
				"error":     err.Error(),
			})
			metrics.PartialFailures.WithLabelValues("company").Inc()
			results = append(results, CompanyResult{
				CompanyID:   company.ID,
				CompanyName: company.Label(),
				Error:       err.Error(),
			})
			continue
		}
		results = append(results, CompanyResult{
			CompanyID:   company.ID,
			CompanyName: company.Label(),
			Count:       1,
			Record:      record,
		})
	}
	return results
}

// picturesByCompany collects the picture across every company that has one,
// not just the first match, re-encoding bytes to base64.
func (o *Orchestrator) picturesByCompany(
	ctx context.Context,
	companies []bc.Company,
	entityID string,
	get func(ctx context.Context, companyID string) (*bc.Picture, error),
) []PictureResult {
	results := make([]PictureResult, 0, len(companies))
	for _, company := range companies {
		pic, err := get(ctx, company.ID)
		if err != nil {
			o.logger.Warn("picture fetch failed", map[string]interface{}{
				"companyId": company.ID,
				"entityId":  entityID,
				"error":     err.Error(),
			})
			metrics.PartialFailures.WithLabelValues("picture").Inc()
			results = append(results, PictureResult{
				CompanyID:   company.ID,
				CompanyName: company.Label(),
				EntityID:    entityID,
				Error:       err.Error(),
			})
			continue
		}
		results = append(results, PictureResult{
			CompanyID:   company.ID,
			CompanyName: company.Label(),
			EntityID:    entityID,
			ContentType: pic.ContentType,
			Base64:      base64.StdEncoding.EncodeToString(pic.Bytes),
		})
	}
	return results
}
