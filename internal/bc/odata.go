// internal/bc/odata.go
package bc

import (
	"net/url"
	"strconv"
	"strings"
)

// ODataOptions shapes a Business Central query. Values are passed without the
// leading "$" (e.g. {Select: "id,number", Top: 10}).
type ODataOptions struct {
	Select  string
	Filter  string
	Top     int
	OrderBy string
	Expand  string
}

// withOData appends the OData query options to an endpoint path.
func withOData(endpoint string, o ODataOptions) string {
	qp := url.Values{}
	if o.Select != "" {
		qp.Set("$select", o.Select)
	}
	if o.Filter != "" {
		qp.Set("$filter", o.Filter)
	}
	if o.Top > 0 {
		qp.Set("$top", strconv.Itoa(o.Top))
	}
	if o.OrderBy != "" {
		qp.Set("$orderby", o.OrderBy)
	}
	if o.Expand != "" {
		qp.Set("$expand", o.Expand)
	}
	qs := qp.Encode()
	if qs == "" {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + qs
}
