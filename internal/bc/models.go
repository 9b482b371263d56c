// internal/bc/models.go
package bc

// Company is the financial root entity; every other record is scoped to one.
type Company struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Name        string `json:"name"`
}

// Label resolves the company name, preferring displayName.
func (c Company) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Record is one loosely-typed financial record keyed by its id field.
// Business Central entity shapes vary per endpoint and API version, so records
// are carried opaquely and only the selected fields are relied upon.
type Record map[string]interface{}

// Picture is a binary payload with its content type. Callers re-encode the
// bytes to a text-safe form before including them in any text payload.
type Picture struct {
	ContentType string
	Bytes       []byte
}
