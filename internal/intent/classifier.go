// internal/intent/classifier.go
package intent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"bc-assistant/internal/ai"
	"bc-assistant/internal/common/logger"
	"bc-assistant/internal/common/metrics"
)

// Classifier turns a free-text query into a QueryIntent using the completion
// service. It never fails its caller: any error or unparseable model output
// degrades to the fixed default intent.
type Classifier struct {
	completer ai.Completer
	logger    logger.Logger
}

func NewClassifier(completer ai.Completer, log logger.Logger) *Classifier {
	return &Classifier{
		completer: completer,
		logger:    log.With(map[string]interface{}{"component": "intent-classifier"}),
	}
}

// Classify resolves the query's intent. The returned intent is fully
// populated regardless of what the model answered.
func (c *Classifier) Classify(ctx context.Context, query string) QueryIntent {
	prompt := buildClassificationPrompt(query)

	raw, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		c.logger.Warn("classification call failed, using default intent", map[string]interface{}{
			"error": err.Error(),
		})
		return c.record(Default(), true)
	}

	parsed, ok := coerceIntent(raw)
	if !ok {
		c.logger.Warn("classifier response unparseable, using default intent", map[string]interface{}{
			"responsePreview": preview(raw, 200),
		})
		return c.record(Default(), true)
	}

	c.logger.Info("intent classified", map[string]interface{}{
		"bestFit":    parsed.BestFit.Label(),
		"needsUsers": parsed.NeedsUsers,
		"needsInbox": parsed.NeedsInbox,
	})
	return c.record(parsed, false)
}

func (c *Classifier) record(qi QueryIntent, defaulted bool) QueryIntent {
	metrics.IntentClassified.WithLabelValues(qi.BestFit.Label(), strconv.FormatBool(defaulted)).Inc()
	return qi
}

func buildClassificationPrompt(query string) string {
	var b strings.Builder
	b.WriteString("Analyze this query against a company directory and its Business Central financial data, and pick the single best data fetch strategy.\n")
	fmt.Fprintf(&b, "Query: %q\n\n", query)
	b.WriteString("Allowed bestFit values (respond with exactly one):\n")
	for _, s := range Strategies() {
		b.WriteString("- " + s.Label() + "\n")
	}
	b.WriteString(`
Respond with a JSON object containing:
- bestFit: one of the allowed values above
- needsUsers: true if the query mentions users, employees, staff, team members, people, or specific person names
- needsInbox: true if the query needs recent email context for those users
- specificUserNames: array of specific person names mentioned in the query (first names, last names, or full names); [] if none
- companyHint: company name or id mentioned in the query, else null
- itemHint: item/product name or id mentioned in the query, else null
- customerHint: customer name or id mentioned in the query, else null
- limits: {"topCompanies": how many companies to inspect (1-10), "topRecords": how many records per company (1-100)}

Only respond with JSON, no other text. Example: {"bestFit":"8. Get Sales Invoices","needsUsers":false,"needsInbox":false,"specificUserNames":[],"companyHint":"Acme","itemHint":null,"customerHint":null,"limits":{"topCompanies":3,"topRecords":25}}`)
	return b.String()
}

// coerceIntent extracts the first balanced JSON object from the model's
// response and validates it field by field. Fields that fail validation fall
// back to their defaults individually; only a missing or non-object payload
// rejects the whole response.
func coerceIntent(raw string) (QueryIntent, bool) {
	obj := extractObject(raw)
	if obj == "" {
		return Default(), false
	}
	parsed := gjson.Parse(obj)
	if !parsed.IsObject() {
		return Default(), false
	}

	qi := Default()

	if v := parsed.Get("bestFit"); v.Type == gjson.String {
		if s, ok := ParseStrategy(v.String()); ok {
			qi.BestFit = s
		}
	}

	qi.NeedsInbox = parsed.Get("needsInbox").Bool()
	qi.NeedsUsers = parsed.Get("needsUsers").Bool()

	// Customer lookups always pull communication context.
	if qi.BestFit == StrategyCustomers || qi.BestFit == StrategySingleCustomer {
		qi.NeedsInbox = true
		qi.NeedsUsers = true
	}

	if v := parsed.Get("specificUserNames"); v.IsArray() {
		names := v.Array()
		ok := true
		for _, n := range names {
			if n.Type != gjson.String {
				ok = false
				break
			}
		}
		if ok {
			for _, n := range names {
				qi.SpecificUserNames = append(qi.SpecificUserNames, n.String())
			}
		}
	}

	qi.CompanyHint = stringField(parsed, "companyHint")
	qi.ItemHint = stringField(parsed, "itemHint")
	qi.CustomerHint = stringField(parsed, "customerHint")

	qi.Limits.TopCompanies = clampField(parsed, "limits.topCompanies", 1, MaxTopCompanies, DefaultTopCompanies)
	qi.Limits.TopRecords = clampField(parsed, "limits.topRecords", 1, MaxTopRecords, DefaultTopRecords)

	return qi, true
}

func stringField(parsed gjson.Result, path string) string {
	if v := parsed.Get(path); v.Type == gjson.String {
		return v.String()
	}
	return ""
}

func clampField(parsed gjson.Result, path string, min, max, def int) int {
	v := parsed.Get(path)
	if v.Type != gjson.Number {
		return def
	}
	n := int(v.Num)
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// extractObject returns the first balanced {...} substring of s, or "".
// Brace counting respects JSON string literals and escapes so braces inside
// strings do not unbalance the scan.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
