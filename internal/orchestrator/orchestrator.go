// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"bc-assistant/internal/ai"
	"bc-assistant/internal/bc"
	"bc-assistant/internal/common/auth"
	"bc-assistant/internal/common/config"
	stderrors "bc-assistant/internal/common/errors"
	"bc-assistant/internal/common/logger"
	"bc-assistant/internal/common/metrics"
	"bc-assistant/internal/graph"
	"bc-assistant/internal/intent"
)

// Orchestrator drives one query through classification, bounded upstream
// fetches, grounding-context assembly and answer generation. It holds no
// request state; every entity it builds lives only for the request.
type Orchestrator struct {
	tokens     auth.TokenProvider
	directory  DirectoryFactory
	financial  FinancialFactory
	classifier IntentClassifier
	completer  ai.Completer
	limits     config.LimitsConfig
	logger     logger.Logger
	dispatch   map[intent.Strategy]fetchFunc
}

func New(
	tokens auth.TokenProvider,
	directory DirectoryFactory,
	financial FinancialFactory,
	classifier IntentClassifier,
	completer ai.Completer,
	limits config.LimitsConfig,
	log logger.Logger,
) *Orchestrator {
	o := &Orchestrator{
		tokens:     tokens,
		directory:  directory,
		financial:  financial,
		classifier: classifier,
		completer:  completer,
		limits:     limits,
		logger:     log.With(map[string]interface{}{"component": "orchestrator"}),
	}
	o.dispatch = o.buildDispatch()
	return o
}

// Handle processes one query end to end. It fails only on missing input,
// token acquisition failure, or total completion failure; every per-entity
// fetch failure degrades to a partial result.
func (o *Orchestrator) Handle(ctx context.Context, query string) (*Result, error) {
	start := time.Now()
	if strings.TrimSpace(query) == "" {
		return nil, stderrors.NewMissingQueryError()
	}

	// One directory token per request, reused for every directory call.
	graphToken, err := o.tokens.Token(ctx, auth.AudienceGraph)
	if err != nil {
		return nil, err
	}
	dir := o.directory(graphToken)

	qi := o.classifier.Classify(ctx, query)

	users, inboxes := o.fetchDirectoryData(ctx, dir, qi)

	payload, companies := o.fetchFinancialData(ctx, qi)

	prompt := buildGroundingPrompt(query, qi, users, inboxes, payload, o.limits)

	answer, err := o.completer.Complete(ctx, prompt)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("completion_failed").Inc()
		return nil, err
	}

	result := &Result{
		Query:       query,
		Answer:      answer,
		DataSummary: summarize(users, inboxes, payload),
		BC: BCSummary{
			Intent:     qi.BestFit.Label(),
			Companies:  len(companies),
			Keys:       payloadKeys(payload),
			HasPicture: hasPicture(payload),
		},
	}

	metrics.QueriesTotal.WithLabelValues("ok").Inc()
	metrics.QueryDuration.Observe(time.Since(start).Seconds())

	o.logger.Info("query handled", map[string]interface{}{
		"intent":    qi.BestFit.Label(),
		"users":     result.DataSummary.Users,
		"companies": result.BC.Companies,
		"duration":  time.Since(start).String(),
	})

	return result, nil
}

// fetchDirectoryData resolves the matched users and, when requested, their
// inboxes. Directory failures below the auth boundary degrade to empty data.
func (o *Orchestrator) fetchDirectoryData(ctx context.Context, dir DirectoryAPI, qi intent.QueryIntent) ([]graph.User, []InboxSummary) {
	if !qi.NeedsUsers && !qi.NeedsInbox {
		return nil, nil
	}

	allUsers, err := dir.ListUsers(ctx)
	if err != nil {
		o.logger.Warn("user listing failed, continuing without directory data", map[string]interface{}{
			"error": err.Error(),
		})
		metrics.PartialFailures.WithLabelValues("users").Inc()
		return nil, nil
	}

	users := filterUsersByNames(allUsers, qi.SpecificUserNames)

	if !qi.NeedsInbox {
		return users, nil
	}
	return users, o.fetchInboxes(ctx, dir, users)
}

// filterUsersByNames keeps users whose display name or mail contains any of
// the given names, case-insensitively. A filter that matches nobody falls
// back to the full list: an over-specific name must never empty the result.
func filterUsersByNames(users []graph.User, names []string) []graph.User {
	if len(names) == 0 {
		return users
	}

	lowered := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			lowered = append(lowered, n)
		}
	}
	if len(lowered) == 0 {
		return users
	}

	var matched []graph.User
	for _, u := range users {
		display := strings.ToLower(u.DisplayName)
		mail := strings.ToLower(u.Mail)
		for _, n := range lowered {
			if strings.Contains(display, n) || strings.Contains(mail, n) {
				matched = append(matched, u)
				break
			}
		}
	}

	if len(matched) == 0 {
		return users
	}
	return matched
}

// fetchInboxes pulls each user's recent messages concurrently through a
// bounded pool. Results stay in user order; a failed fetch yields an empty
// inbox for that user only.
func (o *Orchestrator) fetchInboxes(ctx context.Context, dir DirectoryAPI, users []graph.User) []InboxSummary {
	summaries := make([]InboxSummary, len(users))

	workers := o.limits.InboxWorkers
	if workers <= 0 {
		workers = 8
	}
	top := o.limits.InboxTop
	if top <= 0 {
		top = 5
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, u := range users {
		g.Go(func() error {
			messages, err := dir.ListMessages(gctx, u.ID, top)
			if err != nil {
				o.logger.Warn("inbox fetch failed", map[string]interface{}{
					"userId": u.ID,
					"error":  err.Error(),
				})
				metrics.PartialFailures.WithLabelValues("inbox").Inc()
				messages = nil
			}
			if len(messages) > maxInboxMessages {
				messages = messages[:maxInboxMessages]
			}
			summaries[i] = InboxSummary{
				UserID:      u.ID,
				DisplayName: u.DisplayName,
				Mail:        u.Mail,
				EmailInbox:  messages,
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures became empty inboxes

	return summaries
}

// fetchFinancialData acquires the financial-audience token, truncates the
// company list and runs the strategy selected by the intent.
func (o *Orchestrator) fetchFinancialData(ctx context.Context, qi intent.QueryIntent) (Payload, []bc.Company) {
	bcToken, err := o.tokens.Token(ctx, auth.AudienceBusinessCentral)
	if err != nil {
		o.logger.Warn("financial token acquisition failed", map[string]interface{}{
			"error": err.Error(),
		})
		return Payload{"financialError": err.Error()}, nil
	}
	fin := o.financial(bcToken)

	allCompanies, err := fin.ListCompanies(ctx)
	if err != nil {
		o.logger.Warn("company listing failed", map[string]interface{}{
			"error": err.Error(),
		})
		return Payload{"financialError": err.Error()}, nil
	}

	if len(allCompanies) == 0 {
		return Payload{"noCompanies": true}, nil
	}

	companies := truncateCompanies(allCompanies, qi.CompanyHint, qi.Limits.TopCompanies)

	fetch, ok := o.dispatch[qi.BestFit]
	if !ok {
		// Dispatch table covers the whole catalogue; reaching this means a
		// strategy was added without a fetch func.
		o.logger.Error("no fetch strategy registered", map[string]interface{}{
			"intent": qi.BestFit.Label(),
		})
		fetch = o.fetchCompanies
	}

	return fetch(ctx, fin, companies, qi), companies
}

// truncateCompanies bounds the company list to top, preferring companies
// whose name matches the hint. No hint match keeps the original order.
func truncateCompanies(companies []bc.Company, hint string, top int) []bc.Company {
	if top <= 0 {
		top = intent.DefaultTopCompanies
	}

	ordered := companies
	if h := strings.ToLower(strings.TrimSpace(hint)); h != "" {
		var matched, rest []bc.Company
		for _, c := range companies {
			if strings.Contains(strings.ToLower(c.Label()), h) {
				matched = append(matched, c)
			} else {
				rest = append(rest, c)
			}
		}
		if len(matched) > 0 {
			ordered = append(matched, rest...)
		}
	}

	if len(ordered) > top {
		ordered = ordered[:top]
	}
	return ordered
}

func summarize(users []graph.User, inboxes []InboxSummary, payload Payload) DataSummary {
	withEmails := 0
	for _, s := range inboxes {
		if len(s.EmailInbox) > 0 {
			withEmails++
		}
	}

	bcCounts := make(map[string]int)
	for key, v := range payload {
		switch entries := v.(type) {
		case []bc.Company:
			bcCounts[key] = len(entries)
		case []CompanyResult:
			bcCounts[key] = len(entries)
		case []PictureResult:
			bcCounts[key] = len(entries)
		default:
			bcCounts[key] = 1
		}
	}

	return DataSummary{
		Users:           len(users),
		UsersWithEmails: withEmails,
		BusinessCentral: bcCounts,
	}
}

func payloadKeys(payload Payload) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func hasPicture(payload Payload) bool {
	for _, key := range []string{"itemPictures", "customerPictures"} {
		if entries, ok := payload[key].([]PictureResult); ok {
			for _, p := range entries {
				if p.Base64 != "" {
					return true
				}
			}
		}
	}
	return false
}
