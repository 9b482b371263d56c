// internal/orchestrator/prompt.go
package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"bc-assistant/internal/bc"
	"bc-assistant/internal/common/config"
	"bc-assistant/internal/graph"
	"bc-assistant/internal/intent"
)

// buildGroundingPrompt assembles the answer-generation prompt: the original
// query, the classified intent, and a bounded rendering of everything that was
// fetched. All list sections are truncated by the configured prompt limits so
// a large tenant cannot blow up the context window.
func buildGroundingPrompt(
	query string,
	qi intent.QueryIntent,
	users []graph.User,
	inboxes []InboxSummary,
	payload Payload,
	limits config.LimitsConfig,
) string {
	promptUsers := limits.PromptUsers
	if promptUsers <= 0 {
		promptUsers = 10
	}
	promptMessages := limits.PromptMessages
	if promptMessages <= 0 {
		promptMessages = 5
	}
	promptCompanies := limits.PromptCompanies
	if promptCompanies <= 0 {
		promptCompanies = 10
	}

	var b strings.Builder
	b.WriteString("You are an assistant answering a question using the organization's directory and Business Central data below.\n")
	fmt.Fprintf(&b, "Question: %q\n", query)
	fmt.Fprintf(&b, "Chosen data strategy: %s\n\n", qi.BestFit.Label())

	writeUserSection(&b, users, promptUsers)
	writeInboxSection(&b, inboxes, promptUsers, promptMessages)
	writeFinancialSection(&b, payload, promptCompanies)

	b.WriteString("\nAnswer the question using only the data above. ")
	b.WriteString("If the data contains error markers, say which part could not be fetched and answer from what remains. ")
	b.WriteString("If the data does not contain the answer, say so instead of guessing.")
	return b.String()
}

func writeUserSection(b *strings.Builder, users []graph.User, max int) {
	if len(users) == 0 {
		return
	}
	fmt.Fprintf(b, "Directory users (%d total", len(users))
	if len(users) > max {
		fmt.Fprintf(b, ", showing %d", max)
		users = users[:max]
	}
	b.WriteString("):\n")
	for _, u := range users {
		fmt.Fprintf(b, "- %s <%s>\n", u.DisplayName, u.Mail)
	}
	b.WriteString("\n")
}

func writeInboxSection(b *strings.Builder, inboxes []InboxSummary, maxUsers, maxMessages int) {
	if len(inboxes) == 0 {
		return
	}
	if len(inboxes) > maxUsers {
		inboxes = inboxes[:maxUsers]
	}
	b.WriteString("Recent emails per user:\n")
	for _, inbox := range inboxes {
		if len(inbox.EmailInbox) == 0 {
			fmt.Fprintf(b, "%s: no recent emails available\n", inbox.DisplayName)
			continue
		}
		messages := inbox.EmailInbox
		if len(messages) > maxMessages {
			messages = messages[:maxMessages]
		}
		fmt.Fprintf(b, "%s:\n", inbox.DisplayName)
		for _, m := range messages {
			fmt.Fprintf(b, "  - %q from %s (%s): %s\n",
				m.Subject, m.SenderName(), m.ReceivedDateTime, m.BodyPreview)
		}
	}
	b.WriteString("\n")
}

// writeFinancialSection renders the financial payload. Scalar markers are
// written as prose; record batches are sampled per company and serialized as
// JSON so field names survive into the prompt. Picture bytes never enter the
// prompt, only their presence.
func writeFinancialSection(b *strings.Builder, payload Payload, maxPerCompany int) {
	if len(payload) == 0 {
		return
	}
	b.WriteString("Business Central data:\n")

	if msg, ok := payload["financialError"].(string); ok {
		fmt.Fprintf(b, "Financial data unavailable: %s\n", msg)
	}
	if _, ok := payload["noCompanies"]; ok {
		b.WriteString("No companies are available in this environment.\n")
	}
	if msg, ok := payload["pictureError"].(string); ok {
		fmt.Fprintf(b, "Picture request problem: %s\n", msg)
	}
	if hint, ok := payload["hint"].(string); ok {
		fmt.Fprintf(b, "The user referred to %q; no exact id match was available, nearby records are listed instead.\n", hint)
	}

	for key, v := range payload {
		switch entries := v.(type) {
		case []bc.Company:
			fmt.Fprintf(b, "%s (%d):\n", key, len(entries))
			for _, c := range entries {
				fmt.Fprintf(b, "- %s (id %s)\n", c.Label(), c.ID)
			}
		case []CompanyResult:
			writeCompanyResults(b, key, entries, maxPerCompany)
		case []PictureResult:
			writePictureResults(b, key, entries)
		}
	}
}

func writeCompanyResults(b *strings.Builder, key string, entries []CompanyResult, maxPerCompany int) {
	fmt.Fprintf(b, "%s:\n", key)
	for _, e := range entries {
		if e.Error != "" {
			fmt.Fprintf(b, "- %s: fetch failed (%s)\n", e.CompanyName, e.Error)
			continue
		}
		if e.Record != nil {
			fmt.Fprintf(b, "- %s: %s\n", e.CompanyName, compactJSON(e.Record))
			continue
		}
		records := e.Records
		sampled := ""
		if len(records) > maxPerCompany {
			records = records[:maxPerCompany]
			sampled = fmt.Sprintf(" (showing %d)", maxPerCompany)
		}
		fmt.Fprintf(b, "- %s: %d records%s %s\n", e.CompanyName, e.Count, sampled, compactJSON(records))
	}
}

func writePictureResults(b *strings.Builder, key string, entries []PictureResult) {
	fmt.Fprintf(b, "%s:\n", key)
	for _, p := range entries {
		if p.Error != "" {
			fmt.Fprintf(b, "- %s: no picture (%s)\n", p.CompanyName, p.Error)
			continue
		}
		fmt.Fprintf(b, "- %s: picture available for entity %s (%s, %d bytes base64)\n",
			p.CompanyName, p.EntityID, p.ContentType, len(p.Base64))
	}
}

func compactJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
