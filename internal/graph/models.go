// internal/graph/models.go
package graph

// User is a directory user, read-only and sourced externally.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Mail        string `json:"mail"`
}

// Message is one inbox message in the selected projection.
type Message struct {
	ID               string  `json:"id"`
	Subject          string  `json:"subject"`
	From             *Sender `json:"from,omitempty"`
	ReceivedDateTime string  `json:"receivedDateTime"`
	BodyPreview      string  `json:"bodyPreview"`
}

type Sender struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// SenderName returns the display name of the sender, or "Unknown".
func (m *Message) SenderName() string {
	if m.From == nil || m.From.EmailAddress.Name == "" {
		return "Unknown"
	}
	return m.From.EmailAddress.Name
}

// SenderAddress returns the mail address of the sender, or "Unknown".
func (m *Message) SenderAddress() string {
	if m.From == nil || m.From.EmailAddress.Address == "" {
		return "Unknown"
	}
	return m.From.EmailAddress.Address
}

// SearchHitsContainer is the opaque hits payload returned by the search API.
type SearchHitsContainer map[string]interface{}
