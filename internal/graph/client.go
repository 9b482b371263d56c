// internal/graph/client.go
package graph

import (
	"bytes"
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

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// userSelect keeps the user listing to the fields the pipeline consumes.
const userSelect = "id,displayName,mail"

// messageSelect keeps inbox messages to the fields shown in the prompt.
const messageSelect = "id,subject,from,receivedDateTime,bodyPreview"

// Client is a token-bound, read-only accessor for directory users and their
// message inboxes. One client is constructed per request with the token
// acquired for that request; the token is never reacquired per call.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBase is used by tests to point at a fake Graph endpoint.
func NewClientWithBase(baseURL, token string) *Client {
	c := NewClient(token)
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// ListUsers fetches the full user list with id, displayName and mail.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	endpoint := "/users?$select=" + url.QueryEscape(userSelect)

	var out struct {
		Value []User `json:"value"`
	}
	if err := c.get(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// ListMessages fetches the most recent messages of one user, bounded by top.
func (c *Client) ListMessages(ctx context.Context, userID string, top int) ([]Message, error) {
	endpoint := fmt.Sprintf("/users/%s/messages?$top=%s&$select=%s",
		url.PathEscape(userID), strconv.Itoa(top), url.QueryEscape(messageSelect))

	var out struct {
		Value []Message `json:"value"`
	}
	if err := c.get(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// Search runs a combined search over messages, events and drive items.
func (c *Client) Search(ctx context.Context, query string) ([]SearchHitsContainer, error) {
	payload := map[string]interface{}{
		"requests": []map[string]interface{}{
			{
				"entityTypes": []string{"message", "event", "driveItem"},
				"query":       map[string]string{"queryString": query},
				"from":        0,
				"size":        10,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search/query", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("graph", "error").Inc()
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues("graph", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var out struct {
		Value []struct {
			HitsContainers []SearchHitsContainer `json:"hitsContainers"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0].HitsContainers, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("graph", "error").Inc()
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues("graph", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusForbidden || strings.Contains(string(body), "Authorization_RequestDenied"):
		return stderrors.NewUpstreamForbiddenError("graph", stderrors.HintGraphPermissions,
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	case resp.StatusCode == http.StatusNotFound:
		return stderrors.NewUpstreamNotFoundError("graph",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	default:
		return stderrors.NewUpstreamRequestError("graph", resp.StatusCode, string(body))
	}
}
