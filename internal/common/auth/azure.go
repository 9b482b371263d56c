// internal/common/auth/azure.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	stderrors "bc-assistant/internal/common/errors"
)

// Audience names an upstream system a bearer token is scoped to access.
type Audience string

const (
	AudienceGraph           Audience = "graph"
	AudienceBusinessCentral Audience = "business-central"
)

const (
	graphScope = "https://graph.microsoft.com/.default"
	bcResource = "https://api.businesscentral.dynamics.com"
)

// TokenProvider exchanges service credentials for a bearer token scoped to a
// named upstream audience. Tokens are short-lived and not cached across
// requests.
type TokenProvider interface {
	Token(ctx context.Context, audience Audience) (string, error)
}

// Credentials is one client-credentials set against a tenant.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// AzureTokenProvider implements TokenProvider against the Microsoft identity
// platform. The Graph audience uses the v2.0 endpoint with a scope; the
// Business Central audience uses the v1.0 endpoint with a resource parameter
// so the token carries the audience BC expects.
type AzureTokenProvider struct {
	loginBaseURL string
	graphCreds   Credentials
	bcCreds      Credentials
	httpClient   *http.Client
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   json.Number `json:"expires_in"`
}

func NewAzureTokenProvider(graphCreds, bcCreds Credentials) *AzureTokenProvider {
	return &AzureTokenProvider{
		loginBaseURL: "https://login.microsoftonline.com",
		graphCreds:   graphCreds,
		bcCreds:      bcCreds,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// NewAzureTokenProviderWithBase is used by tests to point at a fake endpoint.
func NewAzureTokenProviderWithBase(baseURL string, graphCreds, bcCreds Credentials) *AzureTokenProvider {
	p := NewAzureTokenProvider(graphCreds, bcCreds)
	p.loginBaseURL = strings.TrimSuffix(baseURL, "/")
	return p
}

func (p *AzureTokenProvider) Token(ctx context.Context, audience Audience) (string, error) {
	var tokenURL string
	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	switch audience {
	case AudienceGraph:
		tokenURL = fmt.Sprintf("%s/%s/oauth2/v2.0/token", p.loginBaseURL, p.graphCreds.TenantID)
		data.Set("client_id", p.graphCreds.ClientID)
		data.Set("client_secret", p.graphCreds.ClientSecret)
		data.Set("scope", graphScope)
	case AudienceBusinessCentral:
		tokenURL = fmt.Sprintf("%s/%s/oauth2/token", p.loginBaseURL, p.bcCreds.TenantID)
		data.Set("client_id", p.bcCreds.ClientID)
		data.Set("client_secret", p.bcCreds.ClientSecret)
		data.Set("resource", bcResource)
	default:
		return "", stderrors.NewTokenRequestFailedError(string(audience), fmt.Errorf("unknown audience"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", stderrors.NewTokenRequestFailedError(string(audience), err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", stderrors.NewTokenRequestFailedError(string(audience), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", stderrors.NewTokenRequestFailedError(string(audience),
			fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", stderrors.NewTokenRequestFailedError(string(audience), fmt.Errorf("decode token response: %w", err))
	}
	if tr.AccessToken == "" {
		return "", stderrors.NewTokenRequestFailedError(string(audience), fmt.Errorf("token response missing access_token"))
	}

	return tr.AccessToken, nil
}
