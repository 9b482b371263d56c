package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "bc-assistant/internal/common/errors"
)

func TestListUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, userSelect, r.URL.Query().Get("$select"))
		assert.Equal(t, "Bearer g-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"value":[
			{"id":"u1","displayName":"Alice","mail":"alice@x.com"},
			{"id":"u2","displayName":"Bob","mail":null}
		]}`))
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL, "g-token")
	users, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].DisplayName)
	assert.Empty(t, users[1].Mail)
}

func TestListMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/u1/messages", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("$top"))
		assert.Equal(t, messageSelect, r.URL.Query().Get("$select"))
		w.Write([]byte(`{"value":[{
			"id":"m1",
			"subject":"Quarterly numbers",
			"from":{"emailAddress":{"name":"Carol","address":"carol@x.com"}},
			"receivedDateTime":"2026-08-20T10:00:00Z",
			"bodyPreview":"Attached are the numbers"
		}]}`))
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL, "t")
	messages, err := c.ListMessages(context.Background(), "u1", 5)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "Quarterly numbers", messages[0].Subject)
	assert.Equal(t, "Carol", messages[0].SenderName())
	assert.Equal(t, "carol@x.com", messages[0].SenderAddress())
}

func TestMessageSenderDefaults(t *testing.T) {
	m := Message{}
	assert.Equal(t, "Unknown", m.SenderName())
	assert.Equal(t, "Unknown", m.SenderAddress())
}

func TestSearch(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search/query", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"value":[{"hitsContainers":[{"total":2}]}]}`))
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL, "t")
	hits, err := c.Search(context.Background(), "project phoenix")
	require.NoError(t, err)
	require.Len(t, hits, 1)

	requests := gotBody["requests"].([]interface{})
	first := requests[0].(map[string]interface{})
	assert.ElementsMatch(t,
		[]interface{}{"message", "event", "driveItem"},
		first["entityTypes"].([]interface{}))
	assert.Equal(t, "project phoenix",
		first["query"].(map[string]interface{})["queryString"])
}

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode stderrors.ErrorCode
		wantHint string
	}{
		{"403 carries graph permission hint", http.StatusForbidden, `{"error":"denied"}`,
			stderrors.ErrCodeUpstreamForbidden, stderrors.HintGraphPermissions},
		{"request-denied body with 400", http.StatusBadRequest,
			`{"error":{"code":"Authorization_RequestDenied"}}`,
			stderrors.ErrCodeUpstreamForbidden, stderrors.HintGraphPermissions},
		{"404", http.StatusNotFound, `{}`, stderrors.ErrCodeUpstreamNotFound, ""},
		{"500", http.StatusInternalServerError, `boom`, stderrors.ErrCodeUpstreamRequestFailed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClientWithBase(srv.URL, "t")
			_, err := c.ListUsers(context.Background())
			require.Error(t, err)

			se, ok := stderrors.AsStandard(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, se.Code)
			assert.Equal(t, tt.wantHint, se.Hint)
		})
	}
}
