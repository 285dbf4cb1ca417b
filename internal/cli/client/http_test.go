package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_Headers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "u1", r.Header.Get("X-User-Id"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hi", body["message"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"response":"hey"}}`))
	}))
	defer server.Close()

	api := NewAPIClientWithConfig("key", server.URL+"/", "u1")
	resp, err := api.Post(context.Background(), "/chat", map[string]string{"message": "hi"})
	require.NoError(t, err)

	var out ChatResponse
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, "hey", out.Response)
}

func TestAPIClient_NoCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("X-User-Id"))
		_, _ = w.Write([]byte(`{"data":{"items":[]}}`))
	}))
	defer server.Close()

	api := NewAPIClientWithConfig("", server.URL, "")
	_, err := api.Get(context.Background(), "/personas")
	require.NoError(t, err)
}

func TestAPIClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		wantCode string
	}{
		{"envelope", http.StatusNotFound, `{"error":"persona not found","code":"NOT_FOUND"}`, "persona not found", "NOT_FOUND"},
		{"plain text", http.StatusBadGateway, "bad gateway", "bad gateway", ""},
		{"empty", http.StatusServiceUnavailable, "", "Service Unavailable", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			api := NewAPIClientWithConfig("", server.URL, "")
			_, err := api.Get(context.Background(), "/x")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestAPIClient_NoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	api := NewAPIClientWithConfig("", server.URL, "")
	resp, err := api.Delete(context.Background(), "/chat/state?session_id=s")
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
	assert.Error(t, resp.Decode(&struct{}{}))
}

func TestAPIClient_DialStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/ws", r.URL.Path)
		assert.Equal(t, "u1", r.Header.Get("X-User-Id"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	api := NewAPIClientWithConfig("", server.URL, "u1")
	conn, err := api.DialStream(context.Background())
	require.NoError(t, err)
	conn.Close()
}

func TestAPIClient_DialStreamRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	api := NewAPIClientWithConfig("", server.URL, "")
	_, err := api.DialStream(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
