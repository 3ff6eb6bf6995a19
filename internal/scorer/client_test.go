package scorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GonzoDMX/perplex/internal/config"
	"github.com/GonzoDMX/perplex/internal/logging"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	c, err := NewClient(config.ScorerConfig{
		URL:   url,
		Token: "test-token",
		Model: "test-model",
	}, logging.NewDiscard())
	require.NoError(t, err)

	return c
}

func TestClient_Score(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req.Model)
		require.Equal(t, "Une phrase.", req.Text)

		json.NewEncoder(w).Encode(scoreResponse{
			Tokens: []TokenProb{{ID: 12, Prob: 0.5}, {ID: 7, Prob: 0.25}},
		})
	}))
	defer srv.Close()

	tokens, err := newTestClient(t, srv.URL).Score(context.Background(), "Une phrase.")
	require.NoError(t, err)
	require.Equal(t, []TokenProb{{ID: 12, Prob: 0.5}, {ID: 7, Prob: 0.25}}, tokens)
}

func TestClient_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Score(context.Background(), "x")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestClient_InlineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(scoreResponse{Error: "decoding failed"})
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Score(context.Background(), "x")
	require.ErrorContains(t, err, "decoding failed")
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(config.ScorerConfig{}, logging.NewDiscard())
	require.Error(t, err)
}

func TestMock_ScriptsAndCalls(t *testing.T) {
	m := &Mock{
		Scripts: map[string][]TokenProb{
			"scripted": {{ID: 1, Prob: 0.5}},
		},
		Default: []TokenProb{{ID: 2, Prob: 0.9}},
	}

	tokens, err := m.Score(context.Background(), "scripted")
	require.NoError(t, err)
	require.Equal(t, []TokenProb{{ID: 1, Prob: 0.5}}, tokens)

	tokens, err = m.Score(context.Background(), "anything else")
	require.NoError(t, err)
	require.Equal(t, []TokenProb{{ID: 2, Prob: 0.9}}, tokens)

	require.Equal(t, 2, m.Calls)
}
