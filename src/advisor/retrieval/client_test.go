package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
			TopK  int    `json:"top_k"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "leave policy", req.Query)
		assert.Equal(t, 3, req.TopK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []Snippet{
				{Text: "Students may take up to 10 days leave.", Source: "handbook.pdf", Score: 0.91},
			},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	snippets, err := client.Search(context.Background(), "leave policy", 3)
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "handbook.pdf", snippets[0].Source)
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index rebuilding", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).Search(context.Background(), "q", 3)
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	snippets, err := NewNoopClient().Search(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Nil(t, snippets)
}
