package searchindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/rma-service/internal/logger"
)

func TestIndex(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/index/rma", r.URL.Path)
		var doc map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		got <- doc
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", logger.Discard())
	require.NoError(t, c.Index(context.Background(), "5001", map[string]any{"rma_number": "5001"}))
	assert.Equal(t, "5001", (<-got)["rma_number"])

	c.IndexAsync("5002", map[string]any{"rma_number": "5002"})
	select {
	case doc := <-got:
		assert.Equal(t, "5002", doc["rma_number"])
	case <-time.After(2 * time.Second):
		t.Fatal("async index did not arrive")
	}
}

func TestIndex_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, logger.Discard()).Index(context.Background(), "5001", map[string]any{})
	assert.ErrorContains(t, err, "status 503")
}

func TestIndex_Disabled(t *testing.T) {
	c := NewClient("", logger.Discard())
	assert.False(t, c.Enabled())
	assert.NoError(t, c.Index(context.Background(), "1", nil))
}
