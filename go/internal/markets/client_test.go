package markets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/markets/known-market":
			w.Write([]byte(`{"id":"known-market","question":"?","status":"open"}`))
		case "/markets/broken-market":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ctx := context.Background()

	t.Run("known market", func(t *testing.T) {
		exists, err := client.Exists(ctx, "known-market")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("unknown market is a clean no", func(t *testing.T) {
		exists, err := client.Exists(ctx, "unknown-market")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("server error is upstream unavailable, not not-found", func(t *testing.T) {
		_, err := client.Exists(ctx, "broken-market")
		require.ErrorIs(t, err, ErrUpstreamUnavailable)
	})
}

func TestExistsUnreachableProvider(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // reject all connections

	client := NewClient(srv.URL)
	_, err := client.Exists(context.Background(), "any-market")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestListOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		w.Write([]byte(`[{"id":"m1","question":"a","status":"open"},{"id":"m2","question":"b","status":"open"}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	markets, err := client.ListOpen(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, "m1", markets[0].ID)
}
