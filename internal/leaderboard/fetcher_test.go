package leaderboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPage(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"players":[
			{"id":"111","username":"alice","discriminator":"0001","xp":50000},
			{"id":"222","username":"bob","discriminator":"0002","xp":40000,"avatar":"abc","message_count":12}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "987654321")

	players, err := c.FetchPage(context.Background(), 3, 1000)
	require.NoError(t, err)

	assert.Equal(t, "/leaderboard/987654321", gotPath)
	assert.Equal(t, "limit=1000&page=3", gotQuery)

	// Ordering must be preserved exactly — rank assignment depends on it.
	require.Len(t, players, 2)
	assert.Equal(t, "111", players[0].ID)
	assert.Equal(t, uint64(50000), players[0].XP)
	assert.Equal(t, "222", players[1].ID)
	require.NotNil(t, players[1].Avatar)
	assert.Equal(t, "abc", *players[1].Avatar)
	require.NotNil(t, players[1].MessageCount)
	assert.Equal(t, uint64(12), *players[1].MessageCount)
	assert.Nil(t, players[0].Avatar)
}

func TestFetchPage_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "g")
	_, err := c.FetchPage(context.Background(), 0, 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestFetchPage_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"players": not-json`))
	}))
	defer srv.Close()

	c := New(srv.URL, "g")
	_, err := c.FetchPage(context.Background(), 0, 1000)
	require.Error(t, err)
}

func TestFetchPage_ContextCanceled(t *testing.T) {
	// A canceled context must fail fast at the rate limiter, before any
	// network traffic happens.
	c := New("http://127.0.0.1:0", "g")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchPage(ctx, 0, 1000)
	require.Error(t, err)
}

func TestFetchPage_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"players":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "g")
	players, err := c.FetchPage(context.Background(), 0, 1000)
	require.NoError(t, err)
	assert.Empty(t, players)
}
