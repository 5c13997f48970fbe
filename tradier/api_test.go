package tradier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const historyBody = `{"history":{"day":[
{"date":"2024-03-01","open":100,"high":102,"low":99,"close":101,"volume":1000},
{"date":"2024-03-04","open":101,"high":103,"low":100,"close":102.5,"volume":1200},
{"date":"2024-03-05","open":102,"high":102.8,"low":98.5,"close":99,"volume":900}
]}}`

func TestClient_GetQuotes(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(historyBody))
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL+"/")
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	h, err := c.GetQuotes(context.Background(), "SPY", start, start.AddDate(0, 0, 4), "")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/v1/markets/history", got.URL.Path)
	assert.Equal(t, "SPY", got.URL.Query().Get("symbol"))
	assert.Equal(t, "daily", got.URL.Query().Get("interval"))
	assert.Equal(t, "2024-03-01", got.URL.Query().Get("start"))
	assert.Equal(t, "2024-03-05", got.URL.Query().Get("end"))
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))

	require.Len(t, h.Days(), 3)
	assert.Equal(t, []float64{101, 102.5, 99}, h.Closes())
	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, "2024-03-05", last.Date)

	asOf, err := AsOf(h)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), asOf)
}

func TestClient_GetQuotesSingleBar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"history":{"day":{"date":"2024-03-01","open":1,"high":2,"low":1,"close":1.5,"volume":10}}}`))
	}))
	defer srv.Close()

	h, err := NewClient("k", srv.URL).GetQuotes(context.Background(), "X", time.Now(), time.Now(), "daily")
	require.NoError(t, err)
	require.Len(t, h.Days(), 1)
	assert.Equal(t, 1.5, h.Days()[0].Close)
}

func TestClient_GetQuotesEmptyHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"history":null}`))
	}))
	defer srv.Close()

	h, err := NewClient("k", srv.URL).GetQuotes(context.Background(), "X", time.Now(), time.Now(), "daily")
	require.NoError(t, err)
	assert.Empty(t, h.Days())
	_, err = AsOf(h)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestClient_GetQuotesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "DENIED":
			http.Error(w, "invalid access token", http.StatusUnauthorized)
		default:
			_, _ = w.Write([]byte(`{"history":`))
		}
	}))
	defer srv.Close()
	c := NewClient("k", srv.URL)

	_, err := c.GetQuotes(context.Background(), "DENIED", time.Now(), time.Now(), "daily")
	assert.ErrorIs(t, err, ErrStatus)
	assert.Contains(t, err.Error(), "401")

	_, err = c.GetQuotes(context.Background(), "BROKEN", time.Now(), time.Now(), "daily")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "decode")

	_, err = c.GetQuotes(context.Background(), "", time.Now(), time.Now(), "daily")
	assert.Error(t, err)
}

func TestClient_GetQuotesCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(historyBody))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient("k", srv.URL).GetQuotes(ctx, "SPY", time.Now(), time.Now(), "daily")
	assert.ErrorIs(t, err, context.Canceled)
}
