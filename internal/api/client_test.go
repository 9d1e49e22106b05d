package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"retro-tracker/internal/config"
	"retro-tracker/internal/ratelimit"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*RAClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		RAUsername: "tester",
		RAAPIKey:   "secret",
		RABaseURL:  server.URL,
	}
	limiter := ratelimit.NewLimiter(time.Millisecond, 2, time.Millisecond, zerolog.Nop())
	return NewRAClient(cfg, limiter, zerolog.Nop()), server
}

func TestGetGameInfoCachedWithinTTL(t *testing.T) {
	var hits atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "tester", r.URL.Query().Get("z"))
		assert.Equal(t, "secret", r.URL.Query().Get("y"))
		w.Write([]byte(`{"Title":"Mega Man 2","ConsoleName":"NES","NumAchievements":50}`))
	}))

	first, err := client.GetGameInfo(context.Background(), 1448)
	require.NoError(t, err)
	second, err := client.GetGameInfo(context.Background(), 1448)
	require.NoError(t, err)

	assert.Equal(t, int64(1), hits.Load())
	assert.Equal(t, "Mega Man 2", first.Title)
	assert.Equal(t, first, second)
}

func TestLeaderboardPagesCachedIndependently(t *testing.T) {
	var hits atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"Results":[{"User":"alice","Rank":1,"Score":"10"}]}`))
	}))

	ctx := context.Background()
	_, err := client.GetLeaderboardEntries(ctx, 7, 0, 100)
	require.NoError(t, err)
	_, err = client.GetLeaderboardEntries(ctx, 7, 100, 100)
	require.NoError(t, err)
	_, err = client.GetLeaderboardEntries(ctx, 7, 0, 100)
	require.NoError(t, err)

	// Two distinct pages, the repeated first page served from cache.
	assert.Equal(t, int64(2), hits.Load())
}

func TestUserGameProgressParsesEarnedAchievements(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Scout", r.URL.Query().Get("u"))
		w.Write([]byte(`{
			"Title":"Chrono Trigger",
			"NumAchievements":3,
			"NumAwardedToUser":2,
			"NumAwardedToUserHardcore":1,
			"UserCompletion":"66.67%",
			"Achievements":{
				"11":{"ID":11,"Title":"First Steps","Points":5,"DateEarned":"2026-08-01 10:00:00","DateEarnedHardcore":"2026-08-01 10:00:00"},
				"12":{"ID":12,"Title":"Halfway","Points":10,"DateEarned":"2026-08-02 12:30:00"},
				"13":{"ID":13,"Title":"Finale","Points":25}
			}
		}`))
	}))

	progress, err := client.GetUserGameProgress(context.Background(), "Scout", 319)
	require.NoError(t, err)

	assert.Equal(t, 2, progress.NumAwarded)
	assert.Equal(t, 1, progress.NumAwardedHardcore)
	assert.Equal(t, 5, progress.PointsEarned) // hardcore-earned points only
	require.Len(t, progress.Achievements, 3)

	assert.True(t, progress.Achievements[11].EarnedHardcore)
	assert.True(t, progress.Achievements[12].Earned)
	assert.False(t, progress.Achievements[12].EarnedHardcore)
	assert.False(t, progress.Achievements[13].Earned)
}

func TestNotFoundSurfacedWithoutRetry(t *testing.T) {
	var hits atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetGameInfo(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), hits.Load())
}

func TestServerErrorSurfacedAsUnavailable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.GetGameInfo(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRateLimitRetriedThenSurfaced(t *testing.T) {
	var hits atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.GetGameInfo(context.Background(), 1)
	assert.ErrorIs(t, err, ratelimit.ErrRateLimited)
	assert.Equal(t, int64(3), hits.Load()) // initial attempt + 2 retries
}

func TestErrorsAreNotCached(t *testing.T) {
	var hits atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"Title":"Recovered"}`))
	}))

	_, err := client.GetGameInfo(context.Background(), 5)
	require.Error(t, err)

	info, err := client.GetGameInfo(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Recovered", info.Title)
	assert.Equal(t, int64(2), hits.Load())
}

func TestMalformedPayloadSurfaced(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<!doctype html>`))
	}))

	_, err := client.GetGameInfo(context.Background(), 1)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
