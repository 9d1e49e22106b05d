package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"retro-tracker/internal/api"
	"retro-tracker/internal/config"
	"retro-tracker/internal/database"
	"retro-tracker/internal/emoji"
	"retro-tracker/internal/ratelimit"
	"retro-tracker/internal/repository"
	"retro-tracker/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminFixture struct {
	mux        *http.ServeMux
	client     *api.RAClient
	challenges *repository.ChallengeRepository
	users      *repository.UserRepository
}

func newAdminFixture(t *testing.T, upstream http.Handler) *adminFixture {
	t.Helper()
	if upstream == nil {
		upstream = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		})
	}
	provider := httptest.NewServer(upstream)
	t.Cleanup(provider.Close)

	log := zerolog.Nop()
	cfg := &config.Config{
		RAUsername: "tester",
		RAAPIKey:   "secret",
		RABaseURL:  provider.URL,
		DBPath:     filepath.Join(t.TempDir(), "admin_test.db"),
	}

	db, err := database.New(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	limiter := ratelimit.NewLimiter(time.Millisecond, 1, time.Millisecond, log)
	client := api.NewRAClient(cfg, limiter, log)

	challenges := repository.NewChallengeRepository(db, log)
	users := repository.NewUserRepository(db, log)
	emojis := repository.NewEmojiRepository(db, log)
	emojiSvc := emoji.NewService(emojis, log)
	standings := service.NewStandingsService(client, challenges, users, log)

	mux := http.NewServeMux()
	NewAdminServer(standings, challenges, users, emojis, emojiSvc, client, limiter, log).Register(mux)

	return &adminFixture{mux: mux, client: client, challenges: challenges, users: users}
}

func (f *adminFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestUpsertChallengePersists(t *testing.T) {
	f := newAdminFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/challenges",
		`{"monthKey":"2026-08","gameId":319,"gameTitle":"Chrono Trigger","totalAchievements":40,"tiebreakerBoardId":55}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	challenge, err := f.challenges.GetByMonth(context.Background(), "2026-08")
	require.NoError(t, err)
	assert.Equal(t, 319, challenge.GameID)
	assert.Equal(t, 40, challenge.TotalAchievements)
	assert.Equal(t, 55, challenge.TiebreakerBoardID)
	assert.NotEmpty(t, challenge.ID)

	// Re-posting the same month updates in place.
	rec = f.do(t, http.MethodPost, "/api/challenges", `{"monthKey":"2026-08","gameId":700}`)
	require.Equal(t, http.StatusOK, rec.Code)

	challenge, err = f.challenges.GetByMonth(context.Background(), "2026-08")
	require.NoError(t, err)
	assert.Equal(t, 700, challenge.GameID)
}

func TestUpsertChallengeValidation(t *testing.T) {
	f := newAdminFixture(t, nil)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/challenges", `{"gameId":319}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/challenges", `{"monthKey":"2026-08"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/challenges", `not json`).Code)
}

func TestUpsertChallengeClearsProviderCaches(t *testing.T) {
	var hits atomic.Int64
	f := newAdminFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"Title":"Mega Man 2","NumAchievements":50}`))
	}))

	ctx := context.Background()
	_, err := f.client.GetGameInfo(ctx, 1448)
	require.NoError(t, err)
	_, err = f.client.GetGameInfo(ctx, 1448)
	require.NoError(t, err)
	require.Equal(t, int64(1), hits.Load())

	rec := f.do(t, http.MethodPost, "/api/challenges", `{"monthKey":"2026-09","gameId":1448}`)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = f.client.GetGameInfo(ctx, 1448)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestUpsertAndDeleteUser(t *testing.T) {
	f := newAdminFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/users", `{"username":"Scout"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	users, err := f.users.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Scout", users[0].Username)
	assert.False(t, users[0].JoinedAt.IsZero())

	rec = f.do(t, http.MethodDelete, "/api/users/Scout", "")
	require.Equal(t, http.StatusOK, rec.Code)

	users, err = f.users.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUpsertUserValidation(t *testing.T) {
	f := newAdminFixture(t, nil)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/users", `{}`).Code)
}

func TestStandingsReachableThroughAdminAPI(t *testing.T) {
	progressByUser := map[string]string{
		"A": `{"NumAchievements":40,"NumAwardedToUser":10,"NumAwardedToUserHardcore":10}`,
		"B": `{"NumAchievements":40,"NumAwardedToUser":10,"NumAwardedToUserHardcore":10}`,
		"C": `{"NumAchievements":40,"NumAwardedToUser":8,"NumAwardedToUserHardcore":8}`,
	}
	f := newAdminFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "API_GetGameInfoAndUserProgress.php"):
			w.Write([]byte(progressByUser[r.URL.Query().Get("u")]))
		case strings.Contains(r.URL.Path, "API_GetLeaderboardEntries.php"):
			w.Write([]byte(`{"Results":[{"User":"b","Rank":1,"Score":"0:58"},{"User":"a","Rank":2,"Score":"1:02"}]}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))

	rec := f.do(t, http.MethodPost, "/api/challenges",
		`{"monthKey":"2026-08","gameId":319,"totalAchievements":40,"tiebreakerBoardId":55}`)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, name := range []string{"A", "B", "C"} {
		rec = f.do(t, http.MethodPost, "/api/users", fmt.Sprintf(`{"username":%q}`, name))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/standings/2026-08", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		MonthKey  string `json:"month_key"`
		Standings []struct {
			Rank     int    `json:"rank"`
			Username string `json:"username"`
		} `json:"standings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Standings, 3)

	assert.Equal(t, "B", resp.Standings[0].Username)
	assert.Equal(t, 1, resp.Standings[0].Rank)
	assert.Equal(t, "A", resp.Standings[1].Username)
	assert.Equal(t, 2, resp.Standings[1].Rank)
	assert.Equal(t, "C", resp.Standings[2].Username)
	assert.Equal(t, 3, resp.Standings[2].Rank)
}
