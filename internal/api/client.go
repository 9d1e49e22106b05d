// Package api wraps the RetroAchievements web API behind cached,
// rate-limited accessors. Every call goes through the shared limiter on a
// cache miss; provider errors are never cached.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"retro-tracker/internal/cache"
	"retro-tracker/internal/config"
	"retro-tracker/internal/constants"
	"retro-tracker/internal/domain"
	"retro-tracker/internal/ratelimit"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

var (
	// ErrNotFound marks a 404 from the provider (unknown game, user, or
	// leaderboard). Not retried.
	ErrNotFound = errors.New("provider resource not found")

	// ErrUnavailable marks transport failures, timeouts, and non-2xx
	// statuses unrelated to throttling. Not retried at this layer.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrMalformedResponse marks a payload that could not be decoded at all.
	ErrMalformedResponse = errors.New("malformed provider response")
)

const achievementDateLayout = "2006-01-02 15:04:05"

type RAClient struct {
	username string
	apiKey   string
	baseURL  string
	http     *fasthttp.Client
	limiter  *ratelimit.Limiter
	logger   zerolog.Logger

	gameCache     *cache.Store[*domain.GameInfo]
	progressCache *cache.Store[*domain.UserProgress]
	boardCache    *cache.Store[[]domain.LeaderboardEntry]
}

func NewRAClient(cfg *config.Config, limiter *ratelimit.Limiter, logger zerolog.Logger) *RAClient {
	return &RAClient{
		username: cfg.RAUsername,
		apiKey:   cfg.RAAPIKey,
		baseURL:  strings.TrimRight(cfg.RABaseURL, "/"),
		http: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		limiter:       limiter,
		logger:        logger,
		gameCache:     cache.New[*domain.GameInfo](constants.GameInfoCacheTTL),
		progressCache: cache.New[*domain.UserProgress](constants.UserProgressCacheTTL),
		boardCache:    cache.New[[]domain.LeaderboardEntry](constants.LeaderboardCacheTTL),
	}
}

// GetGameInfo returns game metadata. Long TTL: metadata rarely changes.
func (c *RAClient) GetGameInfo(ctx context.Context, gameID int) (*domain.GameInfo, error) {
	key := fmt.Sprintf("game:%d", gameID)
	if info, ok := c.gameCache.Get(key); ok {
		c.logger.Debug().Str("key", key).Msg("game info cache hit")
		return info, nil
	}

	endpoint := c.endpoint("API_GetGameExtended.php", map[string]string{
		"i": strconv.Itoa(gameID),
	})
	raw, err := ratelimit.Enqueue(ctx, c.limiter, func(ctx context.Context) (*rawGameInfo, error) {
		return doRequest[rawGameInfo](ctx, c, endpoint)
	})
	if err != nil {
		return nil, err
	}

	info := &domain.GameInfo{
		ID:              gameID,
		Title:           raw.Title,
		ConsoleName:     raw.ConsoleName,
		ImageIcon:       raw.ImageIcon,
		NumAchievements: raw.NumAchievements,
		Publisher:       raw.Publisher,
		Developer:       raw.Developer,
		Genre:           raw.Genre,
		Released:        raw.Released,
	}
	c.gameCache.Set(key, info)
	return info, nil
}

// GetUserGameProgress returns a user's per-achievement progress on a game,
// including whether and when each achievement was earned.
func (c *RAClient) GetUserGameProgress(ctx context.Context, username string, gameID int) (*domain.UserProgress, error) {
	key := fmt.Sprintf("progress:%s:%d", strings.ToLower(username), gameID)
	if progress, ok := c.progressCache.Get(key); ok {
		c.logger.Debug().Str("key", key).Msg("user progress cache hit")
		return progress, nil
	}

	endpoint := c.endpoint("API_GetGameInfoAndUserProgress.php", map[string]string{
		"g": strconv.Itoa(gameID),
		"u": username,
	})
	raw, err := ratelimit.Enqueue(ctx, c.limiter, func(ctx context.Context) (*rawUserProgress, error) {
		return doRequest[rawUserProgress](ctx, c, endpoint)
	})
	if err != nil {
		return nil, err
	}

	progress := &domain.UserProgress{
		Username:           username,
		GameID:             gameID,
		GameTitle:          raw.Title,
		NumAchievements:    raw.NumAchievements,
		NumAwarded:         raw.NumAwardedToUser,
		NumAwardedHardcore: raw.NumAwardedToUserHardcore,
		UserCompletion:     raw.UserCompletion,
		Achievements:       make(map[int]domain.Achievement, len(raw.Achievements)),
	}
	for _, a := range raw.Achievements {
		ach := domain.Achievement{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Points:      a.Points,
		}
		if ts, ok := parseAchievementDate(a.DateEarned); ok {
			ach.Earned = true
			ach.DateEarned = ts
		}
		if ts, ok := parseAchievementDate(a.DateEarnedHardcore); ok {
			ach.EarnedHardcore = true
			ach.DateEarnedHardcore = ts
		}
		if ach.EarnedHardcore {
			progress.PointsEarned += a.Points
		}
		progress.Achievements[a.ID] = ach
	}
	c.progressCache.Set(key, progress)
	return progress, nil
}

// GetLeaderboardEntries returns one page of a leaderboard. Each page is
// cached and rate limited independently; assembling a full board across
// pages is the caller's job.
func (c *RAClient) GetLeaderboardEntries(ctx context.Context, leaderboardID, offset, count int) ([]domain.LeaderboardEntry, error) {
	key := fmt.Sprintf("board:%d:%d:%d", leaderboardID, offset, count)
	if entries, ok := c.boardCache.Get(key); ok {
		c.logger.Debug().Str("key", key).Msg("leaderboard page cache hit")
		return entries, nil
	}

	endpoint := c.endpoint("API_GetLeaderboardEntries.php", map[string]string{
		"i": strconv.Itoa(leaderboardID),
		"o": strconv.Itoa(offset),
		"c": strconv.Itoa(count),
	})
	payload, err := ratelimit.Enqueue(ctx, c.limiter, func(ctx context.Context) (json.RawMessage, error) {
		raw, err := doRequest[json.RawMessage](ctx, c, endpoint)
		if err != nil {
			return nil, err
		}
		return *raw, nil
	})
	if err != nil {
		return nil, err
	}

	entries, err := NormalizeLeaderboardPayload(payload)
	if err != nil {
		c.logger.Error().Err(err).Int("leaderboard_id", leaderboardID).Msg("failed to normalize leaderboard payload")
		return nil, err
	}

	c.boardCache.Set(key, entries)
	c.logger.Debug().
		Int("leaderboard_id", leaderboardID).
		Int("offset", offset).
		Int("count", len(entries)).
		Msg("leaderboard page fetched")
	return entries, nil
}

// ClearCaches drops all cached provider responses. Used by the admin API
// after emoji or challenge configuration changes.
func (c *RAClient) ClearCaches() {
	c.gameCache.Clear()
	c.progressCache.Clear()
	c.boardCache.Clear()
}

func (c *RAClient) endpoint(path string, params map[string]string) string {
	values := url.Values{}
	values.Set("z", c.username)
	values.Set("y", c.apiKey)
	for k, v := range params {
		values.Set(k, v)
	}
	return fmt.Sprintf("%s/%s?%s", c.baseURL, path, values.Encode())
}

func doRequest[T any](ctx context.Context, client *RAClient, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.ExternalAPITimeout)
	}
	if err := client.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusTooManyRequests:
		return nil, fmt.Errorf("status %d: %w", status, ratelimit.ErrRateLimited)
	case status == fasthttp.StatusNotFound:
		return nil, fmt.Errorf("status %d: %w", status, ErrNotFound)
	case status != fasthttp.StatusOK:
		return nil, fmt.Errorf("status %d: %w", status, ErrUnavailable)
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &result, nil
}

func parseAchievementDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(achievementDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

type rawGameInfo struct {
	Title           string `json:"Title"`
	ConsoleName     string `json:"ConsoleName"`
	ImageIcon       string `json:"ImageIcon"`
	NumAchievements int    `json:"NumAchievements"`
	Publisher       string `json:"Publisher"`
	Developer       string `json:"Developer"`
	Genre           string `json:"Genre"`
	Released        string `json:"Released"`
}

type rawUserProgress struct {
	Title                    string                    `json:"Title"`
	NumAchievements          int                       `json:"NumAchievements"`
	NumAwardedToUser         int                       `json:"NumAwardedToUser"`
	NumAwardedToUserHardcore int                       `json:"NumAwardedToUserHardcore"`
	UserCompletion           string                    `json:"UserCompletion"`
	Achievements             map[string]rawAchievement `json:"Achievements"`
}

type rawAchievement struct {
	ID                 int    `json:"ID"`
	Title              string `json:"Title"`
	Description        string `json:"Description"`
	Points             int    `json:"Points"`
	DateEarned         string `json:"DateEarned"`
	DateEarnedHardcore string `json:"DateEarnedHardcore"`
}
