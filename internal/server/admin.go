// Package server exposes the JSON admin API consumed by the community's
// moderation tooling: standings reads, emoji configuration writes, and
// limiter introspection.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"retro-tracker/internal/api"
	"retro-tracker/internal/domain"
	"retro-tracker/internal/emoji"
	"retro-tracker/internal/ratelimit"
	"retro-tracker/internal/repository"
	"retro-tracker/internal/service"

	"github.com/rs/zerolog"
)

type AdminServer struct {
	standings  *service.StandingsService
	challenges *repository.ChallengeRepository
	users      *repository.UserRepository
	emojis     *repository.EmojiRepository
	emojiSvc   *emoji.Service
	client     *api.RAClient
	limiter    *ratelimit.Limiter
	logger     zerolog.Logger
}

func NewAdminServer(
	standings *service.StandingsService,
	challenges *repository.ChallengeRepository,
	users *repository.UserRepository,
	emojis *repository.EmojiRepository,
	emojiSvc *emoji.Service,
	client *api.RAClient,
	limiter *ratelimit.Limiter,
	logger zerolog.Logger,
) *AdminServer {
	return &AdminServer{
		standings:  standings,
		challenges: challenges,
		users:      users,
		emojis:     emojis,
		emojiSvc:   emojiSvc,
		client:     client,
		limiter:    limiter,
		logger:     logger,
	}
}

// Register wires all admin routes onto mux.
func (s *AdminServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/standings/{monthKey}", s.handleStandings)
	mux.HandleFunc("GET /api/ratelimit", s.handleRateLimit)
	mux.HandleFunc("POST /api/challenges", s.handleUpsertChallenge)
	mux.HandleFunc("POST /api/users", s.handleUpsertUser)
	mux.HandleFunc("DELETE /api/users/{username}", s.handleDeleteUser)
	mux.HandleFunc("POST /api/emojis/trophy", s.handleUpsertTrophyEmoji)
	mux.HandleFunc("POST /api/emojis/gacha", s.handleUpsertGachaEmoji)
}

func (s *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type standingsRow struct {
	Rank            int    `json:"rank"`
	Username        string `json:"username"`
	Achieved        int    `json:"achieved"`
	Total           int    `json:"total"`
	Points          int    `json:"points"`
	TiebreakerScore string `json:"tiebreaker_score,omitempty"`
	Trophy          string `json:"trophy,omitempty"`
}

func (s *AdminServer) handleStandings(w http.ResponseWriter, r *http.Request) {
	monthKey := r.PathValue("monthKey")
	if monthKey == "current" {
		monthKey = service.CurrentMonthKey()
	}

	ranked, err := s.standings.GetMonthlyStandings(r.Context(), monthKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rows := make([]standingsRow, 0, len(ranked))
	for _, p := range ranked {
		row := standingsRow{
			Rank:            p.DisplayRank,
			Username:        p.Username,
			Achieved:        p.AchievedCount,
			Total:           p.TotalCount,
			Points:          p.Points,
			TiebreakerScore: p.TiebreakerScore,
		}
		if p.DisplayRank <= 3 {
			row.Trophy = s.emojiSvc.GetTrophyEmoji("monthly", monthKey).Markup
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"month_key": monthKey, "standings": rows})
}

func (s *AdminServer) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"interval_ms":     s.limiter.Interval().Milliseconds(),
		"last_request_at": s.limiter.LastRequestAt().Format(time.RFC3339Nano),
	})
}

func (s *AdminServer) handleUpsertChallenge(w http.ResponseWriter, r *http.Request) {
	var challenge domain.Challenge
	if err := json.NewDecoder(r.Body).Decode(&challenge); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if challenge.MonthKey == "" || challenge.GameID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "monthKey and gameId are required"})
		return
	}

	if err := s.challenges.Upsert(r.Context(), &challenge); err != nil {
		s.writeError(w, r, err)
		return
	}

	// A reconfigured month invalidates cached provider pages (old game's
	// progress, old tiebreaker board).
	s.client.ClearCaches()
	s.logger.Info().Str("month_key", challenge.MonthKey).Int("game_id", challenge.GameID).Msg("challenge updated, provider caches cleared")

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "id": challenge.ID})
}

type upsertUserRequest struct {
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

func (s *AdminServer) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	var req upsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if req.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username is required"})
		return
	}
	if req.JoinedAt.IsZero() {
		req.JoinedAt = time.Now()
	}

	if err := s.users.Upsert(r.Context(), domain.User{Username: req.Username, JoinedAt: req.JoinedAt}); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *AdminServer) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username is required"})
		return
	}

	if err := s.users.Delete(r.Context(), username); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *AdminServer) handleUpsertTrophyEmoji(w http.ResponseWriter, r *http.Request) {
	var cfg domain.TrophyEmojiConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if cfg.ChallengeType == "" || cfg.MonthKey == "" || cfg.EmojiID == "" || cfg.EmojiName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "challengeType, monthKey, emojiId and emojiName are required"})
		return
	}

	if err := s.emojis.UpsertTrophyEmoji(r.Context(), cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.emojiSvc.WarmUp(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *AdminServer) handleUpsertGachaEmoji(w http.ResponseWriter, r *http.Request) {
	var cfg domain.GachaEmojiConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if cfg.ItemID == "" || cfg.EmojiID == "" || cfg.EmojiName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "itemId, emojiId and emojiName are required"})
		return
	}

	if err := s.emojis.UpsertGachaEmoji(r.Context(), cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.emojiSvc.WarmUp(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *AdminServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrChallengeNotFound), errors.Is(err, api.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ratelimit.ErrRateLimited):
		status = http.StatusServiceUnavailable
	case errors.Is(err, api.ErrUnavailable), errors.Is(err, api.ErrMalformedResponse):
		status = http.StatusBadGateway
	}

	s.logger.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
