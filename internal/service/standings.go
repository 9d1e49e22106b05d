package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"retro-tracker/internal/api"
	"retro-tracker/internal/constants"
	"retro-tracker/internal/domain"
	"retro-tracker/internal/ranking"
	"retro-tracker/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type achievementsClient interface {
	GetGameInfo(ctx context.Context, gameID int) (*domain.GameInfo, error)
	GetUserGameProgress(ctx context.Context, username string, gameID int) (*domain.UserProgress, error)
	GetLeaderboardEntries(ctx context.Context, leaderboardID, offset, count int) ([]domain.LeaderboardEntry, error)
}

type challengeStore interface {
	GetByMonth(ctx context.Context, monthKey string) (*domain.Challenge, error)
}

type userStore interface {
	List(ctx context.Context) ([]domain.User, error)
}

// StandingsService assembles the monthly challenge leaderboard: community
// members' progress on the month's game, ranked with the challenge's optional
// tiebreaker leaderboard.
type StandingsService struct {
	client     achievementsClient
	challenges challengeStore
	users      userStore
	logger     zerolog.Logger
}

func NewStandingsService(client *api.RAClient, challenges *repository.ChallengeRepository, users *repository.UserRepository, logger zerolog.Logger) *StandingsService {
	return newStandingsService(client, challenges, users, logger)
}

func newStandingsService(client achievementsClient, challenges challengeStore, users userStore, logger zerolog.Logger) *StandingsService {
	return &StandingsService{client: client, challenges: challenges, users: users, logger: logger}
}

// CurrentMonthKey returns the key for the running month, e.g. "2026-08".
func CurrentMonthKey() string {
	return time.Now().UTC().Format("2006-01")
}

// GetMonthlyStandings computes ranked standings for the given month. Users
// whose progress fetch fails are skipped with a warning; a run where every
// fetch failed surfaces the failure so the caller can retry on its next
// cycle.
func (s *StandingsService) GetMonthlyStandings(ctx context.Context, monthKey string) ([]domain.RankedParticipant, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	challenge, err := s.challenges.GetByMonth(ctx, monthKey)
	if err != nil {
		return nil, err
	}

	total := challenge.TotalAchievements
	if total == 0 {
		info, err := s.client.GetGameInfo(ctx, challenge.GameID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch game info for challenge %s: %w", monthKey, err)
		}
		total = info.NumAchievements
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}

	participants, failed, err := s.fetchParticipants(ctx, users, challenge.GameID, total)
	if err != nil {
		return nil, err
	}
	if failed > 0 {
		s.logger.Warn().
			Int("failed", failed).
			Int("total_users", len(users)).
			Str("month_key", monthKey).
			Msg("some progress fetches failed, users skipped this run")
	}

	var tiebreaker []domain.LeaderboardEntry
	if challenge.TiebreakerBoardID != 0 {
		tiebreaker, err = s.fetchFullLeaderboard(ctx, challenge.TiebreakerBoardID)
		if err != nil {
			// Degrade: standings without tiebreaker resolution beat no
			// standings at all.
			s.logger.Warn().Err(err).
				Int("leaderboard_id", challenge.TiebreakerBoardID).
				Msg("tiebreaker leaderboard unavailable, ranking without it")
			tiebreaker = nil
		}
	}

	ranked := ranking.AssignRanks(participants, tiebreaker)
	s.logger.Info().
		Str("month_key", monthKey).
		Int("participants", len(ranked)).
		Int("tiebreaker_entries", len(tiebreaker)).
		Msg("monthly standings computed")
	return ranked, nil
}

func (s *StandingsService) fetchParticipants(ctx context.Context, users []domain.User, gameID, total int) ([]domain.RankedParticipant, int, error) {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(constants.ProgressFetchParallelism)

	var mu sync.Mutex
	var participants []domain.RankedParticipant
	failed := 0

	for _, user := range users {
		g.Go(func() error {
			progress, err := s.client.GetUserGameProgress(gCtx, user.Username, gameID)
			if err != nil {
				s.logger.Warn().Err(err).Str("username", user.Username).Msg("failed to fetch user progress")
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			if progress.NumAwardedHardcore == 0 {
				return nil
			}
			mu.Lock()
			participants = append(participants, domain.RankedParticipant{
				Username:      user.Username,
				AchievedCount: progress.NumAwardedHardcore,
				TotalCount:    total,
				Points:        progress.PointsEarned,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, failed, err
	}
	if failed == len(users) {
		return nil, failed, fmt.Errorf("all %d progress fetches failed", failed)
	}

	// Deterministic pre-rank order regardless of fetch completion order.
	sort.Slice(participants, func(i, j int) bool {
		return strings.ToLower(participants[i].Username) < strings.ToLower(participants[j].Username)
	})
	return participants, failed, nil
}

// fetchFullLeaderboard pages through the tiebreaker board until a short page,
// deduplicating by username (first occurrence wins).
func (s *StandingsService) fetchFullLeaderboard(ctx context.Context, leaderboardID int) ([]domain.LeaderboardEntry, error) {
	const maxPages = 20

	var all []domain.LeaderboardEntry
	seen := make(map[string]bool)

	for page := 0; page < maxPages; page++ {
		offset := page * constants.LeaderboardPageSize
		entries, err := s.client.GetLeaderboardEntries(ctx, leaderboardID, offset, constants.LeaderboardPageSize)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			key := strings.ToLower(entry.Username)
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, entry)
		}
		if len(entries) < constants.LeaderboardPageSize {
			break
		}
	}
	return all, nil
}
