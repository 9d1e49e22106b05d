package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"retro-tracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// ErrChallengeNotFound is returned when no challenge exists for a month key.
var ErrChallengeNotFound = errors.New("challenge not found")

type ChallengeRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewChallengeRepository(db *sql.DB, logger zerolog.Logger) *ChallengeRepository {
	return &ChallengeRepository{db: db, logger: logger}
}

func (r *ChallengeRepository) GetByMonth(ctx context.Context, monthKey string) (*domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, month_key, game_id, game_title, total_achievements,
		       tiebreaker_board_id, tiebreaker_game_id, tiebreaker_game_title,
		       created_at, updated_at
		FROM challenges WHERE month_key = ?`, monthKey)

	var c domain.Challenge
	err := row.Scan(&c.ID, &c.MonthKey, &c.GameID, &c.GameTitle, &c.TotalAchievements,
		&c.TiebreakerBoardID, &c.TiebreakerGameID, &c.TiebreakerGameTitle,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrChallengeNotFound, monthKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return &c, nil
}

func (r *ChallengeRepository) Upsert(ctx context.Context, challenge *domain.Challenge) error {
	if challenge.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate challenge id: %w", err)
		}
		challenge.ID = id
	}

	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO challenges (id, month_key, game_id, game_title, total_achievements,
			tiebreaker_board_id, tiebreaker_game_id, tiebreaker_game_title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (month_key) DO UPDATE SET
			game_id = excluded.game_id,
			game_title = excluded.game_title,
			total_achievements = excluded.total_achievements,
			tiebreaker_board_id = excluded.tiebreaker_board_id,
			tiebreaker_game_id = excluded.tiebreaker_game_id,
			tiebreaker_game_title = excluded.tiebreaker_game_title,
			updated_at = excluded.updated_at`,
		challenge.ID, challenge.MonthKey, challenge.GameID, challenge.GameTitle,
		challenge.TotalAchievements, challenge.TiebreakerBoardID, challenge.TiebreakerGameID,
		challenge.TiebreakerGameTitle, now, now)
	if err != nil {
		r.logger.Error().Err(err).Str("month_key", challenge.MonthKey).Msg("failed to upsert challenge")
		return fmt.Errorf("failed to upsert challenge: %w", err)
	}
	return nil
}
