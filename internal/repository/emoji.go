package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"retro-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// EmojiRepository is the emoji cache's configuration source. Reads are
// read-only from the cache's perspective; writes come from the admin API.
type EmojiRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewEmojiRepository(db *sql.DB, logger zerolog.Logger) *EmojiRepository {
	return &EmojiRepository{db: db, logger: logger}
}

func (r *EmojiRepository) TrophyEmojis(ctx context.Context) ([]domain.TrophyEmojiConfig, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT challenge_type, month_key, emoji_id, emoji_name, animated FROM trophy_emojis`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trophy emojis: %w", err)
	}
	defer rows.Close()

	var configs []domain.TrophyEmojiConfig
	for rows.Next() {
		var c domain.TrophyEmojiConfig
		if err := rows.Scan(&c.ChallengeType, &c.MonthKey, &c.EmojiID, &c.EmojiName, &c.Animated); err != nil {
			return nil, fmt.Errorf("failed to scan trophy emoji: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trophy emojis: %w", err)
	}
	return configs, nil
}

func (r *EmojiRepository) GachaEmojis(ctx context.Context) ([]domain.GachaEmojiConfig, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id, item_name, rarity, emoji_id, emoji_name, animated FROM gacha_emojis`)
	if err != nil {
		return nil, fmt.Errorf("failed to list gacha emojis: %w", err)
	}
	defer rows.Close()

	var configs []domain.GachaEmojiConfig
	for rows.Next() {
		var c domain.GachaEmojiConfig
		if err := rows.Scan(&c.ItemID, &c.ItemName, &c.Rarity, &c.EmojiID, &c.EmojiName, &c.Animated); err != nil {
			return nil, fmt.Errorf("failed to scan gacha emoji: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate gacha emojis: %w", err)
	}
	return configs, nil
}

func (r *EmojiRepository) UpsertTrophyEmoji(ctx context.Context, cfg domain.TrophyEmojiConfig) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trophy_emojis (challenge_type, month_key, emoji_id, emoji_name, animated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (challenge_type, month_key) DO UPDATE SET
			emoji_id = excluded.emoji_id,
			emoji_name = excluded.emoji_name,
			animated = excluded.animated,
			updated_at = excluded.updated_at`,
		cfg.ChallengeType, cfg.MonthKey, cfg.EmojiID, cfg.EmojiName, cfg.Animated, now, now)
	if err != nil {
		r.logger.Error().Err(err).
			Str("challenge_type", cfg.ChallengeType).
			Str("month_key", cfg.MonthKey).
			Msg("failed to upsert trophy emoji")
		return fmt.Errorf("failed to upsert trophy emoji: %w", err)
	}
	return nil
}

func (r *EmojiRepository) UpsertGachaEmoji(ctx context.Context, cfg domain.GachaEmojiConfig) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO gacha_emojis (item_id, item_name, rarity, emoji_id, emoji_name, animated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (item_id) DO UPDATE SET
			item_name = excluded.item_name,
			rarity = excluded.rarity,
			emoji_id = excluded.emoji_id,
			emoji_name = excluded.emoji_name,
			animated = excluded.animated,
			updated_at = excluded.updated_at`,
		cfg.ItemID, cfg.ItemName, cfg.Rarity, cfg.EmojiID, cfg.EmojiName, cfg.Animated, now, now)
	if err != nil {
		r.logger.Error().Err(err).Str("item_id", cfg.ItemID).Msg("failed to upsert gacha emoji")
		return fmt.Errorf("failed to upsert gacha emoji: %w", err)
	}
	return nil
}
