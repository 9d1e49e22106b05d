package constants

import "time"

const (
	GameInfoCacheTTL     = 15 * time.Minute
	UserProgressCacheTTL = 5 * time.Minute
	LeaderboardCacheTTL  = 2 * time.Minute
)

const (
	// RequestInterval is the minimum spacing between dispatched provider
	// calls, shared across the whole process.
	RequestInterval = 500 * time.Millisecond
	MaxRetries      = 3
	RetryDelay      = 1 * time.Second
)

const (
	TrophyEmojiTTL     = 30 * time.Minute
	GachaEmojiTTL      = 1 * time.Hour
	FormattedEmojiTTL  = 24 * time.Hour
	EmojiMaxCacheSize  = 500
	EmojiSweepInterval = 10 * time.Minute
)

const (
	// TiebreakerWindow is the number of podium positions that consult the
	// secondary leaderboard when breaking ties.
	TiebreakerWindow = 3

	// LeaderboardPageSize is the provider's hard cap per entries call.
	LeaderboardPageSize = 500
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	ProgressFetchParallelism = 4
)
