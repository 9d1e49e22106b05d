package domain

import (
	"time"
)

type User struct {
	Username  string
	JoinedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Challenge struct {
	ID                  string // nanoid
	MonthKey            string // "2026-08"
	GameID              int
	GameTitle           string
	TotalAchievements   int
	TiebreakerBoardID   int // 0 when the month has no tiebreaker
	TiebreakerGameID    int
	TiebreakerGameTitle string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type GameInfo struct {
	ID              int
	Title           string
	ConsoleName     string
	ImageIcon       string
	NumAchievements int
	Publisher       string
	Developer       string
	Genre           string
	Released        string
}

type Achievement struct {
	ID                 int
	Title              string
	Description        string
	Points             int
	Earned             bool
	EarnedHardcore     bool
	DateEarned         time.Time
	DateEarnedHardcore time.Time
}

type UserProgress struct {
	Username           string
	GameID             int
	GameTitle          string
	NumAchievements    int
	NumAwarded         int
	NumAwardedHardcore int
	PointsEarned       int
	UserCompletion     string // "95.00%"
	Achievements       map[int]Achievement
}

// LeaderboardEntry is one normalized row of a provider leaderboard. Rank is
// provider-assigned and is the only ordering signal used for tie-breaking.
type LeaderboardEntry struct {
	Username string
	Rank     int
	Score    string // preformatted by the provider
	RawValue float64
}

// RankedParticipant is one row of a monthly standings computation. A zero
// TiebreakerRank means no tiebreaker entry was resolvable for the user.
type RankedParticipant struct {
	Username        string
	AchievedCount   int
	TotalCount      int
	Points          int
	DisplayRank     int
	TiebreakerScore string
	TiebreakerRank  int
}

// Complete reports whether the participant earned every achievement in the
// challenge set.
func (p RankedParticipant) Complete() bool {
	return p.TotalCount > 0 && p.AchievedCount == p.TotalCount
}

// Emoji is a resolved display identifier. Fallback entries carry a bare
// glyph in Markup and an empty ID.
type Emoji struct {
	ID       string
	Name     string
	Animated bool
	Markup   string
	Fallback bool
}

type TrophyEmojiConfig struct {
	ChallengeType string // "monthly", "shadow", "community"
	MonthKey      string
	EmojiID       string
	EmojiName     string
	Animated      bool
}

type GachaEmojiConfig struct {
	ItemID    string
	ItemName  string
	Rarity    string
	EmojiID   string
	EmojiName string
	Animated  bool
}
