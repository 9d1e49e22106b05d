// Package ranking computes final monthly standings from achievement counts
// and an optional secondary tiebreaker leaderboard. Pure computation, no IO.
package ranking

import (
	"sort"
	"strings"

	"retro-tracker/internal/constants"
	"retro-tracker/internal/domain"
)

type tiebreakerEntry struct {
	rank  int
	score string
}

// AssignRanks orders participants by achieved count (points breaking ties,
// except that two fully-completed participants are always tied) and resolves
// tie groups that start inside the podium window against the tiebreaker
// leaderboard. Participants sharing a final rank keep their relative input
// order. Zero-achieved participants are expected to be filtered out by the
// caller.
func AssignRanks(participants []domain.RankedParticipant, tiebreaker []domain.LeaderboardEntry) []domain.RankedParticipant {
	if len(participants) == 0 {
		return participants
	}

	byUser := make(map[string]tiebreakerEntry, len(tiebreaker))
	for _, entry := range tiebreaker {
		key := strings.ToLower(entry.Username)
		if entry.Rank < 1 {
			continue
		}
		if _, seen := byUser[key]; !seen {
			byUser[key] = tiebreakerEntry{rank: entry.Rank, score: entry.Score}
		}
	}

	for i := range participants {
		if tb, ok := byUser[strings.ToLower(participants[i].Username)]; ok {
			participants[i].TiebreakerRank = tb.rank
			participants[i].TiebreakerScore = tb.score
		} else {
			participants[i].TiebreakerRank = 0
			participants[i].TiebreakerScore = ""
		}
	}

	sort.SliceStable(participants, func(i, j int) bool {
		return primaryLess(participants[i], participants[j])
	})

	for start := 0; start < len(participants); {
		end := start + 1
		for end < len(participants) && primaryTied(participants[start], participants[end]) {
			end++
		}
		assignGroupRanks(participants[start:end], start)
		start = end
	}

	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].DisplayRank < participants[j].DisplayRank
	})
	return participants
}

// primaryLess orders by achieved count descending, then points descending.
// Two fully-completed participants compare equal regardless of points.
// Completion is compared before points so the ordering stays a strict weak
// order even when participants carry different totals at the same achieved
// count.
func primaryLess(a, b domain.RankedParticipant) bool {
	if a.AchievedCount != b.AchievedCount {
		return a.AchievedCount > b.AchievedCount
	}
	if a.Complete() != b.Complete() {
		return a.Complete()
	}
	if a.Complete() {
		return false
	}
	return a.Points > b.Points
}

func primaryTied(a, b domain.RankedParticipant) bool {
	return !primaryLess(a, b) && !primaryLess(b, a)
}

// assignGroupRanks gives every member of a tie group its final rank. Groups
// starting inside the podium window are split by tiebreaker standing: members
// with an entry take sequential ranks ordered by tiebreaker rank, members
// without one share the rank immediately after. Everyone else keeps the
// provisional rank.
func assignGroupRanks(group []domain.RankedParticipant, startIndex int) {
	provisional := startIndex + 1

	resolved := make([]int, 0, len(group))
	for i := range group {
		if group[i].TiebreakerRank > 0 {
			resolved = append(resolved, i)
		}
	}

	if startIndex >= constants.TiebreakerWindow || len(resolved) == 0 || len(group) == 1 {
		for i := range group {
			group[i].DisplayRank = provisional
		}
		return
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		return group[resolved[i]].TiebreakerRank < group[resolved[j]].TiebreakerRank
	})

	next := provisional
	for _, idx := range resolved {
		group[idx].DisplayRank = next
		next++
	}
	for i := range group {
		if group[i].TiebreakerRank == 0 {
			group[i].DisplayRank = next
		}
	}
}
