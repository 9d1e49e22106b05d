package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"retro-tracker/internal/domain"
)

// NormalizeLeaderboardPayload flattens any of the provider's leaderboard
// response shapes into entries. Accepted shapes: a bare array,
// {"Results":[...]}, {"Entries":[...]}, or an object keyed by arbitrary ids.
// Field names vary across endpoints (User/user, Score/score/FormattedScore,
// Rank/ApiRank); rows with no user handle, no score-bearing field, or an
// unparseable rank are dropped. Only a wholly undecodable payload is an
// error.
func NormalizeLeaderboardPayload(payload []byte) ([]domain.LeaderboardEntry, error) {
	rows, err := extractRows(payload)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		if entry, ok := normalizeRow(row); ok {
			entries = append(entries, entry)
		}
	}

	// Keyed-object payloads arrive in map order; provider rank restores the
	// provider's ordering for every shape.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Rank < entries[j].Rank
	})
	return entries, nil
}

func extractRows(payload []byte) ([]map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty leaderboard payload", ErrMalformedResponse)
	}

	if trimmed[0] == '[' {
		var rows []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return rows, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	for _, field := range []string{"Results", "results", "Entries", "entries"} {
		raw, ok := obj[field]
		if !ok {
			continue
		}
		var rows []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("%w: %s is not an array: %v", ErrMalformedResponse, field, err)
		}
		return rows, nil
	}

	// Keyed object: every value that decodes as an object is a row.
	rows := make([]map[string]json.RawMessage, 0, len(obj))
	for _, raw := range obj {
		var row map[string]json.RawMessage
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func normalizeRow(row map[string]json.RawMessage) (domain.LeaderboardEntry, bool) {
	user := stringField(row, "User", "user", "Username", "username")
	if user == "" {
		return domain.LeaderboardEntry{}, false
	}

	score, rawValue, ok := scoreFields(row)
	if !ok {
		return domain.LeaderboardEntry{}, false
	}

	rank, ok := intField(row, "Rank", "ApiRank", "rank", "apiRank", "apirank")
	if !ok || rank < 1 {
		return domain.LeaderboardEntry{}, false
	}

	return domain.LeaderboardEntry{
		Username: user,
		Rank:     rank,
		Score:    score,
		RawValue: rawValue,
	}, true
}

// scoreFields resolves the display score and the numeric value from whichever
// score-bearing fields are present. A numeric Score doubles as the raw value;
// a display string is synthesized from the raw value when none was given.
func scoreFields(row map[string]json.RawMessage) (string, float64, bool) {
	var display string
	var rawValue float64
	var haveDisplay, haveRaw bool

	for _, name := range []string{"FormattedScore", "Score", "score"} {
		raw, ok := row[name]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if !haveDisplay {
				display = s
				haveDisplay = true
			}
			continue
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil && !haveRaw {
			rawValue = n
			haveRaw = true
		}
	}

	if !haveRaw {
		for _, name := range []string{"Value", "value"} {
			raw, ok := row[name]
			if !ok {
				continue
			}
			var n float64
			if err := json.Unmarshal(raw, &n); err == nil {
				rawValue = n
				haveRaw = true
				break
			}
		}
	}

	if !haveDisplay && haveRaw {
		display = strconv.FormatFloat(rawValue, 'f', -1, 64)
	}
	return display, rawValue, haveDisplay || haveRaw
}

func stringField(row map[string]json.RawMessage, names ...string) string {
	for _, name := range names {
		raw, ok := row[name]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func intField(row map[string]json.RawMessage, names ...string) (int, bool) {
	for _, name := range names {
		raw, ok := row[name]
		if !ok {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return n, true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if v, err := strconv.Atoi(s); err == nil {
				return v, true
			}
		}
		// Field present but unparseable: the row has no usable rank.
		return 0, false
	}
	return 0, false
}
