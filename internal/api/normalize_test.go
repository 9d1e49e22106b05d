package api

import (
	"testing"

	"retro-tracker/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAcceptsAllPayloadShapes(t *testing.T) {
	want := []domain.LeaderboardEntry{
		{Username: "alice", Rank: 1, Score: "1:23.45", RawValue: 0},
		{Username: "bob", Rank: 2, Score: "1:25.00", RawValue: 0},
	}

	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "bare array",
			payload: `[{"User":"alice","Rank":1,"FormattedScore":"1:23.45"},{"User":"bob","Rank":2,"FormattedScore":"1:25.00"}]`,
		},
		{
			name:    "Results wrapper",
			payload: `{"Results":[{"User":"alice","Rank":1,"FormattedScore":"1:23.45"},{"User":"bob","Rank":2,"FormattedScore":"1:25.00"}]}`,
		},
		{
			name:    "Entries wrapper",
			payload: `{"Entries":[{"User":"alice","Rank":1,"FormattedScore":"1:23.45"},{"User":"bob","Rank":2,"FormattedScore":"1:25.00"}]}`,
		},
		{
			name:    "keyed object",
			payload: `{"101":{"User":"alice","Rank":1,"FormattedScore":"1:23.45"},"102":{"User":"bob","Rank":2,"FormattedScore":"1:25.00"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeLeaderboardPayload([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestNormalizeFieldNameVariants(t *testing.T) {
	payload := `[
		{"user":"carol","rank":"3","score":"42"},
		{"User":"dave","ApiRank":4,"Score":17.5}
	]`

	got, err := NormalizeLeaderboardPayload([]byte(payload))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.LeaderboardEntry{Username: "carol", Rank: 3, Score: "42"}, got[0])
	assert.Equal(t, "dave", got[1].Username)
	assert.Equal(t, 4, got[1].Rank)
	assert.Equal(t, 17.5, got[1].RawValue)
	assert.Equal(t, "17.5", got[1].Score)
}

func TestNormalizeDropsUnusableRows(t *testing.T) {
	payload := `[
		{"Rank":1,"Score":"100"},
		{"User":"erin","Rank":2},
		{"User":"frank","Rank":"not-a-number","Score":"50"},
		{"User":"grace","Rank":3,"Score":"75"}
	]`

	got, err := NormalizeLeaderboardPayload([]byte(payload))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "grace", got[0].Username)
}

func TestNormalizeNumericValueField(t *testing.T) {
	payload := `[{"User":"heidi","Rank":1,"FormattedScore":"00:59","Value":59}]`

	got, err := NormalizeLeaderboardPayload([]byte(payload))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "00:59", got[0].Score)
	assert.Equal(t, float64(59), got[0].RawValue)
}

func TestNormalizeKeyedObjectOrderedByRank(t *testing.T) {
	payload := `{"b":{"User":"second","Rank":2,"Score":"2"},"a":{"User":"first","Rank":1,"Score":"1"},"c":{"User":"third","Rank":3,"Score":"3"}}`

	got, err := NormalizeLeaderboardPayload([]byte(payload))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{got[0].Username, got[1].Username, got[2].Username})
}

func TestNormalizeRejectsUnparseablePayload(t *testing.T) {
	_, err := NormalizeLeaderboardPayload([]byte(`this is not json`))
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = NormalizeLeaderboardPayload([]byte(``))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestNormalizeEmptyArray(t *testing.T) {
	got, err := NormalizeLeaderboardPayload([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, got)
}
