package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsFreshValue(t *testing.T) {
	s := New[string](time.Minute)
	s.Set("k", "v")

	got, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestGetMissesUnknownKey(t *testing.T) {
	s := New[int](time.Minute)

	got, ok := s.Get("nope")
	assert.False(t, ok)
	assert.Zero(t, got)
}

func TestGetPurgesExpiredEntry(t *testing.T) {
	s := New[string](time.Minute)
	current := time.Now()
	s.now = func() time.Time { return current }

	s.Set("k", "v")

	current = current.Add(2 * time.Minute)
	_, ok := s.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestSetOverwritesAndRefreshesTimestamp(t *testing.T) {
	s := New[string](time.Minute)
	current := time.Now()
	s.now = func() time.Time { return current }

	s.Set("k", "old")
	current = current.Add(30 * time.Second)
	s.Set("k", "new")

	entry, ok := s.GetEntry("k")
	assert.True(t, ok)
	assert.Equal(t, "new", entry.Value)
	assert.Equal(t, current, entry.StoredAt)
}

func TestGetEntryExposesTimestampForShorterTTL(t *testing.T) {
	s := New[string](time.Hour)
	current := time.Now()
	s.now = func() time.Time { return current }

	s.Set("k", "v")
	current = current.Add(10 * time.Minute)

	// Store TTL has not elapsed, but a caller enforcing a 5 minute cutoff
	// can see the entry is too old for it.
	entry, ok := s.GetEntry("k")
	assert.True(t, ok)
	assert.Greater(t, current.Sub(entry.StoredAt), 5*time.Minute)
}

func TestClear(t *testing.T) {
	s := New[int](time.Minute)
	s.Set("a", 1)
	s.Set("b", 2)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	_, ok := s.Get("a")
	assert.False(t, ok)
}
