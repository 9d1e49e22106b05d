// Package emoji keeps low-latency lookup caches for trophy and gacha display
// emojis. Lookups never block and never fail: a stale hit serves the old
// value while a background refresh runs, a miss serves a placeholder glyph.
package emoji

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"retro-tracker/internal/constants"
	"retro-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// FallbackGlyph is returned whenever no configured emoji resolves.
const FallbackGlyph = "❓"

// ConfigSource supplies persisted emoji configuration at refresh time.
type ConfigSource interface {
	TrophyEmojis(ctx context.Context) ([]domain.TrophyEmojiConfig, error)
	GachaEmojis(ctx context.Context) ([]domain.GachaEmojiConfig, error)
}

type entry struct {
	emoji    domain.Emoji
	storedAt time.Time
}

type formattedEntry struct {
	markup   string
	storedAt time.Time
}

type Service struct {
	source ConfigSource
	logger zerolog.Logger

	mu                sync.Mutex
	trophy            map[string]entry          // challengeType:monthKey
	gacha             map[string]entry          // emoji id
	itemIndex         map[string]string         // item id -> emoji id
	itemIndexStoredAt time.Time
	formatted         map[string]formattedEntry // id:name:animated

	trophyRefreshing bool
	gachaRefreshing  bool

	maxCacheSize int
	now          func() time.Time
	stop         chan struct{}
	done         chan struct{}
}

func NewService(source ConfigSource, logger zerolog.Logger) *Service {
	return &Service{
		source:       source,
		logger:       logger,
		trophy:       make(map[string]entry),
		gacha:        make(map[string]entry),
		itemIndex:    make(map[string]string),
		formatted:    make(map[string]formattedEntry),
		maxCacheSize: constants.EmojiMaxCacheSize,
		now:          time.Now,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// GetTrophyEmoji resolves the trophy badge for a challenge type and month.
// Total: unknown keys resolve to the fallback glyph.
func (s *Service) GetTrophyEmoji(challengeType, monthKey string) domain.Emoji {
	key := trophyKey(challengeType, monthKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.trophy[key]
	if !ok {
		s.scheduleTrophyRefreshLocked()
		return s.fallback()
	}
	if s.now().Sub(e.storedAt) > constants.TrophyEmojiTTL {
		s.scheduleTrophyRefreshLocked()
	}
	return e.emoji
}

// GetGachaEmoji resolves a gacha emoji by its emoji id.
func (s *Service) GetGachaEmoji(emojiID string) domain.Emoji {
	if emojiID == "" {
		return s.fallback()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.gacha[emojiID]
	if !ok {
		s.scheduleGachaRefreshLocked()
		return s.fallback()
	}
	if s.now().Sub(e.storedAt) > constants.GachaEmojiTTL {
		s.scheduleGachaRefreshLocked()
	}
	return e.emoji
}

// GetGachaEmojiByItemID resolves a gacha emoji through the item-id index.
func (s *Service) GetGachaEmojiByItemID(itemID string) domain.Emoji {
	if itemID == "" {
		return s.fallback()
	}

	s.mu.Lock()
	emojiID, ok := s.itemIndex[itemID]
	stale := s.now().Sub(s.itemIndexStoredAt) > constants.GachaEmojiTTL
	if !ok || stale {
		s.scheduleGachaRefreshLocked()
	}
	s.mu.Unlock()

	if !ok {
		return s.fallback()
	}
	return s.GetGachaEmoji(emojiID)
}

// FormatEmoji renders Discord emoji markup, memoizing the rendered string.
func (s *Service) FormatEmoji(id, name string, animated bool) string {
	if id == "" || name == "" {
		return FallbackGlyph
	}
	key := fmt.Sprintf("%s:%s:%t", id, name, animated)

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.formatted[key]; ok {
		return e.markup
	}

	markup := renderMarkup(id, name, animated)
	s.formatted[key] = formattedEntry{markup: markup, storedAt: s.now()}
	return markup
}

// WarmUp loads both configuration domains synchronously. Failures are logged
// and leave the caches empty; lookups then degrade to fallbacks while the
// background refresh path retries.
func (s *Service) WarmUp(ctx context.Context) {
	if err := s.refreshTrophy(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("trophy emoji warm-up failed")
	}
	if err := s.refreshGacha(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("gacha emoji warm-up failed")
	}
}

// Start launches the periodic sweep. Stop terminates it.
func (s *Service) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(constants.EmojiSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *Service) Stop() {
	close(s.stop)
	<-s.done
}

// Sweep drops expired formatted entries and bounds every cache map, evicting
// oldest-by-timestamp entries first.
func (s *Service) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.formatted {
		if now.Sub(e.storedAt) > constants.FormattedEmojiTTL {
			delete(s.formatted, key)
		}
	}

	evicted := evictOldest(s.trophy, s.maxCacheSize)
	evicted += evictOldest(s.gacha, s.maxCacheSize)
	evicted += evictOldestFormatted(s.formatted, s.maxCacheSize)

	if evicted > 0 {
		s.logger.Debug().Int("evicted", evicted).Msg("emoji cache sweep evicted entries")
	}
}

func (s *Service) scheduleTrophyRefreshLocked() {
	if s.trophyRefreshing {
		return
	}
	s.trophyRefreshing = true
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
		defer cancel()
		if err := s.refreshTrophy(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("trophy emoji refresh failed")
		}
		s.mu.Lock()
		s.trophyRefreshing = false
		s.mu.Unlock()
	}()
}

func (s *Service) scheduleGachaRefreshLocked() {
	if s.gachaRefreshing {
		return
	}
	s.gachaRefreshing = true
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
		defer cancel()
		if err := s.refreshGacha(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("gacha emoji refresh failed")
		}
		s.mu.Lock()
		s.gachaRefreshing = false
		s.mu.Unlock()
	}()
}

func (s *Service) refreshTrophy(ctx context.Context) error {
	configs, err := s.source.TrophyEmojis(ctx)
	if err != nil {
		return fmt.Errorf("failed to load trophy emoji configuration: %w", err)
	}

	now := s.now()
	fresh := make(map[string]entry, len(configs))
	for _, cfg := range configs {
		fresh[trophyKey(cfg.ChallengeType, cfg.MonthKey)] = entry{
			emoji: domain.Emoji{
				ID:       cfg.EmojiID,
				Name:     cfg.EmojiName,
				Animated: cfg.Animated,
				Markup:   renderMarkup(cfg.EmojiID, cfg.EmojiName, cfg.Animated),
			},
			storedAt: now,
		}
	}

	s.mu.Lock()
	s.trophy = fresh
	s.mu.Unlock()

	s.logger.Debug().Int("count", len(fresh)).Msg("trophy emoji cache refreshed")
	return nil
}

func (s *Service) refreshGacha(ctx context.Context) error {
	configs, err := s.source.GachaEmojis(ctx)
	if err != nil {
		return fmt.Errorf("failed to load gacha emoji configuration: %w", err)
	}

	now := s.now()
	fresh := make(map[string]entry, len(configs))
	index := make(map[string]string, len(configs))
	for _, cfg := range configs {
		fresh[cfg.EmojiID] = entry{
			emoji: domain.Emoji{
				ID:       cfg.EmojiID,
				Name:     cfg.EmojiName,
				Animated: cfg.Animated,
				Markup:   renderMarkup(cfg.EmojiID, cfg.EmojiName, cfg.Animated),
			},
			storedAt: now,
		}
		if cfg.ItemID != "" {
			index[cfg.ItemID] = cfg.EmojiID
		}
	}

	s.mu.Lock()
	s.gacha = fresh
	s.itemIndex = index
	s.itemIndexStoredAt = now
	s.mu.Unlock()

	s.logger.Debug().Int("count", len(fresh)).Msg("gacha emoji cache refreshed")
	return nil
}

func (s *Service) fallback() domain.Emoji {
	return domain.Emoji{Markup: FallbackGlyph, Fallback: true}
}

func trophyKey(challengeType, monthKey string) string {
	return challengeType + ":" + monthKey
}

func renderMarkup(id, name string, animated bool) string {
	if animated {
		return fmt.Sprintf("<a:%s:%s>", name, id)
	}
	return fmt.Sprintf("<:%s:%s>", name, id)
}

func evictOldest(m map[string]entry, max int) int {
	if len(m) <= max {
		return 0
	}
	type aged struct {
		key      string
		storedAt time.Time
	}
	all := make([]aged, 0, len(m))
	for k, e := range m {
		all = append(all, aged{key: k, storedAt: e.storedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].storedAt.Before(all[j].storedAt) })

	excess := len(m) - max
	for _, a := range all[:excess] {
		delete(m, a.key)
	}
	return excess
}

func evictOldestFormatted(m map[string]formattedEntry, max int) int {
	if len(m) <= max {
		return 0
	}
	type aged struct {
		key      string
		storedAt time.Time
	}
	all := make([]aged, 0, len(m))
	for k, e := range m {
		all = append(all, aged{key: k, storedAt: e.storedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].storedAt.Before(all[j].storedAt) })

	excess := len(m) - max
	for _, a := range all[:excess] {
		delete(m, a.key)
	}
	return excess
}
