// Package service orchestrates the fetch, normalize, aggregate and cache
// steps behind the HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"whaleflow/config"
	"whaleflow/internal/aggregate"
	"whaleflow/internal/cache"
	"whaleflow/internal/metrics"
	"whaleflow/internal/models"
	"whaleflow/internal/normalize"
	"whaleflow/logger"
)

// Cache TTLs are fixed constants rather than configuration. The memory
// tier bounds upstream load per process, the store tier survives restarts.
const (
	whaleMemTTL    = 2 * time.Minute
	whaleStoreTTL  = 10 * time.Minute
	marketMemTTL   = 30 * time.Second
	marketStoreTTL = 5 * time.Minute
)

var (
	// ErrNotFound marks an ad-hoc lookup for an address with no tracked
	// account behind it.
	ErrNotFound = errors.New("address not found")
	// ErrNoData means the upstream failed and no cache tier had anything
	// to fall back on.
	ErrNoData = errors.New("no data available")
)

// WhaleFetcher is the upstream surface the whale pipeline needs.
type WhaleFetcher interface {
	Leaderboard(ctx context.Context) ([]models.LeaderboardRow, error)
	ClearinghouseState(ctx context.Context, address string) (*models.RawClearinghouseState, error)
}

// WhaleService serves the aggregated whale list from the two-tier cache,
// refreshing it from the leaderboard on expiry.
type WhaleService struct {
	fetcher WhaleFetcher
	cache   *cache.Tiered[[]models.WhaleAccount]
	cfg     config.WhalesConfig
	pause   func(ctx context.Context, d time.Duration) error
	log     *logger.Log
}

func NewWhaleService(fetcher WhaleFetcher, store *cache.RedisStore, cfg config.WhalesConfig) *WhaleService {
	return &WhaleService{
		fetcher: fetcher,
		cache:   cache.NewTiered[[]models.WhaleAccount]("whales", whaleMemTTL, whaleStoreTTL, store),
		cfg:     cfg,
		pause:   sleep,
		log:     logger.GetLogger(),
	}
}

// Cache exposes the tiered cache for tests.
func (s *WhaleService) Cache() *cache.Tiered[[]models.WhaleAccount] {
	return s.cache
}

// List returns the aggregated whale accounts plus the timestamp of the
// snapshot they came from. A failed refresh falls back to the last known
// snapshot; ErrNoData is returned only when no tier holds anything.
func (s *WhaleService) List(ctx context.Context) ([]models.WhaleAccount, time.Time, error) {
	if entry, ok := s.cache.Lookup(ctx); ok {
		metrics.IncCache("whales", metrics.CacheHit)
		return entry.Data, entry.Time, nil
	}
	metrics.IncCache("whales", metrics.CacheMiss)

	whales, err := s.refresh(ctx)
	if err != nil {
		if entry, ok := s.cache.Stale(); ok {
			metrics.IncCache("whales", metrics.CacheStaleServe)
			s.log.WithComponent("whale_service").WithError(err).Warn("refresh failed, serving stale snapshot")
			return entry.Data, entry.Time, nil
		}
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrNoData, err)
	}

	s.cache.Store(whales)
	entry, _ := s.cache.Stale()
	return entry.Data, entry.Time, nil
}

// Lookup fetches one address live, bypassing the cache. Unknown addresses
// normalize to nothing and come back as ErrNotFound.
func (s *WhaleService) Lookup(ctx context.Context, address string) (*models.WhaleAccount, error) {
	state, err := s.fetcher.ClearinghouseState(ctx, address)
	if err != nil {
		metrics.IncUpstream("clearinghouse", metrics.OutcomeError)
		return nil, fmt.Errorf("%w: %v", ErrNoData, err)
	}
	metrics.IncUpstream("clearinghouse", metrics.OutcomeSuccess)

	row := models.LeaderboardRow{
		EthAddress:   address,
		AccountValue: state.MarginSummary.AccountValue,
	}
	whale := normalize.Whale(row, state, time.Now().UTC())
	if whale == nil {
		return nil, ErrNotFound
	}
	return whale, nil
}

func (s *WhaleService) refresh(ctx context.Context) ([]models.WhaleAccount, error) {
	rows, err := s.fetcher.Leaderboard(ctx)
	if err != nil {
		metrics.IncUpstream("leaderboard", metrics.OutcomeError)
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	metrics.IncUpstream("leaderboard", metrics.OutcomeSuccess)

	candidates := s.selectCandidates(rows)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no leaderboard rows above %.0f", s.cfg.MinLeaderboardValue)
	}

	states := s.fetchStates(ctx, candidates)

	now := time.Now().UTC()
	whales := make([]models.WhaleAccount, 0, len(candidates))
	for i, row := range candidates {
		whale := normalize.Whale(row, states[i], now)
		if whale == nil {
			continue
		}
		whales = append(whales, *whale)
	}
	if len(whales) == 0 {
		return nil, fmt.Errorf("all %d candidate fetches failed or normalized away", len(candidates))
	}
	return aggregate.Whales(whales), nil
}

// selectCandidates keeps rows at or above the leaderboard threshold, most
// valuable first, capped at MaxWhales.
func (s *WhaleService) selectCandidates(rows []models.LeaderboardRow) []models.LeaderboardRow {
	type scored struct {
		row   models.LeaderboardRow
		value float64
	}
	kept := make([]scored, 0, len(rows))
	for _, row := range rows {
		value, ok := normalize.LeaderboardValue(row)
		if !ok || value < s.cfg.MinLeaderboardValue {
			continue
		}
		kept = append(kept, scored{row: row, value: value})
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].value > kept[j].value })

	max := s.cfg.MaxWhales
	if max > 0 && len(kept) > max {
		kept = kept[:max]
	}
	candidates := make([]models.LeaderboardRow, len(kept))
	for i, k := range kept {
		candidates[i] = k.row
	}
	return candidates
}

// fetchStates resolves clearinghouse state for every candidate in chunks of
// BatchSize, concurrent within a chunk, pausing BatchDelay between chunks.
// A failed fetch leaves a nil slot; the normalizer drops it.
func (s *WhaleService) fetchStates(ctx context.Context, candidates []models.LeaderboardRow) []*models.RawClearinghouseState {
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	log := s.log.WithComponent("whale_service")
	states := make([]*models.RawClearinghouseState, len(candidates))
	for start := 0; start < len(candidates); start += batchSize {
		if ctx.Err() != nil {
			break
		}
		if start > 0 && s.cfg.BatchDelay > 0 {
			if err := s.pause(ctx, s.cfg.BatchDelay); err != nil {
				break
			}
		}

		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		done := make(chan struct{})
		pending := 0
		for i := start; i < end; i++ {
			pending++
			go func(i int) {
				defer func() { done <- struct{}{} }()
				state, err := s.fetcher.ClearinghouseState(ctx, candidates[i].EthAddress)
				if err != nil {
					metrics.IncUpstream("clearinghouse", metrics.OutcomeError)
					log.WithFields(logger.Fields{
						"address": candidates[i].EthAddress,
					}).WithError(err).Warn("clearinghouse fetch failed")
					return
				}
				metrics.IncUpstream("clearinghouse", metrics.OutcomeSuccess)
				states[i] = state
			}(i)
		}
		for ; pending > 0; pending-- {
			<-done
		}
	}
	return states
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
